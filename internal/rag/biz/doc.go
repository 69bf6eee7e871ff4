// Package biz 提供 RAG 服务的业务逻辑层。
//
// 该包将业务逻辑拆分为以下组件：
//   - Indexer: 文档索引（提取、分块、并发嵌入、按序写入）
//   - Retriever: 检索与回答（查询嵌入、全量读取、精确 L2 检索、生成）
//   - Generator: 提示词组装与 LLM 调用
//   - Service: 组合以上组件，对接上传存储和文档元数据
//
// 每个阶段的失败都以 *StageError 返回，携带阶段名和错误类别，不做重试。
package biz
