package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// RAG 服务错误码（服务代码 20）。
// 流水线内部的错误类型在边界处统一折叠为以下几个通用错误。
var (
	ErrRAGInvalidRequest = Register(New(MakeCode(ServiceRAG, CategoryRequest, 1), http.StatusBadRequest, codes.InvalidArgument, "Invalid request parameters", "请求参数无效"))
	ErrRAGEmptyContent   = Register(New(MakeCode(ServiceRAG, CategoryRequest, 2), http.StatusBadRequest, codes.InvalidArgument, "Parsed content is empty", "解析内容为空"))
	ErrRAGFileNotFound   = Register(New(MakeCode(ServiceRAG, CategoryResource, 1), http.StatusNotFound, codes.NotFound, "File not found", "文件不存在"))
	ErrRAGUploadFailed   = Register(New(MakeCode(ServiceRAG, CategoryInternal, 1), http.StatusInternalServerError, codes.Internal, "File upload failed", "文件上传失败"))
	ErrRAGIndexFailed    = Register(New(MakeCode(ServiceRAG, CategoryInternal, 2), http.StatusInternalServerError, codes.Internal, "Parsing failed", "文档解析失败"))
	ErrRAGQueryFailed    = Register(New(MakeCode(ServiceRAG, CategoryInternal, 3), http.StatusInternalServerError, codes.Internal, "Query processing failed", "查询处理失败"))
	ErrRAGQueryTimeout   = Register(New(MakeCode(ServiceRAG, CategoryTimeout, 1), http.StatusGatewayTimeout, codes.DeadlineExceeded, "Query timeout", "查询超时"))
)
