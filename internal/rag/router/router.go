// Package router provides RAG service routing.
package router

import (
	"fmt"

	"github.com/kart-io/logger"

	"github.com/kart-io/ragpipe/internal/rag/handler"
	"github.com/kart-io/ragpipe/pkg/infra/server"
)

// BasePath is the prefix of every pipeline route.
const BasePath = "/RAG_pipeline"

// Register registers the RAG service routes.
func Register(mgr *server.Manager, ragHandler *handler.RAGHandler) error {
	logger.Info("Registering RAG routes...")

	httpServer := mgr.HTTPServer()
	if httpServer == nil {
		return fmt.Errorf("http server is not configured")
	}
	engine := httpServer.Engine()

	engine.GET("/healthz", ragHandler.Healthz)

	rag := engine.Group(BasePath)
	{
		rag.GET("/", ragHandler.Root)

		// 上传与解析
		rag.POST("/upload-file/", ragHandler.Upload)
		rag.GET("/parse-file/:file_id", ragHandler.Parse)

		// 查询
		rag.POST("/user-query", ragHandler.Query)

		rag.GET("/documents", ragHandler.Documents)
		rag.GET("/stats", ragHandler.Stats)
		rag.GET("/metrics", ragHandler.Metrics)
	}

	logger.Info("HTTP routes registered")
	return nil
}
