// Package app provides the RAG server application.
package app

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/kart-io/ragpipe/cmd/rag/app/options"
	ragsvc "github.com/kart-io/ragpipe/internal/rag"
	"github.com/kart-io/ragpipe/pkg/infra/app"
)

const (
	// commandDesc is the description of the command.
	commandDesc = `RAG Pipeline Service

Retrieval-augmented question answering over uploaded documents.

This server provides:
  - PDF upload and text extraction
  - Chunking and embedding into a vector store (Milvus, Qdrant or in-memory)
  - Exact nearest neighbour retrieval and answer generation with an LLM`
)

// NewApp creates and returns a new App object with default parameters.
func NewApp() *app.App {
	opts := options.NewServerOptions()
	application := app.NewApp(
		app.WithName(ragsvc.Name),
		app.WithShortDescription("RAG pipeline service"),
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithRunFunc(run(opts)),
	)

	return application
}

// run contains the main logic for initializing and running the server.
func run(opts *options.ServerOptions) app.RunFunc {
	return func() error {
		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		// 启动阶段收到信号时中止对外部依赖的连接
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		server, err := cfg.NewServer(ctx)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}

		return server.Run(ctx)
	}
}
