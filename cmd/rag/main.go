// Package main is the entry point for the RAG pipeline service.
//
// The service accepts PDF uploads, indexes their text into a vector store
// and answers questions from the indexed chunks.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/kart-io/ragpipe/cmd/rag/app"
)

func main() {
	app.NewApp().Run()
}
