package biz

// Chunk 是索引过程中的临时分块，写入存储后即丢弃。
type Chunk struct {
	Sequence   int
	DocumentID string
	FileID     string
	Text       string
	CharCount  int
	Embedding  []float32
}

func newChunks(texts []string, documentID, fileID string) []*Chunk {
	chunks := make([]*Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = &Chunk{
			Sequence:   i,
			DocumentID: documentID,
			FileID:     fileID,
			Text:       text,
			CharCount:  len(text),
		}
	}
	return chunks
}
