package biz

import (
	"errors"
	"fmt"
)

// ErrorKind 是流水线错误类别。
type ErrorKind string

const (
	KindExtraction      ErrorKind = "ExtractionError"
	KindSegmentation    ErrorKind = "SegmentationError"
	KindEmbedding       ErrorKind = "EmbeddingError"
	KindStoreConnection ErrorKind = "StoreConnectionError"
	KindStoreWrite      ErrorKind = "StoreWriteError"
	KindStoreRead       ErrorKind = "StoreReadError"
	KindGeneration      ErrorKind = "GenerationError"
)

// 各类别的哨兵错误，可用 errors.Is 判断。
var (
	ErrExtraction      = errors.New("extraction failed")
	ErrSegmentation    = errors.New("segmentation failed")
	ErrEmbedding       = errors.New("embedding failed")
	ErrStoreConnection = errors.New("vector store unavailable")
	ErrStoreWrite      = errors.New("vector store write failed")
	ErrStoreRead       = errors.New("vector store read failed")
	ErrGeneration      = errors.New("generation failed")

	// ErrEmptyDocument 文档没有产生任何分块。
	ErrEmptyDocument = errors.New("parsed content is empty")
)

var kindSentinels = map[ErrorKind]error{
	KindExtraction:      ErrExtraction,
	KindSegmentation:    ErrSegmentation,
	KindEmbedding:       ErrEmbedding,
	KindStoreConnection: ErrStoreConnection,
	KindStoreWrite:      ErrStoreWrite,
	KindStoreRead:       ErrStoreRead,
	KindGeneration:      ErrGeneration,
}

// Stage 是流水线阶段。
type Stage string

// 查询阶段。
const (
	StageEmbedQuery      Stage = "EmbedQuery"
	StageFetchRecords    Stage = "FetchRecords"
	StageBuildIndex      Stage = "BuildIndex"
	StageSearch          Stage = "Search"
	StageAssembleContext Stage = "AssembleContext"
	StageGenerate        Stage = "Generate"
)

// 索引阶段。
const (
	StageExtract          Stage = "Extract"
	StageSegment          Stage = "Segment"
	StageEnsureCollection Stage = "EnsureCollection"
	StageEmbedChunks      Stage = "EmbedChunks"
	StageUpsert           Stage = "Upsert"
	StageUpdateMetadata   Stage = "UpdateMetadata"
)

// StageError 是带阶段和类别标记的流水线错误。
type StageError struct {
	Stage Stage
	Kind  ErrorKind
	Err   error
}

func newStageError(stage Stage, kind ErrorKind, err error) *StageError {
	return &StageError{Stage: stage, Kind: kind, Err: err}
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Stage, e.Kind, e.Err)
}

// Unwrap 同时暴露类别哨兵和底层错误。
func (e *StageError) Unwrap() []error {
	if s, ok := kindSentinels[e.Kind]; ok {
		return []error{s, e.Err}
	}
	return []error{e.Err}
}

// KindOf 返回错误链中第一个 StageError 的类别。
func KindOf(err error) (ErrorKind, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return "", false
}

// StageOf 返回错误链中第一个 StageError 的阶段。
func StageOf(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}
