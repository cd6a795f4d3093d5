package domain

import "errors"

var (
	// ErrNotFound signals a missing collection.
	ErrNotFound = errors.New("not found")
	// ErrIngest signals an unreadable or corrupt source document.
	ErrIngest = errors.New("ingest failed")
	// ErrEmbeddingProvider signals an embedding provider failure.
	ErrEmbeddingProvider = errors.New("embedding provider error")
	// ErrCapability signals a chat model failure during a turn.
	ErrCapability = errors.New("capability error")
	// ErrBuildInProgress signals a concurrent build on the same collection.
	ErrBuildInProgress = errors.New("index build already in progress")
	// ErrNoAnswer signals a turn that produced no final assistant content.
	ErrNoAnswer = errors.New("no answer produced")
)
