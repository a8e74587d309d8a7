package ingest

import "errors"

var (
	ErrResolverRequired = errors.New("paper resolver is required")
	ErrEmbedderRequired = errors.New("embedding provider is required")
	ErrStoreRequired    = errors.New("graph store is required")
	ErrChunkerRequired  = errors.New("chunker is required")
)
