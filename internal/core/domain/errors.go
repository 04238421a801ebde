package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidDomain indicates a knowledge domain outside the fixed set.
	ErrInvalidDomain = errors.New("invalid knowledge domain")

	// ErrDuplicateChunkID indicates an add would overwrite an existing record.
	// Vector store writes never replace an id silently.
	ErrDuplicateChunkID = errors.New("duplicate chunk id")

	// ErrCollectionNotFound indicates a collection has not been created yet.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	// Consolidation, planning and the validated turn loop need it.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	// Ingestion, retrieval and memory all require embeddings.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrVisionUnavailable indicates no vision-capable model is configured.
	// Figure analysis, panel segmentation and equation region detection are skipped.
	ErrVisionUnavailable = errors.New("vision service unavailable")

	// ErrRegistryUnavailable indicates the bibliographic registry could not be reached.
	ErrRegistryUnavailable = errors.New("bibliographic registry unavailable")

	// ErrRateLimited indicates the API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")

	// ErrUnknownTool indicates a tool call named a tool that is not registered.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrMemoryDisabled indicates the requested memory tier is switched off.
	ErrMemoryDisabled = errors.New("memory tier disabled")
)
