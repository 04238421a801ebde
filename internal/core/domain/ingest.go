package domain

import (
	"errors"
	"fmt"
	"sort"
)

// IngestOptions controls an ingestion run.
type IngestOptions struct {
	// Domains to ingest. Empty means every domain.
	Domains []KnowledgeDomain

	// Multimodal enables figure and equation processing.
	Multimodal bool
}

// DomainSummary reports the outcome of ingesting one domain folder.
type DomainSummary struct {
	Domain      KnowledgeDomain
	Seen        int
	Skipped     int
	Ingested    int
	ChunksAdded int
	Errors      int

	// Failures maps filename to the error that stopped it.
	Failures map[string]string
}

// IngestSummary aggregates per-domain summaries.
type IngestSummary struct {
	Domains []DomainSummary
}

// TotalErrors returns the number of failed documents across domains.
func (s IngestSummary) TotalErrors() int {
	n := 0
	for _, d := range s.Domains {
		n += d.Errors
	}
	return n
}

// TotalChunks returns the number of chunks added across domains.
func (s IngestSummary) TotalChunks() int {
	n := 0
	for _, d := range s.Domains {
		n += d.ChunksAdded
	}
	return n
}

// Err joins every per-document failure into one error, or returns nil.
// Failures are ordered by domain and then filename.
func (s IngestSummary) Err() error {
	var errs []error
	for _, d := range s.Domains {
		names := make([]string, 0, len(d.Failures))
		for name := range d.Failures {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			errs = append(errs, fmt.Errorf("%s/%s: %s", d.Domain, name, d.Failures[name]))
		}
	}
	return errors.Join(errs...)
}

// CollectionStats is the report-only view of a collection.
type CollectionStats struct {
	Domain      KnowledgeDomain
	Name        string
	Description string
	Count       int
	Documents   int
}

// RetrievedChunk is one nearest-neighbour hit.
type RetrievedChunk struct {
	ID       string
	Text     string
	Metadata map[string]any
	Distance float64
	Domain   KnowledgeDomain
}

// Similarity converts the cosine distance into 1/(1+distance).
func (c RetrievedChunk) Similarity() float64 {
	return 1 / (1 + c.Distance)
}
