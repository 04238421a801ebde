package driven

import (
	"context"

	"github.com/custodia-labs/agora/internal/core/domain"
)

// BibliographicRegistry resolves DOIs to bibliographic records.
//
// A missing record or a non-200 response is reported as an error wrapping
// domain.ErrNotFound or domain.ErrRegistryUnavailable; neither is fatal to
// callers.
type BibliographicRegistry interface {
	Lookup(ctx context.Context, doi string) (*domain.RegistryWork, error)
}
