// Package crossref resolves DOIs against the CrossRef REST API.
package crossref

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/agora/internal/core/domain"
	"github.com/custodia-labs/agora/internal/core/ports/driven"
	"github.com/custodia-labs/agora/internal/logger"
)

// Ensure Registry implements the interface.
var _ driven.BibliographicRegistry = (*Registry)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "https://api.crossref.org"
	DefaultDelay   = 500 * time.Millisecond
	DefaultTimeout = 10 * time.Second
)

// Config holds configuration for the CrossRef client.
type Config struct {
	// BaseURL is the API base URL (default: https://api.crossref.org).
	BaseURL string

	// Mailto identifies the caller for CrossRef's polite pool.
	Mailto string

	// Delay is the minimum spacing between lookups (default: 500ms).
	// A negative value disables spacing.
	Delay time.Duration

	// Timeout is the request timeout (default: 10s).
	Timeout time.Duration
}

// Registry looks DOIs up one at a time, spacing calls by the configured delay.
type Registry struct {
	client  *resty.Client
	limiter *rate.Limiter
}

type workResponse struct {
	Status  string `json:"status"`
	Message struct {
		Title               []string  `json:"title"`
		Author              []author  `json:"author"`
		PublishedPrint      dateParts `json:"published-print"`
		PublishedOnline     dateParts `json:"published-online"`
		ContainerTitle      []string  `json:"container-title"`
		ShortContainerTitle []string  `json:"short-container-title"`
		Volume              string    `json:"volume"`
		Page                string    `json:"page"`
	} `json:"message"`
}

type author struct {
	Given  string `json:"given"`
	Family string `json:"family"`
}

type dateParts struct {
	DateParts [][]int `json:"date-parts"`
}

func (d dateParts) first() []int {
	if len(d.DateParts) == 0 {
		return nil
	}
	return d.DateParts[0]
}

// NewRegistry creates a CrossRef client.
func NewRegistry(cfg Config) *Registry {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Delay == 0 {
		cfg.Delay = DefaultDelay
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	agent := "agora/1.0"
	if cfg.Mailto != "" {
		agent += " (mailto:" + cfg.Mailto + ")"
	}

	limit := rate.Inf
	if cfg.Delay > 0 {
		limit = rate.Every(cfg.Delay)
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", agent)
	if cfg.Mailto != "" {
		client.SetQueryParam("mailto", cfg.Mailto)
	}

	return &Registry{
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Lookup fetches the work registered for a DOI.
func (r *Registry) Lookup(ctx context.Context, doi string) (*domain.RegistryWork, error) {
	if strings.TrimSpace(doi) == "" {
		return nil, fmt.Errorf("crossref: %w: empty doi", domain.ErrInvalidInput)
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("crossref: %w", err)
	}

	var result workResponse
	resp, err := r.client.R().
		SetContext(ctx).
		SetResult(&result).
		Get("/works/" + url.PathEscape(doi))
	if err != nil {
		return nil, fmt.Errorf("crossref lookup %s: %w: %w", doi, domain.ErrRegistryUnavailable, err)
	}

	switch code := resp.StatusCode(); {
	case code == http.StatusNotFound:
		return nil, fmt.Errorf("crossref lookup %s: %w", doi, domain.ErrNotFound)
	case code != http.StatusOK:
		logger.Debug("crossref returned status %d for %s", code, doi)
		return nil, fmt.Errorf("crossref lookup %s: %w: status %d", doi, domain.ErrRegistryUnavailable, code)
	}

	m := result.Message
	work := &domain.RegistryWork{
		Title:               firstOf(m.Title),
		PublishedPrint:      m.PublishedPrint.first(),
		PublishedOnline:     m.PublishedOnline.first(),
		ContainerTitle:      firstOf(m.ContainerTitle),
		ShortContainerTitle: firstOf(m.ShortContainerTitle),
		Volume:              m.Volume,
		Page:                m.Page,
	}
	for _, a := range m.Author {
		work.Authors = append(work.Authors, domain.RegistryAuthor{Given: a.Given, Family: a.Family})
	}
	return work, nil
}

func firstOf(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
