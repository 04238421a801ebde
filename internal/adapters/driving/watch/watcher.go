// Package watch re-runs incremental ingestion when PDFs appear in the
// domain folders.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/agora/internal/core/domain"
	"github.com/custodia-labs/agora/internal/core/ports/driving"
	"github.com/custodia-labs/agora/internal/logger"
)

// DefaultDebounce is the quiet period after the last event of a domain
// before its ingestion runs.
const DefaultDebounce = 500 * time.Millisecond

// Config holds configuration for the watcher.
type Config struct {
	// PDFRoot holds one folder per domain.
	PDFRoot string

	// Domains to watch. Empty means every domain.
	Domains []domain.KnowledgeDomain

	// Multimodal is passed through to ingestion.
	Multimodal bool

	// Debounce is the quiet period (default: 500ms).
	Debounce time.Duration

	// OnSummary receives the outcome of each triggered run. Optional.
	OnSummary func(*domain.IngestSummary)
}

// Stats counts watcher activity.
type Stats struct {
	Events int
	Runs   int
	Errors int
}

// Watcher watches domain folders and ingests new PDFs.
type Watcher struct {
	ingest driving.IngestService
	cfg    Config
	dirs   map[string]domain.KnowledgeDomain

	mu      sync.Mutex
	pending map[domain.KnowledgeDomain]time.Time
	stats   Stats

	ready chan struct{}
}

// New creates a watcher for the configured domains.
func New(ingest driving.IngestService, cfg Config) (*Watcher, error) {
	if ingest == nil {
		return nil, fmt.Errorf("watch: %w: ingest service required", domain.ErrInvalidInput)
	}
	if cfg.PDFRoot == "" {
		return nil, fmt.Errorf("watch: %w: pdf root required", domain.ErrInvalidInput)
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	domains := cfg.Domains
	if len(domains) == 0 {
		domains = domain.AllDomains()
	}

	dirs := make(map[string]domain.KnowledgeDomain, len(domains))
	for _, d := range domains {
		if !d.IsValid() {
			return nil, fmt.Errorf("watch: %w: %q", domain.ErrInvalidDomain, d)
		}
		dirs[filepath.Clean(filepath.Join(cfg.PDFRoot, d.String()))] = d
	}

	return &Watcher{
		ingest:  ingest,
		cfg:     cfg,
		dirs:    dirs,
		pending: make(map[domain.KnowledgeDomain]time.Time),
		ready:   make(chan struct{}),
	}, nil
}

// Ready is closed once every domain folder is being watched.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Stats returns a snapshot of the counters.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// Run watches until ctx is cancelled. Missing domain folders are created.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()

	for dir := range w.dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
		if err := fw.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
		logger.Debug("Watching %s", dir)
	}
	close(w.ready)

	tick := w.cfg.Debounce / 5
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watcher error: %v", err)
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case now := <-ticker.C:
			w.flush(ctx, now)
		}
	}
}

// handleEvent marks the event's domain pending when a PDF was added.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Rename) {
		return
	}
	d, ok := w.domainFor(event.Name)
	if !ok {
		return
	}

	logger.Debug("%s event for %s", event.Op, event.Name)
	w.mu.Lock()
	w.stats.Events++
	w.pending[d] = time.Now()
	w.mu.Unlock()
}

// domainFor maps a PDF path to the domain folder directly containing it.
func (w *Watcher) domainFor(path string) (domain.KnowledgeDomain, bool) {
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return "", false
	}
	d, ok := w.dirs[filepath.Clean(filepath.Dir(path))]
	return d, ok
}

// flush runs ingestion for every domain that has been quiet long enough.
func (w *Watcher) flush(ctx context.Context, now time.Time) {
	var due []domain.KnowledgeDomain
	w.mu.Lock()
	for d, last := range w.pending {
		if now.Sub(last) >= w.cfg.Debounce {
			due = append(due, d)
			delete(w.pending, d)
		}
	}
	w.mu.Unlock()

	for _, d := range due {
		logger.Info("Re-ingesting %s", d)
		summary, err := w.ingest.Ingest(ctx, domain.IngestOptions{
			Domains:    []domain.KnowledgeDomain{d},
			Multimodal: w.cfg.Multimodal,
		})

		w.mu.Lock()
		w.stats.Runs++
		if err != nil {
			w.stats.Errors++
		}
		w.mu.Unlock()

		if err != nil {
			logger.Warn("Ingesting %s failed: %v", d, err)
			continue
		}
		if w.cfg.OnSummary != nil {
			w.cfg.OnSummary(summary)
		}
	}
}
