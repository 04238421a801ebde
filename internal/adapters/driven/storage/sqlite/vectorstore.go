package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/custodia-labs/agora/internal/core/domain"
	"github.com/custodia-labs/agora/internal/core/ports/driven"
)

// metadataKey restricts filter keys to identifiers so they can be spliced
// into JSON paths.
var metadataKey = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// vectorStore implements driven.VectorStore.
type vectorStore struct {
	store *Store
}

var _ driven.VectorStore = (*vectorStore)(nil)

// EnsureCollection creates the collection if missing.
func (s *vectorStore) EnsureCollection(ctx context.Context, name string, metadata map[string]any) (*driven.Collection, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty collection name", domain.ErrInvalidInput)
	}
	metaJSON, err := marshalMetadata(metadata)
	if err != nil {
		return nil, err
	}

	_, err = s.store.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO collections (name, metadata) VALUES (?, ?)", name, metaJSON)
	if err != nil {
		return nil, fmt.Errorf("creating collection %s: %w", name, err)
	}
	return s.collection(ctx, name)
}

func (s *vectorStore) collection(ctx context.Context, name string) (*driven.Collection, error) {
	var metaJSON string
	err := s.store.db.QueryRowContext(ctx,
		"SELECT metadata FROM collections WHERE name = ?", name).Scan(&metaJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrCollectionNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("reading collection %s: %w", name, err)
	}
	meta, err := unmarshalMetadata(metaJSON)
	if err != nil {
		return nil, err
	}
	return &driven.Collection{Name: name, Metadata: meta}, nil
}

// Collections lists every collection by name.
func (s *vectorStore) Collections(ctx context.Context) ([]driven.Collection, error) {
	rows, err := s.store.db.QueryContext(ctx, "SELECT name, metadata FROM collections ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("querying collections: %w", err)
	}
	defer rows.Close()

	var out []driven.Collection
	for rows.Next() {
		var name, metaJSON string
		if err := rows.Scan(&name, &metaJSON); err != nil {
			return nil, fmt.Errorf("scanning collection: %w", err)
		}
		meta, err := unmarshalMetadata(metaJSON)
		if err != nil {
			return nil, err
		}
		out = append(out, driven.Collection{Name: name, Metadata: meta})
	}
	return out, rows.Err()
}

// Count returns the number of records in a collection.
func (s *vectorStore) Count(ctx context.Context, collection string) (int, error) {
	var n int
	err := s.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM records WHERE collection = ?", collection).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting %s: %w", collection, err)
	}
	return n, nil
}

// DistinctValues returns the distinct string values of one metadata key.
func (s *vectorStore) DistinctValues(ctx context.Context, collection, key string) ([]string, error) {
	if !metadataKey.MatchString(key) {
		return nil, fmt.Errorf("%w: metadata key %q", domain.ErrInvalidInput, key)
	}
	path := "$." + key
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT DISTINCT json_extract(metadata, ?) FROM records
		WHERE collection = ? AND json_extract(metadata, ?) IS NOT NULL`,
		path, collection, path)
	if err != nil {
		return nil, fmt.Errorf("querying distinct %s: %w", key, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scanning distinct value: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

// Add appends records in one transaction. Any existing id aborts the
// whole batch with domain.ErrDuplicateChunkID.
func (s *vectorStore) Add(ctx context.Context, collection string, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	coll, err := s.collection(ctx, collection)
	if err != nil {
		return err
	}
	collDomain, _ := coll.Metadata[domain.MetaDomain].(string)

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	seen := make(map[string]struct{}, len(chunks))
	for i := range chunks {
		c := &chunks[i]
		if c.ID == "" {
			return fmt.Errorf("%w: chunk %d has no id", domain.ErrInvalidInput, i)
		}
		if _, dup := seen[c.ID]; dup {
			return fmt.Errorf("%w: %s repeated in batch", domain.ErrDuplicateChunkID, c.ID)
		}
		seen[c.ID] = struct{}{}

		if d := domain.MetaString(c.Metadata, domain.MetaDomain, ""); collDomain != "" && d != "" && d != collDomain {
			return fmt.Errorf("%w: chunk %s has domain %s, collection %s holds %s",
				domain.ErrInvalidDomain, c.ID, d, collection, collDomain)
		}

		var exists int
		err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM records WHERE id = ?", c.ID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("checking id %s: %w", c.ID, err)
		}
		if exists > 0 {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateChunkID, c.ID)
		}

		metaJSON, err := marshalMetadata(c.Metadata)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO records (id, collection, position, text, embedding, metadata)
			VALUES (?, ?, ?, ?, ?, ?)`,
			c.ID, collection, c.Position, c.Text, float32SliceToBytes(c.Embedding), metaJSON)
		if err != nil {
			return fmt.Errorf("inserting %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing records: %w", err)
	}
	return nil
}

// Query scans the filtered records and ranks them by cosine distance.
func (s *vectorStore) Query(
	ctx context.Context, collection string, embedding []float32, topK int, filter driven.Filter,
) ([]domain.RetrievedChunk, error) {
	if topK <= 0 {
		return nil, nil
	}
	where, args, err := buildWhere(collection, filter)
	if err != nil {
		return nil, err
	}

	rows, err := s.store.db.QueryContext(ctx,
		"SELECT id, text, embedding, metadata FROM records WHERE "+where, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", collection, err)
	}
	defer rows.Close()

	var hits []domain.RetrievedChunk
	for rows.Next() {
		var (
			id, text, metaJSON string
			blob               []byte
		)
		if err := rows.Scan(&id, &text, &blob, &metaJSON); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		meta, err := unmarshalMetadata(metaJSON)
		if err != nil {
			return nil, err
		}
		hits = append(hits, domain.RetrievedChunk{
			ID:       id,
			Text:     text,
			Metadata: meta,
			Distance: cosineDistance(embedding, bytesToFloat32Slice(blob)),
			Domain:   domain.KnowledgeDomain(domain.MetaString(meta, domain.MetaDomain, "")),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// Get returns every record matching the filter in insertion order.
func (s *vectorStore) Get(ctx context.Context, collection string, filter driven.Filter) ([]domain.Chunk, error) {
	where, args, err := buildWhere(collection, filter)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.db.QueryContext(ctx,
		"SELECT id, position, text, metadata FROM records WHERE "+where+" ORDER BY rowid", args...)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", collection, err)
	}
	defer rows.Close()

	var out []domain.Chunk
	for rows.Next() {
		var (
			c        domain.Chunk
			metaJSON string
		)
		if err := rows.Scan(&c.ID, &c.Position, &c.Text, &metaJSON); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		if c.Metadata, err = unmarshalMetadata(metaJSON); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateMetadata merges patch into one record's metadata.
func (s *vectorStore) UpdateMetadata(ctx context.Context, collection, id string, patch map[string]any) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var metaJSON string
	err = tx.QueryRowContext(ctx,
		"SELECT metadata FROM records WHERE collection = ? AND id = ?", collection, id).Scan(&metaJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: record %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("reading record %s: %w", id, err)
	}

	meta, err := unmarshalMetadata(metaJSON)
	if err != nil {
		return err
	}
	for k, v := range patch {
		meta[k] = v
	}
	merged, err := marshalMetadata(meta)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE records SET metadata = ? WHERE collection = ? AND id = ?", merged, collection, id); err != nil {
		return fmt.Errorf("updating record %s: %w", id, err)
	}
	return tx.Commit()
}

// Close is a no-op; the owning Store closes the database.
func (s *vectorStore) Close() error {
	return nil
}

// buildWhere turns an equality filter into json_extract predicates.
func buildWhere(collection string, filter driven.Filter) (string, []any, error) {
	clauses := []string{"collection = ?"}
	args := []any{collection}

	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if !metadataKey.MatchString(k) {
			return "", nil, fmt.Errorf("%w: metadata key %q", domain.ErrInvalidInput, k)
		}
		v := filter[k]
		if b, ok := v.(bool); ok {
			v = 0
			if b {
				v = 1
			}
		}
		clauses = append(clauses, "json_extract(metadata, ?) = ?")
		args = append(args, "$."+k, v)
	}
	return strings.Join(clauses, " AND "), args, nil
}

func marshalMetadata(meta map[string]any) (string, error) {
	if meta == nil {
		return "{}", nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("marshalling metadata: %w", err)
	}
	return string(data), nil
}

func unmarshalMetadata(s string) (map[string]any, error) {
	meta := make(map[string]any)
	if s == "" {
		return meta, nil
	}
	if err := json.Unmarshal([]byte(s), &meta); err != nil {
		return nil, fmt.Errorf("unmarshalling metadata: %w", err)
	}
	return meta, nil
}
