// Package cache provides TTL-aware storage of computed comparison results.
// Entries are stored in cache.db as JSON blobs keyed by (facet, comparison_id).
package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/lookout/internal/domain"
)

// TTLSource supplies the current cache timeout. Freshness is re-evaluated
// against it on every read, so a settings change takes effect immediately
// for existing entries.
type TTLSource interface {
	CacheTimeout() time.Duration
}

// Entry is a cached comparison result. Entries are created or overwritten
// only on successful completion of a request for their key, never
// partially written.
type Entry struct {
	Facet        domain.Facet    `json:"facet"`
	ComparisonID string          `json:"comparison_id"`
	Data         json.RawMessage `json:"data"`
	Timestamp    time.Time       `json:"timestamp"`
}

// Store is the sole owner of all cache entries. The orchestrator is the
// only writer.
type Store struct {
	db  *sql.DB
	ttl TTLSource
	log zerolog.Logger
}

// NewStore creates a cache store backed by cache.db.
func NewStore(db *sql.DB, ttl TTLSource, log zerolog.Logger) *Store {
	return &Store{
		db:  db,
		ttl: ttl,
		log: log.With().Str("component", "cache_store").Logger(),
	}
}

// Get returns the entry for (facet, comparisonID), or nil when no entry
// exists or the entry has expired. Callers cannot distinguish absent from
// stale; both are cache misses.
func (s *Store) Get(facet domain.Facet, comparisonID string) (*Entry, error) {
	var (
		data      string
		createdAt int64
	)
	err := s.db.QueryRow(
		"SELECT data, created_at FROM comparison_cache WHERE facet = ? AND comparison_id = ?",
		string(facet), comparisonID,
	).Scan(&data, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry %s/%s: %w", facet, comparisonID, err)
	}

	ts := time.UnixMilli(createdAt)
	if time.Since(ts) >= s.ttl.CacheTimeout() {
		// Expired entries are treated as misses, never surfaced as errors.
		return nil, nil
	}

	return &Entry{
		Facet:        facet,
		ComparisonID: comparisonID,
		Data:         json.RawMessage(data),
		Timestamp:    ts,
	}, nil
}

// Put stores data for (facet, comparisonID), replacing any prior entry.
// Last write wins; there are no merge semantics.
func (s *Store) Put(facet domain.Facet, comparisonID string, data json.RawMessage) error {
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO comparison_cache (facet, comparison_id, data, created_at) VALUES (?, ?, ?, ?)",
		string(facet), comparisonID, string(data), time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to store cache entry %s/%s: %w", facet, comparisonID, err)
	}
	return nil
}

// SweepExpired deletes entries older than the current TTL as of now.
// Returns the number of rows deleted per facet namespace. Sweeping only
// frees storage; it does not invalidate in-flight requests.
func (s *Store) SweepExpired(now time.Time) (map[domain.Facet]int64, error) {
	cutoff := now.Add(-s.ttl.CacheTimeout()).UnixMilli()
	results := make(map[domain.Facet]int64)

	for _, facet := range domain.AllFacets {
		res, err := s.db.Exec(
			"DELETE FROM comparison_cache WHERE facet = ? AND created_at <= ?",
			string(facet), cutoff,
		)
		if err != nil {
			return results, fmt.Errorf("failed to sweep facet %s: %w", facet, err)
		}
		deleted, err := res.RowsAffected()
		if err != nil {
			return results, fmt.Errorf("failed to count swept rows for %s: %w", facet, err)
		}
		results[facet] = deleted
	}

	return results, nil
}

// Clear removes every entry. Exposed for the manual maintenance endpoint.
func (s *Store) Clear() error {
	if _, err := s.db.Exec("DELETE FROM comparison_cache"); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}

// EntryCount returns the total number of entries, expired or not.
func (s *Store) EntryCount() (int64, error) {
	var n int64
	if err := s.db.QueryRow("SELECT COUNT(*) FROM comparison_cache").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count cache entries: %w", err)
	}
	return n, nil
}
