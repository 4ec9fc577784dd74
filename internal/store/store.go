// Package store persists saved tweets in a key/value table: one row per
// tweet, keyed by tweet id, holding the JSON-encoded record.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"tweetsaver/internal/database"
	"tweetsaver/internal/tweet"
)

var (
	// ErrMissingID is returned when saving a record without an id.
	ErrMissingID = errors.New("record has no id")
	// ErrNotFound is returned by Get for an unknown key.
	ErrNotFound = errors.New("saved tweet not found")
	// ErrNotRemoved is returned when a key is still present after Remove.
	ErrNotRemoved = errors.New("saved tweet was not removed")
)

// Store is the saved set.
type Store struct {
	db     *sql.DB
	path   string
	ownsDB bool
	mu     sync.RWMutex
}

// Open opens the store database at path, running migrations.
func Open(path string) (*Store, error) {
	db, err := database.Open(path)
	if err != nil {
		return nil, err
	}
	log.Info().Str("component", "store").Str("path", path).Msg("saved tweet store opened")
	return &Store{db: db, path: path, ownsDB: true}, nil
}

// New wraps an already configured database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Path returns the database file path, if known.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database when the store opened it.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ownsDB && s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

// LoadReport describes one enumeration of the store.
type LoadReport struct {
	Records []tweet.Record
	Skipped []string
}

// LoadAll returns every saved record in save order. Entries that fail to
// decode are logged and skipped.
func (s *Store) LoadAll(ctx context.Context) ([]tweet.Record, error) {
	report, err := s.LoadAllReport(ctx)
	if err != nil {
		return nil, err
	}
	return report.Records, nil
}

// LoadAllReport is LoadAll plus the keys of entries that were skipped.
func (s *Store) LoadAllReport(ctx context.Context) (LoadReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM saved_tweets ORDER BY seq")
	if err != nil {
		return LoadReport{}, fmt.Errorf("failed to query saved tweets: %w", err)
	}
	defer rows.Close()

	report := LoadReport{Records: []tweet.Record{}}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return LoadReport{}, fmt.Errorf("failed to scan saved tweet: %w", err)
		}

		rec, err := decode(key, value)
		if err != nil {
			log.Warn().Str("component", "store").Str("key", key).Err(err).Msg("skipping corrupt saved tweet")
			report.Skipped = append(report.Skipped, key)
			continue
		}
		report.Records = append(report.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return LoadReport{}, fmt.Errorf("failed to iterate saved tweets: %w", err)
	}

	return report, nil
}

// Save stores rec under its id. Saving an id that is already present leaves
// the existing entry untouched.
func (s *Store) Save(ctx context.Context, rec tweet.Record) error {
	if !rec.Valid() {
		return ErrMissingID
	}

	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode tweet %s: %w", rec.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO saved_tweets (key, value) VALUES (?, ?) ON CONFLICT(key) DO NOTHING",
		rec.ID, string(value),
	)
	if err != nil {
		return fmt.Errorf("failed to save tweet %s: %w", rec.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		log.Debug().Str("component", "store").Str("key", rec.ID).Msg("tweet already saved")
	}
	return nil
}

// Exists reports whether id is in the saved set.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.exists(ctx, id)
}

func (s *Store) exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM saved_tweets WHERE key = ?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up tweet %s: %w", id, err)
	}
	return true, nil
}

// Get returns the saved record for id.
func (s *Store) Get(ctx context.Context, id string) (tweet.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM saved_tweets WHERE key = ?", id).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return tweet.Record{}, ErrNotFound
	}
	if err != nil {
		return tweet.Record{}, fmt.Errorf("failed to load tweet %s: %w", id, err)
	}
	return decode(id, value)
}

// Count returns the number of saved entries, corrupt ones included.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM saved_tweets").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count saved tweets: %w", err)
	}
	return n, nil
}

// Remove deletes id and confirms the key is gone before reporting success.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM saved_tweets WHERE key = ?", id); err != nil {
		return fmt.Errorf("failed to remove tweet %s: %w", id, err)
	}

	still, err := s.exists(ctx, id)
	if err != nil {
		return err
	}
	if still {
		return fmt.Errorf("%w: %s", ErrNotRemoved, id)
	}
	return nil
}

func decode(key, value string) (tweet.Record, error) {
	var rec tweet.Record
	if err := json.Unmarshal([]byte(value), &rec); err != nil {
		return tweet.Record{}, fmt.Errorf("failed to decode tweet %s: %w", key, err)
	}
	if rec.ID == "" {
		rec.ID = key
	}
	return rec, nil
}
