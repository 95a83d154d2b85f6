// Package store persists the session-context table. The whole table is one
// durable JSON artifact: every mutation is followed by a full-table write,
// serialized process-wide, with an atomic rename so readers never observe a
// partial file. Legacy-format entries are upgraded in place at load time.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/amadou/relais/pkg/convo"
)

// ErrMissingStore indicates the durable artifact does not exist yet. Callers
// treat this as an empty table, not a fatal condition.
var ErrMissingStore = errors.New("session store file does not exist")

// Store owns the durable session-context table.
type Store struct {
	path   string
	logger zerolog.Logger

	mu    sync.RWMutex // guards table
	table convo.Table

	saveMu   sync.Mutex // serializes full-table writes process-wide
	savedAt  time.Time  // mod time of our last successful write
	loadedAt time.Time  // mod time observed at last load
}

// Open creates a store bound to path and loads the table. A missing file
// yields an empty table. Legacy entries are migrated and the migrated form
// is written back immediately, so the on-disk format self-heals.
func Open(path string, logger zerolog.Logger) (*Store, error) {
	s := &Store{
		path:   path,
		logger: logger.With().Str("component", "store").Logger(),
		table:  make(convo.Table),
	}

	table, migrated, err := s.load()
	if err != nil {
		if errors.Is(err, ErrMissingStore) {
			s.logger.Info().Str("path", path).Msg("No session store yet, starting empty")
			return s, nil
		}
		return nil, err
	}

	s.table = table
	if migrated {
		if err := s.Save(); err != nil {
			return nil, fmt.Errorf("failed to rewrite migrated store: %w", err)
		}
		s.logger.Info().Int("sessions", len(table)).Msg("Session store migrated to structured format")
	} else {
		s.logger.Info().Int("sessions", len(table)).Msg("Session store loaded")
	}

	return s, nil
}

// load reads and migrates the table from disk. The second return value
// reports whether any entry needed the legacy upgrade.
func (s *Store) load() (convo.Table, bool, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, ErrMissingStore
		}
		return nil, false, fmt.Errorf("failed to stat session store: %w", err)
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read session store: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, false, fmt.Errorf("failed to parse session store: %w", err)
	}

	table, err := convo.MigrateRaw(raw)
	if err != nil {
		return nil, false, fmt.Errorf("failed to migrate session store: %w", err)
	}

	migrated := false
	for id := range raw {
		if len(raw[id]) > 0 && raw[id][0] == '"' {
			migrated = true
			break
		}
	}

	s.loadedAt = info.ModTime()
	return table, migrated, nil
}

// Get returns a copy of the context for a session.
func (s *Store) Get(sessionID string) (convo.Context, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.table[sessionID]
	return c.Clone(), ok
}

// Set replaces a session's context in memory. Call Save to persist.
func (s *Store) Set(sessionID string, c convo.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table[sessionID] = c.Clone()
}

// Has reports whether a context exists for the session.
func (s *Store) Has(sessionID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.table[sessionID]
	return ok
}

// Len returns the number of sessions in the table.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.table)
}

// Save writes the entire table to disk. Saves are full-table replacements,
// last writer wins; the saveMu keeps concurrent sessions from interleaving
// partial writes.
func (s *Store) Save() error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.RLock()
	data, err := json.MarshalIndent(s.table, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal session store: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write session store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace session store: %w", err)
	}

	if info, err := os.Stat(s.path); err == nil {
		s.savedAt = info.ModTime()
	}
	return nil
}

// Reload re-reads the table from disk if the file changed since our last
// write, dropping in-memory state for sessions edited out-of-band. Used by
// the watcher; last writer wins.
func (s *Store) Reload() error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	info, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat session store: %w", err)
	}
	if !info.ModTime().After(s.savedAt) {
		// Our own write, nothing external to pick up.
		return nil
	}

	table, _, err := s.load()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.table = table
	s.mu.Unlock()

	s.logger.Warn().Int("sessions", len(table)).Msg("Session store reloaded from external edit")
	return nil
}

// Path returns the durable artifact path.
func (s *Store) Path() string {
	return s.path
}
