// Package state persists the small per-widget records that survive a
// restart. The payload is a single JSON object keyed by each participant's
// stable key.
package state

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	defs "pidrive/definitions"
	er "pidrive/errors"
	log "pidrive/logger"
)

// Stateful is implemented by anything with state worth keeping across a
// restart.
type Stateful interface {
	// StateKey must be stable and unique across reloads.
	StateKey() string
	// State returns a pointer to the persisted payload. The store
	// unmarshals into it on restore and marshals from it on save.
	State() any
	// OnLoad runs after the payload has been restored (or left at its
	// defaults when no entry exists).
	OnLoad() error
}

// Store reads and writes one JSON state file.
type Store struct {
	path    string
	entries map[string]json.RawMessage
}

func NewStore(path string) *Store {
	return &Store{
		path:    path,
		entries: map[string]json.RawMessage{},
	}
}

func DefaultStore() *Store {
	return NewStore(filepath.Join(defs.StateDir, defs.StateFile))
}

// Load reads the state file. A missing file is an empty store, not an error.
func (s *Store) Load() error {
	content, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "failed to read state file")
	}
	if err := json.Unmarshal(content, &s.entries); err != nil {
		return errors.Wrap(err, "failed to unmarshal state file")
	}
	return nil
}

// Restore applies the stored entry for p (when one exists) and then runs
// its OnLoad hook.
func (s *Store) Restore(p Stateful) error {
	key := p.StateKey()
	if key == "" {
		return er.EmptyStateKey
	}

	if raw, ok := s.entries[key]; ok {
		if err := json.Unmarshal(raw, p.State()); err != nil {
			return errors.Wrapf(err, "failed to restore state for %q", key)
		}
	} else {
		log.Debugf("no persisted state for %q, using defaults", key)
	}

	return p.OnLoad()
}

// Save collects every participant's payload and rewrites the state file
// atomically.
func (s *Store) Save(participants ...Stateful) error {
	for _, p := range participants {
		key := p.StateKey()
		if key == "" {
			return er.EmptyStateKey
		}
		raw, err := json.Marshal(p.State())
		if err != nil {
			return errors.Wrapf(err, "failed to serialize state for %q", key)
		}
		s.entries[key] = raw
	}

	content, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to serialize state file")
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return errors.Wrap(err, "failed to create state dir")
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, content, defs.FileMode); err != nil {
		return errors.Wrap(err, "failed to write state file")
	}
	return os.Rename(tmp, s.path)
}
