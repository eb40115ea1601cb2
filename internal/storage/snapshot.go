// Package storage provides versioned whole-collection persistence for
// the small domain snapshots (appliances, routines, user profiles).
// Each snapshot is a single JSON file rewritten in full on every
// mutation. Before a write the previous file is copied to a .backup
// sibling; a failed write restores the backup so a crash mid-save
// never leaves a corrupt collection behind.
//
// A monotonically increasing version stamp rides alongside the data.
// Mutators read the version with the collection and pass it back on
// save; a mismatch means another writer got there first and the save
// fails with ErrConflict instead of silently dropping their update.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// ErrConflict is returned when a save carries a stale version stamp.
var ErrConflict = errors.New("snapshot modified by another writer")

// envelope is the on-disk shape: the payload plus its version stamp.
type envelope struct {
	Version int64           `json:"version"`
	Data    json.RawMessage `json:"data"`
}

// Snapshot is a versioned JSON file store for a collection of T.
// All methods are safe for concurrent use within one process.
type Snapshot[T any] struct {
	path string

	mu sync.Mutex
}

// NewSnapshot creates a snapshot store at path, creating the parent
// directory and an empty collection file if none exists.
func NewSnapshot[T any](path string) (*Snapshot[T], error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	s := &Snapshot[T]{path: path}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		var empty []T
		if err := s.write(envelope{Version: 0}, empty); err != nil {
			return nil, fmt.Errorf("initialize snapshot: %w", err)
		}
	}

	return s, nil
}

// Load reads the full collection and its version stamp.
func (s *Snapshot[T]) Load() ([]T, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Snapshot[T]) load() ([]T, int64, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, 0, fmt.Errorf("read snapshot %s: %w", filepath.Base(s.path), err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, 0, fmt.Errorf("parse snapshot %s: %w", filepath.Base(s.path), err)
	}

	var items []T
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &items); err != nil {
			return nil, 0, fmt.Errorf("parse snapshot %s: %w", filepath.Base(s.path), err)
		}
	}
	return items, env.Version, nil
}

// Save writes the full collection. version must match the stamp
// returned by the Load that produced items, otherwise ErrConflict.
// On a write failure the previous file contents are restored from the
// backup copy and the error is returned.
func (s *Snapshot[T]) Save(items []T, version int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, current, err := s.load()
	if err != nil {
		return err
	}
	if current != version {
		return fmt.Errorf("save %s: %w", filepath.Base(s.path), ErrConflict)
	}

	if err := copyFile(s.path, s.path+".backup"); err != nil {
		return fmt.Errorf("backup snapshot: %w", err)
	}

	if err := s.write(envelope{Version: version + 1}, items); err != nil {
		if restoreErr := copyFile(s.path+".backup", s.path); restoreErr != nil {
			return fmt.Errorf("write snapshot: %w (restore also failed: %v)", err, restoreErr)
		}
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// Update loads the collection, applies fn, and saves the result under
// the loaded version. Retries once on conflict so the common case of
// two schedulers ticking together does not surface to callers.
func (s *Snapshot[T]) Update(fn func(items []T) ([]T, error)) error {
	for attempt := 0; ; attempt++ {
		items, version, err := s.Load()
		if err != nil {
			return err
		}

		updated, err := fn(items)
		if err != nil {
			return err
		}

		err = s.Save(updated, version)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrConflict) && attempt == 0 {
			continue
		}
		return err
	}
}

func (s *Snapshot[T]) write(env envelope, items []T) error {
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	env.Data = data

	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	return os.WriteFile(s.path, raw, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
