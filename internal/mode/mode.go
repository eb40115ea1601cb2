// Package mode holds the agent's operating mode in a small flag file.
// The flag is re-read from disk before every orchestration turn, so a
// mode switch made by one process (or by hand) takes effect on the
// next turn without a restart.
package mode

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Mode is an agent operating mode.
type Mode string

const (
	// Balanced weighs comfort and savings evenly.
	Balanced Mode = "balanced"
	// PowerSaving prefers savings over comfort.
	PowerSaving Mode = "power-saving"
	// Extreme cuts everything non-essential.
	Extreme Mode = "extreme"
)

// Valid reports whether m is a recognized mode.
func (m Mode) Valid() bool {
	return m == Balanced || m == PowerSaving || m == Extreme
}

// Parse normalizes a loose mode string ("power saving", "POWER_SAVING")
// to a Mode.
func Parse(s string) (Mode, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "-", "_", "-").Replace(norm)
	m := Mode(norm)
	if !m.Valid() {
		return "", fmt.Errorf("unknown operating mode %q", s)
	}
	return m, nil
}

type flagFile struct {
	Mode      Mode      `json:"mode"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Flag is the persisted mode flag.
type Flag struct {
	path string
	mu   sync.Mutex
}

// NewFlag opens (creating if needed) the flag file at path. A fresh
// flag starts in Balanced.
func NewFlag(path string) (*Flag, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	f := &Flag{path: path}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := f.Set(Balanced); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// Current reads the mode from disk. A missing or unreadable flag file
// reads as Balanced.
func (f *Flag) Current() Mode {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw, err := os.ReadFile(f.path)
	if err != nil {
		return Balanced
	}
	var ff flagFile
	if err := json.Unmarshal(raw, &ff); err != nil || !ff.Mode.Valid() {
		return Balanced
	}
	return ff.Mode
}

// Set writes the mode to disk.
func (f *Flag) Set(m Mode) error {
	if !m.Valid() {
		return fmt.Errorf("unknown operating mode %q", m)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	raw, err := json.MarshalIndent(flagFile{Mode: m, UpdatedAt: time.Now().UTC()}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal mode flag: %w", err)
	}
	if err := os.WriteFile(f.path, raw, 0o644); err != nil {
		return fmt.Errorf("write mode flag: %w", err)
	}
	return nil
}
