// Package routines stores scheduled action lists and evaluates them on
// a fixed tick. A routine fires when its HH:MM matches the current
// minute and its day list contains the current weekday; each action
// resolves a loose command string to a target state and drives the
// appliance ledger.
package routines

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ParamSingh24/PrakashAI/internal/storage"
)

// Creator identifies who installed a routine.
type Creator string

const (
	CreatorUser       Creator = "user"
	CreatorAI         Creator = "ai"
	CreatorAutonomous Creator = "autonomous_ai"
)

// Schedule is when a routine fires.
type Schedule struct {
	// Time is the firing minute in 24h "HH:MM" form.
	Time string `json:"time"`
	// Days are weekday names ("Monday", ...), matched case-insensitively.
	Days []string `json:"days"`
}

// Action is one appliance command within a routine.
type Action struct {
	ApplianceID string `json:"applianceId"`
	Command     string `json:"command"`
}

// Routine is a named, scheduled list of appliance actions.
type Routine struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Schedule  Schedule `json:"schedule"`
	Actions   []Action `json:"actions"`
	CreatedBy Creator  `json:"createdBy"`
}

// ErrNotFound is returned when a routine ID is unknown.
var ErrNotFound = errors.New("routine not found")

// Store persists the routine collection as a versioned snapshot.
type Store struct {
	snap *storage.Snapshot[Routine]
}

// NewStore creates a routine store over snap.
func NewStore(snap *storage.Snapshot[Routine]) *Store {
	return &Store{snap: snap}
}

// Create validates and persists a routine, assigning its ID.
func (s *Store) Create(ctx context.Context, r Routine) (Routine, error) {
	if strings.TrimSpace(r.Name) == "" {
		return Routine{}, errors.New("routine name is required")
	}
	if err := validateTime(r.Schedule.Time); err != nil {
		return Routine{}, err
	}
	if len(r.Schedule.Days) == 0 {
		return Routine{}, errors.New("routine needs at least one day")
	}
	for _, d := range r.Schedule.Days {
		if !validDay(d) {
			return Routine{}, fmt.Errorf("unknown weekday %q", d)
		}
	}
	if len(r.Actions) == 0 {
		return Routine{}, errors.New("routine needs at least one action")
	}
	if r.CreatedBy == "" {
		r.CreatedBy = CreatorUser
	}

	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	r.ID = id.String()

	err = s.snap.Update(func(items []Routine) ([]Routine, error) {
		return append(items, r), nil
	})
	if err != nil {
		return Routine{}, err
	}
	return r, nil
}

// Delete removes a routine by ID.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.snap.Update(func(items []Routine) ([]Routine, error) {
		for i, r := range items {
			if r.ID == id {
				return append(items[:i], items[i+1:]...), nil
			}
		}
		return nil, fmt.Errorf("delete routine %q: %w", id, ErrNotFound)
	})
}

// List returns every routine.
func (s *Store) List(ctx context.Context) ([]Routine, error) {
	items, _, err := s.snap.Load()
	return items, err
}

// ClearByCreator removes all routines installed by creator and reports
// how many were removed. Operating-mode switches use this to reset the
// agent's own routines.
func (s *Store) ClearByCreator(ctx context.Context, creator Creator) (int, error) {
	removed := 0
	err := s.snap.Update(func(items []Routine) ([]Routine, error) {
		removed = 0
		kept := items[:0]
		for _, r := range items {
			if r.CreatedBy == creator {
				removed++
				continue
			}
			kept = append(kept, r)
		}
		return kept, nil
	})
	return removed, err
}

// StripAppliance removes every action referencing applianceID, then
// drops routines left with no actions. Called when an appliance is
// deleted.
func (s *Store) StripAppliance(ctx context.Context, applianceID string) error {
	return s.snap.Update(func(items []Routine) ([]Routine, error) {
		kept := items[:0]
		for _, r := range items {
			actions := r.Actions[:0]
			for _, a := range r.Actions {
				if a.ApplianceID != applianceID {
					actions = append(actions, a)
				}
			}
			r.Actions = actions
			if len(r.Actions) > 0 {
				kept = append(kept, r)
			}
		}
		return kept, nil
	})
}

func validateTime(hhmm string) error {
	if _, err := time.Parse("15:04", hhmm); err != nil {
		return fmt.Errorf("schedule time %q is not HH:MM", hhmm)
	}
	return nil
}

var weekdays = map[string]struct{}{
	"sunday": {}, "monday": {}, "tuesday": {}, "wednesday": {},
	"thursday": {}, "friday": {}, "saturday": {},
}

func validDay(name string) bool {
	_, ok := weekdays[strings.ToLower(strings.TrimSpace(name))]
	return ok
}
