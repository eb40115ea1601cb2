// Package ledger owns the appliance collection: the on/off state
// machine, energy accrual at off transitions, and the add/update/delete
// surface behind the control tools and the HTTP API. All mutation goes
// through whole-collection read-modify-write on a versioned snapshot,
// so a crashed write never leaves a half-updated device behind.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/ParamSingh24/PrakashAI/internal/events"
	"github.com/ParamSingh24/PrakashAI/internal/storage"
)

var (
	// ErrNotFound is returned when an appliance UID is unknown.
	ErrNotFound = errors.New("appliance not found")
	// ErrInvalidState is returned for states other than on/off.
	ErrInvalidState = errors.New("invalid appliance state")
	// ErrNoFields is returned when a detail update names no editable field.
	ErrNoFields = errors.New("no editable fields in update")
)

// SessionRecorder receives closed usage sessions. The usage log store
// implements it; a nil recorder drops sessions.
type SessionRecorder interface {
	RecordSession(ctx context.Context, s Session) error
}

// Ledger manages the persisted appliance collection.
type Ledger struct {
	snap     *storage.Snapshot[Appliance]
	recorder SessionRecorder
	bus      *events.Bus
	log      *slog.Logger

	now func() time.Time
}

// New creates a Ledger over the given snapshot store. recorder and bus
// may be nil.
func New(snap *storage.Snapshot[Appliance], recorder SessionRecorder, bus *events.Bus, log *slog.Logger) *Ledger {
	if log == nil {
		log = slog.Default()
	}
	return &Ledger{
		snap:     snap,
		recorder: recorder,
		bus:      bus,
		log:      log,
		now:      time.Now,
	}
}

// SetState transitions an appliance to the requested state.
//
// Same-state calls are idempotent: no mutation, no usage entry. An
// off→on transition opens a session by stamping LastTurnedOnAt. An
// on→off transition closes the session, accrues its energy into the
// totals, and records a usage log entry carrying the trigger.
func (l *Ledger) SetState(ctx context.Context, uid string, state State, trigger Trigger) (Appliance, error) {
	if !state.Valid() {
		return Appliance{}, fmt.Errorf("set state %q: %w", state, ErrInvalidState)
	}

	var (
		result  Appliance
		session *Session
		changed bool
	)
	err := l.snap.Update(func(items []Appliance) ([]Appliance, error) {
		session = nil
		changed = false
		idx := indexOf(items, uid)
		if idx < 0 {
			return nil, fmt.Errorf("set state for %q: %w", uid, ErrNotFound)
		}

		a := items[idx]
		if a.State == state {
			result = a
			return items, nil
		}
		changed = true

		now := l.now()
		switch state {
		case StateOn:
			a.State = StateOn
			a.LastTurnedOnAt = &now
			a.LastTurnedOffAt = nil
		case StateOff:
			a.State = StateOff
			if a.LastTurnedOnAt != nil {
				start := *a.LastTurnedOnAt
				seconds := now.Sub(start).Seconds()
				energy := (seconds / 3600.0) * a.PowerRatingKWhPerHour
				a.TotalUsageKWh += energy
				a.UsageSinceLastOn = energy
				session = &Session{
					ApplianceID:     a.UID,
					ApplianceName:   a.Name,
					Start:           start,
					End:             now,
					DurationSeconds: seconds,
					EnergyKWh:       energy,
					Trigger:         trigger,
				}
			}
			a.LastTurnedOnAt = nil
			a.LastTurnedOffAt = &now
		}

		items[idx] = a
		result = a
		return items, nil
	})
	if err != nil {
		return Appliance{}, err
	}

	// Idempotent same-state calls publish nothing: bus, MQTT, and
	// websocket consumers only see transitions that happened.
	if !changed {
		l.log.Debug("appliance state unchanged", "uid", uid, "state", state)
		return result, nil
	}

	if session != nil && l.recorder != nil {
		if recErr := l.recorder.RecordSession(ctx, *session); recErr != nil {
			l.log.Error("record usage session", "uid", uid, "error", recErr)
		}
	}

	data := map[string]any{
		"uid":     result.UID,
		"name":    result.Name,
		"state":   string(result.State),
		"trigger": string(trigger),
	}
	if session != nil {
		data["energy_kwh"] = session.EnergyKWh
	}
	l.bus.Publish(events.Event{
		Timestamp: l.now(),
		Source:    events.SourceLedger,
		Kind:      events.KindStateChange,
		Data:      data,
	})
	l.log.Debug("appliance state set",
		"uid", uid, "state", state, "trigger", trigger)

	return result, nil
}

// Add registers a new appliance. The UID is generated; State, the
// session stamps, and the usage totals are reset regardless of input.
func (l *Ledger) Add(ctx context.Context, a Appliance) (Appliance, error) {
	if strings.TrimSpace(a.Name) == "" {
		return Appliance{}, errors.New("appliance name is required")
	}
	if a.PowerRatingKWhPerHour < 0 {
		return Appliance{}, errors.New("power rating must not be negative")
	}

	var result Appliance
	err := l.snap.Update(func(items []Appliance) ([]Appliance, error) {
		a.UID = newUID(items)
		a.State = StateOff
		a.LastTurnedOnAt = nil
		a.LastTurnedOffAt = nil
		a.TotalUsageKWh = 0
		a.UsageSinceLastOn = 0
		result = a
		return append(items, a), nil
	})
	if err != nil {
		return Appliance{}, err
	}

	l.log.Info("appliance added", "uid", result.UID, "name", result.Name)
	return result, nil
}

// editableFields is the fixed set a detail update may touch. State and
// the usage counters are only reachable through SetState.
var editableFields = map[string]struct{}{
	"name":                 {},
	"description":          {},
	"location":             {},
	"priorityLevel":        {},
	"maxOnDurationMinutes": {},
}

// UpdateDetails applies the editable subset of fields to an appliance.
// Fields outside the allow-list are ignored; if nothing in fields is
// editable the update fails with ErrNoFields.
func (l *Ledger) UpdateDetails(ctx context.Context, uid string, fields map[string]any) (Appliance, error) {
	applied := 0
	var result Appliance
	err := l.snap.Update(func(items []Appliance) ([]Appliance, error) {
		applied = 0
		idx := indexOf(items, uid)
		if idx < 0 {
			return nil, fmt.Errorf("update %q: %w", uid, ErrNotFound)
		}

		a := items[idx]
		for key, val := range fields {
			if _, ok := editableFields[key]; !ok {
				continue
			}
			switch key {
			case "name":
				if s, ok := val.(string); ok && strings.TrimSpace(s) != "" {
					a.Name = s
					applied++
				}
			case "description":
				if s, ok := val.(string); ok {
					a.Description = s
					applied++
				}
			case "location":
				if s, ok := val.(string); ok {
					a.Location = s
					applied++
				}
			case "priorityLevel":
				if n, ok := asInt(val); ok {
					a.PriorityLevel = n
					applied++
				}
			case "maxOnDurationMinutes":
				if n, ok := asInt(val); ok && n >= 0 {
					a.MaxOnDurationMinutes = n
					applied++
				}
			}
		}
		if applied == 0 {
			return nil, fmt.Errorf("update %q: %w", uid, ErrNoFields)
		}

		items[idx] = a
		result = a
		return items, nil
	})
	if err != nil {
		return Appliance{}, err
	}

	l.log.Info("appliance updated", "uid", uid, "fields", applied)
	return result, nil
}

// Delete removes an appliance. Callers that hold routine references
// are expected to strip them afterwards.
func (l *Ledger) Delete(ctx context.Context, uid string) error {
	err := l.snap.Update(func(items []Appliance) ([]Appliance, error) {
		idx := indexOf(items, uid)
		if idx < 0 {
			return nil, fmt.Errorf("delete %q: %w", uid, ErrNotFound)
		}
		return append(items[:idx], items[idx+1:]...), nil
	})
	if err != nil {
		return err
	}

	l.log.Info("appliance deleted", "uid", uid)
	return nil
}

// Get returns a single appliance by UID.
func (l *Ledger) Get(ctx context.Context, uid string) (Appliance, error) {
	items, _, err := l.snap.Load()
	if err != nil {
		return Appliance{}, err
	}
	idx := indexOf(items, uid)
	if idx < 0 {
		return Appliance{}, fmt.Errorf("get %q: %w", uid, ErrNotFound)
	}
	return items[idx], nil
}

// List returns the full appliance collection.
func (l *Ledger) List(ctx context.Context) ([]Appliance, error) {
	items, _, err := l.snap.Load()
	return items, err
}

// Match returns the appliances whose name or type contains query,
// case-insensitively. The literal query "all" matches everything.
func (l *Ledger) Match(ctx context.Context, query string) ([]Appliance, error) {
	items, _, err := l.snap.Load()
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(strings.TrimSpace(query))
	if q == "all" {
		return items, nil
	}

	var matched []Appliance
	for _, a := range items {
		if strings.Contains(strings.ToLower(a.Name), q) ||
			strings.Contains(strings.ToLower(a.Type), q) {
			matched = append(matched, a)
		}
	}
	return matched, nil
}

func indexOf(items []Appliance, uid string) int {
	for i, a := range items {
		if a.UID == uid {
			return i
		}
	}
	return -1
}

const uidAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// newUID generates a 5-character alphanumeric id unique within the
// collection.
func newUID(items []Appliance) string {
	for {
		b := make([]byte, 5)
		for i := range b {
			b[i] = uidAlphabet[rand.IntN(len(uidAlphabet))]
		}
		uid := string(b)
		if indexOf(items, uid) < 0 {
			return uid
		}
	}
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
