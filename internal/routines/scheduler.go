package routines

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/ParamSingh24/PrakashAI/internal/events"
	"github.com/ParamSingh24/PrakashAI/internal/ledger"
)

// StateSetter is the slice of the appliance ledger the scheduler
// needs.
type StateSetter interface {
	SetState(ctx context.Context, uid string, state ledger.State, trigger ledger.Trigger) (ledger.Appliance, error)
}

// Scheduler evaluates routines once per tick against the wall clock.
type Scheduler struct {
	store  *Store
	setter StateSetter
	bus    *events.Bus
	log    *slog.Logger
}

// NewScheduler creates a routine scheduler. bus may be nil.
func NewScheduler(store *Store, setter StateSetter, bus *events.Bus, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{store: store, setter: setter, bus: bus, log: log}
}

// Tick fires every routine whose schedule matches now. Failures on one
// action do not stop the rest; the tick reports the number of actions
// executed.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) int {
	list, err := s.store.List(ctx)
	if err != nil {
		s.log.Error("load routines", "error", err)
		return 0
	}

	hhmm := now.Format("15:04")
	weekday := strings.ToLower(now.Weekday().String())

	executed := 0
	for _, r := range list {
		if r.Schedule.Time != hhmm || !containsDay(r.Schedule.Days, weekday) {
			continue
		}

		fired := 0
		for _, action := range r.Actions {
			state, ok := ResolveCommand(action.Command)
			if !ok {
				s.log.Warn("routine action has unrecognized command",
					"routine", r.Name, "appliance", action.ApplianceID,
					"command", action.Command)
				continue
			}
			if _, err := s.setter.SetState(ctx, action.ApplianceID, state, ledger.TriggerRoutine); err != nil {
				s.log.Error("routine action failed",
					"routine", r.Name, "appliance", action.ApplianceID, "error", err)
				continue
			}
			fired++
		}
		executed += fired

		s.bus.Publish(events.Event{
			Timestamp: now,
			Source:    events.SourceRoutine,
			Kind:      events.KindRoutineFired,
			Data: map[string]any{
				"routine_id": r.ID,
				"name":       r.Name,
				"actions":    fired,
			},
		})
		s.log.Info("routine fired", "name", r.Name, "actions", fired)
	}
	return executed
}

// ResolveCommand maps a loose command string to a target state.
// Exact "turnOn"/"turnOff" win; otherwise a string containing "on" but
// not "off" means on, and one containing "off" means off. Anything
// else is unrecognized.
func ResolveCommand(command string) (ledger.State, bool) {
	switch command {
	case "turnOn":
		return ledger.StateOn, true
	case "turnOff":
		return ledger.StateOff, true
	}

	c := strings.ToLower(command)
	hasOn := strings.Contains(c, "on")
	hasOff := strings.Contains(c, "off")
	switch {
	case hasOn && !hasOff:
		return ledger.StateOn, true
	case hasOff:
		return ledger.StateOff, true
	default:
		return "", false
	}
}

func containsDay(days []string, weekday string) bool {
	for _, d := range days {
		if strings.ToLower(strings.TrimSpace(d)) == weekday {
			return true
		}
	}
	return false
}
