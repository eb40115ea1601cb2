package ledger

import "time"

// State is an appliance power state.
type State string

const (
	StateOn  State = "on"
	StateOff State = "off"
)

// Valid reports whether s is a recognized power state.
func (s State) Valid() bool {
	return s == StateOn || s == StateOff
}

// Trigger identifies the originator of a state change.
type Trigger string

const (
	// TriggerManual marks a change made directly by the user.
	TriggerManual Trigger = "manual"
	// TriggerAI marks a change made by the agent during a conversation.
	TriggerAI Trigger = "ai"
	// TriggerRoutine marks a change made by a scheduled routine.
	TriggerRoutine Trigger = "routine"
	// TriggerMaxDuration marks a forced shutoff by the safety monitor.
	TriggerMaxDuration Trigger = "max_duration"
	// TriggerAutonomous marks a change made by the hourly autonomous
	// analysis outside any conversation.
	TriggerAutonomous Trigger = "autonomous_ai"
)

// Appliance is one controllable device and its running usage totals.
//
// Invariant: State == StateOn exactly when LastTurnedOnAt != nil, so
// there is at most one open session per appliance.
type Appliance struct {
	UID         string `json:"uid"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`

	// PowerRatingKWhPerHour is the draw while on, in kWh per hour.
	PowerRatingKWhPerHour float64 `json:"powerRatingKWhPerHour"`

	State           State      `json:"state"`
	LastTurnedOnAt  *time.Time `json:"lastTurnedOnAt"`
	LastTurnedOffAt *time.Time `json:"lastTurnedOffAt"`

	// TotalUsageKWh is lifetime consumption. It only ever grows.
	TotalUsageKWh float64 `json:"totalUsageKWh"`
	// UsageSinceLastOn is the energy of the most recent closed session.
	UsageSinceLastOn float64 `json:"usageSinceLastOn"`

	// MaxOnDurationMinutes bounds continuous on-time; 0 is unlimited.
	MaxOnDurationMinutes int `json:"maxOnDurationMinutes"`
	PriorityLevel        int `json:"priorityLevel"`
}

// Session is one closed on/off interval, handed to the usage log when
// an appliance turns off.
type Session struct {
	ApplianceID     string
	ApplianceName   string
	Start           time.Time
	End             time.Time
	DurationSeconds float64
	EnergyKWh       float64
	Trigger         Trigger
}
