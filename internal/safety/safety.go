// Package safety watches the appliance ledger for trouble: devices
// left on far too long, devices due for maintenance, and devices that
// blew past their on-time budget and must be forced off.
package safety

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ParamSingh24/PrakashAI/internal/events"
	"github.com/ParamSingh24/PrakashAI/internal/ledger"
)

// Ledger is the slice of the appliance ledger the monitor needs.
type Ledger interface {
	List(ctx context.Context) ([]ledger.Appliance, error)
	SetState(ctx context.Context, uid string, state ledger.State, trigger ledger.Trigger) (ledger.Appliance, error)
}

// Anomaly flags an appliance that has been running suspiciously long.
type Anomaly struct {
	ApplianceID string  `json:"applianceId"`
	Name        string  `json:"name"`
	HoursOn     float64 `json:"hoursOn"`
	Suggestion  string  `json:"suggestion"`
}

// MaintenanceAlert flags an appliance past its service threshold.
type MaintenanceAlert struct {
	ApplianceID    string  `json:"applianceId"`
	Name           string  `json:"name"`
	Type           string  `json:"type"`
	TotalUsageKWh  float64 `json:"totalUsageKWh"`
	ThresholdKWh   float64 `json:"thresholdKWh"`
	Recommendation string  `json:"recommendation"`
}

// Monitor runs the safety checks against the ledger.
type Monitor struct {
	ledger Ledger
	bus    *events.Bus
	log    *slog.Logger

	// anomalyThreshold is how long an appliance may stay on before it
	// is flagged as suspicious.
	anomalyThreshold time.Duration
	// maintenanceThresholds maps appliance type to a lifetime kWh
	// service threshold.
	maintenanceThresholds map[string]float64
}

// NewMonitor creates a safety monitor. bus may be nil.
func NewMonitor(l Ledger, anomalyThresholdHours float64, maintenanceThresholds map[string]float64, bus *events.Bus, log *slog.Logger) *Monitor {
	if log == nil {
		log = slog.Default()
	}
	return &Monitor{
		ledger:                l,
		bus:                   bus,
		log:                   log,
		anomalyThreshold:      time.Duration(anomalyThresholdHours * float64(time.Hour)),
		maintenanceThresholds: maintenanceThresholds,
	}
}

// DetectAnomalies flags every appliance that has been on longer than
// the anomaly threshold.
func (m *Monitor) DetectAnomalies(ctx context.Context, now time.Time) ([]Anomaly, error) {
	items, err := m.ledger.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list appliances: %w", err)
	}

	var anomalies []Anomaly
	for _, a := range items {
		if a.State != ledger.StateOn || a.LastTurnedOnAt == nil {
			continue
		}
		elapsed := now.Sub(*a.LastTurnedOnAt)
		if elapsed <= m.anomalyThreshold {
			continue
		}

		hours := elapsed.Hours()
		anomalies = append(anomalies, Anomaly{
			ApplianceID: a.UID,
			Name:        a.Name,
			HoursOn:     hours,
			Suggestion: fmt.Sprintf("%s has been on for %.1f hours. Consider turning it off if it is not needed.",
				a.Name, hours),
		})

		m.bus.Publish(events.Event{
			Timestamp: now,
			Source:    events.SourceSafety,
			Kind:      events.KindAnomalyFlagged,
			Data: map[string]any{
				"uid":      a.UID,
				"name":     a.Name,
				"hours_on": hours,
			},
		})
	}
	return anomalies, nil
}

// CheckMaintenance flags appliances whose lifetime consumption crossed
// the service threshold for their type. Types without a configured
// threshold are never flagged.
func (m *Monitor) CheckMaintenance(ctx context.Context) ([]MaintenanceAlert, error) {
	items, err := m.ledger.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list appliances: %w", err)
	}

	var alerts []MaintenanceAlert
	for _, a := range items {
		threshold, ok := m.maintenanceThresholds[a.Type]
		if !ok || a.TotalUsageKWh <= threshold {
			continue
		}
		alerts = append(alerts, MaintenanceAlert{
			ApplianceID:   a.UID,
			Name:          a.Name,
			Type:          a.Type,
			TotalUsageKWh: a.TotalUsageKWh,
			ThresholdKWh:  threshold,
			Recommendation: fmt.Sprintf("%s has consumed %.1f kWh, past its %.0f kWh service threshold. Schedule maintenance.",
				a.Name, a.TotalUsageKWh, threshold),
		})
	}
	return alerts, nil
}

// EnforceMaxDurations forces off every running appliance whose
// continuous on-time exceeds its own MaxOnDurationMinutes budget.
// Returns the number of appliances turned off.
func (m *Monitor) EnforceMaxDurations(ctx context.Context, now time.Time) int {
	items, err := m.ledger.List(ctx)
	if err != nil {
		m.log.Error("list appliances", "error", err)
		return 0
	}

	forced := 0
	for _, a := range items {
		if a.State != ledger.StateOn || a.LastTurnedOnAt == nil || a.MaxOnDurationMinutes <= 0 {
			continue
		}
		onFor := now.Sub(*a.LastTurnedOnAt)
		budget := time.Duration(a.MaxOnDurationMinutes) * time.Minute
		if onFor <= budget {
			continue
		}

		if _, err := m.ledger.SetState(ctx, a.UID, ledger.StateOff, ledger.TriggerMaxDuration); err != nil {
			m.log.Error("force off failed", "uid", a.UID, "error", err)
			continue
		}
		forced++

		m.bus.Publish(events.Event{
			Timestamp: now,
			Source:    events.SourceSafety,
			Kind:      events.KindForcedOff,
			Data: map[string]any{
				"uid":            a.UID,
				"name":           a.Name,
				"minutes_on":     onFor.Minutes(),
				"budget_minutes": a.MaxOnDurationMinutes,
			},
		})
		m.log.Warn("appliance forced off after exceeding max on-duration",
			"uid", a.UID, "name", a.Name,
			"minutes_on", int(onFor.Minutes()), "budget_minutes", a.MaxOnDurationMinutes)
	}
	return forced
}
