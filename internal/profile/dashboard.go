package profile

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/ParamSingh24/PrakashAI/internal/cost"
	"github.com/ParamSingh24/PrakashAI/internal/ledger"
	"github.com/ParamSingh24/PrakashAI/internal/projection"
	"github.com/ParamSingh24/PrakashAI/internal/routines"
	"github.com/ParamSingh24/PrakashAI/internal/usagelog"
)

// Refresher recomputes the dashboard block from the usage log, the
// appliance ledger, and the routine store.
type Refresher struct {
	profiles  *Store
	usage     *usagelog.Store
	appliances *ledger.Ledger
	routines  *routines.Store
	log       *slog.Logger

	now func() time.Time
}

// NewRefresher creates a dashboard refresher.
func NewRefresher(profiles *Store, usage *usagelog.Store, appliances *ledger.Ledger, routineStore *routines.Store, log *slog.Logger) *Refresher {
	if log == nil {
		log = slog.Default()
	}
	return &Refresher{
		profiles:   profiles,
		usage:      usage,
		appliances: appliances,
		routines:   routineStore,
		log:        log,
		now:        time.Now,
	}
}

// Refresh rebuilds and persists the dashboard for the household
// profile, returning the new block.
func (r *Refresher) Refresh(ctx context.Context) (Dashboard, error) {
	user, err := r.profiles.Current(ctx)
	if err != nil {
		return Dashboard{}, err
	}

	entries, err := r.usage.All(ctx)
	if err != nil {
		return Dashboard{}, fmt.Errorf("load usage log: %w", err)
	}
	appliances, err := r.appliances.List(ctx)
	if err != nil {
		return Dashboard{}, fmt.Errorf("load appliances: %w", err)
	}
	routineList, err := r.routines.List(ctx)
	if err != nil {
		return Dashboard{}, fmt.Errorf("load routines: %w", err)
	}

	now := r.now()

	totalKWh := 0.0
	for _, e := range entries {
		totalKWh += e.EnergyKWh
	}
	totalCost := round2(cost.Cost(totalKWh))

	top := topConsumers(entries, appliances, 5)

	forecast := projection.Project(projection.Inputs{
		CurrentUsageKWh: totalKWh,
		CurrentCost:     totalCost,
		DaysPassed:      now.Day(),
		MonthlyBudget:   user.MonthlyBudget,
	}, entries, now)

	d := Dashboard{
		TotalUsageKWh:  round4(totalKWh),
		TotalCost:      totalCost,
		ProjectedCost:  forecast.ProjectedCost,
		TopConsumers:   top,
		Confidence:     string(forecast.Confidence),
		LastCalculated: now,
	}
	d.Suggestions = buildSuggestions(d, user, appliances, routineList, forecast)

	if err := r.profiles.SetDashboard(ctx, user.UID, d); err != nil {
		return Dashboard{}, fmt.Errorf("save dashboard: %w", err)
	}

	r.log.Info("dashboard refreshed",
		"total_kwh", d.TotalUsageKWh,
		"projected_cost", d.ProjectedCost,
		"confidence", d.Confidence)
	return d, nil
}

// topConsumers aggregates the usage log per appliance and returns the
// n heaviest, by name (falling back to the raw id for deleted
// appliances).
func topConsumers(entries []usagelog.Entry, appliances []ledger.Appliance, n int) []Consumer {
	names := make(map[string]string, len(appliances))
	for _, a := range appliances {
		names[a.UID] = a.Name
	}

	byName := make(map[string]float64)
	for _, e := range entries {
		name, ok := names[e.ApplianceID]
		if !ok {
			name = e.ApplianceID
		}
		byName[name] += e.EnergyKWh
	}

	consumers := make([]Consumer, 0, len(byName))
	for name, kwh := range byName {
		consumers = append(consumers, Consumer{Name: name, UsageKWh: round4(kwh)})
	}
	sort.Slice(consumers, func(i, j int) bool {
		if consumers[i].UsageKWh != consumers[j].UsageKWh {
			return consumers[i].UsageKWh > consumers[j].UsageKWh
		}
		return consumers[i].Name < consumers[j].Name
	})
	if len(consumers) > n {
		consumers = consumers[:n]
	}
	return consumers
}

func buildSuggestions(d Dashboard, user User, appliances []ledger.Appliance, routineList []routines.Routine, forecast projection.Forecast) []string {
	var suggestions []string

	if user.MonthlyBudget > 0 && d.ProjectedCost > user.MonthlyBudget {
		suggestions = append(suggestions, fmt.Sprintf(
			"Warning: you are on track to exceed your %.0f budget. Projected bill: %.2f.",
			user.MonthlyBudget, d.ProjectedCost))
	}

	if len(d.TopConsumers) > 0 {
		top := d.TopConsumers[0]

		if d.TotalUsageKWh > 0 && top.UsageKWh > d.TotalUsageKWh*0.4 {
			suggestions = append(suggestions, fmt.Sprintf(
				"%s is your highest energy consumer. Consider reducing its usage to save money.", top.Name))
		}

		var topAppliance *ledger.Appliance
		for i := range appliances {
			if appliances[i].Name == top.Name {
				topAppliance = &appliances[i]
				break
			}
		}
		if topAppliance != nil && !hasRoutineFor(routineList, topAppliance.UID) {
			suggestions = append(suggestions, fmt.Sprintf(
				"Your top consumer, %s, has no automated routines. Creating a schedule could help save energy.", top.Name))
		}
	}

	suggestions = append(suggestions, fmt.Sprintf(
		"Projection confidence is %s based on the retained usage history.", forecast.Confidence))
	return suggestions
}

func hasRoutineFor(routineList []routines.Routine, applianceID string) bool {
	for _, r := range routineList {
		for _, a := range r.Actions {
			if a.ApplianceID == applianceID {
				return true
			}
		}
	}
	return false
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
