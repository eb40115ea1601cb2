package tools

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/ParamSingh24/PrakashAI/internal/cost"
	"github.com/ParamSingh24/PrakashAI/internal/projection"
	"github.com/ParamSingh24/PrakashAI/internal/weather"
)

func (r *Registry) handleDetectAnomalies(ctx context.Context, _ map[string]any) (any, error) {
	if r.deps.Safety == nil {
		return nil, errors.New("safety monitor not configured")
	}
	anomalies, err := r.deps.Safety.DetectAnomalies(ctx, r.deps.Now())
	if err != nil {
		return nil, err
	}
	if len(anomalies) == 0 {
		return map[string]any{"message": "No anomalies detected. All appliances are operating normally."}, nil
	}
	return map[string]any{"anomalies": anomalies}, nil
}

func (r *Registry) handleCheckMaintenance(ctx context.Context, _ map[string]any) (any, error) {
	if r.deps.Safety == nil {
		return nil, errors.New("safety monitor not configured")
	}
	alerts, err := r.deps.Safety.CheckMaintenance(ctx)
	if err != nil {
		return nil, err
	}
	if len(alerts) == 0 {
		return map[string]any{"message": "All appliances are within their recommended usage limits."}, nil
	}
	return map[string]any{"maintenance_alerts": alerts}, nil
}

func (r *Registry) handleWeather(ctx context.Context, _ map[string]any) (any, error) {
	if r.deps.Weather == nil {
		return nil, weather.ErrNotConfigured
	}
	u, err := r.deps.Profiles.Current(ctx)
	if err != nil {
		return nil, err
	}
	if u.Location == "" {
		return nil, errors.New("no location configured on the user profile")
	}
	return r.deps.Weather.Fetch(ctx, u.Location)
}

func (r *Registry) handleTopNewsHeadlines(ctx context.Context, _ map[string]any) (any, error) {
	if r.deps.News == nil {
		return nil, errors.New("news API not configured")
	}
	u, err := r.deps.Profiles.Current(ctx)
	if err != nil {
		return nil, err
	}
	country := u.CountryCode
	if country == "" {
		country = "in"
	}
	headlines, err := r.deps.News.TopHeadlines(ctx, country)
	if err != nil {
		return nil, err
	}
	return map[string]any{"headlines": headlines}, nil
}

func (r *Registry) handleUserAndAppliances(ctx context.Context, _ map[string]any) (any, error) {
	return r.dataBundle(ctx)
}

// dataBundle is the user profile (minus the derived dashboard block)
// plus the full appliance list. It is the agent's primary analytical
// snapshot, and rides along on mode changes for immediate re-planning.
func (r *Registry) dataBundle(ctx context.Context) (map[string]any, error) {
	u, err := r.deps.Profiles.Current(ctx)
	if err != nil {
		return nil, err
	}
	appliances, err := r.deps.Ledger.List(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"user": map[string]any{
			"uid":           u.UID,
			"name":          u.Name,
			"email":         u.Email,
			"location":      u.Location,
			"countryCode":   u.CountryCode,
			"monthlyBudget": u.MonthlyBudget,
		},
		"appliances": appliances,
	}, nil
}

func (r *Registry) handleReadUsageLogs(ctx context.Context, args map[string]any) (any, error) {
	limit := 50
	if f, ok := numArg(args, "limit"); ok && f > 0 {
		limit = int(f)
	}
	entries, err := r.deps.Usage.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}

	names := map[string]string{}
	if appliances, err := r.deps.Ledger.List(ctx); err == nil {
		for _, a := range appliances {
			names[a.UID] = a.Name
		}
	}

	enriched := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		name, ok := names[e.ApplianceID]
		if !ok {
			name = "Unknown Appliance"
		}
		enriched = append(enriched, map[string]any{
			"applianceId":     e.ApplianceID,
			"appliance_name":  name,
			"startTs":         e.Start,
			"endTs":           e.End,
			"durationSeconds": e.DurationSeconds,
			"energyKWh":       e.EnergyKWh,
			"trigger":         e.Trigger,
		})
	}
	return map[string]any{"usage_logs": enriched}, nil
}

func (r *Registry) handleUsageCost(_ context.Context, args map[string]any) (any, error) {
	units, ok := numArg(args, "units_kwh")
	if !ok {
		return nil, errors.New("units_kwh is required")
	}
	if units <= 0 {
		return map[string]any{
			"total_cost_inr": 0.0,
			"message":        "Usage must be a positive number of units.",
		}, nil
	}
	total := math.Round(cost.Cost(units)*100) / 100
	return map[string]any{
		"units_kwh":      units,
		"total_cost_inr": total,
	}, nil
}

func (r *Registry) handleProjection(ctx context.Context, args map[string]any) (any, error) {
	usage, okUsage := numArg(args, "current_usage_kwh")
	currentCost, okCost := numArg(args, "current_cost_inr")
	daysPassed, okDays := numArg(args, "days_passed")
	if !okUsage || !okCost || !okDays {
		return nil, errors.New("current_usage_kwh, current_cost_inr and days_passed are required")
	}
	budget, ok := numArg(args, "monthly_budget")
	if !ok || budget <= 0 {
		budget = 2500
	}
	if daysPassed < 1 {
		return nil, fmt.Errorf("days_passed must be at least 1, got %v", daysPassed)
	}

	entries, err := r.deps.Usage.All(ctx)
	if err != nil {
		return nil, err
	}

	f := projection.Project(projection.Inputs{
		CurrentUsageKWh: usage,
		CurrentCost:     currentCost,
		DaysPassed:      int(daysPassed),
		MonthlyBudget:   budget,
	}, entries, r.deps.Now())

	return map[string]any{
		"projected_total_usage_kwh": f.ProjectedTotalKWh,
		"projected_total_cost_inr":  f.ProjectedCost,
		"confidence_level":          f.Confidence,
		"over_budget":               f.OverBudget,
		"budget_delta_inr":          f.BudgetDelta,
		"usage_patterns": map[string]any{
			"avg_daily_usage":     f.DailyMeanKWh,
			"avg_weekday_usage":   f.WeekdayMeanKWh,
			"avg_weekend_usage":   f.WeekendMeanKWh,
			"trend_multiplier":    f.TrendFactor,
			"seasonal_multiplier": f.SeasonalFactor,
			"remaining_days":      f.RemainingDays,
		},
	}, nil
}
