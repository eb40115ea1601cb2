package projection

import (
	"math"
	"testing"
	"time"

	"github.com/ParamSingh24/PrakashAI/internal/usagelog"
)

// dailyEntries builds one entry per day ending at noon, starting at
// start, with the given per-day energies.
func dailyEntries(start time.Time, energies []float64) []usagelog.Entry {
	entries := make([]usagelog.Entry, 0, len(energies))
	for i, kwh := range energies {
		end := start.AddDate(0, 0, i).Add(12 * time.Hour)
		entries = append(entries, usagelog.Entry{
			ApplianceID:     "ac123",
			Start:           end.Add(-time.Hour),
			End:             end,
			DurationSeconds: 3600,
			EnergyKWh:       kwh,
			Trigger:         "manual",
		})
	}
	return entries
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func approx(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 0.01 {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

func TestProjectNoHistoryFallsBackToNaive(t *testing.T) {
	// September: no seasonal adjustment. The 15th leaves 15 days.
	now := time.Date(2025, 9, 15, 10, 0, 0, 0, time.UTC)

	f := Project(Inputs{CurrentUsageKWh: 150, DaysPassed: 15}, nil, now)

	if f.RemainingDays != 15 {
		t.Errorf("RemainingDays = %d, want 15", f.RemainingDays)
	}
	// Naive rate 10 kWh/day over 15 remaining days.
	approx(t, "RemainingKWh", f.RemainingKWh, 150)
	approx(t, "ProjectedTotalKWh", f.ProjectedTotalKWh, 300)
	if f.Confidence != ConfidenceLow {
		t.Errorf("Confidence = %q, want low", f.Confidence)
	}
	if f.TrendFactor != 1.0 || f.SeasonalFactor != 1.0 {
		t.Errorf("factors = %v/%v, want neutral", f.TrendFactor, f.SeasonalFactor)
	}
}

func TestProjectUsesWeekdayWeekendSplit(t *testing.T) {
	// 2025-09-01 is a Monday. 14 days: Sep 1-14, two full weeks.
	start := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	energies := make([]float64, 14)
	for i := range energies {
		day := start.AddDate(0, 0, i).Weekday()
		if day == time.Saturday || day == time.Sunday {
			energies[i] = 20 // weekend days run hotter
		} else {
			energies[i] = 10
		}
	}
	entries := dailyEntries(start, energies)

	now := time.Date(2025, 9, 14, 23, 0, 0, 0, time.UTC)
	f := Project(Inputs{CurrentUsageKWh: 180, DaysPassed: 14}, entries, now)

	approx(t, "WeekdayMeanKWh", f.WeekdayMeanKWh, 10)
	approx(t, "WeekendMeanKWh", f.WeekendMeanKWh, 20)
	if f.RemainingDays != 16 {
		t.Errorf("RemainingDays = %d, want 16", f.RemainingDays)
	}
	// 16 remaining: floor(16*5/7)=11 weekdays, 5 weekend days.
	// Base = 11*10 + 5*20 = 210; flat history keeps trend at 1.0.
	approx(t, "RemainingKWh", f.RemainingKWh, 210)
	approx(t, "ProjectedTotalKWh", f.ProjectedTotalKWh, 390)
	if f.Confidence != ConfidenceHigh {
		t.Errorf("Confidence = %q, want high", f.Confidence)
	}
}

func TestProjectTrendClamped(t *testing.T) {
	// First week flat at 10, second week tripled: raw ratio 3.0 must
	// clamp to 1.2.
	start := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	energies := append(repeat(10, 7), repeat(30, 7)...)
	entries := dailyEntries(start, energies)

	now := time.Date(2025, 9, 14, 23, 0, 0, 0, time.UTC)
	f := Project(Inputs{CurrentUsageKWh: 280, DaysPassed: 14}, entries, now)

	if f.TrendFactor != 1.2 {
		t.Errorf("TrendFactor = %v, want 1.2", f.TrendFactor)
	}

	// Falling usage clamps the other way.
	energies = append(repeat(30, 7), repeat(10, 7)...)
	f = Project(Inputs{CurrentUsageKWh: 280, DaysPassed: 14}, dailyEntries(start, energies), now)
	if f.TrendFactor != 0.8 {
		t.Errorf("TrendFactor = %v, want 0.8", f.TrendFactor)
	}
}

func TestProjectTrendNeedsFourteenDays(t *testing.T) {
	start := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	entries := dailyEntries(start, append(repeat(10, 6), repeat(30, 7)...))

	now := time.Date(2025, 9, 13, 23, 0, 0, 0, time.UTC)
	f := Project(Inputs{CurrentUsageKWh: 270, DaysPassed: 13}, entries, now)

	if f.TrendFactor != 1.0 {
		t.Errorf("TrendFactor = %v with 13 days, want 1.0", f.TrendFactor)
	}
}

func TestSeasonalFactor(t *testing.T) {
	tests := []struct {
		month time.Month
		want  float64
	}{
		{time.January, 0.9},
		{time.March, 0.9},
		{time.April, 1.15},
		{time.June, 1.15},
		{time.July, 1.15},
		{time.August, 1.0},
		{time.September, 1.0},
		{time.October, 1.0},
		{time.November, 0.9},
		{time.December, 0.9},
	}
	for _, tt := range tests {
		if got := seasonalFactor(tt.month); got != tt.want {
			t.Errorf("seasonalFactor(%v) = %v, want %v", tt.month, got, tt.want)
		}
	}
}

func TestStableMeanDropsOutliers(t *testing.T) {
	// Ten ordinary days plus one spike; the spike is above
	// Q3 + 1.5*IQR and must not drag the stable mean.
	start := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	energies := append(repeat(10, 10), 200)
	days := aggregateDaily(dailyEntries(start, energies), time.UTC)

	mean, ok := stableDailyMean(days)
	if !ok {
		t.Fatal("stableDailyMean reported no data")
	}
	if math.Abs(mean-10) > 0.01 {
		t.Errorf("stable mean = %v, want 10", mean)
	}
}

func TestProjectBudgetComparison(t *testing.T) {
	now := time.Date(2025, 9, 15, 10, 0, 0, 0, time.UTC)

	f := Project(Inputs{CurrentUsageKWh: 150, DaysPassed: 15, MonthlyBudget: 1000}, nil, now)
	// Projected total 300 kWh costs 1500.00, over a 1000 budget.
	if !f.OverBudget {
		t.Error("expected OverBudget")
	}
	approx(t, "BudgetDelta", f.BudgetDelta, -500)

	f = Project(Inputs{CurrentUsageKWh: 150, DaysPassed: 15, MonthlyBudget: 2000}, nil, now)
	if f.OverBudget {
		t.Error("did not expect OverBudget")
	}
}

func TestProjectReproducible(t *testing.T) {
	start := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	entries := dailyEntries(start, append(repeat(8, 7), repeat(12, 7)...))
	now := time.Date(2025, 9, 14, 18, 0, 0, 0, time.UTC)
	in := Inputs{CurrentUsageKWh: 140, DaysPassed: 14, MonthlyBudget: 1500}

	first := Project(in, entries, now)
	for i := 0; i < 5; i++ {
		if got := Project(in, entries, now); got != first {
			t.Fatalf("run %d differs: %+v vs %+v", i, got, first)
		}
	}
}
