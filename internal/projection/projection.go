// Package projection forecasts month-end energy consumption and cost
// from the usage log. The engine is pure: given the same inputs, the
// same log, and the same clock it produces the same forecast.
package projection

import (
	"math"
	"sort"
	"time"

	"github.com/ParamSingh24/PrakashAI/internal/cost"
	"github.com/ParamSingh24/PrakashAI/internal/usagelog"
)

// Inputs describes the billing period the forecast extends.
type Inputs struct {
	// CurrentUsageKWh is cumulative consumption so far this month.
	CurrentUsageKWh float64
	// CurrentCost is the cost of that consumption.
	CurrentCost float64
	// DaysPassed is how many days of the month have elapsed, counting
	// today. Must be >= 1.
	DaysPassed int
	// MonthlyBudget is the user's target spend for the month; 0 means
	// no budget is set.
	MonthlyBudget float64
}

// Confidence grades how much history backs a forecast.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Forecast is the month-end projection.
type Forecast struct {
	ProjectedTotalKWh float64    `json:"projectedTotalUsageKWh"`
	ProjectedCost     float64    `json:"projectedCost"`
	RemainingKWh      float64    `json:"projectedRemainingKWh"`
	DailyMeanKWh      float64    `json:"dailyMeanKWh"`
	WeekdayMeanKWh    float64    `json:"weekdayMeanKWh"`
	WeekendMeanKWh    float64    `json:"weekendMeanKWh"`
	TrendFactor       float64    `json:"trendFactor"`
	SeasonalFactor    float64    `json:"seasonalFactor"`
	RemainingDays     int        `json:"remainingDays"`
	Confidence        Confidence `json:"confidence"`
	OverBudget        bool       `json:"overBudget"`
	BudgetDelta       float64    `json:"budgetDelta"`
}

// dayTotal is one calendar day's aggregated consumption.
type dayTotal struct {
	day     time.Time
	energy  float64
	weekend bool
}

// Project computes the month-end forecast for the month containing now.
// Daily aggregation uses now's location for day boundaries.
func Project(in Inputs, entries []usagelog.Entry, now time.Time) Forecast {
	if in.DaysPassed < 1 {
		in.DaysPassed = 1
	}
	naive := in.CurrentUsageKWh / float64(in.DaysPassed)

	days := aggregateDaily(entries, now.Location())

	// Means, falling back to the naive rate when a class has no data.
	var (
		sumAll, sumWd, sumWe    float64
		nAll, nWd, nWe          int
		weekdayOK, weekendOK    bool
		dailyMean, wdMean, weMean float64
	)
	for _, d := range days {
		sumAll += d.energy
		nAll++
		if d.weekend {
			sumWe += d.energy
			nWe++
		} else {
			sumWd += d.energy
			nWd++
		}
	}
	dailyMean, wdMean, weMean = naive, naive, naive
	if nAll > 0 {
		dailyMean = sumAll / float64(nAll)
	}
	if nWd > 0 {
		wdMean = sumWd / float64(nWd)
		weekdayOK = true
	}
	if nWe > 0 {
		weMean = sumWe / float64(nWe)
		weekendOK = true
	}

	stableMean, stableOK := stableDailyMean(days)

	remaining := daysRemaining(now)
	// Roughly five sevenths of the remaining days are weekdays.
	remWd := remaining * 5 / 7
	remWe := remaining - remWd

	var base float64
	switch {
	case weekdayOK && weekendOK:
		base = float64(remWd)*wdMean + float64(remWe)*weMean
	case stableOK:
		base = float64(remaining) * stableMean
	default:
		base = float64(remaining) * naive
	}

	trend := trendFactor(days)
	seasonal := seasonalFactor(now.Month())

	adjusted := base * trend * seasonal
	projectedTotal := in.CurrentUsageKWh + adjusted
	projectedCost := round2(cost.Cost(projectedTotal))

	conf := ConfidenceMedium
	switch {
	case len(days) >= 14 && nWd >= 5 && nWe >= 2:
		conf = ConfidenceHigh
	case len(days) < 7:
		conf = ConfidenceLow
	}

	f := Forecast{
		ProjectedTotalKWh: round2(projectedTotal),
		ProjectedCost:     projectedCost,
		RemainingKWh:      round2(adjusted),
		DailyMeanKWh:      round2(dailyMean),
		WeekdayMeanKWh:    round2(wdMean),
		WeekendMeanKWh:    round2(weMean),
		TrendFactor:       trend,
		SeasonalFactor:    seasonal,
		RemainingDays:     remaining,
		Confidence:        conf,
	}
	if in.MonthlyBudget > 0 {
		f.OverBudget = projectedCost > in.MonthlyBudget
		f.BudgetDelta = round2(in.MonthlyBudget - projectedCost)
	}
	return f
}

// aggregateDaily buckets entries into calendar-day totals keyed by the
// session end timestamp, sorted ascending.
func aggregateDaily(entries []usagelog.Entry, loc *time.Location) []dayTotal {
	buckets := make(map[time.Time]float64)
	for _, e := range entries {
		end := e.End.In(loc)
		day := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, loc)
		buckets[day] += e.EnergyKWh
	}

	days := make([]dayTotal, 0, len(buckets))
	for day, energy := range buckets {
		wd := day.Weekday()
		days = append(days, dayTotal{
			day:     day,
			energy:  energy,
			weekend: wd == time.Saturday || wd == time.Sunday,
		})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].day.Before(days[j].day) })
	return days
}

// stableDailyMean is the mean of daily totals after discarding upward
// outliers above Q3 + 1.5*IQR.
func stableDailyMean(days []dayTotal) (float64, bool) {
	if len(days) == 0 {
		return 0, false
	}

	sorted := make([]float64, len(days))
	for i, d := range days {
		sorted[i] = d.energy
	}
	sort.Float64s(sorted)

	q1 := quantile(sorted, 0.25)
	q3 := quantile(sorted, 0.75)
	threshold := q3 + 1.5*(q3-q1)

	sum, n := 0.0, 0
	for _, v := range sorted {
		if v <= threshold {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// quantile interpolates the q-th quantile of sorted values.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// trendFactor compares the last seven daily totals against the seven
// before them, clamped to [0.8, 1.2]. With fewer than fourteen days of
// data the factor is neutral.
func trendFactor(days []dayTotal) float64 {
	if len(days) < 14 {
		return 1.0
	}

	recent := days[len(days)-7:]
	prior := days[len(days)-14 : len(days)-7]

	var recentSum, priorSum float64
	for _, d := range recent {
		recentSum += d.energy
	}
	for _, d := range prior {
		priorSum += d.energy
	}
	if priorSum == 0 {
		return 1.0
	}

	ratio := recentSum / priorSum
	return math.Min(1.2, math.Max(0.8, ratio))
}

// seasonalFactor scales for the cooling season (April through July)
// and the mild season (November through March).
func seasonalFactor(m time.Month) float64 {
	switch {
	case m >= time.April && m <= time.July:
		return 1.15
	case m >= time.November || m <= time.March:
		return 0.9
	default:
		return 1.0
	}
}

// daysRemaining counts the days left in now's month, excluding today.
func daysRemaining(now time.Time) int {
	daysInMonth := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, now.Location()).Day()
	remaining := daysInMonth - now.Day()
	if remaining < 0 {
		return 0
	}
	return remaining
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
