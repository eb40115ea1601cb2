// Package cost converts energy consumption into money using a tiered
// tariff: consumption is split across rate slabs and each slab is
// billed at its own per-unit price.
package cost

// Tier is one slab of the tariff. UpTo is the cumulative kWh ceiling
// of the slab; the final slab has UpTo <= 0 and absorbs the remainder.
type Tier struct {
	UpTo float64
	Rate float64
}

// DefaultTariff is the residential slab schedule: the first 100 units
// at 3.50, the next 100 at 5.00, the next 200 at 6.50, and everything
// beyond at 8.00 per unit.
var DefaultTariff = []Tier{
	{UpTo: 100, Rate: 3.50},
	{UpTo: 200, Rate: 5.00},
	{UpTo: 400, Rate: 6.50},
	{UpTo: 0, Rate: 8.00},
}

// Cost bills kwh against the default tariff. Non-positive consumption
// costs nothing.
func Cost(kwh float64) float64 {
	return CostWithTariff(kwh, DefaultTariff)
}

// CostWithTariff bills kwh against the given slab schedule.
func CostWithTariff(kwh float64, tariff []Tier) float64 {
	if kwh <= 0 {
		return 0
	}

	total := 0.0
	prev := 0.0
	for _, tier := range tariff {
		if tier.UpTo <= 0 || kwh <= tier.UpTo {
			total += (kwh - prev) * tier.Rate
			return total
		}
		total += (tier.UpTo - prev) * tier.Rate
		prev = tier.UpTo
	}
	return total
}

// MarginalRate reports the per-unit rate that the next unit of
// consumption would be billed at.
func MarginalRate(kwh float64) float64 {
	for _, tier := range DefaultTariff {
		if tier.UpTo <= 0 || kwh < tier.UpTo {
			return tier.Rate
		}
	}
	return DefaultTariff[len(DefaultTariff)-1].Rate
}
