package cost

import (
	"math"
	"testing"
)

func TestCost(t *testing.T) {
	tests := []struct {
		name string
		kwh  float64
		want float64
	}{
		{"zero", 0, 0},
		{"negative", -5, 0},
		{"within first slab", 50, 175.00},
		{"first slab boundary", 100, 350.00},
		{"spans two slabs", 150, 600.00},
		{"second slab boundary", 200, 850.00},
		{"spans three slabs", 250, 1175.00},
		{"third slab boundary", 400, 2150.00},
		{"into top slab", 500, 2950.00},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Cost(tt.kwh)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Cost(%v) = %v, want %v", tt.kwh, got, tt.want)
			}
		})
	}
}

func TestCostMonotonic(t *testing.T) {
	prev := 0.0
	for kwh := 1.0; kwh <= 600; kwh++ {
		got := Cost(kwh)
		if got < prev {
			t.Fatalf("Cost(%v) = %v less than Cost(%v) = %v", kwh, got, kwh-1, prev)
		}
		prev = got
	}
}

func TestMarginalRate(t *testing.T) {
	tests := []struct {
		kwh  float64
		want float64
	}{
		{0, 3.50},
		{99.9, 3.50},
		{100, 5.00},
		{200, 6.50},
		{399.9, 6.50},
		{400, 8.00},
		{1000, 8.00},
	}

	for _, tt := range tests {
		if got := MarginalRate(tt.kwh); got != tt.want {
			t.Errorf("MarginalRate(%v) = %v, want %v", tt.kwh, got, tt.want)
		}
	}
}
