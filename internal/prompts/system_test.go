package prompts

import (
	"strings"
	"testing"
	"time"

	"github.com/ParamSingh24/PrakashAI/internal/mode"
)

func TestSystemIncludesNameAndTime(t *testing.T) {
	now := time.Date(2025, 9, 15, 14, 30, 0, 0, time.UTC)
	got := System("Param", mode.Balanced, now)

	if !strings.Contains(got, "Param") {
		t.Error("prompt missing user name")
	}
	if !strings.Contains(got, "Monday, 15 Sep 2025 14:30") {
		t.Errorf("prompt missing formatted time:\n%s", got)
	}
	if !strings.Contains(got, "EcoSync") {
		t.Error("prompt missing assistant identity")
	}
}

func TestSystemDefaultsUserName(t *testing.T) {
	got := System("", mode.Balanced, time.Now())
	if !strings.Contains(got, "the household") {
		t.Error("empty user name should fall back to the household")
	}
}

func TestSystemModeFragments(t *testing.T) {
	now := time.Now()
	tests := []struct {
		mode mode.Mode
		want string
	}{
		{mode.Balanced, "BALANCED"},
		{mode.PowerSaving, "POWER SAVING"},
		{mode.Extreme, "EXTREME SAVING"},
	}
	for _, tt := range tests {
		got := System("Param", tt.mode, now)
		if !strings.Contains(got, tt.want) {
			t.Errorf("System(%q) missing fragment %q", tt.mode, tt.want)
		}
	}
}

func TestAutonomousEmbedsModeAndState(t *testing.T) {
	got := Autonomous(mode.PowerSaving, `{"appliances":[]}`)
	if !strings.Contains(got, "power-saving") {
		t.Errorf("prompt missing mode:\n%s", got)
	}
	if !strings.Contains(got, `{"appliances":[]}`) {
		t.Error("prompt missing state bundle")
	}
}
