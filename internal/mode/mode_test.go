package mode

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"balanced", Balanced, false},
		{"power-saving", PowerSaving, false},
		{"power_saving", PowerSaving, false},
		{"Power Saving", PowerSaving, false},
		{"EXTREME", Extreme, false},
		{" balanced ", Balanced, false},
		{"turbo", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("Parse(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("Parse(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFlagDefaultsToBalanced(t *testing.T) {
	f, err := NewFlag(filepath.Join(t.TempDir(), "mode.json"))
	if err != nil {
		t.Fatalf("NewFlag: %v", err)
	}
	if got := f.Current(); got != Balanced {
		t.Errorf("Current = %q, want balanced", got)
	}
}

func TestFlagSetAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mode.json")
	f, err := NewFlag(path)
	if err != nil {
		t.Fatalf("NewFlag: %v", err)
	}

	if err := f.Set(PowerSaving); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got := f.Current(); got != PowerSaving {
		t.Errorf("Current = %q, want power-saving", got)
	}

	// A second handle over the same file sees the change; the flag is
	// read from disk, not cached.
	other, err := NewFlag(path)
	if err != nil {
		t.Fatalf("NewFlag: %v", err)
	}
	if got := other.Current(); got != PowerSaving {
		t.Errorf("second handle Current = %q, want power-saving", got)
	}
}

func TestFlagCorruptFileReadsBalanced(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mode.json")
	f, err := NewFlag(path)
	if err != nil {
		t.Fatalf("NewFlag: %v", err)
	}
	if err := f.Set(Extreme); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("corrupt file: %v", err)
	}
	if got := f.Current(); got != Balanced {
		t.Errorf("Current on corrupt file = %q, want balanced", got)
	}
}

func TestSetRejectsUnknownMode(t *testing.T) {
	f, err := NewFlag(filepath.Join(t.TempDir(), "mode.json"))
	if err != nil {
		t.Fatalf("NewFlag: %v", err)
	}
	if err := f.Set(Mode("turbo")); err == nil {
		t.Error("expected error for unknown mode")
	}
}
