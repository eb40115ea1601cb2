package schedule

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAddValidation(t *testing.T) {
	s := New(discardLogger())

	if err := s.Add(Job{Name: "", Every: time.Second, Run: func(context.Context) error { return nil }}); err == nil {
		t.Error("expected error for empty name")
	}
	if err := s.Add(Job{Name: "x", Every: time.Second}); err == nil {
		t.Error("expected error for nil run function")
	}
	if err := s.Add(Job{Name: "x", Run: func(context.Context) error { return nil }}); err == nil {
		t.Error("expected error for zero interval")
	}
	if err := s.Add(Job{Name: "x", Every: time.Second, Run: func(context.Context) error { return nil }}); err != nil {
		t.Errorf("valid job rejected: %v", err)
	}
}

func TestStatusTracksRegistrationOrder(t *testing.T) {
	s := New(discardLogger())
	noop := func(context.Context) error { return nil }

	s.Add(Job{Name: "first", Every: time.Minute, Run: noop})
	s.Add(Job{Name: "second", Every: time.Hour, Run: noop})

	status := s.Status()
	if len(status) != 2 || status[0].Name != "first" || status[1].Name != "second" {
		t.Errorf("status = %+v", status)
	}
	if status[0].Every != "1m0s" {
		t.Errorf("Every = %q", status[0].Every)
	}
}

func TestJobsFireAndRecordOutcome(t *testing.T) {
	s := New(discardLogger())
	var okRuns, failRuns atomic.Int32

	s.Add(Job{Name: "ok", Every: time.Second, Run: func(context.Context) error {
		okRuns.Add(1)
		return nil
	}})
	s.Add(Job{Name: "failing", Every: time.Second, Run: func(context.Context) error {
		failRuns.Add(1)
		return errors.New("boom")
	}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if okRuns.Load() > 0 && failRuns.Load() > 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if okRuns.Load() == 0 || failRuns.Load() == 0 {
		t.Fatalf("jobs did not fire: ok=%d fail=%d", okRuns.Load(), failRuns.Load())
	}

	status := s.Status()
	for _, st := range status {
		if st.LastRun == nil {
			t.Errorf("job %s has no LastRun", st.Name)
		}
		switch st.Name {
		case "ok":
			if st.LastError != "" {
				t.Errorf("ok job LastError = %q", st.LastError)
			}
		case "failing":
			if st.LastError != "boom" {
				t.Errorf("failing job LastError = %q", st.LastError)
			}
		}
	}
}

func TestStopPreventsFurtherRuns(t *testing.T) {
	s := New(discardLogger())
	var runs atomic.Int32

	s.Add(Job{Name: "tick", Every: time.Second, Run: func(context.Context) error {
		runs.Add(1)
		return nil
	}})

	s.Start(context.Background())

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && runs.Load() == 0 {
		time.Sleep(20 * time.Millisecond)
	}
	s.Stop()

	after := runs.Load()
	time.Sleep(1500 * time.Millisecond)
	if runs.Load() != after {
		t.Errorf("job fired after Stop: %d -> %d", after, runs.Load())
	}
}

func TestStopDuringStartDelayIsSafe(t *testing.T) {
	// A delayed registration timer may fire right as Stop clears the
	// scheduler. Exercise that window repeatedly; the registration must
	// never dereference the cleared cron handle.
	var runs atomic.Int32
	for i := 0; i < 25; i++ {
		s := New(discardLogger())
		s.Add(Job{
			Name:       "delayed",
			Every:      10 * time.Millisecond,
			StartDelay: time.Millisecond,
			Run: func(context.Context) error {
				runs.Add(1)
				return nil
			},
		})
		s.Start(context.Background())
		time.Sleep(time.Millisecond)
		s.Stop()
	}
	// Whether any run squeezed in before Stop is timing-dependent; the
	// test passes by completing without a panic.
	_ = runs.Load()
}

func TestStartDelayPostponesFirstRegistration(t *testing.T) {
	s := New(discardLogger())
	var runs atomic.Int32

	s.Add(Job{Name: "delayed", Every: time.Second, StartDelay: time.Hour, Run: func(context.Context) error {
		runs.Add(1)
		return nil
	}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	time.Sleep(1500 * time.Millisecond)
	s.Stop()
	if runs.Load() != 0 {
		t.Errorf("delayed job fired %d times before its start delay", runs.Load())
	}
}
