package tools

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ParamSingh24/PrakashAI/internal/ledger"
	"github.com/ParamSingh24/PrakashAI/internal/mode"
	"github.com/ParamSingh24/PrakashAI/internal/profile"
	"github.com/ParamSingh24/PrakashAI/internal/routines"
	"github.com/ParamSingh24/PrakashAI/internal/safety"
	"github.com/ParamSingh24/PrakashAI/internal/storage"
	"github.com/ParamSingh24/PrakashAI/internal/usagelog"
)

type fixture struct {
	registry *Registry
	ledger   *ledger.Ledger
	usage    *usagelog.Store
	routines *routines.Store
	profiles *profile.Store
	mode     *mode.Flag
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	applSnap, err := storage.NewSnapshot[ledger.Appliance](filepath.Join(dir, "appliances.json"))
	if err != nil {
		t.Fatalf("NewSnapshot: %v", err)
	}
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	usage, err := usagelog.NewStore(db, 0)
	if err != nil {
		t.Fatalf("usagelog.NewStore: %v", err)
	}
	appliances := ledger.New(applSnap, usage, nil, logger)

	routSnap, err := storage.NewSnapshot[routines.Routine](filepath.Join(dir, "routines.json"))
	if err != nil {
		t.Fatalf("NewSnapshot: %v", err)
	}
	routineStore := routines.NewStore(routSnap)

	profSnap, err := storage.NewSnapshot[profile.User](filepath.Join(dir, "users.json"))
	if err != nil {
		t.Fatalf("NewSnapshot: %v", err)
	}
	profiles := profile.NewStore(profSnap)
	if err := profiles.Put(context.Background(), profile.User{
		UID: "u1", Name: "Param", Location: "Delhi", CountryCode: "in", MonthlyBudget: 2500,
	}); err != nil {
		t.Fatalf("Put user: %v", err)
	}

	flag, err := mode.NewFlag(filepath.Join(dir, "mode.json"))
	if err != nil {
		t.Fatalf("NewFlag: %v", err)
	}

	monitor := safety.NewMonitor(appliances, 8, map[string]float64{"Air Conditioner": 500}, nil, logger)

	now := time.Date(2025, 9, 15, 12, 0, 0, 0, time.UTC)
	reg, err := New(Deps{
		Ledger:   appliances,
		Usage:    usage,
		Routines: routineStore,
		Safety:   monitor,
		Profiles: profiles,
		Mode:     flag,
		Log:      logger,
		Now:      func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &fixture{
		registry: reg,
		ledger:   appliances,
		usage:    usage,
		routines: routineStore,
		profiles: profiles,
		mode:     flag,
		now:      now,
	}
}

func exec(t *testing.T, f *fixture, name string, args map[string]any) map[string]any {
	t.Helper()
	out, err := f.registry.Execute(context.Background(), name, args)
	if err != nil {
		t.Fatalf("Execute(%s): %v (result %s)", name, err, out)
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(out), &m); err != nil {
		t.Fatalf("Execute(%s) returned invalid JSON %q: %v", name, out, err)
	}
	return m
}

func TestNewValidatesDeps(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Error("expected error for empty deps")
	}
}

func TestDefinitionsShapeAndOrder(t *testing.T) {
	f := newFixture(t)
	defs := f.registry.Definitions()
	if len(defs) != 14 {
		t.Fatalf("got %d tool definitions, want 14", len(defs))
	}
	first := defs[0]["function"].(map[string]any)
	if first["name"] != "detect_anomalies" {
		t.Errorf("first tool = %v, want detect_anomalies", first["name"])
	}
	for _, d := range defs {
		if d["type"] != "function" {
			t.Errorf("definition type = %v, want function", d["type"])
		}
		fn := d["function"].(map[string]any)
		if fn["name"] == "" || fn["description"] == "" || fn["parameters"] == nil {
			t.Errorf("incomplete definition: %+v", fn)
		}
	}

	// Order is stable across calls.
	again := f.registry.Definitions()
	for i := range defs {
		a := defs[i]["function"].(map[string]any)["name"]
		b := again[i]["function"].(map[string]any)["name"]
		if a != b {
			t.Errorf("definition order changed at %d: %v vs %v", i, a, b)
		}
	}
}

func TestExecuteUnknownTool(t *testing.T) {
	f := newFixture(t)
	out, err := f.registry.Execute(context.Background(), "bogus_tool", nil)
	if !errors.Is(err, ErrUnknownTool) {
		t.Errorf("err = %v, want ErrUnknownTool", err)
	}
	if out != `{"error":"Tool bogus_tool not found."}` {
		t.Errorf("result = %s", out)
	}
}

func TestCalculateUsageCost(t *testing.T) {
	f := newFixture(t)

	res := exec(t, f, "calculate_usage_cost", map[string]any{"units_kwh": 250.0})
	if got := res["total_cost_inr"]; got != 1175.0 {
		t.Errorf("total_cost_inr = %v, want 1175", got)
	}

	res = exec(t, f, "calculate_usage_cost", map[string]any{"units_kwh": -5.0})
	if got := res["total_cost_inr"]; got != 0.0 {
		t.Errorf("negative units cost = %v, want 0", got)
	}
	if res["message"] == nil {
		t.Error("expected explanatory message for non-positive units")
	}

	if _, err := f.registry.Execute(context.Background(), "calculate_usage_cost", nil); err == nil {
		t.Error("expected error when units_kwh missing")
	}
}

func TestFindAndControl(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ac, _ := f.ledger.Add(ctx, ledger.Appliance{Name: "Living Room AC", Type: "Air Conditioner", PowerRatingKWhPerHour: 1.5})
	fan, _ := f.ledger.Add(ctx, ledger.Appliance{Name: "Bedroom Fan", Type: "Fan", PowerRatingKWhPerHour: 0.075})

	// Substring name match.
	res := exec(t, f, "find_and_control_appliances", map[string]any{
		"appliance_names": []any{"ac"},
		"new_state":       "on",
	})
	if res["success"] != true {
		t.Fatalf("success = %v: %v", res["success"], res["message"])
	}
	got, _ := f.ledger.Get(ctx, ac.UID)
	if got.State != ledger.StateOn {
		t.Errorf("AC state = %s, want on", got.State)
	}
	if g, _ := f.ledger.Get(ctx, fan.UID); g.State != ledger.StateOff {
		t.Errorf("Fan state = %s, want off (not matched)", g.State)
	}

	// Type "all" matches everything.
	res = exec(t, f, "find_and_control_appliances", map[string]any{
		"appliance_type": "all",
		"new_state":      "off",
	})
	if res["success"] != true {
		t.Fatalf("success = %v", res["success"])
	}
	for _, uid := range []string{ac.UID, fan.UID} {
		if g, _ := f.ledger.Get(ctx, uid); g.State != ledger.StateOff {
			t.Errorf("%s state = %s, want off", uid, g.State)
		}
	}

	// No match is a structured failure, not an error.
	res = exec(t, f, "find_and_control_appliances", map[string]any{
		"appliance_names": []any{"dishwasher"},
		"new_state":       "on",
	})
	if res["success"] != false {
		t.Errorf("success = %v, want false", res["success"])
	}
	msg, _ := res["message"].(string)
	if !strings.Contains(msg, "couldn't find any appliances") {
		t.Errorf("message = %q", msg)
	}

	if _, err := f.registry.Execute(ctx, "find_and_control_appliances", map[string]any{"new_state": "standby"}); err == nil {
		t.Error("expected error for invalid new_state")
	}
}

func TestModifyApplianceDetails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	heater, _ := f.ledger.Add(ctx, ledger.Appliance{Name: "Water Heater", Type: "Geyser", PowerRatingKWhPerHour: 2})

	res := exec(t, f, "modify_appliance_details", map[string]any{
		"appliance_name": "water heater",
		"updates":        map[string]any{"priorityLevel": 5.0, "location": "Bathroom"},
	})
	if res["success"] != true {
		t.Fatalf("success = %v: %v", res["success"], res["message"])
	}
	got, _ := f.ledger.Get(ctx, heater.UID)
	if got.PriorityLevel != 5 || got.Location != "Bathroom" {
		t.Errorf("appliance after update = %+v", got)
	}

	res = exec(t, f, "modify_appliance_details", map[string]any{
		"appliance_name": "water heater",
		"updates":        map[string]any{"totalUsageKWh": 0.0},
	})
	if res["success"] != false {
		t.Error("non-editable field should be rejected")
	}
	if msg, _ := res["message"].(string); msg != "No valid fields to update were provided." {
		t.Errorf("message = %q", msg)
	}

	res = exec(t, f, "modify_appliance_details", map[string]any{
		"appliance_name": "toaster",
		"updates":        map[string]any{"priorityLevel": 1.0},
	})
	if res["success"] != false {
		t.Error("unknown appliance should be a structured failure")
	}
}

func TestAddAppliance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := exec(t, f, "add_appliance", map[string]any{
		"name":                  "Fridge",
		"type":                  "Refrigerator",
		"powerRatingKWhPerHour": 0.2,
		"location":              "Kitchen",
	})
	if res["success"] != true {
		t.Fatalf("success = %v: %v", res["success"], res["message"])
	}

	list, _ := f.ledger.List(ctx)
	if len(list) != 1 || list[0].Name != "Fridge" || list[0].Location != "Kitchen" {
		t.Errorf("ledger after add = %+v", list)
	}
	if len(list[0].UID) != 5 {
		t.Errorf("UID = %q, want 5-char id", list[0].UID)
	}

	if _, err := f.registry.Execute(ctx, "add_appliance", map[string]any{"name": "X"}); err == nil {
		t.Error("expected error when type and rating missing")
	}
}

func TestManageRoutines(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.ledger.Add(ctx, ledger.Appliance{Name: "Living Room AC", Type: "Air Conditioner", PowerRatingKWhPerHour: 1.5})

	stale, err := f.routines.Create(ctx, routines.Routine{
		Name:     "Old Night Plan",
		Schedule: routines.Schedule{Time: "23:00", Days: []string{"Monday"}},
		Actions:  []routines.Action{{ApplianceID: "zzzzz", Command: "turnOff"}},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	res := exec(t, f, "manage_routines", map[string]any{
		"routines_to_create": []any{
			map[string]any{
				"name":           "AC Night Off",
				"time":           "23:30",
				"days":           []any{"Monday", "Tuesday"},
				"appliance_name": "ac",
				"command":        "turnOff",
			},
			map[string]any{
				"name":           "Ghost Routine",
				"time":           "09:00",
				"days":           []any{"Sunday"},
				"appliance_name": "sauna",
				"command":        "turnOn",
			},
		},
		"routine_names_to_delete": []any{"old night plan"},
	})
	if res["success"] != true {
		t.Fatalf("success = %v: %v", res["success"], res["message"])
	}
	if msg, _ := res["message"].(string); msg != "Successfully created 1 and deleted 1 routines." {
		t.Errorf("message = %q", msg)
	}
	if res["skipped"] == nil {
		t.Error("expected the unmatched routine to be reported as skipped")
	}

	list, _ := f.routines.List(ctx)
	if len(list) != 1 {
		t.Fatalf("routines after manage = %+v", list)
	}
	if list[0].Name != "AC Night Off" || list[0].CreatedBy != routines.CreatorAI {
		t.Errorf("created routine = %+v", list[0])
	}
	for _, rt := range list {
		if rt.ID == stale.ID {
			t.Error("deleted routine still present")
		}
	}
}

func TestListRoutines(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := exec(t, f, "list_routines", nil)
	if routinesList, ok := res["routines"].([]any); ok && len(routinesList) != 0 {
		t.Errorf("routines = %v, want empty", routinesList)
	}

	f.routines.Create(ctx, routines.Routine{
		Name:     "Morning Fan",
		Schedule: routines.Schedule{Time: "07:00", Days: []string{"Monday"}},
		Actions:  []routines.Action{{ApplianceID: "ab1cd", Command: "turnOn"}},
	})
	res = exec(t, f, "list_routines", nil)
	routinesList, _ := res["routines"].([]any)
	if len(routinesList) != 1 {
		t.Errorf("routines = %v, want 1 entry", routinesList)
	}
}

func TestSetPowerSavingMode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.ledger.Add(ctx, ledger.Appliance{Name: "AC", Type: "Air Conditioner", PowerRatingKWhPerHour: 1.5})
	f.routines.Create(ctx, routines.Routine{
		Name:      "Agent Plan",
		Schedule:  routines.Schedule{Time: "22:00", Days: []string{"Friday"}},
		Actions:   []routines.Action{{ApplianceID: "ab1cd", Command: "turnOff"}},
		CreatedBy: routines.CreatorAI,
	})
	f.routines.Create(ctx, routines.Routine{
		Name:      "My Plan",
		Schedule:  routines.Schedule{Time: "21:00", Days: []string{"Friday"}},
		Actions:   []routines.Action{{ApplianceID: "ab1cd", Command: "turnOff"}},
		CreatedBy: routines.CreatorUser,
	})

	res := exec(t, f, "set_power_saving_mode", map[string]any{"mode": "power-saving"})
	if res["success"] != true {
		t.Fatalf("success = %v: %v", res["success"], res["message"])
	}
	if f.mode.Current() != mode.PowerSaving {
		t.Errorf("mode = %s, want power-saving", f.mode.Current())
	}

	// Agent routines cleared, user routines kept.
	list, _ := f.routines.List(ctx)
	if len(list) != 1 || list[0].Name != "My Plan" {
		t.Errorf("routines after mode change = %+v", list)
	}

	// The response carries a fresh analysis bundle.
	bundle, ok := res["analysis_data"].(map[string]any)
	if !ok {
		t.Fatal("missing analysis_data")
	}
	if bundle["user"] == nil || bundle["appliances"] == nil {
		t.Errorf("bundle = %v", bundle)
	}

	res = exec(t, f, "set_power_saving_mode", map[string]any{"mode": "turbo"})
	if res["success"] != false {
		t.Error("invalid mode should be a structured failure")
	}
}

func TestReadUsageLogsEnrichment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ac, _ := f.ledger.Add(ctx, ledger.Appliance{Name: "AC", Type: "Air Conditioner", PowerRatingKWhPerHour: 1.5})

	end := f.now.Add(-time.Hour)
	f.usage.Append(ctx, usagelog.Entry{
		ApplianceID: ac.UID, Start: end.Add(-time.Hour), End: end,
		DurationSeconds: 3600, EnergyKWh: 1.5, Trigger: "manual",
	})
	f.usage.Append(ctx, usagelog.Entry{
		ApplianceID: "gone1", Start: end, End: end.Add(time.Minute),
		DurationSeconds: 60, EnergyKWh: 0.1, Trigger: "manual",
	})

	res := exec(t, f, "read_usage_logs", nil)
	logs, ok := res["usage_logs"].([]any)
	if !ok || len(logs) != 2 {
		t.Fatalf("usage_logs = %v", res["usage_logs"])
	}

	names := map[string]bool{}
	for _, raw := range logs {
		e := raw.(map[string]any)
		names[e["appliance_name"].(string)] = true
	}
	if !names["AC"] || !names["Unknown Appliance"] {
		t.Errorf("enriched names = %v", names)
	}
}

func TestDetectAnomaliesTool(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := exec(t, f, "detect_anomalies", nil)
	if res["message"] == nil {
		t.Errorf("expected all-clear message, got %v", res)
	}

	// An appliance turned on "nine hours ago" relative to the
	// registry's pinned clock trips the 8 hour threshold.
	ac, _ := f.ledger.Add(ctx, ledger.Appliance{Name: "AC", Type: "Air Conditioner", PowerRatingKWhPerHour: 1.5})
	if _, err := f.ledger.SetState(ctx, ac.UID, ledger.StateOn, ledger.TriggerManual); err != nil {
		t.Fatalf("SetState: %v", err)
	}

	reg, err := New(Deps{
		Ledger:   f.ledger,
		Usage:    f.usage,
		Routines: f.routines,
		Safety:   safety.NewMonitor(f.ledger, 8, nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil))),
		Profiles: f.profiles,
		Mode:     f.mode,
		Now:      func() time.Time { return time.Now().Add(9 * time.Hour) },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := reg.Execute(ctx, "detect_anomalies", nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	var res2 map[string]any
	json.Unmarshal([]byte(out), &res2)
	anomalies, ok := res2["anomalies"].([]any)
	if !ok || len(anomalies) != 1 {
		t.Fatalf("anomalies = %v", res2)
	}
}

func TestProjectionToolNaiveFallback(t *testing.T) {
	f := newFixture(t)

	res := exec(t, f, "calculate_intelligent_projection", map[string]any{
		"current_usage_kwh": 150.0,
		"current_cost_inr":  600.0,
		"days_passed":       15.0,
		"monthly_budget":    2500.0,
	})
	// No log history: 10 kWh/day over 15 remaining September days.
	if got := res["projected_total_usage_kwh"]; got != 300.0 {
		t.Errorf("projected_total_usage_kwh = %v, want 300", got)
	}
	if got := res["confidence_level"]; got != "low" {
		t.Errorf("confidence_level = %v, want low", got)
	}
	if res["usage_patterns"] == nil {
		t.Error("missing usage_patterns block")
	}
}

func TestUserAndAppliancesBundle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.ledger.Add(ctx, ledger.Appliance{Name: "AC", Type: "Air Conditioner", PowerRatingKWhPerHour: 1.5})

	res := exec(t, f, "get_user_and_appliances_data", nil)
	user, ok := res["user"].(map[string]any)
	if !ok || user["name"] != "Param" {
		t.Fatalf("user = %v", res["user"])
	}
	if _, leaked := user["dashboardData"]; leaked {
		t.Error("bundle should not carry the derived dashboard block")
	}
	appliances, _ := res["appliances"].([]any)
	if len(appliances) != 1 {
		t.Errorf("appliances = %v", appliances)
	}
}
