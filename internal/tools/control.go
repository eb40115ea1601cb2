package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ParamSingh24/PrakashAI/internal/ledger"
	"github.com/ParamSingh24/PrakashAI/internal/mode"
	"github.com/ParamSingh24/PrakashAI/internal/routines"
)

func (r *Registry) handleFindAndControl(ctx context.Context, args map[string]any) (any, error) {
	state := ledger.State(strArg(args, "new_state"))
	if !state.Valid() {
		return nil, fmt.Errorf("new_state must be %q or %q", ledger.StateOn, ledger.StateOff)
	}

	names := strSliceArg(args, "appliance_names")
	applianceType := strArg(args, "appliance_type")

	appliances, err := r.deps.Ledger.List(ctx)
	if err != nil {
		return nil, err
	}

	matched := map[string]ledger.Appliance{}
	for _, a := range appliances {
		if matchesNames(a, names) || matchesType(a, applianceType) {
			matched[a.UID] = a
		}
	}
	if len(matched) == 0 {
		return map[string]any{
			"success": false,
			"message": "Cannot execute action. I couldn't find any appliances that match your request.",
		}, nil
	}

	var changed []string
	var failed []string
	for uid, a := range matched {
		if _, err := r.deps.Ledger.SetState(ctx, uid, state, r.deps.Trigger); err != nil {
			r.deps.Log.Warn("tool state change failed", "appliance", uid, "error", err)
			failed = append(failed, a.Name)
			continue
		}
		changed = append(changed, a.Name)
	}

	if len(changed) == 0 {
		return map[string]any{
			"success": false,
			"message": fmt.Sprintf("Could not change any of the matched appliances: %s.", strings.Join(failed, ", ")),
		}, nil
	}

	res := map[string]any{
		"success": true,
		"message": fmt.Sprintf("Successfully turned %s %d appliance(s): %s.", state, len(changed), strings.Join(changed, ", ")),
	}
	if len(failed) > 0 {
		res["failed"] = failed
	}
	return res, nil
}

// matchesNames is a case-insensitive substring match: "ac" finds
// "Living Room AC".
func matchesNames(a ledger.Appliance, names []string) bool {
	lower := strings.ToLower(a.Name)
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		if strings.Contains(lower, n) || strings.Contains(n, lower) {
			return true
		}
	}
	return false
}

// matchesType matches the appliance type exactly (case-insensitive);
// "all" matches everything.
func matchesType(a ledger.Appliance, applianceType string) bool {
	t := strings.ToLower(strings.TrimSpace(applianceType))
	if t == "" {
		return false
	}
	if t == "all" {
		return true
	}
	return strings.ToLower(a.Type) == t
}

func (r *Registry) handleModifyDetails(ctx context.Context, args map[string]any) (any, error) {
	name := strArg(args, "appliance_name")
	if name == "" {
		return nil, errors.New("appliance_name is required")
	}
	updates := mapArg(args, "updates")
	if len(updates) == 0 {
		return map[string]any{
			"success": false,
			"message": "No valid fields to update were provided.",
		}, nil
	}

	appliances, err := r.deps.Ledger.List(ctx)
	if err != nil {
		return nil, err
	}
	uid := ""
	for _, a := range appliances {
		if strings.EqualFold(a.Name, name) {
			uid = a.UID
			break
		}
	}
	if uid == "" {
		return map[string]any{
			"success": false,
			"message": fmt.Sprintf("Appliance '%s' not found.", name),
		}, nil
	}

	updated, err := r.deps.Ledger.UpdateDetails(ctx, uid, updates)
	if errors.Is(err, ledger.ErrNoFields) {
		return map[string]any{
			"success": false,
			"message": "No valid fields to update were provided.",
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"success":   true,
		"message":   fmt.Sprintf("Successfully updated '%s'.", updated.Name),
		"appliance": updated,
	}, nil
}

func (r *Registry) handleAddAppliance(ctx context.Context, args map[string]any) (any, error) {
	name := strArg(args, "name")
	applianceType := strArg(args, "type")
	rating, okRating := numArg(args, "powerRatingKWhPerHour")
	if name == "" || applianceType == "" || !okRating {
		return nil, errors.New("name, type and powerRatingKWhPerHour are required")
	}

	added, err := r.deps.Ledger.Add(ctx, ledger.Appliance{
		Name:                  name,
		Type:                  applianceType,
		Description:           strArg(args, "description"),
		Location:              strArg(args, "location"),
		PowerRatingKWhPerHour: rating,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"success":   true,
		"message":   fmt.Sprintf("Added appliance '%s' with ID %s.", added.Name, added.UID),
		"appliance": added,
	}, nil
}

func (r *Registry) handleManageRoutines(ctx context.Context, args map[string]any) (any, error) {
	toCreate, _ := args["routines_to_create"].([]any)
	toDelete := strSliceArg(args, "routine_names_to_delete")
	if len(toCreate) == 0 && len(toDelete) == 0 {
		return nil, errors.New("provide routines_to_create or routine_names_to_delete")
	}

	appliances, err := r.deps.Ledger.List(ctx)
	if err != nil {
		return nil, err
	}

	deleted := 0
	if len(toDelete) > 0 {
		existing, err := r.deps.Routines.List(ctx)
		if err != nil {
			return nil, err
		}
		for _, name := range toDelete {
			for _, rt := range existing {
				if strings.EqualFold(rt.Name, name) {
					if err := r.deps.Routines.Delete(ctx, rt.ID); err == nil {
						deleted++
					}
				}
			}
		}
	}

	created := 0
	var skipped []string
	for _, raw := range toCreate {
		spec, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		name := strArg(spec, "name")
		applianceName := strArg(spec, "appliance_name")
		target := findApplianceByName(appliances, applianceName)
		if target == nil {
			skipped = append(skipped, fmt.Sprintf("%s (no appliance matching '%s')", name, applianceName))
			continue
		}

		_, err := r.deps.Routines.Create(ctx, routines.Routine{
			Name: name,
			Schedule: routines.Schedule{
				Time: strArg(spec, "time"),
				Days: strSliceArg(spec, "days"),
			},
			Actions: []routines.Action{{
				ApplianceID: target.UID,
				Command:     strArg(spec, "command"),
			}},
			CreatedBy: r.creator(),
		})
		if err != nil {
			skipped = append(skipped, fmt.Sprintf("%s (%v)", name, err))
			continue
		}
		created++
	}

	res := map[string]any{
		"success": true,
		"message": fmt.Sprintf("Successfully created %d and deleted %d routines.", created, deleted),
	}
	if len(skipped) > 0 {
		res["skipped"] = skipped
	}
	return res, nil
}

// findApplianceByName returns the first appliance whose name contains
// the query, case-insensitively.
func findApplianceByName(appliances []ledger.Appliance, name string) *ledger.Appliance {
	q := strings.ToLower(strings.TrimSpace(name))
	if q == "" {
		return nil
	}
	for i := range appliances {
		if strings.Contains(strings.ToLower(appliances[i].Name), q) {
			return &appliances[i]
		}
	}
	return nil
}

// creator maps the registry's trigger to the routine creator tag.
func (r *Registry) creator() routines.Creator {
	if r.deps.Trigger == ledger.TriggerAutonomous {
		return routines.CreatorAutonomous
	}
	return routines.CreatorAI
}

func (r *Registry) handleListRoutines(ctx context.Context, _ map[string]any) (any, error) {
	list, err := r.deps.Routines.List(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{"routines": list}, nil
}

func (r *Registry) handleSetMode(ctx context.Context, args map[string]any) (any, error) {
	m, err := mode.Parse(strArg(args, "mode"))
	if err != nil {
		return map[string]any{
			"success": false,
			"message": fmt.Sprintf("Invalid mode. Please choose from: %s, %s, %s.", mode.Balanced, mode.PowerSaving, mode.Extreme),
		}, nil
	}
	if r.deps.Mode == nil {
		return nil, errors.New("mode flag not configured")
	}
	if err := r.deps.Mode.Set(m); err != nil {
		return nil, err
	}

	// A mode change invalidates the agent's prior plan; drop every
	// agent-created routine so it can rebuild from the fresh bundle.
	cleared := 0
	for _, c := range []routines.Creator{routines.CreatorAI, routines.CreatorAutonomous} {
		n, err := r.deps.Routines.ClearByCreator(ctx, c)
		if err != nil {
			return nil, err
		}
		cleared += n
	}

	bundle, err := r.dataBundle(ctx)
	if err != nil {
		return nil, err
	}
	logs, err := r.handleReadUsageLogs(ctx, map[string]any{})
	if err == nil {
		if m, ok := logs.(map[string]any); ok {
			bundle["usage_logs"] = m["usage_logs"]
		}
	}

	return map[string]any{
		"success":          true,
		"message":          fmt.Sprintf("Power saving mode set to '%s'. Cleared %d agent routine(s). Ready to create new routines.", m, cleared),
		"routines_cleared": cleared,
		"analysis_data":    bundle,
	}, nil
}
