package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ParamSingh24/PrakashAI/internal/ledger"
	"github.com/ParamSingh24/PrakashAI/internal/routines"
)

func (s *Server) handleApplianceList(w http.ResponseWriter, r *http.Request) {
	items, err := s.deps.Ledger.List(r.Context())
	if err != nil {
		s.writeError(w, storeStatus(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleApplianceGet(w http.ResponseWriter, r *http.Request) {
	a, err := s.deps.Ledger.Get(r.Context(), r.PathValue("uid"))
	if err != nil {
		s.writeError(w, storeStatus(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleApplianceAdd(w http.ResponseWriter, r *http.Request) {
	var a ledger.Appliance
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if a.Name == "" || a.Type == "" || a.PowerRatingKWhPerHour <= 0 {
		s.writeError(w, http.StatusBadRequest, "name, type and powerRatingKWhPerHour are required")
		return
	}
	created, err := s.deps.Ledger.Add(r.Context(), a)
	if err != nil {
		s.writeError(w, storeStatus(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleApplianceUpdate(w http.ResponseWriter, r *http.Request) {
	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	updated, err := s.deps.Ledger.UpdateDetails(r.Context(), r.PathValue("uid"), fields)
	if err != nil {
		s.writeError(w, storeStatus(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, updated)
}

// stateChangeResponse is the contract for manual state control.
type stateChangeResponse struct {
	Success       bool              `json:"success"`
	Appliance     *ledger.Appliance `json:"appliance,omitempty"`
	Message       string            `json:"message"`
	PreviousState ledger.State      `json:"previous_state,omitempty"`
	NewState      ledger.State      `json:"new_state,omitempty"`
}

func (s *Server) handleApplianceState(w http.ResponseWriter, r *http.Request) {
	uid := r.PathValue("uid")
	var body struct {
		State string `json:"state"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	before, err := s.deps.Ledger.Get(r.Context(), uid)
	if err != nil {
		s.writeJSON(w, storeStatus(err), stateChangeResponse{
			Message: fmt.Sprintf("Appliance %s not found.", uid),
		})
		return
	}

	after, err := s.deps.Ledger.SetState(r.Context(), uid, ledger.State(body.State), ledger.TriggerManual)
	if err != nil {
		s.writeJSON(w, storeStatus(err), stateChangeResponse{
			Message: err.Error(),
		})
		return
	}

	s.writeJSON(w, http.StatusOK, stateChangeResponse{
		Success:       true,
		Appliance:     &after,
		Message:       fmt.Sprintf("%s is now %s.", after.Name, after.State),
		PreviousState: before.State,
		NewState:      after.State,
	})
}

func (s *Server) handleApplianceStats(w http.ResponseWriter, r *http.Request) {
	items, err := s.deps.Ledger.List(r.Context())
	if err != nil {
		s.writeError(w, storeStatus(err), err.Error())
		return
	}
	var on int
	var totalKWh float64
	byType := map[string]int{}
	for _, a := range items {
		if a.State == ledger.StateOn {
			on++
		}
		totalKWh += a.TotalUsageKWh
		byType[a.Type]++
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"total":         len(items),
		"on":            on,
		"off":           len(items) - on,
		"totalUsageKWh": totalKWh,
		"byType":        byType,
	})
}

func (s *Server) handleApplianceDelete(w http.ResponseWriter, r *http.Request) {
	uid := r.PathValue("uid")
	if err := s.deps.Ledger.Delete(r.Context(), uid); err != nil {
		s.writeError(w, storeStatus(err), err.Error())
		return
	}
	// Routines referencing a deleted appliance lose that action.
	if err := s.deps.Routines.StripAppliance(r.Context(), uid); err != nil {
		s.log.Warn("strip appliance from routines", "uid", uid, "error", err)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"deleted": uid})
}

func (s *Server) handleRoutineList(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Routines.List(r.Context())
	if err != nil {
		s.writeError(w, storeStatus(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleRoutineCreate(w http.ResponseWriter, r *http.Request) {
	var rt routines.Routine
	if err := json.NewDecoder(r.Body).Decode(&rt); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if rt.CreatedBy == "" {
		rt.CreatedBy = routines.CreatorUser
	}
	created, err := s.deps.Routines.Create(r.Context(), rt)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleRoutineDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.deps.Routines.Delete(r.Context(), id); err != nil {
		s.writeError(w, storeStatus(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

// handleRoutineExecute runs a routine's actions immediately, outside
// its schedule.
func (s *Server) handleRoutineExecute(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	list, err := s.deps.Routines.List(r.Context())
	if err != nil {
		s.writeError(w, storeStatus(err), err.Error())
		return
	}
	var target *routines.Routine
	for i := range list {
		if list[i].ID == id {
			target = &list[i]
			break
		}
	}
	if target == nil {
		s.writeError(w, http.StatusNotFound, routines.ErrNotFound.Error())
		return
	}

	executed := 0
	var failures []string
	for _, action := range target.Actions {
		state, ok := routines.ResolveCommand(action.Command)
		if !ok {
			failures = append(failures, fmt.Sprintf("%s: unknown command %q", action.ApplianceID, action.Command))
			continue
		}
		if _, err := s.deps.Ledger.SetState(r.Context(), action.ApplianceID, state, ledger.TriggerRoutine); err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", action.ApplianceID, err))
			continue
		}
		executed++
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"routine":  target.Name,
		"executed": executed,
		"failures": failures,
	})
}

func (s *Server) handleUsageList(w http.ResponseWriter, r *http.Request) {
	entries, err := s.deps.Usage.Recent(r.Context(), queryLimit(r, 50))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleUsageByAppliance(w http.ResponseWriter, r *http.Request) {
	entries, err := s.deps.Usage.ByAppliance(r.Context(), r.PathValue("uid"), queryLimit(r, 50))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, entries)
}
