package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ParamSingh24/PrakashAI/internal/mode"
)

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.deps.Chat == nil {
		s.writeError(w, http.StatusServiceUnavailable, "chat agent not configured")
		return
	}
	var body struct {
		Message   string `json:"message"`
		SessionID string `json:"sessionId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(body.Message) == "" {
		s.writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	if body.SessionID == "" {
		body.SessionID = "default"
	}

	reply, err := s.deps.Chat.Run(r.Context(), body.SessionID, body.Message)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"response":  reply,
		"sessionId": body.SessionID,
	})
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.deps.History.Recent(r.Context(), queryLimit(r, 50))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleChatClear(w http.ResponseWriter, r *http.Request) {
	n, err := s.deps.History.Clear(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"deleted": n})
}

func (s *Server) handleChatSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		s.writeError(w, http.StatusBadRequest, "q query parameter is required")
		return
	}
	entries, err := s.deps.History.Search(r.Context(), query, queryLimit(r, 50))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleChatStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.History.Stats(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleUserGet(w http.ResponseWriter, r *http.Request) {
	u, err := s.deps.Profiles.Current(r.Context())
	if err != nil {
		s.writeError(w, storeStatus(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleUserRefresh(w http.ResponseWriter, r *http.Request) {
	if s.deps.Dashboard == nil {
		s.writeError(w, http.StatusServiceUnavailable, "dashboard refresher not configured")
		return
	}
	d, err := s.deps.Dashboard.Refresh(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleModeGet(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"mode": string(s.deps.Mode.Current()),
	})
}

func (s *Server) handleModeSet(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	m, err := mode.Parse(body.Mode)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.deps.Mode.Set(m); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"mode": string(m)})
}

func (s *Server) handleAutonomousAnalyze(w http.ResponseWriter, r *http.Request) {
	if s.deps.Analysis == nil {
		s.writeError(w, http.StatusServiceUnavailable, "autonomous analysis not configured")
		return
	}
	rec, err := s.deps.Analysis.RunOnce(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleAutonomousLog(w http.ResponseWriter, r *http.Request) {
	if s.deps.ActionLog == nil {
		s.writeError(w, http.StatusServiceUnavailable, "autonomous analysis not configured")
		return
	}
	recs, err := s.deps.ActionLog.Recent(r.Context(), queryLimit(r, 20))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleAutonomousStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.ActionLog == nil {
		s.writeError(w, http.StatusServiceUnavailable, "autonomous analysis not configured")
		return
	}
	stats, err := s.deps.ActionLog.Stats(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleSchedulerStatus(w http.ResponseWriter, _ *http.Request) {
	if s.deps.Scheduler == nil {
		s.writeError(w, http.StatusServiceUnavailable, "scheduler not configured")
		return
	}
	s.writeJSON(w, http.StatusOK, s.deps.Scheduler.Status())
}
