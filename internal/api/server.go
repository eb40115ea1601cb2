// Package api exposes the HTTP surface: appliance CRUD and state
// control, routines, usage history, the chat endpoint, dashboard
// refresh, mode control, the autonomous action log, and a websocket
// event feed.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ParamSingh24/PrakashAI/internal/autonomous"
	"github.com/ParamSingh24/PrakashAI/internal/chat"
	"github.com/ParamSingh24/PrakashAI/internal/events"
	"github.com/ParamSingh24/PrakashAI/internal/ledger"
	"github.com/ParamSingh24/PrakashAI/internal/mode"
	"github.com/ParamSingh24/PrakashAI/internal/profile"
	"github.com/ParamSingh24/PrakashAI/internal/routines"
	"github.com/ParamSingh24/PrakashAI/internal/schedule"
	"github.com/ParamSingh24/PrakashAI/internal/usagelog"
)

// ChatRunner is the orchestration loop as the server sees it.
type ChatRunner interface {
	Run(ctx context.Context, sessionID, userMessage string) (string, error)
}

// AnalysisRunner triggers one autonomous analysis on demand.
type AnalysisRunner interface {
	RunOnce(ctx context.Context) (autonomous.Record, error)
}

// DashboardRefresher recomputes the derived dashboard block.
type DashboardRefresher interface {
	Refresh(ctx context.Context) (profile.Dashboard, error)
}

// Deps are the collaborators the handlers need. Chat, Analysis,
// Dashboard, ActionLog and Scheduler may be nil; their endpoints then
// report 503.
type Deps struct {
	Ledger    *ledger.Ledger
	Usage     *usagelog.Store
	Routines  *routines.Store
	History   *chat.Store
	Profiles  *profile.Store
	Mode      *mode.Flag
	Chat      ChatRunner
	Analysis  AnalysisRunner
	Dashboard DashboardRefresher
	ActionLog *autonomous.Store
	Scheduler *schedule.Service
	Bus       *events.Bus
}

// Server serves the HTTP API.
type Server struct {
	address string
	port    int
	deps    Deps
	log     *slog.Logger
	server  *http.Server
}

// NewServer creates an API server.
func NewServer(address string, port int, deps Deps, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{address: address, port: port, deps: deps, log: log}
}

// Handler builds the route table. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /", s.handleRoot)

	mux.HandleFunc("GET /v1/appliances", s.handleApplianceList)
	mux.HandleFunc("POST /v1/appliances", s.handleApplianceAdd)
	mux.HandleFunc("GET /v1/appliances/stats", s.handleApplianceStats)
	mux.HandleFunc("GET /v1/appliances/{uid}", s.handleApplianceGet)
	mux.HandleFunc("PUT /v1/appliances/{uid}", s.handleApplianceUpdate)
	mux.HandleFunc("PUT /v1/appliances/{uid}/state", s.handleApplianceState)
	mux.HandleFunc("DELETE /v1/appliances/{uid}", s.handleApplianceDelete)

	mux.HandleFunc("GET /v1/routines", s.handleRoutineList)
	mux.HandleFunc("POST /v1/routines", s.handleRoutineCreate)
	mux.HandleFunc("DELETE /v1/routines/{id}", s.handleRoutineDelete)
	mux.HandleFunc("POST /v1/routines/{id}/execute", s.handleRoutineExecute)

	mux.HandleFunc("GET /v1/usage", s.handleUsageList)
	mux.HandleFunc("GET /v1/usage/{uid}", s.handleUsageByAppliance)

	mux.HandleFunc("POST /v1/chat", s.handleChat)
	mux.HandleFunc("GET /v1/chat/history", s.handleChatHistory)
	mux.HandleFunc("DELETE /v1/chat/history", s.handleChatClear)
	mux.HandleFunc("GET /v1/chat/history/search", s.handleChatSearch)
	mux.HandleFunc("GET /v1/chat/history/stats", s.handleChatStats)

	mux.HandleFunc("GET /v1/user", s.handleUserGet)
	mux.HandleFunc("POST /v1/user/refresh", s.handleUserRefresh)

	mux.HandleFunc("GET /v1/mode", s.handleModeGet)
	mux.HandleFunc("PUT /v1/mode", s.handleModeSet)

	mux.HandleFunc("POST /v1/autonomous/analyze", s.handleAutonomousAnalyze)
	mux.HandleFunc("GET /v1/autonomous/log", s.handleAutonomousLog)
	mux.HandleFunc("GET /v1/autonomous/stats", s.handleAutonomousStats)

	mux.HandleFunc("GET /v1/scheduler", s.handleSchedulerStatus)

	mux.HandleFunc("GET /ws/events", s.handleEventsWS)

	return s.withLogging(mux)
}

// Start begins serving HTTP requests. Blocks until the listener fails
// or Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.address, s.port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // chat turns can be slow
	}

	s.log.Info("starting API server", "address", s.address, "port", s.port)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"name":   "PrakashAI",
		"status": "ok",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Debug("write JSON response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// storeStatus maps domain errors to HTTP statuses.
func storeStatus(err error) int {
	switch {
	case errors.Is(err, ledger.ErrNotFound), errors.Is(err, routines.ErrNotFound), errors.Is(err, profile.ErrNoUser):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrInvalidState), errors.Is(err, ledger.ErrNoFields):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// queryLimit parses a limit query parameter with a default.
func queryLimit(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}
