// Package schedule runs the periodic jobs: the routine tick, the
// safety sweeps, the hourly autonomous analysis, and the dashboard
// refresh. Each job runs on its own fixed interval against shared
// state; overlap between different jobs is tolerated because state
// transitions are idempotent on same-state changes.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"
)

// Job is one periodic task.
type Job struct {
	Name  string
	Every time.Duration
	// StartDelay postpones the first registration, letting stores
	// settle before heavyweight jobs begin.
	StartDelay time.Duration
	Run        func(ctx context.Context) error
}

// JobStatus is the last observed outcome of a job.
type JobStatus struct {
	Name      string     `json:"name"`
	Every     string     `json:"every"`
	LastRun   *time.Time `json:"lastRun,omitempty"`
	LastError string     `json:"lastError,omitempty"`
	Runs      int        `json:"runs"`
}

// Service drives the registered jobs.
type Service struct {
	log  *slog.Logger
	cron *rcron.Cron

	mu     sync.Mutex
	jobs   []Job
	status map[string]*JobStatus
	cancel context.CancelFunc
	timers []*time.Timer
}

// New creates an empty scheduler service.
func New(log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{log: log, status: make(map[string]*JobStatus)}
}

// Add registers a job. Must be called before Start.
func (s *Service) Add(j Job) error {
	if j.Name == "" || j.Run == nil {
		return fmt.Errorf("schedule: job needs a name and a run function")
	}
	if j.Every <= 0 {
		return fmt.Errorf("schedule: job %s has no interval", j.Name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, j)
	s.status[j.Name] = &JobStatus{Name: j.Name, Every: j.Every.String()}
	return nil
}

// Start launches all registered jobs. They run until the context is
// cancelled or Stop is called.
func (s *Service) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	c := rcron.New()

	s.mu.Lock()
	s.cancel = cancel
	s.cron = c
	jobs := make([]Job, len(s.jobs))
	copy(jobs, s.jobs)
	s.mu.Unlock()

	for _, j := range jobs {
		j := j
		// register captures the local cron instance: a delayed timer may
		// fire after Stop has already cleared s.cron, and adding to a
		// stopped cron is a harmless no-op.
		register := func() {
			_, err := c.AddFunc(fmt.Sprintf("@every %s", j.Every), func() {
				s.execute(runCtx, j)
			})
			if err != nil {
				s.log.Error("register job failed", "job", j.Name, "error", err)
			}
		}
		if j.StartDelay > 0 {
			t := time.AfterFunc(j.StartDelay, register)
			s.mu.Lock()
			s.timers = append(s.timers, t)
			s.mu.Unlock()
		} else {
			register()
		}
	}

	c.Start()
	s.log.Info("scheduler started", "jobs", len(jobs))

	go func() {
		<-runCtx.Done()
		s.Stop()
	}()
}

func (s *Service) execute(ctx context.Context, j Job) {
	if ctx.Err() != nil {
		return
	}
	err := j.Run(ctx)
	now := time.Now()

	s.mu.Lock()
	if st := s.status[j.Name]; st != nil {
		st.LastRun = &now
		st.Runs++
		st.LastError = ""
		if err != nil {
			st.LastError = err.Error()
		}
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Error("job failed", "job", j.Name, "error", err)
		return
	}
	s.log.Debug("job completed", "job", j.Name)
}

// Status reports the last outcome of every job, in registration order.
func (s *Service) Status() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JobStatus, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, *s.status[j.Name])
	}
	return out
}

// Stop halts the scheduler. Running jobs finish; no new ones fire.
func (s *Service) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	cron := s.cron
	timers := s.timers
	s.cancel = nil
	s.cron = nil
	s.timers = nil
	s.mu.Unlock()

	for _, t := range timers {
		t.Stop()
	}
	if cron != nil {
		<-cron.Stop().Done()
	}
	if cancel != nil {
		cancel()
	}
	s.log.Info("scheduler stopped")
}
