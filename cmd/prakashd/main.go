// Prakashd is the PrakashAI home energy daemon.
//
// It tracks appliance state and energy usage, runs an LLM-driven chat
// agent with appliance control tools, executes scheduled routines,
// enforces safety limits, and performs periodic autonomous analysis of
// the whole home. Configuration is loaded from a single YAML file
// discovered automatically (see [config.DefaultSearchPaths]).
//
// Usage:
//
//	prakashd                 Start the daemon
//	prakashd -config <path>  Start with an explicit config file
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ParamSingh24/PrakashAI/internal/agent"
	"github.com/ParamSingh24/PrakashAI/internal/api"
	"github.com/ParamSingh24/PrakashAI/internal/autonomous"
	"github.com/ParamSingh24/PrakashAI/internal/chat"
	"github.com/ParamSingh24/PrakashAI/internal/config"
	"github.com/ParamSingh24/PrakashAI/internal/events"
	"github.com/ParamSingh24/PrakashAI/internal/ledger"
	"github.com/ParamSingh24/PrakashAI/internal/llm"
	"github.com/ParamSingh24/PrakashAI/internal/mode"
	"github.com/ParamSingh24/PrakashAI/internal/mqtt"
	"github.com/ParamSingh24/PrakashAI/internal/news"
	"github.com/ParamSingh24/PrakashAI/internal/profile"
	"github.com/ParamSingh24/PrakashAI/internal/routines"
	"github.com/ParamSingh24/PrakashAI/internal/safety"
	"github.com/ParamSingh24/PrakashAI/internal/schedule"
	"github.com/ParamSingh24/PrakashAI/internal/storage"
	"github.com/ParamSingh24/PrakashAI/internal/tools"
	"github.com/ParamSingh24/PrakashAI/internal/usagelog"
	"github.com/ParamSingh24/PrakashAI/internal/weather"
)

func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point. The OS-level dependencies are injected
// so the startup-to-shutdown lifecycle can be driven from tests.
func run(ctx context.Context, stdout io.Writer, args []string) error {
	var configPath string
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			fmt.Fprintln(stdout, "usage: prakashd [-config path]")
			return nil
		default:
			return fmt.Errorf("unknown argument %q", args[i])
		}
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := newLogger(stdout, level)
	slog.SetDefault(logger)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	// --- Persistence ---
	db, err := storage.OpenSQLite(filepath.Join(cfg.DataDir, "prakashai.db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	usage, err := usagelog.NewStore(db, cfg.Retention.UsageLogEntries)
	if err != nil {
		return fmt.Errorf("init usage log: %w", err)
	}
	history, err := chat.NewStore(db, cfg.Retention.ChatEntries)
	if err != nil {
		return fmt.Errorf("init chat history: %w", err)
	}
	actionLog, err := autonomous.NewStore(db, cfg.Retention.ActionLogEntries)
	if err != nil {
		return fmt.Errorf("init action log: %w", err)
	}

	applSnap, err := storage.NewSnapshot[ledger.Appliance](filepath.Join(cfg.DataDir, "appliances.json"))
	if err != nil {
		return fmt.Errorf("open appliance snapshot: %w", err)
	}
	routSnap, err := storage.NewSnapshot[routines.Routine](filepath.Join(cfg.DataDir, "routines.json"))
	if err != nil {
		return fmt.Errorf("open routine snapshot: %w", err)
	}
	profSnap, err := storage.NewSnapshot[profile.User](filepath.Join(cfg.DataDir, "users.json"))
	if err != nil {
		return fmt.Errorf("open user snapshot: %w", err)
	}

	bus := events.New()
	appliances := ledger.New(applSnap, usage, bus, logger)
	routineStore := routines.NewStore(routSnap)
	profiles := profile.NewStore(profSnap)

	if err := seedUser(ctx, profiles, cfg.UserID); err != nil {
		return fmt.Errorf("seed user profile: %w", err)
	}

	flag, err := mode.NewFlag(filepath.Join(cfg.DataDir, "power_saving_mode.json"))
	if err != nil {
		return fmt.Errorf("init mode flag: %w", err)
	}

	monitor := safety.NewMonitor(appliances, cfg.Safety.AnomalyThresholdHours, cfg.Safety.MaintenanceThresholds, bus, logger)
	refresher := profile.NewRefresher(profiles, usage, appliances, routineStore, logger)

	// --- Optional external data sources ---
	var weatherClient *weather.Client
	if cfg.Weather.APIKey != "" {
		weatherClient = weather.NewClient(cfg.Weather.BaseURL, cfg.Weather.APIKey)
	}
	var newsClient *news.Client
	if cfg.News.APIKey != "" {
		newsClient = news.NewClient(cfg.News.BaseURL, cfg.News.APIKey)
	}

	// --- Reasoning engine and tool registries ---
	llmClient := llm.NewOllamaClient(cfg.LLM.BaseURL, cfg.LLM.Model, cfg.LLM.Temperature, cfg.LLM.RequestTimeout)
	if err := llmClient.Ping(ctx); err != nil {
		logger.Warn("reasoning engine unreachable at startup", "base_url", cfg.LLM.BaseURL, "error", err)
	}

	// Chat and autonomous runs get separate registries so state changes
	// carry the right trigger attribution.
	chatRegistry, err := tools.New(tools.Deps{
		Ledger:   appliances,
		Usage:    usage,
		Routines: routineStore,
		Safety:   monitor,
		Weather:  weatherClient,
		News:     newsClient,
		Profiles: profiles,
		Mode:     flag,
		Trigger:  ledger.TriggerAI,
		Log:      logger,
	})
	if err != nil {
		return fmt.Errorf("build chat tool registry: %w", err)
	}
	autoRegistry, err := tools.New(tools.Deps{
		Ledger:   appliances,
		Usage:    usage,
		Routines: routineStore,
		Safety:   monitor,
		Weather:  weatherClient,
		News:     newsClient,
		Profiles: profiles,
		Mode:     flag,
		Trigger:  ledger.TriggerAutonomous,
		Log:      logger,
	})
	if err != nil {
		return fmt.Errorf("build autonomous tool registry: %w", err)
	}

	loop := agent.New(llmClient, chatRegistry, history, profiles, flag, bus, logger, agent.Options{
		MaxToolRounds: cfg.Agent.MaxToolRounds,
		ToolTimeout:   cfg.Agent.ToolTimeout,
		TurnDeadline:  cfg.Agent.TurnDeadline,
		HistoryWindow: cfg.Agent.HistoryWindow,
	})
	runner := autonomous.NewRunner(llmClient, autoRegistry, actionLog, appliances, usage, routineStore, flag, bus, logger, autonomous.Options{
		MaxToolRounds: cfg.Agent.MaxToolRounds,
		ToolTimeout:   cfg.Agent.ToolTimeout,
	})

	// --- Background jobs ---
	routineScheduler := routines.NewScheduler(routineStore, appliances, bus, logger)
	jobs := schedule.New(logger)
	addJob := func(j schedule.Job) error {
		if err := jobs.Add(j); err != nil {
			return fmt.Errorf("register job %q: %w", j.Name, err)
		}
		return nil
	}
	if err := addJob(schedule.Job{
		Name:  "system-check",
		Every: cfg.Scheduler.SystemCheckInterval,
		Run: func(ctx context.Context) error {
			routineScheduler.Tick(ctx, time.Now())
			monitor.EnforceMaxDurations(ctx, time.Now())
			return nil
		},
	}); err != nil {
		return err
	}
	if err := addJob(schedule.Job{
		Name:  "anomaly-sweep",
		Every: cfg.Scheduler.AnomalySweepInterval,
		Run: func(ctx context.Context) error {
			_, err := monitor.DetectAnomalies(ctx, time.Now())
			return err
		},
	}); err != nil {
		return err
	}
	if err := addJob(schedule.Job{
		Name:       "autonomous-analysis",
		Every:      cfg.Scheduler.AutonomousInterval,
		StartDelay: cfg.Scheduler.AutonomousStartDelay,
		Run: func(ctx context.Context) error {
			_, err := runner.RunOnce(ctx)
			return err
		},
	}); err != nil {
		return err
	}
	if err := addJob(schedule.Job{
		Name:  "dashboard-refresh",
		Every: cfg.Scheduler.DashboardInterval,
		Run: func(ctx context.Context) error {
			_, err := refresher.Refresh(ctx)
			return err
		},
	}); err != nil {
		return err
	}

	// --- MQTT (optional) ---
	var mqttPub *mqtt.Publisher
	if cfg.MQTT.Enabled && cfg.MQTT.Broker != "" {
		mqttPub = mqtt.New(cfg.MQTT, bus, logger)
	} else {
		logger.Info("mqtt publishing disabled (not configured)")
	}

	server := api.NewServer(cfg.Listen.Address, cfg.Listen.Port, api.Deps{
		Ledger:    appliances,
		Usage:     usage,
		Routines:  routineStore,
		History:   history,
		Profiles:  profiles,
		Mode:      flag,
		Chat:      loop,
		Analysis:  runner,
		Dashboard: refresher,
		ActionLog: actionLog,
		Scheduler: jobs,
		Bus:       bus,
	}, logger)

	// --- Signal handling and graceful shutdown ---
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	jobs.Start(ctx)
	defer jobs.Stop()

	if mqttPub != nil {
		go func() {
			if err := mqttPub.Start(ctx); err != nil {
				logger.Error("mqtt publisher failed", "error", err)
			}
		}()
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutdown signal received")

		if mqttPub != nil {
			offlineCtx, offlineCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer offlineCancel()
			if err := mqttPub.Stop(offlineCtx); err != nil {
				logger.Error("mqtt shutdown failed", "error", err)
			}
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.Start(ctx); err != nil {
		if ctx.Err() == nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	logger.Info("PrakashAI stopped")
	return nil
}

// seedUser creates the household profile on first start so the agent
// always has a user context to work with.
func seedUser(ctx context.Context, profiles *profile.Store, uid string) error {
	_, err := profiles.Current(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, profile.ErrNoUser) {
		return err
	}
	return profiles.Put(ctx, profile.User{
		UID:           uid,
		Name:          "Household",
		MonthlyBudget: 2500,
	})
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}))
}

// loadConfig locates and parses the YAML configuration file. A missing
// file is not fatal; the daemon starts with defaults.
func loadConfig(explicit string) (*config.Config, error) {
	path, err := config.FindConfig(explicit)
	if err != nil {
		if explicit != "" {
			return nil, err
		}
		return config.Default(), nil
	}
	return config.Load(path)
}
