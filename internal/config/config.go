// Package config handles PrakashAI configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/prakashai/config.yaml, /etc/prakashai/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "prakashai", "config.yaml"))
	}

	paths = append(paths, "/etc/prakashai/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all PrakashAI configuration.
type Config struct {
	Listen    ListenConfig    `yaml:"listen"`
	LLM       LLMConfig       `yaml:"llm"`
	Weather   WeatherConfig   `yaml:"weather"`
	News      NewsConfig      `yaml:"news"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Retention RetentionConfig `yaml:"retention"`
	Safety    SafetyConfig    `yaml:"safety"`
	Agent     AgentConfig     `yaml:"agent"`
	DataDir   string          `yaml:"data_dir"`
	UserID    string          `yaml:"user_id"`
	LogLevel  string          `yaml:"log_level"`
}

// ListenConfig defines the API server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// LLMConfig defines the reasoning engine connection.
type LLMConfig struct {
	BaseURL string  `yaml:"base_url"` // Ollama-compatible endpoint
	Model   string  `yaml:"model"`
	// Temperature for interactive chat turns. Autonomous analysis runs
	// use a lower fixed temperature for consistent decisions.
	Temperature float64 `yaml:"temperature"`
	// RequestTimeout bounds a single model round trip. Zero means the
	// client default (5 minutes).
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// WeatherConfig defines the read-only weather API.
type WeatherConfig struct {
	APIKey string `yaml:"api_key"`
	// BaseURL overrides the weatherapi.com endpoint, used in tests.
	BaseURL string `yaml:"base_url"`
}

// NewsConfig defines the read-only headlines API.
type NewsConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// MQTTConfig defines the optional state-transition publisher.
type MQTTConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Broker     string `yaml:"broker"` // e.g. mqtt://host:1883 or mqtts://host:8883
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	DeviceName string `yaml:"device_name"`
	BaseTopic  string `yaml:"base_topic"`
}

// SchedulerConfig defines the periodic job intervals. Each scheduler
// runs on its own timer against shared state; overlap between
// different schedulers is tolerated (SetState is idempotent on
// same-state transitions).
type SchedulerConfig struct {
	SystemCheckInterval  time.Duration `yaml:"system_check_interval"`  // routines + safety, default 1m
	AnomalySweepInterval time.Duration `yaml:"anomaly_sweep_interval"` // agent-driven sweep, default 15m
	AutonomousInterval   time.Duration `yaml:"autonomous_interval"`    // full-home analysis, default 1h
	DashboardInterval    time.Duration `yaml:"dashboard_interval"`     // dashboard refresh, default 1h
	AutonomousStartDelay time.Duration `yaml:"autonomous_start_delay"` // let stores settle first, default 2m
}

// RetentionConfig bounds the persisted logs. The original system
// hard-coded these at two different magnitudes; they are explicit
// policy here.
type RetentionConfig struct {
	UsageLogEntries  int `yaml:"usage_log_entries"`  // default 1000
	ChatEntries      int `yaml:"chat_entries"`       // default 1000
	ActionLogEntries int `yaml:"action_log_entries"` // default 500
}

// SafetyConfig tunes the safety monitor.
type SafetyConfig struct {
	// AnomalyThresholdHours flags appliances left on longer than this.
	AnomalyThresholdHours float64 `yaml:"anomaly_threshold_hours"` // default 8
	// MaintenanceThresholds maps appliance type to the cumulative kWh
	// beyond which a service recommendation is raised.
	MaintenanceThresholds map[string]float64 `yaml:"maintenance_thresholds"`
}

// AgentConfig bounds the orchestration loop.
type AgentConfig struct {
	// MaxToolRounds caps model round trips per turn. The source system
	// had no cap; an unbounded loop is a liveness hazard.
	MaxToolRounds int `yaml:"max_tool_rounds"` // default 8
	// ToolTimeout bounds a single tool execution.
	ToolTimeout time.Duration `yaml:"tool_timeout"` // default 30s
	// TurnDeadline bounds one full user-prompt-to-answer exchange.
	TurnDeadline time.Duration `yaml:"turn_deadline"` // default 5m
	// HistoryWindow is how many past chat entries seed model context.
	HistoryWindow int `yaml:"history_window"` // default 10
}

// Load reads and parses the config file at path, applying defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

// Default returns a config with all defaults applied, used when no
// config file exists.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Listen.Port == 0 {
		c.Listen.Port = 3000
	}
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.UserID == "" {
		c.UserID = "default"
	}
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = "http://localhost:11434"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "qwen3:8b"
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = 0.7
	}
	if c.Scheduler.SystemCheckInterval == 0 {
		c.Scheduler.SystemCheckInterval = time.Minute
	}
	if c.Scheduler.AnomalySweepInterval == 0 {
		c.Scheduler.AnomalySweepInterval = 15 * time.Minute
	}
	if c.Scheduler.AutonomousInterval == 0 {
		c.Scheduler.AutonomousInterval = time.Hour
	}
	if c.Scheduler.DashboardInterval == 0 {
		c.Scheduler.DashboardInterval = time.Hour
	}
	if c.Scheduler.AutonomousStartDelay == 0 {
		c.Scheduler.AutonomousStartDelay = 2 * time.Minute
	}
	if c.Retention.UsageLogEntries == 0 {
		c.Retention.UsageLogEntries = 1000
	}
	if c.Retention.ChatEntries == 0 {
		c.Retention.ChatEntries = 1000
	}
	if c.Retention.ActionLogEntries == 0 {
		c.Retention.ActionLogEntries = 500
	}
	if c.Safety.AnomalyThresholdHours == 0 {
		c.Safety.AnomalyThresholdHours = 8
	}
	if len(c.Safety.MaintenanceThresholds) == 0 {
		c.Safety.MaintenanceThresholds = map[string]float64{
			"Air Conditioner": 500,
			"Fan":             1000,
		}
	}
	if c.Agent.MaxToolRounds == 0 {
		c.Agent.MaxToolRounds = 8
	}
	if c.Agent.ToolTimeout == 0 {
		c.Agent.ToolTimeout = 30 * time.Second
	}
	if c.Agent.TurnDeadline == 0 {
		c.Agent.TurnDeadline = 5 * time.Minute
	}
	if c.Agent.HistoryWindow == 0 {
		c.Agent.HistoryWindow = 10
	}
	if c.MQTT.DeviceName == "" {
		c.MQTT.DeviceName = "prakashai"
	}
	if c.MQTT.BaseTopic == "" {
		c.MQTT.BaseTopic = "prakashai"
	}
}
