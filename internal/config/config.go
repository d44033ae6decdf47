package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Config holds all application configuration
type Config struct {
	General       GeneralConfig       `toml:"general"`
	Git           GitConfig           `toml:"git"`
	Sweep         SweepConfig         `toml:"sweep"`
	Notifications NotificationsConfig `toml:"notifications"`
	Web           WebConfig           `toml:"web"`
	Tools         ToolsConfig         `toml:"tools"`
}

// GeneralConfig holds general settings
type GeneralConfig struct {
	RepoPath              string `toml:"repo_path"`
	WorkspaceDir          string `toml:"workspace_dir"`
	DatabasePath          string `toml:"database_path"`
	MaxParallel           int    `toml:"max_parallel"`
	HolderID              string `toml:"holder_id"`
	StuckThresholdMinutes int    `toml:"stuck_threshold_minutes"`
}

// GitConfig holds commit identity and git execution settings
type GitConfig struct {
	BotName        string `toml:"bot_name"`
	BotEmail       string `toml:"bot_email"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	RetryOnLock    bool   `toml:"retry_on_lock"`
}

// SweepConfig holds periodic maintenance settings
type SweepConfig struct {
	Enabled            bool   `toml:"enabled"`
	Schedule           string `toml:"schedule"`
	MaxLeaseAgeMinutes int    `toml:"max_lease_age_minutes"`
}

// NotificationsConfig holds notification settings
type NotificationsConfig struct {
	Desktop      bool   `toml:"desktop"`
	SlackWebhook string `toml:"slack_webhook"`
}

// WebConfig holds web API settings
type WebConfig struct {
	Enabled bool   `toml:"enabled"`
	Port    int    `toml:"port"`
	Host    string `toml:"host"`
}

// Addr returns the host:port listen address
func (w WebConfig) Addr() string {
	return fmt.Sprintf("%s:%d", w.Host, w.Port)
}

// ToolsConfig holds plan action execution settings
type ToolsConfig struct {
	AllowCommands         bool `toml:"allow_commands"`
	CommandTimeoutSeconds int  `toml:"command_timeout_seconds"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		General: GeneralConfig{
			RepoPath:              "",
			WorkspaceDir:          filepath.Join(home, ".exo-orchestrator", "workspace"),
			DatabasePath:          filepath.Join(home, ".exo-orchestrator", "exo.db"),
			MaxParallel:           2,
			StuckThresholdMinutes: 30,
		},
		Git: GitConfig{
			BotName:        "Exo Orchestrator",
			BotEmail:       "exo-orchestrator@localhost",
			TimeoutSeconds: 60,
			RetryOnLock:    true,
		},
		Sweep: SweepConfig{
			Enabled:            true,
			Schedule:           "*/15 * * * *",
			MaxLeaseAgeMinutes: 60,
		},
		Notifications: NotificationsConfig{
			Desktop: true,
		},
		Web: WebConfig{
			Enabled: true,
			Port:    8080,
			Host:    "127.0.0.1",
		},
		Tools: ToolsConfig{
			AllowCommands:         true,
			CommandTimeoutSeconds: 60,
		},
	}
}

// Load reads configuration from a TOML file, falling back to defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	// Expand paths
	cfg.General.RepoPath = ExpandPath(cfg.General.RepoPath)
	cfg.General.WorkspaceDir = ExpandPath(cfg.General.WorkspaceDir)
	cfg.General.DatabasePath = ExpandPath(cfg.General.DatabasePath)

	return cfg, nil
}

// ExpandPath expands ~ to the user's home directory
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// DefaultConfigPath returns the default config file location
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "exo-orchestrator", "config.toml")
}

// LocalConfigName is the per-project config file searched for in the
// working directory and its parents
const LocalConfigName = ".exo-orch.toml"

// FindLocalConfig walks up from the working directory looking for a
// local config file. Returns "" when none is found.
func FindLocalConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, LocalConfigName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// LoadWithLocalFallback loads the explicit path when given, otherwise a
// local config found near the working directory, otherwise the default
// location.
func LoadWithLocalFallback(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}
	if local := FindLocalConfig(); local != "" {
		return Load(local)
	}
	return Load(DefaultConfigPath())
}
