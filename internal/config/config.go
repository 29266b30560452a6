// Package config handles configuration loading for brigade. Settings
// come from built-in defaults, the user config under the XDG config
// dir, a project-local .brigade.yaml found upward from the working
// directory, and BRIGADE_* environment variables, later sources
// winning.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all brigade settings.
type Config struct {
	// BaseBranch is the branch workspaces fork from and integration
	// merges into.
	BaseBranch string `mapstructure:"base_branch"`
	// WorkspaceRoot is where agent worktrees are created, relative to
	// the repository root unless absolute.
	WorkspaceRoot string `mapstructure:"workspace_root"`
	// MaxAgents caps how many agent specs one plan may hold.
	MaxAgents int `mapstructure:"max_agents"`
	// Decomposer selects how work items become agent specs: "rules" or
	// "claude".
	Decomposer string `mapstructure:"decomposer"`
	// InferFileOverlap adds producer/consumer dependency edges from
	// declared file lists.
	InferFileOverlap bool `mapstructure:"infer_file_overlap"`
	// ProtectedPaths are glob patterns flagged at plan time when an
	// agent declares files inside them. Merged with built-in defaults.
	ProtectedPaths []string `mapstructure:"protected_paths"`

	Anthropic   AnthropicConfig   `mapstructure:"anthropic"`
	Validation  ValidationConfig  `mapstructure:"validation"`
	Integration IntegrationConfig `mapstructure:"integration"`
	Server      ServerConfig      `mapstructure:"server"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// AnthropicConfig holds settings for the claude decomposer.
type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
	// Bedrock routes requests through AWS Bedrock instead of the
	// Anthropic API.
	Bedrock bool `mapstructure:"bedrock"`
}

// ValidationConfig holds validator settings.
type ValidationConfig struct {
	// TestCommand is the shell command run inside each workspace; empty
	// skips the test gate.
	TestCommand string        `mapstructure:"test_command"`
	TestTimeout time.Duration `mapstructure:"test_timeout"`
}

// IntegrationConfig holds integrator settings.
type IntegrationConfig struct {
	// Strategy is the conflict resolution strategy: manual, incoming,
	// target, or union.
	Strategy       string        `mapstructure:"strategy"`
	ResolveTimeout time.Duration `mapstructure:"resolve_timeout"`
	// KeepWorkspaces leaves workspaces on disk after integration.
	KeepWorkspaces bool `mapstructure:"keep_workspaces"`
}

// ServerConfig holds the status server settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	// Level is a zerolog level name: debug, info, warn, error.
	Level string `mapstructure:"level"`
}

// Load reads configuration from the user config, the project config,
// and the environment, over built-in defaults.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("BRIGADE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromPath reads configuration from one specific file over the
// defaults, skipping the search chain.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values outside their known sets.
func (c *Config) Validate() error {
	switch c.Decomposer {
	case "rules", "claude":
	default:
		return fmt.Errorf("unknown decomposer %q (want rules or claude)", c.Decomposer)
	}
	switch c.Integration.Strategy {
	case "manual", "incoming", "target", "union":
	default:
		return fmt.Errorf("unknown integration strategy %q", c.Integration.Strategy)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}
	if c.MaxAgents < 1 {
		return fmt.Errorf("max_agents must be at least 1, got %d", c.MaxAgents)
	}
	return nil
}

// Save writes the configuration to the user config file.
func Save(cfg *Config) error {
	dir := userConfigDir()
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(filepath.Join(dir, "config.yaml"))

	v.Set("base_branch", cfg.BaseBranch)
	v.Set("workspace_root", cfg.WorkspaceRoot)
	v.Set("max_agents", cfg.MaxAgents)
	v.Set("decomposer", cfg.Decomposer)
	v.Set("infer_file_overlap", cfg.InferFileOverlap)
	v.Set("protected_paths", cfg.ProtectedPaths)
	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("anthropic.bedrock", cfg.Anthropic.Bedrock)
	v.Set("validation.test_command", cfg.Validation.TestCommand)
	v.Set("validation.test_timeout", cfg.Validation.TestTimeout.String())
	v.Set("integration.strategy", cfg.Integration.Strategy)
	v.Set("integration.resolve_timeout", cfg.Integration.ResolveTimeout.String())
	v.Set("integration.keep_workspaces", cfg.Integration.KeepWorkspaces)
	v.Set("server.addr", cfg.Server.Addr)
	v.Set("logging.level", cfg.Logging.Level)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path of the user config file.
func GetUserConfigPath() string {
	return filepath.Join(userConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the project config path, or "" when no
// .brigade.yaml exists here or above.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("base_branch", "main")
	v.SetDefault("workspace_root", ".brigade/workspaces")
	v.SetDefault("max_agents", 8)
	v.SetDefault("decomposer", "rules")
	v.SetDefault("infer_file_overlap", false)
	v.SetDefault("protected_paths", []string{})

	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5")
	v.SetDefault("anthropic.bedrock", false)

	v.SetDefault("validation.test_command", "")
	v.SetDefault("validation.test_timeout", "10m")

	v.SetDefault("integration.strategy", "manual")
	v.SetDefault("integration.resolve_timeout", "0")
	v.SetDefault("integration.keep_workspaces", false)

	v.SetDefault("server.addr", "127.0.0.1:8710")
	v.SetDefault("logging.level", "info")
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		BaseBranch:    "main",
		WorkspaceRoot: ".brigade/workspaces",
		MaxAgents:     8,
		Decomposer:    "rules",
		Anthropic: AnthropicConfig{
			Model: "claude-sonnet-4-5",
		},
		Validation: ValidationConfig{
			TestTimeout: 10 * time.Minute,
		},
		Integration: IntegrationConfig{
			Strategy: "manual",
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8710",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func userConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "brigade")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "brigade")
	}
	return filepath.Join(home, ".config", "brigade")
}

// findProjectConfig searches for .brigade.yaml upward from the working
// directory.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".brigade.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}
