package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fieldmarshal/brigade/internal/config"
)

var (
	configInit bool
	configShow bool
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "View or modify configuration",
	Long: `View or modify brigade configuration.

Without arguments, displays the effective configuration and where it
came from. With one argument (key), displays that value. With two
arguments (key value), sets the value in the user config file.

Settings load in order: built-in defaults, the user config under
$XDG_CONFIG_HOME/brigade/config.yaml, a project .brigade.yaml found
upward from the working directory, then BRIGADE_* environment
variables. Later sources win.`,
	Args: cobra.MaximumNArgs(2),
	RunE: runConfig,
}

func init() {
	configCmd.Flags().BoolVar(&configInit, "init", false, "Write the default config to the user config file")
	configCmd.Flags().BoolVar(&configShow, "show", false, "Display the effective configuration")
}

func runConfig(cmd *cobra.Command, args []string) error {
	if configInit {
		path := config.GetUserConfigPath()
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists at %s", path)
		}
		if err := config.Save(config.Default()); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}
		fmt.Printf("Wrote default config to %s\n", path)
		return nil
	}

	if configShow || len(args) == 0 {
		displayAllConfig(cfg)
		return nil
	}

	switch len(args) {
	case 1:
		value, err := getConfigValue(cfg, args[0])
		if err != nil {
			return err
		}
		fmt.Println(value)
		return nil
	default:
		if err := setConfigValue(cfg, args[0], args[1]); err != nil {
			return err
		}
		if err := config.Save(cfg); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}
		fmt.Printf("Set %s = %s\n", args[0], args[1])
		return nil
	}
}

// displayAllConfig prints every setting plus the files they came from.
func displayAllConfig(cfg *config.Config) {
	fmt.Printf("base_branch: %s\n", cfg.BaseBranch)
	fmt.Printf("workspace_root: %s\n", cfg.WorkspaceRoot)
	fmt.Printf("max_agents: %d\n", cfg.MaxAgents)
	fmt.Printf("decomposer: %s\n", cfg.Decomposer)
	fmt.Printf("infer_file_overlap: %t\n", cfg.InferFileOverlap)
	fmt.Printf("protected_paths: %s\n", strings.Join(cfg.ProtectedPaths, ", "))
	fmt.Printf("anthropic.api_key: %s (%s)\n",
		config.MaskAPIKey(cfg.Anthropic.APIKey), config.GetAPIKeySource(cfg))
	fmt.Printf("anthropic.model: %s\n", cfg.Anthropic.Model)
	fmt.Printf("anthropic.bedrock: %t\n", cfg.Anthropic.Bedrock)
	fmt.Printf("validation.test_command: %s\n", cfg.Validation.TestCommand)
	fmt.Printf("validation.test_timeout: %s\n", cfg.Validation.TestTimeout)
	fmt.Printf("integration.strategy: %s\n", cfg.Integration.Strategy)
	fmt.Printf("integration.resolve_timeout: %s\n", cfg.Integration.ResolveTimeout)
	fmt.Printf("integration.keep_workspaces: %t\n", cfg.Integration.KeepWorkspaces)
	fmt.Printf("server.addr: %s\n", cfg.Server.Addr)
	fmt.Printf("logging.level: %s\n", cfg.Logging.Level)

	fmt.Printf("\nuser config: %s\n", config.GetUserConfigPath())
	if project := config.GetProjectConfigPath(); project != "" {
		fmt.Printf("project config: %s\n", project)
	}
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "base_branch":
		return cfg.BaseBranch, nil
	case "workspace_root":
		return cfg.WorkspaceRoot, nil
	case "max_agents":
		return strconv.Itoa(cfg.MaxAgents), nil
	case "decomposer":
		return cfg.Decomposer, nil
	case "infer_file_overlap":
		return strconv.FormatBool(cfg.InferFileOverlap), nil
	case "protected_paths":
		return strings.Join(cfg.ProtectedPaths, ", "), nil
	case "anthropic.api_key":
		return config.MaskAPIKey(cfg.Anthropic.APIKey), nil
	case "anthropic.model":
		return cfg.Anthropic.Model, nil
	case "anthropic.bedrock":
		return strconv.FormatBool(cfg.Anthropic.Bedrock), nil
	case "validation.test_command":
		return cfg.Validation.TestCommand, nil
	case "validation.test_timeout":
		return cfg.Validation.TestTimeout.String(), nil
	case "integration.strategy":
		return cfg.Integration.Strategy, nil
	case "integration.resolve_timeout":
		return cfg.Integration.ResolveTimeout.String(), nil
	case "integration.keep_workspaces":
		return strconv.FormatBool(cfg.Integration.KeepWorkspaces), nil
	case "server.addr":
		return cfg.Server.Addr, nil
	case "logging.level":
		return cfg.Logging.Level, nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key. The
// config's own Validate catches bad enum values on the next load; set
// rejects them immediately where the type allows.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "base_branch":
		cfg.BaseBranch = value
	case "workspace_root":
		cfg.WorkspaceRoot = value
	case "max_agents":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for max_agents: %w", err)
		}
		cfg.MaxAgents = n
	case "decomposer":
		cfg.Decomposer = value
	case "infer_file_overlap":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for infer_file_overlap: %w", err)
		}
		cfg.InferFileOverlap = b
	case "protected_paths":
		cfg.ProtectedPaths = splitList(value)
	case "anthropic.api_key":
		cfg.Anthropic.APIKey = value
	case "anthropic.model":
		cfg.Anthropic.Model = value
	case "anthropic.bedrock":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for anthropic.bedrock: %w", err)
		}
		cfg.Anthropic.Bedrock = b
	case "validation.test_command":
		cfg.Validation.TestCommand = value
	case "validation.test_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for validation.test_timeout: %w", err)
		}
		cfg.Validation.TestTimeout = d
	case "integration.strategy":
		cfg.Integration.Strategy = value
	case "integration.resolve_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for integration.resolve_timeout: %w", err)
		}
		cfg.Integration.ResolveTimeout = d
	case "integration.keep_workspaces":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for integration.keep_workspaces: %w", err)
		}
		cfg.Integration.KeepWorkspaces = b
	case "server.addr":
		cfg.Server.Addr = value
	case "logging.level":
		cfg.Logging.Level = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return cfg.Validate()
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
