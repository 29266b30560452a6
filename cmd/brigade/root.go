package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/fieldmarshal/brigade/internal/config"
	"github.com/fieldmarshal/brigade/internal/logging"
)

var (
	cfg      *config.Config
	cfgPath  string
	verbose  bool
	exitCode int
)

var rootCmd = &cobra.Command{
	Use:   "brigade",
	Short: "Parallel agent deployment over git worktrees",
	Long: `Brigade turns a body of work into a deployment plan of agent
assignments, spawns each agent in an isolated git worktree on its own
branch, tracks progress, validates finished work, and merges validated
branches back in dependency order.

Typical flow:
  brigade plan -f items.txt     build a deployment plan
  brigade deploy                spawn a workspace per agent
  brigade status --watch        follow progress live
  brigade validate --all        gate finished agents
  brigade integrate             merge validated agents in order`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfgPath != "" {
			cfg, err = config.LoadFromPath(cfgPath)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return err
		}
		return logging.Setup(cfg.Logging.Level, verbose)
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
	os.Exit(exitCode)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to a config file (skips the search chain)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(integrateCmd)
	rootCmd.AddCommand(destroyCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
