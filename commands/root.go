package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mempirate/electionjobs/config"
	"github.com/mempirate/electionjobs/log"
)

var rootFlags struct {
	configPath string
	dataDir    string
	logLevel   string
}

var rootCmd = &cobra.Command{
	Use:           "electionjobs",
	Short:         "electionjobs collects job postings from electionline Weekly into a dataset.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&rootFlags.configPath, "config", config.DefaultPath, "Path to the YAML configuration file.")
	flags.StringVar(&rootFlags.dataDir, "data-dir", "", "Overrides data_dir from the configuration.")
	flags.StringVar(&rootFlags.logLevel, "log-level", "", "Overrides log_level from the configuration.")
}

// loadConfig reads the configuration and applies command line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(rootFlags.configPath)
	if err != nil {
		return nil, err
	}

	if rootFlags.dataDir != "" {
		cfg.DataDir = os.ExpandEnv(rootFlags.dataDir)
	}
	if rootFlags.logLevel != "" {
		cfg.LogLevel = rootFlags.logLevel
	}

	log.SetLevel(cfg.LogLevel)

	return cfg, nil
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
