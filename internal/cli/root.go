// Package cli wires the cobra command tree for the valet binary.
package cli

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/soyeahso/valet/internal/config"
	"github.com/soyeahso/valet/internal/logging"
)

var (
	flagConfig   string
	flagLogLevel string

	cfg config.Config
	log *logging.Logger
)

// NewRootCommand builds the valet command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "valet",
		Short:         "Personal assistant task orchestrator",
		Long:          "valet routes conversation turns between direct replies and delegated task plans, schedules reminders, and gates irreversible actions behind confirmation.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			path := flagConfig
			if path == "" {
				home, _ := os.UserHomeDir()
				path = filepath.Join(home, ".valet", "valet.yaml")
			}
			var err error
			cfg, err = config.Load(path)
			if err != nil {
				return err
			}
			if flagLogLevel != "" {
				cfg.Logging.Level = flagLogLevel
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}
			log = logging.New(os.Stderr, cfg.Logging.Level)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level (debug, info, warn, error, silent)")

	root.AddCommand(
		newServeCommand(),
		newMessageCommand(),
		newTriggersCommand(),
		newVersionCommand(),
	)
	return root
}

// Execute runs the command tree and exits non-zero on error.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Stderr.WriteString("error: " + err.Error() + "\n")
		os.Exit(1)
	}
}
