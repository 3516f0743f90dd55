package main

import (
	"github.com/paulexconde/justasking/internal/config"
	"github.com/paulexconde/justasking/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	configDir string
	cfg       *config.Config
	log       *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:          "logiccheck",
		Short:        "Validate, map and simulate survey branching logic",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(a.configDir)
			if err != nil {
				return err
			}
			log, err := logger.NewWithWriter(cfg.Log, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			a.cfg, a.log = cfg, log
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.log.Sync()
		},
	}

	root.PersistentFlags().StringVar(&a.configDir, "config", ".", "directory holding config.yaml")

	root.AddCommand(
		a.validateCmd(),
		a.mapCmd(),
		a.simulateCmd(),
		a.dbCmd(),
	)
	return root
}
