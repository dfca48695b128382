package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/vbonduro/bakutrack/internal/config"
	"github.com/vbonduro/bakutrack/internal/logging"
)

// app carries what every subcommand needs once the root has run.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	cleanup func()
}

// NewRootCommand builds the bakutrack command tree. Configuration comes from
// the environment; flags on individual subcommands override it.
func NewRootCommand() *cobra.Command {
	a := &app{cleanup: func() {}}

	cmd := &cobra.Command{
		Use:           "bakutrack",
		Short:         "Bakugan price tracker",
		Long:          "Tracks Bakugan prices, curated recommendations and collector portfolios.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger, cleanup, err := logging.New(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			a.cfg, a.logger, a.cleanup = cfg, logger, cleanup
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.cleanup()
		},
	}

	cmd.AddCommand(newServeCommand(a))
	cmd.AddCommand(newMigrateCommand(a))
	cmd.AddCommand(newGrantCommand(a))
	return cmd
}
