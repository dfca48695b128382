package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vbonduro/bakutrack/internal/config"
	"github.com/vbonduro/bakutrack/internal/db"
	"github.com/vbonduro/bakutrack/internal/domain"
	"github.com/vbonduro/bakutrack/internal/service"
)

func newMigrateCommand(a *app) *cobra.Command {
	var dbPath string
	var down int

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations",
		Long: `Apply pending SQLite migrations, or roll back with --down.

With STORE_BACKEND=mongo this creates the collection indexes instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath != "" {
				a.cfg.DBPath = dbPath
			}
			if a.cfg.StoreBackend == config.BackendMongo {
				_, closeRepos, err := openRepositories(cmd.Context(), a.cfg)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "indexes ensured")
				return closeRepos()
			}

			// Open applies every pending up migration.
			database, err := db.Open(a.cfg.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			version, err := db.Migrate(database)
			if err != nil {
				return err
			}
			if down > 0 {
				if version, err = db.Rollback(database, down); err != nil {
					return err
				}
			}
			a.logger.Info("schema migrated", "path", a.cfg.DBPath, "version", version)
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", version)
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (overrides DB_PATH)")
	cmd.Flags().IntVar(&down, "down", 0, "number of migrations to roll back")
	return cmd
}

func newGrantCommand(a *app) *cobra.Command {
	var tier string
	var period time.Duration

	cmd := &cobra.Command{
		Use:   "grant-premium <email>",
		Short: "Set a user's subscription tier",
		Long: `Set a user's subscription tier.

--for bounds the grant; zero grants it without expiry. Use --tier free to
revoke.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if period < 0 {
				return fmt.Errorf("--for must not be negative, got %s", period)
			}
			repos, closeRepos, err := openRepositories(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			defer func() { _ = closeRepos() }()

			var until *time.Time
			if period > 0 {
				t := time.Now().Add(period)
				until = &t
			}
			// Granting never issues tokens, so no issuer is needed.
			accounts := service.NewAccountService(repos.Users, nil, a.logger)
			if err := accounts.GrantTier(cmd.Context(), args[0], domain.Tier(tier), until); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", args[0], tier)
			return nil
		},
	}
	cmd.Flags().StringVar(&tier, "tier", string(domain.TierPremium), "tier to grant (free|premium)")
	cmd.Flags().DurationVar(&period, "for", 0, "grant duration, e.g. 720h; 0 never lapses")
	return cmd
}
