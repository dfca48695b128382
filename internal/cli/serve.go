package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vbonduro/bakutrack/internal/auth"
	"github.com/vbonduro/bakutrack/internal/service"
	"github.com/vbonduro/bakutrack/internal/web"
)

func newServeCommand(a *app) *cobra.Command {
	var addr, dbPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.ListenAddr = addr
			}
			if dbPath != "" {
				a.cfg.DBPath = dbPath
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, a)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides LISTEN_ADDR)")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (overrides DB_PATH)")
	return cmd
}

func runServe(ctx context.Context, a *app) error {
	if a.cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is required to serve")
	}
	issuer, err := auth.NewIssuer(a.cfg.JWTSecret, a.cfg.TokenTTL)
	if err != nil {
		return err
	}

	repos, closeRepos, err := openRepositories(ctx, a.cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeRepos(); err != nil {
			a.logger.Error("failed to close store", "error", err)
		}
	}()
	a.logger.Info("store opened", "backend", a.cfg.StoreBackend)

	history, err := service.NewHistoryCache(a.cfg.CacheSize, a.cfg.CacheTTL, nil)
	if err != nil {
		return err
	}
	listed, err := service.NewSlotCache(a.cfg.CacheTTL, nil)
	if err != nil {
		return err
	}

	server := web.NewServer(newServices(repos, history, listed, issuer, a), a.logger)
	return server.ListenAndServe(ctx, a.cfg.ListenAddr)
}

func newServices(repos service.Repositories, history *service.HistoryCache, listed *service.SlotCache, issuer *auth.Issuer, a *app) web.Services {
	ledger := service.NewPriceLedger(repos.Items, repos.Prices, history, a.logger)
	return web.Services{
		Catalog:     service.NewCatalogService(repos.Items, ledger, a.logger),
		Ledger:      ledger,
		Ranks:       service.NewSlotAssigner(repos.Slots, repos.Items, listed, a.logger),
		Accounts:    service.NewAccountService(repos.Users, issuer, a.logger),
		Collections: service.NewCollectionService(repos.Items, repos.Portfolio, repos.Favorites, a.logger),
	}
}
