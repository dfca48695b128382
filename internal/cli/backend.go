package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/vbonduro/bakutrack/internal/config"
	"github.com/vbonduro/bakutrack/internal/db"
	"github.com/vbonduro/bakutrack/internal/mongostore"
	"github.com/vbonduro/bakutrack/internal/service"
	"github.com/vbonduro/bakutrack/internal/store"
)

// openRepositories connects the configured backend. The returned close
// function releases it.
func openRepositories(ctx context.Context, cfg *config.Config) (service.Repositories, func() error, error) {
	switch cfg.StoreBackend {
	case config.BackendMongo:
		client, err := mongostore.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return service.Repositories{}, nil, err
		}
		closeFn := func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return client.Disconnect(ctx)
		}
		database := client.Database(cfg.MongoDatabase)
		if err := mongostore.EnsureIndexes(ctx, database); err != nil {
			_ = closeFn()
			return service.Repositories{}, nil, err
		}
		return service.Repositories{
			Items:     mongostore.NewItemStore(database),
			Prices:    mongostore.NewPriceStore(database),
			Slots:     mongostore.NewSlotStore(database),
			Users:     mongostore.NewUserStore(database),
			Portfolio: mongostore.NewPortfolioStore(database),
			Favorites: mongostore.NewFavoriteStore(database),
		}, closeFn, nil

	case config.BackendSQLite:
		database, err := db.Open(cfg.DBPath)
		if err != nil {
			return service.Repositories{}, nil, err
		}
		return service.Repositories{
			Items:     store.NewItemStore(database),
			Prices:    store.NewPriceStore(database),
			Slots:     store.NewSlotStore(database),
			Users:     store.NewUserStore(database),
			Portfolio: store.NewPortfolioStore(database),
			Favorites: store.NewFavoriteStore(database),
		}, database.Close, nil

	default:
		return service.Repositories{}, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
