package service

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/vbonduro/bakutrack/internal/auth"
	"github.com/vbonduro/bakutrack/internal/cache"
	"github.com/vbonduro/bakutrack/internal/db"
	"github.com/vbonduro/bakutrack/internal/domain"
	"github.com/vbonduro/bakutrack/internal/store"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	repos    Repositories
	catalog  *CatalogService
	ledger   *PriceLedger
	ranks    *SlotAssigner
	accounts *AccountService
	colls    *CollectionService
}

// newTestEnv wires every service over a fresh in-memory database. Caches are
// disabled unless cacheTTL is positive.
func newTestEnv(t *testing.T, cacheTTL time.Duration, clock *fakeClock) *testEnv {
	t.Helper()
	d, err := db.OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	repos := Repositories{
		Items:     store.NewItemStore(d),
		Prices:    store.NewPriceStore(d),
		Slots:     store.NewSlotStore(d),
		Users:     store.NewUserStore(d),
		Portfolio: store.NewPortfolioStore(d),
		Favorites: store.NewFavoriteStore(d),
	}

	history, err := NewHistoryCache(64, cacheTTL, clockOrNil(clock))
	require.NoError(t, err)
	listed, err := NewSlotCache(cacheTTL, clockOrNil(clock))
	require.NoError(t, err)

	issuer, err := auth.NewIssuer("test-secret", time.Hour)
	require.NoError(t, err)

	logger := slog.Default()
	ledger := NewPriceLedger(repos.Items, repos.Prices, history, logger)
	accounts := NewAccountService(repos.Users, issuer, logger)
	accounts.bcryptCost = bcrypt.MinCost

	return &testEnv{
		repos:    repos,
		catalog:  NewCatalogService(repos.Items, ledger, logger),
		ledger:   ledger,
		ranks:    NewSlotAssigner(repos.Slots, repos.Items, listed, logger),
		accounts: accounts,
		colls:    NewCollectionService(repos.Items, repos.Portfolio, repos.Favorites, logger),
	}
}

// clockOrNil keeps a nil *fakeClock from becoming a non-nil interface.
func clockOrNil(c *fakeClock) cache.Clock {
	if c == nil {
		return nil
	}
	return c
}

func (e *testEnv) createItem(t *testing.T, catalog domain.Catalog, name, price, date string) *domain.Item {
	t.Helper()
	item, err := e.catalog.CreateItem(context.Background(), catalog, ItemInput{
		Names: []string{name},
		Size:  domain.SizeB2,
		Price: decimal.RequireFromString(price),
		Date:  domain.MustPriceDate(date),
	})
	require.NoError(t, err)
	return item
}

func (e *testEnv) record(t *testing.T, item *domain.Item, price, date string) *domain.PriceEntry {
	t.Helper()
	_, entry, err := e.ledger.RecordPrice(context.Background(), item.Catalog, item.ID, PriceInput{
		Price:     decimal.RequireFromString(price),
		Timestamp: domain.MustPriceDate(date),
	})
	require.NoError(t, err)
	return entry
}

func (e *testEnv) reload(t *testing.T, item *domain.Item) *domain.Item {
	t.Helper()
	got, err := e.repos.Items.GetByID(context.Background(), item.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	return got
}
