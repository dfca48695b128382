package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vbonduro/bakutrack/internal/domain"
)

// The repositories below are implemented by both store.* (SQLite) and
// mongostore.* (MongoDB). Lookups return (nil, nil) when nothing matches.

type ItemRepository interface {
	Create(ctx context.Context, item *domain.Item) error
	GetByID(ctx context.Context, id string) (*domain.Item, error)
	GetMany(ctx context.Context, ids []string) (map[string]*domain.Item, error)
	List(ctx context.Context, f domain.ItemFilter) ([]*domain.Item, error)
	Update(ctx context.Context, item *domain.Item) error
	UpdatePrice(ctx context.Context, id string, price decimal.Decimal, date domain.PriceDate, referenceURI string, at time.Time) error
	Delete(ctx context.Context, id string) error
}

type PriceRepository interface {
	Create(ctx context.Context, e *domain.PriceEntry) error
	GetByID(ctx context.Context, id string) (*domain.PriceEntry, error)
	ListByItem(ctx context.Context, itemID string, limit int) ([]*domain.PriceEntry, error)
	RecentByItems(ctx context.Context, catalog domain.Catalog, itemIDs []string, n int) (map[string][]*domain.PriceEntry, error)
	Delete(ctx context.Context, id string) error
	DeleteByItem(ctx context.Context, itemID string) (int64, error)
}

type SlotRepository interface {
	Create(ctx context.Context, slot *domain.Slot) error
	GetByRank(ctx context.Context, catalog domain.Catalog, rank int) (*domain.Slot, error)
	GetByItem(ctx context.Context, catalog domain.Catalog, itemID string) (*domain.Slot, error)
	List(ctx context.Context, catalog domain.Catalog) ([]*domain.Slot, error)
	Update(ctx context.Context, slot *domain.Slot) error
	DeleteByRank(ctx context.Context, catalog domain.Catalog, rank int) error
}

type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	SetTier(ctx context.Context, email string, tier domain.Tier, expiresAt *time.Time) error
}

type PortfolioRepository interface {
	Upsert(ctx context.Context, e *domain.PortfolioEntry) (*domain.PortfolioEntry, error)
	ListByOwner(ctx context.Context, owner string) ([]*domain.PortfolioEntry, error)
	Delete(ctx context.Context, owner, itemID string) error
}

type FavoriteRepository interface {
	Add(ctx context.Context, f *domain.Favorite) error
	ListByOwner(ctx context.Context, owner string) ([]*domain.Favorite, error)
	Delete(ctx context.Context, owner, itemID string) error
}

// Repositories bundles one backend's implementations.
type Repositories struct {
	Items     ItemRepository
	Prices    PriceRepository
	Slots     SlotRepository
	Users     UserRepository
	Portfolio PortfolioRepository
	Favorites FavoriteRepository
}
