package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vbonduro/bakutrack/internal/domain"
)

type PortfolioInput struct {
	Quantity      int
	PurchasePrice decimal.Decimal
	Notes         string
}

// PortfolioLine is one holding valued at the item's current price. Item is
// nil and Value zero when the item no longer exists.
type PortfolioLine struct {
	*domain.PortfolioEntry
	Item  *domain.ItemSummary `json:"item"`
	Value decimal.Decimal     `json:"value"`
}

type PortfolioView struct {
	Lines      []*PortfolioLine `json:"lines"`
	TotalValue decimal.Decimal  `json:"totalValue"`
	TotalCost  decimal.Decimal  `json:"totalCost"`
}

type FavoriteView struct {
	*domain.Favorite
	Item *domain.ItemSummary `json:"item"`
}

// CollectionService manages per-user portfolios and favorites.
type CollectionService struct {
	items     ItemRepository
	portfolio PortfolioRepository
	favorites FavoriteRepository
	now       func() time.Time
	logger    *slog.Logger
}

func NewCollectionService(items ItemRepository, portfolio PortfolioRepository, favorites FavoriteRepository, logger *slog.Logger) *CollectionService {
	return &CollectionService{
		items:     items,
		portfolio: portfolio,
		favorites: favorites,
		now:       time.Now,
		logger:    logger,
	}
}

// UpsertHolding records or replaces the owner's holding of an item.
func (s *CollectionService) UpsertHolding(ctx context.Context, owner, itemID string, in PortfolioInput) (*PortfolioLine, error) {
	item, err := s.existingItem(ctx, owner, itemID)
	if err != nil {
		return nil, err
	}
	if in.Quantity <= 0 {
		return nil, domain.Invalid("quantity must be greater than zero")
	}
	if in.PurchasePrice.IsNegative() {
		return nil, domain.Invalid("purchase price must not be negative")
	}

	stored, err := s.portfolio.Upsert(ctx, &domain.PortfolioEntry{
		ID:            domain.NewID(),
		Owner:         owner,
		ItemID:        item.ID,
		Quantity:      in.Quantity,
		PurchasePrice: in.PurchasePrice,
		Notes:         strings.TrimSpace(in.Notes),
		UpdatedAt:     s.now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	return valueLine(stored, item), nil
}

func (s *CollectionService) Portfolio(ctx context.Context, owner string) (*PortfolioView, error) {
	if owner == "" {
		return nil, domain.ErrUnauthorized
	}
	entries, err := s.portfolio.ListByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ItemID)
	}
	items, err := s.items.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	view := &PortfolioView{Lines: make([]*PortfolioLine, 0, len(entries))}
	for _, e := range entries {
		line := valueLine(e, items[e.ItemID])
		view.Lines = append(view.Lines, line)
		view.TotalValue = view.TotalValue.Add(line.Value)
		view.TotalCost = view.TotalCost.Add(e.PurchasePrice.Mul(decimal.NewFromInt(int64(e.Quantity))))
	}
	return view, nil
}

func (s *CollectionService) RemoveHolding(ctx context.Context, owner, itemID string) error {
	if owner == "" {
		return domain.ErrUnauthorized
	}
	id, err := domain.ParseID(itemID)
	if err != nil {
		return err
	}
	return s.portfolio.Delete(ctx, owner, id)
}

// AddFavorite is idempotent.
func (s *CollectionService) AddFavorite(ctx context.Context, owner, itemID string) error {
	item, err := s.existingItem(ctx, owner, itemID)
	if err != nil {
		return err
	}
	return s.favorites.Add(ctx, &domain.Favorite{Owner: owner, ItemID: item.ID, CreatedAt: s.now().UTC()})
}

func (s *CollectionService) Favorites(ctx context.Context, owner string) ([]*FavoriteView, error) {
	if owner == "" {
		return nil, domain.ErrUnauthorized
	}
	favorites, err := s.favorites.ListByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(favorites))
	for _, f := range favorites {
		ids = append(ids, f.ItemID)
	}
	items, err := s.items.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	views := make([]*FavoriteView, 0, len(favorites))
	for _, f := range favorites {
		v := &FavoriteView{Favorite: f}
		if item, ok := items[f.ItemID]; ok {
			v.Item = item.Summary()
		}
		views = append(views, v)
	}
	return views, nil
}

func (s *CollectionService) RemoveFavorite(ctx context.Context, owner, itemID string) error {
	if owner == "" {
		return domain.ErrUnauthorized
	}
	id, err := domain.ParseID(itemID)
	if err != nil {
		return err
	}
	return s.favorites.Delete(ctx, owner, id)
}

func (s *CollectionService) existingItem(ctx context.Context, owner, itemID string) (*domain.Item, error) {
	if owner == "" {
		return nil, domain.ErrUnauthorized
	}
	id, err := domain.ParseID(itemID)
	if err != nil {
		return nil, err
	}
	item, err := s.items.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.NotFound("item", id)
	}
	return item, nil
}

func valueLine(e *domain.PortfolioEntry, item *domain.Item) *PortfolioLine {
	line := &PortfolioLine{PortfolioEntry: e}
	if item != nil {
		line.Item = item.Summary()
		line.Value = item.CurrentPrice.Mul(decimal.NewFromInt(int64(e.Quantity)))
	}
	return line
}
