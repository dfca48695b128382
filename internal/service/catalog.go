package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vbonduro/bakutrack/internal/domain"
)

const (
	DefaultItemPage = 50
	MaxItemPage     = 200
)

// ItemInput describes a new catalog item together with its first price.
type ItemInput struct {
	Names        []string
	Size         domain.Size
	Element      string
	Special      string
	Series       string
	ImageRef     string
	Price        decimal.Decimal
	Date         domain.PriceDate
	ReferenceURI string
	Notes        string
}

// ItemPatch updates descriptive fields; nil fields are left unchanged.
type ItemPatch struct {
	Names    *[]string
	Size     *domain.Size
	Element  *string
	Special  *string
	Series   *string
	ImageRef *string
}

type CatalogService struct {
	items  ItemRepository
	ledger *PriceLedger
	now    func() time.Time
	logger *slog.Logger
}

func NewCatalogService(items ItemRepository, ledger *PriceLedger, logger *slog.Logger) *CatalogService {
	return &CatalogService{items: items, ledger: ledger, now: time.Now, logger: logger}
}

// CreateItem stores the item and seeds its ledger with the creation price.
func (s *CatalogService) CreateItem(ctx context.Context, catalog domain.Catalog, in ItemInput) (*domain.Item, error) {
	if !catalog.Valid() {
		return nil, domain.Invalid("unknown catalog %q", catalog)
	}
	names, err := cleanNames(in.Names)
	if err != nil {
		return nil, err
	}
	if !in.Size.Valid() {
		return nil, domain.Invalid("size must be one of B1, B2, B3")
	}
	if err := (PriceInput{Price: in.Price, Timestamp: in.Date}).validate(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	item := &domain.Item{
		ID:           domain.NewID(),
		Catalog:      catalog,
		Names:        names,
		Size:         in.Size,
		Element:      strings.TrimSpace(in.Element),
		Special:      strings.TrimSpace(in.Special),
		Series:       strings.TrimSpace(in.Series),
		ImageRef:     strings.TrimSpace(in.ImageRef),
		CurrentPrice: in.Price,
		ReferenceURI: in.ReferenceURI,
		Date:         in.Date,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.items.Create(ctx, item); err != nil {
		return nil, err
	}
	if _, err := s.ledger.recordInitial(ctx, item, in.Notes); err != nil {
		return nil, fmt.Errorf("failed to record initial price: %w", err)
	}

	s.logger.Info("item created", "catalog", catalog, "item_id", item.ID, "name", item.PrimaryName())
	return item, nil
}

func (s *CatalogService) GetItem(ctx context.Context, catalog domain.Catalog, itemID string) (*domain.Item, error) {
	id, err := domain.ParseID(itemID)
	if err != nil {
		return nil, err
	}
	return findItem(ctx, s.items, catalog, id)
}

// ListItems returns the newest items first.
func (s *CatalogService) ListItems(ctx context.Context, f domain.ItemFilter) ([]*domain.Item, error) {
	if !f.Catalog.Valid() {
		return nil, domain.Invalid("unknown catalog %q", f.Catalog)
	}
	if f.Size != "" && !f.Size.Valid() {
		return nil, domain.Invalid("size must be one of B1, B2, B3")
	}
	switch {
	case f.Limit <= 0:
		f.Limit = DefaultItemPage
	case f.Limit > MaxItemPage:
		f.Limit = MaxItemPage
	}
	f.Query = strings.TrimSpace(f.Query)
	return s.items.List(ctx, f)
}

func (s *CatalogService) UpdateItem(ctx context.Context, catalog domain.Catalog, itemID string, p ItemPatch) (*domain.Item, error) {
	id, err := domain.ParseID(itemID)
	if err != nil {
		return nil, err
	}
	item, err := findItem(ctx, s.items, catalog, id)
	if err != nil {
		return nil, err
	}

	if p.Names != nil {
		names, err := cleanNames(*p.Names)
		if err != nil {
			return nil, err
		}
		item.Names = names
	}
	if p.Size != nil {
		if !p.Size.Valid() {
			return nil, domain.Invalid("size must be one of B1, B2, B3")
		}
		item.Size = *p.Size
	}
	if p.Element != nil {
		item.Element = strings.TrimSpace(*p.Element)
	}
	if p.Special != nil {
		item.Special = strings.TrimSpace(*p.Special)
	}
	if p.Series != nil {
		item.Series = strings.TrimSpace(*p.Series)
	}
	if p.ImageRef != nil {
		item.ImageRef = strings.TrimSpace(*p.ImageRef)
	}
	item.UpdatedAt = s.now().UTC()

	if err := s.items.Update(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// DeleteItem removes the item and its ledger. Recommendation slots that
// reference it are left in place and list with a nil item.
func (s *CatalogService) DeleteItem(ctx context.Context, catalog domain.Catalog, itemID string) error {
	id, err := domain.ParseID(itemID)
	if err != nil {
		return err
	}
	if _, err := findItem(ctx, s.items, catalog, id); err != nil {
		return err
	}

	removed, err := s.ledger.DeleteAllForItem(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete price history: %w", err)
	}
	if err := s.items.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("item deleted", "catalog", catalog, "item_id", id, "price_entries", removed)
	return nil
}

func cleanNames(names []string) ([]string, error) {
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			return nil, domain.Invalid("names must not be blank")
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, domain.Invalid("at least one name is required")
	}
	return out, nil
}
