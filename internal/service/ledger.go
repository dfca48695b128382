package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vbonduro/bakutrack/internal/cache"
	"github.com/vbonduro/bakutrack/internal/domain"
)

const (
	// DefaultHistoryPage bounds the remaining entries returned after a delete.
	DefaultHistoryPage = 10
	MaxHistoryPage     = 100
)

type historyKey struct {
	itemID string
	limit  int
}

// HistoryCache holds price-history pages per (item, limit).
type HistoryCache = cache.TTL[historyKey, []*domain.PriceEntry]

func NewHistoryCache(size int, ttl time.Duration, clock cache.Clock) (*HistoryCache, error) {
	return cache.New[historyKey, []*domain.PriceEntry](size, ttl, clock)
}

// PriceInput is one price observation to append to an item's ledger.
type PriceInput struct {
	Price        decimal.Decimal
	Timestamp    domain.PriceDate
	Notes        string
	ReferenceURI string
}

func (in PriceInput) validate() error {
	if !in.Price.IsPositive() {
		return domain.Invalid("price must be greater than zero")
	}
	if in.Timestamp.IsZero() {
		return domain.Invalid("timestamp is required")
	}
	return nil
}

// PriceLedger appends price observations and keeps each item's current-price
// projection in step with its ledger.
type PriceLedger struct {
	items   ItemRepository
	prices  PriceRepository
	history *HistoryCache
	locks   *keyedMutex
	now     func() time.Time
	logger  *slog.Logger
}

func NewPriceLedger(items ItemRepository, prices PriceRepository, history *HistoryCache, logger *slog.Logger) *PriceLedger {
	return &PriceLedger{
		items:   items,
		prices:  prices,
		history: history,
		locks:   newKeyedMutex(),
		now:     time.Now,
		logger:  logger,
	}
}

// RecordPrice appends the observation verbatim and then overwrites the item's
// projection with it, whether or not it is chronologically the newest entry.
// A failure between the two writes is not rolled back.
func (l *PriceLedger) RecordPrice(ctx context.Context, catalog domain.Catalog, itemID string, in PriceInput) (*domain.Item, *domain.PriceEntry, error) {
	id, err := domain.ParseID(itemID)
	if err != nil {
		return nil, nil, err
	}
	if err := in.validate(); err != nil {
		return nil, nil, err
	}

	unlock := l.locks.Lock(id)
	defer unlock()

	item, err := findItem(ctx, l.items, catalog, id)
	if err != nil {
		return nil, nil, err
	}

	now := l.now().UTC()
	entry := &domain.PriceEntry{
		ID:           domain.NewID(),
		ItemID:       id,
		Price:        in.Price,
		Timestamp:    in.Timestamp,
		Notes:        in.Notes,
		ReferenceURI: in.ReferenceURI,
		CreatedAt:    now,
	}
	if err := l.prices.Create(ctx, entry); err != nil {
		return nil, nil, err
	}
	if err := l.items.UpdatePrice(ctx, id, entry.Price, entry.Timestamp, entry.ReferenceURI, now); err != nil {
		l.logger.Error("price projection update failed after append", "item_id", id, "entry_id", entry.ID, "error", err)
		return nil, nil, fmt.Errorf("failed to update current price: %w", err)
	}
	item.ApplyEntry(entry)
	item.UpdatedAt = now

	l.logger.Info("price recorded", "item_id", id, "entry_id", entry.ID, "price", entry.Price.String(), "timestamp", entry.Timestamp.String())
	return item, entry, nil
}

// DeleteEntry removes one ledger entry and recomputes the owning item's
// projection from what remains. An emptied ledger leaves the item untouched.
// It returns the owning item ID and the first page of remaining entries.
func (l *PriceLedger) DeleteEntry(ctx context.Context, entryID string) (string, []*domain.PriceEntry, error) {
	id, err := domain.ParseID(entryID)
	if err != nil {
		return "", nil, err
	}

	// Read outside the lock only to find the lock key. Nothing below may rely
	// on entry's other fields; Delete reports NotFound if it raced away.
	entry, err := l.prices.GetByID(ctx, id)
	if err != nil {
		return "", nil, err
	}
	if entry == nil {
		return "", nil, domain.NotFound("price entry", id)
	}

	unlock := l.locks.Lock(entry.ItemID)
	defer unlock()

	if err := l.prices.Delete(ctx, id); err != nil {
		return "", nil, err
	}

	remaining, err := l.prices.ListByItem(ctx, entry.ItemID, 0)
	if err != nil {
		return "", nil, err
	}
	if latest := domain.LatestEntry(remaining); latest != nil {
		err := l.items.UpdatePrice(ctx, entry.ItemID, latest.Price, latest.Timestamp, latest.ReferenceURI, l.now().UTC())
		switch {
		case errors.Is(err, domain.ErrNotFound):
			l.logger.Warn("price entry outlived its item", "item_id", entry.ItemID, "entry_id", id)
		case err != nil:
			return "", nil, fmt.Errorf("failed to recompute current price: %w", err)
		}
	}

	l.logger.Info("price entry deleted", "item_id", entry.ItemID, "entry_id", id, "remaining", len(remaining))

	domain.SortEntries(remaining)
	if len(remaining) > DefaultHistoryPage {
		remaining = remaining[:DefaultHistoryPage]
	}
	return entry.ItemID, project(remaining), nil
}

// ListForItem returns up to limit entries in ledger order with the restricted
// projection. Results may be up to the cache TTL stale.
func (l *PriceLedger) ListForItem(ctx context.Context, itemID string, limit int) ([]*domain.PriceEntry, error) {
	id, err := domain.ParseID(itemID)
	if err != nil {
		return nil, err
	}
	limit = clampHistoryLimit(limit)

	return l.history.GetOrLoad(historyKey{itemID: id, limit: limit}, func() ([]*domain.PriceEntry, error) {
		entries, err := l.prices.ListByItem(ctx, id, limit)
		if err != nil {
			return nil, err
		}
		return project(entries), nil
	})
}

// DeleteAllForItem drops an item's whole ledger. Only item deletion uses it,
// so the projection is not recomputed.
func (l *PriceLedger) DeleteAllForItem(ctx context.Context, itemID string) (int64, error) {
	id, err := domain.ParseID(itemID)
	if err != nil {
		return 0, err
	}
	unlock := l.locks.Lock(id)
	defer unlock()
	return l.prices.DeleteByItem(ctx, id)
}

// RecentForItems returns the newest n entries of every item in the catalog,
// or of the given items only, grouped by item ID.
func (l *PriceLedger) RecentForItems(ctx context.Context, catalog domain.Catalog, itemIDs []string, n int) (map[string][]*domain.PriceEntry, error) {
	if !catalog.Valid() {
		return nil, domain.Invalid("unknown catalog %q", catalog)
	}
	ids := make([]string, 0, len(itemIDs))
	for _, raw := range itemIDs {
		id, err := domain.ParseID(raw)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	grouped, err := l.prices.RecentByItems(ctx, catalog, ids, clampHistoryLimit(n))
	if err != nil {
		return nil, err
	}
	for itemID, entries := range grouped {
		domain.SortEntries(entries)
		grouped[itemID] = project(entries)
	}
	return grouped, nil
}

// recordInitial seeds a new item's ledger with its creation price.
func (l *PriceLedger) recordInitial(ctx context.Context, item *domain.Item, notes string) (*domain.PriceEntry, error) {
	entry := &domain.PriceEntry{
		ID:           domain.NewID(),
		ItemID:       item.ID,
		Price:        item.CurrentPrice,
		Timestamp:    item.Date,
		Notes:        notes,
		ReferenceURI: item.ReferenceURI,
		CreatedAt:    item.CreatedAt,
	}
	if err := l.prices.Create(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func clampHistoryLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultHistoryPage
	case limit > MaxHistoryPage:
		return MaxHistoryPage
	default:
		return limit
	}
}

// project copies entries down to the fields shown in history listings.
func project(entries []*domain.PriceEntry) []*domain.PriceEntry {
	out := make([]*domain.PriceEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, &domain.PriceEntry{
			ID:           e.ID,
			Price:        e.Price,
			Timestamp:    e.Timestamp,
			Notes:        e.Notes,
			ReferenceURI: e.ReferenceURI,
		})
	}
	return out
}
