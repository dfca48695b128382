package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vbonduro/bakutrack/internal/cache"
	"github.com/vbonduro/bakutrack/internal/domain"
)

const maxReasonLength = 1000

// AssignKind tags the result of a rank assignment.
type AssignKind string

const (
	AssignCreated AssignKind = "created"
	AssignUpdated AssignKind = "updated"
	AssignSwapped AssignKind = "swapped"
)

// AssignmentPlan is the set of slot writes that places one item at one rank.
// Exactly one of Create or Writes is populated.
type AssignmentPlan struct {
	Kind AssignKind
	// Create is the slot to insert when neither the rank nor the item was held.
	Create *domain.Slot
	// Writes are existing slots to rewrite, target first.
	Writes []*domain.Slot
	// Target is the slot that ends up holding the item.
	Target *domain.Slot
	// Displaced is the other item's slot after a swap.
	Displaced *domain.Slot
	// EvictedItemID is the previous occupant of the rank when it lost its
	// rank outright.
	EvictedItemID string
}

// PlanAssignment decides how to place itemID at rank given the slot currently
// holding that rank and the slot currently holding that item (either may be
// nil). It never modifies its inputs. IDs and timestamps are left to the
// caller.
func PlanAssignment(byRank, byItem *domain.Slot, catalog domain.Catalog, itemID string, rank int, reason string) AssignmentPlan {
	switch {
	case byRank != nil && byItem != nil && byRank.ID == byItem.ID:
		target := cloneSlot(byRank)
		if reason != "" {
			target.Reason = reason
		}
		return AssignmentPlan{Kind: AssignUpdated, Writes: []*domain.Slot{target}, Target: target}

	case byRank != nil && byItem != nil:
		target := cloneSlot(byRank)
		target.ItemID = itemID
		target.Reason = reason
		if reason == "" {
			target.Reason = byItem.Reason
		}
		displaced := cloneSlot(byItem)
		displaced.ItemID = byRank.ItemID
		displaced.Reason = byRank.Reason
		return AssignmentPlan{
			Kind:      AssignSwapped,
			Writes:    []*domain.Slot{target, displaced},
			Target:    target,
			Displaced: displaced,
		}

	case byRank != nil:
		target := cloneSlot(byRank)
		target.ItemID = itemID
		target.Reason = reason
		return AssignmentPlan{
			Kind:          AssignUpdated,
			Writes:        []*domain.Slot{target},
			Target:        target,
			EvictedItemID: byRank.ItemID,
		}

	case byItem != nil:
		target := cloneSlot(byItem)
		target.Rank = rank
		if reason != "" {
			target.Reason = reason
		}
		return AssignmentPlan{Kind: AssignUpdated, Writes: []*domain.Slot{target}, Target: target}

	default:
		target := &domain.Slot{Catalog: catalog, Rank: rank, ItemID: itemID, Reason: reason}
		return AssignmentPlan{Kind: AssignCreated, Create: target, Target: target}
	}
}

func cloneSlot(s *domain.Slot) *domain.Slot {
	c := *s
	return &c
}

// AssignOutcome reports what an assignment did.
type AssignOutcome struct {
	Kind          AssignKind   `json:"kind"`
	Slot          *domain.Slot `json:"slot"`
	Displaced     *domain.Slot `json:"displaced,omitempty"`
	EvictedItemID string       `json:"evictedItemId,omitempty"`
}

// SlotCache holds joined slot listings per catalog.
type SlotCache = cache.TTL[domain.Catalog, []*domain.RankedSlot]

func NewSlotCache(ttl time.Duration, clock cache.Clock) (*SlotCache, error) {
	return cache.New[domain.Catalog, []*domain.RankedSlot](len(domain.Catalogs), ttl, clock)
}

// SlotAssigner keeps each catalog's recommendation list a partial bijection
// between ranks 1..5 and items.
type SlotAssigner struct {
	slots  SlotRepository
	items  ItemRepository
	listed *SlotCache
	locks  *keyedMutex
	now    func() time.Time
	logger *slog.Logger
}

func NewSlotAssigner(slots SlotRepository, items ItemRepository, listed *SlotCache, logger *slog.Logger) *SlotAssigner {
	return &SlotAssigner{
		slots:  slots,
		items:  items,
		listed: listed,
		locks:  newKeyedMutex(),
		now:    time.Now,
		logger: logger,
	}
}

func (a *SlotAssigner) Assign(ctx context.Context, catalog domain.Catalog, itemID string, rank int, reason string) (*AssignOutcome, error) {
	if err := validateRank(rank); err != nil {
		return nil, err
	}
	id, err := domain.ParseID(itemID)
	if err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if len(reason) > maxReasonLength {
		return nil, domain.Invalid("reason exceeds %d characters", maxReasonLength)
	}
	if _, err := findItem(ctx, a.items, catalog, id); err != nil {
		return nil, err
	}

	unlock := a.locks.Lock(string(catalog))
	defer unlock()

	byRank, err := a.slots.GetByRank(ctx, catalog, rank)
	if err != nil {
		return nil, err
	}
	byItem, err := a.slots.GetByItem(ctx, catalog, id)
	if err != nil {
		return nil, err
	}

	plan := PlanAssignment(byRank, byItem, catalog, id, rank, reason)
	now := a.now().UTC()

	if plan.Create != nil {
		plan.Create.ID = domain.NewID()
		plan.Create.UpdatedAt = now
		if err := a.slots.Create(ctx, plan.Create); err != nil {
			return nil, err
		}
	}
	for _, s := range plan.Writes {
		s.UpdatedAt = now
		if err := a.slots.Update(ctx, s); err != nil {
			return nil, err
		}
	}

	attrs := []any{"catalog", catalog, "rank", rank, "item_id", id, "kind", plan.Kind}
	if plan.EvictedItemID != "" {
		attrs = append(attrs, "evicted_item_id", plan.EvictedItemID)
	}
	a.logger.Info("rank assigned", attrs...)

	return &AssignOutcome{
		Kind:          plan.Kind,
		Slot:          plan.Target,
		Displaced:     plan.Displaced,
		EvictedItemID: plan.EvictedItemID,
	}, nil
}

// Release empties a rank. Lower ranks are not compacted.
func (a *SlotAssigner) Release(ctx context.Context, catalog domain.Catalog, rank int) error {
	if !catalog.Valid() {
		return domain.Invalid("unknown catalog %q", catalog)
	}
	if err := validateRank(rank); err != nil {
		return err
	}

	unlock := a.locks.Lock(string(catalog))
	defer unlock()

	if err := a.slots.DeleteByRank(ctx, catalog, rank); err != nil {
		return err
	}
	a.logger.Info("rank released", "catalog", catalog, "rank", rank)
	return nil
}

// List returns the catalog's slots by ascending rank, each joined with its
// item. A slot whose item no longer exists is kept with a nil Item.
func (a *SlotAssigner) List(ctx context.Context, catalog domain.Catalog) ([]*domain.RankedSlot, error) {
	if !catalog.Valid() {
		return nil, domain.Invalid("unknown catalog %q", catalog)
	}
	return a.listed.GetOrLoad(catalog, func() ([]*domain.RankedSlot, error) {
		slots, err := a.slots.List(ctx, catalog)
		if err != nil {
			return nil, err
		}
		ids := make([]string, 0, len(slots))
		for _, s := range slots {
			ids = append(ids, s.ItemID)
		}
		items, err := a.items.GetMany(ctx, ids)
		if err != nil {
			return nil, err
		}

		ranked := make([]*domain.RankedSlot, 0, len(slots))
		for _, s := range slots {
			rs := &domain.RankedSlot{Slot: s}
			if item, ok := items[s.ItemID]; ok {
				rs.Item = item.Summary()
			} else {
				a.logger.Warn("slot references missing item", "catalog", catalog, "rank", s.Rank, "item_id", s.ItemID)
			}
			ranked = append(ranked, rs)
		}
		return ranked, nil
	})
}

func validateRank(rank int) error {
	if rank < domain.MinRank || rank > domain.MaxRank {
		return domain.Invalid("rank must be between %d and %d, got %d", domain.MinRank, domain.MaxRank, rank)
	}
	return nil
}

// findItem loads an item and checks it belongs to catalog.
func findItem(ctx context.Context, items ItemRepository, catalog domain.Catalog, id string) (*domain.Item, error) {
	if !catalog.Valid() {
		return nil, domain.Invalid("unknown catalog %q", catalog)
	}
	item, err := items.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load item: %w", err)
	}
	if item == nil || item.Catalog != catalog {
		return nil, domain.NotFound("item", id)
	}
	return item, nil
}
