package store

import (
	"context"
	"database/sql"
	"errors"
	"strconv"

	"github.com/vbonduro/bakutrack/internal/domain"
)

// SlotStore persists the ranked recommendation slots of every catalog.
type SlotStore struct {
	db *sql.DB
}

func NewSlotStore(db *sql.DB) *SlotStore {
	return &SlotStore{db: db}
}

const slotColumns = `id, catalog, rank, item_id, reason, updated_at`

func (s *SlotStore) Create(ctx context.Context, slot *domain.Slot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rank_slots (`+slotColumns+`) VALUES (?, ?, ?, ?, ?, ?)
	`, slot.ID, slot.Catalog, slot.Rank, slot.ItemID, slot.Reason, slot.UpdatedAt)
	if isUniqueViolation(err) {
		return fail("create slot", errors.Join(domain.ErrConflict, err))
	}
	if err != nil {
		return fail("create slot", err)
	}
	return nil
}

func (s *SlotStore) GetByRank(ctx context.Context, catalog domain.Catalog, rank int) (*domain.Slot, error) {
	return s.getOne(ctx, `WHERE catalog = ? AND rank = ?`, catalog, rank)
}

func (s *SlotStore) GetByItem(ctx context.Context, catalog domain.Catalog, itemID string) (*domain.Slot, error) {
	return s.getOne(ctx, `WHERE catalog = ? AND item_id = ? ORDER BY rank LIMIT 1`, catalog, itemID)
}

func (s *SlotStore) getOne(ctx context.Context, where string, args ...any) (*domain.Slot, error) {
	slot, err := scanSlot(s.db.QueryRowContext(ctx, `SELECT `+slotColumns+` FROM rank_slots `+where, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fail("get slot", err)
	}
	return slot, nil
}

func (s *SlotStore) List(ctx context.Context, catalog domain.Catalog) ([]*domain.Slot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+slotColumns+` FROM rank_slots WHERE catalog = ? ORDER BY rank ASC
	`, catalog)
	if err != nil {
		return nil, fail("list slots", err)
	}
	defer closeRows(rows)

	var slots []*domain.Slot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fail("scan slot", err)
		}
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, fail("iterate slots", err)
	}
	return slots, nil
}

// Update rewrites rank, item and reason of an existing slot.
func (s *SlotStore) Update(ctx context.Context, slot *domain.Slot) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE rank_slots SET rank = ?, item_id = ?, reason = ?, updated_at = ? WHERE id = ?
	`, slot.Rank, slot.ItemID, slot.Reason, slot.UpdatedAt, slot.ID)
	if isUniqueViolation(err) {
		return fail("update slot", errors.Join(domain.ErrConflict, err))
	}
	if err != nil {
		return fail("update slot", err)
	}
	return affectedOne(result, "slot", slot.ID)
}

func (s *SlotStore) DeleteByRank(ctx context.Context, catalog domain.Catalog, rank int) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM rank_slots WHERE catalog = ? AND rank = ?`, catalog, rank)
	if err != nil {
		return fail("delete slot", err)
	}
	return affectedOne(result, "slot at rank", strconv.Itoa(rank))
}

func scanSlot(row rowScanner) (*domain.Slot, error) {
	slot := &domain.Slot{}
	if err := row.Scan(&slot.ID, &slot.Catalog, &slot.Rank, &slot.ItemID, &slot.Reason, &slot.UpdatedAt); err != nil {
		return nil, err
	}
	return slot, nil
}
