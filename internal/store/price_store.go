package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/vbonduro/bakutrack/internal/domain"
)

type PriceStore struct {
	db *sql.DB
}

func NewPriceStore(db *sql.DB) *PriceStore {
	return &PriceStore{db: db}
}

const entryColumns = `id, item_id, price, ts_raw, notes, reference_uri, created_at`

// ledgerOrder is the ledger ordering rule expressed in SQL.
const ledgerOrder = `ts_key DESC, id DESC`

func (s *PriceStore) Create(ctx context.Context, e *domain.PriceEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO price_entries (id, item_id, price, ts_raw, ts_key, notes, reference_uri, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.ItemID, e.Price, e.Timestamp, e.Timestamp.SortKey(), e.Notes, e.ReferenceURI, e.CreatedAt)
	if err != nil {
		return fail("create price entry", err)
	}
	return nil
}

func (s *PriceStore) GetByID(ctx context.Context, id string) (*domain.PriceEntry, error) {
	e, err := scanEntry(s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM price_entries WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fail("get price entry", err)
	}
	return e, nil
}

// ListByItem returns the item's entries in ledger order. A limit of zero or
// less returns every entry.
func (s *PriceStore) ListByItem(ctx context.Context, itemID string, limit int) ([]*domain.PriceEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM price_entries WHERE item_id = ? ORDER BY ` + ledgerOrder
	args := []any{itemID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fail("list price entries", err)
	}
	defer closeRows(rows)
	return collectEntries(rows)
}

// RecentByItems returns up to n newest entries for each item of the catalog,
// restricted to itemIDs when any are given.
func (s *PriceStore) RecentByItems(ctx context.Context, catalog domain.Catalog, itemIDs []string, n int) (map[string][]*domain.PriceEntry, error) {
	args := []any{catalog}
	filter := ""
	if len(itemIDs) > 0 {
		filter = ` AND p.item_id IN (` + placeholders(len(itemIDs)) + `)`
		for _, id := range itemIDs {
			args = append(args, id)
		}
	}
	args = append(args, n)

	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.item_id, e.price, e.ts_raw, e.notes, e.reference_uri, e.created_at
		FROM price_entries e JOIN (
			SELECT p.id, ROW_NUMBER() OVER (PARTITION BY p.item_id ORDER BY p.ts_key DESC, p.id DESC) AS rn
			FROM price_entries p JOIN items i ON i.id = p.item_id
			WHERE i.catalog = ?`+filter+`
		) ranked ON ranked.id = e.id
		WHERE ranked.rn <= ? ORDER BY e.item_id, ranked.rn
	`, args...)
	if err != nil {
		return nil, fail("list recent price entries", err)
	}
	defer closeRows(rows)

	entries, err := collectEntries(rows)
	if err != nil {
		return nil, err
	}
	grouped := make(map[string][]*domain.PriceEntry)
	for _, e := range entries {
		grouped[e.ItemID] = append(grouped[e.ItemID], e)
	}
	return grouped, nil
}

func (s *PriceStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM price_entries WHERE id = ?`, id)
	if err != nil {
		return fail("delete price entry", err)
	}
	return affectedOne(result, "price entry", id)
}

func (s *PriceStore) DeleteByItem(ctx context.Context, itemID string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM price_entries WHERE item_id = ?`, itemID)
	if err != nil {
		return 0, fail("delete price entries", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fail("get rows affected", err)
	}
	return n, nil
}

func collectEntries(rows *sql.Rows) ([]*domain.PriceEntry, error) {
	var entries []*domain.PriceEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fail("scan price entry", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fail("iterate price entries", err)
	}
	return entries, nil
}

func scanEntry(row rowScanner) (*domain.PriceEntry, error) {
	e := &domain.PriceEntry{}
	err := row.Scan(&e.ID, &e.ItemID, &e.Price, &e.Timestamp, &e.Notes, &e.ReferenceURI, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}
