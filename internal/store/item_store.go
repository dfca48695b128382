package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vbonduro/bakutrack/internal/domain"
)

type ItemStore struct {
	db *sql.DB
}

func NewItemStore(db *sql.DB) *ItemStore {
	return &ItemStore{db: db}
}

const itemColumns = `id, catalog, names, size, element, special, series, image_ref,
	current_price, reference_uri, price_date, created_at, updated_at`

func (s *ItemStore) Create(ctx context.Context, item *domain.Item) error {
	names, err := json.Marshal(item.Names)
	if err != nil {
		return fail("encode item names", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO items (`+itemColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, item.ID, item.Catalog, string(names), item.Size, item.Element, item.Special, item.Series, item.ImageRef,
		item.CurrentPrice, item.ReferenceURI, item.Date, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return fail("create item", err)
	}
	return nil
}

func (s *ItemStore) GetByID(ctx context.Context, id string) (*domain.Item, error) {
	item, err := scanItem(s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fail("get item", err)
	}
	return item, nil
}

// GetMany returns the items that exist among ids, keyed by ID.
func (s *ItemStore) GetMany(ctx context.Context, ids []string) (map[string]*domain.Item, error) {
	found := make(map[string]*domain.Item, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return nil, fail("get items", err)
	}
	defer closeRows(rows)

	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fail("scan item", err)
		}
		found[item.ID] = item
	}
	if err := rows.Err(); err != nil {
		return nil, fail("iterate items", err)
	}
	return found, nil
}

func (s *ItemStore) List(ctx context.Context, f domain.ItemFilter) ([]*domain.Item, error) {
	var (
		where []string
		args  []any
	)
	if f.Catalog != "" {
		where = append(where, "catalog = ?")
		args = append(args, f.Catalog)
	}
	if f.Size != "" {
		where = append(where, "size = ?")
		args = append(args, f.Size)
	}
	if f.Element != "" {
		where = append(where, "LOWER(element) = LOWER(?)")
		args = append(args, f.Element)
	}
	if f.Series != "" {
		where = append(where, "LOWER(series) = LOWER(?)")
		args = append(args, f.Series)
	}
	if f.Query != "" {
		// names is a JSON array; matching its text covers every alias.
		where = append(where, "LOWER(names) LIKE ?")
		args = append(args, "%"+strings.ToLower(f.Query)+"%")
	}

	query := `SELECT ` + itemColumns + ` FROM items`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fail("list items", err)
	}
	defer closeRows(rows)

	var items []*domain.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fail("scan item", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fail("iterate items", err)
	}
	return items, nil
}

// Update writes the descriptive fields. The price projection is left alone.
func (s *ItemStore) Update(ctx context.Context, item *domain.Item) error {
	names, err := json.Marshal(item.Names)
	if err != nil {
		return fail("encode item names", err)
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE items SET names = ?, size = ?, element = ?, special = ?, series = ?, image_ref = ?, updated_at = ?
		WHERE id = ?
	`, string(names), item.Size, item.Element, item.Special, item.Series, item.ImageRef, item.UpdatedAt, item.ID)
	if err != nil {
		return fail("update item", err)
	}
	return affectedOne(result, "item", item.ID)
}

func (s *ItemStore) UpdatePrice(ctx context.Context, id string, price decimal.Decimal, date domain.PriceDate, referenceURI string, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE items SET current_price = ?, price_date = ?, reference_uri = ?, updated_at = ? WHERE id = ?
	`, price, date, referenceURI, at, id)
	if err != nil {
		return fail("update item price", err)
	}
	return affectedOne(result, "item", id)
}

func (s *ItemStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return fail("delete item", err)
	}
	return affectedOne(result, "item", id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*domain.Item, error) {
	item := &domain.Item{}
	var names string
	err := row.Scan(&item.ID, &item.Catalog, &names, &item.Size, &item.Element, &item.Special, &item.Series,
		&item.ImageRef, &item.CurrentPrice, &item.ReferenceURI, &item.Date, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(names), &item.Names); err != nil {
		return nil, err
	}
	return item, nil
}
