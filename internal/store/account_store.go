package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vbonduro/bakutrack/internal/domain"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) Create(ctx context.Context, u *domain.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, display_name, tier, tier_expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, u.ID, u.Email, u.PasswordHash, u.DisplayName, u.Tier, u.TierExpiresAt, u.CreatedAt)
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	if err != nil {
		return fail("create user", err)
	}
	return nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	u := &domain.User{}
	var expires sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, display_name, tier, tier_expires_at, created_at FROM users WHERE email = ?
	`, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName, &u.Tier, &expires, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fail("get user", err)
	}
	if expires.Valid {
		u.TierExpiresAt = &expires.Time
	}
	return u, nil
}

func (s *UserStore) SetTier(ctx context.Context, email string, tier domain.Tier, expiresAt *time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET tier = ?, tier_expires_at = ? WHERE email = ?
	`, tier, expiresAt, email)
	if err != nil {
		return fail("set user tier", err)
	}
	return affectedOne(result, "user", email)
}

type PortfolioStore struct {
	db *sql.DB
}

func NewPortfolioStore(db *sql.DB) *PortfolioStore {
	return &PortfolioStore{db: db}
}

// Upsert inserts the entry or replaces quantity, price and notes of the
// owner's existing entry for the same item. The stored row is returned.
func (s *PortfolioStore) Upsert(ctx context.Context, e *domain.PortfolioEntry) (*domain.PortfolioEntry, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO portfolio_entries (id, owner, item_id, quantity, purchase_price, notes, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (owner, item_id) DO UPDATE SET
			quantity = excluded.quantity,
			purchase_price = excluded.purchase_price,
			notes = excluded.notes,
			updated_at = excluded.updated_at
	`, e.ID, e.Owner, e.ItemID, e.Quantity, e.PurchasePrice, e.Notes, e.UpdatedAt)
	if err != nil {
		return nil, fail("upsert portfolio entry", err)
	}

	stored := &domain.PortfolioEntry{}
	err = s.db.QueryRowContext(ctx, `
		SELECT id, owner, item_id, quantity, purchase_price, notes, updated_at
		FROM portfolio_entries WHERE owner = ? AND item_id = ?
	`, e.Owner, e.ItemID).Scan(&stored.ID, &stored.Owner, &stored.ItemID, &stored.Quantity,
		&stored.PurchasePrice, &stored.Notes, &stored.UpdatedAt)
	if err != nil {
		return nil, fail("get portfolio entry", err)
	}
	return stored, nil
}

func (s *PortfolioStore) ListByOwner(ctx context.Context, owner string) ([]*domain.PortfolioEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner, item_id, quantity, purchase_price, notes, updated_at
		FROM portfolio_entries WHERE owner = ? ORDER BY updated_at DESC, id DESC
	`, owner)
	if err != nil {
		return nil, fail("list portfolio entries", err)
	}
	defer closeRows(rows)

	var entries []*domain.PortfolioEntry
	for rows.Next() {
		e := &domain.PortfolioEntry{}
		if err := rows.Scan(&e.ID, &e.Owner, &e.ItemID, &e.Quantity, &e.PurchasePrice, &e.Notes, &e.UpdatedAt); err != nil {
			return nil, fail("scan portfolio entry", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fail("iterate portfolio entries", err)
	}
	return entries, nil
}

func (s *PortfolioStore) Delete(ctx context.Context, owner, itemID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM portfolio_entries WHERE owner = ? AND item_id = ?`, owner, itemID)
	if err != nil {
		return fail("delete portfolio entry", err)
	}
	return affectedOne(result, "portfolio entry", itemID)
}

type FavoriteStore struct {
	db *sql.DB
}

func NewFavoriteStore(db *sql.DB) *FavoriteStore {
	return &FavoriteStore{db: db}
}

// Add is idempotent: favoriting an item twice keeps the first timestamp.
func (s *FavoriteStore) Add(ctx context.Context, f *domain.Favorite) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO favorites (owner, item_id, created_at) VALUES (?, ?, ?)
		ON CONFLICT (owner, item_id) DO NOTHING
	`, f.Owner, f.ItemID, f.CreatedAt)
	if err != nil {
		return fail("add favorite", err)
	}
	return nil
}

func (s *FavoriteStore) ListByOwner(ctx context.Context, owner string) ([]*domain.Favorite, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT owner, item_id, created_at FROM favorites WHERE owner = ? ORDER BY created_at DESC, item_id DESC
	`, owner)
	if err != nil {
		return nil, fail("list favorites", err)
	}
	defer closeRows(rows)

	var favorites []*domain.Favorite
	for rows.Next() {
		f := &domain.Favorite{}
		if err := rows.Scan(&f.Owner, &f.ItemID, &f.CreatedAt); err != nil {
			return nil, fail("scan favorite", err)
		}
		favorites = append(favorites, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fail("iterate favorites", err)
	}
	return favorites, nil
}

func (s *FavoriteStore) Delete(ctx context.Context, owner, itemID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM favorites WHERE owner = ? AND item_id = ?`, owner, itemID)
	if err != nil {
		return fail("delete favorite", err)
	}
	return affectedOne(result, "favorite", itemID)
}
