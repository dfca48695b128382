package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Catalog partitions items. Each catalog owns its own recommendation list.
type Catalog string

const (
	CatalogBakugan  Catalog = "bakugan"
	CatalogBakuTech Catalog = "bakutech"
)

// Catalogs lists every known partition in display order.
var Catalogs = []Catalog{CatalogBakugan, CatalogBakuTech}

func (c Catalog) Valid() bool {
	return c == CatalogBakugan || c == CatalogBakuTech
}

type Size string

const (
	SizeB1 Size = "B1"
	SizeB2 Size = "B2"
	SizeB3 Size = "B3"
)

func (s Size) Valid() bool {
	return s == SizeB1 || s == SizeB2 || s == SizeB3
}

type Item struct {
	ID           string          `json:"id"`
	Catalog      Catalog         `json:"catalog"`
	Names        []string        `json:"names"`
	Size         Size            `json:"size"`
	Element      string          `json:"element"`
	Special      string          `json:"special"`
	Series       string          `json:"series"`
	ImageRef     string          `json:"imageRef"`
	CurrentPrice decimal.Decimal `json:"currentPrice"`
	ReferenceURI string          `json:"referenceUri"`
	Date         PriceDate       `json:"date"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// PrimaryName is the first display name.
func (it *Item) PrimaryName() string {
	if len(it.Names) == 0 {
		return ""
	}
	return it.Names[0]
}

// Summary is the display projection joined into slot and collection listings.
func (it *Item) Summary() *ItemSummary {
	return &ItemSummary{
		ID:           it.ID,
		Names:        it.Names,
		Size:         it.Size,
		Element:      it.Element,
		ImageRef:     it.ImageRef,
		CurrentPrice: it.CurrentPrice,
	}
}

type ItemSummary struct {
	ID           string          `json:"id"`
	Names        []string        `json:"names"`
	Size         Size            `json:"size"`
	Element      string          `json:"element"`
	ImageRef     string          `json:"imageRef"`
	CurrentPrice decimal.Decimal `json:"currentPrice"`
}

// ItemFilter narrows catalog listings. Zero values match everything.
type ItemFilter struct {
	Catalog Catalog
	Size    Size
	Element string
	Series  string
	Query   string
	Limit   int
}

// PriceEntry is one immutable ledger observation.
type PriceEntry struct {
	ID           string          `json:"id"`
	ItemID       string          `json:"itemId,omitempty"`
	Price        decimal.Decimal `json:"price"`
	Timestamp    PriceDate       `json:"timestamp"`
	Notes        string          `json:"notes"`
	ReferenceURI string          `json:"referenceUri"`
	CreatedAt    time.Time       `json:"-"`
}

const (
	MinRank = 1
	MaxRank = 5
)

// Slot assigns one item to one rank within a catalog.
type Slot struct {
	ID        string    `json:"id"`
	Catalog   Catalog   `json:"catalog"`
	Rank      int       `json:"rank"`
	ItemID    string    `json:"itemId"`
	Reason    string    `json:"reason"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RankedSlot is a slot joined with its item. Item is nil when the referenced
// item no longer exists.
type RankedSlot struct {
	*Slot
	Item *ItemSummary `json:"item"`
}

type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

func (t Tier) Valid() bool {
	return t == TierFree || t == TierPremium
}

// HistoryLimit is the largest price-history page the tier may request.
func (t Tier) HistoryLimit() int {
	if t == TierPremium {
		return 100
	}
	return 10
}

type User struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	PasswordHash  string     `json:"-"`
	DisplayName   string     `json:"displayName"`
	Tier          Tier       `json:"tier"`
	TierExpiresAt *time.Time `json:"tierExpiresAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// EffectiveTier reports the tier in force at now; lapsed subscriptions fall
// back to free.
func (u *User) EffectiveTier(now time.Time) Tier {
	if u.Tier == TierPremium && u.TierExpiresAt != nil && !now.Before(*u.TierExpiresAt) {
		return TierFree
	}
	if !u.Tier.Valid() {
		return TierFree
	}
	return u.Tier
}

type PortfolioEntry struct {
	ID            string          `json:"id"`
	Owner         string          `json:"-"`
	ItemID        string          `json:"itemId"`
	Quantity      int             `json:"quantity"`
	PurchasePrice decimal.Decimal `json:"purchasePrice"`
	Notes         string          `json:"notes"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

type Favorite struct {
	Owner     string    `json:"-"`
	ItemID    string    `json:"itemId"`
	CreatedAt time.Time `json:"createdAt"`
}
