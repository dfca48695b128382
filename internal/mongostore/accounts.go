package mongostore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vbonduro/bakutrack/internal/domain"
)

type userDoc struct {
	ID            primitive.ObjectID `bson:"_id"`
	Email         string             `bson:"email"`
	PasswordHash  string             `bson:"passwordHash"`
	DisplayName   string             `bson:"displayName"`
	Tier          string             `bson:"tier"`
	TierExpiresAt *time.Time         `bson:"tierExpiresAt"`
	CreatedAt     time.Time          `bson:"createdAt"`
}

type UserStore struct {
	coll *mongo.Collection
}

func NewUserStore(db *mongo.Database) *UserStore {
	return &UserStore{coll: db.Collection(usersCollection)}
}

func (s *UserStore) Create(ctx context.Context, u *domain.User) error {
	oid, err := objectID(u.ID)
	if err != nil {
		return err
	}
	_, err = s.coll.InsertOne(ctx, userDoc{
		ID:            oid,
		Email:         u.Email,
		PasswordHash:  u.PasswordHash,
		DisplayName:   u.DisplayName,
		Tier:          string(u.Tier),
		TierExpiresAt: u.TierExpiresAt,
		CreatedAt:     u.CreatedAt,
	})
	if mongo.IsDuplicateKeyError(err) {
		return domain.ErrConflict
	}
	if err != nil {
		return fail("create user", err)
	}
	return nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var doc userDoc
	err := s.coll.FindOne(ctx, bson.M{"email": email}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fail("get user", err)
	}
	u := &domain.User{
		ID:           doc.ID.Hex(),
		Email:        doc.Email,
		PasswordHash: doc.PasswordHash,
		DisplayName:  doc.DisplayName,
		Tier:         domain.Tier(doc.Tier),
		CreatedAt:    doc.CreatedAt.UTC(),
	}
	if doc.TierExpiresAt != nil {
		t := doc.TierExpiresAt.UTC()
		u.TierExpiresAt = &t
	}
	return u, nil
}

func (s *UserStore) SetTier(ctx context.Context, email string, tier domain.Tier, expiresAt *time.Time) error {
	result, err := s.coll.UpdateOne(ctx, bson.M{"email": email}, bson.M{"$set": bson.M{
		"tier":          tier,
		"tierExpiresAt": expiresAt,
	}})
	if err != nil {
		return fail("set user tier", err)
	}
	return matchedOne(result.MatchedCount, "user", email)
}

type portfolioDoc struct {
	ID            primitive.ObjectID   `bson:"_id"`
	Owner         string               `bson:"owner"`
	ItemID        primitive.ObjectID   `bson:"itemId"`
	Quantity      int                  `bson:"quantity"`
	PurchasePrice primitive.Decimal128 `bson:"purchasePrice"`
	Notes         string               `bson:"notes"`
	UpdatedAt     time.Time            `bson:"updatedAt"`
}

func (d *portfolioDoc) toDomain() (*domain.PortfolioEntry, error) {
	price, err := fromDecimal128(d.PurchasePrice)
	if err != nil {
		return nil, err
	}
	return &domain.PortfolioEntry{
		ID:            d.ID.Hex(),
		Owner:         d.Owner,
		ItemID:        d.ItemID.Hex(),
		Quantity:      d.Quantity,
		PurchasePrice: price,
		Notes:         d.Notes,
		UpdatedAt:     d.UpdatedAt.UTC(),
	}, nil
}

type PortfolioStore struct {
	coll *mongo.Collection
}

func NewPortfolioStore(db *mongo.Database) *PortfolioStore {
	return &PortfolioStore{coll: db.Collection(portfolioCollection)}
}

// Upsert keeps one document per (owner, item); an existing document keeps its
// ID.
func (s *PortfolioStore) Upsert(ctx context.Context, e *domain.PortfolioEntry) (*domain.PortfolioEntry, error) {
	oid, err := objectID(e.ID)
	if err != nil {
		return nil, err
	}
	itemID, err := objectID(e.ItemID)
	if err != nil {
		return nil, err
	}
	price, err := toDecimal128(e.PurchasePrice)
	if err != nil {
		return nil, fail("encode purchase price", err)
	}

	var doc portfolioDoc
	err = s.coll.FindOneAndUpdate(ctx,
		bson.M{"owner": e.Owner, "itemId": itemID},
		bson.M{
			"$set": bson.M{
				"quantity":      e.Quantity,
				"purchasePrice": price,
				"notes":         e.Notes,
				"updatedAt":     e.UpdatedAt,
			},
			"$setOnInsert": bson.M{"_id": oid},
		},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return nil, fail("upsert portfolio entry", err)
	}
	stored, err := doc.toDomain()
	if err != nil {
		return nil, fail("decode portfolio entry", err)
	}
	return stored, nil
}

func (s *PortfolioStore) ListByOwner(ctx context.Context, owner string) ([]*domain.PortfolioEntry, error) {
	cursor, err := s.coll.Find(ctx, bson.M{"owner": owner},
		options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}, {Key: "_id", Value: -1}}))
	if err != nil {
		return nil, fail("list portfolio entries", err)
	}
	var docs []portfolioDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fail("decode portfolio entries", err)
	}
	entries := make([]*domain.PortfolioEntry, 0, len(docs))
	for i := range docs {
		e, err := docs[i].toDomain()
		if err != nil {
			return nil, fail("decode portfolio entry", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (s *PortfolioStore) Delete(ctx context.Context, owner, itemID string) error {
	oid, err := objectID(itemID)
	if err != nil {
		return err
	}
	result, err := s.coll.DeleteOne(ctx, bson.M{"owner": owner, "itemId": oid})
	if err != nil {
		return fail("delete portfolio entry", err)
	}
	return matchedOne(result.DeletedCount, "portfolio entry", itemID)
}

type favoriteDoc struct {
	Owner     string             `bson:"owner"`
	ItemID    primitive.ObjectID `bson:"itemId"`
	CreatedAt time.Time          `bson:"createdAt"`
}

type FavoriteStore struct {
	coll *mongo.Collection
}

func NewFavoriteStore(db *mongo.Database) *FavoriteStore {
	return &FavoriteStore{coll: db.Collection(favoritesCollection)}
}

// Add is idempotent: favoriting an item twice keeps the first timestamp.
func (s *FavoriteStore) Add(ctx context.Context, f *domain.Favorite) error {
	itemID, err := objectID(f.ItemID)
	if err != nil {
		return err
	}
	_, err = s.coll.UpdateOne(ctx,
		bson.M{"owner": f.Owner, "itemId": itemID},
		bson.M{"$setOnInsert": bson.M{"createdAt": f.CreatedAt}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fail("add favorite", err)
	}
	return nil
}

func (s *FavoriteStore) ListByOwner(ctx context.Context, owner string) ([]*domain.Favorite, error) {
	cursor, err := s.coll.Find(ctx, bson.M{"owner": owner},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "itemId", Value: -1}}))
	if err != nil {
		return nil, fail("list favorites", err)
	}
	var docs []favoriteDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fail("decode favorites", err)
	}
	favorites := make([]*domain.Favorite, 0, len(docs))
	for _, d := range docs {
		favorites = append(favorites, &domain.Favorite{Owner: d.Owner, ItemID: d.ItemID.Hex(), CreatedAt: d.CreatedAt.UTC()})
	}
	return favorites, nil
}

func (s *FavoriteStore) Delete(ctx context.Context, owner, itemID string) error {
	oid, err := objectID(itemID)
	if err != nil {
		return err
	}
	result, err := s.coll.DeleteOne(ctx, bson.M{"owner": owner, "itemId": oid})
	if err != nil {
		return fail("delete favorite", err)
	}
	return matchedOne(result.DeletedCount, "favorite", itemID)
}
