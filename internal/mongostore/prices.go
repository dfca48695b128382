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

type priceDoc struct {
	ID           primitive.ObjectID   `bson:"_id"`
	ItemID       primitive.ObjectID   `bson:"itemId"`
	Price        primitive.Decimal128 `bson:"price"`
	Timestamp    any                  `bson:"timestamp"`
	TSKey        string               `bson:"tsKey"`
	Notes        string               `bson:"notes"`
	ReferenceURI string               `bson:"referenceUri"`
	CreatedAt    time.Time            `bson:"createdAt"`
}

func (d *priceDoc) toDomain() (*domain.PriceEntry, error) {
	price, err := fromDecimal128(d.Price)
	if err != nil {
		return nil, err
	}
	ts, err := decodeDate(d.Timestamp)
	if err != nil {
		return nil, err
	}
	return &domain.PriceEntry{
		ID:           d.ID.Hex(),
		ItemID:       d.ItemID.Hex(),
		Price:        price,
		Timestamp:    ts,
		Notes:        d.Notes,
		ReferenceURI: d.ReferenceURI,
		CreatedAt:    d.CreatedAt.UTC(),
	}, nil
}

// ledgerSort is the ledger ordering rule: newest timestamp first, later
// insertion first among equal timestamps.
var ledgerSort = bson.D{{Key: "tsKey", Value: -1}, {Key: "_id", Value: -1}}

type PriceStore struct {
	coll  *mongo.Collection
	items *ItemStore
}

func NewPriceStore(db *mongo.Database) *PriceStore {
	return &PriceStore{coll: db.Collection(pricesCollection), items: NewItemStore(db)}
}

func (s *PriceStore) Create(ctx context.Context, e *domain.PriceEntry) error {
	oid, err := objectID(e.ID)
	if err != nil {
		return err
	}
	itemID, err := objectID(e.ItemID)
	if err != nil {
		return err
	}
	price, err := toDecimal128(e.Price)
	if err != nil {
		return fail("encode price", err)
	}
	_, err = s.coll.InsertOne(ctx, priceDoc{
		ID:           oid,
		ItemID:       itemID,
		Price:        price,
		Timestamp:    e.Timestamp.String(),
		TSKey:        e.Timestamp.SortKey(),
		Notes:        e.Notes,
		ReferenceURI: e.ReferenceURI,
		CreatedAt:    e.CreatedAt,
	})
	if err != nil {
		return fail("create price entry", err)
	}
	return nil
}

func (s *PriceStore) GetByID(ctx context.Context, id string) (*domain.PriceEntry, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	var doc priceDoc
	err = s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fail("get price entry", err)
	}
	e, err := doc.toDomain()
	if err != nil {
		return nil, fail("decode price entry", err)
	}
	return e, nil
}

func (s *PriceStore) ListByItem(ctx context.Context, itemID string, limit int) ([]*domain.PriceEntry, error) {
	oid, err := objectID(itemID)
	if err != nil {
		return nil, err
	}
	opts := options.Find().SetSort(ledgerSort)
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := s.coll.Find(ctx, bson.M{"itemId": oid}, opts)
	if err != nil {
		return nil, fail("list price entries", err)
	}
	var docs []priceDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fail("decode price entries", err)
	}
	return toEntries(docs)
}

// RecentByItems groups the newest n entries per item with a single
// aggregation after resolving the catalog's item IDs.
func (s *PriceStore) RecentByItems(ctx context.Context, catalog domain.Catalog, itemIDs []string, n int) (map[string][]*domain.PriceEntry, error) {
	wanted, err := objectIDs(itemIDs)
	if err != nil {
		return nil, err
	}
	ids, err := s.items.idsInCatalog(ctx, catalog, wanted)
	if err != nil {
		return nil, err
	}
	grouped := make(map[string][]*domain.PriceEntry)
	if len(ids) == 0 {
		return grouped, nil
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"itemId": bson.M{"$in": ids}}}},
		{{Key: "$sort", Value: ledgerSort}},
		{{Key: "$group", Value: bson.M{"_id": "$itemId", "entries": bson.M{"$push": "$$ROOT"}}}},
		{{Key: "$project", Value: bson.M{"entries": bson.M{"$slice": bson.A{"$entries", n}}}}},
	}
	cursor, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fail("aggregate recent price entries", err)
	}
	var groups []struct {
		ItemID  primitive.ObjectID `bson:"_id"`
		Entries []priceDoc         `bson:"entries"`
	}
	if err := cursor.All(ctx, &groups); err != nil {
		return nil, fail("decode recent price entries", err)
	}
	for _, g := range groups {
		entries, err := toEntries(g.Entries)
		if err != nil {
			return nil, err
		}
		grouped[g.ItemID.Hex()] = entries
	}
	return grouped, nil
}

func (s *PriceStore) Delete(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	result, err := s.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fail("delete price entry", err)
	}
	return matchedOne(result.DeletedCount, "price entry", id)
}

func (s *PriceStore) DeleteByItem(ctx context.Context, itemID string) (int64, error) {
	oid, err := objectID(itemID)
	if err != nil {
		return 0, err
	}
	result, err := s.coll.DeleteMany(ctx, bson.M{"itemId": oid})
	if err != nil {
		return 0, fail("delete price entries", err)
	}
	return result.DeletedCount, nil
}

func toEntries(docs []priceDoc) ([]*domain.PriceEntry, error) {
	entries := make([]*domain.PriceEntry, 0, len(docs))
	for i := range docs {
		e, err := docs[i].toDomain()
		if err != nil {
			return nil, fail("decode price entry", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
