package mongostore

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vbonduro/bakutrack/internal/domain"
)

type itemDoc struct {
	ID           primitive.ObjectID   `bson:"_id"`
	Catalog      string               `bson:"catalog"`
	Names        []string             `bson:"names"`
	Size         string               `bson:"size"`
	Element      string               `bson:"element"`
	Special      string               `bson:"special"`
	Series       string               `bson:"series"`
	ImageRef     string               `bson:"imageRef"`
	CurrentPrice primitive.Decimal128 `bson:"currentPrice"`
	ReferenceURI string               `bson:"referenceUri"`
	Date         any                  `bson:"date"`
	CreatedAt    time.Time            `bson:"createdAt"`
	UpdatedAt    time.Time            `bson:"updatedAt"`
}

func (d *itemDoc) toDomain() (*domain.Item, error) {
	price, err := fromDecimal128(d.CurrentPrice)
	if err != nil {
		return nil, err
	}
	date, err := decodeDate(d.Date)
	if err != nil {
		return nil, err
	}
	return &domain.Item{
		ID:           d.ID.Hex(),
		Catalog:      domain.Catalog(d.Catalog),
		Names:        d.Names,
		Size:         domain.Size(d.Size),
		Element:      d.Element,
		Special:      d.Special,
		Series:       d.Series,
		ImageRef:     d.ImageRef,
		CurrentPrice: price,
		ReferenceURI: d.ReferenceURI,
		Date:         date,
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}, nil
}

type ItemStore struct {
	coll *mongo.Collection
}

func NewItemStore(db *mongo.Database) *ItemStore {
	return &ItemStore{coll: db.Collection(itemsCollection)}
}

func (s *ItemStore) Create(ctx context.Context, item *domain.Item) error {
	oid, err := objectID(item.ID)
	if err != nil {
		return err
	}
	price, err := toDecimal128(item.CurrentPrice)
	if err != nil {
		return fail("encode item price", err)
	}
	_, err = s.coll.InsertOne(ctx, itemDoc{
		ID:           oid,
		Catalog:      string(item.Catalog),
		Names:        item.Names,
		Size:         string(item.Size),
		Element:      item.Element,
		Special:      item.Special,
		Series:       item.Series,
		ImageRef:     item.ImageRef,
		CurrentPrice: price,
		ReferenceURI: item.ReferenceURI,
		Date:         dateOrNil(item.Date),
		CreatedAt:    item.CreatedAt,
		UpdatedAt:    item.UpdatedAt,
	})
	if err != nil {
		return fail("create item", err)
	}
	return nil
}

func (s *ItemStore) GetByID(ctx context.Context, id string) (*domain.Item, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	var doc itemDoc
	err = s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fail("get item", err)
	}
	item, err := doc.toDomain()
	if err != nil {
		return nil, fail("decode item", err)
	}
	return item, nil
}

func (s *ItemStore) GetMany(ctx context.Context, ids []string) (map[string]*domain.Item, error) {
	found := make(map[string]*domain.Item, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	oids, err := objectIDs(ids)
	if err != nil {
		return nil, err
	}
	items, err := s.find(ctx, bson.M{"_id": bson.M{"$in": oids}}, options.Find())
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		found[item.ID] = item
	}
	return found, nil
}

func (s *ItemStore) List(ctx context.Context, f domain.ItemFilter) ([]*domain.Item, error) {
	filter := bson.M{}
	if f.Catalog != "" {
		filter["catalog"] = f.Catalog
	}
	if f.Size != "" {
		filter["size"] = f.Size
	}
	if f.Element != "" {
		filter["element"] = exactFold(f.Element)
	}
	if f.Series != "" {
		filter["series"] = exactFold(f.Series)
	}
	if f.Query != "" {
		filter["names"] = primitive.Regex{Pattern: regexp.QuoteMeta(f.Query), Options: "i"}
	}

	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: -1}})
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}
	return s.find(ctx, filter, opts)
}

func (s *ItemStore) Update(ctx context.Context, item *domain.Item) error {
	oid, err := objectID(item.ID)
	if err != nil {
		return err
	}
	result, err := s.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{
		"names":     item.Names,
		"size":      item.Size,
		"element":   item.Element,
		"special":   item.Special,
		"series":    item.Series,
		"imageRef":  item.ImageRef,
		"updatedAt": item.UpdatedAt,
	}})
	if err != nil {
		return fail("update item", err)
	}
	return matchedOne(result.MatchedCount, "item", item.ID)
}

func (s *ItemStore) UpdatePrice(ctx context.Context, id string, price decimal.Decimal, date domain.PriceDate, referenceURI string, at time.Time) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	p, err := toDecimal128(price)
	if err != nil {
		return fail("encode item price", err)
	}
	result, err := s.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{
		"currentPrice": p,
		"date":         dateOrNil(date),
		"referenceUri": referenceURI,
		"updatedAt":    at,
	}})
	if err != nil {
		return fail("update item price", err)
	}
	return matchedOne(result.MatchedCount, "item", id)
}

func (s *ItemStore) Delete(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	result, err := s.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fail("delete item", err)
	}
	return matchedOne(result.DeletedCount, "item", id)
}

// idsInCatalog returns the IDs of the catalog's items, optionally narrowed to
// ids.
func (s *ItemStore) idsInCatalog(ctx context.Context, catalog domain.Catalog, ids []primitive.ObjectID) ([]primitive.ObjectID, error) {
	filter := bson.M{"catalog": catalog}
	if len(ids) > 0 {
		filter["_id"] = bson.M{"$in": ids}
	}
	cursor, err := s.coll.Find(ctx, filter, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, fail("list catalog items", err)
	}
	var docs []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fail("decode catalog items", err)
	}
	out := make([]primitive.ObjectID, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.ID)
	}
	return out, nil
}

func (s *ItemStore) find(ctx context.Context, filter any, opts *options.FindOptions) ([]*domain.Item, error) {
	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fail("list items", err)
	}
	var docs []itemDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fail("decode items", err)
	}
	items := make([]*domain.Item, 0, len(docs))
	for i := range docs {
		item, err := docs[i].toDomain()
		if err != nil {
			return nil, fail("decode item", err)
		}
		items = append(items, item)
	}
	return items, nil
}

func exactFold(s string) primitive.Regex {
	return primitive.Regex{Pattern: "^" + regexp.QuoteMeta(s) + "$", Options: "i"}
}
