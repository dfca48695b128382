// Package mongostore implements the repositories on MongoDB. Documents use
// ObjectID keys, Decimal128 prices and keep price dates as the caller's raw
// text next to a sortable key.
package mongostore

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/vbonduro/bakutrack/internal/domain"
)

const (
	itemsCollection     = "items"
	pricesCollection    = "price_entries"
	slotsCollection     = "rank_slots"
	usersCollection     = "users"
	portfolioCollection = "portfolio_entries"
	favoritesCollection = "favorites"
)

// Connect dials uri and verifies the primary is reachable.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}
	return client, nil
}

// EnsureIndexes creates the indexes the repositories rely on. It is safe to
// call on every start.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	unique := options.Index().SetUnique(true)
	indexes := map[string][]mongo.IndexModel{
		itemsCollection: {
			{Keys: bson.D{{Key: "catalog", Value: 1}, {Key: "_id", Value: -1}}},
		},
		pricesCollection: {
			{Keys: bson.D{{Key: "itemId", Value: 1}, {Key: "tsKey", Value: -1}, {Key: "_id", Value: -1}}},
		},
		slotsCollection: {
			{Keys: bson.D{{Key: "catalog", Value: 1}, {Key: "rank", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "catalog", Value: 1}, {Key: "itemId", Value: 1}}},
		},
		usersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: unique},
		},
		portfolioCollection: {
			{Keys: bson.D{{Key: "owner", Value: 1}, {Key: "itemId", Value: 1}}, Options: unique},
		},
		favoritesCollection: {
			{Keys: bson.D{{Key: "owner", Value: 1}, {Key: "itemId", Value: 1}}, Options: unique},
		},
	}
	for name, models := range indexes {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", name, err)
		}
	}
	return nil
}

func fail(op string, err error) error {
	return fmt.Errorf("failed to %s: %w: %w", op, domain.ErrStore, err)
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q", domain.ErrInvalidID, id)
	}
	return oid, nil
}

func objectIDs(ids []string) ([]primitive.ObjectID, error) {
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		oid, err := objectID(id)
		if err != nil {
			return nil, err
		}
		out = append(out, oid)
	}
	return out, nil
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	return primitive.ParseDecimal128(d.String())
}

func fromDecimal128(d primitive.Decimal128) (decimal.Decimal, error) {
	return decimal.NewFromString(d.String())
}

// decodeDate accepts a stored date in either raw text or BSON datetime form.
func decodeDate(v any) (domain.PriceDate, error) {
	switch t := v.(type) {
	case nil:
		return domain.PriceDate{}, nil
	case string:
		if t == "" {
			return domain.PriceDate{}, nil
		}
		return domain.ParsePriceDate(t)
	case primitive.DateTime:
		return domain.PriceDateFromTime(t.Time()), nil
	default:
		return domain.PriceDate{}, fmt.Errorf("unsupported date type %T", v)
	}
}

// dateOrNil encodes the zero date as BSON null.
func dateOrNil(d domain.PriceDate) any {
	if d.IsZero() {
		return nil
	}
	return d.String()
}

func matchedOne(matched int64, kind, id string) error {
	if matched == 0 {
		return domain.NotFound(kind, id)
	}
	return nil
}
