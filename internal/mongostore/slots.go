package mongostore

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vbonduro/bakutrack/internal/domain"
)

type slotDoc struct {
	ID        primitive.ObjectID `bson:"_id"`
	Catalog   string             `bson:"catalog"`
	Rank      int                `bson:"rank"`
	ItemID    primitive.ObjectID `bson:"itemId"`
	Reason    string             `bson:"reason"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

func (d *slotDoc) toDomain() *domain.Slot {
	return &domain.Slot{
		ID:        d.ID.Hex(),
		Catalog:   domain.Catalog(d.Catalog),
		Rank:      d.Rank,
		ItemID:    d.ItemID.Hex(),
		Reason:    d.Reason,
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}

type SlotStore struct {
	coll *mongo.Collection
}

func NewSlotStore(db *mongo.Database) *SlotStore {
	return &SlotStore{coll: db.Collection(slotsCollection)}
}

func (s *SlotStore) Create(ctx context.Context, slot *domain.Slot) error {
	doc, err := newSlotDoc(slot)
	if err != nil {
		return err
	}
	_, err = s.coll.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return fail("create slot", errors.Join(domain.ErrConflict, err))
	}
	if err != nil {
		return fail("create slot", err)
	}
	return nil
}

func (s *SlotStore) GetByRank(ctx context.Context, catalog domain.Catalog, rank int) (*domain.Slot, error) {
	return s.getOne(ctx, bson.M{"catalog": catalog, "rank": rank})
}

func (s *SlotStore) GetByItem(ctx context.Context, catalog domain.Catalog, itemID string) (*domain.Slot, error) {
	oid, err := objectID(itemID)
	if err != nil {
		return nil, err
	}
	return s.getOne(ctx, bson.M{"catalog": catalog, "itemId": oid})
}

func (s *SlotStore) getOne(ctx context.Context, filter bson.M) (*domain.Slot, error) {
	var doc slotDoc
	err := s.coll.FindOne(ctx, filter, options.FindOne().SetSort(bson.D{{Key: "rank", Value: 1}})).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fail("get slot", err)
	}
	return doc.toDomain(), nil
}

func (s *SlotStore) List(ctx context.Context, catalog domain.Catalog) ([]*domain.Slot, error) {
	cursor, err := s.coll.Find(ctx, bson.M{"catalog": catalog}, options.Find().SetSort(bson.D{{Key: "rank", Value: 1}}))
	if err != nil {
		return nil, fail("list slots", err)
	}
	var docs []slotDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fail("decode slots", err)
	}
	slots := make([]*domain.Slot, 0, len(docs))
	for i := range docs {
		slots = append(slots, docs[i].toDomain())
	}
	return slots, nil
}

func (s *SlotStore) Update(ctx context.Context, slot *domain.Slot) error {
	doc, err := newSlotDoc(slot)
	if err != nil {
		return err
	}
	result, err := s.coll.UpdateOne(ctx, bson.M{"_id": doc.ID}, bson.M{"$set": bson.M{
		"rank":      doc.Rank,
		"itemId":    doc.ItemID,
		"reason":    doc.Reason,
		"updatedAt": doc.UpdatedAt,
	}})
	if mongo.IsDuplicateKeyError(err) {
		return fail("update slot", errors.Join(domain.ErrConflict, err))
	}
	if err != nil {
		return fail("update slot", err)
	}
	return matchedOne(result.MatchedCount, "slot", slot.ID)
}

func (s *SlotStore) DeleteByRank(ctx context.Context, catalog domain.Catalog, rank int) error {
	result, err := s.coll.DeleteOne(ctx, bson.M{"catalog": catalog, "rank": rank})
	if err != nil {
		return fail("delete slot", err)
	}
	return matchedOne(result.DeletedCount, "slot at rank", strconv.Itoa(rank))
}

func newSlotDoc(slot *domain.Slot) (slotDoc, error) {
	oid, err := objectID(slot.ID)
	if err != nil {
		return slotDoc{}, err
	}
	itemID, err := objectID(slot.ItemID)
	if err != nil {
		return slotDoc{}, err
	}
	return slotDoc{
		ID:        oid,
		Catalog:   string(slot.Catalog),
		Rank:      slot.Rank,
		ItemID:    itemID,
		Reason:    slot.Reason,
		UpdatedAt: slot.UpdatedAt,
	}, nil
}
