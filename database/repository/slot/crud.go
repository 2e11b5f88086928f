// File: database/repository/slot/crud.go
package slotRepo

import (
	"context"
	"time"

	"github.com/Abraj743/opd-token-allocation-sub000/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func (r *mongoSlotRepo) Insert(ctx context.Context, slot *models.Slot) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	now := time.Now().UTC()
	if slot.CreatedAt.IsZero() {
		slot.CreatedAt = now
	}
	slot.UpdatedAt = now

	if _, err := r.coll.InsertOne(ctx, slot); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrSlotExists
		}
		return err
	}
	return nil
}

func (r *mongoSlotRepo) GetBySlotID(ctx context.Context, slotID string) (*models.Slot, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var slot models.Slot
	err := r.coll.FindOne(ctx, bson.M{"slotId": slotID}).Decode(&slot)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &slot, nil
}

func (r *mongoSlotRepo) SetCounters(ctx context.Context, slotID string, currentAllocation, lastTokenNumber int) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := r.coll.UpdateOne(ctx,
		bson.M{"slotId": slotID},
		bson.M{"$set": bson.M{
			"currentAllocation": currentAllocation,
			"lastTokenNumber":   lastTokenNumber,
			"updatedAt":         time.Now().UTC(),
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoSlotRepo) SetStatus(ctx context.Context, slotID string, status models.SlotStatus) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := r.coll.UpdateOne(ctx,
		bson.M{"slotId": slotID},
		bson.M{"$set": bson.M{
			"status":    status,
			"updatedAt": time.Now().UTC(),
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
