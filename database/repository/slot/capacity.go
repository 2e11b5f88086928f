// File: database/repository/slot/capacity.go
package slotRepo

import (
	"context"
	"time"

	"github.com/Abraj743/opd-token-allocation-sub000/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// findOneAndBump runs a conditional increment and returns the updated slot.
// A nil return with nil error means the predicate did not match.
func (r *mongoSlotRepo) findOneAndBump(ctx context.Context, filter bson.M, update bson.M) (*models.Slot, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.Slot
	err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &updated, nil
}

func (r *mongoSlotRepo) ReserveSeat(ctx context.Context, slotID string) (int, error) {
	filter := bson.M{
		"slotId": slotID,
		"$expr":  bson.M{"$lt": bson.A{"$currentAllocation", "$maxCapacity"}},
	}
	update := bson.M{
		"$inc": bson.M{"currentAllocation": 1},
		"$set": bson.M{"updatedAt": time.Now().UTC()},
	}
	updated, err := r.findOneAndBump(ctx, filter, update)
	if err != nil {
		return 0, err
	}
	if updated == nil {
		// Distinguish a missing slot from a full one.
		if _, gerr := r.GetBySlotID(ctx, slotID); gerr != nil {
			return 0, gerr
		}
		return 0, ErrAtCapacity
	}
	return updated.CurrentAllocation, nil
}

func (r *mongoSlotRepo) ForceReserveSeat(ctx context.Context, slotID string) (int, error) {
	filter := bson.M{"slotId": slotID}
	update := bson.M{
		"$inc": bson.M{"currentAllocation": 1},
		"$set": bson.M{"updatedAt": time.Now().UTC()},
	}
	updated, err := r.findOneAndBump(ctx, filter, update)
	if err != nil {
		return 0, err
	}
	if updated == nil {
		return 0, ErrNotFound
	}
	return updated.CurrentAllocation, nil
}

func (r *mongoSlotRepo) ReleaseSeat(ctx context.Context, slotID string) (int, error) {
	filter := bson.M{
		"slotId":            slotID,
		"currentAllocation": bson.M{"$gt": 0},
	}
	update := bson.M{
		"$inc": bson.M{"currentAllocation": -1},
		"$set": bson.M{"updatedAt": time.Now().UTC()},
	}
	updated, err := r.findOneAndBump(ctx, filter, update)
	if err != nil {
		return 0, err
	}
	if updated == nil {
		if _, gerr := r.GetBySlotID(ctx, slotID); gerr != nil {
			return 0, gerr
		}
		return 0, ErrNothingToRelease
	}
	return updated.CurrentAllocation, nil
}

func (r *mongoSlotRepo) NextTokenNumber(ctx context.Context, slotID string) (int, error) {
	filter := bson.M{"slotId": slotID}
	update := bson.M{
		"$inc": bson.M{"lastTokenNumber": 1},
		"$set": bson.M{"updatedAt": time.Now().UTC()},
	}
	updated, err := r.findOneAndBump(ctx, filter, update)
	if err != nil {
		return 0, err
	}
	if updated == nil {
		return 0, ErrNotFound
	}
	return updated.LastTokenNumber, nil
}
