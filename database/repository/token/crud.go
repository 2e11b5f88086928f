// File: database/repository/token/crud.go
package tokenRepo

import (
	"context"
	"time"

	"github.com/Abraj743/opd-token-allocation-sub000/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (r *mongoTokenRepo) Insert(ctx context.Context, token *models.Token) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	now := time.Now().UTC()
	if token.CreatedAt.IsZero() {
		token.CreatedAt = now
	}
	token.UpdatedAt = now

	if _, err := r.coll.InsertOne(ctx, token); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateTokenID
		}
		return err
	}
	return nil
}

func (r *mongoTokenRepo) GetByTokenID(ctx context.Context, tokenID string) (*models.Token, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var token models.Token
	err := r.coll.FindOne(ctx, bson.M{"tokenId": tokenID}).Decode(&token)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &token, nil
}

func (r *mongoTokenRepo) UpdateStatusIf(ctx context.Context, tokenID string, from []models.TokenStatus, to models.TokenStatus, reason string) (*models.Token, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{
		"tokenId": tokenID,
		"status":  bson.M{"$in": from},
	}
	set := bson.M{
		"status":    to,
		"updatedAt": time.Now().UTC(),
	}
	if reason != "" {
		set["metadata.cancelReason"] = reason
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.Token
	err := r.coll.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&updated)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			// Distinguish a missing token from a lost precondition.
			if _, gerr := r.GetByTokenID(ctx, tokenID); gerr != nil {
				return nil, gerr
			}
			return nil, ErrStatusConflict
		}
		return nil, err
	}
	return &updated, nil
}

func (r *mongoTokenRepo) MoveToSlot(ctx context.Context, tokenID, newSlotID string, newTokenNumber int) (*models.Token, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	current, err := r.GetByTokenID(ctx, tokenID)
	if err != nil {
		return nil, err
	}

	filter := bson.M{
		"tokenId": tokenID,
		"status":  models.TokenStatusPendingReallocation,
	}
	update := bson.M{"$set": bson.M{
		"slotId":                  newSlotID,
		"tokenNumber":             newTokenNumber,
		"status":                  models.TokenStatusAllocated,
		"metadata.originalSlotId": current.SlotID,
		"updatedAt":               time.Now().UTC(),
	}}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.Token
	err = r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrStatusConflict
		}
		return nil, err
	}
	return &updated, nil
}
