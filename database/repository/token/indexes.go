// File: database/repository/token/indexes.go
package tokenRepo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureTokenIndexes creates the indexes the token queries rely on. The
// (slotId, tokenNumber) index backs the per-slot number uniqueness invariant.
func EnsureTokenIndexes(ctx context.Context, coll *mongo.Collection) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "tokenId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "slotId", Value: 1}, {Key: "tokenNumber", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "patientId", Value: 1}, {Key: "date", Value: 1}, {Key: "status", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}, {Key: "updatedAt", Value: 1}},
		},
	}
	_, err := coll.Indexes().CreateMany(ctx, indexes)
	return err
}
