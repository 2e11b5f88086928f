// File: database/repository/slot/indexes.go
package slotRepo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureSlotIndexes creates the indexes the slot queries rely on.
func EnsureSlotIndexes(ctx context.Context, coll *mongo.Collection) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "slotId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "doctorId", Value: 1}, {Key: "date", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "department", Value: 1}, {Key: "date", Value: 1}, {Key: "startTime", Value: 1}},
		},
	}
	_, err := coll.Indexes().CreateMany(ctx, indexes)
	return err
}
