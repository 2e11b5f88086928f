// File: database/repository/configrepo/configrepo.go
package configRepo

import (
	"context"
	"time"

	"github.com/Abraj743/opd-token-allocation-sub000/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// ConfigRepository reads dynamic configuration values keyed by dotted names
// (e.g. "priority.online.base_score"). A missing key is not an error.
type ConfigRepository interface {
	GetInt(ctx context.Context, key string) (int, bool, error)
}

type configDoc struct {
	Key   string `bson:"key"`
	Value int    `bson:"value"`
}

type mongoConfigRepo struct {
	coll *mongo.Collection
}

// NewMongoConfigRepo constructs a new MongoDB ConfigRepository.
func NewMongoConfigRepo() ConfigRepository {
	return &mongoConfigRepo{
		coll: database.DB().Collection("configurations"),
	}
}

func (r *mongoConfigRepo) GetInt(ctx context.Context, key string) (int, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var doc configDoc
	err := r.coll.FindOne(ctx, bson.M{"key": key}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return 0, false, nil
		}
		return 0, false, err
	}
	return doc.Value, true, nil
}
