// File: database/repository/token/queries.go
package tokenRepo

import (
	"context"
	"fmt"
	"time"

	"github.com/Abraj743/opd-token-allocation-sub000/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func (r *mongoTokenRepo) findAll(ctx context.Context, filter bson.M) ([]models.Token, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cursor, err := r.coll.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tokens: %w", err)
	}
	defer cursor.Close(ctx)

	var tokens []models.Token
	if err := cursor.All(ctx, &tokens); err != nil {
		return nil, fmt.Errorf("error decoding tokens: %w", err)
	}
	return tokens, nil
}

func (r *mongoTokenRepo) findOne(ctx context.Context, filter bson.M) (*models.Token, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var token models.Token
	err := r.coll.FindOne(ctx, filter).Decode(&token)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &token, nil
}

func liveFilter() bson.M {
	return bson.M{"$in": models.LiveTokenStatuses}
}

func (r *mongoTokenRepo) LiveBySlot(ctx context.Context, slotID string) ([]models.Token, error) {
	return r.findAll(ctx, bson.M{"slotId": slotID, "status": liveFilter()})
}

func (r *mongoTokenRepo) AllBySlot(ctx context.Context, slotID string) ([]models.Token, error) {
	return r.findAll(ctx, bson.M{"slotId": slotID})
}

func (r *mongoTokenRepo) LiveByPatientAndSlot(ctx context.Context, patientID, slotID string) (*models.Token, error) {
	return r.findOne(ctx, bson.M{"patientId": patientID, "slotId": slotID, "status": liveFilter()})
}

func (r *mongoTokenRepo) LiveByPatientDoctorDate(ctx context.Context, patientID, doctorID string, day time.Time) (*models.Token, error) {
	return r.findOne(ctx, bson.M{"patientId": patientID, "doctorId": doctorID, "date": day, "status": liveFilter()})
}

func (r *mongoTokenRepo) LiveByPatientOnDate(ctx context.Context, patientID string, day time.Time) ([]models.Token, error) {
	return r.findAll(ctx, bson.M{"patientId": patientID, "date": day, "status": liveFilter()})
}

func (r *mongoTokenRepo) CountLiveByDoctorDate(ctx context.Context, doctorID string, day time.Time) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	n, err := r.coll.CountDocuments(ctx, bson.M{"doctorId": doctorID, "date": day, "status": liveFilter()})
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (r *mongoTokenRepo) StalePendingReallocation(ctx context.Context, olderThan time.Time) ([]models.Token, error) {
	return r.findAll(ctx, bson.M{
		"status":    models.TokenStatusPendingReallocation,
		"updatedAt": bson.M{"$lt": olderThan},
	})
}
