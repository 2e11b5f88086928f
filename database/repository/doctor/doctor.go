// File: database/repository/doctor/doctor.go
package doctorRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Abraj743/opd-token-allocation-sub000/database"
	"github.com/Abraj743/opd-token-allocation-sub000/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// ErrNotFound is returned when no doctor matches the given id.
var ErrNotFound = errors.New("doctor not found")

// DoctorRepository reads the doctor fields the engine consumes.
type DoctorRepository interface {
	GetByID(ctx context.Context, doctorID string) (*models.Doctor, error)
	ListActiveByDepartment(ctx context.Context, department string) ([]models.Doctor, error)
}

type mongoDoctorRepo struct {
	coll *mongo.Collection
}

// NewMongoDoctorRepo constructs a new MongoDB DoctorRepository.
func NewMongoDoctorRepo() DoctorRepository {
	return &mongoDoctorRepo{
		coll: database.DB().Collection("doctors"),
	}
}

func (r *mongoDoctorRepo) GetByID(ctx context.Context, doctorID string) (*models.Doctor, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var doc models.Doctor
	err := r.coll.FindOne(ctx, bson.M{"doctorId": doctorID}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &doc, nil
}

func (r *mongoDoctorRepo) ListActiveByDepartment(ctx context.Context, department string) ([]models.Doctor, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cursor, err := r.coll.Find(ctx, bson.M{"department": department, "isActive": true})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch doctors: %w", err)
	}
	defer cursor.Close(ctx)

	var doctors []models.Doctor
	if err := cursor.All(ctx, &doctors); err != nil {
		return nil, fmt.Errorf("error decoding doctors: %w", err)
	}
	return doctors, nil
}
