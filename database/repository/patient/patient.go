// File: database/repository/patient/patient.go
package patientRepo

import (
	"context"
	"errors"
	"time"

	"github.com/Abraj743/opd-token-allocation-sub000/database"
	"github.com/Abraj743/opd-token-allocation-sub000/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// ErrNotFound is returned when no patient matches the given id.
var ErrNotFound = errors.New("patient not found")

// PatientRepository reads the patient fields the engine consumes.
type PatientRepository interface {
	GetByID(ctx context.Context, patientID string) (*models.Patient, error)
}

type mongoPatientRepo struct {
	coll *mongo.Collection
}

// NewMongoPatientRepo constructs a new MongoDB PatientRepository.
func NewMongoPatientRepo() PatientRepository {
	return &mongoPatientRepo{
		coll: database.DB().Collection("patients"),
	}
}

func (r *mongoPatientRepo) GetByID(ctx context.Context, patientID string) (*models.Patient, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var p models.Patient
	err := r.coll.FindOne(ctx, bson.M{"patientId": patientID}).Decode(&p)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}
