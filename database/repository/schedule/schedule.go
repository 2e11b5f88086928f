// File: database/repository/schedule/schedule.go
package scheduleRepo

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

// ErrNotFound is returned when no schedule matches the given doctor.
var ErrNotFound = errors.New("doctor schedule not found")

// ScheduleRepository reads weekly doctor schedules. Schedules are authored
// out-of-band; the engine never writes them.
type ScheduleRepository interface {
	GetByDoctorID(ctx context.Context, doctorID string) (*models.DoctorSchedule, error)
	// ActiveForDate returns the schedules effective on the given date.
	ActiveForDate(ctx context.Context, date time.Time) ([]models.DoctorSchedule, error)
}

type mongoScheduleRepo struct {
	coll *mongo.Collection
}

// NewMongoScheduleRepo constructs a new MongoDB ScheduleRepository.
func NewMongoScheduleRepo() ScheduleRepository {
	return &mongoScheduleRepo{
		coll: database.DB().Collection("doctor_schedules"),
	}
}

func (r *mongoScheduleRepo) GetByDoctorID(ctx context.Context, doctorID string) (*models.DoctorSchedule, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var sched models.DoctorSchedule
	err := r.coll.FindOne(ctx, bson.M{"doctorId": doctorID}).Decode(&sched)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sched, nil
}

func (r *mongoScheduleRepo) ActiveForDate(ctx context.Context, date time.Time) ([]models.DoctorSchedule, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{
		"isActive":      true,
		"effectiveFrom": bson.M{"$lte": date},
		"$or": bson.A{
			bson.M{"effectiveTo": nil},
			bson.M{"effectiveTo": bson.M{"$exists": false}},
			bson.M{"effectiveTo": bson.M{"$gte": date}},
		},
	}
	cursor, err := r.coll.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch schedules: %w", err)
	}
	defer cursor.Close(ctx)

	var schedules []models.DoctorSchedule
	if err := cursor.All(ctx, &schedules); err != nil {
		return nil, fmt.Errorf("error decoding schedules: %w", err)
	}
	return schedules, nil
}
