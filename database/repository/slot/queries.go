// File: database/repository/slot/queries.go
package slotRepo

import (
	"context"
	"fmt"
	"time"

	"github.com/Abraj743/opd-token-allocation-sub000/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (r *mongoSlotRepo) Find(ctx context.Context, f Filter) ([]models.Slot, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{}
	if f.DoctorID != "" {
		filter["doctorId"] = f.DoctorID
	}
	if f.Department != "" {
		filter["department"] = f.Department
	}
	if f.DateFrom != nil || f.DateTo != nil {
		dateCond := bson.M{}
		if f.DateFrom != nil {
			dateCond["$gte"] = *f.DateFrom
		}
		if f.DateTo != nil {
			dateCond["$lte"] = *f.DateTo
		}
		filter["date"] = dateCond
	}
	if f.StartTimeGE != "" {
		filter["startTime"] = bson.M{"$gte": f.StartTimeGE}
	}
	if f.OnlyAvailable {
		filter["status"] = models.SlotStatusActive
		filter["$expr"] = bson.M{"$lt": bson.A{"$currentAllocation", "$maxCapacity"}}
	}

	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "startTime", Value: 1}})
	if f.Limit > 0 {
		opts.SetLimit(f.Limit)
	}

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch slots: %w", err)
	}
	defer cursor.Close(ctx)

	var slots []models.Slot
	if err := cursor.All(ctx, &slots); err != nil {
		return nil, fmt.Errorf("error decoding slots: %w", err)
	}
	return slots, nil
}

// FindOverlapping returns the doctor's slots on the date whose [start, end)
// interval intersects the given one. Times are zero-padded HH:MM strings, so
// lexicographic comparison is chronological.
func (r *mongoSlotRepo) FindOverlapping(ctx context.Context, doctorID string, date time.Time, start, end string) ([]models.Slot, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{
		"doctorId":  doctorID,
		"date":      date,
		"startTime": bson.M{"$lt": end},
		"endTime":   bson.M{"$gt": start},
	}
	cursor, err := r.coll.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch overlapping slots: %w", err)
	}
	defer cursor.Close(ctx)

	var slots []models.Slot
	if err := cursor.All(ctx, &slots); err != nil {
		return nil, fmt.Errorf("error decoding slots: %w", err)
	}
	return slots, nil
}

func (r *mongoSlotRepo) ExistsForDate(ctx context.Context, date time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	n, err := r.coll.CountDocuments(ctx, bson.M{"date": date}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
