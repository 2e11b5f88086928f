// File: database/repository/slot/interface.go
package slotRepo

import (
	"context"
	"errors"
	"time"

	"github.com/Abraj743/opd-token-allocation-sub000/database"
	"github.com/Abraj743/opd-token-allocation-sub000/models"

	"go.mongodb.org/mongo-driver/mongo"
)

var (
	// ErrNotFound is returned when no slot matches the given id.
	ErrNotFound = errors.New("slot not found")
	// ErrAtCapacity is returned when a seat reservation loses to the capacity bound.
	ErrAtCapacity = errors.New("slot at capacity")
	// ErrNothingToRelease is returned when a release would drive the counter below zero.
	ErrNothingToRelease = errors.New("nothing to release")
	// ErrSlotExists is returned when inserting a slot whose id is already taken.
	ErrSlotExists = errors.New("slot already exists")
)

// Filter narrows slot queries. Zero fields are ignored.
type Filter struct {
	DoctorID      string
	Department    string
	DateFrom      *time.Time
	DateTo        *time.Time
	StartTimeGE   string
	OnlyAvailable bool // active status and currentAllocation < maxCapacity
	Limit         int64
}

// SlotRepository is the slot-collection contract. The seat counter operations
// are conditional updates: the predicate travels inside the store filter so
// that the capacity invariant holds under concurrent callers.
type SlotRepository interface {
	Insert(ctx context.Context, slot *models.Slot) error
	GetBySlotID(ctx context.Context, slotID string) (*models.Slot, error)
	SetCounters(ctx context.Context, slotID string, currentAllocation, lastTokenNumber int) error
	SetStatus(ctx context.Context, slotID string, status models.SlotStatus) error

	// ReserveSeat atomically increments currentAllocation iff below maxCapacity.
	ReserveSeat(ctx context.Context, slotID string) (int, error)
	// ForceReserveSeat increments unconditionally (emergency capacity override).
	ForceReserveSeat(ctx context.Context, slotID string) (int, error)
	// ReleaseSeat atomically decrements currentAllocation iff above zero.
	ReleaseSeat(ctx context.Context, slotID string) (int, error)
	// NextTokenNumber atomically increments lastTokenNumber and returns it.
	NextTokenNumber(ctx context.Context, slotID string) (int, error)

	Find(ctx context.Context, f Filter) ([]models.Slot, error)
	FindOverlapping(ctx context.Context, doctorID string, date time.Time, start, end string) ([]models.Slot, error)
	ExistsForDate(ctx context.Context, date time.Time) (bool, error)
}

type mongoSlotRepo struct {
	coll *mongo.Collection
}

// NewMongoSlotRepo constructs a new MongoDB SlotRepository.
func NewMongoSlotRepo() SlotRepository {
	return &mongoSlotRepo{
		coll: database.DB().Collection("slots"),
	}
}
