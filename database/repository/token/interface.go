// File: database/repository/token/interface.go
package tokenRepo

import (
	"context"
	"errors"
	"time"

	"github.com/Abraj743/opd-token-allocation-sub000/database"
	"github.com/Abraj743/opd-token-allocation-sub000/models"

	"go.mongodb.org/mongo-driver/mongo"
)

var (
	// ErrNotFound is returned when no token matches the given id.
	ErrNotFound = errors.New("token not found")
	// ErrDuplicateTokenID is returned on a tokenId uniqueness collision;
	// callers retry with a freshly minted id.
	ErrDuplicateTokenID = errors.New("token id already exists")
	// ErrStatusConflict is returned when a conditional status transition
	// loses because the token is no longer in the expected prior status.
	ErrStatusConflict = errors.New("token status conflict")
)

// TokenRepository is the token-collection contract. All status changes go
// through UpdateStatusIf, a conditional update keyed on the expected prior
// statuses, so concurrent transitions on the same token serialize at the store.
type TokenRepository interface {
	Insert(ctx context.Context, token *models.Token) error
	GetByTokenID(ctx context.Context, tokenID string) (*models.Token, error)

	// UpdateStatusIf transitions tokenID from one of the given statuses to the
	// target status, optionally recording a cancel reason. It returns the
	// updated token, or ErrStatusConflict when the precondition fails.
	UpdateStatusIf(ctx context.Context, tokenID string, from []models.TokenStatus, to models.TokenStatus, reason string) (*models.Token, error)

	// MoveToSlot rehouses a token into a new slot with a new token number,
	// recording the original slot, and restores the allocated status. The
	// token must currently be in pending_reallocation.
	MoveToSlot(ctx context.Context, tokenID, newSlotID string, newTokenNumber int) (*models.Token, error)

	LiveBySlot(ctx context.Context, slotID string) ([]models.Token, error)
	AllBySlot(ctx context.Context, slotID string) ([]models.Token, error)
	LiveByPatientAndSlot(ctx context.Context, patientID, slotID string) (*models.Token, error)
	LiveByPatientDoctorDate(ctx context.Context, patientID, doctorID string, day time.Time) (*models.Token, error)
	LiveByPatientOnDate(ctx context.Context, patientID string, day time.Time) ([]models.Token, error)
	CountLiveByDoctorDate(ctx context.Context, doctorID string, day time.Time) (int, error)
	StalePendingReallocation(ctx context.Context, olderThan time.Time) ([]models.Token, error)
}

type mongoTokenRepo struct {
	coll *mongo.Collection
}

// NewMongoTokenRepo constructs a new MongoDB TokenRepository.
func NewMongoTokenRepo() TokenRepository {
	return &mongoTokenRepo{
		coll: database.DB().Collection("tokens"),
	}
}
