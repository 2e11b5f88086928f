package models

import "time"

// TokenSource is how the booking arrived; it seeds the base priority.
type TokenSource string

const (
	SourceOnline    TokenSource = "online"
	SourceWalkin    TokenSource = "walkin"
	SourcePriority  TokenSource = "priority"
	SourceFollowup  TokenSource = "followup"
	SourceEmergency TokenSource = "emergency"
)

// Valid reports whether the source is one of the known booking channels.
func (s TokenSource) Valid() bool {
	switch s {
	case SourceOnline, SourceWalkin, SourcePriority, SourceFollowup, SourceEmergency:
		return true
	}
	return false
}

// TokenStatus is the lifecycle state of a token.
type TokenStatus string

const (
	TokenStatusAllocated           TokenStatus = "allocated"
	TokenStatusConfirmed           TokenStatus = "confirmed"
	TokenStatusCompleted           TokenStatus = "completed"
	TokenStatusCancelled           TokenStatus = "cancelled"
	TokenStatusNoShow              TokenStatus = "noshow"
	TokenStatusPendingReallocation TokenStatus = "pending_reallocation"
)

// Live reports whether the token still holds a seat in its slot.
func (s TokenStatus) Live() bool {
	return s == TokenStatusAllocated || s == TokenStatusConfirmed
}

// LiveTokenStatuses is the set of statuses that count against slot capacity.
var LiveTokenStatuses = []TokenStatus{TokenStatusAllocated, TokenStatusConfirmed}

// TokenMetadata is the closed set of auxiliary facts a token can carry.
type TokenMetadata struct {
	OriginalSlotID          string   `bson:"originalSlotId,omitempty" json:"originalSlotId,omitempty"`
	PreemptedTokenIDs       []string `bson:"preemptedTokenIds,omitempty" json:"preemptedTokenIds,omitempty"`
	CapacityOverride        bool     `bson:"capacityOverride,omitempty" json:"capacityOverride,omitempty"`
	CancelReason            string   `bson:"cancelReason,omitempty" json:"cancelReason,omitempty"`
	WaitingMinutes          int      `bson:"waitingMinutes,omitempty" json:"waitingMinutes,omitempty"`
	EstimatedServiceMinutes int      `bson:"estimatedServiceMinutes,omitempty" json:"estimatedServiceMinutes,omitempty"`
}

// Token is a patient's reservation of one seat in a slot. TokenNumber is
// unique within the slot and never reused, even after cancellation.
type Token struct {
	TokenID     string        `bson:"tokenId" json:"tokenId"`
	PatientID   string        `bson:"patientId" json:"patientId"`
	DoctorID    string        `bson:"doctorId" json:"doctorId"`
	SlotID      string        `bson:"slotId" json:"slotId"`
	Department  string        `bson:"department" json:"department"`
	Date        time.Time     `bson:"date" json:"date"` // slot date, UTC midnight (denormalized for day queries)
	TokenNumber int           `bson:"tokenNumber" json:"tokenNumber"`
	Source      TokenSource   `bson:"source" json:"source"`
	Priority    int           `bson:"priority" json:"priority"`
	Status      TokenStatus   `bson:"status" json:"status"`
	Metadata    TokenMetadata `bson:"metadata" json:"metadata"`
	CreatedAt   time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time     `bson:"updatedAt" json:"updatedAt"`
}
