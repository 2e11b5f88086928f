// Package events defines the structured event stream the engine emits.
// Emission is best-effort: sink failures are logged and never block an
// allocation in flight.
package events

import (
	"context"
	"time"
)

// Severity grades an event for downstream routing.
type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// Event types emitted by the engine.
const (
	TypeTokenAllocated       = "token.allocated"
	TypeTokenPreempted       = "token.preempted"
	TypeTokenReallocated     = "token.reallocated"
	TypeTokenCancelled       = "token.cancelled"
	TypeTokenNoShow          = "token.noshow"
	TypeSlotCapacityOverride = "slot.capacity_override"
)

// Event is one structured occurrence.
type Event struct {
	Type          string            `json:"type"`
	TokenID       string            `json:"tokenId"`
	CorrelationID string            `json:"correlationId"`
	Severity      Severity          `json:"severity"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	OccurredAt    time.Time         `json:"occurredAt"`
}

// Sink receives engine events. The host supplies the implementation.
type Sink interface {
	Emit(ctx context.Context, ev Event)
}
