// Package capacity is the only writer of slot seat counters and token
// numbers. Every mutation is a conditional update at the store, so the
// capacity invariant holds under concurrent callers without a global lock.
package capacity

import (
	"context"
	"errors"
	"fmt"
	"sort"

	slotRepo "github.com/Abraj743/opd-token-allocation-sub000/database/repository/slot"
	tokenRepo "github.com/Abraj743/opd-token-allocation-sub000/database/repository/token"
	"github.com/Abraj743/opd-token-allocation-sub000/models"

	"go.uber.org/zap"
)

var (
	// ErrSlotAtCapacity is returned when a reservation loses to the capacity bound.
	ErrSlotAtCapacity = errors.New("slot at capacity")
	// ErrNothingToRelease is returned when a release finds the counter at zero.
	ErrNothingToRelease = errors.New("nothing to release")
)

// DefaultDisplacementMargin is the minimum priority gap an incoming emergency
// must have over an incumbent before the incumbent can be displaced.
const DefaultDisplacementMargin = 200

// Guard serializes seat-counter mutations per slot via conditional updates.
type Guard struct {
	Slots  slotRepo.SlotRepository
	Tokens tokenRepo.TokenRepository
	// Margin defaults to DefaultDisplacementMargin when zero.
	Margin int
	Logger *zap.Logger
}

// NewGuard builds a capacity guard over the given repositories.
func NewGuard(slots slotRepo.SlotRepository, tokens tokenRepo.TokenRepository, margin int, logger *zap.Logger) *Guard {
	if margin <= 0 {
		margin = DefaultDisplacementMargin
	}
	return &Guard{Slots: slots, Tokens: tokens, Margin: margin, Logger: logger}
}

// Reserve atomically takes one seat; fails with ErrSlotAtCapacity when full.
func (g *Guard) Reserve(ctx context.Context, slotID string) (int, error) {
	n, err := g.Slots.ReserveSeat(ctx, slotID)
	if err != nil {
		if errors.Is(err, slotRepo.ErrAtCapacity) {
			return 0, ErrSlotAtCapacity
		}
		return 0, err
	}
	return n, nil
}

// ForceReserve takes a seat beyond maxCapacity (emergency capacity override).
func (g *Guard) ForceReserve(ctx context.Context, slotID string) (int, error) {
	n, err := g.Slots.ForceReserveSeat(ctx, slotID)
	if err != nil {
		return 0, err
	}
	g.Logger.Warn("capacity override reservation",
		zap.String("slotId", slotID), zap.Int("currentAllocation", n))
	return n, nil
}

// Release atomically returns one seat; fails with ErrNothingToRelease at zero.
func (g *Guard) Release(ctx context.Context, slotID string) (int, error) {
	n, err := g.Slots.ReleaseSeat(ctx, slotID)
	if err != nil {
		if errors.Is(err, slotRepo.ErrNothingToRelease) {
			return 0, ErrNothingToRelease
		}
		return 0, err
	}
	return n, nil
}

// NextTokenNumber issues the next 1-based token number for the slot. Numbers
// are strictly increasing and never reused, even after cancellation.
func (g *Guard) NextTokenNumber(ctx context.Context, slotID string) (int, error) {
	return g.Slots.NextTokenNumber(ctx, slotID)
}

// PreemptLowest selects and displaces the eligible incumbent with the lowest
// priority: non-emergency, still in allocated status, and more than Margin
// below incomingPriority. Ties break on earliest creation. The chosen token is
// moved to pending_reallocation via a conditional update; losing that race
// re-selects from the remaining candidates. Returns nil when no incumbent is
// eligible. The freed seat is not released — the caller's emergency token
// takes it over together with the incumbent's token number.
func (g *Guard) PreemptLowest(ctx context.Context, slotID string, incomingPriority int) (*models.Token, error) {
	live, err := g.Tokens.LiveBySlot(ctx, slotID)
	if err != nil {
		return nil, fmt.Errorf("listing live tokens for %s: %w", slotID, err)
	}

	var candidates []models.Token
	for _, t := range live {
		if t.Source == models.SourceEmergency {
			continue
		}
		if t.Status != models.TokenStatusAllocated {
			continue
		}
		if incomingPriority-t.Priority <= g.Margin {
			continue
		}
		candidates = append(candidates, t)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority < candidates[j].Priority
		}
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})

	for _, cand := range candidates {
		displaced, err := g.Tokens.UpdateStatusIf(ctx, cand.TokenID,
			[]models.TokenStatus{models.TokenStatusAllocated},
			models.TokenStatusPendingReallocation, "")
		if err != nil {
			if errors.Is(err, tokenRepo.ErrStatusConflict) {
				// Lost the race for this incumbent; try the next one.
				continue
			}
			return nil, fmt.Errorf("displacing token %s: %w", cand.TokenID, err)
		}
		g.Logger.Info("preempted incumbent token",
			zap.String("slotId", slotID),
			zap.String("tokenId", displaced.TokenID),
			zap.Int("incumbentPriority", displaced.Priority),
			zap.Int("incomingPriority", incomingPriority))
		return displaced, nil
	}
	return nil, nil
}
