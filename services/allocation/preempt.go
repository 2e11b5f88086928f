// File: services/allocation/preempt.go
package allocation

import (
	"context"
	"errors"
	"fmt"

	"github.com/Abraj743/opd-token-allocation-sub000/database/repository/slot"
	"github.com/Abraj743/opd-token-allocation-sub000/models"
	"github.com/Abraj743/opd-token-allocation-sub000/services/capacity"
	"github.com/Abraj743/opd-token-allocation-sub000/services/events"
	"github.com/Abraj743/opd-token-allocation-sub000/services/priority"
	"github.com/Abraj743/opd-token-allocation-sub000/utils"

	"go.uber.org/zap"
)

// cancelReasonNoAlternatives marks a displaced token that could not be rehoused.
const cancelReasonNoAlternatives = "preempted_no_alternatives"

// allocateByPreemption tries to displace the lowest-priority eligible
// incumbent from a full slot. The incoming emergency token takes over the
// incumbent's seat and token number; the incumbent is rehoused (or cancelled)
// before the result is returned. A nil result with nil error means no
// incumbent was eligible.
func (e *Engine) allocateByPreemption(ctx context.Context, req *Request, slot *models.Slot, pr *priority.Result) (*Result, error) {
	displaced, err := e.Guard.PreemptLowest(ctx, slot.SlotID, pr.FinalPriority)
	if err != nil {
		return nil, storeFault("preemption", err)
	}
	if displaced == nil {
		return nil, nil
	}

	// The new token inherits the displaced token's number: the seat swap is
	// invisible to the slot's counters.
	token := e.newToken(req, slot, pr, displaced.TokenNumber, models.TokenMetadata{
		PreemptedTokenIDs:       []string{displaced.TokenID},
		WaitingMinutes:          req.WaitingMinutes,
		EstimatedServiceMinutes: slot.Metadata.AvgConsultMinutes,
	})
	if err := e.insertToken(ctx, token); err != nil {
		// Undo the displacement so the incumbent keeps its seat.
		if _, rerr := e.Tokens.UpdateStatusIf(ctx, displaced.TokenID,
			[]models.TokenStatus{models.TokenStatusPendingReallocation},
			models.TokenStatusAllocated, ""); rerr != nil {
			e.Logger.Error("failed to restore displaced token after write failure",
				zap.String("tokenId", displaced.TokenID), zap.Error(rerr))
		}
		return nil, newError(CodePreemptionFailed,
			fmt.Sprintf("emergency token write failed after displacement: %v", err)).
			withDetail("slotId", slot.SlotID).
			withDetail("displacedTokenId", displaced.TokenID)
	}

	e.emitTokenEvent(ctx, events.TypeTokenAllocated, token, events.SeverityMedium, nil)
	e.emitTokenEvent(ctx, events.TypeTokenPreempted, displaced, events.SeverityHigh, map[string]string{
		"preemptedBy":      token.TokenID,
		"incomingPriority": fmt.Sprintf("%d", pr.FinalPriority),
	})

	// Rehouse the incumbent before returning so the caller observes the
	// terminal outcome of the displacement.
	e.reallocateDisplaced(ctx, displaced, slot)

	return &Result{
		Token:             token,
		Method:            MethodPreemption,
		PreemptedTokenIDs: []string{displaced.TokenID},
		Priority:          pr,
	}, nil
}

// reallocateDisplaced rehouses a displaced token into a same-doctor slot
// within the configured window of its original slot, or cancels it when no
// such slot has capacity. The original seat is never released: the emergency
// token occupies it. On a mid-move failure the token stays in
// pending_reallocation for the sweeper.
func (e *Engine) reallocateDisplaced(ctx context.Context, displaced *models.Token, oldSlot *models.Slot) {
	candidates, err := e.reallocationCandidates(ctx, displaced, oldSlot)
	if err != nil {
		e.Logger.Warn("reallocation candidate search failed; token left pending",
			zap.String("tokenId", displaced.TokenID), zap.Error(err))
		return
	}

	for _, cand := range candidates {
		if _, err := e.Guard.Reserve(ctx, cand.SlotID); err != nil {
			if errors.Is(err, capacity.ErrSlotAtCapacity) {
				continue
			}
			e.Logger.Warn("reallocation reserve failed; token left pending",
				zap.String("tokenId", displaced.TokenID),
				zap.String("slotId", cand.SlotID), zap.Error(err))
			return
		}

		number, err := e.Guard.NextTokenNumber(ctx, cand.SlotID)
		if err != nil {
			e.compensateRelease(ctx, cand.SlotID)
			e.Logger.Warn("reallocation numbering failed; token left pending",
				zap.String("tokenId", displaced.TokenID), zap.Error(err))
			return
		}

		moved, err := e.Tokens.MoveToSlot(ctx, displaced.TokenID, cand.SlotID, number)
		if err != nil {
			e.compensateRelease(ctx, cand.SlotID)
			e.Logger.Warn("reallocation move failed; token left pending",
				zap.String("tokenId", displaced.TokenID), zap.Error(err))
			return
		}

		e.emitTokenEvent(ctx, events.TypeTokenReallocated, moved, events.SeverityMedium, map[string]string{
			"originalSlotId": oldSlot.SlotID,
			"newSlotId":      cand.SlotID,
		})
		return
	}

	// Nowhere to go: cancel with reason, keeping the burned token number.
	cancelled, err := e.Tokens.UpdateStatusIf(ctx, displaced.TokenID,
		[]models.TokenStatus{models.TokenStatusPendingReallocation},
		models.TokenStatusCancelled, cancelReasonNoAlternatives)
	if err != nil {
		e.Logger.Warn("cancel of unplaceable displaced token failed",
			zap.String("tokenId", displaced.TokenID), zap.Error(err))
		return
	}
	e.emitTokenEvent(ctx, events.TypeTokenCancelled, cancelled, events.SeverityHigh, map[string]string{
		"reason": cancelReasonNoAlternatives,
	})
}

// reallocationCandidates returns same-doctor, same-date slots with capacity
// whose start time lies within the reallocation window of the original slot.
func (e *Engine) reallocationCandidates(ctx context.Context, displaced *models.Token, oldSlot *models.Slot) ([]models.Slot, error) {
	date := utils.UTCMidnight(oldSlot.Date)
	slots, err := e.Slots.Find(ctx, slotRepo.Filter{
		DoctorID:      displaced.DoctorID,
		DateFrom:      &date,
		DateTo:        &date,
		OnlyAvailable: true,
	})
	if err != nil {
		return nil, err
	}

	origin := utils.MinutesFromMidnight(oldSlot.StartTime)
	window := e.Cfg.ReallocationWindowMinutes
	var out []models.Slot
	for _, s := range slots {
		if s.SlotID == oldSlot.SlotID {
			continue
		}
		start := utils.MinutesFromMidnight(s.StartTime)
		if start < 0 {
			continue
		}
		diff := start - origin
		if diff < 0 {
			diff = -diff
		}
		if diff <= window {
			out = append(out, s)
		}
	}
	return out, nil
}
