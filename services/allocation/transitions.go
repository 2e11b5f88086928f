// File: services/allocation/transitions.go
package allocation

import (
	"context"
	"errors"
	"fmt"

	tokenRepo "github.com/Abraj743/opd-token-allocation-sub000/database/repository/token"
	"github.com/Abraj743/opd-token-allocation-sub000/models"
	"github.com/Abraj743/opd-token-allocation-sub000/services/capacity"
	"github.com/Abraj743/opd-token-allocation-sub000/services/events"

	"go.uber.org/zap"
)

// Confirm moves an allocated token to confirmed (patient checked in).
func (e *Engine) Confirm(ctx context.Context, tokenID string) (*models.Token, error) {
	return e.transition(ctx, tokenID,
		[]models.TokenStatus{models.TokenStatusAllocated},
		models.TokenStatusConfirmed, "", "", events.SeverityLow)
}

// Complete marks a confirmed token served and frees its seat.
func (e *Engine) Complete(ctx context.Context, tokenID string) (*models.Token, error) {
	token, err := e.transition(ctx, tokenID,
		[]models.TokenStatus{models.TokenStatusConfirmed},
		models.TokenStatusCompleted, "", "", events.SeverityLow)
	if err != nil {
		return nil, err
	}
	e.releaseSeat(ctx, token.SlotID)
	return token, nil
}

// Cancel cancels an allocated or confirmed token, freeing its seat. The token
// number stays burned and is never reissued.
func (e *Engine) Cancel(ctx context.Context, tokenID, reason string) (*models.Token, error) {
	token, err := e.transition(ctx, tokenID,
		[]models.TokenStatus{models.TokenStatusAllocated, models.TokenStatusConfirmed},
		models.TokenStatusCancelled, reason, events.TypeTokenCancelled, events.SeverityMedium)
	if err != nil {
		return nil, err
	}
	e.releaseSeat(ctx, token.SlotID)
	return token, nil
}

// NoShow marks a confirmed token as a no-show and frees its seat.
func (e *Engine) NoShow(ctx context.Context, tokenID string) (*models.Token, error) {
	token, err := e.transition(ctx, tokenID,
		[]models.TokenStatus{models.TokenStatusConfirmed},
		models.TokenStatusNoShow, "", events.TypeTokenNoShow, events.SeverityMedium)
	if err != nil {
		return nil, err
	}
	e.releaseSeat(ctx, token.SlotID)
	return token, nil
}

// transition runs one conditional status change and emits the event type when
// given. A precondition miss surfaces as a validation error naming the
// token's actual status.
func (e *Engine) transition(ctx context.Context, tokenID string, from []models.TokenStatus, to models.TokenStatus, reason, eventType string, sev events.Severity) (*models.Token, error) {
	token, err := e.Tokens.UpdateStatusIf(ctx, tokenID, from, to, reason)
	if err != nil {
		switch {
		case errors.Is(err, tokenRepo.ErrNotFound):
			return nil, newError(CodeValidation, fmt.Sprintf("token %s does not exist", tokenID)).
				withDetail("tokenId", tokenID)
		case errors.Is(err, tokenRepo.ErrStatusConflict):
			return nil, e.statusConflict(ctx, tokenID, to)
		default:
			return nil, storeFault("status transition", err)
		}
	}

	if eventType != "" {
		meta := map[string]string(nil)
		if reason != "" {
			meta = map[string]string{"reason": reason}
		}
		e.emitTokenEvent(ctx, eventType, token, sev, meta)
	}
	return token, nil
}

// statusConflict builds the rejection for a transition that lost its
// precondition, reporting where the token actually is.
func (e *Engine) statusConflict(ctx context.Context, tokenID string, to models.TokenStatus) error {
	ae := newError(CodeValidation,
		fmt.Sprintf("token %s cannot move to %s from its current status", tokenID, to)).
		withDetail("tokenId", tokenID)
	if cur, err := e.Tokens.GetByTokenID(ctx, tokenID); err == nil && cur != nil {
		ae.withDetail("currentStatus", string(cur.Status))
	}
	return ae
}

// releaseSeat frees one seat after a terminal transition. A counter already
// at zero is tolerated: the slot may have been refreshed concurrently.
func (e *Engine) releaseSeat(ctx context.Context, slotID string) {
	if _, err := e.Guard.Release(ctx, slotID); err != nil {
		if errors.Is(err, capacity.ErrNothingToRelease) {
			e.Logger.Warn("release found counter at zero", zap.String("slotId", slotID))
			return
		}
		e.Logger.Error("seat release failed", zap.String("slotId", slotID), zap.Error(err))
	}
}
