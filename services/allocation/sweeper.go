// File: services/allocation/sweeper.go
package allocation

import (
	"context"
	"errors"
	"time"

	tokenRepo "github.com/Abraj743/opd-token-allocation-sub000/database/repository/token"
	"github.com/Abraj743/opd-token-allocation-sub000/models"
	"github.com/Abraj743/opd-token-allocation-sub000/services/events"

	"go.uber.org/zap"
)

// cancelReasonReallocationTimeout marks a displaced token whose rehousing
// never completed, caught by the periodic sweep.
const cancelReasonReallocationTimeout = "reallocation_timeout"

// SweepStaleReallocations cancels tokens stuck in pending_reallocation since
// before the cutoff. These are displacements whose rehousing was interrupted
// mid-move. Returns the tokens it cancelled so the caller can route them for
// review.
func (e *Engine) SweepStaleReallocations(ctx context.Context, olderThan time.Time) ([]models.Token, error) {
	stale, err := e.Tokens.StalePendingReallocation(ctx, olderThan)
	if err != nil {
		return nil, storeFault("stale reallocation scan", err)
	}

	var cancelled []models.Token
	for _, t := range stale {
		done, err := e.Tokens.UpdateStatusIf(ctx, t.TokenID,
			[]models.TokenStatus{models.TokenStatusPendingReallocation},
			models.TokenStatusCancelled, cancelReasonReallocationTimeout)
		if err != nil {
			if errors.Is(err, tokenRepo.ErrStatusConflict) {
				// Rehoused or cancelled since the scan.
				continue
			}
			e.Logger.Warn("stale reallocation cancel failed",
				zap.String("tokenId", t.TokenID), zap.Error(err))
			continue
		}
		e.emitTokenEvent(ctx, events.TypeTokenCancelled, done, events.SeverityHigh, map[string]string{
			"reason": cancelReasonReallocationTimeout,
		})
		cancelled = append(cancelled, *done)
	}
	return cancelled, nil
}
