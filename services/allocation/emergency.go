// File: services/allocation/emergency.go
package allocation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	slotRepo "github.com/Abraj743/opd-token-allocation-sub000/database/repository/slot"
	"github.com/Abraj743/opd-token-allocation-sub000/models"
	"github.com/Abraj743/opd-token-allocation-sub000/services/capacity"
	"github.com/Abraj743/opd-token-allocation-sub000/services/events"
	"github.com/Abraj743/opd-token-allocation-sub000/services/priority"
	"github.com/Abraj743/opd-token-allocation-sub000/utils"

	"go.uber.org/zap"
)

// AllocateEmergency places an emergency patient today, escalating through
// three passes over the candidate slots: spare capacity, preemption of a
// low-priority incumbent, and finally a capacity override on the earliest
// slot. It fails only when no active slot exists at all.
func (e *Engine) AllocateEmergency(ctx context.Context, req *Request) (*Result, error) {
	req.Source = models.SourceEmergency
	if err := e.validate(req); err != nil {
		return nil, err
	}
	info, err := e.resolvePatientInfo(ctx, req)
	if err != nil {
		return nil, err
	}
	req.PatientInfo = info

	candidates, err := e.emergencyCandidates(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, newError(CodeNoAvailability,
			"no active slots available for emergency placement today").
			withDetail("department", req.Department)
	}

	pr, err := e.Priority.Compute(ctx, models.SourceEmergency, req.PatientInfo, req.WaitingMinutes)
	if err != nil {
		if errors.Is(err, priority.ErrInvalidSource) {
			return nil, newError(CodeInvalidSource, err.Error())
		}
		return nil, storeFault("priority computation", err)
	}

	// Pass 1: spare capacity anywhere.
	for i := range candidates {
		slot := &candidates[i]
		if !slot.HasCapacity() {
			continue
		}
		skip, err := e.emergencyDupSkip(ctx, req, slot)
		if err != nil {
			return nil, err
		}
		if skip {
			continue
		}
		token, err := e.allocateInSlot(ctx, req, slot, pr)
		if err != nil {
			if errors.Is(err, capacity.ErrSlotAtCapacity) {
				continue
			}
			return nil, err
		}
		return &Result{Token: token, Method: MethodDirect, Priority: pr}, nil
	}

	// Pass 2: displace a low-priority incumbent.
	for i := range candidates {
		slot := &candidates[i]
		skip, err := e.emergencyDupSkip(ctx, req, slot)
		if err != nil {
			return nil, err
		}
		if skip {
			continue
		}
		res, err := e.allocateByPreemption(ctx, req, slot, pr)
		if err != nil {
			return nil, err
		}
		if res != nil {
			return res, nil
		}
	}

	// Pass 3: capacity override on the earliest workable slot.
	for i := range candidates {
		slot := &candidates[i]
		skip, err := e.emergencyDupSkip(ctx, req, slot)
		if err != nil {
			return nil, err
		}
		if skip {
			continue
		}
		return e.allocateWithOverride(ctx, req, slot, pr)
	}

	return nil, newError(CodeNoAvailability,
		"emergency placement exhausted every candidate slot").
		withDetail("department", req.Department)
}

// emergencyCandidates collects today's active slots for the request: the
// named slot alone when targeted, otherwise the department's slots ordered
// preferred slot, preferred doctor, then earliest start. Slots are generated
// from schedules when the day has none.
func (e *Engine) emergencyCandidates(ctx context.Context, req *Request) ([]models.Slot, error) {
	if req.Targeted() {
		slot, err := e.loadActiveSlot(ctx, req.SlotID)
		if err != nil {
			return nil, err
		}
		return []models.Slot{*slot}, nil
	}

	day := utils.UTCMidnight(time.Now())
	filter := slotRepo.Filter{Department: req.Department, DateFrom: &day, DateTo: &day}

	slots, err := e.Slots.Find(ctx, filter)
	if err != nil {
		return nil, storeFault("emergency slot scan", err)
	}
	if len(slots) == 0 {
		if _, gerr := e.Lifecycle.GenerateForDate(ctx, day); gerr != nil {
			e.Logger.Warn("on-demand slot generation failed",
				zap.String("date", utils.FormatDate(day)), zap.Error(gerr))
		}
		slots, err = e.Slots.Find(ctx, filter)
		if err != nil {
			return nil, storeFault("emergency slot scan", err)
		}
	}

	active := slots[:0]
	for _, s := range slots {
		if s.Status == models.SlotStatusActive {
			active = append(active, s)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return emergencyRank(&active[i], req) < emergencyRank(&active[j], req)
	})
	return active, nil
}

// emergencyRank orders candidates: the preferred slot first, the preferred
// doctor's slots next, then everything else. Find already sorts by start time
// within each band.
func emergencyRank(s *models.Slot, req *Request) int {
	if req.PreferredSlotID != "" && s.SlotID == req.PreferredSlotID {
		return 0
	}
	if req.PreferredDoctorID != "" && s.DoctorID == req.PreferredDoctorID {
		return 1
	}
	return 2
}

// emergencyDupSkip reports whether per-slot duplicate rules exclude this
// candidate. The one-booking-per-day rule does not apply to emergencies.
func (e *Engine) emergencyDupSkip(ctx context.Context, req *Request, slot *models.Slot) (bool, error) {
	err := e.checkDuplicates(ctx, req, slot.SlotID, slot.DoctorID, slot.Date)
	if err == nil {
		return false, nil
	}
	if IsCode(err, CodeDuplicateInSlot) || IsCode(err, CodeDuplicateWithDoctor) {
		return true, nil
	}
	return false, err
}

// allocateWithOverride admits the emergency beyond maxCapacity. The override
// is recorded on the token and surfaced as a HIGH severity event for staffing
// review.
func (e *Engine) allocateWithOverride(ctx context.Context, req *Request, slot *models.Slot, pr *priority.Result) (*Result, error) {
	over, err := e.Guard.ForceReserve(ctx, slot.SlotID)
	if err != nil {
		return nil, storeFault("capacity override reservation", err)
	}

	number, err := e.Guard.NextTokenNumber(ctx, slot.SlotID)
	if err != nil {
		e.compensateRelease(ctx, slot.SlotID)
		return nil, storeFault("token number issuance", err)
	}

	token := e.newToken(req, slot, pr, number, models.TokenMetadata{
		CapacityOverride:        true,
		WaitingMinutes:          req.WaitingMinutes,
		EstimatedServiceMinutes: slot.Metadata.AvgConsultMinutes,
	})
	if err := e.insertToken(ctx, token); err != nil {
		e.compensateRelease(ctx, slot.SlotID)
		return nil, storeFault("token write", err)
	}

	e.emitTokenEvent(ctx, events.TypeTokenAllocated, token, events.SeverityMedium, nil)
	e.emitTokenEvent(ctx, events.TypeSlotCapacityOverride, token, events.SeverityHigh, map[string]string{
		"maxCapacity":       fmt.Sprintf("%d", slot.MaxCapacity),
		"currentAllocation": fmt.Sprintf("%d", over),
	})

	return &Result{Token: token, Method: MethodCapacityOverride, Priority: pr}, nil
}
