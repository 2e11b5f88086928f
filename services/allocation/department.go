// File: services/allocation/department.go
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
	"github.com/Abraj743/opd-token-allocation-sub000/services/priority"
	"github.com/Abraj743/opd-token-allocation-sub000/utils"

	"go.uber.org/zap"
)

// deptCandidate is one slot to attempt, tagged with the strategy that
// nominated it.
type deptCandidate struct {
	slot     models.Slot
	strategy string
}

// allocateDepartment walks forward day by day from the preferred date,
// nominating slots by strategy (preferred slot, preferred doctor,
// least-loaded doctor) and generating the day's slots from schedules when
// none exist yet. The first slot that accepts the reservation wins.
func (e *Engine) allocateDepartment(ctx context.Context, req *Request) (*Result, error) {
	doctors, err := e.Doctors.ListActiveByDepartment(ctx, req.Department)
	if err != nil {
		return nil, storeFault("department doctor lookup", err)
	}
	if len(doctors) == 0 {
		return nil, newError(CodeNoAvailability,
			fmt.Sprintf("department %s has no active doctors", req.Department)).
			withDetail("department", req.Department)
	}

	pr, err := e.Priority.Compute(ctx, req.Source, req.PatientInfo, req.WaitingMinutes)
	if err != nil {
		if errors.Is(err, priority.ErrInvalidSource) {
			return nil, newError(CodeInvalidSource, err.Error())
		}
		return nil, storeFault("priority computation", err)
	}

	startDay := e.referenceDate(req)
	for offset := 0; offset <= e.Cfg.MaxForwardDays; offset++ {
		day := startDay.AddDate(0, 0, offset)

		blocked, err := e.dayBlocked(ctx, req, day)
		if err != nil {
			return nil, err
		}
		if blocked {
			if offset == 0 {
				return nil, newError(CodeDuplicateOnDate,
					"patient already has a booking on the requested date").
					withDetail("date", utils.FormatDate(day)).
					withSuggestions("book a different date", "cancel the existing booking first")
			}
			continue
		}

		slots, generated, err := e.departmentSlotsFor(ctx, req.Department, day)
		if err != nil {
			return nil, err
		}

		for _, cand := range e.nominate(ctx, req, slots, generated, day) {
			res, err := e.tryCandidate(ctx, req, &cand, pr, offset)
			if err != nil {
				return nil, err
			}
			if res != nil {
				return res, nil
			}
		}
	}

	return nil, newError(CodeNoAvailability,
		fmt.Sprintf("no availability in department %s within the search horizon", req.Department)).
		withDetail("department", req.Department).
		withDetail("daysSearched", e.Cfg.MaxForwardDays+1).
		withSuggestions("try another department", "widen the preferred date")
}

// dayBlocked reports whether the one-booking-per-day rule forecloses the day.
func (e *Engine) dayBlocked(ctx context.Context, req *Request, day time.Time) (bool, error) {
	if req.Source == models.SourceEmergency {
		return false, nil
	}
	sameDay, err := e.Tokens.LiveByPatientOnDate(ctx, req.PatientID, day)
	if err != nil {
		return false, storeFault("duplicate check", err)
	}
	for _, t := range sameDay {
		if t.Source != models.SourceEmergency {
			return true, nil
		}
	}
	return false, nil
}

// departmentSlotsFor returns the department's open slots on the day,
// generating them from schedules first when the day has none at all.
func (e *Engine) departmentSlotsFor(ctx context.Context, department string, day time.Time) ([]models.Slot, bool, error) {
	filter := slotRepo.Filter{
		Department:    department,
		DateFrom:      &day,
		DateTo:        &day,
		OnlyAvailable: true,
	}
	slots, err := e.Slots.Find(ctx, filter)
	if err != nil {
		return nil, false, storeFault("department slot scan", err)
	}
	if len(slots) > 0 {
		return slots, false, nil
	}

	exists, err := e.Slots.ExistsForDate(ctx, day)
	if err != nil {
		return nil, false, storeFault("department slot scan", err)
	}
	if exists {
		// Slots exist but all are full or inactive; nothing to generate.
		return nil, false, nil
	}

	if _, err := e.Lifecycle.GenerateForDate(ctx, day); err != nil {
		e.Logger.Warn("on-demand slot generation failed",
			zap.String("date", utils.FormatDate(day)), zap.Error(err))
		return nil, false, nil
	}
	slots, err = e.Slots.Find(ctx, filter)
	if err != nil {
		return nil, false, storeFault("department slot scan", err)
	}
	return slots, true, nil
}

// nominate orders the day's slots into strategy-tagged candidates: the
// preferred slot first, then the preferred doctor's slots (a follow-up's
// previous doctor counts as preferred), then everything else by doctor load.
func (e *Engine) nominate(ctx context.Context, req *Request, slots []models.Slot, generated bool, day time.Time) []deptCandidate {
	if len(slots) == 0 {
		return nil
	}

	fallback := StrategyLeastLoaded
	if generated {
		fallback = StrategyAutoGeneratedNext
	}

	preferredDoctor := req.PreferredDoctorID
	if preferredDoctor == "" && req.Source == models.SourceFollowup && req.PatientInfo != nil {
		preferredDoctor = req.PatientInfo.LastVisitedDoctor
	}

	var out []deptCandidate
	taken := make(map[string]bool, len(slots))
	add := func(s models.Slot, strategy string) {
		if taken[s.SlotID] {
			return
		}
		taken[s.SlotID] = true
		out = append(out, deptCandidate{slot: s, strategy: strategy})
	}

	for _, s := range slots {
		if req.PreferredSlotID != "" && s.SlotID == req.PreferredSlotID {
			add(s, StrategyPreferredSlot)
		}
	}
	for _, s := range slots {
		if preferredDoctor != "" && s.DoctorID == preferredDoctor {
			add(s, StrategyPreferredDoctor)
		}
	}

	// Remaining slots ordered by doctor load (fewest seats taken across the
	// day first), then by start time.
	loads := e.doctorLoads(ctx, req.Department, day)
	rest := make([]models.Slot, 0, len(slots))
	for _, s := range slots {
		if !taken[s.SlotID] {
			rest = append(rest, s)
		}
	}
	sort.SliceStable(rest, func(i, j int) bool {
		li, lj := loads[rest[i].DoctorID], loads[rest[j].DoctorID]
		if li != lj {
			return li < lj
		}
		return rest[i].StartTime < rest[j].StartTime
	})
	for _, s := range rest {
		add(s, fallback)
	}
	return out
}

// doctorLoads computes each doctor's day-wide seat utilization over ALL of
// the department's active slots on the date, full ones included. Ranking on
// the available slots alone would make a doctor with one packed slot look
// idle. A failed scan degrades to zero loads (candidates fall back to start
// time order).
func (e *Engine) doctorLoads(ctx context.Context, department string, day time.Time) map[string]float64 {
	all, err := e.Slots.Find(ctx, slotRepo.Filter{
		Department: department,
		DateFrom:   &day,
		DateTo:     &day,
	})
	if err != nil {
		e.Logger.Warn("doctor load scan failed",
			zap.String("department", department), zap.Error(err))
		return nil
	}

	seats := make(map[string]int)
	used := make(map[string]int)
	for _, s := range all {
		if s.Status != models.SlotStatusActive {
			continue
		}
		seats[s.DoctorID] += s.MaxCapacity
		used[s.DoctorID] += s.CurrentAllocation
	}
	loads := make(map[string]float64, len(seats))
	for doc, total := range seats {
		if total > 0 {
			loads[doc] = float64(used[doc]) / float64(total)
		}
	}
	return loads
}

// tryCandidate attempts one nominated slot. A nil result with nil error means
// the candidate was skipped (raced to full, or a per-slot duplicate) and the
// walk should continue.
func (e *Engine) tryCandidate(ctx context.Context, req *Request, cand *deptCandidate, pr *priority.Result, offset int) (*Result, error) {
	if err := e.checkDuplicates(ctx, req, cand.slot.SlotID, cand.slot.DoctorID, cand.slot.Date); err != nil {
		if IsCode(err, CodeDuplicateInSlot) || IsCode(err, CodeDuplicateWithDoctor) {
			return nil, nil
		}
		return nil, err
	}

	token, err := e.allocateInSlot(ctx, req, &cand.slot, pr)
	if err != nil {
		if errors.Is(err, capacity.ErrSlotAtCapacity) {
			return nil, nil
		}
		return nil, err
	}

	return &Result{
		Token:    token,
		Method:   MethodDepartmentSmart,
		Priority: pr,
		DepartmentInfo: &DepartmentInfo{
			Department:   req.Department,
			Strategy:     cand.strategy,
			DoctorID:     cand.slot.DoctorID,
			Date:         utils.FormatDate(cand.slot.Date),
			DaysSearched: offset + 1,
		},
	}, nil
}
