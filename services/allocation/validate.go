// File: services/allocation/validate.go
package allocation

import (
	"context"
	"fmt"
	"time"

	slotRepo "github.com/Abraj743/opd-token-allocation-sub000/database/repository/slot"
	"github.com/Abraj743/opd-token-allocation-sub000/models"
	"github.com/Abraj743/opd-token-allocation-sub000/utils"
)

// validate rejects malformed requests before any capacity work.
func (e *Engine) validate(req *Request) error {
	if req.PatientID == "" {
		return newError(CodeValidation, "patientId is required")
	}
	if !req.Source.Valid() {
		return newError(CodeInvalidSource, fmt.Sprintf("unknown source %q", req.Source)).
			withDetail("source", string(req.Source))
	}
	if !req.Targeted() && req.Department == "" {
		return newError(CodeValidation, "either slotId or department is required")
	}
	return nil
}

// referenceDate resolves the day duplicate checks apply to: the preferred
// date when given, otherwise today (UTC midnight).
func (e *Engine) referenceDate(req *Request) time.Time {
	if req.PreferredDate != nil {
		return utils.UTCMidnight(*req.PreferredDate)
	}
	return utils.UTCMidnight(time.Now())
}

// checkDuplicates enforces the same-patient rules: one live token per slot,
// one per doctor per day, and one per day overall unless either side is an
// emergency.
func (e *Engine) checkDuplicates(ctx context.Context, req *Request, slotID, doctorID string, day time.Time) error {
	if slotID != "" {
		existing, err := e.Tokens.LiveByPatientAndSlot(ctx, req.PatientID, slotID)
		if err != nil {
			return storeFault("duplicate check", err)
		}
		if existing != nil {
			return newError(CodeDuplicateInSlot,
				"patient already holds a token in this slot").
				withDetail("existingTokenId", existing.TokenID).
				withSuggestions("use the existing token", "cancel it before re-booking")
		}
	}

	if doctorID != "" {
		existing, err := e.Tokens.LiveByPatientDoctorDate(ctx, req.PatientID, doctorID, day)
		if err != nil {
			return storeFault("duplicate check", err)
		}
		if existing != nil {
			return newError(CodeDuplicateWithDoctor,
				"patient already has a token with this doctor today").
				withDetail("existingTokenId", existing.TokenID).
				withDetail("doctorId", doctorID).
				withSuggestions("use the existing token")
		}
	}

	// Emergencies bypass the one-token-per-day rule entirely.
	if req.Source == models.SourceEmergency {
		return nil
	}
	sameDay, err := e.Tokens.LiveByPatientOnDate(ctx, req.PatientID, day)
	if err != nil {
		return storeFault("duplicate check", err)
	}
	for _, t := range sameDay {
		if t.Source != models.SourceEmergency {
			return newError(CodeDuplicateOnDate,
				"patient already has a booking on this date").
				withDetail("existingTokenId", t.TokenID).
				withDetail("date", utils.FormatDate(day)).
				withSuggestions("book a different date", "cancel the existing booking first")
		}
	}
	return nil
}

// checkContinuity advises follow-ups to stay with the prior treating doctor
// when that doctor has same-day or next-day availability. Advisory: the
// caller may retry against a different doctor after seeing the suggestions.
func (e *Engine) checkContinuity(ctx context.Context, req *Request, doctorID string, day time.Time) error {
	if req.Source != models.SourceFollowup {
		return nil
	}
	last := ""
	if req.PatientInfo != nil {
		last = req.PatientInfo.LastVisitedDoctor
	}
	if last == "" || last == doctorID {
		return nil
	}

	from := utils.UTCMidnight(day)
	to := from.AddDate(0, 0, 1)
	slots, err := e.Lifecycle.FindAvailable(ctx, slotRepo.Filter{
		DoctorID: last,
		DateFrom: &from,
		DateTo:   &to,
		Limit:    3,
	})
	if err != nil {
		return storeFault("continuity lookup", err)
	}
	if len(slots) == 0 {
		return nil
	}

	suggested := make([]SlotAlternative, 0, len(slots))
	for _, s := range slots {
		suggested = append(suggested, SlotAlternative{Slot: s, Workload: e.Finder.workloadFor(ctx, s.DoctorID, s.Date)})
	}
	ae := newError(CodeDoctorContinuity,
		fmt.Sprintf("follow-up is recommended with previous doctor %s", last)).
		withDetail("lastVisitedDoctor", last).
		withSuggestions("book with the previous doctor for continuity of care")
	ae.Alternatives = &Alternatives{SameDoctorFutureSlots: suggested, RecommendedAction: "same_doctor_future"}
	return ae
}
