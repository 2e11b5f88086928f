// File: services/allocation/alternatives.go
package allocation

import (
	"context"
	"time"

	slotRepo "github.com/Abraj743/opd-token-allocation-sub000/database/repository/slot"
	tokenRepo "github.com/Abraj743/opd-token-allocation-sub000/database/repository/token"
	"github.com/Abraj743/opd-token-allocation-sub000/models"
	"github.com/Abraj743/opd-token-allocation-sub000/utils"

	"go.uber.org/zap"
)

const (
	maxSameDoctorAlternatives = 3
	maxSameDeptAlternatives   = 3
	maxNextAvailable          = 5

	sameDoctorLookaheadDays    = 7
	nextAvailableLookaheadDays = 3
)

// AlternativeFinder assembles substitute slots when a requested slot cannot
// take the patient. Lookups are best-effort: a failing branch is logged and
// skipped rather than failing the whole search.
type AlternativeFinder struct {
	Slots  slotRepo.SlotRepository
	Tokens tokenRepo.TokenRepository
	Logger *zap.Logger
}

func NewAlternativeFinder(slots slotRepo.SlotRepository, tokens tokenRepo.TokenRepository, logger *zap.Logger) *AlternativeFinder {
	return &AlternativeFinder{Slots: slots, Tokens: tokens, Logger: logger}
}

// FindRequest scopes an alternatives search to the slot that was refused.
type FindRequest struct {
	DoctorID   string
	Department string
	Date       time.Time
	Emergency  bool
}

// Find collects same-doctor future slots, same-day slots with other doctors
// in the department, and a short next-available list, then picks a
// recommended action ordered by urgency.
func (f *AlternativeFinder) Find(ctx context.Context, req FindRequest) (*Alternatives, error) {
	day := utils.UTCMidnight(req.Date)

	out := &Alternatives{
		SameDoctorFutureSlots:      f.sameDoctorFuture(ctx, req.DoctorID, day),
		SameDepartmentOtherDoctors: f.sameDepartmentToday(ctx, req.Department, req.DoctorID, day),
	}
	out.NextAvailableSlots = f.nextAvailable(ctx, req.Department, day)
	out.RecommendedAction = recommendAction(out, req.Emergency)
	return out, nil
}

// sameDoctorFuture returns the doctor's earliest available slots over the
// following week, excluding the refused day itself.
func (f *AlternativeFinder) sameDoctorFuture(ctx context.Context, doctorID string, day time.Time) []SlotAlternative {
	if doctorID == "" {
		return nil
	}
	from := day.AddDate(0, 0, 1)
	to := day.AddDate(0, 0, sameDoctorLookaheadDays)
	slots, err := f.Slots.Find(ctx, slotRepo.Filter{
		DoctorID:      doctorID,
		DateFrom:      &from,
		DateTo:        &to,
		OnlyAvailable: true,
		Limit:         maxSameDoctorAlternatives,
	})
	if err != nil {
		f.Logger.Warn("same-doctor alternatives lookup failed",
			zap.String("doctorId", doctorID), zap.Error(err))
		return nil
	}
	return f.withWorkloads(ctx, slots)
}

// sameDepartmentToday returns same-day availability with the department's
// other doctors.
func (f *AlternativeFinder) sameDepartmentToday(ctx context.Context, department, excludeDoctorID string, day time.Time) []SlotAlternative {
	if department == "" {
		return nil
	}
	slots, err := f.Slots.Find(ctx, slotRepo.Filter{
		Department:    department,
		DateFrom:      &day,
		DateTo:        &day,
		OnlyAvailable: true,
	})
	if err != nil {
		f.Logger.Warn("same-department alternatives lookup failed",
			zap.String("department", department), zap.Error(err))
		return nil
	}
	out := make([]SlotAlternative, 0, maxSameDeptAlternatives)
	for _, s := range slots {
		if s.DoctorID == excludeDoctorID {
			continue
		}
		out = append(out, SlotAlternative{Slot: s, Workload: f.workloadFor(ctx, s.DoctorID, s.Date)})
		if len(out) == maxSameDeptAlternatives {
			break
		}
	}
	return out
}

// nextAvailable returns the earliest open slots over the next few days,
// department-scoped when a department is known.
func (f *AlternativeFinder) nextAvailable(ctx context.Context, department string, day time.Time) []SlotAlternative {
	to := day.AddDate(0, 0, nextAvailableLookaheadDays)
	slots, err := f.Slots.Find(ctx, slotRepo.Filter{
		Department:    department,
		DateFrom:      &day,
		DateTo:        &to,
		OnlyAvailable: true,
		Limit:         maxNextAvailable,
	})
	if err != nil {
		f.Logger.Warn("next-available lookup failed", zap.Error(err))
		return nil
	}
	return f.withWorkloads(ctx, slots)
}

func (f *AlternativeFinder) withWorkloads(ctx context.Context, slots []models.Slot) []SlotAlternative {
	out := make([]SlotAlternative, 0, len(slots))
	for _, s := range slots {
		out = append(out, SlotAlternative{Slot: s, Workload: f.workloadFor(ctx, s.DoctorID, s.Date)})
	}
	return out
}

// workloadFor summarizes a doctor's load on a date: live token count, open
// slot count, and utilization against total seat capacity. Failures degrade
// to a zero workload.
func (f *AlternativeFinder) workloadFor(ctx context.Context, doctorID string, date time.Time) models.DoctorWorkload {
	day := utils.UTCMidnight(date)
	var wl models.DoctorWorkload

	live, err := f.Tokens.CountLiveByDoctorDate(ctx, doctorID, day)
	if err != nil {
		f.Logger.Warn("workload token count failed", zap.String("doctorId", doctorID), zap.Error(err))
		return wl
	}
	wl.CurrentPatients = int(live)

	slots, err := f.Slots.Find(ctx, slotRepo.Filter{
		DoctorID: doctorID,
		DateFrom: &day,
		DateTo:   &day,
	})
	if err != nil {
		f.Logger.Warn("workload slot scan failed", zap.String("doctorId", doctorID), zap.Error(err))
		return wl
	}

	totalSeats := 0
	for _, s := range slots {
		if s.Status == models.SlotStatusActive {
			totalSeats += s.MaxCapacity
			if s.HasCapacity() {
				wl.AvailableSlots++
			}
		}
	}
	if totalSeats > 0 {
		wl.UtilizationRate = float64(wl.CurrentPatients) / float64(totalSeats)
	}
	return wl
}

// recommendAction picks the action clients should try first. Emergencies are
// steered to anything bookable today before future options.
func recommendAction(a *Alternatives, emergency bool) string {
	if a.Empty() {
		return ""
	}
	if len(a.SameDepartmentOtherDoctors) > 0 {
		return "same_department_today"
	}
	if len(a.SameDoctorFutureSlots) > 0 {
		return "same_doctor_future"
	}
	if emergency {
		return "next_available"
	}
	return "future_booking"
}
