// Package slotlifecycle materializes weekly doctor schedules into
// date-specific slots and serves slot lookups for the allocation engine.
package slotlifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	scheduleRepo "github.com/Abraj743/opd-token-allocation-sub000/database/repository/schedule"
	slotRepo "github.com/Abraj743/opd-token-allocation-sub000/database/repository/slot"
	tokenRepo "github.com/Abraj743/opd-token-allocation-sub000/database/repository/token"
	"github.com/Abraj743/opd-token-allocation-sub000/models"
	"github.com/Abraj743/opd-token-allocation-sub000/utils"

	"go.uber.org/zap"
)

// ErrSlotNotFound mirrors the repository sentinel for callers of the engine.
var ErrSlotNotFound = slotRepo.ErrNotFound

const (
	minSlotCapacity = 1
	maxSlotCapacity = 50
)

// Config carries generation defaults sourced from configuration.
type Config struct {
	DefaultCapacity int // used when a schedule window omits maxCapacity
	ConsultMinutes  int
	BufferMinutes   int
}

// Engine generates and queries slots.
type Engine struct {
	Slots     slotRepo.SlotRepository
	Tokens    tokenRepo.TokenRepository
	Schedules scheduleRepo.ScheduleRepository
	Cfg       Config
	Logger    *zap.Logger
}

// NewEngine builds a slot lifecycle engine.
func NewEngine(slots slotRepo.SlotRepository, tokens tokenRepo.TokenRepository, schedules scheduleRepo.ScheduleRepository, cfg Config, logger *zap.Logger) *Engine {
	if cfg.DefaultCapacity <= 0 {
		cfg.DefaultCapacity = 20
	}
	return &Engine{Slots: slots, Tokens: tokens, Schedules: schedules, Cfg: cfg, Logger: logger}
}

// GenerateForDate materializes one slot per (active schedule, weekday window)
// pair effective on the date. It is idempotent: an existing slot is refreshed
// by recounting its live tokens rather than recreated.
func (e *Engine) GenerateForDate(ctx context.Context, date time.Time) ([]models.Slot, error) {
	date = utils.UTCMidnight(date)

	schedules, err := e.Schedules.ActiveForDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("loading schedules for %s: %w", utils.FormatDate(date), err)
	}

	var out []models.Slot
	for _, sched := range schedules {
		for _, win := range sched.WindowsFor(date) {
			slot, err := e.materialize(ctx, &sched, win, date)
			if err != nil {
				e.Logger.Warn("slot generation skipped window",
					zap.String("doctorId", sched.DoctorID),
					zap.String("startTime", win.StartTime),
					zap.Error(err))
				continue
			}
			out = append(out, *slot)
		}
	}

	e.Logger.Info("slot generation complete",
		zap.String("date", utils.FormatDate(date)), zap.Int("slots", len(out)))
	return out, nil
}

func (e *Engine) materialize(ctx context.Context, sched *models.DoctorSchedule, win models.ScheduleWindow, date time.Time) (*models.Slot, error) {
	if !utils.ValidHHMM(win.StartTime) || !utils.ValidHHMM(win.EndTime) {
		return nil, fmt.Errorf("invalid window times %q-%q", win.StartTime, win.EndTime)
	}
	start := normalizeHHMM(win.StartTime)
	end := normalizeHHMM(win.EndTime)
	if end <= start {
		return nil, fmt.Errorf("window end %q not after start %q", win.EndTime, win.StartTime)
	}

	capacity := win.MaxCapacity
	if capacity <= 0 {
		capacity = e.Cfg.DefaultCapacity
	}
	if capacity < minSlotCapacity {
		capacity = minSlotCapacity
	}
	if capacity > maxSlotCapacity {
		capacity = maxSlotCapacity
	}

	slotID := utils.SlotID(sched.DoctorID, date, start)

	existing, err := e.Slots.GetBySlotID(ctx, slotID)
	if err != nil && !errors.Is(err, slotRepo.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return e.refresh(ctx, existing)
	}

	meta := models.SlotMetadata{
		AvgConsultMinutes: e.Cfg.ConsultMinutes,
		BufferMinutes:     e.Cfg.BufferMinutes,
	}
	if win.SlotType == models.SlotTypeEmergencyReserved {
		meta.EmergencyReserved = capacity
	}

	slot := &models.Slot{
		SlotID:      slotID,
		DoctorID:    sched.DoctorID,
		Department:  sched.Department,
		Date:        date,
		StartTime:   start,
		EndTime:     end,
		MaxCapacity: capacity,
		Status:      models.SlotStatusActive,
		Metadata:    meta,
	}
	if err := e.Slots.Insert(ctx, slot); err != nil {
		if errors.Is(err, slotRepo.ErrSlotExists) {
			// Concurrent generation won the insert; fall through to refresh.
			existing, gerr := e.Slots.GetBySlotID(ctx, slotID)
			if gerr != nil {
				return nil, gerr
			}
			return e.refresh(ctx, existing)
		}
		return nil, err
	}
	return slot, nil
}

// refresh recomputes a slot's counters from its tokens: the allocation from
// live tokens, the last token number from the highest number ever issued in
// the slot (cancelled numbers stay burned).
func (e *Engine) refresh(ctx context.Context, slot *models.Slot) (*models.Slot, error) {
	tokens, err := e.Tokens.AllBySlot(ctx, slot.SlotID)
	if err != nil {
		return nil, fmt.Errorf("recounting tokens for %s: %w", slot.SlotID, err)
	}

	live := 0
	maxNumber := 0
	for _, t := range tokens {
		if t.Status.Live() {
			live++
		}
		if t.TokenNumber > maxNumber {
			maxNumber = t.TokenNumber
		}
	}
	if maxNumber < slot.LastTokenNumber {
		maxNumber = slot.LastTokenNumber
	}

	if err := e.Slots.SetCounters(ctx, slot.SlotID, live, maxNumber); err != nil {
		return nil, err
	}
	slot.CurrentAllocation = live
	slot.LastTokenNumber = maxNumber
	return slot, nil
}

// FindBySlotID is a point lookup.
func (e *Engine) FindBySlotID(ctx context.Context, slotID string) (*models.Slot, error) {
	return e.Slots.GetBySlotID(ctx, slotID)
}

// FindAvailable returns active slots with spare capacity matching the filter,
// ordered by date then start time.
func (e *Engine) FindAvailable(ctx context.Context, f slotRepo.Filter) ([]models.Slot, error) {
	f.OnlyAvailable = true
	return e.Slots.Find(ctx, f)
}

// FindOverlapping returns the doctor's slots on the date intersecting [start, end).
func (e *Engine) FindOverlapping(ctx context.Context, doctorID string, date time.Time, start, end string) ([]models.Slot, error) {
	return e.Slots.FindOverlapping(ctx, doctorID, utils.UTCMidnight(date), normalizeHHMM(start), normalizeHHMM(end))
}

// Suspend moves a slot out of rotation (manual action).
func (e *Engine) Suspend(ctx context.Context, slotID string) error {
	return e.Slots.SetStatus(ctx, slotID, models.SlotStatusSuspended)
}

// CompleteForDate marks every still-active slot on the date completed.
// Intended for the end-of-day sweep.
func (e *Engine) CompleteForDate(ctx context.Context, date time.Time) (int, error) {
	date = utils.UTCMidnight(date)
	slots, err := e.Slots.Find(ctx, slotRepo.Filter{DateFrom: &date, DateTo: &date})
	if err != nil {
		return 0, err
	}
	n := 0
	for _, s := range slots {
		if s.Status != models.SlotStatusActive {
			continue
		}
		if err := e.Slots.SetStatus(ctx, s.SlotID, models.SlotStatusCompleted); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// normalizeHHMM left-pads the hour so string comparison is chronological.
func normalizeHHMM(s string) string {
	if len(s) == 4 { // "9:30"
		return "0" + s
	}
	return s
}
