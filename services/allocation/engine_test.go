package allocation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Abraj743/opd-token-allocation-sub000/database/repository/memory"
	"github.com/Abraj743/opd-token-allocation-sub000/models"
	"github.com/Abraj743/opd-token-allocation-sub000/services/capacity"
	"github.com/Abraj743/opd-token-allocation-sub000/services/events"
	"github.com/Abraj743/opd-token-allocation-sub000/services/priority"
	"github.com/Abraj743/opd-token-allocation-sub000/services/slotlifecycle"
	"github.com/Abraj743/opd-token-allocation-sub000/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var allocDay = time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)

func weekdayKey(d time.Time) string {
	return strings.ToLower(d.Weekday().String())
}

type testEnv struct {
	store *memory.Store
	eng   *Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	store := memory.NewStore()
	slots := store.SlotsRepo()
	tokens := store.TokensRepo()

	prio := priority.NewEngine(store.ConfigsRepo(), logger)
	guard := capacity.NewGuard(slots, tokens, 0, logger)
	lifecycle := slotlifecycle.NewEngine(slots, tokens, store.SchedulesRepo(), slotlifecycle.Config{
		DefaultCapacity: 20,
		ConsultMinutes:  15,
		BufferMinutes:   5,
	}, logger)
	finder := NewAlternativeFinder(slots, tokens, logger)

	eng := NewEngine(prio, guard, lifecycle, finder,
		slots, tokens, store.DoctorsRepo(), store.PatientsRepo(),
		&events.ZapSink{Logger: logger}, Config{}, logger)
	return &testEnv{store: store, eng: eng}
}

func (env *testEnv) seedSlot(t *testing.T, doctorID, department string, date time.Time, start, end string, maxCapacity int) string {
	t.Helper()
	slotID := utils.SlotID(doctorID, date, start)
	require.NoError(t, env.store.SlotsRepo().Insert(context.Background(), &models.Slot{
		SlotID:      slotID,
		DoctorID:    doctorID,
		Department:  department,
		Date:        date,
		StartTime:   start,
		EndTime:     end,
		MaxCapacity: maxCapacity,
		Status:      models.SlotStatusActive,
	}))
	return slotID
}

func asAllocError(t *testing.T, err error, code Code) *AllocError {
	t.Helper()
	require.Error(t, err)
	require.True(t, IsCode(err, code), "want %s, got %v", code, err)
	var ae *AllocError
	require.ErrorAs(t, err, &ae)
	return ae
}

func TestAllocateDirect(t *testing.T) {
	env := newTestEnv(t)
	slotID := env.seedSlot(t, "doc1", "cardiology", allocDay, "09:00", "12:00", 3)

	res, err := env.eng.Allocate(context.Background(), &Request{
		PatientID: "pat1",
		SlotID:    slotID,
		Source:    models.SourceWalkin,
	})
	require.NoError(t, err)
	assert.Equal(t, MethodDirect, res.Method)
	assert.Equal(t, 1, res.Token.TokenNumber)
	assert.Equal(t, models.TokenStatusAllocated, res.Token.Status)
	assert.Equal(t, "doc1", res.Token.DoctorID)
	assert.Equal(t, 200, res.Token.Priority)
	assert.Equal(t, priority.LevelLow, res.Priority.Level)

	slot, err := env.store.SlotsRepo().GetBySlotID(context.Background(), slotID)
	require.NoError(t, err)
	assert.Equal(t, 1, slot.CurrentAllocation)
	assert.Equal(t, 1, slot.LastTokenNumber)
}

func TestAllocateRejectsBadRequests(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.eng.Allocate(context.Background(), &Request{SlotID: "slot_x", Source: models.SourceOnline})
	asAllocError(t, err, CodeValidation)

	_, err = env.eng.Allocate(context.Background(), &Request{PatientID: "pat1", SlotID: "slot_x", Source: "smoke_signal"})
	asAllocError(t, err, CodeInvalidSource)

	_, err = env.eng.Allocate(context.Background(), &Request{PatientID: "pat1", Source: models.SourceOnline})
	asAllocError(t, err, CodeValidation)

	_, err = env.eng.Allocate(context.Background(), &Request{PatientID: "pat1", SlotID: "slot_missing", Source: models.SourceOnline})
	asAllocError(t, err, CodeSlotNotFound)
}

func TestAllocateRejectsInactiveSlot(t *testing.T) {
	env := newTestEnv(t)
	slotID := env.seedSlot(t, "doc1", "cardiology", allocDay, "09:00", "12:00", 3)
	require.NoError(t, env.store.SlotsRepo().SetStatus(context.Background(), slotID, models.SlotStatusSuspended))

	_, err := env.eng.Allocate(context.Background(), &Request{
		PatientID: "pat1", SlotID: slotID, Source: models.SourceOnline,
	})
	asAllocError(t, err, CodeSlotInactive)
}

func TestConcurrentAllocationsRespectCapacity(t *testing.T) {
	env := newTestEnv(t)
	slotID := env.seedSlot(t, "doc1", "cardiology", allocDay, "09:00", "12:00", 3)

	const workers = 10
	var wg sync.WaitGroup
	results := make(chan *Result, workers)
	failures := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := env.eng.Allocate(context.Background(), &Request{
				PatientID: fmt.Sprintf("pat%d", i),
				SlotID:    slotID,
				Source:    models.SourceOnline,
			})
			if err != nil {
				failures <- err
				return
			}
			results <- res
		}(i)
	}
	wg.Wait()
	close(results)
	close(failures)

	numbers := make(map[int]bool)
	for res := range results {
		assert.False(t, numbers[res.Token.TokenNumber], "token number %d issued twice", res.Token.TokenNumber)
		numbers[res.Token.TokenNumber] = true
	}
	assert.Equal(t, map[int]bool{1: true, 2: true, 3: true}, numbers)

	lost := 0
	for err := range failures {
		asAllocError(t, err, CodeSlotFull)
		lost++
	}
	assert.Equal(t, workers-3, lost)

	slot, err := env.store.SlotsRepo().GetBySlotID(context.Background(), slotID)
	require.NoError(t, err)
	assert.Equal(t, 3, slot.CurrentAllocation)
}

func TestDuplicateRules(t *testing.T) {
	env := newTestEnv(t)
	slot1 := env.seedSlot(t, "doc1", "cardiology", allocDay, "09:00", "12:00", 5)
	slot2 := env.seedSlot(t, "doc1", "cardiology", allocDay, "14:00", "17:00", 5)
	slot3 := env.seedSlot(t, "doc2", "cardiology", allocDay, "09:00", "12:00", 5)

	_, err := env.eng.Allocate(context.Background(), &Request{
		PatientID: "pat1", SlotID: slot1, Source: models.SourceOnline,
	})
	require.NoError(t, err)

	// Same slot again.
	_, err = env.eng.Allocate(context.Background(), &Request{
		PatientID: "pat1", SlotID: slot1, Source: models.SourceOnline,
	})
	asAllocError(t, err, CodeDuplicateInSlot)

	// Same doctor, different slot, same day.
	_, err = env.eng.Allocate(context.Background(), &Request{
		PatientID: "pat1", SlotID: slot2, Source: models.SourceOnline,
	})
	asAllocError(t, err, CodeDuplicateWithDoctor)

	// Different doctor, same day.
	_, err = env.eng.Allocate(context.Background(), &Request{
		PatientID: "pat1", SlotID: slot3, Source: models.SourceOnline,
	})
	asAllocError(t, err, CodeDuplicateOnDate)

	// An emergency for the same patient bypasses the one-per-day rule.
	res, err := env.eng.Allocate(context.Background(), &Request{
		PatientID: "pat1", SlotID: slot3, Source: models.SourceEmergency,
	})
	require.NoError(t, err)
	assert.Equal(t, MethodDirect, res.Method)
}

func TestFollowupContinuityAdvisory(t *testing.T) {
	env := newTestEnv(t)
	env.seedSlot(t, "doc_prev", "cardiology", allocDay, "09:00", "12:00", 5)
	slotOther := env.seedSlot(t, "doc_new", "cardiology", allocDay, "09:00", "12:00", 5)

	_, err := env.eng.Allocate(context.Background(), &Request{
		PatientID:   "pat1",
		SlotID:      slotOther,
		Source:      models.SourceFollowup,
		PatientInfo: &models.PatientInfo{LastVisitedDoctor: "doc_prev"},
	})
	ae := asAllocError(t, err, CodeDoctorContinuity)
	require.NotNil(t, ae.Alternatives)
	require.NotEmpty(t, ae.Alternatives.SameDoctorFutureSlots)
	assert.Equal(t, "doc_prev", ae.Alternatives.SameDoctorFutureSlots[0].Slot.DoctorID)
	assert.Equal(t, "same_doctor_future", ae.Alternatives.RecommendedAction)

	// With the previous doctor unavailable, the follow-up proceeds.
	require.NoError(t, env.store.SlotsRepo().SetStatus(context.Background(), utils.SlotID("doc_prev", allocDay, "09:00"), models.SlotStatusSuspended))
	res, err := env.eng.Allocate(context.Background(), &Request{
		PatientID:   "pat1",
		SlotID:      slotOther,
		Source:      models.SourceFollowup,
		PatientInfo: &models.PatientInfo{LastVisitedDoctor: "doc_prev"},
	})
	require.NoError(t, err)
	assert.Equal(t, MethodDirect, res.Method)
}

func TestSlotFullReturnsAlternatives(t *testing.T) {
	env := newTestEnv(t)
	full := env.seedSlot(t, "doc1", "cardiology", allocDay, "09:00", "12:00", 1)
	env.seedSlot(t, "doc2", "cardiology", allocDay, "09:00", "12:00", 5)

	_, err := env.eng.Allocate(context.Background(), &Request{
		PatientID: "pat1", SlotID: full, Source: models.SourceOnline,
	})
	require.NoError(t, err)

	_, err = env.eng.Allocate(context.Background(), &Request{
		PatientID: "pat2", SlotID: full, Source: models.SourceOnline,
	})
	ae := asAllocError(t, err, CodeSlotFull)
	require.NotNil(t, ae.Alternatives)
	require.NotEmpty(t, ae.Alternatives.SameDepartmentOtherDoctors)
	assert.Equal(t, "doc2", ae.Alternatives.SameDepartmentOtherDoctors[0].Slot.DoctorID)
	assert.Equal(t, "same_department_today", ae.Alternatives.RecommendedAction)
}

func TestEmergencyPreemptsAndReallocates(t *testing.T) {
	env := newTestEnv(t)
	slot1 := env.seedSlot(t, "doc1", "cardiology", allocDay, "09:00", "10:00", 1)
	slot2 := env.seedSlot(t, "doc1", "cardiology", allocDay, "11:00", "12:00", 1)

	first, err := env.eng.Allocate(context.Background(), &Request{
		PatientID: "pat_low", SlotID: slot1, Source: models.SourceOnline,
	})
	require.NoError(t, err)
	require.Equal(t, 1, first.Token.TokenNumber)

	res, err := env.eng.Allocate(context.Background(), &Request{
		PatientID: "pat_em", SlotID: slot1, Source: models.SourceEmergency,
	})
	require.NoError(t, err)
	assert.Equal(t, MethodPreemption, res.Method)
	assert.Equal(t, []string{first.Token.TokenID}, res.PreemptedTokenIDs)
	// The emergency token takes over the displaced token's number.
	assert.Equal(t, 1, res.Token.TokenNumber)
	assert.Equal(t, []string{first.Token.TokenID}, res.Token.Metadata.PreemptedTokenIDs)

	// The displaced token was rehoused in the nearby slot.
	moved, err := env.store.TokensRepo().GetByTokenID(context.Background(), first.Token.TokenID)
	require.NoError(t, err)
	assert.Equal(t, models.TokenStatusAllocated, moved.Status)
	assert.Equal(t, slot2, moved.SlotID)
	assert.Equal(t, slot1, moved.Metadata.OriginalSlotID)
	assert.Equal(t, 1, moved.TokenNumber)

	// Seat accounting: the emergency consumed slot1's seat, the displaced
	// token consumed slot2's.
	s1, err := env.store.SlotsRepo().GetBySlotID(context.Background(), slot1)
	require.NoError(t, err)
	assert.Equal(t, 1, s1.CurrentAllocation)
	s2, err := env.store.SlotsRepo().GetBySlotID(context.Background(), slot2)
	require.NoError(t, err)
	assert.Equal(t, 1, s2.CurrentAllocation)
}

func TestEmergencyPreemptionCancelsWhenNoAlternative(t *testing.T) {
	env := newTestEnv(t)
	slot1 := env.seedSlot(t, "doc1", "cardiology", allocDay, "09:00", "10:00", 1)
	// The only other slot is outside the reallocation window.
	env.seedSlot(t, "doc1", "cardiology", allocDay, "15:00", "16:00", 1)

	first, err := env.eng.Allocate(context.Background(), &Request{
		PatientID: "pat_low", SlotID: slot1, Source: models.SourceOnline,
	})
	require.NoError(t, err)

	res, err := env.eng.Allocate(context.Background(), &Request{
		PatientID: "pat_em", SlotID: slot1, Source: models.SourceEmergency,
	})
	require.NoError(t, err)
	assert.Equal(t, MethodPreemption, res.Method)

	displaced, err := env.store.TokensRepo().GetByTokenID(context.Background(), first.Token.TokenID)
	require.NoError(t, err)
	assert.Equal(t, models.TokenStatusCancelled, displaced.Status)
	assert.Equal(t, "preempted_no_alternatives", displaced.Metadata.CancelReason)

	// The burned number is not reissued.
	n, err := env.store.SlotsRepo().NextTokenNumber(context.Background(), slot1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestEmergencyDoesNotPreemptWithinMargin(t *testing.T) {
	env := newTestEnv(t)
	slotID := env.seedSlot(t, "doc1", "cardiology", allocDay, "09:00", "10:00", 1)

	// A priority-source incumbent (800) sits within the 200-point margin of a
	// plain emergency (1000): not displaceable.
	_, err := env.eng.Allocate(context.Background(), &Request{
		PatientID: "pat_prio", SlotID: slotID, Source: models.SourcePriority,
	})
	require.NoError(t, err)

	_, err = env.eng.Allocate(context.Background(), &Request{
		PatientID: "pat_em", SlotID: slotID, Source: models.SourceEmergency,
	})
	asAllocError(t, err, CodeSlotFull)
}

func TestDepartmentSmartPicksLeastLoadedDoctor(t *testing.T) {
	env := newTestEnv(t)
	env.store.SeedDoctor(models.Doctor{DoctorID: "doc1", Department: "cardiology", IsActive: true})
	env.store.SeedDoctor(models.Doctor{DoctorID: "doc2", Department: "cardiology", IsActive: true})
	busy := env.seedSlot(t, "doc1", "cardiology", allocDay, "09:00", "12:00", 2)
	env.seedSlot(t, "doc2", "cardiology", allocDay, "09:00", "12:00", 2)

	_, err := env.eng.Allocate(context.Background(), &Request{
		PatientID: "pat_other", SlotID: busy, Source: models.SourceOnline,
	})
	require.NoError(t, err)

	day := allocDay
	res, err := env.eng.Allocate(context.Background(), &Request{
		PatientID:     "pat1",
		Department:    "cardiology",
		Source:        models.SourceOnline,
		PreferredDate: &day,
	})
	require.NoError(t, err)
	assert.Equal(t, MethodDepartmentSmart, res.Method)
	require.NotNil(t, res.DepartmentInfo)
	assert.Equal(t, StrategyLeastLoaded, res.DepartmentInfo.Strategy)
	assert.Equal(t, "doc2", res.DepartmentInfo.DoctorID)
	assert.Equal(t, 1, res.DepartmentInfo.DaysSearched)
}

func TestDepartmentLeastLoadedCountsFullSlots(t *testing.T) {
	env := newTestEnv(t)
	env.store.SeedDoctor(models.Doctor{DoctorID: "doc_a", Department: "cardiology", IsActive: true})
	env.store.SeedDoctor(models.Doctor{DoctorID: "doc_b", Department: "cardiology", IsActive: true})

	insert := func(doctorID, start, end string, maxCap, alloc int) {
		require.NoError(t, env.store.SlotsRepo().Insert(context.Background(), &models.Slot{
			SlotID:            utils.SlotID(doctorID, allocDay, start),
			DoctorID:          doctorID,
			Department:        "cardiology",
			Date:              allocDay,
			StartTime:         start,
			EndTime:           end,
			MaxCapacity:       maxCap,
			CurrentAllocation: alloc,
			Status:            models.SlotStatusActive,
		}))
	}
	// doc_a's packed morning slot must count toward its load even though only
	// the afternoon slot is still bookable.
	insert("doc_a", "09:00", "12:00", 10, 10) // full
	insert("doc_a", "14:00", "17:00", 10, 0)  // day-wide load 10/20
	insert("doc_b", "09:00", "12:00", 10, 4)  // day-wide load 4/10

	day := allocDay
	res, err := env.eng.Allocate(context.Background(), &Request{
		PatientID:     "pat1",
		Department:    "cardiology",
		Source:        models.SourceOnline,
		PreferredDate: &day,
	})
	require.NoError(t, err)
	assert.Equal(t, StrategyLeastLoaded, res.DepartmentInfo.Strategy)
	assert.Equal(t, "doc_b", res.Token.DoctorID)
}

func TestDepartmentSmartHonorsPreferredDoctor(t *testing.T) {
	env := newTestEnv(t)
	env.store.SeedDoctor(models.Doctor{DoctorID: "doc1", Department: "cardiology", IsActive: true})
	env.store.SeedDoctor(models.Doctor{DoctorID: "doc2", Department: "cardiology", IsActive: true})
	env.seedSlot(t, "doc1", "cardiology", allocDay, "09:00", "12:00", 5)
	env.seedSlot(t, "doc2", "cardiology", allocDay, "09:00", "12:00", 5)

	day := allocDay
	res, err := env.eng.Allocate(context.Background(), &Request{
		PatientID:         "pat1",
		Department:        "cardiology",
		Source:            models.SourceOnline,
		PreferredDate:     &day,
		PreferredDoctorID: "doc2",
	})
	require.NoError(t, err)
	assert.Equal(t, StrategyPreferredDoctor, res.DepartmentInfo.Strategy)
	assert.Equal(t, "doc2", res.Token.DoctorID)
}

func TestDepartmentForwardSearchGeneratesNextDay(t *testing.T) {
	env := newTestEnv(t)
	env.store.SeedDoctor(models.Doctor{DoctorID: "doc1", Department: "cardiology", IsActive: true})

	// Day 0 is fully booked; day 1 has no slots yet, only a schedule.
	full := env.seedSlot(t, "doc1", "cardiology", allocDay, "09:00", "10:00", 1)
	_, err := env.eng.Allocate(context.Background(), &Request{
		PatientID: "pat_other", SlotID: full, Source: models.SourceOnline,
	})
	require.NoError(t, err)

	nextDay := allocDay.AddDate(0, 0, 1)
	env.store.SeedSchedule(models.DoctorSchedule{
		DoctorID:   "doc1",
		Department: "cardiology",
		WeeklySchedule: map[string][]models.ScheduleWindow{
			weekdayKey(nextDay): {{StartTime: "09:00", EndTime: "12:00", MaxCapacity: 10}},
		},
		IsActive:      true,
		EffectiveFrom: allocDay.AddDate(0, 0, -30),
	})

	day := allocDay
	res, err := env.eng.Allocate(context.Background(), &Request{
		PatientID:     "pat1",
		Department:    "cardiology",
		Source:        models.SourceOnline,
		PreferredDate: &day,
	})
	require.NoError(t, err)
	assert.Equal(t, MethodDepartmentSmart, res.Method)
	assert.Equal(t, StrategyAutoGeneratedNext, res.DepartmentInfo.Strategy)
	assert.Equal(t, 2, res.DepartmentInfo.DaysSearched)
	assert.Equal(t, utils.FormatDate(nextDay), res.DepartmentInfo.Date)
	assert.True(t, res.Token.Date.Equal(nextDay))
}

func TestDepartmentExhaustsSearchHorizon(t *testing.T) {
	env := newTestEnv(t)
	env.store.SeedDoctor(models.Doctor{DoctorID: "doc1", Department: "cardiology", IsActive: true})

	day := allocDay
	_, err := env.eng.Allocate(context.Background(), &Request{
		PatientID:     "pat1",
		Department:    "cardiology",
		Source:        models.SourceOnline,
		PreferredDate: &day,
	})
	ae := asAllocError(t, err, CodeNoAvailability)
	assert.Equal(t, 31, ae.Details["daysSearched"])
}

func TestDepartmentRejectsUnknownDepartment(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.eng.Allocate(context.Background(), &Request{
		PatientID:  "pat1",
		Department: "astrology",
		Source:     models.SourceOnline,
	})
	asAllocError(t, err, CodeNoAvailability)
}

func TestEmergencyCapacityOverride(t *testing.T) {
	env := newTestEnv(t)
	today := utils.UTCMidnight(time.Now())
	slotID := env.seedSlot(t, "doc1", "cardiology", today, "09:00", "10:00", 1)

	// The incumbent sits within the displacement margin, so the emergency
	// escalates past preemption to a capacity override.
	_, err := env.eng.Allocate(context.Background(), &Request{
		PatientID: "pat_prio", SlotID: slotID, Source: models.SourcePriority,
	})
	require.NoError(t, err)

	res, err := env.eng.AllocateEmergency(context.Background(), &Request{
		PatientID:  "pat_em",
		Department: "cardiology",
	})
	require.NoError(t, err)
	assert.Equal(t, MethodCapacityOverride, res.Method)
	assert.True(t, res.Token.Metadata.CapacityOverride)
	assert.Equal(t, 2, res.Token.TokenNumber)

	slot, err := env.store.SlotsRepo().GetBySlotID(context.Background(), slotID)
	require.NoError(t, err)
	assert.Equal(t, 2, slot.CurrentAllocation)
	assert.Equal(t, 1, slot.MaxCapacity)
}

func TestEmergencyPrefersSpareCapacity(t *testing.T) {
	env := newTestEnv(t)
	today := utils.UTCMidnight(time.Now())
	full := env.seedSlot(t, "doc1", "cardiology", today, "09:00", "10:00", 1)
	env.seedSlot(t, "doc2", "cardiology", today, "11:00", "12:00", 2)

	_, err := env.eng.Allocate(context.Background(), &Request{
		PatientID: "pat_low", SlotID: full, Source: models.SourceOnline,
	})
	require.NoError(t, err)

	// Spare capacity elsewhere wins over preempting the full slot.
	res, err := env.eng.AllocateEmergency(context.Background(), &Request{
		PatientID:  "pat_em",
		Department: "cardiology",
	})
	require.NoError(t, err)
	assert.Equal(t, MethodDirect, res.Method)
	assert.Equal(t, "doc2", res.Token.DoctorID)
	assert.Empty(t, res.PreemptedTokenIDs)
}

func TestTransitionsReleaseSeats(t *testing.T) {
	env := newTestEnv(t)
	slotID := env.seedSlot(t, "doc1", "cardiology", allocDay, "09:00", "12:00", 5)
	ctx := context.Background()

	res, err := env.eng.Allocate(ctx, &Request{
		PatientID: "pat1", SlotID: slotID, Source: models.SourceOnline,
	})
	require.NoError(t, err)
	tokenID := res.Token.TokenID

	confirmed, err := env.eng.Confirm(ctx, tokenID)
	require.NoError(t, err)
	assert.Equal(t, models.TokenStatusConfirmed, confirmed.Status)

	// Confirm is not repeatable.
	_, err = env.eng.Confirm(ctx, tokenID)
	asAllocError(t, err, CodeValidation)

	completed, err := env.eng.Complete(ctx, tokenID)
	require.NoError(t, err)
	assert.Equal(t, models.TokenStatusCompleted, completed.Status)

	slot, err := env.store.SlotsRepo().GetBySlotID(ctx, slotID)
	require.NoError(t, err)
	assert.Equal(t, 0, slot.CurrentAllocation)
	assert.Equal(t, 1, slot.LastTokenNumber) // the number stays burned
}

func TestCancelReleasesSeatAndRecordsReason(t *testing.T) {
	env := newTestEnv(t)
	slotID := env.seedSlot(t, "doc1", "cardiology", allocDay, "09:00", "12:00", 5)
	ctx := context.Background()

	res, err := env.eng.Allocate(ctx, &Request{
		PatientID: "pat1", SlotID: slotID, Source: models.SourceOnline,
	})
	require.NoError(t, err)

	cancelled, err := env.eng.Cancel(ctx, res.Token.TokenID, "patient request")
	require.NoError(t, err)
	assert.Equal(t, models.TokenStatusCancelled, cancelled.Status)
	assert.Equal(t, "patient request", cancelled.Metadata.CancelReason)

	slot, err := env.store.SlotsRepo().GetBySlotID(ctx, slotID)
	require.NoError(t, err)
	assert.Equal(t, 0, slot.CurrentAllocation)

	// Cancelling a cancelled token is rejected, and the seat is not
	// double-released.
	_, err = env.eng.Cancel(ctx, res.Token.TokenID, "again")
	asAllocError(t, err, CodeValidation)
	slot, err = env.store.SlotsRepo().GetBySlotID(ctx, slotID)
	require.NoError(t, err)
	assert.Equal(t, 0, slot.CurrentAllocation)
}

func TestNoShowRequiresConfirmed(t *testing.T) {
	env := newTestEnv(t)
	slotID := env.seedSlot(t, "doc1", "cardiology", allocDay, "09:00", "12:00", 5)
	ctx := context.Background()

	res, err := env.eng.Allocate(ctx, &Request{
		PatientID: "pat1", SlotID: slotID, Source: models.SourceOnline,
	})
	require.NoError(t, err)

	_, err = env.eng.NoShow(ctx, res.Token.TokenID)
	asAllocError(t, err, CodeValidation)

	_, err = env.eng.Confirm(ctx, res.Token.TokenID)
	require.NoError(t, err)
	ns, err := env.eng.NoShow(ctx, res.Token.TokenID)
	require.NoError(t, err)
	assert.Equal(t, models.TokenStatusNoShow, ns.Status)
}

func TestSweepStaleReallocations(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.store.TokensRepo().Insert(ctx, &models.Token{
		TokenID:   "tok_stuck",
		PatientID: "pat1",
		DoctorID:  "doc1",
		SlotID:    "slot_gone",
		Date:      allocDay,
		Source:    models.SourceOnline,
		Status:    models.TokenStatusPendingReallocation,
	}))

	cancelled, err := env.eng.SweepStaleReallocations(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, cancelled, 1)
	assert.Equal(t, "tok_stuck", cancelled[0].TokenID)
	assert.Equal(t, models.TokenStatusCancelled, cancelled[0].Status)
	assert.Equal(t, "reallocation_timeout", cancelled[0].Metadata.CancelReason)

	// Nothing left to sweep.
	again, err := env.eng.SweepStaleReallocations(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Empty(t, again)
}
