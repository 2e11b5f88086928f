package capacity

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Abraj743/opd-token-allocation-sub000/database/repository/memory"
	"github.com/Abraj743/opd-token-allocation-sub000/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testDay = time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)

func newTestGuard(t *testing.T, maxCapacity int) (*Guard, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	require.NoError(t, store.SlotsRepo().Insert(context.Background(), &models.Slot{
		SlotID:      "slot_doc1_2026-08-24_0900",
		DoctorID:    "doc1",
		Department:  "cardiology",
		Date:        testDay,
		StartTime:   "09:00",
		EndTime:     "12:00",
		MaxCapacity: maxCapacity,
		Status:      models.SlotStatusActive,
	}))
	return NewGuard(store.SlotsRepo(), store.TokensRepo(), 0, zap.NewNop()), store
}

func seedToken(t *testing.T, store *memory.Store, id string, priority int, source models.TokenSource, status models.TokenStatus, createdAt time.Time) {
	t.Helper()
	require.NoError(t, store.TokensRepo().Insert(context.Background(), &models.Token{
		TokenID:   id,
		PatientID: "pat_" + id,
		DoctorID:  "doc1",
		SlotID:    "slot_doc1_2026-08-24_0900",
		Date:      testDay,
		Source:    source,
		Priority:  priority,
		Status:    status,
		CreatedAt: createdAt,
	}))
}

func TestReserveReleaseRoundTrip(t *testing.T) {
	g, _ := newTestGuard(t, 2)
	ctx := context.Background()

	n, err := g.Reserve(ctx, "slot_doc1_2026-08-24_0900")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = g.Reserve(ctx, "slot_doc1_2026-08-24_0900")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = g.Reserve(ctx, "slot_doc1_2026-08-24_0900")
	require.ErrorIs(t, err, ErrSlotAtCapacity)

	n, err = g.Release(ctx, "slot_doc1_2026-08-24_0900")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = g.Release(ctx, "slot_doc1_2026-08-24_0900")
	require.NoError(t, err)
	_, err = g.Release(ctx, "slot_doc1_2026-08-24_0900")
	require.ErrorIs(t, err, ErrNothingToRelease)
}

func TestConcurrentReserveSingleWinner(t *testing.T) {
	g, store := newTestGuard(t, 1)
	ctx := context.Background()

	const workers = 10
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := g.Reserve(ctx, "slot_doc1_2026-08-24_0900")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	wins, losses := 0, 0
	for err := range results {
		if err == nil {
			wins++
		} else {
			require.ErrorIs(t, err, ErrSlotAtCapacity)
			losses++
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, workers-1, losses)

	slot, err := store.SlotsRepo().GetBySlotID(ctx, "slot_doc1_2026-08-24_0900")
	require.NoError(t, err)
	assert.Equal(t, 1, slot.CurrentAllocation)
}

func TestNextTokenNumberMonotonicUnderConcurrency(t *testing.T) {
	g, _ := newTestGuard(t, 50)
	ctx := context.Background()

	const workers = 20
	var wg sync.WaitGroup
	numbers := make(chan int, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := g.NextTokenNumber(ctx, "slot_doc1_2026-08-24_0900")
			assert.NoError(t, err)
			numbers <- n
		}()
	}
	wg.Wait()
	close(numbers)

	seen := make(map[int]bool)
	for n := range numbers {
		assert.False(t, seen[n], "token number %d issued twice", n)
		assert.GreaterOrEqual(t, n, 1)
		assert.LessOrEqual(t, n, workers)
		seen[n] = true
	}
	assert.Len(t, seen, workers)
}

func TestForceReserveExceedsCapacity(t *testing.T) {
	g, store := newTestGuard(t, 1)
	ctx := context.Background()

	_, err := g.Reserve(ctx, "slot_doc1_2026-08-24_0900")
	require.NoError(t, err)

	n, err := g.ForceReserve(ctx, "slot_doc1_2026-08-24_0900")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	slot, err := store.SlotsRepo().GetBySlotID(ctx, "slot_doc1_2026-08-24_0900")
	require.NoError(t, err)
	assert.Greater(t, slot.CurrentAllocation, slot.MaxCapacity)
}

func TestPreemptLowestPicksLowestPriority(t *testing.T) {
	g, store := newTestGuard(t, 3)
	ctx := context.Background()
	now := time.Now().UTC()

	seedToken(t, store, "tok_a", 400, models.SourceOnline, models.TokenStatusAllocated, now)
	seedToken(t, store, "tok_b", 640, models.SourcePriority, models.TokenStatusAllocated, now)
	seedToken(t, store, "tok_c", 350, models.SourceWalkin, models.TokenStatusAllocated, now)

	displaced, err := g.PreemptLowest(ctx, "slot_doc1_2026-08-24_0900", 1000)
	require.NoError(t, err)
	require.NotNil(t, displaced)
	assert.Equal(t, "tok_c", displaced.TokenID)
	assert.Equal(t, models.TokenStatusPendingReallocation, displaced.Status)
}

func TestPreemptLowestRespectsMargin(t *testing.T) {
	g, store := newTestGuard(t, 2)
	ctx := context.Background()

	// Gap is exactly the margin: not eligible.
	seedToken(t, store, "tok_a", 800, models.SourcePriority, models.TokenStatusAllocated, time.Now().UTC())
	displaced, err := g.PreemptLowest(ctx, "slot_doc1_2026-08-24_0900", 1000)
	require.NoError(t, err)
	assert.Nil(t, displaced)

	// One point beyond the margin: eligible.
	displaced, err = g.PreemptLowest(ctx, "slot_doc1_2026-08-24_0900", 1001)
	require.NoError(t, err)
	require.NotNil(t, displaced)
	assert.Equal(t, "tok_a", displaced.TokenID)
}

func TestPreemptLowestSkipsEmergencyAndNonAllocated(t *testing.T) {
	g, store := newTestGuard(t, 3)
	ctx := context.Background()
	now := time.Now().UTC()

	seedToken(t, store, "tok_em", 1000, models.SourceEmergency, models.TokenStatusAllocated, now)
	seedToken(t, store, "tok_conf", 200, models.SourceWalkin, models.TokenStatusConfirmed, now)

	displaced, err := g.PreemptLowest(ctx, "slot_doc1_2026-08-24_0900", 2000)
	require.NoError(t, err)
	assert.Nil(t, displaced)
}

func TestPreemptLowestTieBreaksOnCreation(t *testing.T) {
	g, store := newTestGuard(t, 3)
	ctx := context.Background()
	earlier := time.Now().UTC().Add(-time.Hour)
	later := time.Now().UTC()

	seedToken(t, store, "tok_late", 400, models.SourceOnline, models.TokenStatusAllocated, later)
	seedToken(t, store, "tok_early", 400, models.SourceOnline, models.TokenStatusAllocated, earlier)

	displaced, err := g.PreemptLowest(ctx, "slot_doc1_2026-08-24_0900", 1000)
	require.NoError(t, err)
	require.NotNil(t, displaced)
	assert.Equal(t, "tok_early", displaced.TokenID)
}
