package memory

import (
	"context"
	"sort"
	"time"

	slotRepo "github.com/Abraj743/opd-token-allocation-sub000/database/repository/slot"
	"github.com/Abraj743/opd-token-allocation-sub000/models"
)

// SlotStore implements slotRepo.SlotRepository.
type SlotStore struct{ s *Store }

func (r *SlotStore) Insert(_ context.Context, slot *models.Slot) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.slots[slot.SlotID]; ok {
		return slotRepo.ErrSlotExists
	}
	now := time.Now().UTC()
	if slot.CreatedAt.IsZero() {
		slot.CreatedAt = now
	}
	slot.UpdatedAt = now
	cp := *slot
	r.s.slots[slot.SlotID] = &cp
	return nil
}

func (r *SlotStore) GetBySlotID(_ context.Context, slotID string) (*models.Slot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	slot, ok := r.s.slots[slotID]
	if !ok {
		return nil, slotRepo.ErrNotFound
	}
	cp := *slot
	return &cp, nil
}

func (r *SlotStore) SetCounters(_ context.Context, slotID string, currentAllocation, lastTokenNumber int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	slot, ok := r.s.slots[slotID]
	if !ok {
		return slotRepo.ErrNotFound
	}
	slot.CurrentAllocation = currentAllocation
	slot.LastTokenNumber = lastTokenNumber
	slot.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *SlotStore) SetStatus(_ context.Context, slotID string, status models.SlotStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	slot, ok := r.s.slots[slotID]
	if !ok {
		return slotRepo.ErrNotFound
	}
	slot.Status = status
	slot.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *SlotStore) ReserveSeat(_ context.Context, slotID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	slot, ok := r.s.slots[slotID]
	if !ok {
		return 0, slotRepo.ErrNotFound
	}
	if slot.CurrentAllocation >= slot.MaxCapacity {
		return 0, slotRepo.ErrAtCapacity
	}
	slot.CurrentAllocation++
	slot.UpdatedAt = time.Now().UTC()
	return slot.CurrentAllocation, nil
}

func (r *SlotStore) ForceReserveSeat(_ context.Context, slotID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	slot, ok := r.s.slots[slotID]
	if !ok {
		return 0, slotRepo.ErrNotFound
	}
	slot.CurrentAllocation++
	slot.UpdatedAt = time.Now().UTC()
	return slot.CurrentAllocation, nil
}

func (r *SlotStore) ReleaseSeat(_ context.Context, slotID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	slot, ok := r.s.slots[slotID]
	if !ok {
		return 0, slotRepo.ErrNotFound
	}
	if slot.CurrentAllocation <= 0 {
		return 0, slotRepo.ErrNothingToRelease
	}
	slot.CurrentAllocation--
	slot.UpdatedAt = time.Now().UTC()
	return slot.CurrentAllocation, nil
}

func (r *SlotStore) NextTokenNumber(_ context.Context, slotID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	slot, ok := r.s.slots[slotID]
	if !ok {
		return 0, slotRepo.ErrNotFound
	}
	slot.LastTokenNumber++
	slot.UpdatedAt = time.Now().UTC()
	return slot.LastTokenNumber, nil
}

func (r *SlotStore) Find(_ context.Context, f slotRepo.Filter) ([]models.Slot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []models.Slot
	for _, slot := range r.s.slots {
		if f.DoctorID != "" && slot.DoctorID != f.DoctorID {
			continue
		}
		if f.Department != "" && slot.Department != f.Department {
			continue
		}
		if f.DateFrom != nil && slot.Date.Before(*f.DateFrom) {
			continue
		}
		if f.DateTo != nil && slot.Date.After(*f.DateTo) {
			continue
		}
		if f.StartTimeGE != "" && slot.StartTime < f.StartTimeGE {
			continue
		}
		if f.OnlyAvailable && (slot.Status != models.SlotStatusActive || slot.CurrentAllocation >= slot.MaxCapacity) {
			continue
		}
		out = append(out, *slot)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].StartTime < out[j].StartTime
	})
	if f.Limit > 0 && int64(len(out)) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *SlotStore) FindOverlapping(_ context.Context, doctorID string, date time.Time, start, end string) ([]models.Slot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []models.Slot
	for _, slot := range r.s.slots {
		if slot.DoctorID != doctorID || !slot.Date.Equal(date) {
			continue
		}
		if slot.StartTime < end && slot.EndTime > start {
			out = append(out, *slot)
		}
	}
	return out, nil
}

func (r *SlotStore) ExistsForDate(_ context.Context, date time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, slot := range r.s.slots {
		if slot.Date.Equal(date) {
			return true, nil
		}
	}
	return false, nil
}
