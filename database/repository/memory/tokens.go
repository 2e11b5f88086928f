package memory

import (
	"context"
	"time"

	tokenRepo "github.com/Abraj743/opd-token-allocation-sub000/database/repository/token"
	"github.com/Abraj743/opd-token-allocation-sub000/models"
)

// TokenStore implements tokenRepo.TokenRepository.
type TokenStore struct{ s *Store }

func (r *TokenStore) Insert(_ context.Context, token *models.Token) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tokens[token.TokenID]; ok {
		return tokenRepo.ErrDuplicateTokenID
	}
	now := time.Now().UTC()
	if token.CreatedAt.IsZero() {
		token.CreatedAt = now
	}
	token.UpdatedAt = now
	cp := *token
	r.s.tokens[token.TokenID] = &cp
	return nil
}

func (r *TokenStore) GetByTokenID(_ context.Context, tokenID string) (*models.Token, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tokens[tokenID]
	if !ok {
		return nil, tokenRepo.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *TokenStore) UpdateStatusIf(_ context.Context, tokenID string, from []models.TokenStatus, to models.TokenStatus, reason string) (*models.Token, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tokens[tokenID]
	if !ok {
		return nil, tokenRepo.ErrNotFound
	}
	matched := false
	for _, st := range from {
		if t.Status == st {
			matched = true
			break
		}
	}
	if !matched {
		return nil, tokenRepo.ErrStatusConflict
	}
	t.Status = to
	if reason != "" {
		t.Metadata.CancelReason = reason
	}
	t.UpdatedAt = time.Now().UTC()
	cp := *t
	return &cp, nil
}

func (r *TokenStore) MoveToSlot(_ context.Context, tokenID, newSlotID string, newTokenNumber int) (*models.Token, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tokens[tokenID]
	if !ok {
		return nil, tokenRepo.ErrNotFound
	}
	if t.Status != models.TokenStatusPendingReallocation {
		return nil, tokenRepo.ErrStatusConflict
	}
	t.Metadata.OriginalSlotID = t.SlotID
	t.SlotID = newSlotID
	t.TokenNumber = newTokenNumber
	t.Status = models.TokenStatusAllocated
	if slot, ok := r.s.slots[newSlotID]; ok {
		t.Date = slot.Date
	}
	t.UpdatedAt = time.Now().UTC()
	cp := *t
	return &cp, nil
}

func (r *TokenStore) collect(match func(*models.Token) bool) []models.Token {
	var out []models.Token
	for _, t := range r.s.tokens {
		if match(t) {
			out = append(out, *t)
		}
	}
	return out
}

func (r *TokenStore) LiveBySlot(_ context.Context, slotID string) ([]models.Token, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.collect(func(t *models.Token) bool {
		return t.SlotID == slotID && t.Status.Live()
	}), nil
}

func (r *TokenStore) AllBySlot(_ context.Context, slotID string) ([]models.Token, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.collect(func(t *models.Token) bool {
		return t.SlotID == slotID
	}), nil
}

func (r *TokenStore) LiveByPatientAndSlot(_ context.Context, patientID, slotID string) (*models.Token, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.tokens {
		if t.PatientID == patientID && t.SlotID == slotID && t.Status.Live() {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *TokenStore) LiveByPatientDoctorDate(_ context.Context, patientID, doctorID string, day time.Time) (*models.Token, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.tokens {
		if t.PatientID == patientID && t.DoctorID == doctorID && t.Date.Equal(day) && t.Status.Live() {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *TokenStore) LiveByPatientOnDate(_ context.Context, patientID string, day time.Time) ([]models.Token, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.collect(func(t *models.Token) bool {
		return t.PatientID == patientID && t.Date.Equal(day) && t.Status.Live()
	}), nil
}

func (r *TokenStore) CountLiveByDoctorDate(_ context.Context, doctorID string, day time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, t := range r.s.tokens {
		if t.DoctorID == doctorID && t.Date.Equal(day) && t.Status.Live() {
			n++
		}
	}
	return n, nil
}

func (r *TokenStore) StalePendingReallocation(_ context.Context, olderThan time.Time) ([]models.Token, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.collect(func(t *models.Token) bool {
		return t.Status == models.TokenStatusPendingReallocation && t.UpdatedAt.Before(olderThan)
	}), nil
}
