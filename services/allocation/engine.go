// File: services/allocation/engine.go

// Package allocation assigns numbered service tokens to patients: direct
// allocation into a requested slot, emergency preemption of low-priority
// incumbents, department-smart placement, and structured alternatives when
// a slot is full.
package allocation

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	doctorRepo "github.com/Abraj743/opd-token-allocation-sub000/database/repository/doctor"
	patientRepo "github.com/Abraj743/opd-token-allocation-sub000/database/repository/patient"
	slotRepo "github.com/Abraj743/opd-token-allocation-sub000/database/repository/slot"
	tokenRepo "github.com/Abraj743/opd-token-allocation-sub000/database/repository/token"
	"github.com/Abraj743/opd-token-allocation-sub000/models"
	"github.com/Abraj743/opd-token-allocation-sub000/services/capacity"
	"github.com/Abraj743/opd-token-allocation-sub000/services/events"
	"github.com/Abraj743/opd-token-allocation-sub000/services/priority"
	"github.com/Abraj743/opd-token-allocation-sub000/services/slotlifecycle"
	"github.com/Abraj743/opd-token-allocation-sub000/utils"

	"go.uber.org/zap"
)

// Config carries the engine's tunables.
type Config struct {
	MaxForwardDays            int
	ReallocationWindowMinutes int
	ReserveMaxAttempts        int
	ReserveBackoffBase        time.Duration
	ReserveBackoffCap         time.Duration
}

func (c *Config) fillDefaults() {
	if c.MaxForwardDays <= 0 {
		c.MaxForwardDays = 30
	}
	if c.ReallocationWindowMinutes <= 0 {
		c.ReallocationWindowMinutes = 120
	}
	if c.ReserveMaxAttempts <= 0 {
		c.ReserveMaxAttempts = 3
	}
	if c.ReserveBackoffBase <= 0 {
		c.ReserveBackoffBase = 100 * time.Millisecond
	}
	if c.ReserveBackoffCap <= 0 {
		c.ReserveBackoffCap = time.Second
	}
}

// Engine is the allocation engine. It is safe for concurrent use; per-slot
// ordering comes from the store's conditional updates, not from any lock here.
type Engine struct {
	Priority  *priority.Engine
	Guard     *capacity.Guard
	Lifecycle *slotlifecycle.Engine
	Finder    *AlternativeFinder

	Slots    slotRepo.SlotRepository
	Tokens   tokenRepo.TokenRepository
	Doctors  doctorRepo.DoctorRepository
	Patients patientRepo.PatientRepository

	Events events.Sink
	Cfg    Config
	Logger *zap.Logger
}

// NewEngine wires an allocation engine.
func NewEngine(
	prio *priority.Engine,
	guard *capacity.Guard,
	lifecycle *slotlifecycle.Engine,
	finder *AlternativeFinder,
	slots slotRepo.SlotRepository,
	tokens tokenRepo.TokenRepository,
	doctors doctorRepo.DoctorRepository,
	patients patientRepo.PatientRepository,
	sink events.Sink,
	cfg Config,
	logger *zap.Logger,
) *Engine {
	cfg.fillDefaults()
	return &Engine{
		Priority:  prio,
		Guard:     guard,
		Lifecycle: lifecycle,
		Finder:    finder,
		Slots:     slots,
		Tokens:    tokens,
		Doctors:   doctors,
		Patients:  patients,
		Events:    sink,
		Cfg:       cfg,
		Logger:    logger,
	}
}

// Allocate dispatches a request to the targeted or department-smart path.
func (e *Engine) Allocate(ctx context.Context, req *Request) (*Result, error) {
	if err := e.validate(req); err != nil {
		return nil, err
	}
	info, err := e.resolvePatientInfo(ctx, req)
	if err != nil {
		return nil, err
	}
	req.PatientInfo = info

	if req.Targeted() {
		return e.allocateTargeted(ctx, req)
	}
	return e.allocateDepartment(ctx, req)
}

// allocateTargeted runs the specific-slot procedure: duplicate checks,
// priority, reserve with retry, then preemption or alternatives when full.
func (e *Engine) allocateTargeted(ctx context.Context, req *Request) (*Result, error) {
	slot, err := e.loadActiveSlot(ctx, req.SlotID)
	if err != nil {
		return nil, err
	}

	if err := e.checkDuplicates(ctx, req, slot.SlotID, slot.DoctorID, slot.Date); err != nil {
		return nil, err
	}
	if err := e.checkContinuity(ctx, req, slot.DoctorID, slot.Date); err != nil {
		return nil, err
	}

	pr, err := e.Priority.Compute(ctx, req.Source, req.PatientInfo, req.WaitingMinutes)
	if err != nil {
		if errors.Is(err, priority.ErrInvalidSource) {
			return nil, newError(CodeInvalidSource, err.Error())
		}
		return nil, storeFault("priority computation", err)
	}

	token, err := e.allocateInSlot(ctx, req, slot, pr)
	if err == nil {
		return &Result{Token: token, Method: MethodDirect, Priority: pr}, nil
	}
	if !errors.Is(err, capacity.ErrSlotAtCapacity) {
		return nil, err
	}

	// Slot is full. Emergencies may displace an eligible incumbent.
	if req.Source == models.SourceEmergency {
		res, perr := e.allocateByPreemption(ctx, req, slot, pr)
		if perr != nil {
			return nil, perr
		}
		if res != nil {
			return res, nil
		}
	}

	return nil, e.slotFullFailure(ctx, req, slot)
}

// allocateInSlot reserves a seat (with capped backoff on contention), issues
// the token number, and writes the token, releasing the seat if the write
// fails. Returns capacity.ErrSlotAtCapacity when the slot stays full.
func (e *Engine) allocateInSlot(ctx context.Context, req *Request, slot *models.Slot, pr *priority.Result) (*models.Token, error) {
	if _, err := e.reserveWithRetry(ctx, slot.SlotID); err != nil {
		return nil, err
	}

	number, err := e.Guard.NextTokenNumber(ctx, slot.SlotID)
	if err != nil {
		e.compensateRelease(ctx, slot.SlotID)
		return nil, storeFault("token number issuance", err)
	}

	token := e.newToken(req, slot, pr, number, models.TokenMetadata{
		WaitingMinutes:          req.WaitingMinutes,
		EstimatedServiceMinutes: slot.Metadata.AvgConsultMinutes,
	})
	if err := e.insertToken(ctx, token); err != nil {
		e.compensateRelease(ctx, slot.SlotID)
		return nil, storeFault("token write", err)
	}

	e.emitTokenEvent(ctx, events.TypeTokenAllocated, token, events.SeverityLow, nil)
	return token, nil
}

// reserveWithRetry retries reservation contention with exponential backoff
// (base 100ms, factor 2, jitter ±50%, cap 1s, 3 attempts). A slot observed
// full after a failed attempt short-circuits to ErrSlotAtCapacity.
func (e *Engine) reserveWithRetry(ctx context.Context, slotID string) (int, error) {
	backoff := e.Cfg.ReserveBackoffBase
	var lastErr error
	for attempt := 0; attempt < e.Cfg.ReserveMaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(withJitter(backoff)):
			}
			backoff *= 2
			if backoff > e.Cfg.ReserveBackoffCap {
				backoff = e.Cfg.ReserveBackoffCap
			}
		}

		n, err := e.Guard.Reserve(ctx, slotID)
		if err == nil {
			return n, nil
		}
		if !errors.Is(err, capacity.ErrSlotAtCapacity) {
			return 0, storeFault("seat reservation", err)
		}
		lastErr = err

		slot, gerr := e.Slots.GetBySlotID(ctx, slotID)
		if gerr == nil && !slot.HasCapacity() {
			// Genuinely full, not a race loss; no point backing off.
			return 0, capacity.ErrSlotAtCapacity
		}
	}
	return 0, lastErr
}

// compensateRelease undoes a successful reserve after a downstream failure.
func (e *Engine) compensateRelease(ctx context.Context, slotID string) {
	// Use a detached context so cancellation cannot strand the seat.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if _, err := e.Guard.Release(rctx, slotID); err != nil {
		e.Logger.Error("compensating release failed",
			zap.String("slotId", slotID), zap.Error(err))
	}
}

// newToken assembles an unsaved token record; insertToken mints its id.
func (e *Engine) newToken(req *Request, slot *models.Slot, pr *priority.Result, number int, meta models.TokenMetadata) *models.Token {
	return &models.Token{
		PatientID:   req.PatientID,
		DoctorID:    slot.DoctorID,
		SlotID:      slot.SlotID,
		Department:  slot.Department,
		Date:        slot.Date,
		TokenNumber: number,
		Source:      req.Source,
		Priority:    pr.FinalPriority,
		Status:      models.TokenStatusAllocated,
		Metadata:    meta,
	}
}

// insertToken writes the token, retrying id collisions with fresh ids.
func (e *Engine) insertToken(ctx context.Context, token *models.Token) error {
	const maxIDAttempts = 3
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		token.TokenID = utils.NewTokenID(token.Source == models.SourceEmergency)
		err := e.Tokens.Insert(ctx, token)
		if err == nil {
			return nil
		}
		if !errors.Is(err, tokenRepo.ErrDuplicateTokenID) {
			return err
		}
	}
	return fmt.Errorf("token id collision persisted after %d attempts", maxIDAttempts)
}

// loadActiveSlot fetches a slot and rejects missing or non-active ones.
func (e *Engine) loadActiveSlot(ctx context.Context, slotID string) (*models.Slot, error) {
	slot, err := e.Slots.GetBySlotID(ctx, slotID)
	if err != nil {
		if errors.Is(err, slotRepo.ErrNotFound) {
			return nil, newError(CodeSlotNotFound, fmt.Sprintf("slot %s does not exist", slotID)).
				withDetail("slotId", slotID)
		}
		return nil, storeFault("slot lookup", err)
	}
	if slot.Status != models.SlotStatusActive {
		return nil, newError(CodeSlotInactive, fmt.Sprintf("slot %s is %s", slotID, slot.Status)).
			withDetail("slotId", slotID).
			withDetail("status", string(slot.Status))
	}
	return slot, nil
}

// slotFullFailure builds the SlotFullAlternatives error for a full slot.
func (e *Engine) slotFullFailure(ctx context.Context, req *Request, slot *models.Slot) error {
	alts, err := e.Finder.Find(ctx, FindRequest{
		DoctorID:   slot.DoctorID,
		Department: slot.Department,
		Date:       slot.Date,
		Emergency:  req.Source == models.SourceEmergency,
	})
	if err != nil {
		e.Logger.Warn("alternative search failed", zap.String("slotId", slot.SlotID), zap.Error(err))
		alts = &Alternatives{}
	}
	ae := newError(CodeSlotFull, fmt.Sprintf("slot %s is at capacity", slot.SlotID)).
		withDetail("slotId", slot.SlotID).
		withDetail("maxCapacity", slot.MaxCapacity).
		withSuggestions("pick one of the alternative slots", "try a different department")
	ae.Alternatives = alts
	return ae
}

// resolvePatientInfo uses the request's inline attributes, falling back to
// the stored patient profile when absent.
func (e *Engine) resolvePatientInfo(ctx context.Context, req *Request) (*models.PatientInfo, error) {
	if req.PatientInfo != nil {
		return req.PatientInfo, nil
	}
	if e.Patients == nil {
		return &models.PatientInfo{}, nil
	}
	p, err := e.Patients.GetByID(ctx, req.PatientID)
	if err != nil {
		if errors.Is(err, patientRepo.ErrNotFound) {
			return &models.PatientInfo{}, nil
		}
		return nil, storeFault("patient lookup", err)
	}
	return models.InfoFromPatient(p), nil
}

func (e *Engine) emitTokenEvent(ctx context.Context, typ string, token *models.Token, sev events.Severity, meta map[string]string) {
	if e.Events == nil {
		return
	}
	if meta == nil {
		meta = make(map[string]string)
	}
	meta["slotId"] = token.SlotID
	meta["patientId"] = token.PatientID
	meta["source"] = string(token.Source)
	e.Events.Emit(ctx, events.Event{
		Type:          typ,
		TokenID:       token.TokenID,
		CorrelationID: utils.NewCorrelationID(),
		Severity:      sev,
		Metadata:      meta,
		OccurredAt:    time.Now().UTC(),
	})
}

// withJitter spreads a delay by ±50%.
func withJitter(d time.Duration) time.Duration {
	f := 0.5 + rand.Float64() // [0.5, 1.5)
	return time.Duration(float64(d) * f)
}
