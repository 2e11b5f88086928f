// Package memory provides in-memory repository implementations backed by a
// single mutex. They preserve the conditional-update semantics of the Mongo
// repositories and exist for engine tests; the engine itself never hard-deletes.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Abraj743/opd-token-allocation-sub000/models"
)

// Store owns every in-memory collection. One lock covers all of them so each
// repository method is a linearizable read-modify-write, mirroring a
// conditional UpdateOne.
type Store struct {
	mu        sync.Mutex
	slots     map[string]*models.Slot
	tokens    map[string]*models.Token
	schedules map[string]*models.DoctorSchedule
	doctors   map[string]*models.Doctor
	patients  map[string]*models.Patient
	configs   map[string]int
}

// NewStore returns an empty in-memory store.
func NewStore() *Store {
	return &Store{
		slots:     make(map[string]*models.Slot),
		tokens:    make(map[string]*models.Token),
		schedules: make(map[string]*models.DoctorSchedule),
		doctors:   make(map[string]*models.Doctor),
		patients:  make(map[string]*models.Patient),
		configs:   make(map[string]int),
	}
}

// SeedSchedule stores a doctor schedule.
func (s *Store) SeedSchedule(sched models.DoctorSchedule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := sched
	s.schedules[sched.DoctorID] = &cp
}

// SeedDoctor stores a doctor record.
func (s *Store) SeedDoctor(d models.Doctor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := d
	s.doctors[d.DoctorID] = &cp
}

// SeedPatient stores a patient record.
func (s *Store) SeedPatient(p models.Patient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := p
	s.patients[p.PatientID] = &cp
}

// SeedConfig stores a dynamic configuration value.
func (s *Store) SeedConfig(key string, value int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[key] = value
}

// SchedulesRepo exposes the schedule repository view.
func (s *Store) SchedulesRepo() *ScheduleStore { return &ScheduleStore{s} }

// DoctorsRepo exposes the doctor repository view.
func (s *Store) DoctorsRepo() *DoctorStore { return &DoctorStore{s} }

// PatientsRepo exposes the patient repository view.
func (s *Store) PatientsRepo() *PatientStore { return &PatientStore{s} }

// ConfigsRepo exposes the configuration repository view.
func (s *Store) ConfigsRepo() *ConfigStore { return &ConfigStore{s} }

// SlotsRepo exposes the slot repository view.
func (s *Store) SlotsRepo() *SlotStore { return &SlotStore{s} }

// TokensRepo exposes the token repository view.
func (s *Store) TokensRepo() *TokenStore { return &TokenStore{s} }

// ScheduleStore implements scheduleRepo.ScheduleRepository.
type ScheduleStore struct{ s *Store }

func (r *ScheduleStore) GetByDoctorID(_ context.Context, doctorID string) (*models.DoctorSchedule, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sched, ok := r.s.schedules[doctorID]
	if !ok {
		return nil, errScheduleNotFound
	}
	cp := *sched
	return &cp, nil
}

func (r *ScheduleStore) ActiveForDate(_ context.Context, date time.Time) ([]models.DoctorSchedule, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.DoctorSchedule
	for _, sched := range r.s.schedules {
		if !sched.IsActive {
			continue
		}
		if date.Before(sched.EffectiveFrom) {
			continue
		}
		if sched.EffectiveTo != nil && date.After(*sched.EffectiveTo) {
			continue
		}
		out = append(out, *sched)
	}
	return out, nil
}

// DoctorStore implements doctorRepo.DoctorRepository.
type DoctorStore struct{ s *Store }

func (r *DoctorStore) GetByID(_ context.Context, doctorID string) (*models.Doctor, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.doctors[doctorID]
	if !ok {
		return nil, errDoctorNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *DoctorStore) ListActiveByDepartment(_ context.Context, department string) ([]models.Doctor, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Doctor
	for _, d := range r.s.doctors {
		if d.IsActive && d.Department == department {
			out = append(out, *d)
		}
	}
	return out, nil
}

// PatientStore implements patientRepo.PatientRepository.
type PatientStore struct{ s *Store }

func (r *PatientStore) GetByID(_ context.Context, patientID string) (*models.Patient, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.patients[patientID]
	if !ok {
		return nil, errPatientNotFound
	}
	cp := *p
	return &cp, nil
}

// ConfigStore implements configRepo.ConfigRepository.
type ConfigStore struct{ s *Store }

func (r *ConfigStore) GetInt(_ context.Context, key string) (int, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	v, ok := r.s.configs[key]
	return v, ok, nil
}
