package memory

import (
	doctorRepo "github.com/Abraj743/opd-token-allocation-sub000/database/repository/doctor"
	patientRepo "github.com/Abraj743/opd-token-allocation-sub000/database/repository/patient"
	scheduleRepo "github.com/Abraj743/opd-token-allocation-sub000/database/repository/schedule"
)

// The in-memory views return the same sentinels as the Mongo repositories so
// callers can match errors without caring which implementation is wired.
var (
	errScheduleNotFound = scheduleRepo.ErrNotFound
	errDoctorNotFound   = doctorRepo.ErrNotFound
	errPatientNotFound  = patientRepo.ErrNotFound
)
