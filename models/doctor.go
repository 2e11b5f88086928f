package models

// Doctor holds the subset of a doctor profile the engine reads. Full profile
// validation belongs to the host system.
type Doctor struct {
	DoctorID   string `bson:"doctorId" json:"doctorId"`
	Name       string `bson:"name" json:"name"`
	Department string `bson:"department" json:"department"`
	IsActive   bool   `bson:"isActive" json:"isActive"`
}

// DoctorWorkload summarizes a doctor's load on a date, for alternative ranking.
type DoctorWorkload struct {
	CurrentPatients int     `json:"currentPatients"`
	AvailableSlots  int     `json:"availableSlots"`
	UtilizationRate float64 `json:"utilizationRate"`
}
