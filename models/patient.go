package models

// MedicalHistory is the priority-relevant part of a patient's record.
type MedicalHistory struct {
	Critical   bool     `bson:"critical" json:"critical"`
	Chronic    bool     `bson:"chronic" json:"chronic"`
	Conditions []string `bson:"conditions,omitempty" json:"conditions,omitempty"`
}

// Patient holds the subset of a patient profile the engine reads.
type Patient struct {
	PatientID         string         `bson:"patientId" json:"patientId"`
	Name              string         `bson:"name" json:"name"`
	Age               int            `bson:"age" json:"age"`
	MedicalHistory    MedicalHistory `bson:"medicalHistory" json:"medicalHistory"`
	IsPregnant        bool           `bson:"isPregnant,omitempty" json:"isPregnant,omitempty"`
	HasDisability     bool           `bson:"hasDisability,omitempty" json:"hasDisability,omitempty"`
	LastVisitedDoctor string         `bson:"lastVisitedDoctor,omitempty" json:"lastVisitedDoctor,omitempty"`
}

// PatientInfo is the request-time view of patient attributes the priority
// engine scores. When absent from a request it is derived from the stored
// Patient record.
type PatientInfo struct {
	Age               int            `json:"age"`
	MedicalHistory    MedicalHistory `json:"medicalHistory"`
	UrgencyLevel      string         `json:"urgencyLevel,omitempty"` // emergency|critical|urgent|moderate
	IsPregnant        bool           `json:"isPregnant,omitempty"`
	HasDisability     bool           `json:"hasDisability,omitempty"`
	FollowupUrgency   string         `json:"followupUrgency,omitempty"` // urgent|moderate|routine
	LastVisitedDoctor string         `json:"lastVisitedDoctor,omitempty"`
}

// InfoFromPatient derives request-time attributes from a stored profile.
func InfoFromPatient(p *Patient) *PatientInfo {
	if p == nil {
		return &PatientInfo{}
	}
	return &PatientInfo{
		Age:               p.Age,
		MedicalHistory:    p.MedicalHistory,
		IsPregnant:        p.IsPregnant,
		HasDisability:     p.HasDisability,
		LastVisitedDoctor: p.LastVisitedDoctor,
	}
}
