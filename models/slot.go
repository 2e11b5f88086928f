package models

import "time"

// SlotStatus is the lifecycle state of a slot.
type SlotStatus string

const (
	SlotStatusActive    SlotStatus = "active"
	SlotStatusSuspended SlotStatus = "suspended"
	SlotStatusCompleted SlotStatus = "completed"
)

// Valid reports whether the status is one of the known slot states.
func (s SlotStatus) Valid() bool {
	switch s {
	case SlotStatusActive, SlotStatusSuspended, SlotStatusCompleted:
		return true
	}
	return false
}

// SlotMetadata carries scheduling hints attached to a slot at generation time.
type SlotMetadata struct {
	AvgConsultMinutes int `bson:"avgConsultMinutes" json:"avgConsultMinutes"`
	BufferMinutes     int `bson:"bufferMinutes" json:"bufferMinutes"`
	EmergencyReserved int `bson:"emergencyReserved,omitempty" json:"emergencyReserved,omitempty"`
}

// Slot is a finite-capacity consultation window for one doctor on one date.
// CurrentAllocation and LastTokenNumber are owned by the capacity guard and
// must only be mutated through its conditional-update operations.
type Slot struct {
	SlotID            string       `bson:"slotId" json:"slotId"`
	DoctorID          string       `bson:"doctorId" json:"doctorId"`
	Department        string       `bson:"department" json:"department"`
	Date              time.Time    `bson:"date" json:"date"`           // UTC midnight
	StartTime         string       `bson:"startTime" json:"startTime"` // "HH:MM"
	EndTime           string       `bson:"endTime" json:"endTime"`
	MaxCapacity       int          `bson:"maxCapacity" json:"maxCapacity"`
	CurrentAllocation int          `bson:"currentAllocation" json:"currentAllocation"`
	LastTokenNumber   int          `bson:"lastTokenNumber" json:"lastTokenNumber"`
	Status            SlotStatus   `bson:"status" json:"status"`
	Metadata          SlotMetadata `bson:"metadata" json:"metadata"`
	CreatedAt         time.Time    `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time    `bson:"updatedAt" json:"updatedAt"`
}

// HasCapacity reports whether a seat can still be reserved without override.
func (s *Slot) HasCapacity() bool {
	return s.CurrentAllocation < s.MaxCapacity
}
