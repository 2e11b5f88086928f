package models

import (
	"strings"
	"time"
)

// SlotType distinguishes how a schedule window's seats are intended to be used.
type SlotType string

const (
	SlotTypeRegular           SlotType = "regular"
	SlotTypeEmergencyReserved SlotType = "emergency_reserved"
	SlotTypeVIP               SlotType = "vip"
)

// ScheduleWindow is one recurring consultation window inside a weekly schedule.
type ScheduleWindow struct {
	StartTime   string   `bson:"startTime" json:"startTime"` // "HH:MM"
	EndTime     string   `bson:"endTime" json:"endTime"`
	MaxCapacity int      `bson:"maxCapacity" json:"maxCapacity"`
	SlotType    SlotType `bson:"slotType" json:"slotType"`
}

// DoctorSchedule is a doctor's weekly recurring template. It is authored
// out-of-band and consumed read-only by the slot lifecycle engine.
type DoctorSchedule struct {
	DoctorID           string                      `bson:"doctorId" json:"doctorId"`
	Department         string                      `bson:"department" json:"department"`
	WeeklySchedule     map[string][]ScheduleWindow `bson:"weeklySchedule" json:"weeklySchedule"` // keyed by lowercase weekday name
	IsActive           bool                        `bson:"isActive" json:"isActive"`
	EffectiveFrom      time.Time                   `bson:"effectiveFrom" json:"effectiveFrom"`
	EffectiveTo        *time.Time                  `bson:"effectiveTo,omitempty" json:"effectiveTo,omitempty"` // nil = open-ended
	EmergencyAvailable bool                        `bson:"emergencyAvailable" json:"emergencyAvailable"`
}

// WindowsFor returns the schedule windows for the weekday of the given date,
// or nil when the schedule does not cover that date.
func (ds *DoctorSchedule) WindowsFor(date time.Time) []ScheduleWindow {
	if !ds.IsActive {
		return nil
	}
	if date.Before(ds.EffectiveFrom) {
		return nil
	}
	if ds.EffectiveTo != nil && date.After(*ds.EffectiveTo) {
		return nil
	}
	return ds.WeeklySchedule[strings.ToLower(date.Weekday().String())]
}
