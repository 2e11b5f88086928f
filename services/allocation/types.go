// File: services/allocation/types.go
package allocation

import (
	"time"

	"github.com/Abraj743/opd-token-allocation-sub000/models"
	"github.com/Abraj743/opd-token-allocation-sub000/services/priority"
)

// Method is how an allocation was satisfied.
type Method string

const (
	MethodDirect           Method = "direct"
	MethodPreemption       Method = "preemption"
	MethodCapacityOverride Method = "capacity_override"
	MethodDepartmentSmart  Method = "department_smart"
)

// Department-smart placement strategies, reported inside DepartmentInfo.
const (
	StrategyPreferredSlot     = "preferred_slot"
	StrategyPreferredDoctor   = "preferred_doctor"
	StrategyLeastLoaded       = "least_loaded"
	StrategyAutoGeneratedNext = "auto_generated_next_available"
)

// Request is an allocation request. A non-empty SlotID makes it targeted;
// otherwise Department drives smart placement.
type Request struct {
	PatientID      string              `json:"patientId"`
	DoctorID       string              `json:"doctorId,omitempty"`
	SlotID         string              `json:"slotId,omitempty"`
	Department     string              `json:"department,omitempty"`
	Source         models.TokenSource  `json:"source"`
	PatientInfo    *models.PatientInfo `json:"patientInfo,omitempty"`
	WaitingMinutes int                 `json:"waitingMinutes,omitempty"`

	// Department-smart hints.
	PreferredDate     *time.Time `json:"preferredDate,omitempty"`
	PreferredDoctorID string     `json:"preferredDoctorId,omitempty"`
	PreferredSlotID   string     `json:"preferredSlotId,omitempty"`
}

// Targeted reports whether the request names a specific slot.
func (r *Request) Targeted() bool { return r.SlotID != "" }

// DepartmentInfo describes how department-smart placement chose its slot.
type DepartmentInfo struct {
	Department   string `json:"department"`
	Strategy     string `json:"strategy"`
	DoctorID     string `json:"doctorId"`
	Date         string `json:"date"`
	DaysSearched int    `json:"daysSearched"`
}

// Result is a successful allocation.
type Result struct {
	Token             *models.Token    `json:"token"`
	Method            Method           `json:"allocationMethod"`
	PreemptedTokenIDs []string         `json:"preemptedTokens,omitempty"`
	Priority          *priority.Result `json:"priority,omitempty"`
	DepartmentInfo    *DepartmentInfo  `json:"departmentInfo,omitempty"`
}

// SlotAlternative is one substitute slot with its doctor's workload for
// client-side ranking.
type SlotAlternative struct {
	Slot     models.Slot           `json:"slot"`
	Workload models.DoctorWorkload `json:"doctorWorkload"`
}

// Alternatives is the structured envelope returned when direct allocation fails.
type Alternatives struct {
	SameDoctorFutureSlots      []SlotAlternative `json:"sameDoctorFutureSlots,omitempty"`
	SameDepartmentOtherDoctors []SlotAlternative `json:"sameDepartmentOtherDoctors,omitempty"`
	NextAvailableSlots         []SlotAlternative `json:"nextAvailableSlots,omitempty"`
	RecommendedAction          string            `json:"recommendedAction,omitempty"`
}

// Empty reports whether no substitute slots were found at all.
func (a *Alternatives) Empty() bool {
	return a == nil ||
		(len(a.SameDoctorFutureSlots) == 0 &&
			len(a.SameDepartmentOtherDoctors) == 0 &&
			len(a.NextAvailableSlots) == 0)
}
