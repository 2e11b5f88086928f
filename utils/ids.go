package utils

import (
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

// base36Suffix derives a 9 character base36 string from a fresh UUID.
func base36Suffix() string {
	id := uuid.New()
	n := new(big.Int).SetBytes(id[:])
	s := n.Text(36)
	for len(s) < 9 {
		s = "0" + s
	}
	return s[:9]
}

// NewTokenID mints a token id: token_<unixMs>_<suffix>, with the emergency_
// prefix for emergency tokens.
func NewTokenID(emergency bool) string {
	prefix := "token"
	if emergency {
		prefix = "emergency"
	}
	return fmt.Sprintf("%s_%d_%s", prefix, time.Now().UnixMilli(), base36Suffix())
}

// SlotID builds the deterministic slot id slot_<doctorId>_<date>_<HHMM>.
// The same doctor, day and start time always map to the same id, which is
// what makes slot generation idempotent.
func SlotID(doctorID string, date time.Time, startTime string) string {
	return fmt.Sprintf("slot_%s_%s_%s", doctorID, FormatDate(date), CompactHHMM(startTime))
}

// NewCorrelationID returns an id for tying an event back to its request.
func NewCorrelationID() string {
	return uuid.NewString()
}
