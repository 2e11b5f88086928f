package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidHHMM(t *testing.T) {
	valid := []string{"00:00", "9:30", "09:30", "23:59", "12:05"}
	for _, s := range valid {
		assert.True(t, ValidHHMM(s), s)
	}
	invalid := []string{"24:00", "12:60", "930", "9:3", "aa:bb", "", "12:5"}
	for _, s := range invalid {
		assert.False(t, ValidHHMM(s), s)
	}
}

func TestCompactHHMM(t *testing.T) {
	assert.Equal(t, "0930", CompactHHMM("9:30"))
	assert.Equal(t, "0930", CompactHHMM("09:30"))
	assert.Equal(t, "1400", CompactHHMM("14:00"))
}

func TestMinutesFromMidnight(t *testing.T) {
	assert.Equal(t, 0, MinutesFromMidnight("00:00"))
	assert.Equal(t, 570, MinutesFromMidnight("9:30"))
	assert.Equal(t, 1439, MinutesFromMidnight("23:59"))
	assert.Equal(t, -1, MinutesFromMidnight("25:00"))
}

func TestUTCMidnightAndSameDay(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	a := time.Date(2026, 8, 24, 3, 15, 0, 0, loc) // 21:45 UTC on the 23rd
	m := UTCMidnight(a)
	assert.Equal(t, time.Date(2026, 8, 23, 0, 0, 0, 0, time.UTC), m)
	assert.True(t, SameDay(a, time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)))
	assert.False(t, SameDay(a, time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)))
}

func TestSlotIDDeterministic(t *testing.T) {
	date := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	id := SlotID("doc_123", date, "9:30")
	assert.Equal(t, "slot_doc_123_2026-08-24_0930", id)
	assert.Equal(t, id, SlotID("doc_123", date, "09:30"))
}

func TestNewTokenID(t *testing.T) {
	id := NewTokenID(false)
	require.True(t, strings.HasPrefix(id, "token_"), id)
	parts := strings.Split(id, "_")
	require.Len(t, parts, 3)
	assert.Len(t, parts[2], 9)

	eid := NewTokenID(true)
	assert.True(t, strings.HasPrefix(eid, "emergency_"), eid)

	assert.NotEqual(t, id, NewTokenID(false))
}
