package priority

import (
	"context"
	"testing"

	"github.com/Abraj743/opd-token-allocation-sub000/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubConfig map[string]int

func (s stubConfig) GetInt(_ context.Context, key string) (int, bool, error) {
	v, ok := s[key]
	return v, ok, nil
}

func newTestEngine() *Engine {
	return NewEngine(nil, zap.NewNop())
}

func TestComputeBaseScores(t *testing.T) {
	e := newTestEngine()
	cases := map[models.TokenSource]int{
		models.SourceEmergency: 1000,
		models.SourcePriority:  800,
		models.SourceFollowup:  600,
		models.SourceOnline:    400,
		models.SourceWalkin:    200,
	}
	for source, want := range cases {
		res, err := e.Compute(context.Background(), source, nil, 0)
		require.NoError(t, err, source)
		assert.Equal(t, want, res.BasePriority, source)
		assert.Equal(t, want, res.FinalPriority, source)
		assert.Empty(t, res.Adjustments, source)
	}
}

func TestComputeInvalidSource(t *testing.T) {
	e := newTestEngine()
	_, err := e.Compute(context.Background(), "carrier_pigeon", nil, 0)
	require.ErrorIs(t, err, ErrInvalidSource)
}

func TestWaitingTimeBoundaries(t *testing.T) {
	e := newTestEngine()
	cases := []struct {
		minutes int
		want    int
	}{
		{0, 0},
		{-30, 0}, // negative waiting clamps to zero
		{10, 8},
		{49, 39},
		{50, 40}, // proportional bonus capped at 40
		{59, 40},
		{60, 100},
		{119, 100},
		{120, 150},
		{179, 150},
		{180, 250},
		{600, 250},
	}
	for _, tc := range cases {
		res, err := e.Compute(context.Background(), models.SourceWalkin, nil, tc.minutes)
		require.NoError(t, err)
		assert.Equal(t, 200+tc.want, res.FinalPriority, "waiting %d", tc.minutes)
	}
}

func TestAgeBoundaries(t *testing.T) {
	e := newTestEngine()
	cases := []struct {
		age  int
		want int
	}{
		{0, 0},
		{5, 30},
		{12, 30},
		{13, 0},
		{64, 0},
		{65, 20},
		{79, 20},
		{80, 60},
	}
	for _, tc := range cases {
		res, err := e.Compute(context.Background(), models.SourceOnline, &models.PatientInfo{Age: tc.age}, 0)
		require.NoError(t, err)
		assert.Equal(t, 400+tc.want, res.FinalPriority, "age %d", tc.age)
	}
}

func TestConditionAdjustments(t *testing.T) {
	e := newTestEngine()
	info := &models.PatientInfo{
		MedicalHistory: models.MedicalHistory{
			Conditions: []string{"Diabetes", "Heart_Disease"},
		},
	}
	res, err := e.Compute(context.Background(), models.SourceWalkin, info, 0)
	require.NoError(t, err)
	// 2 conditions (+40), diabetes (+20), heart disease (+40).
	assert.Equal(t, 300, res.FinalPriority)

	labels := make([]string, 0, len(res.Adjustments))
	for _, a := range res.Adjustments {
		labels = append(labels, a.Label)
	}
	assert.Contains(t, labels, "conditions_2")
	assert.Contains(t, labels, "condition_diabetes")
	assert.Contains(t, labels, "condition_heart disease")
}

func TestUrgencyAndFlags(t *testing.T) {
	e := newTestEngine()
	info := &models.PatientInfo{
		UrgencyLevel:  "critical",
		IsPregnant:    true,
		HasDisability: true,
	}
	res, err := e.Compute(context.Background(), models.SourceOnline, info, 0)
	require.NoError(t, err)
	assert.Equal(t, 400+150+75+50, res.FinalPriority)
	assert.Equal(t, LevelMedium, res.Level)
}

func TestClampToMaxPriority(t *testing.T) {
	// The worst realistic patient sums to 1960 on the default base; an elevated
	// emergency base pushes the raw score past the cap.
	cfg := stubConfig{"priority.emergency.base_score": 1300}
	e := NewEngine(cfg, zap.NewNop())
	info := &models.PatientInfo{
		Age:            85,
		UrgencyLevel:   "emergency",
		IsPregnant:     true,
		HasDisability:  true,
		MedicalHistory: models.MedicalHistory{Critical: true, Chronic: true, Conditions: []string{"diabetes", "hypertension", "heart disease", "kidney disease"}},
	}
	res, err := e.Compute(context.Background(), models.SourceEmergency, info, 400)
	require.NoError(t, err)
	assert.Equal(t, MaxPriority, res.FinalPriority)
	assert.Equal(t, LevelEmergency, res.Level)

	// Same patient on the default base stays below the cap, unclamped.
	res, err = newTestEngine().Compute(context.Background(), models.SourceEmergency, info, 400)
	require.NoError(t, err)
	assert.Equal(t, 1960, res.FinalPriority)
}

func TestLevelBands(t *testing.T) {
	assert.Equal(t, LevelLow, LevelFor(0))
	assert.Equal(t, LevelLow, LevelFor(299))
	assert.Equal(t, LevelMedium, LevelFor(300))
	assert.Equal(t, LevelMedium, LevelFor(699))
	assert.Equal(t, LevelHigh, LevelFor(700))
	assert.Equal(t, LevelHigh, LevelFor(999))
	assert.Equal(t, LevelEmergency, LevelFor(1000))
}

func TestComputeDeterministic(t *testing.T) {
	e := newTestEngine()
	info := &models.PatientInfo{
		Age:            70,
		UrgencyLevel:   "urgent",
		MedicalHistory: models.MedicalHistory{Chronic: true, Conditions: []string{"hypertension"}},
	}
	first, err := e.Compute(context.Background(), models.SourceFollowup, info, 90)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := e.Compute(context.Background(), models.SourceFollowup, info, 90)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestBaseScoreOverride(t *testing.T) {
	cfg := stubConfig{"priority.online.base_score": 450}
	e := NewEngine(cfg, zap.NewNop())

	res, err := e.Compute(context.Background(), models.SourceOnline, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, 450, res.BasePriority)

	// Sources without an override keep their defaults.
	res, err = e.Compute(context.Background(), models.SourceWalkin, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, 200, res.BasePriority)
}
