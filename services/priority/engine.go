// Package priority computes the total-order priority score for an allocation
// request. Compute is pure with respect to its inputs; the only I/O is the
// memoized base-score override lookup.
package priority

import (
	"context"
	"errors"
	"fmt"

	"github.com/Abraj743/opd-token-allocation-sub000/models"

	"go.uber.org/zap"
)

// ErrInvalidSource is returned for an unknown booking source.
var ErrInvalidSource = errors.New("invalid token source")

// Level classifies a final priority score.
type Level string

const (
	LevelEmergency Level = "emergency"
	LevelHigh      Level = "high"
	LevelMedium    Level = "medium"
	LevelLow       Level = "low"
)

// Adjustment is one itemized contribution to the final score.
type Adjustment struct {
	Label string `json:"label"`
	Delta int    `json:"delta"`
}

// Result is the itemized outcome of a priority computation.
type Result struct {
	BasePriority  int          `json:"basePriority"`
	FinalPriority int          `json:"finalPriority"`
	Adjustments   []Adjustment `json:"adjustments"`
	Level         Level        `json:"level"`
}

// MaxPriority bounds the final score.
const MaxPriority = 2000

var defaultBaseScores = map[models.TokenSource]int{
	models.SourceEmergency: 1000,
	models.SourcePriority:  800,
	models.SourceFollowup:  600,
	models.SourceOnline:    400,
	models.SourceWalkin:    200,
}

// ConfigSource looks up dynamic configuration overrides.
type ConfigSource interface {
	GetInt(ctx context.Context, key string) (int, bool, error)
}

// Engine maps (source, patient attributes, waiting time) to a score and level.
type Engine struct {
	cfg    ConfigSource // nil disables overrides
	memo   *overrideCache
	logger *zap.Logger
}

// NewEngine builds a priority engine. cfg may be nil, in which case the
// default base scores are always used.
func NewEngine(cfg ConfigSource, logger *zap.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		memo:   newOverrideCache(),
		logger: logger,
	}
}

// Compute scores a request. Negative waiting time is clamped to zero; a nil
// info scores as a patient with no priority-relevant attributes.
func (e *Engine) Compute(ctx context.Context, source models.TokenSource, info *models.PatientInfo, waitingMinutes int) (*Result, error) {
	if !source.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSource, source)
	}
	if info == nil {
		info = &models.PatientInfo{}
	}
	if waitingMinutes < 0 {
		waitingMinutes = 0
	}

	base := e.baseScore(ctx, source)
	res := &Result{BasePriority: base, FinalPriority: base}

	in := ruleInput{Source: source, Info: info, WaitingMinutes: waitingMinutes}
	for _, rule := range adjustmentRules {
		for _, adj := range rule(in) {
			if adj.Delta == 0 {
				continue
			}
			res.Adjustments = append(res.Adjustments, adj)
			res.FinalPriority += adj.Delta
		}
	}

	if res.FinalPriority > MaxPriority {
		res.FinalPriority = MaxPriority
	}
	if res.FinalPriority < 0 {
		res.FinalPriority = 0
	}
	res.Level = LevelFor(res.FinalPriority)
	return res, nil
}

// LevelFor maps a score to its classification band.
func LevelFor(score int) Level {
	switch {
	case score >= 1000:
		return LevelEmergency
	case score >= 700:
		return LevelHigh
	case score >= 300:
		return LevelMedium
	default:
		return LevelLow
	}
}

// baseScore resolves the base priority for a source, preferring a dynamic
// override (priority.<source>.base_score) memoized for five minutes. Lookup
// failure falls back to the default.
func (e *Engine) baseScore(ctx context.Context, source models.TokenSource) int {
	def := defaultBaseScores[source]
	if e.cfg == nil {
		return def
	}

	key := fmt.Sprintf("priority.%s.base_score", source)
	if v, ok := e.memo.get(key); ok {
		return v
	}

	v, found, err := e.cfg.GetInt(ctx, key)
	if err != nil {
		e.logger.Warn("base score lookup failed, using default",
			zap.String("key", key), zap.Int("default", def), zap.Error(err))
		return def
	}
	if !found {
		v = def
	}
	e.memo.put(key, v)
	return v
}
