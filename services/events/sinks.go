package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// ZapSink writes events to the structured log. It is the default sink.
type ZapSink struct {
	Logger *zap.Logger
}

func (s *ZapSink) Emit(_ context.Context, ev Event) {
	fields := []zap.Field{
		zap.String("tokenId", ev.TokenID),
		zap.String("correlationId", ev.CorrelationID),
		zap.String("severity", string(ev.Severity)),
		zap.Any("metadata", ev.Metadata),
	}
	switch ev.Severity {
	case SeverityHigh:
		s.Logger.Warn(ev.Type, fields...)
	default:
		s.Logger.Info(ev.Type, fields...)
	}
}

// TypeEventEmit is the asynq task type carrying engine events.
const TypeEventEmit = "event:emit"

// AsynqSink publishes events onto a redis-backed queue for the host to
// consume, falling back to the log on enqueue failure.
type AsynqSink struct {
	Client *asynq.Client
	Logger *zap.Logger
}

func (s *AsynqSink) Emit(ctx context.Context, ev Event) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		s.Logger.Error("event marshal failed", zap.String("type", ev.Type), zap.Error(err))
		return
	}
	if _, err := s.Client.EnqueueContext(ctx, asynq.NewTask(TypeEventEmit, payload)); err != nil {
		s.Logger.Warn("event enqueue failed, logging instead",
			zap.String("type", ev.Type), zap.Error(err))
		(&ZapSink{Logger: s.Logger}).Emit(ctx, ev)
	}
}

// MultiSink fans one event out to several sinks.
type MultiSink []Sink

func (m MultiSink) Emit(ctx context.Context, ev Event) {
	for _, s := range m {
		s.Emit(ctx, ev)
	}
}
