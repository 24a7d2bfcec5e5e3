package notification

import (
	"context"

	"go.uber.org/zap"
)

// LogSink writes job events to the structured log. It is the default sink
// when no broker is configured.
type LogSink struct {
	log *zap.Logger
}

func NewLogSink(log *zap.Logger) *LogSink {
	return &LogSink{log: log.Named("notification")}
}

func (s *LogSink) Publish(_ context.Context, event Event) error {
	s.log.Info("job.completed",
		zap.String("job", event.Job),
		zap.String("run_id", event.RunID),
		zap.Time("occurred_at", event.OccurredAt),
		zap.Int("processed_count", event.ProcessedCount),
		zap.Int("billed_count", event.BilledCount),
		zap.Int("exempted_count", event.ExemptedCount),
		zap.String("total_billed", event.TotalBilled),
	)
	return nil
}
