package notification

import (
	"context"
	"time"
)

// Event is the structured "job completed" notification each scheduler job
// emits. Delivery mechanics are a collaborator concern; sinks must be
// fire-and-forget from the job's point of view.
type Event struct {
	Job            string    `json:"job"`
	RunID          string    `json:"run_id"`
	OccurredAt     time.Time `json:"occurred_at"`
	ProcessedCount int       `json:"processed_count"`
	BilledCount    int       `json:"billed_count,omitempty"`
	ExemptedCount  int       `json:"exempted_count,omitempty"`
	TotalBilled    string    `json:"total_billed,omitempty"`
}

type Sink interface {
	Publish(ctx context.Context, event Event) error
}
