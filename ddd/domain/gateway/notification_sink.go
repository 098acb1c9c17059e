package gateway

import (
	"context"

	"streaming-engine/ddd/domain/vo"
)

// NotificationSink receives the outcome of a job. Delivery is best effort.
type NotificationSink interface {
	Notify(ctx context.Context, target string, outcome vo.JobOutcome) error
}
