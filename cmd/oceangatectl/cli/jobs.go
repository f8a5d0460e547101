package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/oceangate/oceangate/jobs"
)

// JobTrigger enqueues the dashboard warmup.
type JobTrigger interface {
	EnqueueDashboardWarmup(ctx context.Context, reason string) (*asynq.TaskInfo, error)
}

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    JobTrigger
	inspector jobs.QueueInspector
}

// NewJobsCLI wires the helpers.
func NewJobsCLI(client JobTrigger, inspector jobs.QueueInspector) *JobsCLI {
	return &JobsCLI{client: client, inspector: inspector}
}

// Trigger enqueues a supported job by name. A nil TaskInfo with no error means
// an identical task was already queued.
func (c *JobsCLI) Trigger(ctx context.Context, name string) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	switch name {
	case "dashboard-warmup", jobs.TaskDashboardWarmup:
		return c.client.EnqueueDashboardWarmup(ctx, "cli")
	default:
		return nil, fmt.Errorf("jobs cli: unsupported job %s", name)
	}
}

// InspectQueue reports the default queue metrics.
func (c *JobsCLI) InspectQueue() (jobs.QueueStats, error) {
	if c == nil || c.inspector == nil {
		return jobs.QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	return jobs.Stats(c.inspector)
}
