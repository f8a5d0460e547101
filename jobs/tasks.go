package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskDashboardWarmup recomputes the cached dashboard metrics.
	TaskDashboardWarmup = "dashboard:warmup"

	// DashboardWarmupCron refreshes the dashboard every five minutes.
	DashboardWarmupCron = "*/5 * * * *"

	warmupUniqueTTL = 30 * time.Second
)

// DashboardWarmupPayload records why a warm-up was requested.
type DashboardWarmupPayload struct {
	Reason string `json:"reason"`
}

// NewDashboardWarmupTask constructs an Asynq task.
func NewDashboardWarmupTask(reason string) (*asynq.Task, error) {
	if reason == "" {
		reason = "manual"
	}
	data, err := json.Marshal(DashboardWarmupPayload{Reason: reason})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDashboardWarmup, data), nil
}
