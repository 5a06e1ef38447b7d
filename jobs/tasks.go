package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeWelcomeEmail is the task type for post-signup welcome mail.
	TaskTypeWelcomeEmail = "mail:welcome"
	// TaskTypeAuditPrune trims audit_logs past the retention window.
	TaskTypeAuditPrune = "audit:prune"
)

// WelcomeEmailPayload describes the welcome email recipient.
type WelcomeEmailPayload struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// NewWelcomeEmailTask constructs an Asynq task.
func NewWelcomeEmailTask(payload WelcomeEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeWelcomeEmail, data, asynq.Queue(QueueDefault)), nil
}

// AuditPrunePayload carries scheduling metadata.
type AuditPrunePayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewAuditPruneTask constructs an Asynq task for audit retention.
func NewAuditPruneTask(at time.Time) (*asynq.Task, error) {
	data, err := json.Marshal(AuditPrunePayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeAuditPrune, data, asynq.Queue(QueueDefault)), nil
}
