package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// AuditPruner removes audit records older than a cutoff.
type AuditPruner interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Handlers bundles the task handlers with their dependencies.
type Handlers struct {
	Logger    *slog.Logger
	Mailer    MailSender
	Audit     AuditPruner
	Metrics   *Metrics
	Retention time.Duration
}

// HandleWelcomeEmail processes TaskTypeWelcomeEmail tasks.
func (h *Handlers) HandleWelcomeEmail(ctx context.Context, t *asynq.Task) error {
	track := h.Metrics.Track(t.Type())
	var payload WelcomeEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return track.End(asynq.SkipRetry)
	}
	subject := "Welcome to Pressroom"
	body := "Hi " + payload.Name + ",\n\nYour account is ready. Happy writing!\n"
	if err := h.Mailer.Send(ctx, payload.Email, subject, body); err != nil {
		h.Logger.Warn("welcome email", slog.Any("error", err))
		return track.End(err)
	}
	return track.End(nil)
}

// HandleAuditPrune processes TaskTypeAuditPrune tasks.
func (h *Handlers) HandleAuditPrune(ctx context.Context, t *asynq.Task) error {
	track := h.Metrics.Track(t.Type())
	var payload AuditPrunePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return track.End(asynq.SkipRetry)
	}
	cutoff := time.Now().Add(-h.Retention)
	removed, err := h.Audit.PruneBefore(ctx, cutoff)
	if err != nil {
		h.Logger.Error("audit prune", slog.Any("error", err))
		return track.End(err)
	}
	h.Logger.Info("audit prune complete",
		slog.Int64("removed", removed),
		slog.Time("cutoff", cutoff))
	return track.End(nil)
}
