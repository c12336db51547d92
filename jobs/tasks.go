package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/smtp"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeMigrateLegacy is the task type for the legacy role label
	// migration sweep.
	TaskTypeMigrateLegacy = "authz:migrate"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// NewMigrateLegacyTask constructs the migration sweep task.
func NewMigrateLegacyTask() *asynq.Task {
	return asynq.NewTask(TaskTypeMigrateLegacy, nil)
}

// Mailer sends transactional mail.
type Mailer struct {
	Addr string
	From string
}

// NewSendEmailHandler returns the handler for TaskTypeSendEmail.
func NewSendEmailHandler(mailer Mailer, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload SendEmailPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
			mailer.From, payload.To, payload.Subject, payload.Body)
		if err := smtp.SendMail(mailer.Addr, nil, mailer.From, []string{payload.To}, []byte(msg)); err != nil {
			if logger != nil {
				logger.Error("send email", slog.String("to", payload.To), slog.Any("error", err))
			}
			return err
		}
		return nil
	}
}

// LegacyMigrator runs the legacy-label migration sweep.
type LegacyMigrator interface {
	MigrateLegacy(ctx context.Context, actorID int64) (int, error)
}

// NewMigrateLegacyHandler returns the handler for TaskTypeMigrateLegacy.
// Migration is idempotent, so a retried task never double-binds or
// double-audits a user.
func NewMigrateLegacyHandler(migrator LegacyMigrator, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		migrated, err := migrator.MigrateLegacy(ctx, 0)
		if err != nil {
			return err
		}
		if logger != nil && migrated > 0 {
			logger.Info("legacy role migration sweep", slog.Int("migrated", migrated))
		}
		return nil
	}
}
