package mail

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/quillbase/quillbase/internal/jobs"
)

// JobKind is the job kind carrying a Message on the mail stream.
const JobKind = "mail.send"

// Mailer renders and sends messages. It is the mail stream's job handler.
type Mailer struct {
	renderer *Renderer
	sender   Sender
	logger   *slog.Logger
}

// NewMailer creates a Mailer.
func NewMailer(renderer *Renderer, sender Sender, logger *slog.Logger) *Mailer {
	return &Mailer{
		renderer: renderer,
		sender:   sender,
		logger:   logger.With("component", "mail"),
	}
}

// Deliver validates, renders and sends msg.
func (m *Mailer) Deliver(ctx context.Context, msg *Message) error {
	if err := msg.Validate(); err != nil {
		return jobs.Permanent(fmt.Errorf("invalid message: %w", err))
	}

	rendered, err := m.renderer.Render(msg)
	if err != nil {
		return jobs.Permanent(err)
	}

	if err := m.sender.Send(ctx, rendered); err != nil {
		if isPermanentSendError(err) {
			return jobs.Permanent(err)
		}
		return err
	}

	m.logger.Info("mail sent",
		"kind", msg.Kind,
		"recipients", len(msg.Recipients),
	)
	return nil
}

// HandleJob decodes a mail job and delivers it.
func (m *Mailer) HandleJob(ctx context.Context, job *jobs.Job) error {
	var msg Message
	if err := job.Decode(&msg); err != nil {
		return err
	}
	return m.Deliver(ctx, &msg)
}
