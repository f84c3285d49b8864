package service

import (
	"context"

	"github.com/quillbase/quillbase/internal/jobs"
	"github.com/quillbase/quillbase/internal/lifecycle"
	"github.com/quillbase/quillbase/internal/mail"
)

const kindEmail = "email"

// MailService validates send requests and hands them to the mail worker.
type MailService struct {
	queue Enqueuer
}

// NewMailService creates a MailService.
func NewMailService(queue Enqueuer) *MailService {
	return &MailService{queue: queue}
}

// Send queues msg rendered with the template named by kind, "" meaning
// plain. It returns the acknowledgement shown to the caller.
func (s *MailService) Send(ctx context.Context, kind string, msg *mail.Message) (string, error) {
	k, err := mail.ParseKind(kind)
	if err != nil {
		return "", lifecycle.Invalid(kindEmail, "%s", err.Error())
	}
	msg.Kind = k

	if err := msg.Validate(); err != nil {
		return "", lifecycle.Invalid(kindEmail, "%s", err.Error())
	}

	if _, err := s.queue.Enqueue(ctx, jobs.StreamMail, mail.JobKind, msg); err != nil {
		return "", err
	}
	return k.QueuedMessage(), nil
}
