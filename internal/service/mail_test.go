package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillbase/quillbase/internal/jobs"
	"github.com/quillbase/quillbase/internal/lifecycle"
	"github.com/quillbase/quillbase/internal/mail"
)

func TestMailService_Send(t *testing.T) {
	queue := &fakeQueue{}
	svc := NewMailService(queue)

	ack, err := svc.Send(context.Background(), "reset-password", &mail.Message{
		Subject:    "Reset your password",
		Recipients: []string{"ada@example.com"},
		Link:       "https://example.com/reset?token=abc",
	})
	require.NoError(t, err)
	assert.Equal(t, "Reset Password Email will be sent in the background", ack)

	require.Len(t, queue.jobs, 1)
	assert.Equal(t, jobs.StreamMail, queue.jobs[0].Stream)

	var queued mail.Message
	queue.decode(t, 0, &queued)
	assert.Equal(t, mail.KindResetPassword, queued.Kind)
}

func TestMailService_SendPlain(t *testing.T) {
	svc := NewMailService(&fakeQueue{})

	ack, err := svc.Send(context.Background(), "", &mail.Message{
		Subject:    "Hi",
		Recipients: []string{"ada@example.com"},
		Body:       "Hello",
	})
	require.NoError(t, err)
	assert.Equal(t, "Email will be sent in the background", ack)
}

func TestMailService_Rejects(t *testing.T) {
	tests := []struct {
		name string
		kind string
		msg  mail.Message
	}{
		{"unknown_kind", "newsletter", mail.Message{Subject: "s", Recipients: []string{"a@example.com"}, Body: "b"}},
		{"contact_kind", "contact-notification", mail.Message{Subject: "s", Recipients: []string{"a@example.com"}, Body: "b", Sender: "x"}},
		{"no_recipient", "", mail.Message{Subject: "s", Body: "b"}},
		{"missing_link", "welcome", mail.Message{Subject: "s", Recipients: []string{"a@example.com"}}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			queue := &fakeQueue{}
			msg := test.msg
			_, err := NewMailService(queue).Send(context.Background(), test.kind, &msg)
			requireKind(t, err, lifecycle.ErrValidation)
			assert.Empty(t, queue.jobs)
		})
	}
}

func TestMailService_QueueError(t *testing.T) {
	boom := errors.New("redis down")
	_, err := NewMailService(&fakeQueue{err: boom}).Send(context.Background(), "", &mail.Message{
		Subject:    "Hi",
		Recipients: []string{"ada@example.com"},
		Body:       "Hello",
	})
	require.ErrorIs(t, err, boom)
}
