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
	"github.com/quillbase/quillbase/internal/model"
)

func newContactService(t *testing.T, queue Enqueuer, cfg ContactConfig) *ContactService {
	t.Helper()
	contacts := lifecycle.NewMemoryStore(model.CloneContact)
	messages := lifecycle.NewMemoryStore(model.CloneContactMessage)
	return NewContactService(contacts, messages, testPolicies(t), queue, cfg, Deps{})
}

func TestContactService_SuperuserOnlyCards(t *testing.T) {
	ctx := context.Background()
	svc := newContactService(t, nil, ContactConfig{})

	in := ContactInput{Phone: "+44 20 7946 0000", Address: "1 Fleet Street", MapCoordinates: "51.51,-0.11"}

	_, err := svc.CreateContact(ctx, alice, in)
	requireKind(t, err, lifecycle.ErrForbidden)

	card, err := svc.CreateContact(ctx, root, in)
	require.NoError(t, err)

	got, err := svc.GetContact(ctx, card.ID)
	require.NoError(t, err)
	assert.Equal(t, "1 Fleet Street", got.Address)

	_, err = svc.UpdateContact(ctx, alice, card.ID, ContactPatch{Phone: lifecycle.Some("0")})
	requireKind(t, err, lifecycle.ErrForbidden)

	updated, err := svc.UpdateContact(ctx, root, card.ID, ContactPatch{Address: lifecycle.Some(" 2 Fleet Street ")})
	require.NoError(t, err)
	assert.Equal(t, "2 Fleet Street", updated.Address)
	assert.Equal(t, in.Phone, updated.Phone)

	page, err := svc.ListContacts(ctx, ListInput{})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)

	requireKind(t, svc.DeleteContact(ctx, alice, card.ID), lifecycle.ErrForbidden)
	require.NoError(t, svc.DeleteContact(ctx, root, card.ID))

	_, err = svc.GetContact(ctx, card.ID)
	requireKind(t, err, lifecycle.ErrNotFound)
}

func TestContactService_CardValidation(t *testing.T) {
	svc := newContactService(t, nil, ContactConfig{})

	_, err := svc.CreateContact(context.Background(), root, ContactInput{Address: "somewhere"})
	requireKind(t, err, lifecycle.ErrValidation)
}

func TestContactService_SubmitMessage(t *testing.T) {
	ctx := context.Background()
	queue := &fakeQueue{}
	svc := newContactService(t, queue, ContactConfig{AdminEmail: "admin@example.com"})

	msg, err := svc.SubmitMessage(ctx, anon, MessageInput{
		Name:    "Ada",
		Email:   "Ada@Example.com",
		Subject: "Hello",
		Message: "Is anyone there?",
	})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", msg.Email)
	assert.Empty(t, msg.OwnerID)

	require.Len(t, queue.jobs, 2)
	for _, job := range queue.jobs {
		assert.Equal(t, jobs.StreamMail, job.Stream)
		assert.Equal(t, mail.JobKind, job.Kind)
	}

	var ack, notice mail.Message
	queue.decode(t, 0, &ack)
	queue.decode(t, 1, &notice)

	assert.Equal(t, mail.KindContactAcknowledged, ack.Kind)
	assert.Equal(t, []string{"ada@example.com"}, ack.Recipients)
	require.NoError(t, ack.Validate())

	assert.Equal(t, mail.KindContactNotification, notice.Kind)
	assert.Equal(t, []string{"admin@example.com"}, notice.Recipients)
	assert.Equal(t, "ada@example.com", notice.ReplyTo)
	assert.Equal(t, "New contact message: Hello", notice.Subject)
	require.NoError(t, notice.Validate())
}

func TestContactService_SubmitMessageWithoutAdmin(t *testing.T) {
	queue := &fakeQueue{}
	svc := newContactService(t, queue, ContactConfig{})

	_, err := svc.SubmitMessage(context.Background(), bob, MessageInput{Name: "Bob", Email: "bob@example.com", Message: "hi"})
	require.NoError(t, err)
	require.Len(t, queue.jobs, 1)
}

func TestContactService_QueueFailureKeepsMessage(t *testing.T) {
	ctx := context.Background()
	queue := &fakeQueue{err: errors.New("redis down")}
	svc := newContactService(t, queue, ContactConfig{AdminEmail: "admin@example.com"})

	msg, err := svc.SubmitMessage(ctx, anon, MessageInput{Name: "Ada", Email: "ada@example.com", Message: "hi"})
	require.NoError(t, err)

	got, err := svc.GetMessage(ctx, root, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "hi", got.Message)
}

func TestContactService_MessageValidation(t *testing.T) {
	svc := newContactService(t, nil, ContactConfig{})

	tests := []struct {
		name string
		in   MessageInput
	}{
		{"missing_name", MessageInput{Email: "a@example.com", Message: "hi"}},
		{"bad_email", MessageInput{Name: "A", Email: "nope", Message: "hi"}},
		{"missing_message", MessageInput{Name: "A", Email: "a@example.com"}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := svc.SubmitMessage(context.Background(), anon, test.in)
			requireKind(t, err, lifecycle.ErrValidation)
		})
	}
}

func TestContactService_MessagesAreSuperuserOnly(t *testing.T) {
	ctx := context.Background()
	svc := newContactService(t, nil, ContactConfig{})

	msg, err := svc.SubmitMessage(ctx, alice, MessageInput{Name: "Alice", Email: "alice@example.com", Message: "hi"})
	require.NoError(t, err)

	_, err = svc.GetMessage(ctx, alice, msg.ID)
	requireKind(t, err, lifecycle.ErrForbidden)

	_, err = svc.ListMessages(ctx, alice, ListInput{})
	requireKind(t, err, lifecycle.ErrForbidden)

	requireKind(t, svc.DeleteMessage(ctx, alice, msg.ID), lifecycle.ErrForbidden)

	page, err := svc.ListMessages(ctx, root, ListInput{})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)

	require.NoError(t, svc.DeleteMessage(ctx, root, msg.ID))
	_, err = svc.GetMessage(ctx, root, msg.ID)
	requireKind(t, err, lifecycle.ErrNotFound)
}
