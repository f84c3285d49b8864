package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/quillbase/quillbase/internal/jobs"
	"github.com/quillbase/quillbase/internal/lifecycle"
	"github.com/quillbase/quillbase/internal/mail"
	"github.com/quillbase/quillbase/internal/model"
)

// ContactConfig configures contact-us notifications.
type ContactConfig struct {
	// AdminEmail receives a notification per message; empty disables it.
	AdminEmail string
}

// ContactService handles contact cards and contact-us messages.
type ContactService struct {
	contacts *lifecycle.Manager[*model.Contact]
	messages *lifecycle.Manager[*model.ContactMessage]
	queue    Enqueuer
	cfg      ContactConfig
	logger   *slog.Logger
}

// NewContactService creates a ContactService. A nil queue disables the
// contact-us e-mails.
func NewContactService(
	contacts lifecycle.Store[*model.Contact],
	messages lifecycle.Store[*model.ContactMessage],
	policies Policies,
	queue Enqueuer,
	cfg ContactConfig,
	deps Deps,
) *ContactService {
	s := &ContactService{
		queue:  queue,
		cfg:    cfg,
		logger: deps.logger().With("component", "contact_service"),
	}

	s.contacts = lifecycle.NewManager(model.KindContact, contacts, policies[model.KindContact],
		managerOptions(deps, lifecycle.WithValidator(validateContact))...)

	msgOpts := []lifecycle.Option[*model.ContactMessage]{lifecycle.WithValidator(validateMessage)}
	if queue != nil {
		msgOpts = append(msgOpts, lifecycle.WithHook[*model.ContactMessage](s.notifyMessage))
	}
	s.messages = lifecycle.NewManager(model.KindContactMessage, messages, policies[model.KindContactMessage],
		managerOptions(deps, msgOpts...)...)

	return s
}

func validateContact(c *model.Contact) error {
	if err := requireText(model.KindContact, "phone", c.Phone, maxContactField); err != nil {
		return err
	}
	if err := requireText(model.KindContact, "address", c.Address, maxContactField); err != nil {
		return err
	}
	return checkLength(model.KindContact, "map_coordinates", c.MapCoordinates, maxMapCoordinates)
}

func validateMessage(m *model.ContactMessage) error {
	if err := requireText(model.KindContactMessage, "name", m.Name, maxNameLength); err != nil {
		return err
	}
	if err := checkLength(model.KindContactMessage, "subject", m.Subject, maxHeadingLength); err != nil {
		return err
	}
	return requireText(model.KindContactMessage, "message", m.Message, maxMessageLength)
}

// ContactInput is the content of a contact card.
type ContactInput struct {
	Phone          string
	Address        string
	MapCoordinates string
}

// ContactPatch lists the contact fields to change.
type ContactPatch struct {
	Phone          lifecycle.Opt[string]
	Address        lifecycle.Opt[string]
	MapCoordinates lifecycle.Opt[string]
}

// CreateContact adds a contact card.
func (s *ContactService) CreateContact(ctx context.Context, acct lifecycle.Account, in ContactInput) (*model.Contact, error) {
	c := &model.Contact{
		Phone:          normalizeText(in.Phone),
		Address:        normalizeText(in.Address),
		MapCoordinates: normalizeText(in.MapCoordinates),
	}
	return s.contacts.Create(ctx, acct, c, "")
}

// GetContact returns a contact card. Contact cards are public.
func (s *ContactService) GetContact(ctx context.Context, id string) (*model.Contact, error) {
	return s.contacts.FetchByID(ctx, id, "")
}

// ListContacts pages through the contact cards.
func (s *ContactService) ListContacts(ctx context.Context, in ListInput) (lifecycle.Page[*model.Contact], error) {
	return s.contacts.List(ctx, lifecycle.Query{}, in.Cursor, in.limit())
}

// UpdateContact changes the set fields of a contact card.
func (s *ContactService) UpdateContact(ctx context.Context, acct lifecycle.Account, id string, p ContactPatch) (*model.Contact, error) {
	patch := lifecycle.Patch[*model.Contact]{
		model.ContactPhone.To(normalizeOpt(p.Phone)),
		model.ContactAddress.To(normalizeOpt(p.Address)),
		model.ContactMapCoordinates.To(normalizeOpt(p.MapCoordinates)),
	}
	return s.contacts.Update(ctx, id, acct, patch)
}

// DeleteContact removes a contact card.
func (s *ContactService) DeleteContact(ctx context.Context, acct lifecycle.Account, id string) error {
	return s.contacts.Delete(ctx, id, acct)
}

// MessageInput is a contact-us submission.
type MessageInput struct {
	Name    string
	Email   string
	Subject string
	Message string
}

// SubmitMessage stores a contact-us message from any caller, anonymous
// included, and queues the acknowledgement and admin notification.
func (s *ContactService) SubmitMessage(ctx context.Context, acct lifecycle.Account, in MessageInput) (*model.ContactMessage, error) {
	email, err := normalizeEmail(model.KindContactMessage, in.Email)
	if err != nil {
		return nil, err
	}
	msg := &model.ContactMessage{
		Name:    normalizeText(in.Name),
		Email:   email,
		Subject: normalizeText(in.Subject),
		Message: in.Message,
	}
	return s.messages.Create(ctx, acct, msg, "")
}

// GetMessage returns a contact-us message. Only elevated callers may read
// them.
func (s *ContactService) GetMessage(ctx context.Context, acct lifecycle.Account, id string) (*model.ContactMessage, error) {
	if !acct.Elevated {
		return nil, lifecycle.Forbidden(model.KindContactMessage, id, "superuser required")
	}
	return s.messages.FetchByID(ctx, id, "")
}

// ListMessages pages through contact-us messages for elevated callers.
func (s *ContactService) ListMessages(ctx context.Context, acct lifecycle.Account, in ListInput) (lifecycle.Page[*model.ContactMessage], error) {
	if !acct.Elevated {
		return lifecycle.Page[*model.ContactMessage]{}, lifecycle.Forbidden(model.KindContactMessage, "", "superuser required")
	}
	return s.messages.List(ctx, lifecycle.Query{}, in.Cursor, in.limit())
}

// DeleteMessage removes a contact-us message.
func (s *ContactService) DeleteMessage(ctx context.Context, acct lifecycle.Account, id string) error {
	return s.messages.Delete(ctx, id, acct)
}

// notifyMessage queues the e-mails for a new contact-us message.
func (s *ContactService) notifyMessage(ctx context.Context, ev lifecycle.Event, m *model.ContactMessage) error {
	if ev != lifecycle.EventCreated {
		return nil
	}

	subject := m.Subject
	if subject == "" {
		subject = "Contact request"
	}

	outgoing := []*mail.Message{{
		Kind:       mail.KindContactAcknowledged,
		Subject:    "We received your message",
		Recipients: []string{m.Email},
		Title:      "Thanks for reaching out",
		FirstName:  m.Name,
		Body:       m.Message,
	}}
	if s.cfg.AdminEmail != "" {
		outgoing = append(outgoing, &mail.Message{
			Kind:       mail.KindContactNotification,
			Subject:    "New contact message: " + subject,
			Recipients: []string{s.cfg.AdminEmail},
			Title:      subject,
			Body:       m.Message,
			Sender:     m.Name,
			ReplyTo:    m.Email,
		})
	}

	var errs []error
	for _, out := range outgoing {
		if _, err := s.queue.Enqueue(ctx, jobs.StreamMail, mail.JobKind, out); err != nil {
			errs = append(errs, fmt.Errorf("queue %s mail: %w", out.Kind, err))
		}
	}
	return errors.Join(errs...)
}
