// Package mail renders templated transactional e-mail and delivers it over
// SMTP.
package mail

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
)

// Kind selects the template a message is rendered with.
type Kind string

// Message kinds.
const (
	KindPlain               Kind = "plain"
	KindNotification        Kind = "notification"
	KindInvoice             Kind = "invoice"
	KindReceipt             Kind = "receipt"
	KindWelcome             Kind = "welcome"
	KindVerification        Kind = "verification"
	KindResetPassword       Kind = "reset-password"
	KindContactAcknowledged Kind = "contact-acknowledgement"
	KindContactNotification Kind = "contact-notification"
)

// Kinds lists every kind with a template.
var Kinds = []Kind{
	KindPlain,
	KindNotification,
	KindInvoice,
	KindReceipt,
	KindWelcome,
	KindVerification,
	KindResetPassword,
	KindContactAcknowledged,
	KindContactNotification,
}

// ErrUnknownKind is returned for a kind without a template.
var ErrUnknownKind = errors.New("unknown mail kind")

const (
	maxRecipients    = 50
	maxSubjectLength = 200
)

// ParseKind resolves the kind named in a send request path. Contact kinds
// are sent by the application only.
func ParseKind(s string) (Kind, error) {
	if s == "" {
		return KindPlain, nil
	}
	k := Kind(s)
	switch k {
	case KindNotification, KindInvoice, KindReceipt, KindWelcome, KindVerification, KindResetPassword:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Label is the human name of the kind used in acknowledgements, such as
// "Reset Password". The plain kind has no label.
func (k Kind) Label() string {
	if k == KindPlain {
		return ""
	}
	words := strings.Split(string(k), "-")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// QueuedMessage is the acknowledgement returned once a message is enqueued.
func (k Kind) QueuedMessage() string {
	if label := k.Label(); label != "" {
		return label + " Email will be sent in the background"
	}
	return "Email will be sent in the background"
}

// Message is a request to send one templated e-mail.
type Message struct {
	Kind       Kind     `json:"kind"`
	Subject    string   `json:"subject"`
	Recipients []string `json:"recipient"`
	Title      string   `json:"title,omitempty"`
	FirstName  string   `json:"first_name,omitempty"`
	Body       string   `json:"body,omitempty"`
	Link       string   `json:"link,omitempty"`
	Sender     string   `json:"sender,omitempty"`
	ReplyTo    string   `json:"reply_to,omitempty"`

	Amount      string `json:"amount,omitempty"`
	DueDate     string `json:"due_date,omitempty"`
	PaymentLink string `json:"payment_link,omitempty"`
	InvoiceID   string `json:"invoice_id,omitempty"`
	ReceiptID   string `json:"receipt_id,omitempty"`
	Description string `json:"description,omitempty"`

	SenderAddress string `json:"sender_address,omitempty"`
	SenderCity    string `json:"sender_city,omitempty"`
	SenderState   string `json:"sender_state,omitempty"`
}

// Validate checks the fields common to every kind and those the kind's
// template needs.
func (m *Message) Validate() error {
	if strings.TrimSpace(m.Subject) == "" {
		return errors.New("subject is required")
	}
	if len(m.Subject) > maxSubjectLength {
		return fmt.Errorf("subject exceeds %d characters", maxSubjectLength)
	}
	if len(m.Recipients) == 0 {
		return errors.New("at least one recipient is required")
	}
	if len(m.Recipients) > maxRecipients {
		return fmt.Errorf("at most %d recipients are allowed", maxRecipients)
	}
	for _, r := range m.Recipients {
		if _, err := mail.ParseAddress(r); err != nil {
			return fmt.Errorf("invalid recipient %q", r)
		}
	}
	if m.ReplyTo != "" {
		if _, err := mail.ParseAddress(m.ReplyTo); err != nil {
			return fmt.Errorf("invalid reply_to %q", m.ReplyTo)
		}
	}

	var required []field
	switch m.Kind {
	case KindPlain, KindNotification, KindContactAcknowledged:
		required = []field{{"body", m.Body}}
	case KindContactNotification:
		required = []field{{"body", m.Body}, {"sender", m.Sender}}
	case KindInvoice:
		required = []field{
			{"amount", m.Amount},
			{"due_date", m.DueDate},
			{"payment_link", m.PaymentLink},
			{"invoice_id", m.InvoiceID},
			{"description", m.Description},
		}
	case KindReceipt:
		required = []field{{"amount", m.Amount}, {"receipt_id", m.ReceiptID}, {"description", m.Description}}
	case KindWelcome, KindVerification, KindResetPassword:
		required = []field{{"link", m.Link}}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, m.Kind)
	}

	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%s is required for %s mail", f.name, m.Kind)
		}
	}
	return nil
}

type field struct {
	name  string
	value string
}
