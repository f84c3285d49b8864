// Package lifecycle implements the ownership-gated create/fetch/update/delete
// flow shared by every owned resource type.
//
// A Manager is parameterised by a record type that exposes its Meta. Each
// operation runs in a single store transaction; authorization is a pure
// predicate supplied through a Policy, and deletion is hard or soft per type.
package lifecycle

import (
	"errors"
	"fmt"
	"time"
)

// Meta is the bookkeeping carried by every owned resource.
type Meta struct {
	ID        string     `json:"id"`
	OwnerID   string     `json:"owner_id,omitempty"`
	ParentID  string     `json:"parent_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// ResourceMeta lets any struct embedding Meta satisfy Record.
func (m *Meta) ResourceMeta() *Meta {
	return m
}

// IsDeleted reports whether the record carries a soft-delete marker.
func (m Meta) IsDeleted() bool {
	return m.DeletedAt != nil
}

// Clone returns a copy of m that shares no pointers with it.
func (m Meta) Clone() Meta {
	if m.DeletedAt != nil {
		t := *m.DeletedAt
		m.DeletedAt = &t
	}
	return m
}

// Record is implemented by pointers to structs that embed Meta.
type Record interface {
	ResourceMeta() *Meta
}

// Account is the caller identity an operation is evaluated against.
// The zero value is the anonymous caller.
type Account struct {
	ID       string
	Elevated bool
}

// IsAnonymous reports whether the account has no identity.
func (a Account) IsAnonymous() bool {
	return a.ID == ""
}

// Error kinds. Every error produced by a Manager wraps exactly one of them.
var (
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
	ErrConflict   = errors.New("conflict")
	ErrValidation = errors.New("validation failed")
)

// Error describes a failed lifecycle operation.
type Error struct {
	Kind     error
	Resource string
	ID       string
	Reason   string
}

func (e *Error) Error() string {
	msg := e.Resource
	if e.ID != "" {
		msg += " " + e.ID
	}
	msg += ": " + e.Kind.Error()
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// NewError builds an Error of the given kind.
func NewError(kind error, resource, id, reason string) *Error {
	return &Error{Kind: kind, Resource: resource, ID: id, Reason: reason}
}

// NotFound is shorthand for an ErrNotFound Error.
func NotFound(resource, id string) *Error {
	return NewError(ErrNotFound, resource, id, "")
}

// Forbidden is shorthand for an ErrForbidden Error.
func Forbidden(resource, id, reason string) *Error {
	return NewError(ErrForbidden, resource, id, reason)
}

// Conflict is shorthand for an ErrConflict Error.
func Conflict(resource, reason string) *Error {
	return NewError(ErrConflict, resource, "", reason)
}

// Invalid is shorthand for an ErrValidation Error.
func Invalid(resource, format string, args ...any) *Error {
	return NewError(ErrValidation, resource, "", fmt.Sprintf(format, args...))
}

// Reason returns the human readable reason of a lifecycle error, or the
// error text for anything else.
func Reason(err error) string {
	var le *Error
	if errors.As(err, &le) && le.Reason != "" {
		return le.Reason
	}
	return err.Error()
}
