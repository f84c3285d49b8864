package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/quillbase/quillbase/internal/metrics"
)

// Event identifies the mutation a Hook is notified about.
type Event string

const (
	EventCreated Event = "created"
	EventUpdated Event = "updated"
	EventDeleted Event = "deleted"
)

// Hook runs after a mutation has committed. Its error is logged and never
// affects the outcome of the operation.
type Hook[T Record] func(ctx context.Context, ev Event, rec T) error

// DefaultPageSize is used by ListByOwner when walking the store.
const DefaultPageSize = 100

// Manager runs the lifecycle operations for one resource type.
type Manager[T Record] struct {
	kind          string
	store         Store[T]
	policy        Policy
	parentKind    string
	requireParent bool
	validate      func(T) error
	hooks         []Hook[T]
	now           func() time.Time
	newID         func() string
	pageSize      int
	logger        *slog.Logger
	metrics       metrics.Recorder
}

// Option configures a Manager.
type Option[T Record] func(*Manager[T])

// WithParent declares the parent resource kind. When required, Create
// rejects records without a parent id.
func WithParent[T Record](kind string, required bool) Option[T] {
	return func(m *Manager[T]) {
		m.parentKind = kind
		m.requireParent = required
	}
}

// WithValidator runs fn on the record before it is inserted or updated.
// A non-nil result becomes an ErrValidation error.
func WithValidator[T Record](fn func(T) error) Option[T] {
	return func(m *Manager[T]) { m.validate = fn }
}

// WithHook registers a post-commit hook.
func WithHook[T Record](h Hook[T]) Option[T] {
	return func(m *Manager[T]) { m.hooks = append(m.hooks, h) }
}

// WithClock overrides time.Now.
func WithClock[T Record](now func() time.Time) Option[T] {
	return func(m *Manager[T]) { m.now = now }
}

// WithIDs overrides ULID generation.
func WithIDs[T Record](newID func() string) Option[T] {
	return func(m *Manager[T]) { m.newID = newID }
}

// WithPageSize overrides the ListByOwner page size.
func WithPageSize[T Record](n int) Option[T] {
	return func(m *Manager[T]) {
		if n > 0 {
			m.pageSize = n
		}
	}
}

// WithLogger sets the logger used for hook failures.
func WithLogger[T Record](l *slog.Logger) Option[T] {
	return func(m *Manager[T]) { m.logger = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics[T Record](r metrics.Recorder) Option[T] {
	return func(m *Manager[T]) {
		if r != nil {
			m.metrics = r
		}
	}
}

// NewManager creates a Manager for records of the named kind.
func NewManager[T Record](kind string, store Store[T], policy Policy, opts ...Option[T]) *Manager[T] {
	m := &Manager[T]{
		kind:     kind,
		store:    store,
		policy:   policy,
		now:      time.Now,
		newID:    func() string { return ulid.Make().String() },
		pageSize: DefaultPageSize,
		logger:   slog.Default(),
		metrics:  metrics.NewNoop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "lifecycle", "kind", kind)
	return m
}

// Kind returns the resource kind name.
func (m *Manager[T]) Kind() string {
	return m.kind
}

// OpOption narrows a single operation.
type OpOption func(*opConfig)

type opConfig struct {
	parentID       string
	includeDeleted bool
}

// InParent requires the target record to belong to parentID.
func InParent(parentID string) OpOption {
	return func(c *opConfig) { c.parentID = parentID }
}

// IncludeDeleted makes soft-deleted records visible, but only to an
// elevated account.
func IncludeDeleted(acct Account) OpOption {
	return func(c *opConfig) { c.includeDeleted = acct.Elevated }
}

func buildOpConfig(opts []OpOption) opConfig {
	var c opConfig
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Create stamps identity and timestamps on rec, checks the create rule and
// parent existence, and persists it. On failure rec's Meta is left as the
// caller passed it.
func (m *Manager[T]) Create(ctx context.Context, acct Account, rec T, parentID string) (T, error) {
	var zero T
	start := time.Now()

	meta := rec.ResourceMeta()
	given := *meta
	now := m.clock()
	*meta = Meta{
		ID:        m.newID(),
		OwnerID:   acct.ID,
		ParentID:  parentID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := m.create(ctx, acct, rec)
	m.observe("create", start, err)
	if err != nil {
		*meta = given
		return zero, err
	}

	m.notify(ctx, EventCreated, rec)
	return rec, nil
}

func (m *Manager[T]) create(ctx context.Context, acct Account, rec T) error {
	meta := rec.ResourceMeta()

	if !m.policy.allowCreate(*meta, acct) {
		return Forbidden(m.kind, "", "not allowed to create")
	}
	if m.requireParent && meta.ParentID == "" {
		return Invalid(m.kind, "%s id is required", m.parentKind)
	}
	if err := m.check(rec); err != nil {
		return err
	}

	return m.store.InTx(ctx, func(ctx context.Context, tx Tx[T]) error {
		if meta.ParentID != "" {
			ok, err := tx.ParentExists(ctx, meta.ParentID)
			if err != nil {
				return fmt.Errorf("check %s parent: %w", m.kind, err)
			}
			if !ok {
				return NotFound(m.parentOrKind(), meta.ParentID)
			}
		}
		if err := tx.Insert(ctx, rec); err != nil {
			return m.translate(err, meta.ID)
		}
		return nil
	})
}

// FetchByID returns the record with id. A non-empty parentID must match the
// record's parent. Soft-deleted records are NotFound unless IncludeDeleted
// was passed for an elevated account.
func (m *Manager[T]) FetchByID(ctx context.Context, id, parentID string, opts ...OpOption) (T, error) {
	var rec T
	start := time.Now()
	cfg := buildOpConfig(append([]OpOption{InParent(parentID)}, opts...))

	err := m.store.InTx(ctx, func(ctx context.Context, tx Tx[T]) error {
		var err error
		rec, err = m.load(ctx, tx, id, cfg)
		return err
	})
	m.observe("fetch", start, err)
	if err != nil {
		var zero T
		return zero, err
	}
	return rec, nil
}

// Update loads the record, checks the update rule against acct, applies the
// set fields of patch and refreshes UpdatedAt. Identity, ownership, parent
// and creation time never change.
func (m *Manager[T]) Update(ctx context.Context, id string, acct Account, patch Patch[T], opts ...OpOption) (T, error) {
	var rec T
	start := time.Now()
	cfg := buildOpConfig(opts)
	cfg.includeDeleted = false

	err := m.store.InTx(ctx, func(ctx context.Context, tx Tx[T]) error {
		var err error
		rec, err = m.load(ctx, tx, id, cfg)
		if err != nil {
			return err
		}

		meta := rec.ResourceMeta()
		if !m.policy.allowUpdate(*meta, acct) {
			return Forbidden(m.kind, id, "not allowed to update")
		}

		frozen := *meta
		patch.Apply(rec)
		*meta = frozen
		meta.UpdatedAt = m.advance(frozen.UpdatedAt)

		if err := m.check(rec); err != nil {
			return err
		}
		if err := tx.Update(ctx, rec); err != nil {
			return m.translate(err, id)
		}
		return nil
	})
	m.observe("update", start, err)
	if err != nil {
		var zero T
		return zero, err
	}

	m.notify(ctx, EventUpdated, rec)
	return rec, nil
}

// Delete loads the record, checks the delete rule against acct and removes
// it according to the policy's deletion mode.
func (m *Manager[T]) Delete(ctx context.Context, id string, acct Account, opts ...OpOption) error {
	var rec T
	start := time.Now()
	cfg := buildOpConfig(opts)
	cfg.includeDeleted = false

	err := m.store.InTx(ctx, func(ctx context.Context, tx Tx[T]) error {
		var err error
		rec, err = m.load(ctx, tx, id, cfg)
		if err != nil {
			return err
		}

		meta := rec.ResourceMeta()
		if !m.policy.allowDelete(*meta, acct) {
			return Forbidden(m.kind, id, "not allowed to delete")
		}

		if m.policy.Deletion == SoftDelete {
			now := m.advance(meta.UpdatedAt)
			meta.DeletedAt = &now
			meta.UpdatedAt = now
			return m.translate(tx.Update(ctx, rec), id)
		}
		return m.translate(tx.Remove(ctx, id), id)
	})
	m.observe("delete", start, err)
	if err != nil {
		return err
	}

	m.notify(ctx, EventDeleted, rec)
	return nil
}

// ListByOwner lazily yields the live records owned by ownerID (and under
// parentID when non-empty) in insertion order. Each iteration starts over
// from the beginning; the store is paged internally. An empty ownerID
// yields nothing.
func (m *Manager[T]) ListByOwner(ctx context.Context, ownerID, parentID string) iter.Seq2[T, error] {
	q := m.visible(Query{OwnerID: ownerID, ParentID: parentID})
	return func(yield func(T, error) bool) {
		if ownerID == "" {
			return
		}
		after := ""
		for {
			var batch []T
			err := m.store.InTx(ctx, func(ctx context.Context, tx Tx[T]) error {
				var err error
				batch, err = tx.Page(ctx, q, after, m.pageSize)
				return err
			})
			if err != nil {
				var zero T
				yield(zero, fmt.Errorf("list %s: %w", m.kind, err))
				return
			}
			for _, rec := range batch {
				if !yield(rec, nil) {
					return
				}
			}
			if len(batch) < m.pageSize {
				return
			}
			after = batch[len(batch)-1].ResourceMeta().ID
		}
	}
}

// List returns one page of records matching q, starting after the opaque
// cursor returned by a previous call.
func (m *Manager[T]) List(ctx context.Context, q Query, cursor string, limit int) (Page[T], error) {
	start := time.Now()
	after, err := decodeCursor(cursor)
	if err != nil {
		err = Invalid(m.kind, "invalid pagination cursor")
		m.observe("list", start, err)
		return Page[T]{}, err
	}
	if limit <= 0 {
		limit = 20
	}

	q = m.visible(q)
	var items []T
	err = m.store.InTx(ctx, func(ctx context.Context, tx Tx[T]) error {
		var err error
		items, err = tx.Page(ctx, q, after, limit+1)
		return err
	})
	m.observe("list", start, err)
	if err != nil {
		return Page[T]{}, fmt.Errorf("list %s: %w", m.kind, err)
	}

	page := Page[T]{Items: items}
	if len(items) > limit {
		page.Items = items[:limit]
		page.NextCursor = encodeCursor(page.Items[limit-1].ResourceMeta().ID)
	}
	return page, nil
}

// load fetches id inside tx and applies visibility and parent scoping.
func (m *Manager[T]) load(ctx context.Context, tx Tx[T], id string, cfg opConfig) (T, error) {
	var zero T
	if id == "" {
		return zero, NotFound(m.kind, id)
	}
	rec, err := tx.Get(ctx, id)
	if err != nil {
		return zero, m.translate(err, id)
	}
	meta := rec.ResourceMeta()
	if cfg.parentID != "" && meta.ParentID != cfg.parentID {
		return zero, NotFound(m.kind, id)
	}
	if meta.IsDeleted() && !cfg.includeDeleted {
		return zero, NotFound(m.kind, id)
	}
	if m.parentKind != "" && meta.ParentID != "" && !cfg.includeDeleted {
		live, err := tx.ParentExists(ctx, meta.ParentID)
		if err != nil {
			return zero, fmt.Errorf("check %s parent: %w", m.kind, err)
		}
		if !live {
			return zero, NotFound(m.kind, id)
		}
	}
	return rec, nil
}

// visible hides children of soft-deleted parents unless q asks for
// deleted rows.
func (m *Manager[T]) visible(q Query) Query {
	if m.parentKind != "" && !q.IncludeDeleted {
		q.LiveParent = true
	}
	return q
}

func (m *Manager[T]) check(rec T) error {
	if m.validate == nil {
		return nil
	}
	if err := m.validate(rec); err != nil {
		var le *Error
		if errors.As(err, &le) {
			return err
		}
		return Invalid(m.kind, "%s", err.Error())
	}
	return nil
}

// translate maps store sentinels onto lifecycle errors for this kind.
func (m *Manager[T]) translate(err error, id string) error {
	if err == nil {
		return nil
	}
	var le *Error
	switch {
	case errors.As(err, &le):
		return err
	case errors.Is(err, ErrNotFound):
		return NotFound(m.kind, id)
	case errors.Is(err, ErrConflict):
		return NewError(ErrConflict, m.kind, id, storeReason(err, ErrConflict, "already exists"))
	case errors.Is(err, ErrValidation):
		return NewError(ErrValidation, m.kind, id, storeReason(err, ErrValidation, "invalid value"))
	default:
		return fmt.Errorf("%s %s: %w", m.kind, id, err)
	}
}

// storeReason strips the kind suffix a store appended to its message.
func storeReason(err, kind error, fallback string) string {
	reason := strings.TrimSuffix(err.Error(), ": "+kind.Error())
	if reason == "" || reason == kind.Error() {
		return fallback
	}
	return reason
}

func (m *Manager[T]) parentOrKind() string {
	if m.parentKind != "" {
		return m.parentKind
	}
	return "parent"
}

// clock returns the current time at the storage precision.
func (m *Manager[T]) clock() time.Time {
	return m.now().UTC().Truncate(time.Microsecond)
}

// advance returns a timestamp strictly after prev.
func (m *Manager[T]) advance(prev time.Time) time.Time {
	now := m.clock()
	if !now.After(prev) {
		now = prev.Add(time.Microsecond)
	}
	return now
}

func (m *Manager[T]) notify(ctx context.Context, ev Event, rec T) {
	if len(m.hooks) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, h := range m.hooks {
		if err := h(ctx, ev, rec); err != nil {
			m.logger.Warn("post-commit hook failed",
				"event", string(ev),
				"id", rec.ResourceMeta().ID,
				"error", err,
			)
		}
	}
}

func (m *Manager[T]) observe(op string, start time.Time, err error) {
	m.metrics.IncResourceOp(m.kind, op, outcome(err))
	m.metrics.ObserveResourceOpDuration(m.kind, op, time.Since(start))
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, ErrNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, ErrForbidden):
		return metrics.OutcomeForbidden
	case errors.Is(err, ErrConflict):
		return metrics.OutcomeConflict
	case errors.Is(err, ErrValidation):
		return metrics.OutcomeInvalid
	default:
		return metrics.OutcomeError
	}
}
