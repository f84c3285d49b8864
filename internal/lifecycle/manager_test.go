package lifecycle_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillbase/quillbase/internal/lifecycle"
	"github.com/quillbase/quillbase/internal/metrics"
)

type collection struct {
	lifecycle.Meta
	Title string
}

type entry struct {
	lifecycle.Meta
	Title string
	Body  string
}

var (
	entryTitle = lifecycle.Field[*entry, string]{Name: "title", Set: func(e *entry, v string) { e.Title = v }}
	entryBody  = lifecycle.Field[*entry, string]{Name: "body", Set: func(e *entry, v string) { e.Body = v }}
)

func cloneCollection(c *collection) *collection { cp := *c; return &cp }
func cloneEntry(e *entry) *entry                { cp := *e; return &cp }

// frozenClock returns the same instant on every call.
func frozenClock() func() time.Time {
	t := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return t }
}

type fixture struct {
	collections *lifecycle.Manager[*collection]
	entries     *lifecycle.Manager[*entry]
	recorder    *metrics.InMemoryRecorder
}

var (
	alice = lifecycle.Account{ID: "alice"}
	bob   = lifecycle.Account{ID: "bob"}
	carol = lifecycle.Account{ID: "carol"}
	admin = lifecycle.Account{ID: "admin", Elevated: true}
)

func newFixture(t *testing.T, opts ...lifecycle.Option[*entry]) *fixture {
	t.Helper()

	recorder := metrics.NewInMemory()
	colStore := lifecycle.NewMemoryStore(cloneCollection,
		lifecycle.UniqueBy(func(c *collection) string { return c.Title }),
	)
	entryStore := lifecycle.NewMemoryStore(cloneEntry,
		lifecycle.ParentsFrom[*entry](colStore.Exists),
	)

	colPolicy := lifecycle.MustRulePolicy(lifecycle.RuleAuthenticated, lifecycle.RuleOwner, lifecycle.RuleOwnerOrElevated, lifecycle.SoftDelete)
	entryPolicy := lifecycle.MustRulePolicy(lifecycle.RuleAuthenticated, lifecycle.RuleOwner, lifecycle.RuleOwnerOrElevated, lifecycle.HardDelete)

	entryOpts := append([]lifecycle.Option[*entry]{
		lifecycle.WithParent[*entry]("collection", true),
		lifecycle.WithMetrics[*entry](recorder),
		lifecycle.WithPageSize[*entry](2),
	}, opts...)

	return &fixture{
		collections: lifecycle.NewManager("collection", colStore, colPolicy,
			lifecycle.WithMetrics[*collection](recorder),
		),
		entries:  lifecycle.NewManager("entry", entryStore, entryPolicy, entryOpts...),
		recorder: recorder,
	}
}

func (f *fixture) collection(t *testing.T, owner lifecycle.Account, title string) *collection {
	t.Helper()
	c, err := f.collections.Create(context.Background(), owner, &collection{Title: title}, "")
	require.NoError(t, err)
	return c
}

func (f *fixture) entry(t *testing.T, owner lifecycle.Account, parentID, title string) *entry {
	t.Helper()
	e, err := f.entries.Create(context.Background(), owner, &entry{Title: title, Body: "body"}, parentID)
	require.NoError(t, err)
	return e
}

func TestCreate_StampsIdentityAndTimestamps(t *testing.T) {
	f := newFixture(t)

	c := f.collection(t, alice, "Test Blog")

	assert.NotEmpty(t, c.ID)
	assert.Equal(t, "alice", c.OwnerID)
	assert.False(t, c.CreatedAt.IsZero())
	assert.Equal(t, c.CreatedAt, c.UpdatedAt)
	assert.Nil(t, c.DeletedAt)
}

func TestCreate_IDsSortInInsertionOrder(t *testing.T) {
	f := newFixture(t)

	first := f.collection(t, alice, "one")
	second := f.collection(t, alice, "two")

	assert.Less(t, first.ID, second.ID)
}

func TestCreate_DuplicateTitleIsConflict(t *testing.T) {
	f := newFixture(t)
	f.collection(t, alice, "Test Blog")

	_, err := f.collections.Create(context.Background(), bob, &collection{Title: "Test Blog"}, "")

	require.Error(t, err)
	assert.True(t, errors.Is(err, lifecycle.ErrConflict))
	assert.Contains(t, lifecycle.Reason(err), "Test Blog")
}

func TestCreate_ConflictLeavesNoRow(t *testing.T) {
	store := lifecycle.NewMemoryStore(cloneCollection,
		lifecycle.UniqueBy(func(c *collection) string { return c.Title }),
	)
	m := lifecycle.NewManager[*collection]("collection", store,
		lifecycle.MustRulePolicy(lifecycle.RuleAnyone, lifecycle.RuleOwner, lifecycle.RuleOwner, lifecycle.HardDelete))

	_, err := m.Create(context.Background(), alice, &collection{Title: "x"}, "")
	require.NoError(t, err)
	_, err = m.Create(context.Background(), alice, &collection{Title: "x"}, "")
	require.ErrorIs(t, err, lifecycle.ErrConflict)

	assert.Equal(t, 1, store.Len())
}

func TestCreate_RequiresExistingParent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.entries.Create(ctx, bob, &entry{Title: "orphan"}, "missing")
	require.ErrorIs(t, err, lifecycle.ErrNotFound)

	var le *lifecycle.Error
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "collection", le.Resource)

	_, err = f.entries.Create(ctx, bob, &entry{Title: "orphan"}, "")
	assert.ErrorIs(t, err, lifecycle.ErrValidation)
}

func TestCreate_ParentSoftDeletedIsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.collection(t, alice, "Test Blog")
	require.NoError(t, f.collections.Delete(ctx, c.ID, alice))

	_, err := f.entries.Create(ctx, bob, &entry{Title: "late"}, c.ID)

	assert.ErrorIs(t, err, lifecycle.ErrNotFound)
}

func TestCreate_AnonymousRejectedByAuthenticatedRule(t *testing.T) {
	f := newFixture(t)

	_, err := f.collections.Create(context.Background(), lifecycle.Account{}, &collection{Title: "x"}, "")

	assert.ErrorIs(t, err, lifecycle.ErrForbidden)
}

func TestCreate_ValidatorRejects(t *testing.T) {
	f := newFixture(t, lifecycle.WithValidator(func(e *entry) error {
		if e.Title == "" {
			return errors.New("title is required")
		}
		return nil
	}))
	c := f.collection(t, alice, "Test Blog")

	_, err := f.entries.Create(context.Background(), bob, &entry{}, c.ID)

	require.ErrorIs(t, err, lifecycle.ErrValidation)
	assert.Equal(t, "title is required", lifecycle.Reason(err))
}

// Blog owned by A, post owned by B: B may update, C may not, and elevated A
// may delete B's post.
func TestScenario_OwnershipAndElevation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	elevatedAlice := lifecycle.Account{ID: "alice", Elevated: true}

	blog := f.collection(t, elevatedAlice, "Test Blog")
	post := f.entry(t, bob, blog.ID, "Hello")
	assert.Equal(t, blog.ID, post.ParentID)

	updated, err := f.entries.Update(ctx, post.ID, bob, lifecycle.Patch[*entry]{
		entryTitle.To(lifecycle.Some("Hello again")),
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello again", updated.Title)

	_, err = f.entries.Update(ctx, post.ID, carol, lifecycle.Patch[*entry]{
		entryTitle.To(lifecycle.Some("hijack")),
	})
	require.ErrorIs(t, err, lifecycle.ErrForbidden)

	// Update is owner-only even for elevated accounts.
	_, err = f.entries.Update(ctx, post.ID, elevatedAlice, lifecycle.Patch[*entry]{
		entryTitle.To(lifecycle.Some("moderated")),
	})
	require.ErrorIs(t, err, lifecycle.ErrForbidden)

	require.NoError(t, f.entries.Delete(ctx, post.ID, elevatedAlice))

	_, err = f.entries.FetchByID(ctx, post.ID, blog.ID)
	assert.ErrorIs(t, err, lifecycle.ErrNotFound)
}

func TestUpdate_AppliesOnlySetFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.collection(t, alice, "Test Blog")
	e := f.entry(t, bob, c.ID, "Hello")

	updated, err := f.entries.Update(ctx, e.ID, bob, lifecycle.Patch[*entry]{
		entryTitle.To(lifecycle.None[string]()),
		entryBody.To(lifecycle.Some("new body")),
	})

	require.NoError(t, err)
	assert.Equal(t, "Hello", updated.Title)
	assert.Equal(t, "new body", updated.Body)
}

func TestUpdate_OwnerAndIdentityAreImmutable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.collection(t, alice, "Test Blog")
	e := f.entry(t, bob, c.ID, "Hello")

	sneaky := lifecycle.Field[*entry, string]{Name: "owner", Set: func(e *entry, v string) {
		e.OwnerID = v
		e.ID = "forged"
		e.ParentID = "elsewhere"
	}}
	updated, err := f.entries.Update(ctx, e.ID, bob, lifecycle.Patch[*entry]{sneaky.To(lifecycle.Some("carol"))})

	require.NoError(t, err)
	assert.Equal(t, "bob", updated.OwnerID)
	assert.Equal(t, e.ID, updated.ID)
	assert.Equal(t, c.ID, updated.ParentID)
	assert.Equal(t, e.CreatedAt, updated.CreatedAt)
}

func TestUpdate_TimestampStrictlyIncreasesWithFrozenClock(t *testing.T) {
	f := newFixture(t, lifecycle.WithClock[*entry](frozenClock()))
	ctx := context.Background()
	c := f.collection(t, alice, "Test Blog")
	e := f.entry(t, bob, c.ID, "Hello")

	prev := e.UpdatedAt
	for i := 0; i < 3; i++ {
		updated, err := f.entries.Update(ctx, e.ID, bob, lifecycle.Patch[*entry]{
			entryBody.To(lifecycle.Some(fmt.Sprintf("v%d", i))),
		})
		require.NoError(t, err)
		assert.True(t, updated.UpdatedAt.After(prev), "iteration %d", i)
		prev = updated.UpdatedAt
	}
}

func TestUpdate_EmptyPatchStillRefreshesTimestamp(t *testing.T) {
	f := newFixture(t, lifecycle.WithClock[*entry](frozenClock()))
	c := f.collection(t, alice, "Test Blog")
	e := f.entry(t, bob, c.ID, "Hello")

	updated, err := f.entries.Update(context.Background(), e.ID, bob, nil)

	require.NoError(t, err)
	assert.True(t, updated.UpdatedAt.After(e.UpdatedAt))
}

func TestUpdate_ScopedToParent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c1 := f.collection(t, alice, "one")
	c2 := f.collection(t, alice, "two")
	e := f.entry(t, bob, c1.ID, "Hello")

	_, err := f.entries.Update(ctx, e.ID, bob, nil, lifecycle.InParent(c2.ID))
	assert.ErrorIs(t, err, lifecycle.ErrNotFound)

	err = f.entries.Delete(ctx, e.ID, bob, lifecycle.InParent(c2.ID))
	assert.ErrorIs(t, err, lifecycle.ErrNotFound)
}

func TestUpdate_MissingIsNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.entries.Update(context.Background(), "nope", bob, nil)

	assert.ErrorIs(t, err, lifecycle.ErrNotFound)
}

func TestUpdate_ForbiddenLeavesRecordUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.collection(t, alice, "Test Blog")
	e := f.entry(t, bob, c.ID, "Hello")

	_, err := f.entries.Update(ctx, e.ID, carol, lifecycle.Patch[*entry]{entryTitle.To(lifecycle.Some("x"))})
	require.ErrorIs(t, err, lifecycle.ErrForbidden)

	got, err := f.entries.FetchByID(ctx, e.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "Hello", got.Title)
	assert.Equal(t, e.UpdatedAt, got.UpdatedAt)
}

func TestFetchByID_ParentMismatchIsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c1 := f.collection(t, alice, "one")
	c2 := f.collection(t, alice, "two")
	e := f.entry(t, bob, c1.ID, "Hello")

	_, err := f.entries.FetchByID(ctx, e.ID, c2.ID)
	assert.ErrorIs(t, err, lifecycle.ErrNotFound)

	got, err := f.entries.FetchByID(ctx, e.ID, c1.ID)
	require.NoError(t, err)
	assert.Equal(t, e.ID, got.ID)
}

func TestSoftDelete_HiddenExceptForElevatedIncludeDeleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.collection(t, alice, "Test Blog")

	require.NoError(t, f.collections.Delete(ctx, c.ID, alice))

	_, err := f.collections.FetchByID(ctx, c.ID, "")
	assert.ErrorIs(t, err, lifecycle.ErrNotFound)

	_, err = f.collections.FetchByID(ctx, c.ID, "", lifecycle.IncludeDeleted(alice))
	assert.ErrorIs(t, err, lifecycle.ErrNotFound)

	got, err := f.collections.FetchByID(ctx, c.ID, "", lifecycle.IncludeDeleted(admin))
	require.NoError(t, err)
	require.NotNil(t, got.DeletedAt)
	assert.True(t, got.UpdatedAt.After(c.UpdatedAt))

	// A second delete sees the record as gone.
	assert.ErrorIs(t, f.collections.Delete(ctx, c.ID, alice), lifecycle.ErrNotFound)
	// Soft-deleted records cannot be updated either.
	_, err = f.collections.Update(ctx, c.ID, alice, nil)
	assert.ErrorIs(t, err, lifecycle.ErrNotFound)
}

func TestSoftDelete_TitleStaysReserved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.collection(t, alice, "Test Blog")
	require.NoError(t, f.collections.Delete(ctx, c.ID, alice))

	_, err := f.collections.Create(ctx, alice, &collection{Title: "Test Blog"}, "")

	assert.ErrorIs(t, err, lifecycle.ErrConflict)
}

func TestDelete_ForbiddenForStranger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.collection(t, alice, "Test Blog")
	e := f.entry(t, bob, c.ID, "Hello")

	err := f.entries.Delete(ctx, e.ID, carol)
	require.ErrorIs(t, err, lifecycle.ErrForbidden)

	_, err = f.entries.FetchByID(ctx, e.ID, c.ID)
	assert.NoError(t, err)
}

func TestListByOwner_LazyRestartableInsertionOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.collection(t, alice, "Test Blog")

	var want []string
	for i := 0; i < 5; i++ {
		want = append(want, f.entry(t, bob, c.ID, fmt.Sprintf("post-%d", i)).ID)
	}
	f.entry(t, carol, c.ID, "not bob")
	deleted := f.entry(t, bob, c.ID, "gone")
	require.NoError(t, f.entries.Delete(ctx, deleted.ID, bob))

	seq := f.entries.ListByOwner(ctx, "bob", c.ID)

	for pass := 0; pass < 2; pass++ {
		var got []string
		for e, err := range seq {
			require.NoError(t, err)
			got = append(got, e.ID)
		}
		assert.Equal(t, want, got, "pass %d", pass)
	}
}

func TestListByOwner_StopsEarly(t *testing.T) {
	f := newFixture(t)
	c := f.collection(t, alice, "Test Blog")
	for i := 0; i < 5; i++ {
		f.entry(t, bob, c.ID, fmt.Sprintf("post-%d", i))
	}

	n := 0
	for _, err := range f.entries.ListByOwner(context.Background(), "bob", "") {
		require.NoError(t, err)
		n++
		if n == 3 {
			break
		}
	}

	assert.Equal(t, 3, n)
}

func TestList_PagesWithCursor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.collection(t, alice, "Test Blog")
	for i := 0; i < 5; i++ {
		f.entry(t, bob, c.ID, fmt.Sprintf("post-%d", i))
	}

	var titles []string
	cursor := ""
	pages := 0
	for {
		page, err := f.entries.List(ctx, lifecycle.Query{ParentID: c.ID}, cursor, 2)
		require.NoError(t, err)
		pages++
		for _, e := range page.Items {
			titles = append(titles, e.Title)
		}
		if !page.HasMore() {
			break
		}
		cursor = page.NextCursor
	}

	assert.Equal(t, 3, pages)
	assert.Equal(t, []string{"post-0", "post-1", "post-2", "post-3", "post-4"}, titles)
}

func TestList_InvalidCursor(t *testing.T) {
	f := newFixture(t)

	_, err := f.entries.List(context.Background(), lifecycle.Query{}, "!!not-base64!!", 10)

	assert.ErrorIs(t, err, lifecycle.ErrValidation)
}

func TestHooks_RunAfterCommitAndNeverFailTheOperation(t *testing.T) {
	var events []lifecycle.Event
	f := newFixture(t, lifecycle.WithHook(func(_ context.Context, ev lifecycle.Event, _ *entry) error {
		events = append(events, ev)
		return errors.New("mail server down")
	}))
	ctx := context.Background()
	c := f.collection(t, alice, "Test Blog")

	e := f.entry(t, bob, c.ID, "Hello")
	_, err := f.entries.Update(ctx, e.ID, bob, nil)
	require.NoError(t, err)
	require.NoError(t, f.entries.Delete(ctx, e.ID, bob))

	// Rejected operations do not notify.
	_, err = f.entries.Update(ctx, "missing", bob, nil)
	require.Error(t, err)

	assert.Equal(t, []lifecycle.Event{lifecycle.EventCreated, lifecycle.EventUpdated, lifecycle.EventDeleted}, events)
}

func TestMetrics_CountOutcomes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.collection(t, alice, "Test Blog")
	e := f.entry(t, bob, c.ID, "Hello")

	_, _ = f.entries.Update(ctx, e.ID, carol, nil)
	_, _ = f.entries.FetchByID(ctx, "missing", "")

	snap := f.recorder.Snapshot()
	assert.Equal(t, 1.0, snap.Counter("quillbase_resource_operations_total", "kind", "entry", "op", "create", "outcome", "success"))
	assert.Equal(t, 1.0, snap.Counter("quillbase_resource_operations_total", "kind", "entry", "op", "update", "outcome", "forbidden"))
	assert.Equal(t, 1.0, snap.Counter("quillbase_resource_operations_total", "kind", "entry", "op", "fetch", "outcome", "not_found"))
}

func TestSoftDeletedParent_HidesChildren(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.collection(t, alice, "Gone")
	e := f.entry(t, bob, c.ID, "Hello")
	require.NoError(t, f.collections.Delete(ctx, c.ID, alice))

	_, err := f.entries.FetchByID(ctx, e.ID, c.ID)
	assert.ErrorIs(t, err, lifecycle.ErrNotFound)

	_, err = f.entries.Update(ctx, e.ID, bob, lifecycle.Patch[*entry]{entryBody.To(lifecycle.Some("edited"))})
	assert.ErrorIs(t, err, lifecycle.ErrNotFound)

	assert.ErrorIs(t, f.entries.Delete(ctx, e.ID, bob), lifecycle.ErrNotFound)
	assert.ErrorIs(t, f.entries.Delete(ctx, e.ID, admin), lifecycle.ErrNotFound)

	page, err := f.entries.List(ctx, lifecycle.Query{OwnerID: "bob"}, "", 10)
	require.NoError(t, err)
	assert.Empty(t, page.Items)

	for _, err := range f.entries.ListByOwner(ctx, "bob", "") {
		require.NoError(t, err)
		t.Fatal("entry of a deleted collection was listed")
	}

	got, err := f.entries.FetchByID(ctx, e.ID, "", lifecycle.IncludeDeleted(admin))
	require.NoError(t, err)
	assert.Equal(t, "body", got.Body, "the entry itself is untouched")
}

func TestListByOwner_EmptyOwnerYieldsNothing(t *testing.T) {
	f := newFixture(t)
	c := f.collection(t, alice, "Test Blog")
	f.entry(t, bob, c.ID, "Hello")

	n := 0
	for _, err := range f.entries.ListByOwner(context.Background(), "", c.ID) {
		require.NoError(t, err)
		n++
	}

	assert.Zero(t, n)
}

func TestCreate_FailureLeavesRecordUnstamped(t *testing.T) {
	f := newFixture(t)

	e := &entry{Title: "orphan"}
	_, err := f.entries.Create(context.Background(), bob, e, "missing")
	require.ErrorIs(t, err, lifecycle.ErrNotFound)

	assert.Empty(t, e.ID)
	assert.Empty(t, e.OwnerID)
	assert.True(t, e.CreatedAt.IsZero())
}
