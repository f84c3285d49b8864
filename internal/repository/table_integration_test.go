//go:build integration

package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/quillbase/quillbase/internal/lifecycle"
	"github.com/quillbase/quillbase/internal/model"
	"github.com/quillbase/quillbase/internal/testutil"
)

// ============================================================================
// Lifecycle Table Integration Tests
// ============================================================================

var (
	owner = lifecycle.Account{ID: "user-a"}
	other = lifecycle.Account{ID: "user-b"}
	root  = lifecycle.Account{ID: "user-root", Elevated: true}
)

func TestIntegrationTable_BlogLifecycle(t *testing.T) {
	ctx, repo := newTableTestEnv(t)
	blogs := lifecycle.NewManager[*model.Blog](model.KindBlog, repo.Blogs(),
		lifecycle.MustRulePolicy(lifecycle.RuleAnyone, lifecycle.RuleOwner, lifecycle.RuleOwnerOrElevated, lifecycle.SoftDelete))

	blog, err := blogs.Create(ctx, owner, &model.Blog{Title: "Test Blog"}, "")
	if err != nil {
		t.Fatalf("create blog: %v", err)
	}

	loaded, err := blogs.FetchByID(ctx, blog.ID, "")
	if err != nil {
		t.Fatalf("fetch blog: %v", err)
	}
	if loaded.Title != "Test Blog" || loaded.OwnerID != owner.ID {
		t.Fatalf("loaded blog = %+v", loaded)
	}
	if !loaded.CreatedAt.Equal(blog.CreatedAt) {
		t.Fatalf("created_at mismatch: %v vs %v", loaded.CreatedAt, blog.CreatedAt)
	}

	_, err = blogs.Create(ctx, other, &model.Blog{Title: "Test Blog"}, "")
	if !errors.Is(err, lifecycle.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if got := lifecycle.Reason(err); got != "blog title already exists" {
		t.Fatalf("conflict reason = %q", got)
	}

	updated, err := blogs.Update(ctx, blog.ID, owner, lifecycle.Patch[*model.Blog]{
		model.BlogTitle.To(lifecycle.Some("Renamed")),
	})
	if err != nil {
		t.Fatalf("update blog: %v", err)
	}
	if !updated.UpdatedAt.After(blog.UpdatedAt) {
		t.Fatalf("updated_at did not advance")
	}

	if err := blogs.Delete(ctx, blog.ID, owner); err != nil {
		t.Fatalf("delete blog: %v", err)
	}
	if _, err := blogs.FetchByID(ctx, blog.ID, ""); !errors.Is(err, lifecycle.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after soft delete, got %v", err)
	}
	gone, err := blogs.FetchByID(ctx, blog.ID, "", lifecycle.IncludeDeleted(root))
	if err != nil {
		t.Fatalf("fetch soft-deleted blog as superuser: %v", err)
	}
	if gone.DeletedAt == nil {
		t.Fatal("expected deleted_at to be set")
	}

	// The soft-deleted title stays reserved.
	if _, err := blogs.Create(ctx, other, &model.Blog{Title: "Renamed"}, ""); !errors.Is(err, lifecycle.ErrConflict) {
		t.Fatalf("expected ErrConflict for reserved title, got %v", err)
	}
}

func TestIntegrationTable_PostsScopedToBlog(t *testing.T) {
	ctx, repo := newTableTestEnv(t)
	blogs := lifecycle.NewManager[*model.Blog](model.KindBlog, repo.Blogs(),
		lifecycle.MustRulePolicy(lifecycle.RuleAnyone, lifecycle.RuleOwner, lifecycle.RuleOwnerOrElevated, lifecycle.SoftDelete))
	posts := lifecycle.NewManager[*model.BlogPost](model.KindBlogPost, repo.BlogPosts(),
		lifecycle.MustRulePolicy(lifecycle.RuleAnyone, lifecycle.RuleOwner, lifecycle.RuleOwnerOrElevated, lifecycle.HardDelete),
		lifecycle.WithParent[*model.BlogPost](model.KindBlog, true),
		lifecycle.WithPageSize[*model.BlogPost](2))

	blog, err := blogs.Create(ctx, owner, testutil.NewTestBlog(t), "")
	if err != nil {
		t.Fatalf("create blog: %v", err)
	}

	if _, err := posts.Create(ctx, other, testutil.NewTestPost(t), "missing"); !errors.Is(err, lifecycle.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing blog, got %v", err)
	}

	var ids []string
	for range 3 {
		p, err := posts.Create(ctx, other, testutil.NewTestPost(t), blog.ID)
		if err != nil {
			t.Fatalf("create post: %v", err)
		}
		ids = append(ids, p.ID)
	}

	loaded, err := posts.FetchByID(ctx, ids[0], blog.ID)
	if err != nil {
		t.Fatalf("fetch post: %v", err)
	}
	if len(loaded.Tags) != 2 || loaded.BlogID() != blog.ID {
		t.Fatalf("loaded post = %+v", loaded)
	}
	if _, err := posts.FetchByID(ctx, ids[0], "other-blog"); !errors.Is(err, lifecycle.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for wrong blog, got %v", err)
	}

	var listed []string
	for p, err := range posts.ListByOwner(ctx, other.ID, blog.ID) {
		if err != nil {
			t.Fatalf("list posts: %v", err)
		}
		listed = append(listed, p.ID)
	}
	if len(listed) != 3 || listed[0] != ids[0] || listed[2] != ids[2] {
		t.Fatalf("listed %v, want %v", listed, ids)
	}

	page, err := posts.List(ctx, lifecycle.Query{ParentID: blog.ID}, "", 2)
	if err != nil {
		t.Fatalf("list page: %v", err)
	}
	if len(page.Items) != 2 || !page.HasMore() {
		t.Fatalf("first page = %d items, more=%v", len(page.Items), page.HasMore())
	}

	// A superuser who does not own the post may still delete it.
	if err := posts.Delete(ctx, ids[1], root); err != nil {
		t.Fatalf("superuser delete: %v", err)
	}
	if _, err := posts.FetchByID(ctx, ids[1], blog.ID); !errors.Is(err, lifecycle.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after hard delete, got %v", err)
	}
}

func TestIntegrationTable_VideoLikes(t *testing.T) {
	ctx, repo := newTableTestEnv(t)
	videos := lifecycle.NewManager[*model.Video](model.KindVideo, repo.Videos(),
		lifecycle.MustRulePolicy(lifecycle.RuleAnyone, lifecycle.RuleOwner, lifecycle.RuleOwner, lifecycle.HardDelete))

	v, err := videos.Create(ctx, owner, &model.Video{Title: "Clip", URL: "https://example.com/v"}, "")
	if err != nil {
		t.Fatalf("create video: %v", err)
	}

	likes, err := repo.AdjustVideoLikes(ctx, v.ID, 1)
	if err != nil || likes != 1 {
		t.Fatalf("like: likes=%d err=%v", likes, err)
	}
	for range 2 {
		likes, err = repo.AdjustVideoLikes(ctx, v.ID, -1)
	}
	if err != nil || likes != 0 {
		t.Fatalf("unlike below zero: likes=%d err=%v", likes, err)
	}

	loaded, err := videos.FetchByID(ctx, v.ID, "")
	if err != nil {
		t.Fatalf("fetch video: %v", err)
	}
	if !loaded.UpdatedAt.Equal(v.UpdatedAt) {
		t.Fatal("likes should not touch updated_at")
	}

	if _, err := repo.AdjustVideoLikes(ctx, "missing", 1); !errors.Is(err, ErrVideoNotFound) {
		t.Fatalf("expected ErrVideoNotFound, got %v", err)
	}
}

func TestIntegrationTable_RenameKeepsConcurrentLikes(t *testing.T) {
	ctx, repo := newTableTestEnv(t)
	store := repo.Videos()
	videos := lifecycle.NewManager[*model.Video](model.KindVideo, store,
		lifecycle.MustRulePolicy(lifecycle.RuleAnyone, lifecycle.RuleOwner, lifecycle.RuleOwner, lifecycle.HardDelete))

	v, err := videos.Create(ctx, owner, &model.Video{Title: "Clip", URL: "https://example.com/v"}, "")
	if err != nil {
		t.Fatalf("create video: %v", err)
	}

	// A like commits between the rename's read and its write.
	err = store.InTx(ctx, func(ctx context.Context, tx lifecycle.Tx[*model.Video]) error {
		stale, err := tx.Get(ctx, v.ID)
		if err != nil {
			return err
		}
		if _, err := repo.AdjustVideoLikes(ctx, v.ID, 1); err != nil {
			return err
		}
		stale.Title = "Renamed"
		stale.UpdatedAt = stale.UpdatedAt.Add(time.Second)
		if err := tx.Update(ctx, stale); err != nil {
			return err
		}
		if stale.Likes != 1 {
			t.Errorf("updated record likes = %d, want the stored 1", stale.Likes)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("rename: %v", err)
	}

	loaded, err := videos.FetchByID(ctx, v.ID, "")
	if err != nil {
		t.Fatalf("fetch video: %v", err)
	}
	if loaded.Title != "Renamed" || loaded.Likes != 1 {
		t.Fatalf("loaded video = %q with %d likes, want Renamed with 1", loaded.Title, loaded.Likes)
	}
}

func TestIntegrationTable_PostTitleLength(t *testing.T) {
	ctx, repo := newTableTestEnv(t)
	blogs := lifecycle.NewManager[*model.Blog](model.KindBlog, repo.Blogs(),
		lifecycle.MustRulePolicy(lifecycle.RuleAnyone, lifecycle.RuleOwner, lifecycle.RuleOwnerOrElevated, lifecycle.SoftDelete))
	posts := lifecycle.NewManager[*model.BlogPost](model.KindBlogPost, repo.BlogPosts(),
		lifecycle.MustRulePolicy(lifecycle.RuleAnyone, lifecycle.RuleOwner, lifecycle.RuleOwnerOrElevated, lifecycle.HardDelete),
		lifecycle.WithParent[*model.BlogPost](model.KindBlog, true))

	blog, err := blogs.Create(ctx, owner, testutil.NewTestBlog(t), "")
	if err != nil {
		t.Fatalf("create blog: %v", err)
	}

	long := testutil.NewTestPost(t)
	long.Title = strings.Repeat("a", 200)
	if _, err := posts.Create(ctx, other, long, blog.ID); err != nil {
		t.Fatalf("create post with a 200 character title: %v", err)
	}

	tooLong := testutil.NewTestPost(t)
	tooLong.Title = strings.Repeat("a", 201)
	_, err = posts.Create(ctx, other, tooLong, blog.ID)
	if !errors.Is(err, lifecycle.ErrValidation) {
		t.Fatalf("expected ErrValidation for an oversized title, got %v", err)
	}
}

func TestIntegrationTable_PostsOfDeletedBlogAreHidden(t *testing.T) {
	ctx, repo := newTableTestEnv(t)
	blogs := lifecycle.NewManager[*model.Blog](model.KindBlog, repo.Blogs(),
		lifecycle.MustRulePolicy(lifecycle.RuleAnyone, lifecycle.RuleOwner, lifecycle.RuleOwnerOrElevated, lifecycle.SoftDelete))
	posts := lifecycle.NewManager[*model.BlogPost](model.KindBlogPost, repo.BlogPosts(),
		lifecycle.MustRulePolicy(lifecycle.RuleAnyone, lifecycle.RuleOwner, lifecycle.RuleOwnerOrElevated, lifecycle.HardDelete),
		lifecycle.WithParent[*model.BlogPost](model.KindBlog, true))

	gone, err := blogs.Create(ctx, owner, &model.Blog{Title: "Gone"}, "")
	if err != nil {
		t.Fatalf("create blog: %v", err)
	}
	kept, err := blogs.Create(ctx, owner, &model.Blog{Title: "Kept"}, "")
	if err != nil {
		t.Fatalf("create blog: %v", err)
	}
	hidden, err := posts.Create(ctx, other, testutil.NewTestPost(t), gone.ID)
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	visible, err := posts.Create(ctx, other, testutil.NewTestPost(t), kept.ID)
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	if err := blogs.Delete(ctx, gone.ID, owner); err != nil {
		t.Fatalf("delete blog: %v", err)
	}

	page, err := posts.List(ctx, lifecycle.Query{OwnerID: other.ID}, "", 10)
	if err != nil {
		t.Fatalf("list posts: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != visible.ID {
		t.Fatalf("listed %d posts, want only %s", len(page.Items), visible.ID)
	}

	_, err = posts.Update(ctx, hidden.ID, other, lifecycle.Patch[*model.BlogPost]{
		model.PostContent.To(lifecycle.Some("edited after blog deleted")),
	})
	if !errors.Is(err, lifecycle.ErrNotFound) {
		t.Fatalf("expected ErrNotFound updating a post of a deleted blog, got %v", err)
	}
	if err := posts.Delete(ctx, hidden.ID, other); !errors.Is(err, lifecycle.ErrNotFound) {
		t.Fatalf("expected ErrNotFound deleting a post of a deleted blog, got %v", err)
	}
}

func TestIntegrationTable_FindPage(t *testing.T) {
	ctx, repo := newTableTestEnv(t)
	pages := lifecycle.NewManager[*model.Page](model.KindPage, repo.Pages(),
		lifecycle.MustRulePolicy(lifecycle.RuleAnyone, lifecycle.RuleOwnerOrElevated, lifecycle.RuleOwnerOrElevated, lifecycle.HardDelete))

	p, err := pages.Create(ctx, owner, &model.Page{Title: "About", Content: "Hello"}, "")
	if err != nil {
		t.Fatalf("create page: %v", err)
	}

	byTitle, err := repo.FindPage(ctx, model.PageFieldTitle, "About")
	if err != nil {
		t.Fatalf("find by title: %v", err)
	}
	if byTitle.ID != p.ID {
		t.Fatalf("found %s, want %s", byTitle.ID, p.ID)
	}

	byID, err := repo.FindPage(ctx, model.PageFieldID, p.ID)
	if err != nil || byID.Title != "About" {
		t.Fatalf("find by id: %+v %v", byID, err)
	}

	if _, err := repo.FindPage(ctx, model.PageFieldTitle, "Missing"); !errors.Is(err, ErrPageNotFound) {
		t.Fatalf("expected ErrPageNotFound, got %v", err)
	}
	if _, err := repo.FindPage(ctx, model.PageField("content"), "Hello"); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestIntegrationTable_ContactPins(t *testing.T) {
	ctx, repo := newTableTestEnv(t)
	now := time.Now().UTC().Truncate(time.Microsecond)

	pin := &model.ContactPin{ID: testutil.UniqueID("pin"), Email: "a@example.com", CodeHash: "h1", CreatedAt: now, UpdatedAt: now}
	if err := repo.CreateContactPin(ctx, pin); err != nil {
		t.Fatalf("create pin: %v", err)
	}

	dup := *pin
	dup.ID = testutil.UniqueID("pin")
	if err := repo.CreateContactPin(ctx, &dup); !errors.Is(err, ErrContactPinExists) {
		t.Fatalf("expected ErrContactPinExists, got %v", err)
	}

	pin.CodeHash = "h2"
	pin.UpdatedAt = now.Add(time.Second)
	if err := repo.UpdateContactPinCode(ctx, pin); err != nil {
		t.Fatalf("update pin: %v", err)
	}

	loaded, err := repo.GetContactPinByEmail(ctx, "a@example.com")
	if err != nil {
		t.Fatalf("get pin: %v", err)
	}
	if loaded.CodeHash != "h2" {
		t.Fatalf("code hash = %q, want h2", loaded.CodeHash)
	}

	if err := repo.UpdateContactPinCode(ctx, &model.ContactPin{Email: "nobody@example.com"}); !errors.Is(err, ErrContactPinNotFound) {
		t.Fatalf("expected ErrContactPinNotFound, got %v", err)
	}
}

func TestIntegrationTable_Users(t *testing.T) {
	ctx, repo := newTableTestEnv(t)

	user := testutil.NewTestUser(t, false)
	created, err := repo.GetOrCreateUser(ctx, user)
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}

	again, err := repo.GetOrCreateUser(ctx, &model.User{ID: "other-id", Email: user.Email})
	if err != nil {
		t.Fatalf("second get or create: %v", err)
	}
	if again.ID != created.ID {
		t.Fatalf("expected existing user %s, got %s", created.ID, again.ID)
	}

	if err := repo.SetSuperuser(ctx, created.ID, true); err != nil {
		t.Fatalf("set superuser: %v", err)
	}
	loaded, err := repo.GetUserByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if !loaded.IsSuperuser || loaded.FirstName != "Test" {
		t.Fatalf("loaded user = %+v", loaded)
	}

	if err := repo.SetSuperuser(ctx, "missing", true); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

// ============================================================================
// Test Environment Setup
// ============================================================================

func newTableTestEnv(t *testing.T) (context.Context, *Repository) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	ctx := context.Background()
	repo, err := New(ctx, testutil.DatabaseURL(t))
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(repo.Close)

	unlock, err := testutil.AcquireDBLock(ctx, repo.Pool())
	if err != nil {
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() {
		_ = unlock()
	})

	if err := testutil.ResetAllSchemas(ctx, repo.Pool()); err != nil {
		t.Fatalf("reset schema: %v", err)
	}

	return ctx, repo
}
