package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/quillbase/quillbase/internal/cache"
	"github.com/quillbase/quillbase/internal/lifecycle"
	"github.com/quillbase/quillbase/internal/model"
)

// PostCache is the read-through cache for blog posts.
// *cache.Records[*model.BlogPost] implements it.
type PostCache interface {
	Get(ctx context.Context, id string) (*model.BlogPost, error)
	Set(ctx context.Context, id string, rec *model.BlogPost) error
	SetMissing(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// BlogService handles blogs and the posts inside them.
type BlogService struct {
	blogs  *lifecycle.Manager[*model.Blog]
	posts  *lifecycle.Manager[*model.BlogPost]
	cache  PostCache
	logger *slog.Logger
}

// NewBlogService creates a BlogService. postCache may be nil.
func NewBlogService(
	blogs lifecycle.Store[*model.Blog],
	posts lifecycle.Store[*model.BlogPost],
	policies Policies,
	postCache PostCache,
	deps Deps,
) *BlogService {
	s := &BlogService{
		cache:  postCache,
		logger: deps.logger().With("component", "blog_service"),
	}

	s.blogs = lifecycle.NewManager(model.KindBlog, blogs, policies[model.KindBlog],
		managerOptions(deps, lifecycle.WithValidator(validateBlog))...)

	postOpts := []lifecycle.Option[*model.BlogPost]{
		lifecycle.WithParent[*model.BlogPost](model.KindBlog, true),
		lifecycle.WithValidator(validatePost),
	}
	if postCache != nil {
		postOpts = append(postOpts, lifecycle.WithHook[*model.BlogPost](s.refreshPostCache))
	}
	s.posts = lifecycle.NewManager(model.KindBlogPost, posts, policies[model.KindBlogPost],
		managerOptions(deps, postOpts...)...)

	return s
}

func validateBlog(b *model.Blog) error {
	return requireText(model.KindBlog, "title", b.Title, maxTitleLength)
}

func validatePost(p *model.BlogPost) error {
	if err := requireText(model.KindBlogPost, "title", p.Title, maxHeadingLength); err != nil {
		return err
	}
	if err := requireText(model.KindBlogPost, "content", p.Content, maxContentLength); err != nil {
		return err
	}
	return checkTags(model.KindBlogPost, p.Tags)
}

// CreateBlog creates a blog owned by acct. Titles are compared after
// trimming and NFC normalisation.
func (s *BlogService) CreateBlog(ctx context.Context, acct lifecycle.Account, title string) (*model.Blog, error) {
	return s.blogs.Create(ctx, acct, &model.Blog{Title: normalizeText(title)}, "")
}

// GetBlog returns a live blog. Elevated callers asking for deleted blogs
// also see soft-deleted ones.
func (s *BlogService) GetBlog(ctx context.Context, acct lifecycle.Account, id string, includeDeleted bool) (*model.Blog, error) {
	var opts []lifecycle.OpOption
	if includeDeleted {
		opts = append(opts, lifecycle.IncludeDeleted(acct))
	}
	return s.blogs.FetchByID(ctx, id, "", opts...)
}

// ListBlogs pages through all blogs, or those of ownerID when set.
func (s *BlogService) ListBlogs(ctx context.Context, acct lifecycle.Account, ownerID string, includeDeleted bool, in ListInput) (lifecycle.Page[*model.Blog], error) {
	q := lifecycle.Query{OwnerID: ownerID, IncludeDeleted: includeDeleted && acct.Elevated}
	return s.blogs.List(ctx, q, in.Cursor, in.limit())
}

// UpdateBlog renames a blog.
func (s *BlogService) UpdateBlog(ctx context.Context, acct lifecycle.Account, id string, title lifecycle.Opt[string]) (*model.Blog, error) {
	patch := lifecycle.Patch[*model.Blog]{model.BlogTitle.To(normalizeOpt(title))}
	return s.blogs.Update(ctx, id, acct, patch)
}

// DeleteBlog soft-deletes a blog; its title stays reserved.
func (s *BlogService) DeleteBlog(ctx context.Context, acct lifecycle.Account, id string) error {
	return s.blogs.Delete(ctx, id, acct)
}

// PostInput is the content of a new post.
type PostInput struct {
	Title   string
	Content string
	Tags    []string
}

// PostPatch lists the post fields to change.
type PostPatch struct {
	Title   lifecycle.Opt[string]
	Content lifecycle.Opt[string]
	Tags    lifecycle.Opt[[]string]
}

// CreatePost adds a post to a live blog.
func (s *BlogService) CreatePost(ctx context.Context, acct lifecycle.Account, blogID string, in PostInput) (*model.BlogPost, error) {
	post := &model.BlogPost{
		Title:   normalizeText(in.Title),
		Content: in.Content,
		Tags:    normalizeTags(in.Tags),
	}
	return s.posts.Create(ctx, acct, post, blogID)
}

// GetPost returns a post of a live blog, reading through the post cache.
func (s *BlogService) GetPost(ctx context.Context, blogID, postID string) (*model.BlogPost, error) {
	if _, err := s.blogs.FetchByID(ctx, blogID, ""); err != nil {
		return nil, err
	}

	post, err := s.cachedPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.BlogID() != blogID {
		return nil, lifecycle.NotFound(model.KindBlogPost, postID)
	}
	return post, nil
}

func (s *BlogService) cachedPost(ctx context.Context, id string) (*model.BlogPost, error) {
	if s.cache != nil {
		post, err := s.cache.Get(ctx, id)
		switch {
		case err == nil:
			return post, nil
		case errors.Is(err, cache.ErrNegativeHit):
			return nil, lifecycle.NotFound(model.KindBlogPost, id)
		}
	}

	post, err := s.posts.FetchByID(ctx, id, "")
	if s.cache == nil {
		return post, err
	}
	switch {
	case errors.Is(err, lifecycle.ErrNotFound):
		_ = s.cache.SetMissing(ctx, id)
	case err == nil:
		if cerr := s.cache.Set(ctx, id, post); cerr != nil {
			s.logger.Warn("cache post failed", "post_id", id, "error", cerr)
		}
	}
	return post, err
}

// ListPosts pages through the posts of a live blog.
func (s *BlogService) ListPosts(ctx context.Context, blogID string, in ListInput) (lifecycle.Page[*model.BlogPost], error) {
	if _, err := s.blogs.FetchByID(ctx, blogID, ""); err != nil {
		return lifecycle.Page[*model.BlogPost]{}, err
	}
	return s.posts.List(ctx, lifecycle.Query{ParentID: blogID}, in.Cursor, in.limit())
}

// ListPostsByAuthor pages through every post written by userID.
func (s *BlogService) ListPostsByAuthor(ctx context.Context, userID string, in ListInput) (lifecycle.Page[*model.BlogPost], error) {
	return s.posts.List(ctx, lifecycle.Query{OwnerID: userID}, in.Cursor, in.limit())
}

// UpdatePost changes the set fields of a post within blogID.
func (s *BlogService) UpdatePost(ctx context.Context, acct lifecycle.Account, blogID, postID string, p PostPatch) (*model.BlogPost, error) {
	tags := p.Tags
	if v, ok := tags.Get(); ok {
		tags = lifecycle.Some(normalizeTags(v))
	}
	patch := lifecycle.Patch[*model.BlogPost]{
		model.PostTitle.To(normalizeOpt(p.Title)),
		model.PostContent.To(p.Content),
		model.PostTags.To(tags),
	}
	return s.posts.Update(ctx, postID, acct, patch, lifecycle.InParent(blogID))
}

// DeletePost removes a post within blogID.
func (s *BlogService) DeletePost(ctx context.Context, acct lifecycle.Account, blogID, postID string) error {
	return s.posts.Delete(ctx, postID, acct, lifecycle.InParent(blogID))
}

// refreshPostCache keeps cached posts in step with committed writes.
func (s *BlogService) refreshPostCache(ctx context.Context, ev lifecycle.Event, post *model.BlogPost) error {
	switch ev {
	case lifecycle.EventCreated, lifecycle.EventUpdated:
		return s.cache.Set(ctx, post.ID, post)
	case lifecycle.EventDeleted:
		return s.cache.Delete(ctx, post.ID)
	}
	return nil
}
