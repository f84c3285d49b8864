package model

import (
	"slices"

	"github.com/quillbase/quillbase/internal/lifecycle"
)

// Resource kinds.
const (
	KindBlog           = "blog"
	KindBlogPost       = "blog_post"
	KindContact        = "contact"
	KindContactMessage = "contact_message"
	KindPage           = "page"
	KindVideo          = "video"
)

// Kinds lists every resource kind with a lifecycle policy.
var Kinds = []string{KindBlog, KindBlogPost, KindContact, KindContactMessage, KindPage, KindVideo}

// Blog is a titled collection of posts. Titles are unique across all
// blogs, soft-deleted ones included.
type Blog struct {
	lifecycle.Meta
	Title string `json:"title"`
}

// CloneBlog returns a copy of b.
func CloneBlog(b *Blog) *Blog {
	c := *b
	c.Meta = b.Meta.Clone()
	return &c
}

// Blog fields.
var (
	BlogTitle = lifecycle.Field[*Blog, string]{Name: "title", Set: func(b *Blog, v string) { b.Title = v }}
)

// BlogPost is an entry inside a Blog. Meta.ParentID holds the blog id.
type BlogPost struct {
	lifecycle.Meta
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
}

// BlogID returns the id of the blog the post belongs to.
func (p *BlogPost) BlogID() string {
	return p.ParentID
}

// CloneBlogPost returns a deep copy of p.
func CloneBlogPost(p *BlogPost) *BlogPost {
	c := *p
	c.Meta = p.Meta.Clone()
	c.Tags = slices.Clone(p.Tags)
	return &c
}

// BlogPost fields.
var (
	PostTitle   = lifecycle.Field[*BlogPost, string]{Name: "title", Set: func(p *BlogPost, v string) { p.Title = v }}
	PostContent = lifecycle.Field[*BlogPost, string]{Name: "content", Set: func(p *BlogPost, v string) { p.Content = v }}
	PostTags    = lifecycle.Field[*BlogPost, []string]{Name: "tags", Set: func(p *BlogPost, v []string) { p.Tags = slices.Clone(v) }}
)
