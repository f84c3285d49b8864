package repository

import (
	"github.com/lib/pq"

	"github.com/quillbase/quillbase/internal/model"
)

// Blogs returns the store for blogs.
func (r *Repository) Blogs() *Table[*model.Blog] {
	return NewTable(r, Schema[*model.Blog]{
		Table:   "blogs",
		Columns: []string{"title"},
		New:     func() *model.Blog { return &model.Blog{} },
		Fields:  func(b *model.Blog) []any { return []any{&b.Title} },
		Values:  func(b *model.Blog) []any { return []any{b.Title} },
		Conflicts: map[string]string{
			"blogs_title_key": "blog title already exists",
		},
	})
}

// BlogPosts returns the store for blog posts.
func (r *Repository) BlogPosts() *Table[*model.BlogPost] {
	return NewTable(r, Schema[*model.BlogPost]{
		Table:        "blog_posts",
		ParentColumn: "blog_id",
		ParentTable:  "blogs",
		Columns:      []string{"title", "content", "tags"},
		New:          func() *model.BlogPost { return &model.BlogPost{} },
		Fields: func(p *model.BlogPost) []any {
			return []any{&p.Title, &p.Content, pq.Array(&p.Tags)}
		},
		Values: func(p *model.BlogPost) []any {
			tags := p.Tags
			if tags == nil {
				tags = []string{}
			}
			return []any{p.Title, p.Content, pq.Array(tags)}
		},
	})
}

// Contacts returns the store for contacts.
func (r *Repository) Contacts() *Table[*model.Contact] {
	return NewTable(r, Schema[*model.Contact]{
		Table:   "contacts",
		Columns: []string{"phone", "address", "map_coordinates"},
		New:     func() *model.Contact { return &model.Contact{} },
		Fields: func(c *model.Contact) []any {
			return []any{&c.Phone, &c.Address, &c.MapCoordinates}
		},
		Values: func(c *model.Contact) []any {
			return []any{c.Phone, c.Address, c.MapCoordinates}
		},
	})
}

// ContactMessages returns the store for contact-us messages.
func (r *Repository) ContactMessages() *Table[*model.ContactMessage] {
	return NewTable(r, Schema[*model.ContactMessage]{
		Table:   "contact_messages",
		Columns: []string{"name", "email", "subject", "message"},
		New:     func() *model.ContactMessage { return &model.ContactMessage{} },
		Fields: func(m *model.ContactMessage) []any {
			return []any{&m.Name, &m.Email, &m.Subject, &m.Message}
		},
		Values: func(m *model.ContactMessage) []any {
			return []any{m.Name, m.Email, m.Subject, m.Message}
		},
	})
}

// Pages returns the store for pages.
func (r *Repository) Pages() *Table[*model.Page] {
	return NewTable(r, Schema[*model.Page]{
		Table:   "pages",
		Columns: []string{"title", "content"},
		New:     func() *model.Page { return &model.Page{} },
		Fields:  func(p *model.Page) []any { return []any{&p.Title, &p.Content} },
		Values:  func(p *model.Page) []any { return []any{p.Title, p.Content} },
	})
}

// Videos returns the store for videos.
func (r *Repository) Videos() *Table[*model.Video] {
	return NewTable(r, Schema[*model.Video]{
		Table:      "videos",
		Columns:    []string{"title", "url", "thumbnail", "duration", "likes"},
		InsertOnly: []string{"likes"},
		New:        func() *model.Video { return &model.Video{} },
		Fields: func(v *model.Video) []any {
			return []any{&v.Title, &v.URL, &v.Thumbnail, &v.Duration, &v.Likes}
		},
		Values: func(v *model.Video) []any {
			return []any{v.Title, v.URL, v.Thumbnail, v.Duration, v.Likes}
		},
	})
}
