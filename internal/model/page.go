package model

import (
	"fmt"

	"github.com/quillbase/quillbase/internal/lifecycle"
)

// Page is a static content page.
type Page struct {
	lifecycle.Meta
	Title   string `json:"title"`
	Content string `json:"content"`
}

// ClonePage returns a copy of p.
func ClonePage(p *Page) *Page {
	cp := *p
	cp.Meta = p.Meta.Clone()
	return &cp
}

// Page fields.
var (
	PageTitle   = lifecycle.Field[*Page, string]{Name: "title", Set: func(p *Page, v string) { p.Title = v }}
	PageContent = lifecycle.Field[*Page, string]{Name: "content", Set: func(p *Page, v string) { p.Content = v }}
)

// PageField names a column pages can be looked up by.
type PageField string

const (
	PageFieldID    PageField = "id"
	PageFieldTitle PageField = "title"
)

// ParsePageField validates s as a lookup field.
func ParsePageField(s string) (PageField, error) {
	switch f := PageField(s); f {
	case PageFieldID, PageFieldTitle:
		return f, nil
	default:
		return "", fmt.Errorf("unknown page field %q", s)
	}
}

// Match reports whether p's field equals value.
func (f PageField) Match(p *Page, value string) bool {
	switch f {
	case PageFieldID:
		return p.ID == value
	case PageFieldTitle:
		return p.Title == value
	}
	return false
}
