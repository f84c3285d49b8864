package service

import (
	"context"
	"errors"

	"github.com/quillbase/quillbase/internal/lifecycle"
	"github.com/quillbase/quillbase/internal/model"
	"github.com/quillbase/quillbase/internal/repository"
)

// PageFinder looks pages up by a column other than the id.
type PageFinder interface {
	FindPage(ctx context.Context, field model.PageField, value string) (*model.Page, error)
}

// PageService handles static pages.
type PageService struct {
	pages  *lifecycle.Manager[*model.Page]
	finder PageFinder
}

// NewPageService creates a PageService.
func NewPageService(store lifecycle.Store[*model.Page], finder PageFinder, policies Policies, deps Deps) *PageService {
	return &PageService{
		pages: lifecycle.NewManager(model.KindPage, store, policies[model.KindPage],
			managerOptions(deps, lifecycle.WithValidator(validatePage))...),
		finder: finder,
	}
}

func validatePage(p *model.Page) error {
	if err := requireText(model.KindPage, "title", p.Title, maxHeadingLength); err != nil {
		return err
	}
	return requireText(model.KindPage, "content", p.Content, maxContentLength)
}

// PageInput is the content of a page.
type PageInput struct {
	Title   string
	Content string
}

// PagePatch lists the page fields to change.
type PagePatch struct {
	Title   lifecycle.Opt[string]
	Content lifecycle.Opt[string]
}

// Create adds a page owned by acct.
func (s *PageService) Create(ctx context.Context, acct lifecycle.Account, in PageInput) (*model.Page, error) {
	return s.pages.Create(ctx, acct, &model.Page{Title: normalizeText(in.Title), Content: in.Content}, "")
}

// Get returns a page by id.
func (s *PageService) Get(ctx context.Context, id string) (*model.Page, error) {
	return s.pages.FetchByID(ctx, id, "")
}

// Find returns the first page whose field equals value. field must name a
// PageField.
func (s *PageService) Find(ctx context.Context, field, value string) (*model.Page, error) {
	f, err := model.ParsePageField(field)
	if err != nil {
		return nil, lifecycle.Invalid(model.KindPage, "%s", err.Error())
	}
	if f == model.PageFieldTitle {
		value = normalizeText(value)
	}

	page, err := s.finder.FindPage(ctx, f, value)
	if errors.Is(err, repository.ErrPageNotFound) {
		return nil, lifecycle.NotFound(model.KindPage, value)
	}
	return page, err
}

// List pages through all pages, or those of ownerID when set.
func (s *PageService) List(ctx context.Context, ownerID string, in ListInput) (lifecycle.Page[*model.Page], error) {
	return s.pages.List(ctx, lifecycle.Query{OwnerID: ownerID}, in.Cursor, in.limit())
}

// Update changes the set fields of a page.
func (s *PageService) Update(ctx context.Context, acct lifecycle.Account, id string, p PagePatch) (*model.Page, error) {
	patch := lifecycle.Patch[*model.Page]{
		model.PageTitle.To(normalizeOpt(p.Title)),
		model.PageContent.To(p.Content),
	}
	return s.pages.Update(ctx, id, acct, patch)
}

// Delete removes a page.
func (s *PageService) Delete(ctx context.Context, acct lifecycle.Account, id string) error {
	return s.pages.Delete(ctx, id, acct)
}
