// Package media scrapes video page metadata and downloads media files.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const maxPageBytes = 5 << 20

var (
	// ErrBlockedURL is returned when a URL fails the source guard.
	ErrBlockedURL = errors.New("media URL not allowed")
	// ErrFetchFailed is returned when the remote page cannot be retrieved.
	ErrFetchFailed = errors.New("media fetch failed")
	// ErrMetadataMissing is returned when the page lacks the microdata a
	// bookmark needs.
	ErrMetadataMissing = errors.New("video metadata not found")
)

// Metadata is what a video page advertises about itself through schema.org
// microdata.
type Metadata struct {
	Title     string
	URL       string
	Thumbnail string
	// Duration is rendered as H:MM:SS; empty when the page has none.
	Duration string
}

// Option configures a Fetcher or Downloader.
type Option func(*options)

type options struct {
	client *http.Client
	guard  func(string) error
}

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

// WithURLGuard replaces ValidateSourceURL. A nil guard accepts every URL.
func WithURLGuard(guard func(string) error) Option {
	return func(o *options) { o.guard = guard }
}

func buildOptions(timeout time.Duration, opts []Option) options {
	o := options{guard: ValidateSourceURL}
	for _, opt := range opts {
		opt(&o)
	}
	if o.client == nil {
		o.client = NewHTTPClient(timeout, o.guard)
	}
	return o
}

func (o options) check(raw string) error {
	if o.guard == nil {
		return nil
	}
	if err := o.guard(raw); err != nil {
		return fmt.Errorf("%w: %w", ErrBlockedURL, err)
	}
	return nil
}

// Fetcher scrapes video pages.
type Fetcher struct {
	opts options
}

// NewFetcher creates a Fetcher whose requests time out after timeout.
func NewFetcher(timeout time.Duration, opts ...Option) *Fetcher {
	return &Fetcher{opts: buildOptions(timeout, opts)}
}

// Fetch downloads the page at pageURL and extracts its video metadata.
// Relative links are resolved against the final URL after redirects.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*Metadata, error) {
	if err := f.opts.check(pageURL); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := f.opts.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", ErrFetchFailed, resp.StatusCode)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: parse html: %w", ErrFetchFailed, err)
	}

	return extractMetadata(doc, resp.Request.URL)
}

func extractMetadata(doc *html.Node, base *url.URL) (*Metadata, error) {
	props := make(map[string]string)
	walk(doc, func(n *html.Node) {
		var valueAttr string
		switch n.Data {
		case "meta":
			valueAttr = "content"
		case "link":
			valueAttr = "href"
		default:
			return
		}
		prop := attr(n, "itemprop")
		if prop == "" {
			return
		}
		key := n.Data + ":" + prop
		if _, seen := props[key]; seen {
			return
		}
		if v := strings.TrimSpace(attr(n, valueAttr)); v != "" {
			props[key] = v
		}
	})

	meta := &Metadata{
		Title:     props["meta:name"],
		URL:       resolve(base, props["link:url"]),
		Thumbnail: resolve(base, props["link:thumbnailUrl"]),
	}
	if meta.Title == "" {
		return nil, fmt.Errorf("%w: missing name", ErrMetadataMissing)
	}
	if meta.URL == "" {
		return nil, fmt.Errorf("%w: missing url", ErrMetadataMissing)
	}

	if raw := props["meta:duration"]; raw != "" {
		d, err := ParseISODuration(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMetadataMissing, err)
		}
		meta.Duration = FormatClock(d)
	}
	return meta, nil
}

func walk(n *html.Node, visit func(*html.Node)) {
	if n.Type == html.ElementNode {
		visit(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func resolve(base *url.URL, ref string) string {
	if ref == "" || base == nil {
		return ref
	}
	u, err := base.Parse(ref)
	if err != nil {
		return ref
	}
	return u.String()
}
