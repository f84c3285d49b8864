package service

import (
	"net/mail"
	"net/url"
	"slices"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/quillbase/quillbase/internal/lifecycle"
)

const (
	maxTitleLength    = 50
	maxHeadingLength  = 200
	maxContentLength  = 100000
	maxMessageLength  = 5000
	maxNameLength     = 100
	maxURLLength      = 2048
	maxTags           = 20
	maxTagLength      = 32
	maxContactField   = 255
	maxMapCoordinates = 100
)

// normalizeText trims s and converts it to Unicode NFC so visually equal
// strings compare equal.
func normalizeText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// normalizeOpt applies normalizeText to a set option.
func normalizeOpt(o lifecycle.Opt[string]) lifecycle.Opt[string] {
	if v, ok := o.Get(); ok {
		return lifecycle.Some(normalizeText(v))
	}
	return o
}

func requireText(resource, field, v string, max int) error {
	if v == "" {
		return lifecycle.Invalid(resource, "%s is required", field)
	}
	return checkLength(resource, field, v, max)
}

func checkLength(resource, field, v string, max int) error {
	if utf8.RuneCountInString(v) > max {
		return lifecycle.Invalid(resource, "%s must be at most %d characters", field, max)
	}
	return nil
}

// validateURL accepts absolute http and https URLs with a host.
func validateURL(resource, raw string) error {
	if raw == "" {
		return lifecycle.Invalid(resource, "url is required")
	}
	if len(raw) > maxURLLength {
		return lifecycle.Invalid(resource, "url must be at most %d characters", maxURLLength)
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return lifecycle.Invalid(resource, "url is malformed")
	}

	// Only allow http and https schemes
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return lifecycle.Invalid(resource, "url must use http or https")
	}

	if parsed.Host == "" {
		return lifecycle.Invalid(resource, "url must have a host")
	}

	return nil
}

// normalizeEmail parses raw as a bare address and lower-cases it.
func normalizeEmail(resource, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", lifecycle.Invalid(resource, "email is required")
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Address != raw {
		return "", lifecycle.Invalid(resource, "email is invalid")
	}
	return strings.ToLower(addr.Address), nil
}

// normalizeTags trims tags, drops empty ones and duplicates, keeping order.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = normalizeText(t)
		if t == "" || slices.Contains(out, t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func checkTags(resource string, tags []string) error {
	if len(tags) > maxTags {
		return lifecycle.Invalid(resource, "at most %d tags are allowed", maxTags)
	}
	for _, t := range tags {
		if err := checkLength(resource, "tag", t, maxTagLength); err != nil {
			return err
		}
	}
	return nil
}
