package model

import "github.com/quillbase/quillbase/internal/lifecycle"

// Video is a bookmarked video page. Title, URL, thumbnail and duration are
// scraped when the bookmark is created.
type Video struct {
	lifecycle.Meta
	Title     string `json:"title"`
	URL       string `json:"url"`
	Thumbnail string `json:"thumbnail"`
	Duration  string `json:"duration"`
	Likes     int    `json:"likes"`
}

// CloneVideo returns a copy of v.
func CloneVideo(v *Video) *Video {
	cp := *v
	cp.Meta = v.Meta.Clone()
	return &cp
}

// Video fields.
var (
	VideoTitle = lifecycle.Field[*Video, string]{Name: "title", Set: func(v *Video, s string) { v.Title = s }}
)

// VideoAction is a reaction applied to a video.
type VideoAction string

const (
	ActionLike   VideoAction = "like"
	ActionUnlike VideoAction = "unlike"
)

// Delta returns the change in likes for a, and false for unknown actions.
func (a VideoAction) Delta() (int, bool) {
	switch a {
	case ActionLike:
		return 1, true
	case ActionUnlike:
		return -1, true
	default:
		return 0, false
	}
}
