package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/quillbase/quillbase/internal/jobs"
	"github.com/quillbase/quillbase/internal/lifecycle"
	"github.com/quillbase/quillbase/internal/media"
	"github.com/quillbase/quillbase/internal/model"
	"github.com/quillbase/quillbase/internal/repository"
)

// VideoFetcher scrapes the metadata of a video page.
type VideoFetcher interface {
	Fetch(ctx context.Context, pageURL string) (*media.Metadata, error)
}

// VideoLikes adjusts like counters atomically.
type VideoLikes interface {
	AdjustVideoLikes(ctx context.Context, id string, delta int) (int, error)
}

// VideoService handles video bookmarks.
type VideoService struct {
	videos  *lifecycle.Manager[*model.Video]
	likes   VideoLikes
	fetcher VideoFetcher
	queue   Enqueuer
	logger  *slog.Logger
}

// NewVideoService creates a VideoService.
func NewVideoService(
	store lifecycle.Store[*model.Video],
	likes VideoLikes,
	fetcher VideoFetcher,
	queue Enqueuer,
	policies Policies,
	deps Deps,
) *VideoService {
	return &VideoService{
		videos: lifecycle.NewManager(model.KindVideo, store, policies[model.KindVideo],
			managerOptions(deps, lifecycle.WithValidator(validateVideo))...),
		likes:   likes,
		fetcher: fetcher,
		queue:   queue,
		logger:  deps.logger().With("component", "video_service"),
	}
}

func validateVideo(v *model.Video) error {
	if err := requireText(model.KindVideo, "title", v.Title, maxHeadingLength); err != nil {
		return err
	}
	return validateURL(model.KindVideo, v.URL)
}

// Bookmark scrapes pageURL and saves the video it describes for acct.
func (s *VideoService) Bookmark(ctx context.Context, acct lifecycle.Account, pageURL string) (*model.Video, error) {
	if acct.IsAnonymous() {
		return nil, lifecycle.Forbidden(model.KindVideo, "", "authentication required")
	}
	if err := validateURL(model.KindVideo, pageURL); err != nil {
		return nil, err
	}

	meta, err := s.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		s.logger.Warn("video scrape failed", "host", media.ExtractHost(pageURL), "error", err)
		switch {
		case errors.Is(err, media.ErrBlockedURL):
			return nil, lifecycle.Invalid(model.KindVideo, "url is not allowed")
		case errors.Is(err, media.ErrMetadataMissing):
			return nil, lifecycle.Invalid(model.KindVideo, "page does not describe a video")
		case errors.Is(err, media.ErrFetchFailed):
			return nil, lifecycle.Invalid(model.KindVideo, "video page could not be fetched")
		}
		return nil, err
	}

	video := &model.Video{
		Title:     normalizeText(meta.Title),
		URL:       meta.URL,
		Thumbnail: meta.Thumbnail,
		Duration:  meta.Duration,
	}
	return s.videos.Create(ctx, acct, video, "")
}

// ListMine returns every video bookmarked by acct, oldest first.
func (s *VideoService) ListMine(ctx context.Context, acct lifecycle.Account) ([]*model.Video, error) {
	videos := []*model.Video{}
	for v, err := range s.videos.ListByOwner(ctx, acct.ID, "") {
		if err != nil {
			return nil, err
		}
		videos = append(videos, v)
	}
	return videos, nil
}

// Get returns a video by id.
func (s *VideoService) Get(ctx context.Context, id string) (*model.Video, error) {
	return s.videos.FetchByID(ctx, id, "")
}

// Rename changes the title of a video.
func (s *VideoService) Rename(ctx context.Context, acct lifecycle.Account, id string, title lifecycle.Opt[string]) (*model.Video, error) {
	patch := lifecycle.Patch[*model.Video]{model.VideoTitle.To(normalizeOpt(title))}
	return s.videos.Update(ctx, id, acct, patch)
}

// React applies a like or unlike to a video. Any caller may react; the
// counter never drops below zero.
func (s *VideoService) React(ctx context.Context, id, action string) (*model.Video, error) {
	delta, ok := model.VideoAction(action).Delta()
	if !ok {
		return nil, lifecycle.Invalid(model.KindVideo, "%s not supported, use 'like' or 'unlike'", action)
	}

	video, err := s.videos.FetchByID(ctx, id, "")
	if err != nil {
		return nil, err
	}

	likes, err := s.likes.AdjustVideoLikes(ctx, id, delta)
	if errors.Is(err, repository.ErrVideoNotFound) {
		return nil, lifecycle.NotFound(model.KindVideo, id)
	}
	if err != nil {
		return nil, err
	}

	video.Likes = likes
	return video, nil
}

// Delete removes a video bookmark. Only its owner may.
func (s *VideoService) Delete(ctx context.Context, acct lifecycle.Account, id string) error {
	return s.videos.Delete(ctx, id, acct)
}

// Download queues a background download of a video and returns the job id.
func (s *VideoService) Download(ctx context.Context, id string) (string, error) {
	video, err := s.videos.FetchByID(ctx, id, "")
	if err != nil {
		return "", err
	}

	req := media.DownloadRequest{VideoID: video.ID, URL: video.URL}
	jobID, err := s.queue.Enqueue(ctx, jobs.StreamMedia, media.JobKind, req)
	if err != nil {
		return "", err
	}

	s.logger.Info("video download queued", "video_id", video.ID, "job_id", jobID)
	return jobID, nil
}
