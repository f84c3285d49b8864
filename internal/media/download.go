package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/quillbase/quillbase/internal/jobs"
)

// JobKind is the job kind carrying a DownloadRequest on the media stream.
const JobKind = "media.download"

// ErrTooLarge is returned when a download exceeds the configured cap.
var ErrTooLarge = errors.New("media exceeds size limit")

// DownloadRequest asks for the media behind a bookmarked video to be saved.
type DownloadRequest struct {
	VideoID string `json:"video_id"`
	URL     string `json:"url"`
}

// DownloaderConfig configures a Downloader.
type DownloaderConfig struct {
	Dir      string
	MaxBytes int64
	Logger   *slog.Logger
}

// Downloader streams remote media into a local directory.
type Downloader struct {
	dir      string
	maxBytes int64
	logger   *slog.Logger
	opts     options
}

// NewDownloader creates a Downloader. Downloads have no overall timeout;
// the job context bounds them.
func NewDownloader(cfg DownloaderConfig, opts ...Option) *Downloader {
	return &Downloader{
		dir:      cfg.Dir,
		maxBytes: cfg.MaxBytes,
		logger:   cfg.Logger.With("component", "media"),
		opts:     buildOptions(0, opts),
	}
}

// Download fetches req.URL and stores it as <dir>/<video id><ext>, returning
// the file path. The file appears only once it is complete.
func (d *Downloader) Download(ctx context.Context, req DownloadRequest) (string, error) {
	name := safeName(req.VideoID)
	if name == "" {
		return "", jobs.Permanent(errors.New("video id is required"))
	}
	if err := d.opts.check(req.URL); err != nil {
		return "", jobs.Permanent(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return "", jobs.Permanent(fmt.Errorf("build request: %w", err))
	}
	httpReq.Header.Set("User-Agent", userAgent)

	resp, err := d.opts.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests:
		return "", jobs.Permanent(fmt.Errorf("%w: status %d", ErrFetchFailed, resp.StatusCode))
	default:
		return "", fmt.Errorf("%w: status %d", ErrFetchFailed, resp.StatusCode)
	}

	if d.maxBytes > 0 && resp.ContentLength > d.maxBytes {
		return "", jobs.Permanent(fmt.Errorf("%w: %d bytes", ErrTooLarge, resp.ContentLength))
	}

	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}

	tmp, err := os.CreateTemp(d.dir, name+"-*.part")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		// No-op once renamed.
		_ = os.Remove(tmp.Name())
	}()

	var body io.Reader = resp.Body
	if d.maxBytes > 0 {
		body = io.LimitReader(resp.Body, d.maxBytes+1)
	}
	written, err := io.Copy(tmp, body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", fmt.Errorf("write media: %w", err)
	}
	if d.maxBytes > 0 && written > d.maxBytes {
		return "", jobs.Permanent(fmt.Errorf("%w: more than %d bytes", ErrTooLarge, d.maxBytes))
	}

	dest := filepath.Join(d.dir, name+extension(resp.Header.Get("Content-Type"), resp.Request.URL.Path))
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", fmt.Errorf("finalize media: %w", err)
	}

	d.logger.Info("media downloaded",
		"video_id", req.VideoID,
		"host", ExtractHost(req.URL),
		"bytes", written,
	)
	return dest, nil
}

// HandleJob decodes a download job and runs it.
func (d *Downloader) HandleJob(ctx context.Context, job *jobs.Job) error {
	var req DownloadRequest
	if err := job.Decode(&req); err != nil {
		return err
	}
	_, err := d.Download(ctx, req)
	return err
}

// safeName keeps ids usable as file names.
func safeName(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return -1
		}
	}, id)
}

// extension picks a file extension from the URL path, then the content type.
func extension(contentType, urlPath string) string {
	if ext := path.Ext(urlPath); ext != "" && len(ext) <= 6 && safeName(ext[1:]) == ext[1:] {
		return strings.ToLower(ext)
	}
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		if exts, _ := mime.ExtensionsByType(mediaType); len(exts) > 0 {
			return exts[0]
		}
	}
	return ".bin"
}
