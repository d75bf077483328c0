package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"github.com/ytgrab/ytgrab-bot/internal/config"
	"github.com/ytgrab/ytgrab-bot/internal/domain"
)

// progressInterval is how often yt-dlp reports download progress. Rendering
// to chat is throttled separately by the orchestrator.
const progressInterval = 500 * time.Millisecond

// Extractor adapts yt-dlp for format listing and merged MP4 downloads.
type Extractor struct {
	cookiesFile   string
	bestSelector  string
	socketTimeout time.Duration
	tempPath      string
	logger        *slog.Logger
}

// NewExtractor creates a yt-dlp backed extractor.
func NewExtractor(cfg config.Media, storage config.Storage, logger *slog.Logger) *Extractor {
	return &Extractor{
		cookiesFile:   cfg.CookiesFile,
		bestSelector:  cfg.BestSelector,
		socketTimeout: cfg.SocketTimeout,
		tempPath:      storage.TempPath,
		logger:        logger,
	}
}

// ListFormats fetches video metadata and builds the presentable format
// options for url. Formats whose combined size exceeds maxSize are excluded.
func (e *Extractor) ListFormats(ctx context.Context, url string, maxSize int64) (*domain.VideoInfo, error) {
	dl := ytdlp.New().
		SkipDownload().
		DumpSingleJSON().
		NoWarnings().
		SocketTimeout(e.socketTimeout.Seconds()).
		Cookies(e.cookiesFile)

	result, err := dl.Run(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("extract info: %w", err)
	}

	infos, err := result.GetExtractedInfo()
	if err != nil || len(infos) == 0 {
		return nil, domain.ErrNoFormats
	}
	info := infos[0]

	raw := make([]rawFormat, 0, len(info.Formats))
	for _, f := range info.Formats {
		if f == nil {
			continue
		}
		raw = append(raw, rawFormat{
			ID:         strVal(f.FormatID),
			Ext:        strVal(f.Extension),
			VCodec:     strVal(f.VCodec),
			ACodec:     strVal(f.ACodec),
			Resolution: strVal(f.Resolution),
			FPS:        floatVal(f.FPS),
			Filesize:   formatSizeBytes(f.FileSize, f.FileSizeApprox),
		})
	}

	return &domain.VideoInfo{
		Title:        strOr(info.Title, "Video"),
		Duration:     formatDuration(int(floatVal(info.Duration))),
		Channel:      strOr(info.Channel, "Unknown"),
		ThumbnailURL: strVal(info.Thumbnail),
		Options:      buildOptions(raw, maxSize, e.bestSelector),
	}, nil
}

// Fetch downloads and merges the selected format into a single MP4 under the
// temp directory, reporting fractional percent through onProgress. The
// returned path is owned by the caller. Cancellation of ctx aborts the
// download; any partial file is left for the janitor.
func (e *Extractor) Fetch(ctx context.Context, url, selector string, userID int64, onProgress func(percent float64)) (string, error) {
	id := VideoID(url)
	if id == "" {
		id = "video"
	}
	// User ID in the filename partitions the temp namespace between users.
	outputTemplate := filepath.Join(e.tempPath, fmt.Sprintf("%d_%s.%%(ext)s", userID, id))

	dl := ytdlp.New().
		Format(selector).
		Output(outputTemplate).
		MergeOutputFormat("mp4").
		NoWarnings().
		ForceOverwrites().
		RestrictFilenames().
		SocketTimeout(e.socketTimeout.Seconds()).
		Cookies(e.cookiesFile)

	dl.ProgressFunc(progressInterval, func(update ytdlp.ProgressUpdate) {
		if onProgress == nil || update.TotalBytes <= 0 {
			return
		}
		onProgress(float64(update.DownloadedBytes) / float64(update.TotalBytes) * 100)
	})

	result, err := dl.Run(ctx, url)
	if err != nil {
		return "", fmt.Errorf("run yt-dlp: %w", err)
	}

	path := filepath.Join(e.tempPath, fmt.Sprintf("%d_%s.mp4", userID, id))
	if infos, infoErr := result.GetExtractedInfo(); infoErr == nil && len(infos) > 0 && infos[0].Filename != nil {
		path = *infos[0].Filename
	}

	// The merge step rewrites the extension; prefer the .mp4 sibling when the
	// reported filename still carries the pre-merge one.
	if ext := filepath.Ext(path); ext != ".mp4" {
		candidate := strings.TrimSuffix(path, ext) + ".mp4"
		if _, statErr := os.Stat(candidate); statErr == nil {
			path = candidate
		}
	}

	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: merged file missing", domain.ErrFetchFailed)
	}

	if onProgress != nil {
		onProgress(100)
	}

	e.logger.Info("download complete", "url", url, "path", path)
	return path, nil
}

// formatDuration renders seconds as H:MM:SS, or M:SS under an hour.
func formatDuration(seconds int) string {
	if seconds <= 0 {
		return "Unknown"
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func formatSizeBytes(exact, approx *int) int64 {
	if exact != nil && *exact > 0 {
		return int64(*exact)
	}
	if approx != nil && *approx > 0 {
		return int64(*approx)
	}
	return 0
}

func strVal(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func strOr(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}

func floatVal(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
