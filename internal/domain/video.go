package domain

import "fmt"

// FormatOption is one selectable quality choice for a video. Selector is an
// opaque token understood only by the media adapter; it may encode a composite
// video+audio pairing.
type FormatOption struct {
	Selector  string
	Label     string // e.g. "1080p" or "720p 60fps"
	SizeBytes int64
	SizeLabel string // human readable, "Unknown" when size is unavailable
}

// VideoInfo is the listing result for a URL: shared metadata plus the
// presentable format options.
type VideoInfo struct {
	Title        string
	Duration     string
	Channel      string
	ThumbnailURL string
	Options      []FormatOption
}

// OptionBySelector returns the option carrying the given selector token.
func (v *VideoInfo) OptionBySelector(selector string) (FormatOption, bool) {
	for _, opt := range v.Options {
		if opt.Selector == selector {
			return opt, true
		}
	}
	return FormatOption{}, false
}

// FormatSize renders a byte count in human readable form.
func FormatSize(bytes int64) string {
	if bytes <= 0 {
		return "Unknown"
	}
	size := float64(bytes)
	for _, unit := range []string{"B", "KB", "MB", "GB"} {
		if size < 1024.0 {
			return fmt.Sprintf("%.2f %s", size, unit)
		}
		size /= 1024.0
	}
	return fmt.Sprintf("%.2f TB", size)
}
