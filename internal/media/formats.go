package media

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ytgrab/ytgrab-bot/internal/domain"
)

// maxOptions caps the number of resolution buttons offered to a user.
const maxOptions = 8

// rawFormat is one extractor-reported format, reduced to the fields the
// option builder needs.
type rawFormat struct {
	ID         string
	Ext        string
	VCodec     string
	ACodec     string
	Resolution string // "1920x1080", "1080p" or "audio only"
	FPS        float64
	Filesize   int64
}

func (f rawFormat) hasVideo() bool { return f.VCodec != "" && f.VCodec != "none" }
func (f rawFormat) hasAudio() bool { return f.ACodec != "" && f.ACodec != "none" }

// compatible filters for formats that remux into MP4 without re-encoding:
// H.264 video in an MP4-friendly container, and common audio codecs with a
// preference for AAC handled later.
func (f rawFormat) compatible() bool {
	if !f.hasVideo() && !f.hasAudio() {
		return false
	}

	if f.hasVideo() {
		vcodec := strings.ToLower(f.VCodec)
		if !strings.Contains(vcodec, "avc") && !strings.Contains(vcodec, "h264") && !strings.Contains(vcodec, "h.264") {
			return false
		}
		switch strings.ToLower(f.Ext) {
		case "mp4", "webm", "mkv":
		default:
			return false
		}
	}

	if f.hasAudio() {
		acodec := strings.ToLower(f.ACodec)
		ok := false
		for _, c := range []string{"aac", "mp4a", "opus", "vorbis", "mp3"} {
			if strings.Contains(acodec, c) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}

	return true
}

// buildOptions turns the extractor's raw format list into at most maxOptions
// presentable choices: compatible formats only, video-only tracks paired with
// the best audio track, one option per resolution (first seen wins), sorted
// by descending resolution, anything over maxSize dropped. When nothing
// usable remains a single synthetic option carrying fallbackSelector is
// returned.
func buildOptions(formats []rawFormat, maxSize int64, fallbackSelector string) []domain.FormatOption {
	var videos, audios []rawFormat
	for _, f := range formats {
		if !f.compatible() {
			continue
		}
		if f.hasVideo() {
			videos = append(videos, f)
		} else {
			audios = append(audios, f)
		}
	}

	sort.SliceStable(videos, func(i, j int) bool {
		return parseResolution(videos[i].Resolution) > parseResolution(videos[j].Resolution)
	})

	bestAudio, haveAudio := selectBestAudio(audios)

	var options []domain.FormatOption
	seen := make(map[string]bool)

	for _, v := range videos {
		if v.Resolution == "" || v.Resolution == "audio only" {
			continue
		}
		label := resolutionLabel(v.Resolution, v.FPS)
		if seen[label] {
			continue
		}

		selector := v.ID
		total := v.Filesize
		if !v.hasAudio() {
			if !haveAudio {
				continue
			}
			selector = v.ID + "+" + bestAudio.ID
			total += bestAudio.Filesize
		}

		if total > maxSize {
			continue
		}

		seen[label] = true
		options = append(options, domain.FormatOption{
			Selector:  selector,
			Label:     label,
			SizeBytes: total,
			SizeLabel: domain.FormatSize(total),
		})
		if len(options) == maxOptions {
			break
		}
	}

	if len(options) == 0 {
		return []domain.FormatOption{{
			Selector:  fallbackSelector,
			Label:     "Best available",
			SizeLabel: "Unknown",
		}}
	}

	return options
}

// selectBestAudio picks the largest AAC track, falling back to the largest
// track of any accepted codec.
func selectBestAudio(audios []rawFormat) (rawFormat, bool) {
	var best rawFormat
	found := false
	bestAAC := false

	for _, a := range audios {
		acodec := strings.ToLower(a.ACodec)
		isAAC := strings.Contains(acodec, "aac") || strings.Contains(acodec, "mp4a")

		switch {
		case !found,
			isAAC && !bestAAC,
			isAAC == bestAAC && a.Filesize > best.Filesize:
			best = a
			found = true
			bestAAC = isAAC
		}
	}

	return best, found
}

// parseResolution extracts the numeric height from a resolution string:
// the trailing dimension of "1920x1080", or the digits of "1080p".
// Unparsable strings rank as 0.
func parseResolution(s string) int {
	if s == "" || s == "audio only" {
		return 0
	}

	if idx := strings.LastIndexByte(s, 'x'); idx >= 0 {
		s = s[idx+1:]
	}

	n := 0
	digits := false
	for _, r := range s {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int(r-'0')
		digits = true
	}
	if !digits {
		return 0
	}
	return n
}

// resolutionLabel renders "1920x1080" as "1080p", appending the frame rate
// for high-fps formats.
func resolutionLabel(resolution string, fps float64) string {
	label := resolution
	if idx := strings.LastIndexByte(resolution, 'x'); idx >= 0 {
		label = resolution[idx+1:] + "p"
	}
	if fps > 30 {
		label = fmt.Sprintf("%s %dfps", label, int(fps))
	}
	return label
}
