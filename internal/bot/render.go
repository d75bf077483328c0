package bot

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ytgrab/ytgrab-bot/internal/domain"
)

const (
	progressBarSegments = 20

	// captionReserve leaves headroom under the chat API's message limit so a
	// truncated caption plus the trailing fields still fits.
	captionReserve = 100

	payloadFormat = "format"
	payloadCancel = "cancel"
)

// progressBar renders pct as a fixed-width bar of filled and empty blocks.
func progressBar(pct float64) string {
	filled := int(pct) / (100 / progressBarSegments)
	if filled < 0 {
		filled = 0
	}
	if filled > progressBarSegments {
		filled = progressBarSegments
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", progressBarSegments-filled)
}

// downloadCaption is the status text shown while fetching the file.
func downloadCaption(title, quality string, pct float64) string {
	return fmt.Sprintf("*%s*\n\n⏬ *Downloading %s*\n%s %.1f%%",
		title, quality, progressBar(pct), pct)
}

// uploadCaption is the status text shown while delivering the file.
func uploadCaption(title string, pct float64) string {
	return fmt.Sprintf("*%s*\n\n⏫ *Uploading to Telegram*\n%s %.1f%%",
		title, progressBar(pct), pct)
}

// finalCaption builds the caption attached to the delivered video. The
// caption is kept captionReserve under maxLen: the title is truncated by
// whatever the metadata lines leave over, and the composed result is clamped
// as a last resort against oversized metadata.
func finalCaption(info *domain.VideoInfo, option domain.FormatOption, sizeBytes int64, botUsername string, maxLen int) string {
	var tail strings.Builder
	fmt.Fprintf(&tail, "📊 Quality: %s\n", option.Label)
	if info.Duration != "" && info.Duration != "Unknown" {
		fmt.Fprintf(&tail, "⏱ Duration: %s\n", info.Duration)
	}
	if info.Channel != "" {
		fmt.Fprintf(&tail, "📺 Channel: %s\n", info.Channel)
	}
	fmt.Fprintf(&tail, "💾 Size: %s", domain.FormatSize(sizeBytes))
	if botUsername != "" {
		fmt.Fprintf(&tail, "\n\n@%s", botUsername)
	}

	const frame = "🎬 **\n\n"
	title := info.Title
	budget := maxLen - captionReserve - len(frame) - tail.Len()
	if budget > 3 && len(title) > budget {
		title = truncate(title, budget-3) + "..."
	}

	caption := fmt.Sprintf("🎬 *%s*\n\n%s", title, tail.String())
	if limit := maxLen - captionReserve; limit > 3 && len(caption) > limit {
		caption = truncate(caption, limit-3) + "..."
	}
	return caption
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// infoCaption describes the video above the format buttons.
func infoCaption(info *domain.VideoInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎬 *%s*\n\n", info.Title)
	if info.Channel != "" {
		fmt.Fprintf(&b, "📺 %s\n", info.Channel)
	}
	if info.Duration != "" && info.Duration != "Unknown" {
		fmt.Fprintf(&b, "⏱ %s\n", info.Duration)
	}
	b.WriteString("\nSelect a quality:")
	return b.String()
}

// formatPayload encodes a quality button's callback data. The embedded user
// ID lets the callback handler reject presses from other chat members.
func formatPayload(userID int64, selector string) string {
	return fmt.Sprintf("%s_%d_%s", payloadFormat, userID, selector)
}

// cancelPayload encodes the cancel button's callback data.
func cancelPayload(userID int64) string {
	return fmt.Sprintf("%s_%d", payloadCancel, userID)
}

// parsePayload splits callback data into its kind, the owning user ID and,
// for format presses, the selector token. Selectors are opaque and may
// themselves contain separators, so only the first two fields are split off.
func parsePayload(data string) (kind string, userID int64, selector string, ok bool) {
	parts := strings.SplitN(data, "_", 3)
	switch {
	case len(parts) == 3 && parts[0] == payloadFormat:
		kind = payloadFormat
		selector = parts[2]
	case len(parts) == 2 && parts[0] == payloadCancel:
		kind = payloadCancel
	default:
		return "", 0, "", false
	}

	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", 0, "", false
	}
	return kind, id, selector, true
}

// formatKeyboard lays out the quality options two per row, followed by a
// cancel row and a channel link row.
func formatKeyboard(userID int64, options []domain.FormatOption, channelURL string) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton

	var row []tgbotapi.InlineKeyboardButton
	for _, opt := range options {
		label := fmt.Sprintf("%s (%s)", opt.Label, opt.SizeLabel)
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, formatPayload(userID, opt.Selector)))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", cancelPayload(userID)),
	})
	if channelURL != "" {
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonURL("📺 Our Channel", channelURL),
		})
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// cancelKeyboard is the single-button keyboard shown on in-flight statuses.
func cancelKeyboard(userID int64) *tgbotapi.InlineKeyboardMarkup {
	kb := tgbotapi.NewInlineKeyboardMarkup(
		[]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", cancelPayload(userID)),
		},
	)
	return &kb
}

// channelKeyboard links back to the channel under the delivered video.
func channelKeyboard(channelURL string) *tgbotapi.InlineKeyboardMarkup {
	if channelURL == "" {
		return nil
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(
		[]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonURL("📺 Our Channel", channelURL),
		},
	)
	return &kb
}
