package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ytgrab/ytgrab-bot/internal/domain"
)

// Transport wraps the bot API with the small send/edit/delete surface the
// rest of the bot needs. Status-message fallback logic (caption vs text
// edits, photo-to-text degradation) lives here so call sites issue one call.
type Transport struct {
	bot    *tgbotapi.BotAPI
	logger *slog.Logger
}

// NewTransport authenticates against the bot API.
func NewTransport(token string, logger *slog.Logger) (*Transport, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("authorize bot: %w", err)
	}
	return &Transport{bot: bot, logger: logger}, nil
}

// Username returns the authenticated bot's username.
func (t *Transport) Username() string {
	return t.bot.Self.UserName
}

// Updates opens the long-poll update channel.
func (t *Transport) Updates(timeout int) tgbotapi.UpdatesChannel {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = timeout
	return t.bot.GetUpdatesChan(u)
}

// StopUpdates stops the long-poll loop; the update channel is closed.
func (t *Transport) StopUpdates() {
	t.bot.StopReceivingUpdates()
}

// SendText sends a plain Markdown message and returns its ID.
func (t *Transport) SendText(chatID int64, text string) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableWebPagePreview = true

	sent, err := t.bot.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("send message: %w", err)
	}
	return sent.MessageID, nil
}

// NotifyBestEffort sends a message and only logs on failure.
func (t *Transport) NotifyBestEffort(chatID int64, text string) {
	if _, err := t.SendText(chatID, text); err != nil {
		t.logger.Warn("notify failed", "chat_id", chatID, "error", err)
	}
}

// SendStatus creates the session's status message: a thumbnail photo with a
// caption when thumbnailURL is set and deliverable, otherwise plain text.
// The prior status message (if any) is superseded, never duplicated. The
// returned ref records which edit style later renders must use.
func (t *Transport) SendStatus(chatID int64, prior *domain.StatusRef, thumbnailURL, text string, kb *tgbotapi.InlineKeyboardMarkup) (*domain.StatusRef, error) {
	if thumbnailURL != "" {
		if prior != nil {
			t.DeleteMessage(prior)
		}

		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(thumbnailURL))
		photo.Caption = text
		photo.ParseMode = tgbotapi.ModeMarkdown
		if kb != nil {
			photo.ReplyMarkup = *kb
		}

		sent, err := t.bot.Send(photo)
		if err == nil {
			return &domain.StatusRef{ChatID: chatID, MessageID: sent.MessageID, HasMedia: true}, nil
		}
		// Thumbnail delivery failed; degrade to a text status below.
		t.logger.Warn("thumbnail send failed, falling back to text", "chat_id", chatID, "error", err)
		prior = nil
	}

	if prior != nil {
		if err := t.EditStatus(prior, text, kb); err == nil {
			return prior, nil
		}
		t.DeleteMessage(prior)
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableWebPagePreview = true
	if kb != nil {
		msg.ReplyMarkup = *kb
	}

	sent, err := t.bot.Send(msg)
	if err != nil {
		return nil, fmt.Errorf("send status message: %w", err)
	}
	return &domain.StatusRef{ChatID: chatID, MessageID: sent.MessageID}, nil
}

// EditStatus rewrites the status message in place, using a caption edit for
// media-backed messages and a text edit otherwise.
func (t *Transport) EditStatus(ref *domain.StatusRef, text string, kb *tgbotapi.InlineKeyboardMarkup) error {
	if ref == nil {
		return fmt.Errorf("no status message to edit")
	}

	var cfg tgbotapi.Chattable
	if ref.HasMedia {
		edit := tgbotapi.NewEditMessageCaption(ref.ChatID, ref.MessageID, text)
		edit.ParseMode = tgbotapi.ModeMarkdown
		edit.ReplyMarkup = kb
		cfg = edit
	} else {
		edit := tgbotapi.NewEditMessageText(ref.ChatID, ref.MessageID, text)
		edit.ParseMode = tgbotapi.ModeMarkdown
		edit.DisableWebPagePreview = true
		edit.ReplyMarkup = kb
		cfg = edit
	}

	if _, err := t.bot.Request(cfg); err != nil {
		return fmt.Errorf("edit status: %w", err)
	}
	return nil
}

// RenderStatusBestEffort edits the status message and logs failures at debug.
// Progress renders are disposable; a lost frame is not an error.
func (t *Transport) RenderStatusBestEffort(ref *domain.StatusRef, text string, kb *tgbotapi.InlineKeyboardMarkup) {
	if err := t.EditStatus(ref, text, kb); err != nil {
		t.logger.Debug("progress render failed", "error", err)
	}
}

// DeleteMessage removes a message best-effort.
func (t *Transport) DeleteMessage(ref *domain.StatusRef) {
	if ref == nil {
		return
	}
	if _, err := t.bot.Request(tgbotapi.NewDeleteMessage(ref.ChatID, ref.MessageID)); err != nil {
		t.logger.Debug("delete message failed", "message_id", ref.MessageID, "error", err)
	}
}

// AnswerCallback acknowledges a button press with a toast, or a popup alert.
func (t *Transport) AnswerCallback(callbackID, text string, alert bool) {
	cb := tgbotapi.NewCallback(callbackID, text)
	if alert {
		cb = tgbotapi.NewCallbackWithAlert(callbackID, text)
	}
	if _, err := t.bot.Request(cb); err != nil {
		t.logger.Debug("answer callback failed", "error", err)
	}
}

// SendVideo uploads the file at path as a streaming video, reporting bytes
// sent through onProgress. Cancelling ctx aborts the upload at the next read.
func (t *Transport) SendVideo(ctx context.Context, chatID int64, path, caption string, kb *tgbotapi.InlineKeyboardMarkup, streaming bool, onProgress func(sent, total int64)) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open video: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat video: %w", err)
	}

	reader := &progressReader{
		ctx:        ctx,
		r:          file,
		total:      info.Size(),
		onProgress: onProgress,
	}

	video := tgbotapi.NewVideo(chatID, tgbotapi.FileReader{
		Name:   info.Name(),
		Reader: reader,
	})
	video.Caption = caption
	video.ParseMode = tgbotapi.ModeMarkdown
	video.SupportsStreaming = streaming
	if kb != nil {
		video.ReplyMarkup = *kb
	}

	if _, err := t.bot.Send(video); err != nil {
		return fmt.Errorf("send video: %w", err)
	}
	return nil
}
