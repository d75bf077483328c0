package bot

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ytgrab/ytgrab-bot/internal/domain"
	"github.com/ytgrab/ytgrab-bot/internal/janitor"
	"github.com/ytgrab/ytgrab-bot/internal/repository"
	"github.com/ytgrab/ytgrab-bot/internal/session"
)

// chatAPI is the slice of the chat transport the bot drives. Carved out as an
// interface so the pipeline can be exercised against a fake in tests.
type chatAPI interface {
	Username() string
	SendText(chatID int64, text string) (int, error)
	NotifyBestEffort(chatID int64, text string)
	SendStatus(chatID int64, prior *domain.StatusRef, thumbnailURL, text string, kb *tgbotapi.InlineKeyboardMarkup) (*domain.StatusRef, error)
	EditStatus(ref *domain.StatusRef, text string, kb *tgbotapi.InlineKeyboardMarkup) error
	RenderStatusBestEffort(ref *domain.StatusRef, text string, kb *tgbotapi.InlineKeyboardMarkup)
	DeleteMessage(ref *domain.StatusRef)
	AnswerCallback(callbackID, text string, alert bool)
	SendVideo(ctx context.Context, chatID int64, path, caption string, kb *tgbotapi.InlineKeyboardMarkup, streaming bool, onProgress func(sent, total int64)) error
}

// mediaSource lists a video's formats and fetches a selected one.
type mediaSource interface {
	ListFormats(ctx context.Context, url string, maxSize int64) (*domain.VideoInfo, error)
	Fetch(ctx context.Context, url, selector string, userID int64, onProgress func(percent float64)) (string, error)
}

// historyStore records completed deliveries.
type historyStore interface {
	Record(ctx context.Context, d repository.Download) error
	Recent(ctx context.Context, userID int64, limit int) ([]repository.Download, error)
}

// Orchestrator runs one accepted download end to end: fetch, size check,
// delivery, teardown. Exactly one orchestrator run is in flight per user; the
// session registry enforces that before the run starts.
type Orchestrator struct {
	registry      *session.Registry
	media         mediaSource
	chat          chatAPI
	history       historyStore
	janitor       *janitor.Janitor
	maxFileSize   int64
	maxMessageLen int
	channelURL    string
	logger        *slog.Logger
}

// NewOrchestrator wires the download pipeline.
func NewOrchestrator(registry *session.Registry, media mediaSource, chat chatAPI, history historyStore, jan *janitor.Janitor, maxFileSize int64, maxMessageLen int, channelURL string, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		registry:      registry,
		media:         media,
		chat:          chat,
		history:       history,
		janitor:       jan,
		maxFileSize:   maxFileSize,
		maxMessageLen: maxMessageLen,
		channelURL:    channelURL,
		logger:        logger,
	}
}

// Run executes the pipeline for an already-attached task. It always ends in
// teardown: the session is removed and its temp files deleted no matter how
// the run finishes. The deferred Finish runs before the deferred teardown, so
// teardown never waits on the run's own acknowledgement.
func (o *Orchestrator) Run(ctx context.Context, task *session.Task, sess domain.Session, info *domain.VideoInfo, option domain.FormatOption) {
	defer func() {
		o.registry.Teardown(sess.UserID)
		o.janitor.Sweep(nil)
	}()
	defer task.Finish()

	log := o.logger.With("user_id", sess.UserID, "task_id", task.ID)
	log.Info("download started", "title", info.Title, "quality", option.Label)

	ref := sess.Status
	kb := cancelKeyboard(sess.UserID)

	// Download.
	o.registry.SetPhase(sess.UserID, domain.PhaseDownloading)
	o.chat.RenderStatusBestEffort(ref, downloadCaption(info.Title, option.Label, 0), kb)

	throttle := newProgressThrottle()
	path, err := o.media.Fetch(ctx, sess.URL, option.Selector, sess.UserID, func(pct float64) {
		if throttle.shouldRender(pct) {
			o.chat.RenderStatusBestEffort(ref, downloadCaption(info.Title, option.Label, pct), kb)
		}
	})
	if err != nil {
		if ctx.Err() != nil {
			o.finishCancelled(ref, sess.ChatID)
			return
		}
		log.Error("download failed", "error", err)
		o.finishFailed(ref, sess.ChatID, fmt.Sprintf("❌ *%s*\n\nDownload failed. Please try again later.", info.Title))
		return
	}
	o.registry.AddTempFile(sess.UserID, path)

	// Size check. The file is already registered, so teardown removes it.
	fi, err := os.Stat(path)
	if err != nil {
		log.Error("downloaded file missing", "path", path, "error", err)
		o.finishFailed(ref, sess.ChatID, fmt.Sprintf("❌ *%s*\n\nDownload failed. Please try again later.", info.Title))
		return
	}
	if fi.Size() > o.maxFileSize {
		log.Warn("rejecting delivery", "error", domain.ErrSizeExceeded, "size", fi.Size(), "limit", o.maxFileSize)
		o.finishFailed(ref, sess.ChatID, fmt.Sprintf(
			"❌ *%s*\n\nThe file is %s, which is over the %s delivery limit. Try a lower quality.",
			info.Title, domain.FormatSize(fi.Size()), domain.FormatSize(o.maxFileSize)))
		return
	}

	// Upload.
	o.registry.SetPhase(sess.UserID, domain.PhaseUploading)
	o.chat.RenderStatusBestEffort(ref, uploadCaption(info.Title, 0), kb)

	caption := finalCaption(info, option, fi.Size(), o.chat.Username(), o.maxMessageLen)
	upThrottle := newProgressThrottle()
	onUpload := func(sent, total int64) {
		if total <= 0 {
			return
		}
		pct := float64(sent) / float64(total) * 100
		if upThrottle.shouldRender(pct) {
			o.chat.RenderStatusBestEffort(ref, uploadCaption(info.Title, pct), kb)
		}
	}

	err = o.chat.SendVideo(ctx, sess.ChatID, path, caption, channelKeyboard(o.channelURL), true, onUpload)
	if err != nil && ctx.Err() == nil {
		// Some players choke on streaming uploads; one retry without the flag.
		log.Warn("streaming upload failed, retrying", "error", err)
		err = o.chat.SendVideo(ctx, sess.ChatID, path, caption, channelKeyboard(o.channelURL), false, onUpload)
	}
	if ctx.Err() != nil {
		o.finishCancelled(ref, sess.ChatID)
		return
	}
	if err != nil {
		log.Error("upload failed", "error", err)
		o.finishFailed(ref, sess.ChatID, fmt.Sprintf("❌ *%s*\n\nUpload failed. Please try again later.", info.Title))
		return
	}

	// Delivered: the video message replaces the status message.
	o.chat.DeleteMessage(ref)
	log.Info("download delivered", "size", fi.Size())

	if o.history != nil {
		recCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		rec := repository.Download{
			UserID:    sess.UserID,
			Title:     info.Title,
			Quality:   option.Label,
			SizeBytes: fi.Size(),
		}
		if err := o.history.Record(recCtx, rec); err != nil {
			log.Warn("failed to record download history", "error", err)
		}
	}
}

// finishCancelled posts the cancellation notice on the status message,
// falling back to a fresh message when the edit fails.
func (o *Orchestrator) finishCancelled(ref *domain.StatusRef, chatID int64) {
	if err := o.chat.EditStatus(ref, "✅ Download cancelled.", nil); err != nil {
		o.chat.NotifyBestEffort(chatID, "✅ Download cancelled.")
	}
}

// finishFailed posts a terminal error, keeping the channel link under it.
func (o *Orchestrator) finishFailed(ref *domain.StatusRef, chatID int64, text string) {
	if err := o.chat.EditStatus(ref, text, channelKeyboard(o.channelURL)); err != nil {
		o.chat.NotifyBestEffort(chatID, text)
	}
}
