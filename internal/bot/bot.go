package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ytgrab/ytgrab-bot/internal/domain"
	"github.com/ytgrab/ytgrab-bot/internal/janitor"
	"github.com/ytgrab/ytgrab-bot/internal/media"
	"github.com/ytgrab/ytgrab-bot/internal/session"
)

const welcomeText = `👋 *Welcome!*

Send me a YouTube link and I'll download the video for you.

*Commands:*
/download <url> - download a video
/status - show your current download
/cancel - cancel your current download
/history - your recent downloads
/help - this message`

// Bot receives chat updates and routes them to command, URL and button
// handlers. Each update is handled on its own goroutine so a slow listing
// never stalls the poll loop.
type Bot struct {
	chat        chatAPI
	registry    *session.Registry
	media       mediaSource
	orch        *Orchestrator
	history     historyStore
	janitor     *janitor.Janitor
	maxFileSize int64
	channelURL  string
	logger      *slog.Logger

	shuttingDown *atomic.Bool
	baseCtx      context.Context
}

// New wires the bot's update handlers. shuttingDown is shared with the health
// endpoint: once set, new work is refused while in-flight tasks drain.
func New(chat chatAPI, registry *session.Registry, mediaSrc mediaSource, orch *Orchestrator, history historyStore, jan *janitor.Janitor, maxFileSize int64, channelURL string, shuttingDown *atomic.Bool, logger *slog.Logger) *Bot {
	return &Bot{
		chat:         chat,
		registry:     registry,
		media:        mediaSrc,
		orch:         orch,
		history:      history,
		janitor:      jan,
		maxFileSize:  maxFileSize,
		channelURL:   channelURL,
		shuttingDown: shuttingDown,
		logger:       logger,
	}
}

// Run consumes the update channel until ctx is cancelled or the channel is
// closed by StopUpdates.
func (b *Bot) Run(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	b.baseCtx = ctx

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			go b.handleUpdate(update)
		}
	}
}

func (b *Bot) handleUpdate(update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("handler panic", "panic", r)
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(update.Message)
	}
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	if msg.From == nil || !msg.Chat.IsPrivate() {
		return
	}

	if msg.IsCommand() {
		switch msg.Command() {
		case "start", "help":
			b.handleStart(msg)
		case "download":
			b.handleDownload(msg)
		case "cancel":
			b.handleCancelCommand(msg)
		case "status":
			b.handleStatus(msg)
		case "history":
			b.handleHistory(msg)
		}
		return
	}

	if text := strings.TrimSpace(msg.Text); text != "" {
		b.handleText(msg, text)
	}
}

func (b *Bot) handleStart(msg *tgbotapi.Message) {
	if b.refuseIfDraining(msg.Chat.ID) {
		return
	}
	if !b.beginFresh(msg.From.ID, msg.Chat.ID) {
		return
	}
	b.chat.NotifyBestEffort(msg.Chat.ID, welcomeText)
}

func (b *Bot) handleDownload(msg *tgbotapi.Message) {
	if b.refuseIfDraining(msg.Chat.ID) {
		return
	}
	args := strings.TrimSpace(msg.CommandArguments())
	if args == "" {
		if !b.beginFresh(msg.From.ID, msg.Chat.ID) {
			return
		}
		b.chat.NotifyBestEffort(msg.Chat.ID, "Send me the YouTube link you want to download.")
		return
	}
	b.processURL(msg.From.ID, msg.Chat.ID, args)
}

// handleText treats any non-command text as a URL submission. A valid link
// starts a session even when none exists yet; invalid text is only answered
// when the user was explicitly asked for a link.
func (b *Bot) handleText(msg *tgbotapi.Message, text string) {
	if b.refuseIfDraining(msg.Chat.ID) {
		return
	}

	if !media.IsValidSourceURL(text) {
		if sess, ok := b.registry.Get(msg.From.ID); ok && sess.Phase == domain.PhaseAwaitingURL {
			b.chat.NotifyBestEffort(msg.Chat.ID, "❌ That doesn't look like a YouTube link. Please send a valid video URL.")
		}
		return
	}
	b.processURL(msg.From.ID, msg.Chat.ID, text)
}

// processURL validates the link, lists its formats and presents the quality
// keyboard. The session stays in the format-selection phase until a button
// press attaches a task.
func (b *Bot) processURL(userID, chatID int64, url string) {
	if !media.IsValidSourceURL(url) {
		b.chat.NotifyBestEffort(chatID, "❌ That doesn't look like a YouTube link. Please send a valid video URL.")
		return
	}

	if b.registry.HasActiveTask(userID) {
		b.chat.NotifyBestEffort(chatID, "⚠️ You already have a download in progress. Use /cancel to stop it.")
		return
	}

	// A resubmitted URL reuses the prior session's status message instead of
	// leaving one behind with dead buttons.
	var prior *domain.StatusRef
	if sess, ok := b.registry.Get(userID); ok {
		prior = sess.Status
	} else if _, err := b.registry.Begin(userID, chatID); err != nil {
		b.chat.NotifyBestEffort(chatID, "⚠️ You already have a download in progress. Use /cancel to stop it.")
		return
	}
	b.registry.SetURL(userID, url)

	ref, err := b.chat.SendStatus(chatID, prior, "", "📡 Fetching video information...", nil)
	if err != nil {
		b.logger.Warn("failed to send status message", "chat_id", chatID, "error", err)
		b.registry.Teardown(userID)
		return
	}
	b.registry.SetStatus(userID, ref)

	ctx, cancel := context.WithTimeout(b.taskContext(), 2*time.Minute)
	defer cancel()

	info, err := b.media.ListFormats(ctx, url, b.maxFileSize)
	if err != nil || len(info.Options) == 0 {
		if err != nil {
			b.logger.Warn("format listing failed", "user_id", userID, "error", err)
		}
		if editErr := b.chat.EditStatus(ref, "❌ No compatible formats found for this video.", nil); editErr != nil {
			b.chat.NotifyBestEffort(chatID, "❌ No compatible formats found for this video.")
		}
		b.registry.Teardown(userID)
		return
	}

	kb := formatKeyboard(userID, info.Options, b.channelURL)
	ref, err = b.chat.SendStatus(chatID, ref, info.ThumbnailURL, infoCaption(info), &kb)
	if err != nil {
		b.logger.Warn("failed to present formats", "user_id", userID, "error", err)
		b.registry.Teardown(userID)
		return
	}
	b.registry.SetStatus(userID, ref)
}

func (b *Bot) handleCallback(cq *tgbotapi.CallbackQuery) {
	kind, userID, selector, ok := parsePayload(cq.Data)
	if !ok {
		b.chat.AnswerCallback(cq.ID, "", false)
		return
	}
	if cq.From == nil || cq.From.ID != userID {
		b.chat.AnswerCallback(cq.ID, "This is not your download!", true)
		return
	}

	switch kind {
	case payloadFormat:
		b.handleFormatPress(cq, userID, selector)
	case payloadCancel:
		b.handleCancelPress(cq, userID)
	}
}

func (b *Bot) handleFormatPress(cq *tgbotapi.CallbackQuery, userID int64, selector string) {
	if b.shuttingDown.Load() {
		b.chat.AnswerCallback(cq.ID, "Bot is shutting down, please try again later.", true)
		return
	}

	sess, ok := b.registry.Get(userID)
	if !ok || sess.URL == "" {
		b.chat.AnswerCallback(cq.ID, "This download has expired. Please send the link again.", true)
		return
	}
	if sess.Phase.Active() {
		b.chat.AnswerCallback(cq.ID, "Download already in progress.", true)
		return
	}

	b.chat.AnswerCallback(cq.ID, "Starting download...", false)

	// The listing is never cached: formats are fetched fresh so a press on a
	// stale keyboard is validated against what the source offers right now.
	listCtx, cancelList := context.WithTimeout(b.taskContext(), 2*time.Minute)
	defer cancelList()

	info, err := b.media.ListFormats(listCtx, sess.URL, b.maxFileSize)
	if err != nil {
		b.logger.Warn("format re-listing failed", "user_id", userID, "error", err)
		b.failAndTeardown(userID, sess, "❌ Could not fetch the video. Please send the link again.")
		return
	}
	option, ok := info.OptionBySelector(selector)
	if !ok {
		b.logger.Warn("stale format press", "user_id", userID, "error", domain.ErrFormatGone)
		b.failAndTeardown(userID, sess, "❌ The selected format is no longer available. Please send the link again.")
		return
	}

	taskCtx, cancel := context.WithCancel(b.taskContext())
	task := session.NewTask(cancel)
	if err := b.registry.AttachTask(userID, task); err != nil {
		cancel()
		b.chat.AnswerCallback(cq.ID, "Download already in progress.", true)
		return
	}

	go b.orch.Run(taskCtx, task, mustSnapshot(b.registry, userID, sess), info, option)
}

func (b *Bot) handleCancelPress(cq *tgbotapi.CallbackQuery, userID int64) {
	sess, ok := b.registry.Get(userID)
	if !ok {
		b.chat.AnswerCallback(cq.ID, "Nothing to cancel.", false)
		return
	}
	b.chat.AnswerCallback(cq.ID, "Cancelling...", false)

	hadTask := b.registry.HasActiveTask(userID)
	b.registry.Teardown(userID)
	b.janitor.Sweep(nil)

	// A running task posts its own cancellation notice on the way out.
	if !hadTask {
		if err := b.chat.EditStatus(sess.Status, "✅ Download cancelled.", nil); err != nil {
			b.chat.NotifyBestEffort(sess.ChatID, "✅ Download cancelled.")
		}
	}
}

func (b *Bot) handleCancelCommand(msg *tgbotapi.Message) {
	sess, ok := b.registry.Get(msg.From.ID)
	if !ok {
		b.chat.NotifyBestEffort(msg.Chat.ID, "You have no active download to cancel.")
		return
	}

	hadTask := b.registry.HasActiveTask(msg.From.ID)
	b.registry.Teardown(msg.From.ID)
	b.janitor.Sweep(nil)

	if !hadTask {
		if err := b.chat.EditStatus(sess.Status, "✅ Download cancelled.", nil); err != nil {
			b.chat.NotifyBestEffort(msg.Chat.ID, "✅ Download cancelled.")
		}
	}
}

func (b *Bot) handleStatus(msg *tgbotapi.Message) {
	if b.shuttingDown.Load() {
		b.chat.NotifyBestEffort(msg.Chat.ID, "⚠️ Bot is shutting down.")
		return
	}

	sess, ok := b.registry.Get(msg.From.ID)
	switch {
	case !ok:
		b.chat.NotifyBestEffort(msg.Chat.ID, "You have no active downloads.")
	case sess.Phase == domain.PhaseDownloading:
		b.chat.NotifyBestEffort(msg.Chat.ID, "⏬ Your download is in progress.")
	case sess.Phase == domain.PhaseUploading:
		b.chat.NotifyBestEffort(msg.Chat.ID, "⏫ Your video is being uploaded.")
	default:
		b.chat.NotifyBestEffort(msg.Chat.ID, "⏳ Waiting for you to pick a link or quality.")
	}
}

func (b *Bot) handleHistory(msg *tgbotapi.Message) {
	if b.history == nil {
		b.chat.NotifyBestEffort(msg.Chat.ID, "History is not enabled.")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	records, err := b.history.Recent(ctx, msg.From.ID, 5)
	if err != nil {
		b.logger.Warn("history query failed", "user_id", msg.From.ID, "error", err)
		b.chat.NotifyBestEffort(msg.Chat.ID, "Could not load your history right now.")
		return
	}
	if len(records) == 0 {
		b.chat.NotifyBestEffort(msg.Chat.ID, "You have no downloads yet.")
		return
	}

	var sb strings.Builder
	sb.WriteString("*Your recent downloads:*\n")
	for _, r := range records {
		fmt.Fprintf(&sb, "\n• %s — %s, %s", r.Title, r.Quality, domain.FormatSize(r.SizeBytes))
	}
	b.chat.NotifyBestEffort(msg.Chat.ID, sb.String())
}

// failAndTeardown posts a terminal error on the status message and removes
// the session.
func (b *Bot) failAndTeardown(userID int64, sess domain.Session, text string) {
	if err := b.chat.EditStatus(sess.Status, text, nil); err != nil {
		b.chat.NotifyBestEffort(sess.ChatID, text)
	}
	b.registry.Teardown(userID)
}

// beginFresh starts a clean session, deleting the superseded session's
// status message so no dead keyboard lingers in the chat. Returns false when
// the user has an active download.
func (b *Bot) beginFresh(userID, chatID int64) bool {
	prior, hadPrior := b.registry.Get(userID)
	if _, err := b.registry.Begin(userID, chatID); errors.Is(err, domain.ErrActiveDownload) {
		b.chat.NotifyBestEffort(chatID, "⚠️ You already have a download in progress. Use /cancel to stop it.")
		return false
	}
	if hadPrior && prior.Status != nil {
		b.chat.DeleteMessage(prior.Status)
	}
	return true
}

func (b *Bot) refuseIfDraining(chatID int64) bool {
	if b.shuttingDown.Load() {
		b.chat.NotifyBestEffort(chatID, "⚠️ Bot is shutting down, please try again in a minute.")
		return true
	}
	return false
}

// taskContext is the parent for background work; cancelling the run context
// on shutdown cancels every in-flight task.
func (b *Bot) taskContext() context.Context {
	if b.baseCtx != nil {
		return b.baseCtx
	}
	return context.Background()
}

// mustSnapshot re-reads the session so the orchestrator sees the freshest
// status-message handle, falling back to the handler's copy.
func mustSnapshot(registry *session.Registry, userID int64, fallback domain.Session) domain.Session {
	if sess, ok := registry.Get(userID); ok {
		return sess
	}
	return fallback
}
