package bot

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ytgrab/ytgrab-bot/internal/domain"
	"github.com/ytgrab/ytgrab-bot/internal/janitor"
)

func newTestBot(t *testing.T) (*Bot, *orchFixture) {
	t.Helper()
	f := newOrchFixture(t, 1<<20)
	shuttingDown := &atomic.Bool{}
	b := New(f.chat, f.registry, f.media, f.orch, f.history,
		janitor.New(f.dir, 10*time.Minute, testLogger()),
		1<<20, "", shuttingDown, testLogger())
	b.baseCtx = context.Background()
	return b, f
}

func privateMessage(userID int64, text string) *tgbotapi.Message {
	msg := &tgbotapi.Message{
		From: &tgbotapi.User{ID: userID},
		Chat: &tgbotapi.Chat{ID: userID, Type: "private"},
		Text: text,
	}
	return msg
}

func TestBot_ValidURLPresentsFormats(t *testing.T) {
	b, f := newTestBot(t)

	b.processURL(1, 100, "https://youtube.com/watch?v=abc123")

	sess, ok := f.registry.Get(1)
	if !ok {
		t.Fatal("no session after URL submission")
	}
	if sess.Phase != domain.PhaseAwaitingFormat {
		t.Errorf("phase = %s, want %s", sess.Phase, domain.PhaseAwaitingFormat)
	}
	if sess.Status == nil {
		t.Error("status message not recorded")
	}
	if f.chat.editsContaining("Select a quality") == 0 {
		t.Error("format prompt not sent")
	}
}

func TestBot_InvalidURLWhilePromptedGetsError(t *testing.T) {
	b, f := newTestBot(t)
	f.registry.Begin(1, 100)

	b.handleText(privateMessage(1, "not a link"), "not a link")

	f.chat.mu.Lock()
	defer f.chat.mu.Unlock()
	found := false
	for _, n := range f.chat.notices {
		if strings.Contains(n, "valid video URL") {
			found = true
		}
	}
	if !found {
		t.Errorf("no invalid-URL notice in %v", f.chat.notices)
	}
}

func TestBot_CallbackFromOtherUserRejected(t *testing.T) {
	b, f := newTestBot(t)
	b.processURL(1, 100, "https://youtube.com/watch?v=abc123")

	b.handleCallback(&tgbotapi.CallbackQuery{
		ID:   "cb1",
		From: &tgbotapi.User{ID: 2},
		Data: formatPayload(1, "137+140"),
	})

	f.chat.mu.Lock()
	defer f.chat.mu.Unlock()
	if len(f.chat.answers) != 1 || !f.chat.answers[0].alert ||
		f.chat.answers[0].text != "This is not your download!" {
		t.Errorf("answers = %+v, want one not-yours alert", f.chat.answers)
	}
	if len(f.chat.videos) != 0 {
		t.Error("foreign press must not start a download")
	}
}

func TestBot_FormatPressRunsPipeline(t *testing.T) {
	b, f := newTestBot(t)
	b.processURL(1, 100, "https://youtube.com/watch?v=abc123")

	b.handleCallback(&tgbotapi.CallbackQuery{
		ID:   "cb1",
		From: &tgbotapi.User{ID: 1},
		Data: formatPayload(1, "137+140"),
	})

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		f.chat.mu.Lock()
		n := len(f.chat.videos)
		f.chat.mu.Unlock()
		if n == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	f.chat.mu.Lock()
	videos := len(f.chat.videos)
	f.chat.mu.Unlock()
	if videos != 1 {
		t.Fatalf("videos sent = %d, want 1", videos)
	}

	// The pipeline tears the session down on the way out.
	for f.registry.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if f.registry.Len() != 0 {
		t.Error("session not torn down after delivery")
	}
}

func TestBot_UnknownSelectorTearsDown(t *testing.T) {
	b, f := newTestBot(t)
	b.processURL(1, 100, "https://youtube.com/watch?v=abc123")

	b.handleCallback(&tgbotapi.CallbackQuery{
		ID:   "cb1",
		From: &tgbotapi.User{ID: 1},
		Data: formatPayload(1, "no-such-format"),
	})

	if f.registry.Len() != 0 {
		t.Error("session should be torn down on a stale selector")
	}
	if f.chat.editsContaining("no longer available") == 0 {
		t.Error("stale-format message not posted")
	}
}

func TestBot_SecondRequestWhileActiveRejected(t *testing.T) {
	b, f := newTestBot(t)
	f.media.blockFetch = true
	b.processURL(1, 100, "https://youtube.com/watch?v=abc123")

	b.handleCallback(&tgbotapi.CallbackQuery{
		ID:   "cb1",
		From: &tgbotapi.User{ID: 1},
		Data: formatPayload(1, "137+140"),
	})

	deadline := time.Now().Add(2 * time.Second)
	for !f.registry.HasActiveTask(1) && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if !f.registry.HasActiveTask(1) {
		t.Fatal("task never attached")
	}

	b.processURL(1, 100, "https://youtube.com/watch?v=xyz789")

	f.chat.mu.Lock()
	rejected := false
	for _, n := range f.chat.notices {
		if strings.Contains(n, "already have a download") {
			rejected = true
		}
	}
	f.chat.mu.Unlock()
	if !rejected {
		t.Error("second URL while active should be rejected")
	}

	f.registry.Teardown(1)
}

func TestBot_CancelButtonWithoutTask(t *testing.T) {
	b, f := newTestBot(t)
	b.processURL(1, 100, "https://youtube.com/watch?v=abc123")

	b.handleCallback(&tgbotapi.CallbackQuery{
		ID:   "cb1",
		From: &tgbotapi.User{ID: 1},
		Data: cancelPayload(1),
	})

	if f.registry.Len() != 0 {
		t.Error("session should be removed on cancel")
	}
	if f.chat.editsContaining("cancelled") == 0 {
		t.Error("cancellation confirmation not posted")
	}
}

func TestBot_ShutdownRefusesNewWork(t *testing.T) {
	b, f := newTestBot(t)
	b.shuttingDown.Store(true)

	b.handleText(privateMessage(1, "https://youtube.com/watch?v=abc123"), "https://youtube.com/watch?v=abc123")

	if f.registry.Len() != 0 {
		t.Error("no session should be created while draining")
	}

	b.handleCallback(&tgbotapi.CallbackQuery{
		ID:   "cb1",
		From: &tgbotapi.User{ID: 1},
		Data: formatPayload(1, "137+140"),
	})

	f.chat.mu.Lock()
	defer f.chat.mu.Unlock()
	if len(f.chat.answers) == 0 || !f.chat.answers[len(f.chat.answers)-1].alert {
		t.Error("format press while draining should alert the user")
	}
}

func TestBot_StartSupersedesStaleKeyboard(t *testing.T) {
	b, f := newTestBot(t)
	b.processURL(1, 100, "https://youtube.com/watch?v=abc123")

	b.handleStart(privateMessage(1, "/start"))

	f.chat.mu.Lock()
	deleted := f.chat.deleted
	f.chat.mu.Unlock()
	if deleted == 0 {
		t.Error("superseded status message should be deleted")
	}

	sess, ok := f.registry.Get(1)
	if !ok || sess.Phase != domain.PhaseAwaitingURL {
		t.Errorf("session phase = %v, want fresh awaiting-URL session", sess.Phase)
	}
}

func TestBot_ResubmittedURLReusesStatus(t *testing.T) {
	b, f := newTestBot(t)
	b.processURL(1, 100, "https://youtube.com/watch?v=abc123")
	b.processURL(1, 100, "https://youtube.com/watch?v=xyz789")

	f.chat.mu.Lock()
	defer f.chat.mu.Unlock()
	// The second submission's fetching status must supersede the first
	// session's message rather than stack a new one next to it.
	if len(f.chat.statusPriors) < 3 {
		t.Fatalf("status sends = %d, want at least 3", len(f.chat.statusPriors))
	}
	if f.chat.statusPriors[2] == nil {
		t.Error("resubmitted URL should pass the prior status message")
	}

	sess, _ := f.registry.Get(1)
	if sess.URL != "https://youtube.com/watch?v=xyz789" {
		t.Errorf("session URL = %q, want the resubmitted link", sess.URL)
	}
}

func TestBot_TeardownRemovesTempDirFiles(t *testing.T) {
	b, f := newTestBot(t)
	b.processURL(1, 100, "https://youtube.com/watch?v=abc123")

	// Simulate a leftover from a previous run in the working dir.
	stale := filepath.Join(f.dir, "9_stale.mp4")
	os.WriteFile(stale, []byte("x"), 0644)
	old := time.Now().Add(-time.Hour)
	os.Chtimes(stale, old, old)

	b.handleCallback(&tgbotapi.CallbackQuery{
		ID:   "cb1",
		From: &tgbotapi.User{ID: 1},
		Data: cancelPayload(1),
	})

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("post-teardown sweep should remove stale files")
	}
}
