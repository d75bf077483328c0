package session

import (
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/ytgrab/ytgrab-bot/internal/domain"
)

// defaultCancelWait bounds how long Teardown waits for a cancelled task to
// acknowledge before giving up on it.
const defaultCancelWait = 10 * time.Second

type entry struct {
	sess *domain.Session
	task *Task
}

// Registry owns every live session, keyed by user ID, and enforces the
// at-most-one-task-per-user invariant. All session state is mutated through
// registry methods under a single lock.
type Registry struct {
	mu         sync.Mutex
	sessions   map[int64]*entry
	cancelWait time.Duration
	logger     *slog.Logger
}

// NewRegistry creates an empty session registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		sessions:   make(map[int64]*entry),
		cancelWait: defaultCancelWait,
		logger:     logger,
	}
}

// Begin creates (or overwrites) the session for userID. It fails with
// ErrActiveDownload while a background task is attached; an inactive stale
// session is silently replaced.
func (r *Registry) Begin(userID, chatID int64) (domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.sessions[userID]; ok && e.task != nil {
		return domain.Session{}, domain.ErrActiveDownload
	}

	sess := &domain.Session{
		UserID:    userID,
		ChatID:    chatID,
		Phase:     domain.PhaseAwaitingURL,
		StartedAt: time.Now(),
	}
	r.sessions[userID] = &entry{sess: sess}
	return *sess, nil
}

// Get returns a snapshot of the user's session.
func (r *Registry) Get(userID int64) (domain.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[userID]
	if !ok {
		return domain.Session{}, false
	}
	return snapshot(e.sess), true
}

// SetPhase advances the session's lifecycle phase.
func (r *Registry) SetPhase(userID int64, phase domain.Phase) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.sessions[userID]; ok {
		e.sess.Phase = phase
	}
}

// SetURL records the submitted source link and moves the session to the
// format-selection phase.
func (r *Registry) SetURL(userID int64, url string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.sessions[userID]; ok {
		e.sess.URL = url
		e.sess.Phase = domain.PhaseAwaitingFormat
	}
}

// SetStatus records (or replaces) the status message handle.
func (r *Registry) SetStatus(userID int64, ref *domain.StatusRef) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.sessions[userID]; ok {
		e.sess.Status = ref
	}
}

// AddTempFile registers a filesystem path owned by the session. Everything
// registered here is removed on teardown.
func (r *Registry) AddTempFile(userID int64, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.sessions[userID]; ok {
		e.sess.TempFiles = append(e.sess.TempFiles, path)
	}
}

// AttachTask records the background task for userID. It fails with
// ErrActiveDownload when one is already attached: a second request is
// rejected, never queued.
func (r *Registry) AttachTask(userID int64, task *Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[userID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	if e.task != nil {
		return domain.ErrActiveDownload
	}
	e.task = task
	return nil
}

// HasActiveTask reports whether userID has a background task attached.
func (r *Registry) HasActiveTask(userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[userID]
	return ok && e.task != nil
}

// Teardown cancels any attached task, waits (bounded) for it to acknowledge,
// deletes the session's temp files best-effort and removes the session.
// Idempotent: tearing down an absent session is a no-op.
func (r *Registry) Teardown(userID int64) {
	r.mu.Lock()
	e, ok := r.sessions[userID]
	if !ok {
		r.mu.Unlock()
		return
	}
	// Removing the entry under the lock makes concurrent teardowns no-ops.
	delete(r.sessions, userID)
	e.sess.Phase = domain.PhaseTerminated
	r.mu.Unlock()

	if e.task != nil {
		e.task.Cancel()
		select {
		case <-e.task.Done():
		case <-time.After(r.cancelWait):
			r.logger.Warn("task did not acknowledge cancellation",
				"user_id", userID,
				"task_id", e.task.ID,
			)
		}
	}

	for _, path := range e.sess.TempFiles {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			r.logger.Warn("failed to remove temp file", "path", path, "error", err)
		}
	}

	r.logger.Info("session torn down",
		"user_id", userID,
		"age", time.Since(e.sess.StartedAt),
	)
}

// TeardownAll tears down every live session. Used during shutdown drain.
func (r *Registry) TeardownAll() {
	r.mu.Lock()
	ids := make([]int64, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		r.Teardown(id)
	}
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func snapshot(s *domain.Session) domain.Session {
	out := *s
	out.TempFiles = append([]string(nil), s.TempFiles...)
	if s.Status != nil {
		ref := *s.Status
		out.Status = &ref
	}
	return out
}
