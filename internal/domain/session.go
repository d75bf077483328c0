package domain

import "time"

// Phase describes where a session is in its lifecycle.
type Phase string

const (
	PhaseIdle           Phase = "idle"
	PhaseAwaitingURL    Phase = "awaiting_url"
	PhaseAwaitingFormat Phase = "awaiting_format"
	PhaseDownloading    Phase = "downloading"
	PhaseUploading      Phase = "uploading"
	PhaseTerminated     Phase = "terminated"
)

// String returns the phase as a string.
func (p Phase) String() string {
	return string(p)
}

// Active reports whether the phase represents in-flight background work.
func (p Phase) Active() bool {
	return p == PhaseDownloading || p == PhaseUploading
}

// Session tracks one user's interaction from URL submission through delivery.
// All mutation goes through the session registry; the registry's lock guards
// every field.
type Session struct {
	UserID    int64
	ChatID    int64
	Phase     Phase
	URL       string
	StartedAt time.Time

	// Status points at the message edited in place for progress reporting.
	Status *StatusRef

	// TempFiles are paths created on behalf of this session. They are owned
	// exclusively by the session and removed on teardown regardless of outcome.
	TempFiles []string
}
