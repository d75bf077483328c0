package domain

// StatusRef identifies the single chat message a session edits in place for
// all progress reporting. HasMedia selects caption-style edits over
// text-style ones.
type StatusRef struct {
	ChatID    int64
	MessageID int
	HasMedia  bool
}
