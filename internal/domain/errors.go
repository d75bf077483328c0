package domain

import "errors"

// Domain errors.
var (
	// ErrActiveDownload is returned when a user already has a download in flight.
	ErrActiveDownload = errors.New("download already active for user")

	// ErrSessionNotFound is returned when no session exists for a user.
	ErrSessionNotFound = errors.New("session not found")

	// ErrNoFormats is returned when the extractor yields no compatible formats.
	ErrNoFormats = errors.New("no compatible formats found")

	// ErrFormatGone is returned when a chosen format is no longer offered on re-listing.
	ErrFormatGone = errors.New("selected format no longer available")

	// ErrFetchFailed is returned when the download errors or produces no file.
	ErrFetchFailed = errors.New("download failed")

	// ErrSizeExceeded is returned when the fetched file is larger than the limit.
	ErrSizeExceeded = errors.New("file size exceeds limit")
)
