package monitor

import "errors"

var (
	// ErrSourceUnavailable means the listing could not be fetched or parsed.
	// Nothing is detected, persisted or sent.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrStateUnreadable means the store failed for a reason other than
	// corrupt content. The run stops so it never re-announces the listing.
	ErrStateUnreadable = errors.New("seen state unreadable")
	// ErrDetection covers detector failures, including recovered panics.
	ErrDetection = errors.New("detection failed")
	// ErrPersistence means the new state was not saved. Notification was
	// still attempted, so the next run may repeat it.
	ErrPersistence = errors.New("persisting seen state failed")
	// ErrNotification means at least one channel failed.
	ErrNotification = errors.New("notification failed")
)
