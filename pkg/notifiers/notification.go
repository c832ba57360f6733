package notifiers

import (
	"time"

	"github.com/Adda-Baaj/notice-watch/internal/domain"
)

// Notification is the payload handed to every channel after a change.
type Notification struct {
	SourceID   string         `json:"source_id"`
	SourceName string         `json:"source_name"`
	SourceURL  string         `json:"source_url"`
	Entries    []domain.Entry `json:"entries"`
	Count      int            `json:"count"`
	Removed    []string       `json:"removed,omitempty"`
	DetectedAt time.Time      `json:"detected_at"`
	Testing    bool           `json:"testing"`
}

// NewNotification constructs a Notification for the given source and new entries.
func NewNotification(sourceID, sourceName, sourceURL string, entries domain.EntryList, removed []string) Notification {
	return Notification{
		SourceID:   sourceID,
		SourceName: sourceName,
		SourceURL:  sourceURL,
		Entries:    append([]domain.Entry(nil), entries...),
		Count:      len(entries),
		Removed:    append([]string(nil), removed...),
		DetectedAt: time.Now().UTC(),
	}
}
