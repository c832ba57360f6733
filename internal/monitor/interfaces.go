package monitor

import (
	"context"

	"github.com/Adda-Baaj/notice-watch/internal/domain"
	"github.com/Adda-Baaj/notice-watch/pkg/notifiers"
)

// StateStore persists the seen-state between runs.
type StateStore interface {
	Load(ctx context.Context) (domain.SeenState, error)
	Save(ctx context.Context, state domain.SeenState) error
}

// Dispatcher delivers a notification to every configured channel and
// reports how many succeeded.
type Dispatcher interface {
	Notify(ctx context.Context, n notifiers.Notification) (int, error)
}
