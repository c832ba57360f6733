package notifiers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Fanout dispatches notifications to all configured notifiers.
type Fanout struct {
	notifiers []Notifier
}

// NewFanout builds a dispatcher that fans out notifications across notifiers.
func NewFanout(nts []Notifier) *Fanout {
	cp := make([]Notifier, 0, len(nts))
	for _, n := range nts {
		if n == nil {
			continue
		}
		cp = append(cp, n)
	}
	return &Fanout{notifiers: cp}
}

// Notify forwards the notification to every notifier concurrently. A failing
// channel never cancels or blocks the others. It returns the number of
// notifiers that succeeded and the joined per-channel errors.
func (f *Fanout) Notify(ctx context.Context, n Notification) (int, error) {
	if f == nil || len(f.notifiers) == 0 {
		return 0, nil
	}

	var (
		mu         sync.Mutex
		errs       []error
		successful int
		g          errgroup.Group
	)
	for _, nt := range f.notifiers {
		g.Go(func() error {
			err := nt.Notify(ctx, n)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("%s notifier[%s]: %w", nt.Type(), nt.ID(), err))
				return nil
			}
			successful++
			return nil
		})
	}
	_ = g.Wait()
	return successful, errors.Join(errs...)
}

// Size returns the number of active notifiers.
func (f *Fanout) Size() int {
	if f == nil {
		return 0
	}
	return len(f.notifiers)
}

// Close releases notifiers holding connections.
func (f *Fanout) Close() error {
	if f == nil {
		return nil
	}
	var errs []error
	for _, n := range f.notifiers {
		if c, ok := n.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
