package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Adda-Baaj/notice-watch/internal/detector"
	"github.com/Adda-Baaj/notice-watch/internal/domain"
	"github.com/Adda-Baaj/notice-watch/internal/logger"
	"github.com/Adda-Baaj/notice-watch/internal/storage"
	"github.com/Adda-Baaj/notice-watch/pkg/notifiers"
	"github.com/Adda-Baaj/notice-watch/pkg/sources"
)

// RunState is the furthest step a run reached.
type RunState string

const (
	StateIdle      RunState = "idle"
	StateFetched   RunState = "fetched"
	StateNoChange  RunState = "no_change"
	StateChanged   RunState = "changed"
	StatePersisted RunState = "persisted"
	StateNotified  RunState = "notified"
)

// Report summarizes one run.
type Report struct {
	State     RunState
	Fetched   int
	New       int
	Removed   int
	Persisted bool
	// Delivered counts channels that accepted the notification.
	Delivered int
	// StateRecovered is set when a corrupt stored state was replaced by an empty one.
	StateRecovered bool
	Duration       time.Duration
}

// Config wires a Service.
type Config struct {
	Source   sources.Source
	Registry sources.FetcherRegistry
	Detector *detector.Detector
	Store    StateStore
	// Dispatcher may be nil, in which case changes are persisted but not sent.
	Dispatcher Dispatcher
	Testing    bool
	Log        logger.Logger
}

// Service runs the fetch, detect, persist, notify cycle for one source.
type Service struct {
	src      sources.Source
	registry sources.FetcherRegistry
	detector *detector.Detector
	store    StateStore
	dispatch Dispatcher
	testing  bool
	log      logger.Logger
}

// NewService validates cfg and returns a ready service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Registry == nil {
		return nil, errors.New("monitor requires a fetcher registry")
	}
	if cfg.Detector == nil {
		return nil, errors.New("monitor requires a detector")
	}
	if cfg.Store == nil {
		return nil, errors.New("monitor requires a state store")
	}
	src := sources.Sanitize(cfg.Source)
	if err := sources.Validate(src); err != nil {
		return nil, err
	}
	log := cfg.Log
	if log == nil {
		log = &logger.NopLogger{}
	}
	return &Service{
		src:      src,
		registry: cfg.Registry,
		detector: cfg.Detector,
		store:    cfg.Store,
		dispatch: cfg.Dispatcher,
		testing:  cfg.Testing,
		log:      log,
	}, nil
}

// RunOnce executes a single run. It never panics; every failure is returned
// wrapped in one of the package sentinel errors.
func (s *Service) RunOnce(ctx context.Context) (rep Report, err error) {
	if s == nil {
		return Report{State: StateIdle}, fmt.Errorf("monitor service is not initialized")
	}
	start := time.Now()
	rep.State = StateIdle

	var fetcher sources.Fetcher
	defer func() { s.settleValidators(fetcher, rep, err) }()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: run panicked in state %s: %v", panicSentinel(rep.State), rep.State, r)
		}
		rep.Duration = time.Since(start)
	}()

	fetcher, err = s.registry.FetcherFor(s.src)
	if err != nil {
		return rep, fmt.Errorf("%w: resolve fetcher for source %s: %w", ErrSourceUnavailable, s.src.ID, err)
	}

	entries, err := s.fetch(ctx, fetcher)
	if err != nil {
		return rep, err
	}
	rep.Fetched = len(entries)
	if len(entries) == 0 {
		s.log.InfoObj("listing empty or not modified", "run_result", map[string]any{
			"source_id": s.src.ID,
		})
		return rep, nil
	}
	rep.State = StateFetched

	previous, recovered, err := s.load(ctx)
	if err != nil {
		return rep, err
	}
	rep.StateRecovered = recovered

	res, err := s.detect(entries, previous)
	if err != nil {
		return rep, err
	}
	rep.New = len(res.New)
	rep.Removed = len(res.Removed)
	if !res.Changed {
		rep.State = StateNoChange
		s.log.InfoObj("no new entries detected", "run_result", map[string]any{
			"source_id": s.src.ID,
			"fetched":   rep.Fetched,
		})
		return rep, nil
	}
	rep.State = StateChanged

	var errs []error
	if err := s.store.Save(ctx, res.State); err != nil {
		s.log.ErrorObj("persisting seen state failed", "persist_error", map[string]any{
			"source_id": s.src.ID,
			"error":     err.Error(),
		})
		errs = append(errs, fmt.Errorf("%w: %w", ErrPersistence, err))
	} else {
		rep.Persisted = true
		rep.State = StatePersisted
	}

	delivered, err := s.notify(ctx, res)
	rep.Delivered = delivered
	if err != nil {
		errs = append(errs, err)
	} else if rep.Persisted {
		rep.State = StateNotified
	}

	s.log.InfoObj("run completed", "run_result", map[string]any{
		"source_id": s.src.ID,
		"fetched":   rep.Fetched,
		"new":       rep.New,
		"removed":   rep.Removed,
		"persisted": rep.Persisted,
		"delivered": rep.Delivered,
		"state":     rep.State,
	})
	return rep, errors.Join(errs...)
}

func (s *Service) fetch(ctx context.Context, fetcher sources.Fetcher) (domain.EntryList, error) {
	entries, err := fetcher.Fetch(ctx, s.src)
	switch {
	case errors.Is(err, sources.ErrNotModified):
		return nil, nil
	case err != nil:
		s.log.ErrorObj("source fetch failed", "source_error", map[string]any{
			"source_id": s.src.ID,
			"url":       s.src.URL,
			"error":     err.Error(),
		})
		return nil, fmt.Errorf("%w: fetch source %s: %w", ErrSourceUnavailable, s.src.ID, err)
	}
	return entries, nil
}

// settleValidators commits conditional fetch validators once the fetched
// listing is reflected in the store, and discards them otherwise so the
// next run downloads and re-detects the same listing.
func (s *Service) settleValidators(fetcher sources.Fetcher, rep Report, err error) {
	cf, ok := fetcher.(sources.ConditionalFetcher)
	if !ok {
		return
	}
	switch {
	case rep.State == StateNoChange, rep.State == StatePersisted, rep.State == StateNotified:
		cf.CommitValidators(s.src)
	case rep.State == StateIdle && err == nil:
		cf.CommitValidators(s.src)
	default:
		cf.DiscardValidators(s.src)
		s.log.WarnObj("conditional fetch validators discarded", "run_result", map[string]any{
			"source_id": s.src.ID,
			"state":     rep.State,
		})
	}
}

// panicSentinel maps the step a run was in to the error it reports.
func panicSentinel(state RunState) error {
	switch state {
	case StateIdle:
		return ErrSourceUnavailable
	case StateFetched:
		// detect recovers its own panics, so this one came from the store
		return ErrStateUnreadable
	case StateChanged:
		return ErrPersistence
	default:
		return ErrNotification
	}
}

// load returns the stored state. Corrupt content is replaced by an empty
// state; any other failure stops the run.
func (s *Service) load(ctx context.Context) (domain.SeenState, bool, error) {
	state, err := s.store.Load(ctx)
	switch {
	case err == nil:
		return state, false, nil
	case errors.Is(err, storage.ErrCorruptState):
		s.log.WarnObj("seen state corrupt, starting from empty state", "state_recovered", map[string]any{
			"source_id": s.src.ID,
			"error":     err.Error(),
		})
		return domain.SeenState{}, true, nil
	default:
		return domain.SeenState{}, false, fmt.Errorf("%w: %w", ErrStateUnreadable, err)
	}
}

func (s *Service) detect(entries domain.EntryList, previous domain.SeenState) (res detector.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrDetection, r)
		}
	}()
	res, err = s.detector.Detect(entries, previous)
	if err != nil {
		return detector.Result{}, fmt.Errorf("%w: %w", ErrDetection, err)
	}
	return res, nil
}

func (s *Service) notify(ctx context.Context, res detector.Result) (int, error) {
	if s.dispatch == nil {
		return 0, nil
	}

	n := notifiers.NewNotification(s.src.ID, s.src.Name, s.src.URL, res.New, res.Removed)
	n.Testing = s.testing

	delivered, err := s.dispatch.Notify(ctx, n)
	if err != nil {
		s.log.ErrorObj("notification failed", "notify_error", map[string]any{
			"source_id": s.src.ID,
			"delivered": delivered,
			"error":     err.Error(),
		})
		return delivered, fmt.Errorf("%w: %w", ErrNotification, err)
	}
	return delivered, nil
}
