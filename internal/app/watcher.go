package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Adda-Baaj/notice-watch/internal/config"
	"github.com/Adda-Baaj/notice-watch/internal/detector"
	"github.com/Adda-Baaj/notice-watch/internal/logger"
	"github.com/Adda-Baaj/notice-watch/internal/monitor"
	"github.com/Adda-Baaj/notice-watch/internal/storage"
	"github.com/Adda-Baaj/notice-watch/pkg/httpclient"
	"github.com/Adda-Baaj/notice-watch/pkg/notifiers"
	"github.com/Adda-Baaj/notice-watch/pkg/sources"
	"github.com/robfig/cron/v3"
)

// Watcher is the notice-watch runtime. It owns the store and notifier
// connections and drives monitor runs once or on a cron schedule.
type Watcher struct {
	cfg      *config.Config
	service  *monitor.Service
	fanout   *notifiers.Fanout
	alerter  *notifiers.MaintainerAlerter
	store    storage.Store
	schedule string
	log      logger.Logger

	closeOnce sync.Once
}

// NewWatcher builds a watcher runtime from config.
func NewWatcher(ctx context.Context, cfg *config.Config, log logger.Logger) (*Watcher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = &logger.NopLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	policy, err := detector.ParsePolicy(cfg.IdentityPolicy, cfg.DetectStrategy, cfg.StateShape, detector.Policy{
		WindowSize:       cfg.StateWindowSize,
		RetentionCap:     cfg.StateRetention,
		InitialBatchSize: cfg.InitialBatchSize,
		ScanLimit:        cfg.ScanLimit,
		TrackRemoved:     cfg.TrackRemoved,
		NotifyOnRemoval:  cfg.NotifyOnRemoval,
	})
	if err != nil {
		return nil, fmt.Errorf("detection policy: %w", err)
	}
	det, err := detector.New(policy)
	if err != nil {
		return nil, err
	}
	log.InfoObj("detection policy loaded", "detect_policy", map[string]any{
		"identity": policy.Identity,
		"strategy": policy.Strategy,
		"shape":    policy.Shape,
	})

	notifierReg, err := notifiers.LoadRegistry(cfg.NotifiersFile)
	if err != nil {
		return nil, fmt.Errorf("load notifiers registry: %w", err)
	}
	enabled := notifierReg.Enabled()
	if len(enabled) == 0 {
		return nil, fmt.Errorf("no notifiers configured")
	}
	active := notifiers.ForMode(enabled, cfg.TestingMode)
	if len(active) == 0 {
		log.WarnObj("testing mode left no notifiers active", "notifiers_meta", map[string]any{
			"enabled": len(enabled),
		})
	}

	buildOpts := notifiers.BuildOptions{
		Testing:     cfg.TestingMode,
		RenderLimit: cfg.RenderLimit,
		Log:         log,
	}
	clients, err := notifiers.BuildAll(ctx, notifiers.DefaultRegistry(), active, buildOpts)
	if err != nil {
		return nil, fmt.Errorf("build notifiers: %w", err)
	}
	fanout := notifiers.NewFanout(clients)
	summaries := make([]map[string]string, 0, len(active))
	for _, nc := range active {
		summaries = append(summaries, map[string]string{
			"id":   nc.ID,
			"type": nc.Type,
		})
	}
	log.InfoObj("notifiers registry loaded", "notifiers_meta", map[string]any{
		"count":     len(summaries),
		"notifiers": summaries,
		"testing":   cfg.TestingMode,
	})

	alerter, err := notifiers.NewMaintainerAlerter(enabled, cfg.MaintainerEmail, cfg.AppName, log)
	if err != nil {
		_ = fanout.Close()
		return nil, err
	}

	store, err := storage.NewStore(ctx, cfg.StorageType, storeOptions(cfg))
	if err != nil {
		_ = fanout.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}
	log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type": cfg.StorageType,
		"path": storeOptions(cfg).Path,
	})

	client := httpclient.NewRetryingClient(httpclient.Options{
		Timeout:    cfg.SourceTimeout,
		RetryCount: cfg.SourceRetryCount,
	})
	service, err := monitor.NewService(monitor.Config{
		Source:     sourceFromConfig(cfg),
		Registry:   sources.DefaultFetcherRegistry(client),
		Detector:   det,
		Store:      store,
		Dispatcher: fanout,
		Testing:    cfg.TestingMode,
		Log:        log,
	})
	if err != nil {
		_ = fanout.Close()
		_ = store.Close()
		return nil, fmt.Errorf("init monitor: %w", err)
	}

	return &Watcher{
		cfg:      cfg,
		service:  service,
		fanout:   fanout,
		alerter:  alerter,
		store:    store,
		schedule: cfg.Schedule,
		log:      log,
	}, nil
}

func storeOptions(cfg *config.Config) storage.Options {
	path := cfg.StatePath
	if cfg.StorageType == storage.TypeBBolt {
		path = cfg.BBoltPath
	}
	return storage.Options{Path: path, DSN: cfg.SQLiteDSN}
}

func sourceFromConfig(cfg *config.Config) sources.Source {
	return sources.Source{
		ID:               cfg.SourceID,
		Name:             cfg.SourceName,
		Type:             cfg.SourceType,
		URL:              cfg.SourceURL,
		TableSelector:    cfg.SourceTableSelector,
		RowSelector:      cfg.SourceRowSelector,
		RowLimit:         cfg.SourceRowLimit,
		ConditionalFetch: cfg.SourceConditionalFetch,
		Config: map[string]any{
			sources.ConfigUserAgentKey: cfg.SourceUserAgent,
		},
	}
}

// Run performs a single check when no schedule is configured and returns
// its error. Otherwise it checks immediately and then on the cron schedule
// until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	if w == nil || w.service == nil {
		return fmt.Errorf("watcher is not initialized")
	}
	defer w.Close()

	if w.schedule == "" {
		_, err := w.RunOnce(ctx)
		return err
	}

	cl := cronLogger{log: w.log}
	c := cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
	if _, err := c.AddFunc(w.schedule, func() {
		_, _ = w.RunOnce(ctx)
	}); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", w.schedule, err)
	}

	w.log.InfoObj("watcher loop starting", "watcher_state", map[string]any{
		"schedule":        w.schedule,
		"notifiers_count": w.fanout.Size(),
	})

	_, _ = w.RunOnce(ctx)

	c.Start()
	<-ctx.Done()
	stopCtx := c.Stop()
	<-stopCtx.Done()
	w.log.InfoObj("watcher loop exiting", "reason", ctx.Err())
	return nil
}

// RunOnce performs one check and alerts the maintainer on failure.
func (w *Watcher) RunOnce(ctx context.Context) (monitor.Report, error) {
	start := time.Now()
	w.log.InfoObj("check started", "check_meta", map[string]any{
		"source_id":  w.cfg.SourceID,
		"started_at": start.UTC(),
	})

	rep, err := w.service.RunOnce(ctx)
	if err != nil {
		w.log.ErrorObj("check failed", "check_error", map[string]any{
			"source_id": w.cfg.SourceID,
			"state":     rep.State,
			"error":     err.Error(),
		})
		if aerr := w.alerter.Alert(ctx, err); aerr != nil {
			err = errors.Join(err, fmt.Errorf("alert maintainer: %w", aerr))
		}
		return rep, err
	}

	w.log.InfoObj("check completed", "check_meta", map[string]any{
		"source_id":  w.cfg.SourceID,
		"state":      rep.State,
		"new":        rep.New,
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
	return rep, nil
}

// Close releases notifier connections and the store. It is safe to call twice.
func (w *Watcher) Close() {
	if w == nil {
		return
	}
	w.closeOnce.Do(func() {
		if err := w.fanout.Close(); err != nil {
			w.log.ErrorObj("notifier close failed", "error", err)
		}
		if w.store != nil {
			if err := w.store.Close(); err != nil {
				w.log.ErrorObj("storage close failed", "error", err)
			}
		}
	})
}

// cronLogger routes robfig/cron messages to the application logger.
type cronLogger struct {
	log logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.DebugObj("cron: "+msg, "cron", keysAndValues)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.ErrorObj("cron: "+msg, "cron_error", map[string]any{
		"error":  err.Error(),
		"fields": keysAndValues,
	})
}
