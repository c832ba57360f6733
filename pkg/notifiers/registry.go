package notifiers

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// BuildOptions carries run-wide settings every builder may need.
type BuildOptions struct {
	// Testing routes email and telegram to their test targets.
	Testing     bool
	RenderLimit int
	Log         Logger
}

// Builder creates a Notifier from a config entry.
type Builder func(ctx context.Context, cfg NotifierConfig, opts BuildOptions) (Notifier, error)

// Registry maps notifier types to builders.
type Registry interface {
	Register(typ string, builder Builder)
	NotifierFor(ctx context.Context, cfg NotifierConfig, opts BuildOptions) (Notifier, error)
}

type registry struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

// NewRegistry returns a registry with optional pre-registered builders.
func NewRegistry(builders map[string]Builder) Registry {
	r := &registry{
		builders: make(map[string]Builder),
	}
	for typ, b := range builders {
		r.Register(typ, b)
	}
	return r
}

// Register associates a builder with a notifier type.
func (r *registry) Register(typ string, builder Builder) {
	if typ = strings.TrimSpace(strings.ToLower(typ)); typ == "" || builder == nil {
		return
	}

	r.mu.Lock()
	r.builders[typ] = builder
	r.mu.Unlock()
}

// NotifierFor returns the notifier built for the provided config.
func (r *registry) NotifierFor(ctx context.Context, cfg NotifierConfig, opts BuildOptions) (Notifier, error) {
	if cfg.Type == "" {
		return nil, fmt.Errorf("notifier %q has no type configured", cfg.ID)
	}

	r.mu.RLock()
	builder := r.builders[strings.ToLower(cfg.Type)]
	r.mu.RUnlock()

	if builder == nil {
		return nil, fmt.Errorf("no notifier registered for type %q", cfg.Type)
	}
	return builder(ctx, cfg, opts)
}

// DefaultRegistry wires up known notifiers.
func DefaultRegistry() Registry {
	builders := map[string]Builder{
		TypeEmail:    newEmailNotifier,
		TypeTelegram: newTelegramNotifier,
		TypeHTTP:     newHTTPNotifier,
		TypeSQS:      newSQSNotifier,
		TypeSNS:      newSNSNotifier,
		TypePubSub:   newPubSubNotifier,
	}
	return NewRegistry(builders)
}

// BuildAll instantiates notifiers for configs using the registry.
func BuildAll(ctx context.Context, reg Registry, cfgs []NotifierConfig, opts BuildOptions) ([]Notifier, error) {
	if reg == nil || len(cfgs) == 0 {
		return nil, nil
	}

	var nts []Notifier
	for _, cfg := range cfgs {
		nt, err := reg.NotifierFor(ctx, cfg, opts)
		if err != nil {
			return nil, err
		}
		nts = append(nts, nt)
	}
	return nts, nil
}
