package detector

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Adda-Baaj/notice-watch/internal/domain"
)

// Strategy selects the delta algorithm.
type Strategy string

const (
	// StrategyPrefix scans newest first and stops at the first known entry.
	StrategyPrefix Strategy = "prefix"
	// StrategySetDiff treats every entry absent from the previous state as new.
	StrategySetDiff Strategy = "set_diff"
)

// Shape selects what the persisted state keeps.
type Shape string

const (
	ShapeSingle  Shape = "single"
	ShapeWindow  Shape = "window"
	ShapeFullSet Shape = "full_set"
)

// Policy bundles every knob of change detection. Identity must stay fixed
// across runs: switching it makes the next run see every entry as new.
type Policy struct {
	Identity domain.Identity
	Strategy Strategy
	Shape    Shape

	// WindowSize is the number of keys kept by the window shape.
	WindowSize int
	// RetentionCap bounds the full_set shape; 0 keeps everything.
	RetentionCap int
	// InitialBatchSize caps the first-run delta; 0 reports the whole fetch.
	InitialBatchSize int
	// ScanLimit bounds the prefix scan; 0 scans the whole fetch.
	ScanLimit int

	TrackRemoved    bool
	NotifyOnRemoval bool
}

// DefaultPolicy mirrors a single stored marker compared by title.
func DefaultPolicy() Policy {
	return Policy{
		Identity:   domain.IdentityTitle,
		Strategy:   StrategyPrefix,
		Shape:      ShapeSingle,
		WindowSize: 10,
	}
}

// ParseStrategy normalizes a configured strategy name.
func ParseStrategy(raw string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "prefix", "stop":
		return StrategyPrefix, nil
	case "set_diff", "set-diff", "setdiff":
		return StrategySetDiff, nil
	default:
		return "", fmt.Errorf("unsupported detect strategy %q (expected prefix or set_diff)", raw)
	}
}

// ParseShape normalizes a configured state shape name.
func ParseShape(raw string) (Shape, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "single":
		return ShapeSingle, nil
	case "window":
		return ShapeWindow, nil
	case "full_set", "full-set", "full":
		return ShapeFullSet, nil
	default:
		return "", fmt.Errorf("unsupported state shape %q (expected single, window or full_set)", raw)
	}
}

// ParsePolicy builds a Policy from configuration strings and validates it.
func ParsePolicy(identity, strategy, shape string, p Policy) (Policy, error) {
	var err error
	if p.Identity, err = domain.ParseIdentity(identity); err != nil {
		return Policy{}, err
	}
	if p.Strategy, err = ParseStrategy(strategy); err != nil {
		return Policy{}, err
	}
	if p.Shape, err = ParseShape(shape); err != nil {
		return Policy{}, err
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// Validate rejects combinations the detector cannot honor.
func (p Policy) Validate() error {
	switch p.Identity {
	case domain.IdentityTitle, domain.IdentityTitleLink:
	default:
		return fmt.Errorf("unsupported identity policy %q", p.Identity)
	}
	switch p.Strategy {
	case StrategyPrefix, StrategySetDiff:
	default:
		return fmt.Errorf("unsupported detect strategy %q", p.Strategy)
	}
	switch p.Shape {
	case ShapeSingle, ShapeFullSet:
	case ShapeWindow:
		if p.WindowSize < 1 {
			return errors.New("window state shape requires a positive window size")
		}
	default:
		return fmt.Errorf("unsupported state shape %q", p.Shape)
	}
	if p.Strategy == StrategySetDiff && p.Shape == ShapeSingle {
		return errors.New("set_diff strategy requires the window or full_set state shape")
	}
	if p.RetentionCap < 0 || p.InitialBatchSize < 0 || p.ScanLimit < 0 {
		return errors.New("retention cap, initial batch size and scan limit must not be negative")
	}
	if p.NotifyOnRemoval && !p.TrackRemoved {
		return errors.New("notify_on_removal requires track_removed")
	}
	return nil
}
