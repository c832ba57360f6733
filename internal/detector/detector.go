package detector

import (
	"fmt"

	"github.com/Adda-Baaj/notice-watch/internal/domain"
)

// Result is the outcome of one detection pass.
type Result struct {
	// New holds the entries not seen before, in fetch order.
	New domain.EntryList
	// Removed holds previous keys missing from the fetch (TrackRemoved only).
	Removed []string
	// State is what the store should hold afterwards. It equals the previous
	// state whenever Changed is false.
	State   domain.SeenState
	Changed bool
}

// Detector computes deltas between a fetch and the persisted state. It keeps
// no state between calls and is safe for concurrent use.
type Detector struct {
	policy Policy
}

// New validates policy and returns a detector bound to it.
func New(policy Policy) (*Detector, error) {
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid detection policy: %w", err)
	}
	return &Detector{policy: policy}, nil
}

// Policy returns the bound policy.
func (d *Detector) Policy() Policy { return d.policy }

// Detect compares current against previous. Neither input is modified.
func (d *Detector) Detect(current domain.EntryList, previous domain.SeenState) (Result, error) {
	if d == nil {
		return Result{}, fmt.Errorf("detector is not initialized")
	}
	previous = previous.Clone()
	if len(current) == 0 {
		return Result{State: previous}, nil
	}

	entries, keys := d.dedupe(current)
	fetched := keys
	if d.policy.Strategy == StrategySetDiff {
		if n := d.policy.stateBound(); n > 0 && n < len(keys) {
			entries, keys = entries[:n], keys[:n]
		}
	}

	var fresh domain.EntryList
	switch {
	case previous.Empty():
		fresh = d.bootstrap(entries)
	case d.policy.Strategy == StrategyPrefix:
		fresh = d.scanPrefix(entries, keys, previous)
	case d.policy.Strategy == StrategySetDiff:
		fresh = setDiff(entries, keys, previous)
	default:
		return Result{}, fmt.Errorf("unsupported detect strategy %q", d.policy.Strategy)
	}

	var removed []string
	if d.policy.TrackRemoved {
		removed = missingKeys(previous, fetched)
	}

	changed := len(fresh) > 0 || (d.policy.NotifyOnRemoval && len(removed) > 0)
	res := Result{New: fresh, Removed: removed, State: previous, Changed: changed}
	if changed {
		res.State = d.nextState(keys, previous)
	}
	return res, nil
}

// dedupe keeps the first occurrence of every identity key.
func (d *Detector) dedupe(current domain.EntryList) (domain.EntryList, []string) {
	entries := make(domain.EntryList, 0, len(current))
	keys := make([]string, 0, len(current))
	seen := make(map[string]struct{}, len(current))
	for _, e := range current {
		k := d.policy.Identity.Key(e)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		entries = append(entries, e)
		keys = append(keys, k)
	}
	return entries, keys
}

func (d *Detector) bootstrap(entries domain.EntryList) domain.EntryList {
	n := len(entries)
	if limit := d.policy.InitialBatchSize; limit > 0 && limit < n {
		n = limit
	}
	return append(domain.EntryList(nil), entries[:n]...)
}

// scanPrefix stops at the first entry already in previous. Without a stop
// inside the scan window every scanned entry counts as new, so a marker that
// vanished upstream never hides a whole page of entries.
func (d *Detector) scanPrefix(entries domain.EntryList, keys []string, previous domain.SeenState) domain.EntryList {
	limit := len(entries)
	if d.policy.ScanLimit > 0 && d.policy.ScanLimit < limit {
		limit = d.policy.ScanLimit
	}
	known := previous.Set()
	for i := 0; i < limit; i++ {
		if _, ok := known[keys[i]]; ok {
			return append(domain.EntryList(nil), entries[:i]...)
		}
	}
	return append(domain.EntryList(nil), entries[:limit]...)
}

func setDiff(entries domain.EntryList, keys []string, previous domain.SeenState) domain.EntryList {
	known := previous.Set()
	var out domain.EntryList
	for i, e := range entries {
		if _, ok := known[keys[i]]; !ok {
			out = append(out, e)
		}
	}
	return out
}

func missingKeys(previous domain.SeenState, keys []string) []string {
	present := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		present[k] = struct{}{}
	}
	var out []string
	for _, k := range previous.Keys {
		if _, ok := present[k]; !ok {
			out = append(out, k)
		}
	}
	return out
}

// stateBound is the number of keys the shape can hold, 0 when unbounded.
// Set diff only looks at that many leading entries, so anything it reports
// as new is also recorded.
func (p Policy) stateBound() int {
	switch p.Shape {
	case ShapeSingle:
		return 1
	case ShapeWindow:
		return p.WindowSize
	default:
		return p.RetentionCap
	}
}

// nextState derives the stored state from the deduplicated fetch keys.
func (d *Detector) nextState(keys []string, previous domain.SeenState) domain.SeenState {
	switch d.policy.Shape {
	case ShapeSingle:
		return domain.NewSeenState(keys[0])
	case ShapeWindow:
		n := d.policy.WindowSize
		if n > len(keys) {
			n = len(keys)
		}
		return domain.NewSeenState(keys[:n]...)
	default:
		merged := make([]string, 0, len(keys)+previous.Len())
		merged = append(merged, keys...)
		merged = append(merged, previous.Keys...)
		state := domain.NewSeenState(merged...)
		if c := d.policy.RetentionCap; c > 0 && state.Len() > c {
			state.Keys = state.Keys[:c]
		}
		return state
	}
}
