package domain

import (
	"fmt"
	"strings"
)

// Domain contains core models shared by sources, the detector and notifiers.

// NoLink marks an entry whose listing row carried no link.
const NoLink = "No link"

// keySeparator joins title and link for combined identity keys.
const keySeparator = "\x1f"

// Entry is one row of the monitored listing.
type Entry struct {
	Date  string `json:"date"`
	Title string `json:"title"`
	Link  string `json:"link"`
}

// NewEntry trims the fields and maps a missing link to NoLink.
func NewEntry(date, title, link string) Entry {
	link = strings.TrimSpace(link)
	if link == "" {
		link = NoLink
	}
	return Entry{
		Date:  strings.TrimSpace(date),
		Title: strings.TrimSpace(title),
		Link:  link,
	}
}

// HasLink reports whether the entry points at a real URL.
func (e Entry) HasLink() bool {
	return e.Link != "" && e.Link != NoLink
}

// EntryList is an ordered fetch result, newest first.
type EntryList []Entry

// Identity selects the fields that recognize the same entry across runs.
type Identity string

const (
	IdentityTitle     Identity = "title"
	IdentityTitleLink Identity = "title_link"
)

// ParseIdentity normalizes a configured identity policy.
func ParseIdentity(raw string) (Identity, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "title":
		return IdentityTitle, nil
	case "title_link", "title+link", "title,link":
		return IdentityTitleLink, nil
	default:
		return "", fmt.Errorf("unsupported identity policy %q (expected title or title_link)", raw)
	}
}

// Key returns the opaque identity key for e.
func (id Identity) Key(e Entry) string {
	if id == IdentityTitleLink {
		return e.Title + keySeparator + e.Link
	}
	return e.Title
}

// SeenState is the persisted summary of observed identity keys, most recent first.
type SeenState struct {
	Keys []string `json:"keys"`
}

// NewSeenState builds a state from keys, dropping empty keys and repeats.
// Keys are kept byte for byte so they match Identity.Key on the next run.
func NewSeenState(keys ...string) SeenState {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return SeenState{Keys: out}
}

func (s SeenState) Empty() bool { return len(s.Keys) == 0 }
func (s SeenState) Len() int    { return len(s.Keys) }

// Contains reports whether key was observed.
func (s SeenState) Contains(key string) bool {
	for _, k := range s.Keys {
		if k == key {
			return true
		}
	}
	return false
}

// Set returns the keys as a lookup set.
func (s SeenState) Set() map[string]struct{} {
	set := make(map[string]struct{}, len(s.Keys))
	for _, k := range s.Keys {
		set[k] = struct{}{}
	}
	return set
}

// Clone returns a copy that does not share the backing array.
func (s SeenState) Clone() SeenState {
	if s.Keys == nil {
		return SeenState{}
	}
	return SeenState{Keys: append([]string(nil), s.Keys...)}
}

// DisplayKey renders an identity key for humans.
func DisplayKey(key string) string {
	return strings.ReplaceAll(key, keySeparator, " | ")
}
