package domain

import "testing"

func TestNewEntryMapsMissingLinkToSentinel(t *testing.T) {
	e := NewEntry(" 01-01-2025 ", " Notice A ", "  ")
	if e.Link != NoLink {
		t.Fatalf("expected NoLink sentinel, got %q", e.Link)
	}
	if e.HasLink() {
		t.Fatalf("entry without link reported HasLink")
	}
	if e.Title != "Notice A" || e.Date != "01-01-2025" {
		t.Fatalf("fields not trimmed: %#v", e)
	}
}

func TestIdentityKeys(t *testing.T) {
	a := NewEntry("d", "Same", "https://example.com/a")
	b := NewEntry("d", "Same", "https://example.com/b")

	if IdentityTitle.Key(a) != IdentityTitle.Key(b) {
		t.Fatalf("title identity should ignore links")
	}
	if IdentityTitleLink.Key(a) == IdentityTitleLink.Key(b) {
		t.Fatalf("title_link identity should distinguish links")
	}
}

func TestParseIdentity(t *testing.T) {
	cases := map[string]Identity{
		"":           IdentityTitle,
		"Title":      IdentityTitle,
		"title_link": IdentityTitleLink,
		"title+link": IdentityTitleLink,
	}
	for raw, want := range cases {
		got, err := ParseIdentity(raw)
		if err != nil || got != want {
			t.Fatalf("ParseIdentity(%q) = %q, %v; want %q", raw, got, err, want)
		}
	}
	if _, err := ParseIdentity("url"); err == nil {
		t.Fatalf("expected error for unknown identity")
	}
}

func TestNewSeenStateDropsEmptyAndRepeats(t *testing.T) {
	s := NewSeenState("a", "", "b", "a")
	if len(s.Keys) != 2 || s.Keys[0] != "a" || s.Keys[1] != "b" {
		t.Fatalf("unexpected keys %#v", s.Keys)
	}
	if !s.Contains("b") || s.Contains("c") {
		t.Fatalf("Contains mismatch for %#v", s.Keys)
	}
	if NewSeenState().Empty() != true {
		t.Fatalf("expected empty state")
	}
}

func TestNewSeenStateKeepsKeysVerbatim(t *testing.T) {
	e := Entry{Title: "Notice A ", Link: NoLink}
	key := IdentityTitle.Key(e)
	s := NewSeenState(key, " b")
	if !s.Contains(key) || !s.Contains(" b") {
		t.Fatalf("keys must not be rewritten, got %#v", s.Keys)
	}
}
