package detector

import (
	"testing"

	"github.com/Adda-Baaj/notice-watch/internal/domain"
)

func TestParsePolicyAcceptsAliases(t *testing.T) {
	p, err := ParsePolicy("title+link", "set-diff", "full", Policy{RetentionCap: 100})
	if err != nil {
		t.Fatalf("ParsePolicy: %v", err)
	}
	if p.Identity != domain.IdentityTitleLink || p.Strategy != StrategySetDiff || p.Shape != ShapeFullSet {
		t.Fatalf("unexpected policy %+v", p)
	}
	if p.RetentionCap != 100 {
		t.Fatalf("numeric fields should carry over, got %d", p.RetentionCap)
	}
}

func TestPolicyValidateRejects(t *testing.T) {
	cases := map[string]Policy{
		"set diff on single": {Identity: domain.IdentityTitle, Strategy: StrategySetDiff, Shape: ShapeSingle},
		"zero window":        {Identity: domain.IdentityTitle, Strategy: StrategyPrefix, Shape: ShapeWindow},
		"negative batch":     {Identity: domain.IdentityTitle, Strategy: StrategyPrefix, Shape: ShapeSingle, InitialBatchSize: -1},
		"unknown shape":      {Identity: domain.IdentityTitle, Strategy: StrategyPrefix, Shape: "ring"},
		"removal untracked":  {Identity: domain.IdentityTitle, Strategy: StrategyPrefix, Shape: ShapeSingle, NotifyOnRemoval: true},
	}
	for name, p := range cases {
		if err := p.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestParseStrategyAndShapeErrors(t *testing.T) {
	if _, err := ParseStrategy("random"); err == nil {
		t.Fatalf("expected strategy error")
	}
	if _, err := ParseShape("ring"); err == nil {
		t.Fatalf("expected shape error")
	}
}

func TestNewRejectsInvalidPolicy(t *testing.T) {
	if _, err := New(Policy{}); err == nil {
		t.Fatalf("expected error for zero policy")
	}
	if _, err := New(DefaultPolicy()); err != nil {
		t.Fatalf("default policy should be valid: %v", err)
	}
}
