package education

import (
	"testing"

	"github.com/rampart-ai/rampart/internal/engine"
)

func decision(action engine.Action, patterns ...engine.AttackPattern) *engine.SecurityDecision {
	return &engine.SecurityDecision{Action: action, DetectedAttacks: patterns}
}

func TestGuidance_NilForPass(t *testing.T) {
	p := NewProvider()
	if msg := p.Guidance(decision(engine.ActionPass), "s-1"); msg != nil {
		t.Errorf("PASS should produce no guidance, got %+v", msg)
	}
	if msg := p.Guidance(nil, "s-1"); msg != nil {
		t.Error("nil decision should produce no guidance")
	}
}

func TestGuidance_CategoryContent(t *testing.T) {
	p := NewProvider()
	msg := p.Guidance(decision(engine.ActionBlock, engine.AttackPattern{
		ID: "pi-001", Category: "prompt_injection", Severity: engine.SeverityHigh,
	}), "s-1")

	if msg == nil {
		t.Fatal("expected guidance for a block")
	}
	if msg.Title != "Instruction conflict detected" {
		t.Errorf("title = %q", msg.Title)
	}
	if len(msg.ActionItems) == 0 {
		t.Error("expected action items")
	}
	if msg.AppealInfo == "" {
		t.Error("blocks must carry appeal info")
	}
}

func TestGuidance_FlagHasNoAppealInfo(t *testing.T) {
	p := NewProvider()
	msg := p.Guidance(decision(engine.ActionFlag, engine.AttackPattern{
		ID: "sc-001", Category: "scope", Severity: engine.SeverityMedium,
	}), "s-1")

	if msg == nil {
		t.Fatal("expected guidance for a flag")
	}
	if msg.AppealInfo != "" {
		t.Error("flags should not carry appeal info")
	}
}

func TestGuidance_DominantCategoryWins(t *testing.T) {
	p := NewProvider()
	msg := p.Guidance(decision(engine.ActionBlock,
		engine.AttackPattern{ID: "sc-001", Category: "scope", Severity: engine.SeverityMedium},
		engine.AttackPattern{ID: "de-001", Category: "data_egress", Severity: engine.SeverityCritical},
	), "s-1")

	if msg.Title != "Sensitive data request detected" {
		t.Errorf("most severe category should drive guidance, got title %q", msg.Title)
	}
}

func TestGuidance_UnknownCategoryFallsBack(t *testing.T) {
	p := NewProvider()
	msg := p.Guidance(decision(engine.ActionBlock, engine.AttackPattern{
		ID: "xx-001", Category: "unknown", Severity: engine.SeverityLow,
	}), "s-1")

	if msg.Title != "Request not permitted" {
		t.Errorf("unknown category should use the default guidance, got %q", msg.Title)
	}
}
