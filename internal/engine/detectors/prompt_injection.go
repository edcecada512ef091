package detectors

import (
	"context"

	"github.com/rampart-ai/rampart/internal/engine"
	"github.com/rampart-ai/rampart/internal/normalize"
)

// Pre-compiled patterns — compiled once at startup, never during a request.
var promptInjectionRules = []rule{
	newRule("pi-001", "prompt_injection", "override: ignore previous instructions",
		engine.SeverityCritical, engine.ActionBlock, 0.95,
		`(?i)ignore\s+(all\s+)?(previous|above)\s+instructions`),
	newRule("pi-002", "prompt_injection", "override: disregard instructions",
		engine.SeverityCritical, engine.ActionBlock, 0.95,
		`(?i)disregard\s+(all\s+)?(previous|prior|above)\s+(instructions|rules|guidelines)`),
	newRule("pi-003", "prompt_injection", "override: forget instructions",
		engine.SeverityHigh, engine.ActionBlock, 0.90,
		`(?i)forget\s+(all\s+)?(previous|prior|above)\s+(instructions|context)`),
	newRule("pi-004", "prompt_injection", "identity override: you are now",
		engine.SeverityHigh, engine.ActionBlock, 0.85,
		`(?i)you\s+are\s+now\s+`),
	newRule("pi-005", "prompt_injection", "identity override: from now on",
		engine.SeverityHigh, engine.ActionBlock, 0.85,
		`(?i)from\s+now\s+on\s+you\s+(are|will|must|should)`),
	newRule("pi-006", "prompt_injection", "identity override: new role",
		engine.SeverityHigh, engine.ActionBlock, 0.85,
		`(?i)your\s+new\s+(role|identity|persona|instructions)\s+(is|are)`),
	newRule("pi-007", "prompt_injection", "identity override: act as",
		engine.SeverityMedium, engine.ActionFlag, 0.70,
		`(?i)act\s+as\s+(if\s+you\s+are|a)\s+`),
	newRule("pi-008", "prompt_injection", "identity override: pretend",
		engine.SeverityMedium, engine.ActionFlag, 0.70,
		`(?i)pretend\s+(to\s+be|you\s+are)\s+`),
	newRule("pi-009", "prompt_injection", "delimiter injection: [SYSTEM] tag",
		engine.SeverityHigh, engine.ActionBlock, 0.90,
		`(?i)\[SYSTEM\]`),
	newRule("pi-010", "prompt_injection", "delimiter injection: ChatML system tag",
		engine.SeverityCritical, engine.ActionBlock, 0.95,
		`(?i)<\|im_start\|>system`),
	newRule("pi-011", "prompt_injection", "delimiter injection: markdown system header",
		engine.SeverityHigh, engine.ActionBlock, 0.90,
		`(?i)###\s*(SYSTEM|INSTRUCTION|NEW INSTRUCTION)`),
	newRule("pi-012", "prompt_injection", "delimiter injection: BEGININSTRUCTION",
		engine.SeverityHigh, engine.ActionBlock, 0.90,
		`(?i)BEGININSTRUCTION`),
	newRule("pi-013", "prompt_injection", "explicit override attempt",
		engine.SeverityCritical, engine.ActionBlock, 0.95,
		`(?i)override\s+(system|safety|security)\s+(prompt|instructions|rules|policy)`),
	newRule("pi-014", "prompt_injection", "explicit bypass attempt",
		engine.SeverityCritical, engine.ActionBlock, 0.95,
		`(?i)bypass\s+(the\s+)?(safety|security|content)\s+(filter|check|policy|rules)`),
	newRule("pi-015", "prompt_injection", "instruction negation",
		engine.SeverityHigh, engine.ActionBlock, 0.90,
		`(?i)do\s+not\s+follow\s+(your|the|any)\s+(rules|guidelines|instructions|safety)`),
	newRule("pi-016", "prompt_injection", "system prompt extraction",
		engine.SeverityHigh, engine.ActionBlock, 0.90,
		`(?i)(reveal|output)\s+(your|the)\s+(system|initial|original|hidden)\s+(prompt|instructions|message)`),
	newRule("pi-017", "prompt_injection", "system prompt interrogation",
		engine.SeverityHigh, engine.ActionFlag, 0.85,
		`(?i)what\s+(are|is|were)\s+your\s+(system|initial|original|hidden)\s+(prompt|instructions|rules)`),
	newRule("pi-018", "prompt_injection", "hidden comment carrying instructions",
		engine.SeverityMedium, engine.ActionFlag, 0.70,
		`(?i)hidden\s+comment:.*(instruction|ignore|system|prompt)`),
}

// PromptInjectionDetector scans input for instruction-override attempts.
type PromptInjectionDetector struct{}

func NewPromptInjectionDetector() *PromptInjectionDetector {
	return &PromptInjectionDetector{}
}

func (d *PromptInjectionDetector) Name() string {
	return "prompt_injection"
}

func (d *PromptInjectionDetector) Detect(ctx context.Context, in *normalize.Input) (*engine.DetectionResult, error) {
	// All patterns use (?i) for case-insensitive matching, so no need to
	// lowercase the input (which would allocate a copy on every request).
	return scan(ctx, promptInjectionRules, in), nil
}
