package detectors

import (
	"context"

	"github.com/rampart-ai/rampart/internal/engine"
	"github.com/rampart-ai/rampart/internal/normalize"
)

// Pre-compiled scope violation patterns — requests that push the
// assistant into system-level territory it has no business in.
var scopeRules = []rule{
	// SQL injection
	newRule("sc-001", "scope", "SQL: destructive statement",
		engine.SeverityHigh, engine.ActionBlock, 0.90,
		`(?i)\b(DROP|DELETE|TRUNCATE|ALTER)\s+(TABLE|DATABASE|INDEX|SCHEMA)\b`),
	newRule("sc-002", "scope", "SQL: union select probe",
		engine.SeverityHigh, engine.ActionBlock, 0.90,
		`(?i)\bUNION\s+(ALL\s+)?SELECT\b`),
	newRule("sc-003", "scope", "SQL: stacked statement",
		engine.SeverityHigh, engine.ActionBlock, 0.90,
		`(?i);\s*(DROP|DELETE|TRUNCATE|ALTER|INSERT|UPDATE)\b`),
	newRule("sc-004", "scope", "SQL: tautology",
		engine.SeverityHigh, engine.ActionBlock, 0.90,
		`(?i)\bOR\s+1\s*=\s*1\b`),
	newRule("sc-005", "scope", "SQL: command shell escape",
		engine.SeverityCritical, engine.ActionBlock, 0.95,
		`(?i)\b(xp_cmdshell|INTO\s+OUTFILE|LOAD_FILE\s*\()`),

	// Command injection
	newRule("sc-006", "scope", "shell: chained command",
		engine.SeverityHigh, engine.ActionBlock, 0.90,
		`[;&|]\s*(cat|ls|pwd|whoami|id|uname|curl|wget|nc|ncat|bash|sh|zsh|python|perl|ruby|php)\b`),
	newRule("sc-007", "scope", "shell: command substitution",
		engine.SeverityHigh, engine.ActionBlock, 0.85,
		"(`[^`]+`|\\$\\([^)]+\\))"),
	newRule("sc-008", "scope", "shell: pipe to interpreter",
		engine.SeverityHigh, engine.ActionBlock, 0.90,
		`\|\s*(bash|sh|zsh)\b`),
	newRule("sc-009", "scope", "shell: system path write",
		engine.SeverityHigh, engine.ActionBlock, 0.85,
		`>\s*/(etc|tmp|var)/`),

	// Privileged operation requests
	newRule("sc-010", "scope", "request to run system commands",
		engine.SeverityHigh, engine.ActionBlock, 0.85,
		`(?i)\b(execute|run)\s+(the\s+)?(command|shell|script)\b.{0,30}\b(rm|chmod|sudo|curl|wget)\b`),
	newRule("sc-011", "scope", "destructive filesystem request",
		engine.SeverityCritical, engine.ActionBlock, 0.95,
		`(?i)\brm\s+-rf\s+/`),
	newRule("sc-012", "scope", "request to modify own configuration",
		engine.SeverityMedium, engine.ActionFlag, 0.70,
		`(?i)(change|modify|update|rewrite)\s+(your|the)\s+(configuration|settings|policy|permissions)\b`),
}

// ScopeDetector scans for system-level operations outside the
// assistant's mandate: SQL and shell injection, privileged commands,
// and self-reconfiguration requests.
type ScopeDetector struct{}

func NewScopeDetector() *ScopeDetector {
	return &ScopeDetector{}
}

func (d *ScopeDetector) Name() string {
	return "scope"
}

func (d *ScopeDetector) Detect(ctx context.Context, in *normalize.Input) (*engine.DetectionResult, error) {
	return scan(ctx, scopeRules, in), nil
}
