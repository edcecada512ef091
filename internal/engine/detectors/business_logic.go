package detectors

import (
	"context"

	"github.com/rampart-ai/rampart/internal/engine"
	"github.com/rampart-ai/rampart/internal/normalize"
)

// Pre-compiled business logic abuse patterns — attempts to make the
// assistant take privileged application actions on the attacker's behalf.
var businessLogicRules = []rule{
	newRule("bl-001", "business_logic", "unauthorized financial action",
		engine.SeverityCritical, engine.ActionBlock, 0.95,
		`(?i)\b(transfer|wire|send|move)\s+\$?\d[\d,.]*\s*(dollars|usd|eur)?\s+(to|into)\s+(account|wallet|address)\b`),
	newRule("bl-002", "business_logic", "refund or credit manipulation",
		engine.SeverityHigh, engine.ActionBlock, 0.90,
		`(?i)\b(issue|process|apply)\s+(a\s+)?(full\s+)?(refund|credit|chargeback)\b.{0,40}\bwithout\b`),
	newRule("bl-003", "business_logic", "discount or pricing override",
		engine.SeverityHigh, engine.ActionFlag, 0.85,
		`(?i)\b(apply|give|set)\s+(a\s+)?(100%|free|zero[- ]cost)\s+(discount|price|rate)\b`),
	newRule("bl-004", "business_logic", "privilege escalation request",
		engine.SeverityCritical, engine.ActionBlock, 0.95,
		`(?i)\b(make|set|upgrade)\s+(me|my\s+account|this\s+user)\s+(an?\s+)?(admin|administrator|superuser|root)\b`),
	newRule("bl-005", "business_logic", "account takeover request",
		engine.SeverityCritical, engine.ActionBlock, 0.95,
		`(?i)\b(reset|change)\s+(the\s+)?password\s+(for|of)\s+(another|a\s+different|someone\s+else)`),
	newRule("bl-006", "business_logic", "verification bypass",
		engine.SeverityHigh, engine.ActionBlock, 0.90,
		`(?i)\b(skip|bypass|without)\s+(the\s+)?(identity\s+)?(verification|authentication|approval)\s+(step|process|check)\b`),
	newRule("bl-007", "business_logic", "order or limit manipulation",
		engine.SeverityMedium, engine.ActionFlag, 0.75,
		`(?i)\b(raise|increase|remove)\s+(my|the)\s+(spending|withdrawal|transfer|rate)\s+limit\b`),
}

// BusinessLogicDetector scans for attempts to drive privileged
// application workflows through the conversational channel.
type BusinessLogicDetector struct{}

func NewBusinessLogicDetector() *BusinessLogicDetector {
	return &BusinessLogicDetector{}
}

func (d *BusinessLogicDetector) Name() string {
	return "business_logic"
}

func (d *BusinessLogicDetector) Detect(ctx context.Context, in *normalize.Input) (*engine.DetectionResult, error) {
	return scan(ctx, businessLogicRules, in), nil
}
