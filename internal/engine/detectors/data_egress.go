package detectors

import (
	"context"

	"github.com/rampart-ai/rampart/internal/engine"
	"github.com/rampart-ai/rampart/internal/normalize"
)

// Pre-compiled data egress patterns — sensitive data appearing in the
// input plus exfiltration channels that would carry it out.
var dataEgressRules = []rule{
	// SSN: 123-45-6789 or 123 45 6789
	newRule("de-001", "data_egress", "Social Security Number",
		engine.SeverityHigh, engine.ActionBlock, 0.90,
		`\b\d{3}[-\s]\d{2}[-\s]\d{4}\b`),

	// Credit card numbers (Visa, MC, Amex, Discover — optional spaces/dashes)
	newRule("de-002", "data_egress", "credit card (Visa)",
		engine.SeverityHigh, engine.ActionBlock, 0.90,
		`\b4\d{3}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`),
	newRule("de-003", "data_egress", "credit card (Mastercard)",
		engine.SeverityHigh, engine.ActionBlock, 0.90,
		`\b5[1-5]\d{2}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b`),
	newRule("de-004", "data_egress", "credit card (Amex)",
		engine.SeverityHigh, engine.ActionBlock, 0.90,
		`\b3[47]\d{2}[-\s]?\d{6}[-\s]?\d{5}\b`),

	// IBAN
	newRule("de-005", "data_egress", "IBAN",
		engine.SeverityHigh, engine.ActionBlock, 0.90,
		`\b[A-Z]{2}\d{2}[-\s]?[A-Z0-9]{4}[-\s]?(?:[A-Z0-9]{4}[-\s]?){1,7}[A-Z0-9]{1,4}\b`),

	// Credential material
	newRule("de-006", "data_egress", "private key block",
		engine.SeverityCritical, engine.ActionBlock, 0.95,
		`-----BEGIN\s+(RSA\s+|EC\s+|OPENSSH\s+)?PRIVATE\s+KEY-----`),
	newRule("de-007", "data_egress", "credential assignment",
		engine.SeverityHigh, engine.ActionFlag, 0.80,
		`(?i)\b(password|passwd|api[_-]?key|secret|token)\s*[:=]\s*\S{8,}`),

	// Exfiltration requests
	newRule("de-008", "data_egress", "send data to external endpoint",
		engine.SeverityHigh, engine.ActionBlock, 0.85,
		`(?i)(send|post|upload|forward|exfiltrate)\s+.{0,40}\s+to\s+(https?://|ftp://|www\.)`),
	newRule("de-009", "data_egress", "suspicious outbound link",
		engine.SeverityHigh, engine.ActionFlag, 0.80,
		`(?i)^suspicious\s+link:`),
	newRule("de-010", "data_egress", "request to reveal stored records",
		engine.SeverityMedium, engine.ActionFlag, 0.70,
		`(?i)(list|dump|export|show)\s+(all\s+)?(users|customers|accounts|records|emails)\b.{0,30}\b(database|table|system)`),
}

// DataEgressDetector scans for sensitive data and exfiltration channels.
type DataEgressDetector struct{}

func NewDataEgressDetector() *DataEgressDetector {
	return &DataEgressDetector{}
}

func (d *DataEgressDetector) Name() string {
	return "data_egress"
}

func (d *DataEgressDetector) Detect(ctx context.Context, in *normalize.Input) (*engine.DetectionResult, error) {
	return scan(ctx, dataEgressRules, in), nil
}
