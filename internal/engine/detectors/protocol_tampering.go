package detectors

import (
	"context"

	"github.com/rampart-ai/rampart/internal/engine"
	"github.com/rampart-ai/rampart/internal/normalize"
)

// Pre-compiled protocol tampering patterns — jailbreak templates,
// restriction-removal framings, and encoding tricks.
var protocolTamperingRules = []rule{
	// DAN (Do Anything Now) variants
	newRule("pt-001", "protocol_tampering", "DAN jailbreak: Do Anything Now",
		engine.SeverityCritical, engine.ActionBlock, 0.95,
		`(?i)\bDAN\b.*\bdo\s+anything\s+now\b`),
	newRule("pt-002", "protocol_tampering", "DAN jailbreak: DAN mode",
		engine.SeverityCritical, engine.ActionBlock, 0.95,
		`(?i)(you\s+are\s+DAN|DAN\s+mode\s+(enabled|activated|on)|enable\s+DAN\s+mode)`),

	// Developer / debug mode jailbreaks
	newRule("pt-003", "protocol_tampering", "mode jailbreak: developer/debug mode",
		engine.SeverityHigh, engine.ActionBlock, 0.90,
		`(?i)(enter\s+(developer|debug|maintenance|god|sudo)\s+mode|(developer|debug|maintenance|god|sudo)\s+mode\s+(enabled|activated|on))`),
	newRule("pt-004", "protocol_tampering", "jailbreak: unlock restrictions",
		engine.SeverityHigh, engine.ActionBlock, 0.85,
		`(?i)unlock\s+(all\s+)?(restrictions|capabilities|limitations)`),

	// Roleplay-based jailbreaks
	newRule("pt-005", "protocol_tampering", "roleplay jailbreak: unfiltered character",
		engine.SeverityHigh, engine.ActionBlock, 0.90,
		`(?i)roleplay\s+as\s+(an?\s+)?(evil|unfiltered|unrestricted|uncensored)`),
	newRule("pt-006", "protocol_tampering", "jailbreak: no restrictions claim",
		engine.SeverityHigh, engine.ActionBlock, 0.90,
		`(?i)you\s+have\s+no\s+(restrictions|rules|limitations|guidelines|filters)`),
	newRule("pt-007", "protocol_tampering", "jailbreak: without ethical guidelines",
		engine.SeverityHigh, engine.ActionFlag, 0.85,
		`(?i)without\s+(any\s+)?(ethical|moral|safety)\s+(guidelines|restrictions|constraints|considerations)`),

	// Encoding tricks
	newRule("pt-008", "protocol_tampering", "encoding trick: encoded response demand",
		engine.SeverityMedium, engine.ActionFlag, 0.80,
		`(?i)(respond\s+(only\s+)?in|encode\s+(your\s+)?(response|answer|output)\s+in)\s+(base64|hex|rot13|binary|morse)`),

	// Hypothetical / fictional framing
	newRule("pt-009", "protocol_tampering", "fictional framing: world without rules",
		engine.SeverityMedium, engine.ActionFlag, 0.80,
		`(?i)in\s+a\s+(hypothetical|fictional)\s+(world|scenario|universe)\s+where\s+(there\s+are\s+)?no\s+(rules|restrictions|laws)`),

	// Explicit jailbreak keywords
	newRule("pt-010", "protocol_tampering", "explicit jailbreak keyword",
		engine.SeverityMedium, engine.ActionFlag, 0.75,
		`(?i)\bjailbreak\b`),
	newRule("pt-011", "protocol_tampering", "jailbreak: uncensored mode",
		engine.SeverityHigh, engine.ActionBlock, 0.90,
		`(?i)\buncensored\s+mode\b`),
}

// Synthetic patterns for obfuscation signals reported by the normalizer.
// These have no regex; they are attached when the signal fires.
var (
	obfuscationEncodedPattern = engine.AttackPattern{
		ID:             "pt-020",
		Category:       "protocol_tampering",
		Name:           "obfuscation: encoded attack payload",
		Severity:       engine.SeverityHigh,
		ResponseAction: engine.ActionFlag,
	}
	obfuscationHomoglyphPattern = engine.AttackPattern{
		ID:             "pt-021",
		Category:       "protocol_tampering",
		Name:           "obfuscation: invisible characters with homoglyphs",
		Severity:       engine.SeverityMedium,
		ResponseAction: engine.ActionFlag,
	}
)

// ProtocolTamperingDetector scans for jailbreak templates and for
// obfuscation of the input itself.
type ProtocolTamperingDetector struct{}

func NewProtocolTamperingDetector() *ProtocolTamperingDetector {
	return &ProtocolTamperingDetector{}
}

func (d *ProtocolTamperingDetector) Name() string {
	return "protocol_tampering"
}

func (d *ProtocolTamperingDetector) Detect(ctx context.Context, in *normalize.Input) (*engine.DetectionResult, error) {
	res := scan(ctx, protocolTamperingRules, in)

	// An encoded payload that decodes into attack content has already
	// matched above via the decoded fragments; record the obfuscation as
	// its own signal so the combination scores higher than either alone.
	if res.IsAttack && len(in.DetectedEncodings) > 0 {
		res.MatchedPatterns = append(res.MatchedPatterns, obfuscationEncodedPattern)
		res.Evidence = append(res.Evidence, "attack content arrived encoded")
		if res.Confidence < 0.90 {
			res.Confidence = 0.90
		}
	}

	// Zero-width characters combined with homoglyph substitution is a
	// deliberate evasion even when no pattern matched.
	if in.ZeroWidthRemoved && in.ConfusablesNormalized {
		res.MatchedPatterns = append(res.MatchedPatterns, obfuscationHomoglyphPattern)
		res.Evidence = append(res.Evidence, "invisible characters and look-alike substitution present")
		if res.Confidence < 0.70 {
			res.Confidence = 0.70
		}
		if res.SuggestedAction < engine.ActionFlag {
			res.SuggestedAction = engine.ActionFlag
		}
		res.IsAttack = true
	}

	return res, nil
}
