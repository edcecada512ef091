// Package detectors holds the concrete pattern-based security detectors
// registered with the orchestrator. Each detector owns a static table of
// attack patterns compiled once at startup, and scans both the normalized
// text and every decoded fragment so encoded payloads cannot hide.
package detectors

import (
	"context"
	"regexp"

	"github.com/rampart-ai/rampart/internal/engine"
	"github.com/rampart-ai/rampart/internal/normalize"
)

// All returns one instance of every built-in detector, in the order
// they are registered with the orchestrator.
func All() []engine.Detector {
	return []engine.Detector{
		NewPromptInjectionDetector(),
		NewDataEgressDetector(),
		NewProtocolTamperingDetector(),
		NewScopeDetector(),
		NewMultilingualDetector(),
		NewBusinessLogicDetector(),
	}
}

// rule pairs an attack pattern with the confidence a match asserts.
type rule struct {
	pattern    engine.AttackPattern
	confidence float64
}

func newRule(id, category, name string, sev engine.Severity, action engine.Action, confidence float64, expr string) rule {
	return rule{
		pattern: engine.AttackPattern{
			ID:             id,
			Category:       category,
			Name:           name,
			Severity:       sev,
			ResponseAction: action,
			Regexp:         regexp.MustCompile(expr),
		},
		confidence: confidence,
	}
}

// scan matches every rule against the normalized text and all decoded
// fragments. Each pattern id appears at most once in the result; the
// result's confidence is the strongest single match and the suggested
// action is the strongest matched pattern's response action.
func scan(ctx context.Context, rules []rule, in *normalize.Input) *engine.DetectionResult {
	res := &engine.DetectionResult{SuggestedAction: engine.ActionPass}
	matched := make(map[string]bool)

	check := func(text, where string) {
		for _, r := range rules {
			if ctx.Err() != nil {
				return
			}
			if matched[r.pattern.ID] || !r.pattern.Regexp.MatchString(text) {
				continue
			}
			matched[r.pattern.ID] = true
			res.MatchedPatterns = append(res.MatchedPatterns, r.pattern)
			res.Evidence = append(res.Evidence, r.pattern.Name+" ("+where+")")
			if r.confidence > res.Confidence {
				res.Confidence = r.confidence
			}
			if r.pattern.ResponseAction > res.SuggestedAction {
				res.SuggestedAction = r.pattern.ResponseAction
			}
		}
	}

	check(in.NormalizedText, "input")
	for _, frag := range in.DecodedFragments {
		check(frag, "decoded fragment")
	}

	res.IsAttack = len(res.MatchedPatterns) > 0
	return res
}
