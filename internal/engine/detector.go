package engine

import (
	"context"

	"github.com/rampart-ai/rampart/internal/normalize"
)

// DefaultConfidenceThreshold is the minimum confidence a detector result
// needs before it participates in the decision, unless overridden per
// detector by policy or server config.
const DefaultConfidenceThreshold = 0.5

// Detector is the interface every security detector must implement.
// Implementations must respect context deadlines and return quickly;
// the orchestrator treats a slow detector as timed out and moves on.
type Detector interface {
	// Name returns the detector's unique identifier (e.g., "prompt_injection").
	Name() string

	// Detect runs the detection logic against a normalized input.
	Detect(ctx context.Context, in *normalize.Input) (*DetectionResult, error)
}

// detectorWeights skew each detector's contribution to the overall
// confidence. Detectors with low false-positive rates weigh above 1.
var detectorWeights = map[string]float64{
	"data_egress":        1.2,
	"business_logic":     1.2,
	"scope":              0.8,
	"protocol_tampering": 0.9,
	"multilingual":       0.9,
}

func detectorWeight(name string) float64 {
	if w, ok := detectorWeights[name]; ok {
		return w
	}
	return 1.0
}
