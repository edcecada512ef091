package engine

// DecisionConfig holds the thresholds for action determination.
type DecisionConfig struct {
	BlockThreshold float64 // maxConfidence >= this → BLOCK candidate (default 0.8)
	FlagThreshold  float64 // maxConfidence >= this but < BlockThreshold → FLAG (default 0.5)
}

// DefaultDecisionConfig returns the server-default thresholds.
func DefaultDecisionConfig() DecisionConfig {
	return DecisionConfig{
		BlockThreshold: 0.8,
		FlagThreshold:  0.5,
	}
}

// Aggregation collapses all detector results into the evidence the
// decision step works from.
type Aggregation struct {
	Patterns      []AttackPattern // deduplicated by pattern id, first occurrence wins
	Evidence      []string
	MaxConfidence float64 // highest confidence across attacking results
}

// Aggregate collects matched patterns and evidence from every attacking
// result. Pattern ids appear at most once; the first detector to report
// a pattern owns its entry.
func Aggregate(results []DetectionResult) Aggregation {
	var agg Aggregation
	seen := make(map[string]bool)

	for _, r := range results {
		if !r.IsAttack {
			continue
		}
		if r.Confidence > agg.MaxConfidence {
			agg.MaxConfidence = r.Confidence
		}
		agg.Evidence = append(agg.Evidence, r.Evidence...)
		for _, p := range r.MatchedPatterns {
			if seen[p.ID] {
				continue
			}
			seen[p.ID] = true
			agg.Patterns = append(agg.Patterns, p)
		}
	}
	return agg
}

// Decide applies the threshold rules to produce the final action.
//
// Rules (applied in order):
//  1. No matched patterns, or maxConfidence below the flag threshold → PASS
//  2. Any matched pattern demands BLOCK and maxConfidence >= block threshold → BLOCK
//  3. maxConfidence >= block threshold and any detector suggested BLOCK → BLOCK
//  4. maxConfidence >= flag threshold → FLAG
func Decide(agg Aggregation, results []DetectionResult, cfg DecisionConfig) Action {
	if len(agg.Patterns) == 0 || agg.MaxConfidence < cfg.FlagThreshold {
		return ActionPass
	}

	if agg.MaxConfidence >= cfg.BlockThreshold {
		for _, p := range agg.Patterns {
			if p.ResponseAction == ActionBlock {
				return ActionBlock
			}
		}
		for _, r := range results {
			if r.IsAttack && r.SuggestedAction == ActionBlock {
				return ActionBlock
			}
		}
	}

	return ActionFlag
}

// OverallConfidence blends per-detector confidences into one score.
// Each attacking result contributes its confidence scaled by the
// detector's importance weight; the blend never drops below 80% of the
// single strongest signal, and never exceeds 1.
func OverallConfidence(results []DetectionResult, maxConfidence float64) float64 {
	var weightedSum, totalWeight float64
	for _, r := range results {
		if !r.IsAttack {
			continue
		}
		w := detectorWeight(r.DetectorName)
		weightedSum += r.Confidence * w
		totalWeight += w
	}
	if totalWeight == 0 {
		return 0
	}

	overall := weightedSum / totalWeight
	if floor := maxConfidence * 0.8; floor > overall {
		overall = floor
	}
	if overall > 1 {
		overall = 1
	}
	return overall
}
