package engine

// PolicyConfig represents per-client detector configuration.
// Loaded from the clients table's detector_config JSONB column.
type PolicyConfig struct {
	Detectors map[string]DetectorPolicy `json:"detectors"`
}

// GetDetectorPolicy returns the policy for a detector by name.
// If the PolicyConfig is nil or the detector is missing, returns
// a zero-value DetectorPolicy (all nil fields → server defaults).
func (pc *PolicyConfig) GetDetectorPolicy(detectorName string) DetectorPolicy {
	if pc == nil || pc.Detectors == nil {
		return DetectorPolicy{}
	}
	return pc.Detectors[detectorName]
}

// DetectorPolicy controls behavior of a single detector for a client.
// All pointer fields use nil to mean "use server default".
type DetectorPolicy struct {
	Enabled             *bool    `json:"enabled"`              // nil = use server default (true)
	ConfidenceThreshold *float64 `json:"confidence_threshold"` // nil = use server default (0.5)
}

// IsEnabled returns whether the detector is enabled.
// A nil Enabled field defaults to true (all detectors on by default).
func (dp DetectorPolicy) IsEnabled() bool {
	if dp.Enabled == nil {
		return true
	}
	return *dp.Enabled
}

// EffectiveConfidenceThreshold returns the minimum confidence this
// detector's results need to count. A nil field falls back to the
// provided server default.
func (dp DetectorPolicy) EffectiveConfidenceThreshold(serverDefault float64) float64 {
	if dp.ConfidenceThreshold == nil {
		return serverDefault
	}
	return *dp.ConfidenceThreshold
}
