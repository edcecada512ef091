package engine

import "regexp"

// Action represents the final enforcement decision for a validation request.
type Action int

const (
	ActionPass Action = iota + 1
	ActionFlag
	ActionBlock
)

// String returns the lowercase action name.
func (a Action) String() string {
	switch a {
	case ActionPass:
		return "pass"
	case ActionFlag:
		return "flag"
	case ActionBlock:
		return "block"
	default:
		return "unspecified"
	}
}

// Severity ranks how serious a detected pattern is. It drives alerting
// and the progressive response escalation weights.
type Severity int

const (
	SeverityLow Severity = iota + 1
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// String returns the uppercase severity name (used for event storage).
func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNSPECIFIED"
	}
}

// Weight returns the escalation weight a detection of this severity
// contributes to a session's progressive response score.
func (s Severity) Weight() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 5
	default:
		return 1
	}
}

// AttackPattern is one rule a detector matches against input. Patterns are
// static data compiled at startup; the Regexp field is never mutated after.
type AttackPattern struct {
	ID             string
	Category       string
	Name           string
	Description    string
	Severity       Severity
	ResponseAction Action
	Regexp         *regexp.Regexp
}

// DetectionResult is the output from a single detector run.
type DetectionResult struct {
	DetectorName    string
	IsAttack        bool
	Confidence      float64 // 0.0 – 1.0
	MatchedPatterns []AttackPattern
	Evidence        []string
	SuggestedAction Action
}

// SecurityDecision is the aggregate outcome returned to the caller.
type SecurityDecision struct {
	Action           Action
	Confidence       float64
	DetectedAttacks  []AttackPattern
	SanitizedInput   string // set only for FLAG when a useful sanitization exists
	UserMessage      string
	TechnicalDetails string
	DetectionResults []DetectionResult
	Guidance         *GuidanceMessage
}

// GuidanceMessage is educational feedback attached to FLAG and BLOCK
// decisions when user guidance is enabled.
type GuidanceMessage struct {
	Title       string
	Content     string
	ActionItems []string
	AppealInfo  string
}
