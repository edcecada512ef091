package events

import "regexp"

// Redaction runs before any input text is persisted or logged. The
// stored preview exists for analyst triage, not for replaying the
// user's input, so the rules err toward over-redaction.
var (
	reEmail      = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	reRedactURL  = regexp.MustCompile(`https?://[^\s<>"']+`)
	reAssignment = regexp.MustCompile(`(?i)\b(password|passwd|token|secret|api[_\-]?key|key)\s*[=:]\s*\S+`)
	reLongToken  = regexp.MustCompile(`\b[A-Za-z0-9]{20,}\b`)
)

// Redact replaces emails, URLs, credential assignments, and long bare
// tokens with fixed placeholders.
func Redact(s string) string {
	s = reEmail.ReplaceAllString(s, "[EMAIL]")
	s = reRedactURL.ReplaceAllString(s, "[URL]")
	s = reAssignment.ReplaceAllString(s, "[REDACTED]")
	s = reLongToken.ReplaceAllString(s, "[TOKEN]")
	return s
}
