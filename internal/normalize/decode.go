package normalize

import (
	"encoding/base64"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Pre-compiled patterns — compiled once at startup, never during a request.
var (
	reBase64        = regexp.MustCompile(`[A-Za-z0-9+/]{8,}={0,2}`)
	rePercent       = regexp.MustCompile(`%[0-9A-Fa-f]{2}`)
	reURL           = regexp.MustCompile(`(?i)\b(?:https?://|ftp://|www\.)[^\s<>"')\]]+`)
	reMarkdownLink  = regexp.MustCompile(`\[([^\]]*)\]\(([^)\s]+)\)`)
	reHTMLComment   = regexp.MustCompile(`(?s)<!--(.*?)-->`)
	reTemplateVars  = []*regexp.Regexp{
		regexp.MustCompile(`\{\{[^}]*\}\}`),
		regexp.MustCompile(`\$\{[^}]*\}`),
		regexp.MustCompile(`%[A-Z_][A-Z0-9_]*%`),
	}
)

// defaultLinkKeywords mark a markdown link target as suspicious when they
// appear anywhere in the URL. Configurable data, not hard-coded logic.
var defaultLinkKeywords = []string{
	"system_prompt", "config", "env", "secret", "key", "token",
	"password", "credential", "api_key", "private", "internal",
}

// decodeBase64Runs finds base64-looking runs, strictly decodes them, and
// keeps only decodings that still contain at least one letter after a
// best-effort UTF-8 cleanup. Binary noise never becomes a fragment.
func decodeBase64Runs(s string) []string {
	var fragments []string
	for _, match := range reBase64.FindAllString(s, -1) {
		decoded, err := base64.StdEncoding.DecodeString(match)
		if err != nil {
			decoded, err = base64.RawStdEncoding.DecodeString(match)
			if err != nil {
				continue
			}
		}
		text := strings.ToValidUTF8(string(decoded), "")
		if containsLetter(text) {
			fragments = append(fragments, text)
		}
	}
	return fragments
}

// decodePercentEncoding percent-decodes the whole string when any %XX
// sequence is present. Invalid sequences are left as-is (best effort).
func decodePercentEncoding(s string) (string, bool) {
	if !rePercent.MatchString(s) {
		return "", false
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		if s[i] == '%' && i+2 < len(s) {
			hi, okHi := hexVal(s[i+1])
			lo, okLo := hexVal(s[i+2])
			if okHi && okLo {
				b.WriteByte(hi<<4 | lo)
				i += 3
				continue
			}
		}
		b.WriteByte(s[i])
		i++
	}
	return strings.ToValidUTF8(b.String(), ""), true
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

func extractURLs(s string) []string {
	return reURL.FindAllString(s, -1)
}

// markdownLink is one [text](url) occurrence.
type markdownLink struct {
	Text string
	URL  string
}

func extractMarkdownLinks(s string) []markdownLink {
	var links []markdownLink
	for _, m := range reMarkdownLink.FindAllStringSubmatch(s, -1) {
		links = append(links, markdownLink{Text: m[1], URL: m[2]})
	}
	return links
}

// isSuspiciousLink flags URLs that reference sensitive resources or carry a
// template-variable placeholder that could smuggle data out at render time.
func isSuspiciousLink(url string, keywords []string) bool {
	lower := strings.ToLower(url)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	for _, re := range reTemplateVars {
		if re.MatchString(url) {
			return true
		}
	}
	return false
}

func extractHTMLComments(s string) []string {
	var comments []string
	for _, m := range reHTMLComment.FindAllStringSubmatch(s, -1) {
		if trimmed := strings.TrimSpace(m[1]); trimmed != "" {
			comments = append(comments, trimmed)
		}
	}
	return comments
}

func containsLetter(s string) bool {
	for _, r := range s {
		if r != utf8.RuneError && unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
