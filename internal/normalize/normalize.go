package normalize

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Encoding identifies an obfuscation encoding found in the input.
type Encoding string

const (
	EncodingBase64 Encoding = "base64"
	EncodingURL    Encoding = "urlEncoding"
)

// Stats holds length statistics computed on the original (pre-normalization) text.
type Stats struct {
	Chars      int
	Words      int
	Lines      int
	NonASCII   int
	Whitespace int
}

// Input is the canonical form of a raw text plus surface obfuscation signals.
// Immutable once produced; one Input per validation request.
type Input struct {
	OriginalText          string
	NormalizedText        string
	DecodedFragments      []string
	ExtractedURLs         []string
	DetectedEncodings     []Encoding
	Language              string
	Stats                 Stats
	ZeroWidthRemoved      bool
	ConfusablesNormalized bool
}

// Normalizer turns raw text into an Input. It never fails: any internal
// error degrades to an Input whose NormalizedText equals the original text
// with empty diagnostics, so detection always gets something to run on.
type Normalizer struct {
	linkKeywords []string
}

// New creates a Normalizer. linkKeywords overrides the suspicious-link
// keyword list; nil keeps the package defaults.
func New(linkKeywords []string) *Normalizer {
	if linkKeywords == nil {
		linkKeywords = defaultLinkKeywords
	}
	return &Normalizer{linkKeywords: linkKeywords}
}

// Invisible separator code points stripped during normalization.
var zeroWidthRunes = map[rune]bool{
	'\u200B': true, // zero-width space
	'\u200C': true, // zero-width non-joiner
	'\u200D': true, // zero-width joiner
	'\u2060': true, // word joiner
	'\uFEFF': true, // BOM / zero-width no-break space
	'\u180E': true, // Mongolian vowel separator
}

// Normalize runs the full normalization pipeline.
func (n *Normalizer) Normalize(text string) (input *Input) {
	defer func() {
		if r := recover(); r != nil {
			// Preprocessing must never block detection from running.
			input = &Input{
				OriginalText:   text,
				NormalizedText: text,
				Language:       "unknown",
			}
		}
	}()

	input = &Input{OriginalText: text}

	// 1. Compose to NFC so equivalent sequences compare equal.
	s := norm.NFC.String(text)

	// 2. Strip invisible separators.
	stripped := strings.Map(func(r rune) rune {
		if zeroWidthRunes[r] {
			return -1
		}
		return r
	}, s)
	input.ZeroWidthRemoved = stripped != s
	s = stripped

	// 3. Fold confusable look-alikes to ASCII.
	folded := foldConfusables(s)
	input.ConfusablesNormalized = folded != s
	s = folded

	input.NormalizedText = s

	// 4–5. Encoded payloads become decoded fragments, never substituted into
	// the normalized text.
	if fragments := decodeBase64Runs(s); len(fragments) > 0 {
		input.DecodedFragments = append(input.DecodedFragments, fragments...)
		input.DetectedEncodings = append(input.DetectedEncodings, EncodingBase64)
	}
	if decoded, ok := decodePercentEncoding(s); ok {
		input.DecodedFragments = append(input.DecodedFragments, decoded)
		input.DetectedEncodings = append(input.DetectedEncodings, EncodingURL)
	}

	// 6. URLs.
	input.ExtractedURLs = extractURLs(s)

	// 7. Markdown links whose targets look like exfiltration attempts.
	for _, link := range extractMarkdownLinks(s) {
		if isSuspiciousLink(link.URL, n.linkKeywords) {
			input.DecodedFragments = append(input.DecodedFragments,
				"suspicious link: ["+link.Text+"]("+link.URL+")")
		}
	}

	// 8. HTML comments are hidden content.
	for _, comment := range extractHTMLComments(s) {
		input.DecodedFragments = append(input.DecodedFragments, "hidden comment: "+comment)
	}

	// 9. Coarse script classification.
	input.Language = classifyLanguage(s)

	// 10. Length statistics always reflect the original text.
	input.Stats = computeStats(text)

	return input
}

// Confusable code points folded to their ASCII equivalents. Covers the
// Cyrillic/Greek/mathematical-alphanumeric look-alikes and stylized
// small-caps sequences seen in real obfuscation attempts.
var confusables = map[rune]rune{
	// Cyrillic lowercase
	'а': 'a', 'е': 'e', 'і': 'i', 'о': 'o', 'р': 'p', 'с': 'c', 'у': 'y', 'х': 'x',
	// Cyrillic uppercase
	'А': 'A', 'В': 'B', 'С': 'C', 'Е': 'E', 'Н': 'H', 'І': 'I', 'К': 'K',
	'М': 'M', 'О': 'O', 'Р': 'P', 'Т': 'T', 'Х': 'X',
	// Greek
	'α': 'a', 'β': 'b', 'ε': 'e', 'η': 'n', 'ι': 'i', 'κ': 'k', 'ν': 'v',
	'ο': 'o', 'ρ': 'p', 'τ': 't', 'υ': 'u', 'χ': 'x',
	// Mathematical alphanumeric (bold/italic lowercase start ranges handled below)
	'𝐚': 'a', '𝐛': 'b', '𝐜': 'c', '𝐝': 'd', '𝐞': 'e', '𝐟': 'f', '𝐠': 'g',
	'𝑎': 'a', '𝑏': 'b', '𝑐': 'c', '𝑑': 'd', '𝑒': 'e', '𝑓': 'f', '𝑔': 'g',
	'ℓ': 'l',
	// Small caps
	'ᴀ': 'a', 'ʙ': 'b', 'ᴄ': 'c', 'ᴅ': 'd', 'ᴇ': 'e', 'ꜰ': 'f', 'ɢ': 'g',
	'ʜ': 'h', 'ɪ': 'i', 'ᴊ': 'j', 'ᴋ': 'k', 'ʟ': 'l', 'ᴍ': 'm', 'ɴ': 'n',
	'ᴏ': 'o', 'ᴘ': 'p', 'ʀ': 'r', 'ꜱ': 's', 'ᴛ': 't', 'ᴜ': 'u', 'ᴠ': 'v',
	'ᴡ': 'w', 'ʏ': 'y', 'ᴢ': 'z',
	// Fullwidth digits and letters
	'０': '0', '１': '1', '２': '2', '３': '3', '４': '4',
	'５': '5', '６': '6', '７': '7', '８': '8', '９': '9',
	'Ａ': 'A', 'Ｂ': 'B', 'Ｃ': 'C', 'Ｄ': 'D', 'Ｅ': 'E',
	'Ｆ': 'F', 'Ｇ': 'G', 'Ｈ': 'H', 'Ｉ': 'I', 'Ｊ': 'J',
}

func foldConfusables(s string) string {
	return strings.Map(func(r rune) rune {
		if mapped, ok := confusables[r]; ok {
			return mapped
		}
		// Mathematical alphanumeric letters map onto plain ASCII by offset.
		switch {
		case r >= '\U0001D400' && r <= '\U0001D419': // bold uppercase
			return 'A' + (r - '\U0001D400')
		case r >= '\U0001D41A' && r <= '\U0001D433': // bold lowercase
			return 'a' + (r - '\U0001D41A')
		case r >= '\U0001D5EE' && r <= '\U0001D607': // sans-serif bold lowercase
			return 'a' + (r - '\U0001D5EE')
		}
		return r
	}, s)
}
