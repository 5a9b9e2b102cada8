package contexts

import (
	"regexp"
	"strings"
	"unicode"
)

// placeholderName stands in for display names that normalize to nothing, so
// a context can never resolve to the registry root.
const placeholderName = "context"

// underscoreRuns matches one or more underscores.
var underscoreRuns = regexp.MustCompile(`_+`)

// NormalizeName derives a context's directory name from its display name:
// 1. Trim and lowercase
// 2. Whitespace, '-' and '.' become '_'
// 3. Any other rune that is not a letter, digit or '_' is dropped
// 4. Runs of '_' collapse; leading/trailing '_' are trimmed
//
// The result is always a single non-empty path segment.
func NormalizeName(display string) string {
	s := strings.ToLower(strings.TrimSpace(display))

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsSpace(r) || r == '-' || r == '.':
			b.WriteRune('_')
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			b.WriteRune(r)
		}
	}

	s = underscoreRuns.ReplaceAllString(b.String(), "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return placeholderName
	}
	return s
}
