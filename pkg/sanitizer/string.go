package sanitizer

import (
	"regexp"
	"strings"
	"unicode"
)

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

var reNotCodeChar = regexp.MustCompile(`[^A-Z0-9-]+`)

func TrimAndNormalize(s string) string {
	s = strings.TrimSpace(s)

	if s == "" {
		return ""
	}

	var result strings.Builder
	var lastWasSpace bool

	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				result.WriteRune(' ')
				lastWasSpace = true
			}
		} else {
			result.WriteRune(r)
			lastWasSpace = false
		}
	}

	return result.String()
}

// NormalizeDisplayName is used for parking names, addresses and spot names.
func NormalizeDisplayName(s string) string {
	return TrimAndNormalize(s)
}

// NormalizeParkingCode upper-cases a join code and drops anything that cannot appear in one.
func NormalizeParkingCode(s string) string {
	p := Pipeline{
		strings.TrimSpace,
		strings.ToUpper,
		func(s string) string { return reNotCodeChar.ReplaceAllString(s, "") },
	}
	return p.Apply(s)
}

func NormalizeUserID(s string) string {
	return strings.TrimSpace(s)
}
