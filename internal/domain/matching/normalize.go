// Package matching provides the normalization and similarity functions used
// to compare directory records. All functions are total: malformed input
// yields an empty string or a zero score, never an error.
package matching

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// addressStopwords are street-type tokens dropped from address keys.
var addressStopwords = map[string]struct{}{
	"st":        {},
	"street":    {},
	"ave":       {},
	"avenue":    {},
	"rd":        {},
	"road":      {},
	"blvd":      {},
	"boulevard": {},
	"ln":        {},
	"lane":      {},
	"dr":        {},
	"drive":     {},
}

// lower lower-cases s with Unicode-aware rules. Casers are not safe for
// concurrent use, so one is created per call.
func lower(s string) string {
	return cases.Lower(language.Und).String(s)
}

// NormalizeText lower-cases s, removes everything that is not a letter,
// digit or whitespace, collapses whitespace runs to one space and trims.
func NormalizeText(s string) string {
	if s == "" {
		return ""
	}
	s = lower(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// NormalizePhone keeps only digits; when ten or more remain it returns the
// last ten, which drops country prefixes such as a leading 1.
func NormalizePhone(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) >= 10 {
		return digits[len(digits)-10:]
	}
	return digits
}

// NormalizeAddress normalizes s as text and drops street-type tokens.
func NormalizeAddress(s string) string {
	tokens := strings.Fields(NormalizeText(s))
	kept := tokens[:0]
	for _, t := range tokens {
		if _, stop := addressStopwords[t]; stop {
			continue
		}
		kept = append(kept, t)
	}
	return strings.Join(kept, " ")
}

// NormalizeWebsite lower-cases and trims s, then strips one scheme prefix
// and one leading "www.".
func NormalizeWebsite(s string) string {
	s = strings.TrimSpace(lower(s))
	if rest, ok := strings.CutPrefix(s, "https://"); ok {
		s = rest
	} else if rest, ok := strings.CutPrefix(s, "http://"); ok {
		s = rest
	}
	s = strings.TrimPrefix(s, "www.")
	return s
}

// NormalizeEmail lower-cases and trims s.
func NormalizeEmail(s string) string {
	return strings.TrimSpace(lower(s))
}

// NormalizeState trims and upper-cases a state code.
func NormalizeState(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// AddressKey builds the composite address key. It returns "" unless the
// street line, city and state are all non-empty after normalization.
func AddressKey(address1, city, state string) string {
	addr := NormalizeAddress(address1)
	c := NormalizeText(city)
	st := NormalizeState(state)
	if addr == "" || c == "" || st == "" {
		return ""
	}
	return addr + "|" + c + "|" + st
}

// FirstToken returns the first whitespace-separated token of a normalized string.
func FirstToken(normalized string) string {
	if i := strings.IndexByte(normalized, ' '); i >= 0 {
		return normalized[:i]
	}
	return normalized
}
