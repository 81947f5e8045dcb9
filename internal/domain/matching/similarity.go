package matching

import (
	"github.com/pmezard/go-difflib/difflib"
)

// Similarity returns a Ratcliff/Obershelp ratio in [0,1] between two
// normalized strings: 2*M/T where M is the number of matched characters and
// T the combined length. Either input being empty yields 0.
//
// The matcher is not symmetric for every input, so the operands are put in
// a canonical order first.
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	if b < a {
		a, b = b, a
	}
	m := difflib.NewMatcher(splitRunes(a), splitRunes(b))
	return m.Ratio()
}

// splitRunes turns s into a sequence of single-character strings.
func splitRunes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
