package businessflow

import "strings"

// FuzzyContains reports whether either canonical form contains the other.
// An empty canonical form never matches.
func FuzzyContains(a, b string) bool {
	ca, cb := Canonicalize(a), Canonicalize(b)
	if ca == "" || cb == "" {
		return false
	}
	return strings.Contains(ca, cb) || strings.Contains(cb, ca)
}

// CanonicalEqual reports whether a and b share a non-empty canonical form
func CanonicalEqual(a, b string) bool {
	ca := Canonicalize(a)
	return ca != "" && ca == Canonicalize(b)
}

// Jaccard returns |a ∩ b| / |a ∪ b|, 1 for two empty sets
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	intersection := 0
	for t := range a {
		if _, ok := b[t]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0.0
	}
	return float64(intersection) / float64(union)
}

// TextJaccard is Jaccard over the token sets of two labels
func TextJaccard(a, b string) float64 {
	return Jaccard(Tokenize(a), Tokenize(b))
}
