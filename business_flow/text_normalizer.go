package businessflow

import (
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// noiseWords carry no meaning when comparing package labels
var noiseWords = map[string]struct{}{
	"adult":   {},
	"junior":  {},
	"youth":   {},
	"plan":    {},
	"loyalty": {},
	"only":    {},
}

type tokenRewrite func(tokens []string) []string

// synonymRewrites run in this order on every pass
var synonymRewrites = []tokenRewrite{
	collapsePacks,
	collapsePerWeek,
	collapseMonthly,
	collapseSingle,
	dropNoiseWords,
}

// Canonicalize reduces a free-text label to a comparable form: lowercase,
// no diacritics, alphanumeric words separated by single spaces, with the
// package synonyms collapsed and qualifier words dropped.
func Canonicalize(text string) string {
	if text == "" {
		return ""
	}
	tokens := strings.Fields(alphanumericOnly(stripDiacritics(strings.ToLower(text))))
	// Dropping a word can bring two words of a phrase together, so rewrite to a fixed point.
	for {
		changed := false
		for _, rewrite := range synonymRewrites {
			next := rewrite(tokens)
			if !slices.Equal(next, tokens) {
				changed = true
			}
			tokens = next
		}
		if !changed {
			break
		}
	}
	return strings.Join(tokens, " ")
}

// Tokenize returns the set of words of the canonical form of text
func Tokenize(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range strings.Fields(Canonicalize(text)) {
		set[t] = struct{}{}
	}
	return set
}

func stripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func alphanumericOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return b.String()
}

func collapsePacks(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t == "packs" {
			t = "pack"
		}
		out = append(out, t)
	}
	return out
}

// collapsePerWeek turns "x per week", "times per week", "per week" and "x week" into "xweek"
func collapsePerWeek(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for i := 0; i < len(tokens); i++ {
		switch {
		case (tokens[i] == "x" || tokens[i] == "times") && at(tokens, i+1) == "per" && at(tokens, i+2) == "week":
			out = append(out, "xweek")
			i += 2
		case tokens[i] == "per" && at(tokens, i+1) == "week":
			out = append(out, "xweek")
			i++
		case tokens[i] == "x" && at(tokens, i+1) == "week":
			out = append(out, "xweek")
			i++
		default:
			out = append(out, tokens[i])
		}
	}
	return out
}

func collapseMonthly(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t == "month" || t == "months" {
			t = "monthly"
		}
		out = append(out, t)
	}
	return out
}

func collapseSingle(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for i := 0; i < len(tokens); i++ {
		switch {
		case tokens[i] == "single" && at(tokens, i+1) == "session":
			out = append(out, "single")
			i++
		case tokens[i] == "day" && at(tokens, i+1) == "pass":
			out = append(out, "single")
			i++
		case tokens[i] == "payg":
			out = append(out, "single")
		default:
			out = append(out, tokens[i])
		}
	}
	return out
}

func dropNoiseWords(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, noise := noiseWords[t]; noise {
			continue
		}
		out = append(out, t)
	}
	return out
}

func at(tokens []string, i int) string {
	if i < 0 || i >= len(tokens) {
		return ""
	}
	return tokens[i]
}
