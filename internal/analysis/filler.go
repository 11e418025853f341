package analysis

import (
	"slices"
	"strings"
	"unicode"
)

// fillers are the hesitation words and phrases counted against fluency.
var fillers = [][]string{
	{"um"}, {"uh"}, {"er"}, {"ah"}, {"like"},
	{"you", "know"}, {"i", "mean"}, {"sort", "of"}, {"kind", "of"},
	{"basically"}, {"actually"}, {"literally"},
	{"so", "yeah"}, {"i", "guess"},
}

func init() {
	// Longest phrases first so "you know" is not also counted as two words.
	slices.SortStableFunc(fillers, func(a, b []string) int { return len(b) - len(a) })
}

// words splits text into lowercase words with surrounding punctuation
// removed. Apostrophes inside words are kept.
func words(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\'' && r != '’'
	})
	out := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, "'’")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// countFillers returns the number of filler matches in ws and the count per
// filler phrase. Matches never overlap.
func countFillers(ws []string) (int, map[string]int) {
	total := 0
	per := make(map[string]int)
	for i := 0; i < len(ws); {
		n := matchFiller(ws[i:])
		if n == 0 {
			i++
			continue
		}
		per[strings.Join(ws[i:i+n], " ")]++
		total++
		i += n
	}
	return total, per
}

func matchFiller(ws []string) int {
	for _, f := range fillers {
		if len(f) <= len(ws) && slices.Equal(ws[:len(f)], f) {
			return len(f)
		}
	}
	return 0
}
