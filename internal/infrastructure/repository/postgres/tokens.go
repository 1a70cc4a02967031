package postgres

import (
	"strconv"
	"strings"
	"unicode"
)

// Japanese text carries no word boundaries, so CJK runs are indexed as
// overlapping character bigrams. Other letter/digit runs are indexed whole.

type scriptRun struct {
	text string
	cjk  bool
}

func isCJK(r rune) bool {
	return (r >= 0x3040 && r <= 0x309F) ||
		(r >= 0x30A0 && r <= 0x30FF) ||
		(r >= 0x4E00 && r <= 0x9FAF)
}

func splitRuns(text string) []scriptRun {
	var runs []scriptRun
	var current []rune
	currentCJK := false

	flush := func() {
		if len(current) > 0 {
			runs = append(runs, scriptRun{text: string(current), cjk: currentCJK})
			current = current[:0]
		}
	}

	for _, r := range text {
		switch {
		case isCJK(r):
			if !currentCJK {
				flush()
			}
			currentCJK = true
			current = append(current, r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if currentCJK {
				flush()
			}
			currentCJK = false
			current = append(current, unicode.ToLower(r))
		default:
			flush()
		}
	}
	flush()
	return runs
}

func runTokens(run scriptRun) []string {
	if !run.cjk {
		return []string{run.text}
	}
	runes := []rune(run.text)
	if len(runes) == 1 {
		return []string{run.text}
	}
	out := make([]string, 0, len(runes)-1)
	for i := 0; i+1 < len(runes); i++ {
		out = append(out, string(runes[i:i+2]))
	}
	return out
}

// maxLexemePosition is the largest position a tsvector can store.
const maxLexemePosition = 16383

// buildTSVector renders text as a tsvector literal with one position per
// token occurrence. Positions let both ts_rank variants weigh matches.
func buildTSVector(text string) string {
	positions := make(map[string][]string)
	order := make([]string, 0)
	pos := 0
	for _, run := range splitRuns(text) {
		for _, tok := range runTokens(run) {
			pos = min(pos+1, maxLexemePosition)
			if _, ok := positions[tok]; !ok {
				order = append(order, tok)
			}
			positions[tok] = append(positions[tok], strconv.Itoa(pos))
		}
	}
	parts := make([]string, 0, len(order))
	for _, tok := range order {
		parts = append(parts, "'"+tok+"':"+strings.Join(positions[tok], ","))
	}
	return strings.Join(parts, " ")
}

// buildTSQuery turns free text into a tsquery literal: tokens of one run must
// all match, any run may match. Tokens hold only letters and digits, so
// quoting cannot be broken.
func buildTSQuery(query string) string {
	seen := make(map[string]struct{})
	groups := make([]string, 0)
	for _, run := range splitRuns(query) {
		tokens := runTokens(run)
		quoted := make([]string, 0, len(tokens))
		for _, tok := range tokens {
			quoted = append(quoted, "'"+tok+"'")
		}
		group := strings.Join(quoted, " & ")
		if len(quoted) > 1 {
			group = "(" + group + ")"
		}
		if _, ok := seen[group]; ok {
			continue
		}
		seen[group] = struct{}{}
		groups = append(groups, group)
	}
	return strings.Join(groups, " | ")
}
