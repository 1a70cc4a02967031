package usecase

import (
	"strings"
	"unicode"
)

const maxExtractedTerms = 5

// priorityTerms are domain entities that always lead the extracted term list
// when they occur anywhere in the query.
var priorityTerms = []string{"ビール", "酒税", "新酒税法", "製造免許", "販売業免許", "酒類製造免許"}

var stopWords = map[string]struct{}{
	"の": {}, "は": {}, "が": {}, "を": {}, "に": {}, "で": {}, "と": {},
	"から": {}, "まで": {}, "です": {}, "である": {}, "だ": {}, "何": {}, "か": {},
	"について": {}, "教えて": {}, "ください": {}, "ます": {}, "必要": {}, "な": {}, "ついて": {},
}

// extractQueryTerms returns up to five graph lookup terms for query, priority
// entities first, in first-seen order.
func extractQueryTerms(query string) []string {
	out := make([]string, 0, maxExtractedTerms)
	seen := make(map[string]struct{})
	add := func(term string) {
		if _, ok := seen[term]; ok {
			return
		}
		seen[term] = struct{}{}
		out = append(out, term)
	}

	for _, term := range priorityTerms {
		if strings.Contains(query, term) {
			add(term)
		}
	}
	for _, token := range segmentByScript(query) {
		if isNoiseToken(token) {
			continue
		}
		add(token)
	}

	if len(out) > maxExtractedTerms {
		out = out[:maxExtractedTerms]
	}
	return out
}

func isNoiseToken(token string) bool {
	if _, ok := stopWords[token]; ok {
		return true
	}
	if len([]rune(token)) <= 1 {
		return true
	}
	for _, r := range token {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// segmentByScript splits s into maximal runs of Japanese script and maximal
// runs of other letters/digits. Whitespace and punctuation separate tokens.
func segmentByScript(s string) []string {
	if s == "" {
		return nil
	}

	tokens := make([]string, 0, 8)
	var b strings.Builder
	runCJK := false
	flush := func() {
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}

	for _, r := range s {
		switch {
		case isJapaneseRune(r):
			if !runCJK {
				flush()
			}
			runCJK = true
			b.WriteRune(r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if runCJK {
				flush()
			}
			runCJK = false
			b.WriteRune(r)
		default:
			flush()
			runCJK = false
		}
	}
	flush()
	return tokens
}

// isJapaneseRune covers Hiragana, Katakana and the CJK unified ideographs block.
func isJapaneseRune(r rune) bool {
	return (r >= 0x3040 && r <= 0x309F) ||
		(r >= 0x30A0 && r <= 0x30FF) ||
		(r >= 0x4E00 && r <= 0x9FAF)
}
