package corpus

import (
	"regexp"
	"strings"
)

var articleHeading = regexp.MustCompile(`(?m)^[ \t　]*(第[0-9０-９一二三四五六七八九十百千]+条(?:の[0-9０-９一二三四五六七八九十]+)?)`)

// Section is one retrievable unit of a regulation with its display label.
type Section struct {
	Label string
	Text  string
}

type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 600
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

// SplitArticles cuts regulation text at article headings (第N条) and labels
// each piece "<regulation> <heading>". Articles longer than ChunkSize are
// windowed. Text before the first heading, or text without headings, keeps
// the bare regulation label.
func (s *Splitter) SplitArticles(regulation, text string) []Section {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	locs := articleHeading.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return s.windowed(regulation, text)
	}

	out := make([]Section, 0, len(locs)+1)
	if preamble := strings.TrimSpace(text[:locs[0][0]]); preamble != "" {
		out = append(out, s.windowed(regulation, preamble)...)
	}
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		heading := text[loc[2]:loc[3]]
		label := strings.TrimSpace(regulation + " " + heading)
		out = append(out, s.windowed(label, text[loc[0]:end])...)
	}
	return out
}

func (s *Splitter) windowed(label, text string) []Section {
	pieces := s.Split(text)
	out := make([]Section, 0, len(pieces))
	for _, piece := range pieces {
		out = append(out, Section{Label: label, Text: piece})
	}
	return out
}

// Split windows text by runes with the configured overlap.
func (s *Splitter) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := s.ChunkSize - s.Overlap
	if step <= 0 {
		step = s.ChunkSize
	}

	out := make([]string, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := min(start+s.ChunkSize, len(runes))
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			out = append(out, chunk)
		}
		if end == len(runes) {
			break
		}
	}
	return out
}
