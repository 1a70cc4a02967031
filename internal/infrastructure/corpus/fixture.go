package corpus

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/regulation-hybrid-search/internal/core/domain"
)

// Fixture is the seed format: ready-made chunks, whole regulations to split,
// and graph relations.
type Fixture struct {
	Chunks    []domain.RegulationChunk `yaml:"chunks"`
	Documents []Document               `yaml:"documents"`
	Relations []domain.Relation        `yaml:"relations"`
}

// Document is a full regulation given inline or as a UTF-8 text file path
// relative to the fixture.
type Document struct {
	ID        string `yaml:"id"`
	PrefLabel string `yaml:"pref_label"`
	Text      string `yaml:"text"`
	Path      string `yaml:"path"`
}

func LoadFixture(path string) (*Fixture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}

	var fx Fixture
	if err := yaml.Unmarshal(raw, &fx); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}

	baseDir := filepath.Dir(path)
	for i := range fx.Documents {
		doc := &fx.Documents[i]
		if strings.TrimSpace(doc.ID) == "" {
			return nil, domain.WrapError(domain.ErrInvalidInput, "load fixture", fmt.Errorf("document %d has no id", i))
		}
		if doc.Text != "" || doc.Path == "" {
			continue
		}
		text, err := readText(filepath.Join(baseDir, doc.Path))
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", doc.ID, err)
		}
		doc.Text = text
	}
	return &fx, nil
}

// AllChunks returns the fixture chunks followed by the split documents.
// Split chunk ids are "<document id>-<n>" with n starting at 1.
func (f *Fixture) AllChunks(s *Splitter) []domain.RegulationChunk {
	out := make([]domain.RegulationChunk, 0, len(f.Chunks))
	out = append(out, f.Chunks...)
	for _, doc := range f.Documents {
		for i, section := range s.SplitArticles(doc.PrefLabel, doc.Text) {
			out = append(out, domain.RegulationChunk{
				ID:        fmt.Sprintf("%s-%03d", doc.ID, i+1),
				Text:      section.Text,
				PrefLabel: section.Label,
			})
		}
	}
	return out
}

func readText(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read source text: %w", err)
	}
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("source is not UTF-8 text: %s", path)
	}
	return strings.TrimSpace(string(raw)), nil
}
