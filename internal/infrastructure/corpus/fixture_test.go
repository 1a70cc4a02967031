package corpus

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadFixtureResolvesDocumentFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "shuzei.txt", "第1条 目的。\n第2条 定義。")
	path := writeFile(t, dir, "fixture.yaml", `
chunks:
  - id: manual-1
    text: 販売業者は帳簿を備え付けなければならない。
    pref_label: 酒税法 第46条
documents:
  - id: shuzei
    pref_label: 酒税法
    path: shuzei.txt
relations:
  - source: 酒税
    target: 酒類
    target_label: Concept
    type: 分類
`)

	fx, err := LoadFixture(path)
	if err != nil {
		t.Fatalf("LoadFixture() error = %v", err)
	}
	if len(fx.Relations) != 1 || fx.Relations[0].Type != "分類" || fx.Relations[0].TargetLabel != "Concept" {
		t.Fatalf("unexpected relations %+v", fx.Relations)
	}

	chunks := fx.AllChunks(NewSplitter(600, 0))
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if chunks[0].ID != "manual-1" || chunks[1].ID != "shuzei-001" || chunks[2].PrefLabel != "酒税法 第2条" {
		t.Fatalf("unexpected chunks %+v", chunks)
	}
}

func TestLoadFixtureRejectsBinarySource(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "blob.bin", string([]byte{0xff, 0xfe, 0x00}))
	path := writeFile(t, dir, "fixture.yaml", "documents:\n  - id: blob\n    path: blob.bin\n")

	if _, err := LoadFixture(path); err == nil {
		t.Fatalf("expected error for non UTF-8 source")
	}
}

func TestLoadFixtureRequiresDocumentID(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "fixture.yaml", "documents:\n  - text: 本文\n")

	if _, err := LoadFixture(path); err == nil {
		t.Fatalf("expected error for missing document id")
	}
}
