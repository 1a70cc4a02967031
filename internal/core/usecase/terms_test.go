package usecase

import (
	"reflect"
	"testing"
)

func TestExtractQueryTermsPutsPriorityEntitiesFirst(t *testing.T) {
	got := extractQueryTerms("酒税法 販売業者")
	want := []string{"酒税", "酒税法", "販売業者"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("extractQueryTerms() = %v, want %v", got, want)
	}
}

func TestExtractQueryTermsDropsStopWordsAndNoise(t *testing.T) {
	got := extractQueryTerms("ください 税 2024 について 免許 a")
	want := []string{"免許"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("extractQueryTerms() = %v, want %v", got, want)
	}
}

func TestExtractQueryTermsSplitsLatinOnPunctuation(t *testing.T) {
	got := extractQueryTerms("beer-tax,license")
	want := []string{"beer", "tax", "license"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("extractQueryTerms() = %v, want %v", got, want)
	}
}

func TestExtractQueryTermsSeparatesScripts(t *testing.T) {
	got := extractQueryTerms("ABC酒類")
	want := []string{"ABC", "酒類"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("extractQueryTerms() = %v, want %v", got, want)
	}
}

func TestExtractQueryTermsCapsAtFive(t *testing.T) {
	got := extractQueryTerms("ビール 製造免許 酒類 販売 業者 帳簿 記帳")
	if len(got) != maxExtractedTerms {
		t.Fatalf("expected %d terms, got %d: %v", maxExtractedTerms, len(got), got)
	}
	if got[0] != "ビール" || got[1] != "製造免許" {
		t.Fatalf("expected priority terms first, got %v", got)
	}
}

func TestExtractQueryTermsDeduplicates(t *testing.T) {
	got := extractQueryTerms("ビール ビール")
	if len(got) != 1 || got[0] != "ビール" {
		t.Fatalf("expected single ビール term, got %v", got)
	}
}

func TestExtractQueryTermsEmptyQuery(t *testing.T) {
	if got := extractQueryTerms(""); len(got) != 0 {
		t.Fatalf("expected no terms, got %v", got)
	}
}
