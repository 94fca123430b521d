package suggest

import (
	"reflect"
	"testing"
)

// --- NormalizeTags ---

func TestNormalizeTags_TrimLowerDedupe(t *testing.T) {
	got := NormalizeTags([]string{"  Anime ", "anime", "GOJO SATURU", ""})
	want := []string{"anime", "gojo saturu"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("NormalizeTags = %v, want %v", got, want)
	}
}

func TestNormalizeTags_Empty(t *testing.T) {
	if got := NormalizeTags(nil); len(got) != 0 {
		t.Errorf("NormalizeTags(nil) = %v, want empty", got)
	}
	if got := NormalizeTags([]string{"   ", "\t"}); len(got) != 0 {
		t.Errorf("NormalizeTags(whitespace) = %v, want empty", got)
	}
}

func TestNormalizeTags_Idempotent(t *testing.T) {
	in := []string{"Music", "  lo-fi ", "music", "Chill Beats"}
	once := NormalizeTags(in)
	twice := NormalizeTags(once)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("NormalizeTags not idempotent: %v != %v", once, twice)
	}
}

// --- TokenizeTags ---

func TestTokenizeTags_MultiWord(t *testing.T) {
	got := TokenizeTags([]string{"gojo saturu"})
	want := []string{"gojo", "saturu"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("TokenizeTags = %v, want %v", got, want)
	}
}

func TestTokenizeTags_Delimiters(t *testing.T) {
	got := TokenizeTags([]string{"lo-fi,chill.beats_mix"})
	want := []string{"beats", "chill", "fi", "lo", "mix"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("TokenizeTags = %v, want %v", got, want)
	}
}

func TestTokenizeTags_DropsShortFragments(t *testing.T) {
	got := TokenizeTags([]string{"a b cd", "x"})
	want := []string{"cd"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("TokenizeTags = %v, want %v", got, want)
	}
}

func TestTokenizeTags_Dedupes(t *testing.T) {
	got := TokenizeTags([]string{"anime music", "music video"})
	want := []string{"anime", "music", "video"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("TokenizeTags = %v, want %v", got, want)
	}
}

// --- word-boundary matching ---

func TestTokenMatchesTag_WholeWordOnly(t *testing.T) {
	if tokenMatchesTag("cat", "category") {
		t.Error("'cat' must not match tag 'category'")
	}
	if !tokenMatchesTag("cat", "cat videos") {
		t.Error("'cat' should match tag 'cat videos'")
	}
	if !tokenMatchesTag("gojo", "gojo saturu") {
		t.Error("'gojo' should match tag 'gojo saturu'")
	}
	if !tokenMatchesTag("gojo", "Gojo") {
		t.Error("matching must be case-insensitive")
	}
}

func TestTokenMatchesAny(t *testing.T) {
	tags := []string{"unrelated", "gojo saturu"}
	if !tokenMatchesAny("saturu", tags) {
		t.Error("'saturu' should match one of the tags")
	}
	if tokenMatchesAny("sat", tags) {
		t.Error("'sat' must not match any tag")
	}
}
