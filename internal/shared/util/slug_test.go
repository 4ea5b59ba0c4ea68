package util

import (
	"strings"
	"testing"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"SEO Basics Guide", "seo-basics-guide"},
		{"  Hello,   World!! ", "hello-world"},
		{"Café 2026", "café-2026"},
		{"!!!", "article"},
	}
	for _, tt := range tests {
		if got := Slugify(tt.in, "article"); got != tt.want {
			t.Fatalf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSlugifyTruncatesLongTitles(t *testing.T) {
	long := strings.Repeat("word ", 40)
	got := Slugify(long, "article")
	if len(got) > 80 || strings.HasSuffix(got, "-") {
		t.Fatalf("unexpected slug %q", got)
	}
}
