package handlers

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSanitizeName(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"trims whitespace", "  alice-bot  ", "alice-bot"},
		{"strips control characters", "ali\x00ce\tbot", "alicebot"},
		{"keeps unicode", "café-bot", "café-bot"},
	}

	for _, tc := range cases {
		if got := sanitizeName(tc.in); got != tc.want {
			t.Fatalf("%s: sanitizeName(%q) = %q, want %q", tc.name, tc.in, got, tc.want)
		}
	}
}

func TestSanitizeNameTruncatesOnRuneBoundary(t *testing.T) {
	got := sanitizeName(strings.Repeat("é", 150))

	if n := utf8.RuneCountInString(got); n != 100 {
		t.Fatalf("expected 100 runes, got %d", n)
	}
	if !utf8.ValidString(got) {
		t.Fatal("truncation produced invalid UTF-8")
	}
}
