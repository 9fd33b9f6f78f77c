package textutil

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSanitizeFileName(t *testing.T) {
	cases := map[string]string{
		"  holiday: day 1  ": "holiday- day 1",
		"a/b\\c":             "a-b-c",
		"what?\"<>|":         "what",
		"":                   "",
	}
	for input, want := range cases {
		if got := SanitizeFileName(input); got != want {
			t.Errorf("SanitizeFileName(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestFileStem(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "strips extension", input: "IMG_0001.HEIC", want: "IMG_0001"},
		{name: "collapses whitespace", input: "Beach   day\tphoto.jpg", want: "Beach_day_photo"},
		{name: "removes unsafe characters", input: "../../etc/passwd", want: "etc-passwd"},
		{name: "drops control characters", input: "a\x00b\x07c.png", want: "abc"},
		{name: "normalizes to NFC", input: "Cafe\u0301.jpg", want: "Caf\u00e9"},
		{name: "empty falls back", input: "   ", want: "item"},
		{name: "only extension falls back", input: ".jpg", want: "item"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := FileStem(tc.input); got != tc.want {
				t.Fatalf("FileStem(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestFileStemCapsLengthOnRuneBoundary(t *testing.T) {
	long := strings.Repeat("é", MaxStemLength)
	got := FileStem(long + ".jpg")
	if len(got) > MaxStemLength {
		t.Fatalf("stem too long: %d bytes", len(got))
	}
	if !utf8.ValidString(got) {
		t.Fatalf("stem is not valid UTF-8: %q", got)
	}
}
