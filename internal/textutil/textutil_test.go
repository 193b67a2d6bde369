package textutil

import "testing"

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Berlin, Germany":       "berlin-germany",
		"  Data & Analytics  ":  "data-analytics",
		"R&D / Engineering":     "r-d-engineering",
		"":                      "",
		"Zürich":                "zürich",
	}
	for in, want := range cases {
		if got := Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("abcdef", 10); got != "abcdef" {
		t.Errorf("short string changed: %q", got)
	}
	if got := Truncate("abcdefghij", 6); got != "abc..." {
		t.Errorf("Truncate = %q", got)
	}
	if got := Truncate("äöüäöü", 5); got != "äö..." {
		t.Errorf("Truncate runes = %q", got)
	}
}

func TestCleanTextAndFirstWords(t *testing.T) {
	if got := CleanText(" a  b\n c "); got != "a b c" {
		t.Errorf("CleanText = %q", got)
	}
	if got := FirstWords("Graduate Software Engineer II", 3); len(got) != 3 || got[2] != "Engineer" {
		t.Errorf("FirstWords = %v", got)
	}
}
