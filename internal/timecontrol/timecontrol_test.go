package timecontrol

import "testing"

func TestParseCategories(t *testing.T) {
	cases := []struct {
		in       string
		minutes  int
		inc      int
		category Category
	}{
		{"10+5", 10, 5, Rapid},
		{"1+0", 1, 0, Bullet},
		{"3+2", 3, 2, Blitz},
		{"60+0", 60, 0, Rapid},
		{"90+30", 90, 0, Daily},
		{"2+1", 2, 1, Bullet},
	}
	for _, c := range cases {
		got := Parse(c.in)
		if got.Minutes != c.minutes || got.IncrementSec != c.inc || got.Category != c.category {
			t.Fatalf("Parse(%q) = %+v, want minutes=%d inc=%d category=%s", c.in, got, c.minutes, c.inc, c.category)
		}
	}
}

func TestParseClampsAndCaps(t *testing.T) {
	got := Parse("5000+999")
	if got.Minutes != 1440 {
		t.Fatalf("expected minutes clamped to 1440, got %d", got.Minutes)
	}
	if got.Category != Daily || got.IncrementSec != 0 {
		t.Fatalf("expected Daily with zero increment, got %+v", got)
	}

	// Bullet increments are capped at 2s.
	got = Parse("1+30")
	if got.Category != Bullet || got.IncrementSec != 2 {
		t.Fatalf("expected Bullet with 2s increment, got %+v", got)
	}
}

func TestParseMalformedFallsBack(t *testing.T) {
	for _, in := range []string{"", "abc", "10", "x+y", "+"} {
		got := Parse(in)
		if got.Canonical != "10+0" || got.Category != Rapid {
			t.Fatalf("Parse(%q) should fall back to 10+0 Rapid, got %+v", in, got)
		}
	}
}

func TestRatingKey(t *testing.T) {
	cases := map[string]string{
		"1+0":   "bullet",
		"10+5":  "blitz",
		"30+0":  "rapid",
		"120+0": "daily",
		// malformed input falls back to the 10+0 default and keys with it
		"bad": "blitz",
	}
	for in, want := range cases {
		if got := Parse(in).RatingKey(); got != want {
			t.Fatalf("RatingKey(%q) = %q, want %q", in, got, want)
		}
	}
	// the key follows base minutes even when the category does not
	if got := Parse("10+5"); got.Category != Rapid || got.RatingKey() != "blitz" {
		t.Fatalf("10+5 should be Rapid on the blitz field, got %s/%s", got.Category, got.RatingKey())
	}
}

func TestCanonicalRoundTrip(t *testing.T) {
	if got := Parse("10+5"); got.Canonical != "10+5" {
		t.Fatalf("canonical mismatch: %q", got.Canonical)
	}
	if got := Parse(" 3+2 "); got.Canonical != "3+2" {
		t.Fatalf("canonical should trim input, got %q", got.Canonical)
	}
}
