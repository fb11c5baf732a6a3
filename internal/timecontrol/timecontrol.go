package timecontrol

import (
	"strconv"
	"strings"
)

// Category buckets a time control by estimated total duration.
type Category string

const (
	Bullet Category = "Bullet"
	Blitz  Category = "Blitz"
	Rapid  Category = "Rapid"
	Daily  Category = "Daily"
)

// Info is a parsed, sanitized time control.
type Info struct {
	Minutes      int
	IncrementSec int
	Category     Category
	Canonical    string
}

// IncrementMs returns the per-move increment in milliseconds.
func (i Info) IncrementMs() int64 { return int64(i.IncrementSec) * 1000 }

// BaseMs returns each side's starting time in milliseconds.
func (i Info) BaseMs() int64 { return int64(i.Minutes) * 60_000 }

func safeDefault() Info {
	return Info{Minutes: 10, IncrementSec: 0, Category: Rapid, Canonical: "10+0"}
}

// Parse sanitizes a "<minutes>+<incrementSeconds>" string and derives its
// category. Malformed input falls back to 10+0 Rapid rather than erroring:
// a bad pool request should still land the player somewhere playable.
func Parse(raw string) Info {
	s := strings.TrimSpace(raw)
	if !strings.Contains(s, "+") {
		return safeDefault()
	}
	parts := strings.SplitN(s, "+", 2)
	minutes, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	increment, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil {
		return safeDefault()
	}

	minutes = clamp(minutes, 1, 1440)
	increment = clamp(increment, 0, 180)

	// Estimated total game length drives the category; increments weigh in at
	// roughly 40 moves per game.
	estimatedTotalSeconds := minutes*60 + increment*40

	category := Daily
	switch {
	case estimatedTotalSeconds < 180:
		category = Bullet
		increment = min(increment, 2)
	case estimatedTotalSeconds < 600:
		category = Blitz
		increment = min(increment, 5)
	case estimatedTotalSeconds <= 3600:
		category = Rapid
		increment = min(increment, 60)
	}
	if category == Daily {
		increment = 0
	}

	return Info{
		Minutes:      minutes,
		IncrementSec: increment,
		Category:     category,
		Canonical:    strconv.Itoa(minutes) + "+" + strconv.Itoa(increment),
	}
}

// RatingKey maps this control to the per-category rating field it reads
// and updates. Bucketed by base minutes only, independently of Category:
// a 10+5 game displays as Rapid but rates on the blitz field.
func (i Info) RatingKey() string {
	switch {
	case i.Minutes <= 1:
		return "bullet"
	case i.Minutes <= 10:
		return "blitz"
	case i.Minutes <= 60:
		return "rapid"
	default:
		return "daily"
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
