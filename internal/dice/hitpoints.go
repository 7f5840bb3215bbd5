package dice

import (
	"math/rand/v2"
	"strconv"
)

// HitPoints is either a fixed value or dice text rolled once per actor at
// battle setup. Dice text is kept as written so a malformed value can fall
// back to 1 instead of failing the whole encounter.
type HitPoints struct {
	Fixed int
	Dice  string
}

// FixedHitPoints returns a HitPoints that always resolves to n.
func FixedHitPoints(n int) HitPoints {
	return HitPoints{Fixed: n}
}

// DiceHitPoints returns a HitPoints rolled from text.
func DiceHitPoints(text string) HitPoints {
	return HitPoints{Dice: text}
}

// IsDice reports whether the value is rolled.
func (h HitPoints) IsDice() bool {
	return h.Dice != ""
}

// Roll resolves the value to a concrete hit point total of at least 1.
// Dice text that does not parse yields 1 without consuming randomness.
func (h HitPoints) Roll(r *rand.Rand) int {
	if !h.IsDice() {
		return max(h.Fixed, 1)
	}
	e, err := Parse(h.Dice)
	if err != nil {
		return 1
	}
	return max(e.Roll(r), 1)
}

// Expected returns the average hit points, floored at 1.
func (h HitPoints) Expected() float64 {
	if !h.IsDice() {
		return float64(max(h.Fixed, 1))
	}
	e, err := Parse(h.Dice)
	if err != nil {
		return 1
	}
	return max(e.Expected(), 1)
}

// Validate reports whether dice text, if any, parses.
func (h HitPoints) Validate() error {
	if !h.IsDice() {
		return nil
	}
	_, err := Parse(h.Dice)
	return err
}

func (h HitPoints) String() string {
	if h.IsDice() {
		return h.Dice
	}
	return strconv.Itoa(h.Fixed)
}
