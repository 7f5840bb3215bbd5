// Package dice parses and rolls dice notation such as "1d8", "2d6+3" or "1d4-1".
package dice

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
)

// Bounds on one expression. Together they keep every total well inside int.
const (
	MaxCount    = 1000
	MaxSides    = 1000
	MaxModifier = 1000000
)

// ErrInvalidDice is wrapped by every ParseError.
var ErrInvalidDice = errors.New("invalid dice expression")

// ParseError reports dice text that could not be parsed.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid dice expression %q: %s", e.Input, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return ErrInvalidDice
}

// notationRegex matches dice notation like "1d6", "2d4+1", "1d8-2"
var notationRegex = regexp.MustCompile(`^(\d+)d(\d+)([+-]\d+)?$`)

// Expression is a parsed NdM+K dice expression.
type Expression struct {
	Count    int `json:"count"`
	Sides    int `json:"sides"`
	Modifier int `json:"modifier"`
}

// D20 is the single twenty-sided die used for attack rolls and as the
// initiative fallback.
var D20 = Expression{Count: 1, Sides: 20}

// Parse parses dice notation. Surrounding whitespace and case are ignored,
// as are spaces around the modifier sign.
func Parse(text string) (Expression, error) {
	s := strings.ToLower(strings.Join(strings.Fields(text), ""))
	if s == "" {
		return Expression{}, &ParseError{Input: text, Reason: "empty"}
	}

	m := notationRegex.FindStringSubmatch(s)
	if m == nil {
		return Expression{}, &ParseError{Input: text, Reason: "expected NdM, NdM+K or NdM-K"}
	}

	count, err := strconv.Atoi(m[1])
	if err != nil || count > MaxCount {
		return Expression{}, &ParseError{Input: text, Reason: fmt.Sprintf("dice count must be at most %d", MaxCount)}
	}
	sides, err := strconv.Atoi(m[2])
	if err != nil || sides < 1 || sides > MaxSides {
		return Expression{}, &ParseError{Input: text, Reason: fmt.Sprintf("dice must have between 1 and %d sides", MaxSides)}
	}

	modifier := 0
	if m[3] != "" {
		modifier, err = strconv.Atoi(m[3])
		if err != nil || modifier > MaxModifier || modifier < -MaxModifier {
			return Expression{}, &ParseError{Input: text, Reason: fmt.Sprintf("modifier must be within ±%d", MaxModifier)}
		}
	}

	return Expression{Count: count, Sides: sides, Modifier: modifier}, nil
}

// MustParse is like Parse but panics on error. Intended for literals.
func MustParse(text string) Expression {
	e, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return e
}

// Roll sums Count dice of Sides faces plus Modifier, floored at 0.
func (e Expression) Roll(r *rand.Rand) int {
	total := e.Modifier
	for i := 0; i < e.Count; i++ {
		total += r.IntN(e.Sides) + 1
	}
	if total < 0 {
		return 0
	}
	return total
}

// Expected returns the mean of the expression before any flooring.
func (e Expression) Expected() float64 {
	return float64(e.Count)*float64(e.Sides+1)/2 + float64(e.Modifier)
}

// Max returns the largest value the expression can roll.
func (e Expression) Max() int {
	return max(e.Count*e.Sides+e.Modifier, 0)
}

// String formats the expression back into notation.
func (e Expression) String() string {
	switch {
	case e.Modifier > 0:
		return fmt.Sprintf("%dd%d+%d", e.Count, e.Sides, e.Modifier)
	case e.Modifier < 0:
		return fmt.Sprintf("%dd%d%d", e.Count, e.Sides, e.Modifier)
	default:
		return fmt.Sprintf("%dd%d", e.Count, e.Sides)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (e Expression) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *Expression) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}
