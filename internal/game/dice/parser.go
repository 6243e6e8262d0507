package dice

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Upper bounds keep a typo like "2000d6" from stalling a roll.
const (
	maxDieCount = 100
	maxDieSides = 1000
)

// Expression represents a parsed dice formula ready to be rolled.
//
// Invariant: Count >= 1 and Sides >= 1 after a successful Parse.
type Expression struct {
	Raw      string // original input string
	Count    int    // number of dice
	Sides    int    // faces per die
	Modifier int    // flat modifier (may be negative)
}

// String renders the canonical form of the expression, e.g. "2d6+3".
func (e Expression) String() string {
	if e.Modifier == 0 {
		return fmt.Sprintf("%dd%d", e.Count, e.Sides)
	}
	return fmt.Sprintf("%dd%d%+d", e.Count, e.Sides, e.Modifier)
}

// Parse parses a formula in the NdM+K grammar into an Expression.
// Supported forms: "d20", "2d6", "2d6+3", "4d8-2", "1d8 + 2".
// N defaults to 1 when omitted; N and M must be positive integers; K is an
// optional signed integer. Whitespace is allowed only at the ends and around
// the modifier sign, so "2 d 6" is rejected.
//
// Postcondition: Returns an Expression, or an error wrapping ErrInvalidFormula.
func Parse(formula string) (Expression, error) {
	raw := formula
	trimmed := strings.TrimSpace(formula)
	if trimmed == "" {
		return Expression{}, fmt.Errorf("%w: empty formula", ErrInvalidFormula)
	}
	if splitsTerm(trimmed) {
		return Expression{}, fmt.Errorf("%w: unexpected space in %q", ErrInvalidFormula, raw)
	}
	s := strings.ToLower(strings.Join(strings.Fields(trimmed), ""))

	dIdx := strings.IndexByte(s, 'd')
	if dIdx < 0 {
		return Expression{}, fmt.Errorf("%w: missing 'd' in %q", ErrInvalidFormula, raw)
	}

	count := 1
	if countStr := s[:dIdx]; countStr != "" {
		n, err := parseUnsigned(countStr)
		if err != nil {
			return Expression{}, fmt.Errorf("%w: die count in %q: %v", ErrInvalidFormula, raw, err)
		}
		count = n
	}
	if count < 1 || count > maxDieCount {
		return Expression{}, fmt.Errorf("%w: die count in %q must be 1-%d", ErrInvalidFormula, raw, maxDieCount)
	}

	rest := s[dIdx+1:]
	modIdx := strings.IndexAny(rest, "+-")

	sidesStr, modStr := rest, ""
	if modIdx >= 0 {
		sidesStr, modStr = rest[:modIdx], rest[modIdx:]
	}

	sides, err := parseUnsigned(sidesStr)
	if err != nil {
		return Expression{}, fmt.Errorf("%w: die sides in %q: %v", ErrInvalidFormula, raw, err)
	}
	if sides < 1 || sides > maxDieSides {
		return Expression{}, fmt.Errorf("%w: die sides in %q must be 1-%d", ErrInvalidFormula, raw, maxDieSides)
	}

	modifier := 0
	if modStr != "" {
		m, err := parseUnsigned(modStr[1:])
		if err != nil {
			return Expression{}, fmt.Errorf("%w: modifier in %q: %v", ErrInvalidFormula, raw, err)
		}
		modifier = m
		if modStr[0] == '-' {
			modifier = -m
		}
	}

	return Expression{
		Raw:      raw,
		Count:    count,
		Sides:    sides,
		Modifier: modifier,
	}, nil
}

// MustParse parses expr and panics on error. Useful for package-level constants.
func MustParse(expr string) Expression {
	e, err := Parse(expr)
	if err != nil {
		panic("dice: MustParse failed for expression " + expr + ": " + err.Error())
	}
	return e
}

// parseUnsigned accepts only ASCII digits; strconv alone would let "+6" through.
func parseUnsigned(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("missing number")
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, fmt.Errorf("unexpected %q", s[i])
		}
	}
	return strconv.Atoi(s)
}

// splitsTerm reports whether a run of whitespace in s sits anywhere other than
// next to a '+' or '-'. s must already be trimmed.
func splitsTerm(s string) bool {
	for i := 0; i < len(s); {
		if !unicode.IsSpace(rune(s[i])) {
			i++
			continue
		}
		j := i
		for j < len(s) && unicode.IsSpace(rune(s[j])) {
			j++
		}
		if !isSign(s[i-1]) && !isSign(s[j]) {
			return true
		}
		i = j
	}
	return false
}

func isSign(b byte) bool { return b == '+' || b == '-' }
