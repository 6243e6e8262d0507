package dice

// Roll evaluates an Expression using the given Source and returns a RollResult.
//
// Precondition: expr must come from Parse; src must be non-nil.
// Postcondition: len(result.Dice) == expr.Count and every die is in [1, expr.Sides].
func Roll(expr Expression, src Source) RollResult {
	rolled := make([]int, expr.Count)
	for i := range rolled {
		rolled[i] = src.Intn(expr.Sides) + 1
	}
	return RollResult{
		Expression: expr.String(),
		Dice:       rolled,
		Modifier:   expr.Modifier,
	}
}

// RollExpr parses formula and rolls it using src in a single call.
//
// Postcondition: Returns a RollResult or an error wrapping ErrInvalidFormula.
func RollExpr(formula string, src Source) (RollResult, error) {
	e, err := Parse(formula)
	if err != nil {
		return RollResult{}, err
	}
	return Roll(e, src), nil
}

// RollD20 rolls one d20, or two under Advantage or Disadvantage, keeping the
// higher or lower die respectively.
//
// Precondition: src must be non-nil.
func RollD20(src Source, mode Mode) D20Roll {
	first := src.Intn(20) + 1
	switch mode {
	case Advantage, Disadvantage:
		second := src.Intn(20) + 1
		kept := first
		if mode == Advantage && second > kept || mode == Disadvantage && second < kept {
			kept = second
		}
		return D20Roll{Mode: mode, Dice: []int{first, second}, Natural: kept}
	default:
		return D20Roll{Mode: Normal, Dice: []int{first}, Natural: first}
	}
}
