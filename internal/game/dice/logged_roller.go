package dice

import "go.uber.org/zap"

// Roller wraps a Source and logger so every roll leaves a debug trace.
type Roller struct {
	src    Source
	logger *zap.Logger
}

// NewLoggedRoller creates a Roller that rolls with src and logs each roll to logger.
//
// Precondition: src must be non-nil. A nil logger disables logging.
func NewLoggedRoller(src Source, logger *zap.Logger) *Roller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Roller{src: src, logger: logger}
}

// Source exposes the underlying randomness source.
func (r *Roller) Source() Source {
	return r.src
}

// Roll evaluates expr and logs the result at debug level.
func (r *Roller) Roll(expr Expression) RollResult {
	result := Roll(expr, r.src)
	r.logger.Debug("dice roll",
		zap.String("expression", result.Expression),
		zap.Ints("dice", result.Dice),
		zap.Int("modifier", result.Modifier),
		zap.Int("total", result.Total()),
	)
	return result
}

// RollExpr parses formula and rolls it, logging the result.
func (r *Roller) RollExpr(formula string) (RollResult, error) {
	e, err := Parse(formula)
	if err != nil {
		return RollResult{}, err
	}
	return r.Roll(e), nil
}

// RollD20 rolls a d20 under mode and logs the kept die.
func (r *Roller) RollD20(mode Mode) D20Roll {
	d := RollD20(r.src, mode)
	r.logger.Debug("d20 roll",
		zap.String("mode", string(d.Mode)),
		zap.Ints("dice", d.Dice),
		zap.Int("natural", d.Natural),
	)
	return d
}
