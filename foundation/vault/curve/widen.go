package curve

import (
	"errors"
	"math"

	"github.com/holiman/uint256"
)

// Set of errors the widened arithmetic can produce. Division by zero and
// overflow mean the pool state broke an invariant.
var (
	ErrDivisionByZero = errors.New("division by zero")
	ErrOverflow       = errors.New("arithmetic overflow")
	ErrNegative       = errors.New("negative operand")
)

// MulDiv computes floor(x * y / d). The operands are widened to 256 bits so
// the product of two 64 bit balances can never wrap, and the quotient is
// narrowed back to 64 bits with an explicit range check.
func MulDiv(x, y, d int64) (int64, error) {
	if x < 0 || y < 0 || d < 0 {
		return 0, ErrNegative
	}
	if d == 0 {
		return 0, ErrDivisionByZero
	}

	var z uint256.Int
	_, overflow := z.MulDivOverflow(uint256.NewInt(uint64(x)), uint256.NewInt(uint64(y)), uint256.NewInt(uint64(d)))
	if overflow {
		return 0, ErrOverflow
	}

	v, overflow := z.Uint64WithOverflow()
	if overflow || v > math.MaxInt64 {
		return 0, ErrOverflow
	}

	return int64(v), nil
}
