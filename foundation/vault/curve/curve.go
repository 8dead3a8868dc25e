// Package curve implements the constant ratio bonding curve that prices the
// vault share token against the underlying deposit. Every function is pure
// and rounds toward zero, so any remainder stays in the pool.
package curve

import (
	"errors"
	"fmt"
)

// Ratio is the number of share units minted per underlying unit when the
// pool holds no supply yet. It fixes the initial exchange rate.
const Ratio int64 = 10000

// Issue calculates the number of share units minted for a payment of the
// underlying asset given the current deposit (s0) and supply (r0) of the
// pool.
//
//	r0 == 0: minted = payment * ratio
//	r0 >  0: minted = floor((s0 + payment) * r0 / s0) - r0
func Issue(s0, r0, payment, ratio int64) (int64, error) {
	if payment < 0 || s0 < 0 || r0 < 0 {
		return 0, ErrNegative
	}

	if r0 == 0 {
		minted, err := MulDiv(payment, ratio, 1)
		if err != nil {
			return 0, fmt.Errorf("issue bootstrap: %w", err)
		}
		return minted, nil
	}

	if s0 == 0 {
		return 0, fmt.Errorf("issue: supply %d with zero deposit: %w", r0, ErrDivisionByZero)
	}

	s1 := s0 + payment
	if s1 < s0 {
		return 0, fmt.Errorf("issue: deposit %d + %d: %w", s0, payment, ErrOverflow)
	}

	r1, err := MulDiv(s1, r0, s0)
	if err != nil {
		return 0, fmt.Errorf("issue: %w", err)
	}

	return r1 - r0, nil
}

// Redeem calculates the amount of the underlying asset released when the
// specified number of share units are retired, given the current deposit
// (s0) and supply (r0) of the pool.
//
//	redeemed = floor(shares * s0 / r0)
func Redeem(s0, r0, shares int64) (int64, error) {
	if r0 == 0 {
		return 0, fmt.Errorf("redeem: zero supply: %w", ErrDivisionByZero)
	}

	redeemed, err := MulDiv(shares, s0, r0)
	if err != nil {
		return 0, fmt.Errorf("redeem: %w", err)
	}

	return redeemed, nil
}

// IsFatal reports whether the error means the pool state is broken rather
// than the request being bad.
func IsFatal(err error) bool {
	return errors.Is(err, ErrDivisionByZero) || errors.Is(err, ErrOverflow)
}
