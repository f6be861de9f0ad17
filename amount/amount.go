// Package amount implements overflow-checked arithmetic on the fixed
// width uint64 amounts used throughout the ledger. Every operation that
// could exceed the width returns an error instead of wrapping.
package amount

import (
	"fmt"
	"math/bits"
)

// Add returns a+b, or ErrOverflow if the sum exceeds 64 bits.
func Add(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, fmt.Errorf("%w: %d + %d", ErrOverflow, a, b)
	}
	return sum, nil
}

// Sub returns a-b, or ErrUnderflow if b exceeds a.
func Sub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, fmt.Errorf("%w: %d - %d", ErrUnderflow, a, b)
	}
	return diff, nil
}

// ClipSub returns a-b floored at zero.
func ClipSub(a, b uint64) uint64 {
	if b >= a {
		return 0
	}
	return a - b
}

// Mul returns a*b, or ErrOverflow if the product exceeds 64 bits.
func Mul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, fmt.Errorf("%w: %d * %d", ErrOverflow, a, b)
	}
	return lo, nil
}

// MulDiv returns a*b/d rounded down, computing the product in 128 bits
// so that intermediate overflow cannot occur. It returns
// ErrDivideByZero when d is zero and ErrOverflow when the quotient
// itself does not fit in 64 bits.
func MulDiv(a, b, d uint64) (uint64, error) {
	if d == 0 {
		return 0, fmt.Errorf("%w: %d * %d / 0", ErrDivideByZero, a, b)
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= d {
		return 0, fmt.Errorf("%w: %d * %d / %d", ErrOverflow, a, b, d)
	}
	q, _ := bits.Div64(hi, lo, d)
	return q, nil
}

// Max returns the greater of a and b.
func Max(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}
