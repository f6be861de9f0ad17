package amount

import "errors"

var (
	// ErrOverflow indicates a result that exceeds the 64-bit amount width.
	ErrOverflow = errors.New("amount: arithmetic overflow")

	// ErrUnderflow indicates a subtraction below zero.
	ErrUnderflow = errors.New("amount: arithmetic underflow")

	// ErrDivideByZero indicates a division by zero.
	ErrDivideByZero = errors.New("amount: divide by zero")
)
