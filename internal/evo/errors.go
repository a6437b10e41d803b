package evo

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks caller contract violations such as a genome whose
	// length does not match the item list. These are never retried.
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyPopulation = errors.New("population is empty")
)

type LengthMismatchError struct {
	Subject string
	Want    int
	Got     int
}

func (e *LengthMismatchError) Error() string {
	return fmt.Sprintf("%s length mismatch: got=%d want=%d", e.Subject, e.Got, e.Want)
}

func (e *LengthMismatchError) Unwrap() error {
	return ErrInvalidInput
}
