package generic

import "fmt"

type Result[T any] struct {
	Value T
	Error error
}

// NewResult wraps a (T, error) return value from another function call as a Result[T].
func NewResult[T any](value T, err error) Result[T] {
	return Result[T]{Value: value, Error: err}
}

func (r Result[T]) IsErr() bool {
	return r.Error != nil
}

// Expect returns the contained value, or panics with msg and the contained error.
func (r Result[T]) Expect(msg string) T {
	if r.IsErr() {
		panic(fmt.Errorf("%s: %w", msg, r.Error))
	}
	return r.Value
}

// Unwrap_ panics if err is not nil, for calls that must not fail.
func Unwrap_(err error) {
	NewResult(Void{}, err).Expect("tried to Unwrap() an Err")
}
