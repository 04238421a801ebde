package domain

// ParseResult is the outcome of parsing a structured model response.
// Either the value was parsed as intended (Ok), or a simpler fallback
// produced it and Reason says why.
type ParseResult[T any] struct {
	Value  T
	Reason string
	ok     bool
}

// Ok wraps a value parsed from the intended structure.
func Ok[T any](v T) ParseResult[T] {
	return ParseResult[T]{Value: v, ok: true}
}

// Fallback wraps a value produced by a fallback path.
func Fallback[T any](v T, reason string) ParseResult[T] {
	return ParseResult[T]{Value: v, Reason: reason}
}

// IsOk reports whether the intended parse succeeded.
func (r ParseResult[T]) IsOk() bool {
	return r.ok
}
