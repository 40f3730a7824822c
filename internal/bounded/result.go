// Package bounded carries the outcome of an operation that tried an
// enhancement once and always has a terminal value to fall back on.
package bounded

// Result is either Ok(value) or Degraded(value, reason). Both carry a usable
// value; Degraded records why the enhanced path was not taken.
type Result[T any] struct {
	Value  T
	Reason string
}

// Ok wraps a value produced by the primary path
func Ok[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

// Degraded wraps a fallback value together with the reason it was used
func Degraded[T any](v T, reason string) Result[T] {
	if reason == "" {
		reason = "unspecified"
	}
	return Result[T]{Value: v, Reason: reason}
}

// IsDegraded reports whether the fallback branch produced the value
func (r Result[T]) IsDegraded() bool {
	return r.Reason != ""
}

// Unwrap returns the value and the degradation reason ("" when Ok)
func (r Result[T]) Unwrap() (T, string) {
	return r.Value, r.Reason
}

// Map transforms the value while keeping the degradation state
func Map[T, U any](r Result[T], fn func(T) U) Result[U] {
	return Result[U]{Value: fn(r.Value), Reason: r.Reason}
}

// Join appends the reason of other to r, keeping r's value. It lets a caller
// accumulate the degradations of several steps that feed one value.
func (r Result[T]) Join(reason string) Result[T] {
	switch {
	case reason == "":
		return r
	case r.Reason == "":
		r.Reason = reason
	default:
		r.Reason = r.Reason + "; " + reason
	}
	return r
}
