// Package stream provides pull-driven, terminable sequences.
//
// A Stream is a range-over-func sequence of (value, error) pairs. The producer runs on
// the goroutine that ranges over the stream, so every stage of a pipeline executes
// sequentially and only when the consumer asks for the next element. An error pair is
// terminal: producers never yield after an error. Breaking out of the range loop
// abandons the stream, and producers release their resources with defer.
//
//	for dev, err := range req.Perform(ctx) {
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(dev)
//	}
package stream

// Stream is a lazy sequence terminated either by normal completion or by a single
// error pair.
type Stream[T any] func(yield func(T, error) bool)

// Of returns a stream yielding items in order.
func Of[T any](items ...T) Stream[T] {
	return func(yield func(T, error) bool) {
		for _, item := range items {
			if !yield(item, nil) {
				return
			}
		}
	}
}

// Empty returns a stream that completes immediately.
func Empty[T any]() Stream[T] {
	return func(func(T, error) bool) {}
}

// Fail returns a stream that terminates with err without yielding values.
func Fail[T any](err error) Stream[T] {
	return func(yield func(T, error) bool) {
		var zero T
		yield(zero, err)
	}
}

// Filter keeps the values for which keep reports true. An error from keep terminates
// the stream.
func Filter[T any](s Stream[T], keep func(T) (bool, error)) Stream[T] {
	return func(yield func(T, error) bool) {
		for v, err := range s {
			if err != nil {
				yield(v, err)
				return
			}
			ok, err := keep(v)
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			if ok && !yield(v, nil) {
				return
			}
		}
	}
}

// Map transforms each value. Values for which fn reports false are dropped. An error
// from fn terminates the stream.
func Map[T, U any](s Stream[T], fn func(T) (U, bool, error)) Stream[U] {
	return func(yield func(U, error) bool) {
		var zero U
		for v, err := range s {
			if err != nil {
				yield(zero, err)
				return
			}
			u, ok, err := fn(v)
			if err != nil {
				yield(zero, err)
				return
			}
			if ok && !yield(u, nil) {
				return
			}
		}
	}
}

// OnEach runs fn for every value before passing it downstream.
func OnEach[T any](s Stream[T], fn func(T) error) Stream[T] {
	return Filter(s, func(v T) (bool, error) {
		if err := fn(v); err != nil {
			return false, err
		}
		return true, nil
	})
}

// OnStart runs fn when the stream starts being consumed, before upstream is pulled.
func OnStart[T any](s Stream[T], fn func()) Stream[T] {
	return func(yield func(T, error) bool) {
		fn()
		s(yield)
	}
}

// OnCompletion runs fn once the stream ends, whether it completed, failed or was
// abandoned by the consumer. fn receives the terminal error, or nil.
func OnCompletion[T any](s Stream[T], fn func(err error)) Stream[T] {
	return func(yield func(T, error) bool) {
		var failure error
		defer func() { fn(failure) }()

		for v, err := range s {
			if err != nil {
				failure = err
			}
			if !yield(v, err) {
				return
			}
		}
	}
}

// Collect drains s and returns every value, stopping at the first error.
func Collect[T any](s Stream[T]) ([]T, error) {
	var out []T
	for v, err := range s {
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
	return out, nil
}
