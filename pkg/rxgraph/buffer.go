package rxgraph

import "time"

// BufferCount emits a slice of count values every skip values. With
// skip < count the buffers overlap; with skip > count values between buffers
// are dropped. On completion the open non-empty buffers are emitted.
func BufferCount[T any](src Observable[T], count, skip int) Observable[[]T] {
	requireArg(src != nil, "BufferCount", "src", "must not be nil")
	requireArg(count > 0, "BufferCount", "count", "must be positive")
	requireArg(skip > 0, "BufferCount", "skip", "must be positive")
	return newBuffer(src, func(s *chunker[T, []T]) {
		s.policy, s.count, s.skip = byCount, count, skip
	})
}

// Buffer emits consecutive, non-overlapping slices of count values.
func Buffer[T any](src Observable[T], count int) Observable[[]T] {
	return BufferCount(src, count, count)
}

// BufferTime opens a buffer every shift and emits each buffer span after it
// opened, even when empty. Buffers still open at completion are emitted if
// non-empty.
func BufferTime[T any](src Observable[T], span, shift time.Duration) Observable[[]T] {
	requireArg(src != nil, "BufferTime", "src", "must not be nil")
	requireArg(span > 0, "BufferTime", "span", "must be positive")
	requireArg(shift > 0, "BufferTime", "shift", "must be positive")
	return newBuffer(src, func(s *chunker[T, []T]) {
		s.policy, s.span, s.shift = byTime, span, shift
	})
}

// BufferTimeOrCount emits the current buffer when it holds count values or
// when span has elapsed since it opened, whichever happens first.
func BufferTimeOrCount[T any](src Observable[T], span time.Duration, count int) Observable[[]T] {
	requireArg(src != nil, "BufferTimeOrCount", "src", "must not be nil")
	requireArg(span > 0, "BufferTimeOrCount", "span", "must be positive")
	requireArg(count > 0, "BufferTimeOrCount", "count", "must be positive")
	return newBuffer(src, func(s *chunker[T, []T]) {
		s.policy, s.span, s.count = byTimeOrCount, span, count
	})
}

func newBuffer[T any](src Observable[T], configure func(*chunker[T, []T])) Observable[[]T] {
	return unary[T, []T](src, func() *chunker[T, []T] {
		s := &chunker[T, []T]{keep: true}
		configure(s)
		s.onClose = func(c *chunk[T], completing bool) {
			if completing && len(c.items) == 0 {
				return
			}
			s.ForwardNext(c.items)
		}
		return s
	})
}
