package rxgraph

import (
	"time"

	"github.com/randalmurphal/rxgraph/pkg/rxgraph/checkpoint"
	"github.com/randalmurphal/rxgraph/pkg/rxgraph/scheduler"
)

// chunkPolicy selects how a stream is cut into buffers or windows.
type chunkPolicy int

const (
	// byCount opens a chunk every skip values; each closes after count values.
	byCount chunkPolicy = iota
	// byTime opens a chunk every shift; each closes span after it opened.
	byTime
	// byTimeOrCount keeps one chunk, closed after count values or span,
	// whichever comes first. The timer restarts with every new chunk.
	byTimeOrCount
)

// chunk is one open buffer or window.
type chunk[T any] struct {
	key   int
	n     int
	items []T
	win   *windowSubject[T]
}

func (c *chunk[T]) add(v T, keep bool) {
	c.n++
	if keep {
		c.items = append(c.items, v)
	}
	if c.win != nil {
		c.win.next(v)
	}
}

// chunkState is the checkpointed form of a chunker. Durations are ticks
// relative to the clock at save time.
type chunkState[T any] struct {
	Items     [][]T `json:"items,omitempty"`
	Counts    []int `json:"counts"`
	Keys      []int `json:"keys,omitempty"`
	Opened    int   `json:"opened,omitempty"`
	Seen      int   `json:"seen"`
	Armed     bool  `json:"armed"`
	Due       int64 `json:"due"`
	IsSpan    bool  `json:"is_span"`
	IsShift   bool  `json:"is_shift"`
	NextSpan  int64 `json:"next_span"`
	NextShift int64 `json:"next_shift"`
}

// chunker is the shared engine behind Buffer* and Window*. keep selects
// buffers (values retained and emitted on close) over windows (values
// forwarded to the open window subjects as they arrive).
type chunker[T, R any] struct {
	Sink[R]
	policy chunkPolicy
	keep   bool

	count int
	skip  int
	span  time.Duration
	shift time.Duration

	onOpen  func(c *chunk[T])
	onClose func(c *chunk[T], completing bool)

	chunks []*chunk[T]
	seen   int
	opened int

	timer     *scheduler.Task
	due       scheduler.Time
	isSpan    bool
	isShift   bool
	nextSpan  scheduler.Time
	nextShift scheduler.Time

	begun  bool
	loaded *chunkState[T]
}

func (s *chunker[T, R]) open() *chunk[T] {
	s.opened++
	return s.openKeyed(s.opened)
}

// openKeyed opens a chunk with an explicit key. Keys number the chunks in
// opening order and survive a checkpoint.
func (s *chunker[T, R]) openKeyed(key int) *chunk[T] {
	c := &chunk[T]{key: key}
	if s.keep {
		c.items = []T{}
	}
	s.chunks = append(s.chunks, c)
	if s.onOpen != nil {
		s.onOpen(c)
	}
	return c
}

func (s *chunker[T, R]) closeOldest(completing bool) {
	c := s.chunks[0]
	s.chunks[0] = nil
	s.chunks = s.chunks[1:]
	s.onClose(c, completing)
}

func (s *chunker[T, R]) Start() {
	// Windows are emitted downstream as they open; defer that until every
	// node of the graph has started.
	if s.onOpen != nil {
		s.Schedule(0, s.begin)
		return
	}
	s.begin()
}

func (s *chunker[T, R]) begin() {
	s.begun = true
	if s.loaded != nil {
		s.restore(*s.loaded)
		s.loaded = nil
		return
	}

	s.open()
	switch s.policy {
	case byTime:
		now := s.Now()
		s.nextSpan = now.Add(s.span)
		s.nextShift = now.Add(s.shift)
		s.armNext()
	case byTimeOrCount:
		s.arm(s.Now().Add(s.span), true, false)
	}
}

// armNext schedules the next open/close event of the byTime policy.
func (s *chunker[T, R]) armNext() {
	isSpan, isShift := false, false
	switch {
	case s.nextSpan == s.nextShift:
		isSpan, isShift = true, true
	case s.nextSpan < s.nextShift:
		isSpan = true
	default:
		isShift = true
	}

	due := s.nextShift
	if isSpan {
		due = s.nextSpan
		s.nextSpan = s.nextSpan.Add(s.shift)
	}
	if isShift {
		s.nextShift = s.nextShift.Add(s.shift)
	}
	s.arm(due, isSpan, isShift)
}

func (s *chunker[T, R]) arm(due scheduler.Time, isSpan, isShift bool) {
	if s.timer != nil {
		s.timer.Dispose()
	}
	s.due, s.isSpan, s.isShift = due, isSpan, isShift
	s.timer = s.ScheduleAt(due, s.tick)
}

func (s *chunker[T, R]) tick() {
	s.timer = nil
	switch s.policy {
	case byTime:
		if s.isSpan && len(s.chunks) > 0 {
			s.closeOldest(false)
		}
		if s.isShift {
			s.open()
		}
		s.armNext()
	case byTimeOrCount:
		s.closeOldest(false)
		s.open()
		s.arm(s.Now().Add(s.span), true, false)
	}
}

func (s *chunker[T, R]) OnNext(v T) {
	if !s.Accepting() {
		return
	}

	for _, c := range s.chunks {
		c.add(v, s.keep)
	}

	switch s.policy {
	case byCount:
		if c := s.seen - s.count + 1; c >= 0 && c%s.skip == 0 && len(s.chunks) > 0 {
			s.closeOldest(false)
		}
		s.seen++
		if s.seen%s.skip == 0 {
			s.open()
		}
	case byTimeOrCount:
		if len(s.chunks) > 0 && s.chunks[0].n == s.count {
			s.closeOldest(false)
			s.open()
			s.arm(s.Now().Add(s.span), true, false)
		}
	}
}

func (s *chunker[T, R]) OnError(err error) {
	if !s.Accepting() {
		return
	}
	for _, c := range s.chunks {
		if c.win != nil {
			c.win.fail(err)
		}
	}
	s.chunks = nil
	s.ForwardError(err)
}

func (s *chunker[T, R]) OnCompleted() {
	if !s.Accepting() {
		return
	}
	for len(s.chunks) > 0 {
		s.closeOldest(true)
	}
	s.ForwardCompleted()
}

func (s *chunker[T, R]) SaveState(w checkpoint.StateWriter) error {
	if !s.begun {
		if s.loaded != nil {
			return w.Write(*s.loaded)
		}
		return nil
	}
	now := s.Now()
	st := chunkState[T]{
		Seen:   s.seen,
		Opened: s.opened,
		Counts: make([]int, len(s.chunks)),
		Keys:   make([]int, len(s.chunks)),
	}
	for i, c := range s.chunks {
		st.Counts[i] = c.n
		st.Keys[i] = c.key
		if s.keep {
			st.Items = append(st.Items, c.items)
		}
	}
	if s.timer != nil {
		st.Armed = true
		st.Due = int64(relative(s.due, now))
		st.IsSpan, st.IsShift = s.isSpan, s.isShift
		st.NextSpan = int64(s.nextSpan.Sub(now))
		st.NextShift = int64(s.nextShift.Sub(now))
	}
	return w.Write(st)
}

func (s *chunker[T, R]) LoadState(r checkpoint.StateReader) error {
	var st chunkState[T]
	found, err := r.Read(&st)
	if err != nil || !found {
		return err
	}
	s.loaded = &st
	return nil
}

// restore rebuilds chunks and timers from saved state, re-anchoring every
// pending time to the current clock. Windows are emitted again under their
// saved keys.
func (s *chunker[T, R]) restore(st chunkState[T]) {
	s.seen = st.Seen
	s.opened = st.Opened
	for i, n := range st.Counts {
		var c *chunk[T]
		if i < len(st.Keys) {
			c = s.openKeyed(st.Keys[i])
		} else {
			c = s.open()
		}
		c.n = n
		if s.keep && i < len(st.Items) {
			c.items = append(c.items, st.Items[i]...)
		}
	}
	if st.Armed {
		now := s.Now()
		s.nextSpan = now.Add(time.Duration(st.NextSpan))
		s.nextShift = now.Add(time.Duration(st.NextShift))
		s.arm(now.Add(time.Duration(st.Due)), st.IsSpan, st.IsShift)
	}
}

// relative returns the ticks from now until due, never negative.
func relative(due, now scheduler.Time) time.Duration {
	if d := due.Sub(now); d > 0 {
		return d
	}
	return 0
}
