package rxgraph

import (
	"fmt"
	"sort"

	"github.com/randalmurphal/rxgraph/pkg/rxgraph/checkpoint"
)

// innerEntry is a live inner stream in a checkpoint.
type innerEntry[A any] struct {
	Slot int `json:"slot"`
	// Key is set for inners whose outer value is re-emitted on load (a
	// window); the re-emitted value claims the slot.
	Key int `json:"key,omitempty"`
	// Arg is the outer value the inner was projected from (SelectMany).
	Arg A `json:"arg,omitempty"`
}

type mergeState[A any] struct {
	OuterDone bool            `json:"outer_done"`
	Done      []bool          `json:"done,omitempty"`
	NextSlot  int             `json:"next_slot,omitempty"`
	MaxKey    int             `json:"max_key,omitempty"`
	Inners    []innerEntry[A] `json:"inners,omitempty"`
}

// replayable is implemented by outer values that an operator re-emits after
// a load with the same key.
type replayable interface {
	replayKey() int
}

func replayKey(v any) int {
	if r, ok := v.(replayable); ok {
		return r.replayKey()
	}
	return 0
}

// mergeSink forwards values from every input in arrival order. Static
// inputs are fixed at build time; dynamic inners are projected from the
// values of an outer stream and occupy slots after it.
type mergeSink[A, T any] struct {
	Sink[T]
	operator string

	// static inputs (Merge)
	done      []bool
	remaining int

	// dynamic inners (MergeAll, SelectMany)
	dynamic   bool
	project   func(A) (Observable[T], error)
	keepArgs  bool
	outer     Subscription
	outerDone bool
	active    int
	nextSlot  int
	maxKey    int
	inners    map[int]*innerInput[A, T]
	pending   []innerEntry[A]
}

// Merge forwards the values of every source as they arrive and completes
// when all sources have completed. An error from any source disposes the
// others and terminates the stream.
func Merge[T any](sources ...Observable[T]) Observable[T] {
	requireArg(len(sources) > 0, "Merge", "sources", "must not be empty")
	for _, src := range sources {
		requireArg(src != nil, "Merge", "sources", "must not contain nil")
	}
	return ObservableFunc[T](func(o Observer[T]) Subscription {
		s := &mergeSink[struct{}, T]{operator: "merge", done: make([]bool, len(sources)), remaining: len(sources)}
		s.SetObserver(o)
		for i, src := range sources {
			s.AddInput(src.Subscribe(&staticInput[T]{parent: s, index: i}))
		}
		return s
	})
}

// MergeAll subscribes to every inner stream as soon as the outer produces
// it. It completes once the outer and every inner have completed.
//
// A checkpoint restores live inners only when the outer re-emits them on
// load, as the Window operators do. Saving any other live inner fails with
// ErrNotRestorable; use SelectMany, which re-creates inners from the saved
// outer values.
func MergeAll[T any](sources Observable[Observable[T]]) Observable[T] {
	requireArg(sources != nil, "MergeAll", "sources", "must not be nil")
	return newDynamicMerge(sources, "merge_all", false, func(inner Observable[T]) (Observable[T], error) {
		return inner, nil
	})
}

// SelectMany projects each value to a stream and merges the results.
//
// The values behind live inners are saved with the graph (window values are
// matched to their re-emitted windows instead), so after a load selector is
// called again for each and the new inners resume from the saved state of
// the old ones.
func SelectMany[T, R any](src Observable[T], selector func(T) (Observable[R], error)) Observable[R] {
	requireArg(src != nil, "SelectMany", "src", "must not be nil")
	requireArg(selector != nil, "SelectMany", "selector", "must not be nil")
	return newDynamicMerge(src, "select_many", true, selector)
}

func newDynamicMerge[A, T any](src Observable[A], operator string, keepArgs bool, project func(A) (Observable[T], error)) Observable[T] {
	return ObservableFunc[T](func(o Observer[T]) Subscription {
		s := &mergeSink[A, T]{
			operator: operator,
			dynamic:  true,
			project:  project,
			keepArgs: keepArgs,
			nextSlot: 1,
			inners:   make(map[int]*innerInput[A, T]),
		}
		s.SetObserver(o)
		s.outer = src.Subscribe(&outerInput[A, T]{parent: s})
		s.AddInput(s.outer)
		return s
	})
}

func (s *mergeSink[A, T]) Start() {
	if s.dynamic {
		s.startDynamic()
		return
	}

	inputs := s.Inputs()
	for i, done := range s.done {
		if done {
			inputs[i].Dispose()
		}
	}
	if s.remaining == 0 {
		s.Schedule(0, s.ForwardCompleted)
	}
}

// startDynamic re-creates the inners that were live at the save. Keyed
// inners wait for the outer to re-emit their value.
func (s *mergeSink[A, T]) startDynamic() {
	var waiting []innerEntry[A]
	for _, e := range s.pending {
		if e.Key != 0 && !s.outerDone {
			waiting = append(waiting, e)
			continue
		}
		if e.Key != 0 {
			s.active--
			continue
		}
		s.subscribeInner(e.Arg, 0, e.Slot, true)
		if s.Disposed() {
			return
		}
	}
	s.pending = waiting

	if s.outerDone {
		s.outer.Dispose()
		if s.active == 0 {
			s.Schedule(0, s.ForwardCompleted)
		}
	}
}

// subscribeInner projects v and attaches the inner at slot. With restore the
// inner loads the state saved for that slot.
func (s *mergeSink[A, T]) subscribeInner(v A, key, slot int, restore bool) {
	obs, err := invoke(func() (Observable[T], error) { return s.project(v) })
	if err == nil && obs == nil {
		err = &ArgumentError{Operator: s.operator, Arg: "selector", Reason: "returned a nil observable"}
	}
	if err != nil {
		s.Fail(s.operator, err)
		return
	}

	in := &innerInput[A, T]{parent: s, slot: slot, key: key}
	if s.keepArgs && key == 0 {
		in.arg = v
	}
	in.sub = obs.Subscribe(in)
	s.inners[slot] = in
	if !restore {
		s.InitializeChild(in.sub, slot)
		return
	}
	if err := s.RestoreChild(in.sub, slot); err != nil {
		s.ForwardError(err)
	}
}

func (s *mergeSink[A, T]) next(v T) {
	if s.Accepting() {
		s.ForwardNext(v)
	}
}

func (s *mergeSink[A, T]) fail(err error) {
	if s.Accepting() {
		s.ForwardError(err)
	}
}

type staticInput[T any] struct {
	parent *mergeSink[struct{}, T]
	index  int
}

func (in *staticInput[T]) OnNext(v T)        { in.parent.next(v) }
func (in *staticInput[T]) OnError(err error) { in.parent.fail(err) }

func (in *staticInput[T]) OnCompleted() {
	s := in.parent
	if !s.Accepting() || s.done[in.index] {
		return
	}
	s.done[in.index] = true
	s.remaining--
	if s.remaining == 0 {
		s.ForwardCompleted()
	}
}

type outerInput[A, T any] struct {
	parent *mergeSink[A, T]
}

func (in *outerInput[A, T]) OnNext(v A) {
	s := in.parent
	if !s.Accepting() {
		return
	}

	key := replayKey(v)
	if key != 0 {
		for i, e := range s.pending {
			if e.Key == key {
				s.pending = append(s.pending[:i], s.pending[i+1:]...)
				s.subscribeInner(v, key, e.Slot, true)
				return
			}
		}
		if key <= s.maxKey {
			// Re-emitted, but its inner had completed before the save.
			return
		}
		s.maxKey = key
	}

	s.active++
	slot := s.nextSlot
	s.nextSlot++
	s.subscribeInner(v, key, slot, false)
}

func (in *outerInput[A, T]) OnError(err error) { in.parent.fail(err) }

func (in *outerInput[A, T]) OnCompleted() {
	s := in.parent
	if !s.Accepting() {
		return
	}
	s.outerDone = true
	// Windows still waiting to be re-emitted never will be.
	s.active -= len(s.pending)
	s.pending = nil
	if s.active == 0 {
		s.ForwardCompleted()
	}
}

type innerInput[A, T any] struct {
	parent *mergeSink[A, T]
	sub    Subscription
	slot   int
	key    int
	arg    A
	done   bool
}

func (in *innerInput[A, T]) OnNext(v T)        { in.parent.next(v) }
func (in *innerInput[A, T]) OnError(err error) { in.parent.fail(err) }

func (in *innerInput[A, T]) OnCompleted() {
	s := in.parent
	if !s.Accepting() || in.done {
		return
	}
	in.done = true
	s.active--
	delete(s.inners, in.slot)
	s.RemoveInput(in.sub)
	if s.outerDone && s.active == 0 {
		s.ForwardCompleted()
	}
}

func (s *mergeSink[A, T]) SaveState(w checkpoint.StateWriter) error {
	st := mergeState[A]{OuterDone: s.outerDone, Done: s.done}
	if s.dynamic {
		st.NextSlot, st.MaxKey = s.nextSlot, s.maxKey
		slots := make([]int, 0, len(s.inners))
		for slot := range s.inners {
			slots = append(slots, slot)
		}
		sort.Ints(slots)
		for _, slot := range slots {
			in := s.inners[slot]
			if in.key == 0 && !s.keepArgs {
				return fmt.Errorf("%w: live inner stream at slot %d", ErrNotRestorable, slot)
			}
			st.Inners = append(st.Inners, innerEntry[A]{Slot: slot, Key: in.key, Arg: in.arg})
		}
		st.Inners = append(st.Inners, s.pending...)
	}
	return w.Write(st)
}

func (s *mergeSink[A, T]) LoadState(r checkpoint.StateReader) error {
	var st mergeState[A]
	found, err := r.Read(&st)
	if err != nil || !found {
		return err
	}
	s.outerDone = st.OuterDone
	if s.dynamic {
		if st.NextSlot > s.nextSlot {
			s.nextSlot = st.NextSlot
		}
		s.maxKey = st.MaxKey
		s.pending = st.Inners
		s.active = len(st.Inners)
		return nil
	}
	if len(st.Done) == len(s.done) {
		s.done = st.Done
		s.remaining = 0
		for _, d := range s.done {
			if !d {
				s.remaining++
			}
		}
	}
	return nil
}
