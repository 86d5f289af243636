package rxgraph

import "github.com/randalmurphal/rxgraph/pkg/rxgraph/checkpoint"

// combineSlot is the per-source checkpoint state of CombineLatest.
type combineSlot[T any] struct {
	Filled bool `json:"filled"`
	Value  T    `json:"value"`
	Done   bool `json:"done"`
}

type combineSink[T, R any] struct {
	Sink[R]
	selector func([]T) (R, error)
	slots    []combineSlot[T]
	filled   int
	done     int
}

// CombineLatest emits selector applied to the latest value of every source
// each time any source produces, once all sources have produced at least
// once. It completes when every source has completed; an error from any
// source or from selector disposes the others and terminates the stream.
func CombineLatest[T, R any](selector func([]T) (R, error), sources ...Observable[T]) Observable[R] {
	requireArg(selector != nil, "CombineLatest", "selector", "must not be nil")
	requireArg(len(sources) > 0, "CombineLatest", "sources", "must not be empty")
	for _, src := range sources {
		requireArg(src != nil, "CombineLatest", "sources", "must not contain nil")
	}

	return ObservableFunc[R](func(o Observer[R]) Subscription {
		s := &combineSink[T, R]{
			selector: selector,
			slots:    make([]combineSlot[T], len(sources)),
		}
		s.SetObserver(o)
		for i, src := range sources {
			s.AddInput(src.Subscribe(&combineInput[T, R]{parent: s, index: i}))
		}
		return s
	})
}

// Start drops the rebuilt subscriptions of sources that had already
// completed when the state was saved.
func (s *combineSink[T, R]) Start() {
	inputs := s.Inputs()
	for i, slot := range s.slots {
		if slot.Done {
			s.done++
			inputs[i].Dispose()
		}
	}
	if s.done == len(s.slots) {
		s.Schedule(0, s.ForwardCompleted)
	}
}

type combineInput[T, R any] struct {
	parent *combineSink[T, R]
	index  int
}

func (in *combineInput[T, R]) OnNext(v T) {
	s := in.parent
	if !s.Accepting() {
		return
	}
	slot := &s.slots[in.index]
	if slot.Done {
		return
	}
	if !slot.Filled {
		slot.Filled = true
		s.filled++
	}
	slot.Value = v
	if s.filled < len(s.slots) {
		return
	}

	values := make([]T, len(s.slots))
	for i := range s.slots {
		values[i] = s.slots[i].Value
	}
	r, err := invoke(func() (R, error) { return s.selector(values) })
	if err != nil {
		s.Fail("combine_latest", err)
		return
	}
	s.ForwardNext(r)
}

func (in *combineInput[T, R]) OnError(err error) {
	if in.parent.Accepting() {
		in.parent.ForwardError(err)
	}
}

func (in *combineInput[T, R]) OnCompleted() {
	s := in.parent
	if !s.Accepting() || s.slots[in.index].Done {
		return
	}
	s.slots[in.index].Done = true
	s.done++
	if s.done == len(s.slots) {
		s.ForwardCompleted()
	}
}

func (s *combineSink[T, R]) SaveState(w checkpoint.StateWriter) error {
	return w.Write(s.slots)
}

func (s *combineSink[T, R]) LoadState(r checkpoint.StateReader) error {
	var slots []combineSlot[T]
	found, err := r.Read(&slots)
	if err != nil || !found {
		return err
	}
	if len(slots) != len(s.slots) {
		return &ArgumentError{Operator: "CombineLatest", Arg: "state",
			Reason: "has a different number of sources than the graph"}
	}
	s.slots = slots
	s.filled = 0
	for _, slot := range slots {
		if slot.Filled {
			s.filled++
		}
	}
	return nil
}
