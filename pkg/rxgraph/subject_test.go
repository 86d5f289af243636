package rxgraph_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/rxgraph/pkg/rxgraph"
	"github.com/randalmurphal/rxgraph/pkg/rxgraph/rxtest"
	"github.com/randalmurphal/rxgraph/pkg/rxgraph/scheduler"
)

func TestSubject_DeliversOnSubscriberScheduler(t *testing.T) {
	s := rxtest.NewTestScheduler()
	subj := rxgraph.NewSubject[int]()
	s.ScheduleAbsolute(150, func() { subj.OnNext(0) })
	s.ScheduleAbsolute(210, func() { subj.OnNext(1) })
	s.ScheduleAbsolute(220, func() { subj.OnNext(2) })
	s.ScheduleAbsolute(230, subj.OnCompleted)
	s.ScheduleAbsolute(240, func() { subj.OnNext(3) })

	res := rxtest.Start(s, func() rxgraph.Observable[int] { return subj })

	assert.Equal(t, []rxtest.Recorded[int]{
		rxtest.OnNext(210, 1),
		rxtest.OnNext(220, 2),
		rxtest.OnCompleted[int](230),
	}, res.Messages())
	assert.False(t, subj.HasObservers())
}

func TestSubject_LateSubscriberGetsTerminal(t *testing.T) {
	boom := errors.New("boom")
	subj := rxgraph.NewSubject[int]()
	subj.OnError(boom)
	subj.OnCompleted()

	s := rxtest.NewTestScheduler()
	res := rxtest.Start(s, func() rxgraph.Observable[int] { return subj })

	assert.Equal(t, []rxtest.Recorded[int]{rxtest.OnError[int](200, boom)}, res.Messages())
}

func TestSubject_DisposeDetaches(t *testing.T) {
	s := rxtest.NewTestScheduler()
	subj := rxgraph.NewSubject[string]()
	obs := rxtest.NewObserver[string](s)

	sub := rxtest.Initialize(s, rxgraph.Map(rxgraph.Observable[string](subj), func(v string) string { return v + "!" }), obs)
	assert.True(t, subj.HasObservers())

	subj.OnNext("a")
	s.Start()
	sub.Dispose()
	assert.False(t, subj.HasObservers())

	subj.OnNext("b")
	s.Start()
	assert.Equal(t, []string{"a!"}, obs.Values())
}

func TestSubject_ConcurrentProducersAndDispose(t *testing.T) {
	p := scheduler.NewPhysicalScheduler(4)
	defer p.Close()
	l := p.NewLogical()
	defer l.Dispose()

	subj := rxgraph.NewSubject[int]()
	g := rxgraph.NewGraph(l)

	var delivered, late atomic.Int64
	var disposed atomic.Bool
	root := subj.Subscribe(rxgraph.ObserverFuncs[int]{
		Next: func(int) {
			if disposed.Load() {
				late.Add(1)
			}
			delivered.Add(1)
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, g.Start(ctx, root))

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for v := 0; ; v++ {
				select {
				case <-stop:
					return
				default:
					subj.OnNext(v)
				}
			}
		}()
	}

	require.Eventually(t, func() bool { return delivered.Load() >= 1000 }, 5*time.Second, time.Millisecond)
	g.Dispose()
	disposed.Store(true)

	time.Sleep(20 * time.Millisecond)
	close(stop)
	wg.Wait()

	// Only a delivery already running when Dispose returned may finish.
	assert.LessOrEqual(t, late.Load(), int64(1))
	assert.False(t, subj.HasObservers())
}
