package rxgraph_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/randalmurphal/rxgraph/pkg/rxgraph"
	"github.com/randalmurphal/rxgraph/pkg/rxgraph/rxtest"
	"github.com/randalmurphal/rxgraph/pkg/rxgraph/scheduler"
)

// oneToNine produces 1..9 at 210..290 and completes at 300.
func oneToNine(s *rxtest.TestScheduler) *rxtest.HotObservable[int] {
	var msgs []rxtest.Recorded[int]
	for i := 1; i <= 9; i++ {
		msgs = append(msgs, rxtest.OnNext(scheduler.Time(200+10*i), i))
	}
	msgs = append(msgs, rxtest.OnCompleted[int](300))
	return rxtest.Hot(s, msgs...)
}

func TestBuffer_Count(t *testing.T) {
	s := rxtest.NewTestScheduler()
	xs := oneToNine(s)

	res := rxtest.Start(s, func() rxgraph.Observable[[]int] { return rxgraph.Buffer[int](xs, 3) })

	assert.Equal(t, []rxtest.Recorded[[]int]{
		rxtest.OnNext(230, []int{1, 2, 3}),
		rxtest.OnNext(260, []int{4, 5, 6}),
		rxtest.OnNext(290, []int{7, 8, 9}),
		rxtest.OnCompleted[[]int](300),
	}, res.Messages())
	assert.Equal(t, []rxtest.SubscriptionLog{rxtest.Sub(200, 300)}, xs.Subscriptions())
}

func TestBufferCount_Overlapping(t *testing.T) {
	s := rxtest.NewTestScheduler()
	xs := rxtest.Hot(s,
		rxtest.OnNext(210, 1),
		rxtest.OnNext(220, 2),
		rxtest.OnNext(230, 3),
		rxtest.OnNext(240, 4),
		rxtest.OnNext(250, 5),
		rxtest.OnNext(260, 6),
		rxtest.OnNext(270, 7),
		rxtest.OnCompleted[int](280),
	)

	res := rxtest.Start(s, func() rxgraph.Observable[[]int] { return rxgraph.BufferCount[int](xs, 3, 2) })

	assert.Equal(t, []rxtest.Recorded[[]int]{
		rxtest.OnNext(230, []int{1, 2, 3}),
		rxtest.OnNext(250, []int{3, 4, 5}),
		rxtest.OnNext(270, []int{5, 6, 7}),
		rxtest.OnNext(280, []int{7}),
		rxtest.OnCompleted[[]int](280),
	}, res.Messages())
}

func TestBufferCount_SkipLargerThanCountDropsValues(t *testing.T) {
	s := rxtest.NewTestScheduler()
	xs := rxtest.Hot(s,
		rxtest.OnNext(210, 1),
		rxtest.OnNext(220, 2),
		rxtest.OnNext(230, 3),
		rxtest.OnNext(240, 4),
		rxtest.OnNext(250, 5),
		rxtest.OnNext(260, 6),
		rxtest.OnNext(270, 7),
		rxtest.OnCompleted[int](280),
	)

	res := rxtest.Start(s, func() rxgraph.Observable[[]int] { return rxgraph.BufferCount[int](xs, 2, 3) })

	assert.Equal(t, []rxtest.Recorded[[]int]{
		rxtest.OnNext(220, []int{1, 2}),
		rxtest.OnNext(250, []int{4, 5}),
		rxtest.OnNext(280, []int{7}),
		rxtest.OnCompleted[[]int](280),
	}, res.Messages())
}

func TestBuffer_ErrorDiscardsOpenBuffer(t *testing.T) {
	s := rxtest.NewTestScheduler()
	boom := errors.New("boom")
	xs := rxtest.Hot(s,
		rxtest.OnNext(210, 1),
		rxtest.OnNext(220, 2),
		rxtest.OnError[int](230, boom),
	)

	res := rxtest.Start(s, func() rxgraph.Observable[[]int] { return rxgraph.Buffer[int](xs, 3) })

	assert.Equal(t, []rxtest.Recorded[[]int]{rxtest.OnError[[]int](230, boom)}, res.Messages())
}

func TestBuffer_ResumesOpenBuffer(t *testing.T) {
	s := rxtest.NewTestScheduler()
	xs := oneToNine(s)

	res, cp := rxtest.StartWithCheckpoint(s, func() rxgraph.Observable[[]int] {
		return rxgraph.Buffer[int](xs, 3)
	}, 245, 255)

	// 5 arrives while no graph is running.
	assert.Equal(t, []rxtest.Recorded[[]int]{
		rxtest.OnNext(230, []int{1, 2, 3}),
		rxtest.OnNext(270, []int{4, 6, 7}),
		rxtest.OnNext(300, []int{8, 9}),
		rxtest.OnCompleted[[]int](300),
	}, res.Messages())
	assert.Equal(t, 1, cp.Nodes)
}

func TestBuffer_NoOpReload(t *testing.T) {
	s := rxtest.NewTestScheduler()
	plain := rxtest.Start(s, func() rxgraph.Observable[[]int] {
		return rxgraph.BufferCount[int](oneToNine(s), 3, 2)
	})

	s = rxtest.NewTestScheduler()
	xs := oneToNine(s)
	reloaded, _ := rxtest.StartWithCheckpoint(s, func() rxgraph.Observable[[]int] {
		return rxgraph.BufferCount[int](xs, 3, 2)
	}, 255, 255)

	assert.Equal(t, plain.Messages(), reloaded.Messages())
}

func TestBufferTime_EmitsEmptyBuffersOnTimer(t *testing.T) {
	s := rxtest.NewTestScheduler()
	xs := rxtest.Hot(s,
		rxtest.OnNext(210, 1),
		rxtest.OnNext(250, 2),
		rxtest.OnNext(320, 3),
		rxtest.OnNext(450, 4),
		rxtest.OnCompleted[int](650),
	)

	res := rxtest.Start(s, func() rxgraph.Observable[[]int] { return rxgraph.BufferTime[int](xs, 100, 100) })

	assert.Equal(t, []rxtest.Recorded[[]int]{
		rxtest.OnNext(300, []int{1, 2}),
		rxtest.OnNext(400, []int{3}),
		rxtest.OnNext(500, []int{4}),
		rxtest.OnNext(600, []int{}),
		rxtest.OnCompleted[[]int](650),
	}, res.Messages())
}

func TestBufferTime_Overlapping(t *testing.T) {
	s := rxtest.NewTestScheduler()
	xs := rxtest.Hot(s,
		rxtest.OnNext(220, 1),
		rxtest.OnNext(270, 2),
		rxtest.OnNext(320, 3),
		rxtest.OnCompleted[int](340),
	)

	res := rxtest.Start(s, func() rxgraph.Observable[[]int] { return rxgraph.BufferTime[int](xs, 100, 50) })

	assert.Equal(t, []rxtest.Recorded[[]int]{
		rxtest.OnNext(300, []int{1, 2}),
		rxtest.OnNext(340, []int{2, 3}),
		rxtest.OnNext(340, []int{3}),
		rxtest.OnCompleted[[]int](340),
	}, res.Messages())
}

func TestBufferTime_ResumeReanchorsTimer(t *testing.T) {
	s := rxtest.NewTestScheduler()
	xs := rxtest.Hot(s,
		rxtest.OnNext(210, 1),
		rxtest.OnNext(250, 2),
		rxtest.OnNext(350, 3),
		rxtest.OnCompleted[int](400),
	)

	res, _ := rxtest.StartWithCheckpoint(s, func() rxgraph.Observable[[]int] {
		return rxgraph.BufferTime[int](xs, 100, 100)
	}, 260, 300)

	// 40 ticks were left on the span at the save; the clock resumes at 300.
	assert.Equal(t, []rxtest.Recorded[[]int]{
		rxtest.OnNext(340, []int{1, 2}),
		rxtest.OnNext(400, []int{3}),
		rxtest.OnCompleted[[]int](400),
	}, res.Messages())
}

func TestBufferTimeOrCount_RestartsTimerAfterCountFlush(t *testing.T) {
	s := rxtest.NewTestScheduler()
	xs := rxtest.Hot(s,
		rxtest.OnNext(210, 1),
		rxtest.OnNext(220, 2),
		rxtest.OnNext(350, 3),
		rxtest.OnCompleted[int](400),
	)

	res := rxtest.Start(s, func() rxgraph.Observable[[]int] {
		return rxgraph.BufferTimeOrCount[int](xs, 100, 2)
	})

	assert.Equal(t, []rxtest.Recorded[[]int]{
		rxtest.OnNext(220, []int{1, 2}),
		rxtest.OnNext(320, []int{}),
		rxtest.OnNext(400, []int{3}),
		rxtest.OnCompleted[[]int](400),
	}, res.Messages())
}

func TestBuffer_InvalidArguments(t *testing.T) {
	src := rxgraph.Never[int]()
	assert.PanicsWithError(t, "BufferCount: count must be positive", func() { rxgraph.BufferCount(src, 0, 1) })
	assert.PanicsWithError(t, "BufferCount: skip must be positive", func() { rxgraph.BufferCount(src, 1, 0) })
	assert.PanicsWithError(t, "BufferTime: span must be positive", func() { rxgraph.BufferTime(src, 0, 1) })
	assert.PanicsWithError(t, "BufferTimeOrCount: count must be positive", func() { rxgraph.BufferTimeOrCount(src, 1, 0) })

	var err error
	func() {
		defer func() { err, _ = recover().(error) }()
		rxgraph.Buffer(src, -1)
	}()
	assert.ErrorIs(t, err, rxgraph.ErrInvalidArgument)
}
