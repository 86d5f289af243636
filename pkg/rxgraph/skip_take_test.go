package rxgraph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/randalmurphal/rxgraph/pkg/rxgraph"
	"github.com/randalmurphal/rxgraph/pkg/rxgraph/rxtest"
)

func TestSkip(t *testing.T) {
	s := rxtest.NewTestScheduler()
	xs := oneToNine(s)

	res := rxtest.Start(s, func() rxgraph.Observable[int] {
		return rxgraph.Take(rxgraph.Skip[int](xs, 6), 2)
	})

	assert.Equal(t, []rxtest.Recorded[int]{
		rxtest.OnNext(270, 7),
		rxtest.OnNext(280, 8),
		rxtest.OnCompleted[int](280),
	}, res.Messages())
	assert.Equal(t, []rxtest.SubscriptionLog{rxtest.Sub(200, 280)}, xs.Subscriptions())
}

func TestTake_Zero(t *testing.T) {
	s := rxtest.NewTestScheduler()
	xs := oneToNine(s)

	res := rxtest.Start(s, func() rxgraph.Observable[int] { return rxgraph.Take[int](xs, 0) })

	assert.Equal(t, []rxtest.Recorded[int]{rxtest.OnCompleted[int](200)}, res.Messages())
	assert.Equal(t, []rxtest.SubscriptionLog{rxtest.Sub(200, 200)}, xs.Subscriptions())
}

func TestSkipTake_ResumeCounters(t *testing.T) {
	s := rxtest.NewTestScheduler()
	xs := oneToNine(s)

	res, cp := rxtest.StartWithCheckpoint(s, func() rxgraph.Observable[int] {
		return rxgraph.Take(rxgraph.Skip[int](xs, 2), 4)
	}, 235, 255)

	// Skip is exhausted before the save and Take has three left; 4 and 5
	// arrive while no graph is running.
	assert.Equal(t, 2, cp.Nodes)
	assert.Equal(t, []rxtest.Recorded[int]{
		rxtest.OnNext(230, 3),
		rxtest.OnNext(260, 6),
		rxtest.OnNext(270, 7),
		rxtest.OnNext(280, 8),
		rxtest.OnCompleted[int](280),
	}, res.Messages())
}

func TestTake_FinishedBeforeSaveIsNotResumed(t *testing.T) {
	s := rxtest.NewTestScheduler()
	xs := oneToNine(s)

	res, cp := rxtest.StartWithCheckpoint(s, func() rxgraph.Observable[int] {
		return rxgraph.Take[int](xs, 2)
	}, 250, 260)

	assert.Nil(t, cp.Container)
	assert.Equal(t, []rxtest.Recorded[int]{
		rxtest.OnNext(210, 1),
		rxtest.OnNext(220, 2),
		rxtest.OnCompleted[int](220),
	}, res.Messages())
	assert.Len(t, xs.Subscriptions(), 1)
}

func TestSkipTake_NegativePanics(t *testing.T) {
	assert.PanicsWithError(t, "Skip: n must not be negative", func() { rxgraph.Skip(rxgraph.Never[int](), -1) })
	assert.PanicsWithError(t, "Take: n must not be negative", func() { rxgraph.Take(rxgraph.Never[int](), -1) })
}
