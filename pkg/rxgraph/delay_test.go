package rxgraph_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/randalmurphal/rxgraph/pkg/rxgraph"
	"github.com/randalmurphal/rxgraph/pkg/rxgraph/rxtest"
)

func TestDelay(t *testing.T) {
	s := rxtest.NewTestScheduler()
	xs := rxtest.Hot(s,
		rxtest.OnNext(210, 1),
		rxtest.OnNext(220, 2),
		rxtest.OnCompleted[int](230),
	)

	res := rxtest.Start(s, func() rxgraph.Observable[int] { return rxgraph.Delay[int](xs, 30) })

	assert.Equal(t, []rxtest.Recorded[int]{
		rxtest.OnNext(240, 1),
		rxtest.OnNext(250, 2),
		rxtest.OnCompleted[int](260),
	}, res.Messages())
}

func TestDelay_ErrorIsNotDelayed(t *testing.T) {
	s := rxtest.NewTestScheduler()
	boom := errors.New("boom")
	xs := rxtest.Hot(s,
		rxtest.OnNext(210, 1),
		rxtest.OnError[int](220, boom),
	)

	res := rxtest.Start(s, func() rxgraph.Observable[int] { return rxgraph.Delay[int](xs, 30) })

	assert.Equal(t, []rxtest.Recorded[int]{rxtest.OnError[int](220, boom)}, res.Messages())
}

func TestDelay_ResumeReanchorsPendingItems(t *testing.T) {
	s := rxtest.NewTestScheduler()
	xs := rxtest.Hot(s,
		rxtest.OnNext(210, 1),
		rxtest.OnNext(220, 2),
		rxtest.OnCompleted[int](230),
	)

	res, cp := rxtest.StartWithCheckpoint(s, func() rxgraph.Observable[int] {
		return rxgraph.Delay[int](xs, 30)
	}, 235, 300)

	assert.Equal(t, 1, cp.Nodes)
	assert.Equal(t, []rxtest.Recorded[int]{
		rxtest.OnNext(305, 1),
		rxtest.OnNext(315, 2),
		rxtest.OnCompleted[int](325),
	}, res.Messages())
	// The source had completed, so the rebuilt subscription is dropped.
	assert.Equal(t, []rxtest.SubscriptionLog{
		rxtest.Sub(200, 230),
		rxtest.Sub(300, 300),
	}, xs.Subscriptions())
}

func TestDelay_ZeroKeepsOrder(t *testing.T) {
	s := rxtest.NewTestScheduler()
	res := rxtest.Start(s, func() rxgraph.Observable[int] {
		return rxgraph.Delay(rxgraph.FromSlice([]int{1, 2, 3}), 0)
	})

	assert.Equal(t, []rxtest.Recorded[int]{
		rxtest.OnNext(200, 1),
		rxtest.OnNext(200, 2),
		rxtest.OnNext(200, 3),
		rxtest.OnCompleted[int](200),
	}, res.Messages())
}

func TestDelay_NegativePanics(t *testing.T) {
	assert.PanicsWithError(t, "Delay: d must not be negative", func() {
		rxgraph.Delay(rxgraph.Never[int](), -1)
	})
}
