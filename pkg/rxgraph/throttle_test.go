package rxgraph_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/randalmurphal/rxgraph/pkg/rxgraph"
	"github.com/randalmurphal/rxgraph/pkg/rxgraph/rxtest"
)

func TestThrottleTime(t *testing.T) {
	s := rxtest.NewTestScheduler()
	xs := rxtest.Hot(s,
		rxtest.OnNext(210, 1),
		rxtest.OnNext(220, 2),
		rxtest.OnNext(250, 3),
		rxtest.OnNext(300, 4),
		rxtest.OnCompleted[int](310),
	)

	res := rxtest.Start(s, func() rxgraph.Observable[int] {
		return rxgraph.ThrottleTime[int](xs, 20)
	})

	// 2 replaces 1 before its duration ends; 4 is flushed by completion.
	assert.Equal(t, []rxtest.Recorded[int]{
		rxtest.OnNext(240, 2),
		rxtest.OnNext(270, 3),
		rxtest.OnNext(310, 4),
		rxtest.OnCompleted[int](310),
	}, res.Messages())
}

func TestThrottle_DurationSelectorError(t *testing.T) {
	s := rxtest.NewTestScheduler()
	boom := errors.New("boom")
	xs := rxtest.Hot(s,
		rxtest.OnNext(210, 1),
		rxtest.OnNext(220, 2),
	)

	res := rxtest.Start(s, func() rxgraph.Observable[int] {
		return rxgraph.Throttle[int, int](xs, func(v int) (rxgraph.Observable[int], error) {
			if v == 2 {
				return nil, boom
			}
			return rxgraph.Never[int](), nil
		})
	})

	assert.Equal(t, []rxtest.Recorded[int]{rxtest.OnError[int](220, boom)}, res.Messages())
	assert.Equal(t, []rxtest.SubscriptionLog{rxtest.Sub(200, 220)}, xs.Subscriptions())
}

func TestThrottle_DurationErrorTerminates(t *testing.T) {
	s := rxtest.NewTestScheduler()
	boom := errors.New("boom")
	xs := rxtest.Hot(s, rxtest.OnNext(210, 1))
	ds := rxtest.Cold(s, rxtest.OnError[string](5, boom))

	res := rxtest.Start(s, func() rxgraph.Observable[int] {
		return rxgraph.Throttle[int, string](xs, func(int) (rxgraph.Observable[string], error) {
			return ds, nil
		})
	})

	assert.Equal(t, []rxtest.Recorded[int]{rxtest.OnError[int](215, boom)}, res.Messages())
	assert.Equal(t, []rxtest.SubscriptionLog{rxtest.Sub(210, 215)}, ds.Subscriptions())
}

func TestThrottle_NilDurationFails(t *testing.T) {
	s := rxtest.NewTestScheduler()
	xs := rxtest.Hot(s, rxtest.OnNext(210, 1))

	res := rxtest.Start(s, func() rxgraph.Observable[int] {
		return rxgraph.Throttle[int, int](xs, func(int) (rxgraph.Observable[int], error) {
			return nil, nil
		})
	})

	msgs := res.Messages()
	if assert.Len(t, msgs, 1) {
		assert.ErrorIs(t, msgs[0].Value.Err, rxgraph.ErrInvalidArgument)
	}
}

func TestThrottleTime_ResumeContinuesPendingDuration(t *testing.T) {
	s := rxtest.NewTestScheduler()
	xs := rxtest.Hot(s,
		rxtest.OnNext(210, 1),
		rxtest.OnNext(220, 2),
		rxtest.OnNext(270, 3),
		rxtest.OnCompleted[int](300),
	)

	res, cp := rxtest.StartWithCheckpoint(s, func() rxgraph.Observable[int] {
		return rxgraph.ThrottleTime[int](xs, 20)
	}, 225, 235)
	assert.Equal(t, []string{"0", "0/1"}, cp.Container.Keys())

	// 2 had 15 ticks of its duration left at the save; they run from the
	// load instant.
	assert.Equal(t, []rxtest.Recorded[int]{
		rxtest.OnNext(250, 2),
		rxtest.OnNext(290, 3),
		rxtest.OnCompleted[int](300),
	}, res.Messages())
}
