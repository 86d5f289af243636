package rxgraph_test

import (
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/randalmurphal/rxgraph/pkg/rxgraph"
	"github.com/randalmurphal/rxgraph/pkg/rxgraph/rxtest"
)

func TestSelect(t *testing.T) {
	s := rxtest.NewTestScheduler()
	xs := rxtest.Hot(s,
		rxtest.OnNext(210, 1),
		rxtest.OnNext(220, 2),
		rxtest.OnCompleted[int](230),
	)

	res := rxtest.Start(s, func() rxgraph.Observable[string] {
		return rxgraph.Map[int](xs, strconv.Itoa)
	})

	assert.Equal(t, []rxtest.Recorded[string]{
		rxtest.OnNext(210, "1"),
		rxtest.OnNext(220, "2"),
		rxtest.OnCompleted[string](230),
	}, res.Messages())
}

func TestSelect_ErrorTerminates(t *testing.T) {
	s := rxtest.NewTestScheduler()
	boom := errors.New("boom")
	xs := rxtest.Hot(s,
		rxtest.OnNext(210, 1),
		rxtest.OnNext(220, 2),
		rxtest.OnNext(230, 3),
	)

	res := rxtest.Start(s, func() rxgraph.Observable[int] {
		return rxgraph.Select[int](xs, func(v int) (int, error) {
			if v == 2 {
				return 0, boom
			}
			return v, nil
		})
	})

	assert.Equal(t, []rxtest.Recorded[int]{
		rxtest.OnNext(210, 1),
		rxtest.OnError[int](220, boom),
	}, res.Messages())
	assert.Equal(t, []rxtest.SubscriptionLog{rxtest.Sub(200, 220)}, xs.Subscriptions())
}

func TestSelect_PanicBecomesError(t *testing.T) {
	s := rxtest.NewTestScheduler()
	xs := rxtest.Hot(s, rxtest.OnNext(210, 0))

	res := rxtest.Start(s, func() rxgraph.Observable[int] {
		return rxgraph.Map[int](xs, func(v int) int { return 10 / v })
	})

	msgs := res.Messages()
	if assert.Len(t, msgs, 1) {
		var perr *rxgraph.CallbackPanicError
		assert.ErrorAs(t, msgs[0].Value.Err, &perr)
	}
}

func TestWhere(t *testing.T) {
	s := rxtest.NewTestScheduler()
	xs := oneToNine(s)

	res := rxtest.Start(s, func() rxgraph.Observable[int] {
		return rxgraph.Filter[int](xs, func(v int) bool { return v%3 == 0 })
	})

	assert.Equal(t, []rxtest.Recorded[int]{
		rxtest.OnNext(230, 3),
		rxtest.OnNext(260, 6),
		rxtest.OnNext(290, 9),
		rxtest.OnCompleted[int](300),
	}, res.Messages())
}

func TestWhere_ErrorTerminates(t *testing.T) {
	s := rxtest.NewTestScheduler()
	boom := errors.New("boom")
	xs := oneToNine(s)

	res := rxtest.Start(s, func() rxgraph.Observable[int] {
		return rxgraph.Where[int](xs, func(v int) (bool, error) {
			if v > 1 {
				return false, boom
			}
			return true, nil
		})
	})

	assert.Equal(t, []rxtest.Recorded[int]{
		rxtest.OnNext(210, 1),
		rxtest.OnError[int](220, boom),
	}, res.Messages())
}
