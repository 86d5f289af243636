package rxgraph

import (
	"context"

	"github.com/randalmurphal/rxgraph/pkg/rxgraph/checkpoint"
	"github.com/randalmurphal/rxgraph/pkg/rxgraph/scheduler"
)

// recNode is a bare node that records when it starts and carries one int of
// checkpointable state.
type recNode struct {
	Node
	started *[]string
	value   int
}

func newRecNode(started *[]string, inputs ...Subscription) *recNode {
	p := &recNode{started: started}
	for _, in := range inputs {
		p.AddInput(in)
	}
	return p
}

func (p *recNode) Start() {
	if p.started != nil {
		*p.started = append(*p.started, p.NodeID())
	}
}

func (p *recNode) SaveState(w checkpoint.StateWriter) error {
	return w.Write(p.value)
}

func (p *recNode) LoadState(r checkpoint.StateReader) error {
	_, err := r.Read(&p.value)
	return err
}

// stateless is a node with no checkpoint state.
type stateless struct {
	Node
}

// collect returns an observer appending every notification to out.
func collect[T any](out *[]Notification[T]) Observer[T] {
	return NotificationObserver(func(n Notification[T]) {
		*out = append(*out, n)
	})
}

// testCtx creates a root context on a fresh virtual scheduler.
func testCtx() (Context, *scheduler.VirtualScheduler) {
	v := scheduler.NewVirtualScheduler()
	return NewContext(context.Background(), v), v
}
