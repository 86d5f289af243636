package rxgraph

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/rxgraph/pkg/rxgraph/scheduler"
)

// blockingStart is a node whose Start blocks until released.
type blockingStart struct {
	Node
	entered chan struct{}
	release chan struct{}
}

func (b *blockingStart) Start() {
	close(b.entered)
	<-b.release
}

func newLogical(t *testing.T) *scheduler.LogicalScheduler {
	t.Helper()
	p := scheduler.NewPhysicalScheduler(1)
	l := p.NewLogical()
	t.Cleanup(func() {
		l.Dispose()
		p.Close()
	})
	return l
}

func TestGraph_StartWaitsForRunningInitialize(t *testing.T) {
	l := newLogical(t)
	root := &blockingStart{entered: make(chan struct{}), release: make(chan struct{})}
	g := NewGraph(l)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-root.entered
		cancel()
		time.Sleep(10 * time.Millisecond)
		close(root.release)
	}()

	// Initialize had begun when ctx ended, so Start waits for it.
	require.NoError(t, g.Start(ctx, root))
	assert.Equal(t, 1, g.Nodes())
	assert.Equal(t, Subscription(root), g.Root())
	g.Dispose()
}

func TestGraph_StartAgainAfterTimeout(t *testing.T) {
	l := newLogical(t)
	blocked := make(chan struct{})
	release := make(chan struct{})
	l.Schedule(func() {
		close(blocked)
		<-release
	})
	<-blocked

	g := NewGraph(l)
	root := newRecNode(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := g.Start(ctx, root)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, g.Root())
	assert.False(t, root.Disposed())

	close(release)
	require.NoError(t, g.Start(context.Background(), root))
	assert.Equal(t, 1, g.Nodes())
	g.Dispose()
	assert.True(t, root.Disposed())
}
