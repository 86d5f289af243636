package rxgraph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/rxgraph/pkg/rxgraph/checkpoint"
)

func TestInitialize_AssignsPathsAndStartsLeavesFirst(t *testing.T) {
	ctx, _ := testCtx()
	var started []string
	root := newRecNode(&started,
		newRecNode(&started, newRecNode(&started)),
		newRecNode(&started),
	)

	n, err := Initialize(ctx, root)
	require.NoError(t, err)

	assert.Equal(t, 4, n)
	assert.Equal(t, []string{"0/0/0", "0/0", "0/1", "0"}, started)

	var ids []string
	Walk(root, func(s Subscription) { ids = append(ids, s.NodeID()) })
	assert.Equal(t, []string{"0", "0/0", "0/0/0", "0/1"}, ids)
}

func TestInitialize_NilRootPanics(t *testing.T) {
	ctx, _ := testCtx()
	assert.Panics(t, func() { _, _ = Initialize(ctx, nil) })
}

func TestSaveLoad_RoundTripsByPath(t *testing.T) {
	ctx, _ := testCtx()
	build := func() *recNode {
		return newRecNode(nil, newRecNode(nil), &stateless{})
	}

	first := build()
	_, err := Initialize(ctx, first)
	require.NoError(t, err)
	first.value = 7
	first.Inputs()[0].(*recNode).value = 3

	c := checkpoint.NewContainer()
	n, err := Save(first, c)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"0", "0/0"}, c.Keys())

	second := build()
	_, err = Initialize(ctx, second, WithState(c))
	require.NoError(t, err)
	assert.Equal(t, 7, second.value)
	assert.Equal(t, 3, second.Inputs()[0].(*recNode).value)
}

func TestSave_SkipsDisposedSubtrees(t *testing.T) {
	ctx, _ := testCtx()
	done := newRecNode(nil, newRecNode(nil))
	root := newRecNode(nil, done, newRecNode(nil))
	_, err := Initialize(ctx, root)
	require.NoError(t, err)

	done.Dispose()

	c := checkpoint.NewContainer()
	n, err := Save(root, c)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"0", "0/1"}, c.Keys())
}

func TestLoad_MissingEntryKeepsDefaults(t *testing.T) {
	ctx, _ := testCtx()
	root := newRecNode(nil)
	root.value = 42

	_, err := Initialize(ctx, root, WithState(checkpoint.NewContainer()))
	require.NoError(t, err)
	assert.Equal(t, 42, root.value)
}

func TestSave_UninitializedRootPanics(t *testing.T) {
	root := newRecNode(nil)

	defer func() {
		r := recover()
		require.NotNil(t, r)
		assert.ErrorIs(t, r.(error), ErrNotInitialized)
	}()
	_, _ = Save(root, checkpoint.NewContainer())
}

func TestSave_DisposedRootPanics(t *testing.T) {
	ctx, _ := testCtx()
	root := newRecNode(nil)
	_, err := Initialize(ctx, root)
	require.NoError(t, err)
	root.Dispose()

	defer func() {
		r := recover()
		require.NotNil(t, r)
		var le *LifecycleError
		require.ErrorAs(t, r.(error), &le)
		assert.Equal(t, "save", le.Op)
		assert.ErrorIs(t, le, ErrDisposed)
	}()
	_, _ = Save(root, checkpoint.NewContainer())
}

func TestLoad_DecodeErrorIsCheckpointError(t *testing.T) {
	ctx, _ := testCtx()
	c := checkpoint.NewContainer()
	c.PutRaw("0", []byte("{not json"))

	_, err := Initialize(ctx, newRecNode(nil), WithState(c))

	var ce *CheckpointError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "0", ce.NodeID)
	assert.Equal(t, "load", ce.Op)
}

type failingState struct {
	Node
}

func (*failingState) SaveState(checkpoint.StateWriter) error { return errors.New("no space") }
func (*failingState) LoadState(checkpoint.StateReader) error { return nil }

func TestSave_StateErrorIsCheckpointError(t *testing.T) {
	ctx, _ := testCtx()
	root := newRecNode(nil, &failingState{})
	_, err := Initialize(ctx, root)
	require.NoError(t, err)

	_, err = Save(root, checkpoint.NewContainer())

	var ce *CheckpointError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "0/0", ce.NodeID)
	assert.EqualError(t, err, "checkpoint save at node 0/0: no space")
}
