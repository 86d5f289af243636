package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testHandler captures log records for testing.
type testHandler struct {
	buf   *bytes.Buffer
	level slog.Level
	attrs []slog.Attr
}

func newTestHandler() *testHandler {
	return &testHandler{
		buf:   &bytes.Buffer{},
		level: slog.LevelDebug,
	}
}

func (h *testHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *testHandler) Handle(_ context.Context, r slog.Record) error {
	data := map[string]any{
		"level": r.Level.String(),
		"msg":   r.Message,
	}
	for _, attr := range h.attrs {
		data[attr.Key] = attr.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		data[a.Key] = a.Value.Any()
		return true
	})
	return json.NewEncoder(h.buf).Encode(data)
}

func (h *testHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newH := &testHandler{
		buf:   h.buf,
		level: h.level,
		attrs: make([]slog.Attr, len(h.attrs)+len(attrs)),
	}
	copy(newH.attrs, h.attrs)
	copy(newH.attrs[len(h.attrs):], attrs)
	return newH
}

func (h *testHandler) WithGroup(_ string) slog.Handler {
	return h
}

func (h *testHandler) getLastRecord() map[string]any {
	lines := bytes.Split(h.buf.Bytes(), []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		if len(lines[i]) > 0 {
			var m map[string]any
			if err := json.Unmarshal(lines[i], &m); err == nil {
				return m
			}
		}
	}
	return nil
}

func TestEnrichLogger(t *testing.T) {
	t.Run("adds graph_id and node_id", func(t *testing.T) {
		h := newTestHandler()
		enriched := EnrichLogger(slog.New(h), "graph-1", "0/2")
		enriched.Info("test message")

		record := h.getLastRecord()
		require.NotNil(t, record)
		assert.Equal(t, "graph-1", record["graph_id"])
		assert.Equal(t, "0/2", record["node_id"])
		assert.Equal(t, "test message", record["msg"])
	})

	t.Run("nil logger returns nil", func(t *testing.T) {
		assert.Nil(t, EnrichLogger(nil, "graph-1", "0"))
	})
}

func TestLogHelpers(t *testing.T) {
	h := newTestHandler()
	logger := slog.New(h)

	LogGraphStart(logger, "g", 4, true)
	record := h.getLastRecord()
	assert.Equal(t, "graph started", record["msg"])
	assert.Equal(t, float64(4), record["nodes"])
	assert.Equal(t, true, record["resumed"])

	LogCheckpointSaved(logger, "g", 3, 128, 1.5)
	record = h.getLastRecord()
	assert.Equal(t, "checkpoint saved", record["msg"])
	assert.Equal(t, "DEBUG", record["level"])
	assert.Equal(t, float64(128), record["size_bytes"])

	LogCheckpointError(logger, "0/1", "load", errors.New("corrupt"))
	record = h.getLastRecord()
	assert.Equal(t, "WARN", record["level"])
	assert.Equal(t, "load", record["operation"])
	assert.Equal(t, "corrupt", record["error"])

	LogRetry(logger, 2, 50*time.Millisecond, errors.New("boom"))
	record = h.getLastRecord()
	assert.Equal(t, "resubscribing after error", record["msg"])
	assert.Equal(t, float64(2), record["attempt"])

	LogSchedulerPanic(logger, "virtual", 230, errors.New("kaboom"))
	record = h.getLastRecord()
	assert.Equal(t, "ERROR", record["level"])
	assert.Equal(t, float64(230), record["due"])
}

func TestLogHelpers_NilLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		LogGraphStart(nil, "g", 1, false)
		LogGraphDisposed(nil, "g")
		LogCheckpointSaved(nil, "g", 1, 1, 1)
		LogCheckpointLoaded(nil, "g", 1, 1)
		LogCheckpointError(nil, "n", "save", errors.New("x"))
		LogOperatorError(nil, "select", errors.New("x"))
		LogRetry(nil, 1, 0, errors.New("x"))
		LogSchedulerPanic(nil, "s", 0, errors.New("x"))
	})
}

func TestTimedOperation(t *testing.T) {
	done := TimedOperation()
	time.Sleep(5 * time.Millisecond)
	assert.GreaterOrEqual(t, done(), float64(4))
}
