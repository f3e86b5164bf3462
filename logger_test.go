package vlogdb

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vlogdb/index"
	"github.com/hupe1980/vlogdb/model"
)

func TestLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})).WithTable("events")

	l.LogSet(context.Background(), "k", 10, 4, nil)
	assert.Contains(t, buf.String(), `"table":"events"`)
	assert.Contains(t, buf.String(), `"key":"k"`)
	assert.Contains(t, buf.String(), `"offset":10`)

	buf.Reset()
	l.LogPartialWrite(context.Background(), "k", 10, 4, errors.New("boom"))
	assert.Contains(t, buf.String(), `"level":"ERROR"`)
	assert.Contains(t, buf.String(), `"error":"boom"`)
}

func TestTableLogsPartialWrite(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelError}))

	store := &failingStore{Store: index.NewMemoryStore(), failOn: "test/x"}
	tbl := openTestTable(t, WithIndexStore(store), WithLogger(logger))

	err := tbl.Set(context.Background(), "x", model.Int(1))
	require.Error(t, err)
	assert.Contains(t, buf.String(), "partial write")
}

func TestMetricsCollector(t *testing.T) {
	ctx := context.Background()
	mc := &BasicMetricsCollector{}
	tbl := openTestTable(t, WithMetricsCollector(mc))

	require.NoError(t, tbl.Set(ctx, "a", model.String("abc")))
	_, _, err := tbl.Get(ctx, "a")
	require.NoError(t, err)
	_, _, err = tbl.Get(ctx, "missing")
	require.NoError(t, err)
	_, err = tbl.BatchedGet(ctx, []string{"a", "a"})
	require.NoError(t, err)

	stats := mc.GetStats()
	assert.Equal(t, int64(1), stats.SetCount)
	assert.Equal(t, int64(3), stats.SetBytes)
	assert.Equal(t, int64(2), stats.GetCount)
	assert.Equal(t, int64(1), stats.GetMisses)
	assert.Equal(t, int64(1), stats.BatchGetCount)
	assert.Equal(t, int64(2), stats.BatchGetKeys)
}
