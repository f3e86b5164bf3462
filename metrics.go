package vlogdb

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordSet is called after each set. bytes is the encoded payload size.
	RecordSet(bytes int, duration time.Duration, err error)

	// RecordGet is called after each get, including pointer resolution.
	RecordGet(found bool, duration time.Duration, err error)

	// RecordBatchGet is called after each batched get of count keys.
	RecordBatchGet(count int, duration time.Duration, err error)

	// RecordFlush is called after an append buffer flushes count values.
	RecordFlush(count int, duration time.Duration, err error)

	// RecordLockWait is called with the time spent waiting for the log lock.
	RecordLockWait(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordSet(int, time.Duration, error)      {}
func (NoopMetricsCollector) RecordGet(bool, time.Duration, error)     {}
func (NoopMetricsCollector) RecordBatchGet(int, time.Duration, error) {}
func (NoopMetricsCollector) RecordFlush(int, time.Duration, error)    {}
func (NoopMetricsCollector) RecordLockWait(time.Duration, error)      {}

// BasicMetricsCollector provides simple in-memory metrics collection.
type BasicMetricsCollector struct {
	SetCount       atomic.Int64
	SetErrors      atomic.Int64
	SetBytes       atomic.Int64
	SetTotalNanos  atomic.Int64
	GetCount       atomic.Int64
	GetMisses      atomic.Int64
	GetErrors      atomic.Int64
	GetTotalNanos  atomic.Int64
	BatchGetCount  atomic.Int64
	BatchGetKeys   atomic.Int64
	BatchGetErrors atomic.Int64
	FlushCount     atomic.Int64
	FlushValues    atomic.Int64
	FlushErrors    atomic.Int64
	LockWaitNanos  atomic.Int64
	LockTimeouts   atomic.Int64
}

// RecordSet implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSet(bytes int, duration time.Duration, err error) {
	b.SetCount.Add(1)
	b.SetTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SetErrors.Add(1)
		return
	}
	b.SetBytes.Add(int64(bytes))
}

// RecordGet implements MetricsCollector.
func (b *BasicMetricsCollector) RecordGet(found bool, duration time.Duration, err error) {
	b.GetCount.Add(1)
	b.GetTotalNanos.Add(duration.Nanoseconds())
	switch {
	case err != nil:
		b.GetErrors.Add(1)
	case !found:
		b.GetMisses.Add(1)
	}
}

// RecordBatchGet implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBatchGet(count int, _ time.Duration, err error) {
	b.BatchGetCount.Add(1)
	b.BatchGetKeys.Add(int64(count))
	if err != nil {
		b.BatchGetErrors.Add(1)
	}
}

// RecordFlush implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFlush(count int, _ time.Duration, err error) {
	b.FlushCount.Add(1)
	if err != nil {
		b.FlushErrors.Add(1)
		return
	}
	b.FlushValues.Add(int64(count))
}

// RecordLockWait implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLockWait(duration time.Duration, err error) {
	b.LockWaitNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.LockTimeouts.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		SetCount:       b.SetCount.Load(),
		SetErrors:      b.SetErrors.Load(),
		SetBytes:       b.SetBytes.Load(),
		SetAvgNanos:    avg(b.SetTotalNanos.Load(), b.SetCount.Load()),
		GetCount:       b.GetCount.Load(),
		GetMisses:      b.GetMisses.Load(),
		GetErrors:      b.GetErrors.Load(),
		GetAvgNanos:    avg(b.GetTotalNanos.Load(), b.GetCount.Load()),
		BatchGetCount:  b.BatchGetCount.Load(),
		BatchGetKeys:   b.BatchGetKeys.Load(),
		BatchGetErrors: b.BatchGetErrors.Load(),
		FlushCount:     b.FlushCount.Load(),
		FlushValues:    b.FlushValues.Load(),
		FlushErrors:    b.FlushErrors.Load(),
		LockWaitNanos:  b.LockWaitNanos.Load(),
		LockTimeouts:   b.LockTimeouts.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	SetCount       int64
	SetErrors      int64
	SetBytes       int64
	SetAvgNanos    int64
	GetCount       int64
	GetMisses      int64
	GetErrors      int64
	GetAvgNanos    int64
	BatchGetCount  int64
	BatchGetKeys   int64
	BatchGetErrors int64
	FlushCount     int64
	FlushValues    int64
	FlushErrors    int64
	LockWaitNanos  int64
	LockTimeouts   int64
}
