package vlogdb

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hupe1980/vlogdb/index"
	"github.com/hupe1980/vlogdb/internal/fs"
	"github.com/hupe1980/vlogdb/internal/vlog"
)

// Durability controls whether log appends are fsync'd before they return.
type Durability = vlog.Durability

const (
	// DurabilityAsync relies on the OS page cache. This is the default.
	DurabilityAsync = vlog.DurabilityAsync
	// DurabilitySync fsyncs every append.
	DurabilitySync = vlog.DurabilitySync
)

const (
	defaultLockTimeout          = 10 * time.Second
	defaultLockPollInterval     = 10 * time.Millisecond
	defaultReferenceConcurrency = 8
	defaultDirName              = ".vlogdb"
)

type options struct {
	store                index.Store
	baseDir              string
	lockTimeout          time.Duration
	lockPollInterval     time.Duration
	durability           Durability
	metricsCollector     MetricsCollector
	logger               *Logger
	fs                   fs.FileSystem
	referenceConcurrency int
	maxRecordSize        int
}

// Option configures Open.
type Option func(*options)

// WithIndexStore sets the metadata index. The caller keeps ownership and must
// close it after the table.
//
// Without this option each table owns a private index.MemoryStore, which is
// lost on Close.
func WithIndexStore(s index.Store) Option {
	return func(o *options) {
		o.store = s
	}
}

// WithBaseDir sets the directory holding one subdirectory per table.
// The default is $HOME/.vlogdb.
func WithBaseDir(dir string) Option {
	return func(o *options) {
		o.baseDir = dir
	}
}

// WithLockTimeout bounds the wait for the log write lock. Appends that cannot
// take the lock in time fail with ErrWriteContention.
func WithLockTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.lockTimeout = d
		}
	}
}

// WithLockPollInterval sets how often a blocked writer retries the lock.
func WithLockPollInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.lockPollInterval = d
		}
	}
}

// WithDurability selects the fsync policy for log appends.
func WithDurability(d Durability) Option {
	return func(o *options) {
		o.durability = d
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
//
//	metrics := &vlogdb.BasicMetricsCollector{}
//	tbl, _ := vlogdb.Open(ctx, "events", vlogdb.WithMetricsCollector(metrics))
//	stats := metrics.GetStats()
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithFileSystem replaces the file system used for the value log.
// It exists for fault injection in tests.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		if fsys != nil {
			o.fs = fsys
		}
	}
}

// WithMaxRecordSize caps the encoded size of a single value. Set rejects
// larger values with ErrRecordTooLarge before anything is written. The cap
// cannot exceed the log's own limit of about 2 GiB.
func WithMaxRecordSize(n int) Option {
	return func(o *options) {
		if n > 0 && n <= vlog.MaxRecordSize {
			o.maxRecordSize = n
		}
	}
}

// WithReferenceConcurrency bounds how many members GetWithReference fetches
// at once.
func WithReferenceConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.referenceConcurrency = n
		}
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		lockTimeout:          defaultLockTimeout,
		lockPollInterval:     defaultLockPollInterval,
		durability:           DurabilityAsync,
		metricsCollector:     NoopMetricsCollector{},
		logger:               NoopLogger(),
		fs:                   fs.Default,
		referenceConcurrency: defaultReferenceConcurrency,
		maxRecordSize:        vlog.MaxRecordSize,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.baseDir == "" {
		o.baseDir = defaultBaseDir()
	}
	return o
}

func defaultBaseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(home, defaultDirName)
}
