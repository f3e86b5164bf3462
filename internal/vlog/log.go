package vlog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/vlogdb/internal/fs"
	"golang.org/x/time/rate"
)

// Durability controls whether appends are fsync'd before they return.
type Durability int

const (
	// DurabilityAsync relies on the OS page cache.
	DurabilityAsync Durability = iota
	// DurabilitySync calls fsync after every append.
	DurabilitySync
)

// MaxRecordSize is the largest payload a single record may hold.
const MaxRecordSize = math.MaxInt32

var (
	// ErrRecordTooLarge is returned by Append for payloads over MaxRecordSize.
	ErrRecordTooLarge = errors.New("vlog: record exceeds maximum size")
	// ErrWriteContention is returned when the file lock is not acquired in time.
	ErrWriteContention = errors.New("vlog: write lock not acquired within timeout")
	// ErrOutOfRange is returned for reads past the end of the log.
	ErrOutOfRange = errors.New("vlog: range beyond end of log")
	// ErrClosed is returned for operations on a closed log.
	ErrClosed = errors.New("vlog: log is closed")
	// ErrNotEmpty is returned by Load when the log already holds data.
	ErrNotEmpty = errors.New("vlog: log is not empty")
)

// Options configures a Log.
type Options struct {
	FS         fs.FileSystem
	Durability Durability

	// LockTimeout bounds the wait for the file lock. It is sized to tolerate
	// another process finishing a large single write.
	LockTimeout time.Duration

	// LockPollInterval paces non-blocking lock attempts while waiting.
	LockPollInterval time.Duration

	// OnLockWait, if set, is called with the time spent acquiring the lock.
	OnLockWait func(wait time.Duration, err error)
}

// DefaultOptions returns the default log options.
func DefaultOptions() Options {
	return Options{
		FS:               fs.Default,
		Durability:       DurabilityAsync,
		LockTimeout:      10 * time.Second,
		LockPollInterval: 10 * time.Millisecond,
	}
}

// Range addresses a payload inside the log.
type Range struct {
	Offset uint64
	Length uint64
}

// Log is an append-only byte log stored in a single file.
type Log struct {
	appendMu sync.Mutex // serializes appenders within this process

	hmu    sync.RWMutex // guards the handles against Close/Reset
	w      fs.File
	r      fs.File
	closed bool

	path string
	opts Options
}

// Open opens or creates the log at path.
func Open(path string, opts Options) (*Log, error) {
	if opts.FS == nil {
		opts.FS = fs.Default
	}
	if opts.LockPollInterval <= 0 {
		opts.LockPollInterval = DefaultOptions().LockPollInterval
	}

	l := &Log{path: path, opts: opts}
	if err := l.openHandles(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Log) openHandles() error {
	w, err := l.opts.FS.OpenFile(l.path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("vlog: open %s: %w", l.path, err)
	}
	r, err := l.opts.FS.OpenFile(l.path, os.O_RDONLY, 0)
	if err != nil {
		_ = w.Close()
		return fmt.Errorf("vlog: open reader %s: %w", l.path, err)
	}
	l.w = w
	l.r = r
	return nil
}

// Path returns the path of the log file.
func (l *Log) Path() string { return l.path }

// Append writes p at the end of the log and returns where it landed.
//
// The returned range is only valid if err is nil. When the write itself fails
// some prefix of p may already be on disk; those bytes are never handed out and
// remain unreferenced.
func (l *Log) Append(ctx context.Context, p []byte) (offset, length uint64, err error) {
	l.appendMu.Lock()
	defer l.appendMu.Unlock()

	l.hmu.RLock()
	defer l.hmu.RUnlock()
	if l.closed {
		return 0, 0, ErrClosed
	}
	if len(p) > MaxRecordSize {
		return 0, 0, fmt.Errorf("%w: %d bytes", ErrRecordTooLarge, len(p))
	}

	if err := l.acquire(ctx); err != nil {
		return 0, 0, err
	}
	defer func() {
		if uerr := unlockFile(l.w); uerr != nil && err == nil {
			err = fmt.Errorf("vlog: unlock %s: %w", l.path, uerr)
		}
	}()

	end, err := l.w.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, 0, fmt.Errorf("vlog: seek %s: %w", l.path, err)
	}
	if _, err := l.w.Write(p); err != nil {
		return 0, 0, fmt.Errorf("vlog: write %s at %d: %w", l.path, end, err)
	}
	if l.opts.Durability == DurabilitySync {
		if err := l.w.Sync(); err != nil {
			return 0, 0, fmt.Errorf("vlog: sync %s: %w", l.path, err)
		}
	}
	return uint64(end), uint64(len(p)), nil
}

// acquire takes the exclusive file lock, polling until LockTimeout expires.
func (l *Log) acquire(ctx context.Context) error {
	start := time.Now()
	err := l.tryAcquire(ctx)
	if l.opts.OnLockWait != nil {
		l.opts.OnLockWait(time.Since(start), err)
	}
	return err
}

func (l *Log) tryAcquire(ctx context.Context) error {
	waitCtx := ctx
	if l.opts.LockTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.opts.LockTimeout)
		defer cancel()
	}

	limiter := rate.NewLimiter(rate.Every(l.opts.LockPollInterval), 1)
	for {
		err := tryLockExclusive(l.w)
		if err == nil {
			return nil
		}
		if !errors.Is(err, errWouldBlock) {
			return fmt.Errorf("vlog: lock %s: %w", l.path, err)
		}
		if err := limiter.Wait(waitCtx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: %s after %s", ErrWriteContention, l.path, l.opts.LockTimeout)
		}
	}
}

// ReadAt returns the payload stored at [offset, offset+length).
func (l *Log) ReadAt(offset, length uint64) ([]byte, error) {
	l.hmu.RLock()
	defer l.hmu.RUnlock()
	if l.closed {
		return nil, ErrClosed
	}
	return l.readAt(offset, length)
}

func (l *Log) readAt(offset, length uint64) ([]byte, error) {
	if offset > math.MaxInt64 || length > MaxRecordSize || offset+length > math.MaxInt64 {
		return nil, fmt.Errorf("%w: offset %d length %d", ErrOutOfRange, offset, length)
	}
	buf := make([]byte, length)
	if length == 0 {
		return buf, nil
	}
	n, err := l.r.ReadAt(buf, int64(offset))
	if n == len(buf) {
		return buf, nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: offset %d length %d", ErrOutOfRange, offset, length)
	}
	return nil, fmt.Errorf("vlog: read %s at %d: %w", l.path, offset, err)
}

// ReadMany reads every range in one pass ordered by offset and returns the
// payloads in input order.
func (l *Log) ReadMany(ranges []Range) ([][]byte, error) {
	l.hmu.RLock()
	defer l.hmu.RUnlock()
	if l.closed {
		return nil, ErrClosed
	}

	order := make([]int, len(ranges))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return ranges[order[a]].Offset < ranges[order[b]].Offset
	})

	out := make([][]byte, len(ranges))
	for _, i := range order {
		buf, err := l.readAt(ranges[i].Offset, ranges[i].Length)
		if err != nil {
			return nil, err
		}
		out[i] = buf
	}
	return out, nil
}

// Size returns the current size of the log file.
func (l *Log) Size() (int64, error) {
	l.hmu.RLock()
	defer l.hmu.RUnlock()
	if l.closed {
		return 0, ErrClosed
	}
	info, err := l.r.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// NewReader returns a reader over the first size bytes of the log.
//
// The reader stays valid until the log is closed or reset.
func (l *Log) NewReader(size int64) (io.Reader, error) {
	l.hmu.RLock()
	defer l.hmu.RUnlock()
	if l.closed {
		return nil, ErrClosed
	}
	return io.NewSectionReader(l.r, 0, size), nil
}

// Load copies r into an empty log.
//
// It is used to rebuild a log from a snapshot, where offsets must match the
// source log exactly. Load fails with ErrNotEmpty if the log has data.
func (l *Log) Load(ctx context.Context, r io.Reader) (int64, error) {
	size, err := l.Size()
	if err != nil {
		return 0, err
	}
	if size != 0 {
		return 0, fmt.Errorf("%w: %s has %d bytes", ErrNotEmpty, l.path, size)
	}

	var total int64
	buf := make([]byte, 1<<20)
	for {
		n, rerr := io.ReadFull(r, buf)
		if n > 0 {
			if _, _, err := l.Append(ctx, buf[:n]); err != nil {
				return total, err
			}
			total += int64(n)
		}
		if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
			return total, nil
		}
		if rerr != nil {
			return total, rerr
		}
	}
}

// Reset discards the log file and recreates it empty.
func (l *Log) Reset() error {
	l.appendMu.Lock()
	defer l.appendMu.Unlock()
	l.hmu.Lock()
	defer l.hmu.Unlock()
	if l.closed {
		return ErrClosed
	}

	if err := l.closeHandles(); err != nil {
		return err
	}
	if err := l.opts.FS.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("vlog: remove %s: %w", l.path, err)
	}
	return l.openHandles()
}

// Close closes both file handles. Close is idempotent.
func (l *Log) Close() error {
	l.appendMu.Lock()
	defer l.appendMu.Unlock()
	l.hmu.Lock()
	defer l.hmu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.closeHandles()
}

func (l *Log) closeHandles() error {
	werr := l.w.Close()
	rerr := l.r.Close()
	if werr != nil {
		return werr
	}
	return rerr
}
