//go:build windows

package vlog

import (
	"errors"

	"github.com/hupe1980/vlogdb/internal/fs"
	"golang.org/x/sys/windows"
)

var errWouldBlock = errors.New("would block")

// The lock covers a single byte far past any realistic end of file. Windows
// byte-range locks are mandatory, so locking real data would block readers.
const (
	lockOffsetLow  = 0xFFFFFFFE
	lockOffsetHigh = 0x7FFFFFFF
)

func lockOverlapped() *windows.Overlapped {
	return &windows.Overlapped{Offset: lockOffsetLow, OffsetHigh: lockOffsetHigh}
}

func tryLockExclusive(f fs.File) error {
	h := windows.Handle(f.Fd())
	err := windows.LockFileEx(h, windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY, 0, 1, 0, lockOverlapped())
	if err != nil {
		if errors.Is(err, windows.ERROR_LOCK_VIOLATION) {
			return errWouldBlock
		}
		return err
	}
	return nil
}

func unlockFile(f fs.File) error {
	h := windows.Handle(f.Fd())
	return windows.UnlockFileEx(h, 0, 1, 0, lockOverlapped())
}
