// Package fs provides the filesystem seam used by the value log.
//
//   - [LocalFS]: production implementation backed by the os package
//   - [FaultyFS]: test wrapper that injects write and sync failures
//
// Production code uses fs.Default:
//
//	f, err := fs.Default.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
//
// Tests inject a [FaultyFS] to simulate a disk that fails mid-append:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("events.vlog", fs.Fault{FailAfterBytes: 64})
//
// No method takes a context. Local file operations are not interruptible at the
// syscall level; the advisory lock wait in package vlog is the only place that
// honors cancellation.
package fs
