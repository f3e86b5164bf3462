// Package vlog implements the append-only value log backing a table.
//
// A log is a single file of raw concatenated payloads. It carries no header and
// is not self-describing: payloads are located by the (offset, length) pairs the
// caller records elsewhere.
//
// Appends are serialized twice: an in-process mutex orders goroutines sharing a
// Log, and an exclusive advisory file lock orders processes sharing the file.
// The file lock is acquired with a bounded wait and released as soon as the
// write returns. Reads go through a second, read-only handle and take no lock;
// a range handed out by Append is stable for the lifetime of the file.
package vlog
