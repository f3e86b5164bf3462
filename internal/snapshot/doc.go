// Package snapshot holds the building blocks of table snapshots: stream
// compression, an I/O throttle and the manifest format.
//
// A snapshot is two blobs. The log blob is the raw value log, optionally
// compressed. The manifest lists every key with its metadata fields and is
// written last, so its presence marks a complete snapshot.
package snapshot
