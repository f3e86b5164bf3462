// Package vlogdb is an embedded hybrid storage engine.
//
// Values are encoded by a codec registry and appended to a per-table value
// log. An external index store maps every key to the byte range of its
// record plus the little metadata needed to decode it. Reads resolve the
// range and decode; batched reads of one value type read each range in
// offset order and decode them together.
//
// # Quick Start
//
//	ctx := context.Background()
//	t, _ := vlogdb.Open(ctx, "events")
//	defer t.Close(ctx)
//
//	_ = t.Set(ctx, "user:1", model.String("alice"))
//	v, ok, _ := t.Get(ctx, "user:1")
//
// # Index Stores
//
// By default the index lives in memory and is lost on Close. Share a durable
// store across processes with WithIndexStore:
//
//	store, _ := sqlite.Open(ctx, "/var/lib/app/index.db")
//	t, _ := vlogdb.Open(ctx, "events", vlogdb.WithIndexStore(store))
//
// A DynamoDB-backed store is available in index/dynamodb.
//
// # Pointer Chains
//
// A record may carry pointers to continuation records. Get concatenates the
// head with every target in order, which lets Append grow a list without
// rewriting bytes already in the log:
//
//	for i := range 10 {
//	    _ = t.Append(ctx, "ticks", model.Int(int64(i)), 3)
//	}
//	_ = t.Flush(ctx)
//
// # Columns and References
//
// WithColumn stores a value under "key/column". WithReference adds the key to
// a named group whose members are read back together with GetWithReference.
//
// # Snapshots
//
// Snapshot captures the log and its index into a blobstore.Store, optionally
// compressed; Restore loads one into an empty table.
//
// # Concurrency
//
// A Table is safe for concurrent use. Appends to one log are serialized by
// an advisory file lock, so several processes may share a table directory;
// a writer that cannot take the lock within the configured timeout fails
// with ErrWriteContention.
package vlogdb
