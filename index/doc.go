// Package index defines the metadata store that maps record keys to the
// location of their payload in the value log.
//
// The store holds only small fixed-shape records (offset, length, type tag,
// continuation pointers, codec arguments) plus unordered string sets. Payloads
// never enter the index. Three implementations are provided:
//
//   - MemoryStore: in-process maps, the default and the test double
//   - sqlite.Store: an embedded SQLite database (modernc.org/sqlite)
//   - dynamodb.Store: an Amazon DynamoDB table
//
// Implementations must be safe for concurrent use. Per-key writes are atomic
// and last-writer-wins; nothing else is coordinated.
package index
