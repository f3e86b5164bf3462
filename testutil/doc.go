// Package testutil provides testing utilities for vlogdb.
//
// This package is intended for use in tests and benchmarks only.
// It provides a seeded, goroutine-safe RNG and generators for keys and
// values of every storable kind.
//
//	rng := testutil.NewRNG(seed)
//	key := rng.Key("user:")
//	v := rng.Value()
package testutil
