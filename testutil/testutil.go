package testutil

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/hupe1980/vlogdb/model"
)

const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand = rand.New(rand.NewSource(r.seed))
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Int64 returns a pseudo-random int64 over the full range, sign included.
func (r *RNG) Int64() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(r.rand.Uint64())
}

// Float64 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// String returns a random alphanumeric string of length n.
func (r *RNG) String(n int) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[r.rand.Intn(len(alphabet))]
	}
	return string(b)
}

// Key returns prefix followed by a random 8 character suffix.
func (r *RNG) Key(prefix string) string {
	return prefix + r.String(8)
}

// Keys returns n distinct keys "prefix0000".."prefixNNNN" in order.
func Keys(prefix string, n int) []string {
	keys := make([]string, n)
	for i := range keys {
		keys[i] = fmt.Sprintf("%s%04d", prefix, i)
	}
	return keys
}

// IntList returns a list of n ints. With wide set, values span the full
// int64 range; otherwise they fit in int32.
func (r *RNG) IntList(n int, wide bool) model.Value {
	r.mu.Lock()
	defer r.mu.Unlock()
	vals := make([]int64, n)
	for i := range vals {
		if wide {
			vals[i] = int64(r.rand.Uint64())
		} else {
			vals[i] = int64(r.rand.Int31()) - 1<<30
		}
	}
	return model.Ints(vals...)
}

// StringList returns a list of n strings of length 1..16.
func (r *RNG) StringList(n int) model.Value {
	vals := make([]string, n)
	for i := range vals {
		vals[i] = r.String(1 + r.Intn(16))
	}
	return model.Strings(vals...)
}

// Dict returns a flat dict of n entries with string, int and float values.
func (r *RNG) Dict(n int) model.Value {
	d := model.NewDict()
	for i := range n {
		k := fmt.Sprintf("f%d_%s", i, r.String(4))
		switch r.Intn(3) {
		case 0:
			d.Set(k, model.String(r.String(6)))
		case 1:
			d.Set(k, model.Int(r.Int64()))
		default:
			d.Set(k, model.Float(r.Float64()*1000))
		}
	}
	return model.DictValue(d)
}

// Float64Array returns a random float64 array with the given shape. It
// panics on negative dimensions.
func (r *RNG) Float64Array(shape ...int) model.Value {
	n := 1
	for _, d := range shape {
		n *= d
	}
	data := make([]float64, n)
	for i := range data {
		data[i] = r.Float64()
	}
	a, err := model.ArrayOf(data, shape...)
	if err != nil {
		panic(err)
	}
	return model.ArrayValue(a)
}

// Value returns a random value of a random storable kind.
func (r *RNG) Value() model.Value {
	switch r.Intn(6) {
	case 0:
		return model.String(r.String(1 + r.Intn(64)))
	case 1:
		return model.Int(r.Int64())
	case 2:
		return r.IntList(1+r.Intn(32), r.Intn(2) == 0)
	case 3:
		return r.StringList(1 + r.Intn(8))
	case 4:
		return r.Dict(1 + r.Intn(6))
	default:
		return r.Float64Array(2, 1+r.Intn(4))
	}
}
