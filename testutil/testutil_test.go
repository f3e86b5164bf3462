package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vlogdb/model"
)

func TestReset(t *testing.T) {
	rng := NewRNG(7)
	first := rng.String(16)
	rng.Reset()
	assert.Equal(t, first, rng.String(16))
	assert.Equal(t, int64(7), rng.Seed())
}

func TestKeys(t *testing.T) {
	keys := Keys("k", 3)
	assert.Equal(t, []string{"k0000", "k0001", "k0002"}, keys)

	rng := NewRNG(1)
	k := rng.Key("user:")
	assert.Len(t, k, len("user:")+8)
}

func TestIntList(t *testing.T) {
	rng := NewRNG(3)

	narrow := rng.IntList(100, false)
	for _, v := range narrow.L {
		i, ok := v.AsInt64()
		require.True(t, ok)
		assert.GreaterOrEqual(t, i, int64(-1<<31))
		assert.Less(t, i, int64(1<<31))
	}

	assert.Equal(t, 5, rng.IntList(5, true).Len())
}

func TestValueKinds(t *testing.T) {
	rng := NewRNG(11)
	seen := make(map[model.Kind]bool)
	for range 200 {
		seen[rng.Value().Kind] = true
	}
	for _, k := range []model.Kind{model.KindString, model.KindInt, model.KindList, model.KindDict, model.KindArray} {
		assert.True(t, seen[k], "kind %s never generated", k)
	}
}

func TestFloat64ArrayShape(t *testing.T) {
	v := NewRNG(5).Float64Array(2, 3)
	a, ok := v.AsArray()
	require.True(t, ok)
	assert.Equal(t, []int{2, 3}, a.Shape())
	assert.Equal(t, model.DTypeFloat64, a.DType())
}
