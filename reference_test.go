package vlogdb

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vlogdb/model"
)

func TestReferenceGroup(t *testing.T) {
	ctx := context.Background()
	tbl := openTestTable(t)

	require.NoError(t, tbl.Set(ctx, "k1", model.String("a"), WithReference("r")))
	require.NoError(t, tbl.Set(ctx, "k2", model.Ints(3, 5, 6, 7), WithReference("r")))
	require.NoError(t, tbl.Set(ctx, "k3", model.Strings("aa", "bb", "cc"), WithReference("r")))

	vals, err := tbl.GetWithReference(ctx, "r")
	require.NoError(t, err)
	require.Len(t, vals, 3)
	assert.True(t, model.String("a").Equal(vals[0]))
	assert.True(t, model.Ints(3, 5, 6, 7).Equal(vals[1]))
	assert.True(t, model.Strings("aa", "bb", "cc").Equal(vals[2]))

	for _, k := range []string{"k1", "k2", "k3"} {
		id, ok, err := tbl.GetReference(ctx, k)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "r", id)
	}

	members, err := tbl.ReferenceMembers(ctx, "r")
	require.NoError(t, err)
	assert.Equal(t, []string{"k1", "k2", "k3"}, members)
}

func TestReferenceUnknown(t *testing.T) {
	ctx := context.Background()
	tbl := openTestTable(t)

	vals, err := tbl.GetWithReference(ctx, "none")
	require.NoError(t, err)
	assert.NotNil(t, vals)
	assert.Empty(t, vals)

	require.NoError(t, tbl.Set(ctx, "plain", model.Int(1)))
	_, ok, err := tbl.GetReference(ctx, "plain")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReferenceWithColumn(t *testing.T) {
	ctx := context.Background()
	tbl := openTestTable(t)

	require.NoError(t, tbl.Set(ctx, "doc", model.String("body"), WithColumn("text"), WithReference("docs")))

	members, err := tbl.ReferenceMembers(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, []string{"doc/text"}, members)

	id, ok, err := tbl.GetReference(ctx, "doc/text")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "docs", id)
}

func TestReferenceManyMembers(t *testing.T) {
	ctx := context.Background()
	tbl := openTestTable(t, WithReferenceConcurrency(3))

	const n = 40
	for i := range n {
		require.NoError(t, tbl.Set(ctx, fmt.Sprintf("m%02d", i), model.Int(int64(i)), WithReference("big")))
	}

	vals, err := tbl.GetWithReference(ctx, "big")
	require.NoError(t, err)
	require.Len(t, vals, n)
	for i, v := range vals {
		assert.True(t, model.Int(int64(i)).Equal(v), "position %d: %s", i, v)
	}
}

func TestReferenceMissingMember(t *testing.T) {
	ctx := context.Background()
	tbl := openTestTable(t)

	require.NoError(t, tbl.Set(ctx, "gone", model.Int(1), WithReference("g")))
	require.NoError(t, tbl.store.DeletePrefix(ctx, tbl.indexKey("gone")))

	_, err := tbl.GetWithReference(ctx, "g")
	var nf *KeyNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "gone", nf.Key)
}

func TestReferenceConcurrentMembers(t *testing.T) {
	ctx := context.Background()
	tbl := openTestTable(t)

	require.NoError(t, tbl.Set(ctx, "seed", model.Int(-1), WithReference("r")))

	const n = 50
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, tbl.Set(ctx, fmt.Sprintf("k%d", i), model.Int(int64(i)), WithReference("r")))
		}()
	}
	wg.Wait()

	members, err := tbl.ReferenceMembers(ctx, "r")
	require.NoError(t, err)
	require.Len(t, members, n+1)
	assert.Equal(t, "seed", members[0])

	want := []string{"seed"}
	for i := range n {
		want = append(want, fmt.Sprintf("k%d", i))
	}
	assert.ElementsMatch(t, want, members)

	vals, err := tbl.GetWithReference(ctx, "r")
	require.NoError(t, err)
	assert.Len(t, vals, n+1)
	for _, k := range want {
		id, ok, err := tbl.GetReference(ctx, k)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "r", id)
	}
}
