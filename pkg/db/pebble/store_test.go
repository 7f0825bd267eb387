package pebble

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtcxzyw/r6/pkg/db"
)

func costValue(v uint64) []byte {
	return binary.LittleEndian.AppendUint64(nil, v)
}

func TestKVStore(t *testing.T) {
	tests := []struct {
		name string
		fn   func(t *testing.T, store db.KVStore)
	}{
		{
			name: "basic_put_get",
			fn:   testBasicPutGet,
		},
		{
			name: "batch_commit",
			fn:   testBatchCommit,
		},
		{
			name: "bounded_iteration",
			fn:   testBoundedIteration,
		},
		{
			name: "store_closure",
			fn:   testStoreClosure,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store, err := OpenInMemory()
			require.NoError(t, err)
			defer store.Close()

			tc.fn(t, store)
		})
	}
}

func testBasicPutGet(t *testing.T, store db.KVStore) {
	key := []byte("cost/rev1/abc")

	err := store.Put(key, costValue(42))
	require.NoError(t, err)

	retrieved, err := store.Get(key)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), binary.LittleEndian.Uint64(retrieved))

	_, err = store.Get([]byte("cost/rev1/missing"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func testBatchCommit(t *testing.T, store db.KVStore) {
	batch := store.NewBatch()
	require.NoError(t, batch.Put([]byte("a"), costValue(1)))
	require.NoError(t, batch.Put([]byte("b"), costValue(2)))

	_, err := store.Get([]byte("a"))
	assert.ErrorIs(t, err, ErrNotFound, "uncommitted writes must stay invisible")

	require.NoError(t, batch.Commit())
	assert.ErrorIs(t, batch.Put([]byte("c"), costValue(3)), ErrBatchDone)
	assert.ErrorIs(t, batch.Commit(), ErrBatchDone)
	require.NoError(t, batch.Close())

	v, err := store.Get([]byte("b"))
	require.NoError(t, err)
	assert.Equal(t, costValue(2), v)
}

func testBoundedIteration(t *testing.T, store db.KVStore) {
	for i, k := range []string{"a", "b", "c", "d"} {
		require.NoError(t, store.Put([]byte(k), costValue(uint64(i))))
	}

	iter, err := store.NewIterator([]byte("b"), []byte("d"))
	require.NoError(t, err)
	defer iter.Close()

	var keys []string
	for iter.Next() {
		keys = append(keys, string(iter.Key()))
		_, err := iter.Value()
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"b", "c"}, keys)
	assert.False(t, iter.Valid())
}

func testStoreClosure(t *testing.T, store db.KVStore) {
	require.NoError(t, store.Close())
	require.NoError(t, store.Close(), "closing twice is a no-op")

	_, err := store.Get([]byte("key"))
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, store.Put([]byte("key"), nil), ErrClosed)
	_, err = store.NewIterator(nil, nil)
	assert.ErrorIs(t, err, ErrClosed)
}
