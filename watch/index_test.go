package watch

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

type indexed struct {
	id int64
}

func newTestIndex() *symbolIndex[indexed] {
	return newSymbolIndex(func(v indexed) int64 { return v.id })
}

func TestSymbolIndex_InsertGet(t *testing.T) {
	idx := newTestIndex()
	idx.insert("SOL", indexed{id: 1})
	idx.insert("SOL", indexed{id: 2})

	v, ok := idx.get("SOL", 2)
	require.True(t, ok)
	require.Equal(t, int64(2), v.id)

	_, ok = idx.get("SOL", 99)
	require.False(t, ok)
	_, ok = idx.get("BTC", 1)
	require.False(t, ok)
}

func TestSymbolIndex_ClaimIsExclusive(t *testing.T) {
	idx := newTestIndex()
	idx.insert("SOL", indexed{id: 1})

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := idx.claim("SOL", 1); ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), wins)
	require.Zero(t, idx.size("SOL"))
}

func TestSymbolIndex_ClaimAny(t *testing.T) {
	idx := newTestIndex()
	idx.insert("SOL", indexed{id: 1})
	idx.insert("BTC", indexed{id: 2})

	v, ok := idx.claimAny(2)
	require.True(t, ok)
	require.Equal(t, int64(2), v.id)

	_, ok = idx.claimAny(2)
	require.False(t, ok)
	require.Equal(t, 1, idx.size("SOL"))
}
