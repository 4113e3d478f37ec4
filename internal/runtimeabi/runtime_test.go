package runtimeabi

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBoxIntRoundTrips(t *testing.T) {
	defer Reset()
	h := BoxInt(42)
	require.Equal(t, int64(42), UnboxInt(h))
}

func TestBoxFloatRoundTrips(t *testing.T) {
	defer Reset()
	h := BoxFloat(3.5)
	require.Equal(t, 3.5, UnboxFloat(h))
}

func TestUnboxWrongKindReturnsZero(t *testing.T) {
	defer Reset()
	h := BoxInt(7)
	require.Equal(t, float64(0), UnboxFloat(h))
}

func TestDictSetThenGetRoundTrips(t *testing.T) {
	defer Reset()
	dict := DictNew()
	key := SymbolFromCString("name")
	val := BoxInt(99)

	returned := DictSet(dict, key, val)
	require.Equal(t, dict, returned, "DictSet returns the dict's own handle for chaining")
	require.Equal(t, val, DictGet(dict, key))
}

func TestDictGetMissingKeyReturnsNullHandle(t *testing.T) {
	defer Reset()
	dict := DictNew()
	require.Equal(t, uint64(0), DictGet(dict, 12345))
}

func TestDistinctSymbolCallsGetDistinctHandles(t *testing.T) {
	defer Reset()
	a := SymbolFromCString("x")
	b := SymbolFromCString("x")
	require.NotEqual(t, a, b)
}

func TestHandlesAreUniqueAcrossShards(t *testing.T) {
	defer Reset()
	seen := map[uint64]bool{}
	for i := 0; i < 100; i++ {
		h := BoxInt(int64(i))
		require.False(t, seen[h])
		seen[h] = true
	}
}
