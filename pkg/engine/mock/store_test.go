package mock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreSparseReads(t *testing.T) {
	s := NewStore()
	key := cellKey("revenue", "actual", []string{"electronics", "us"}, "units", "q1_24")

	_, ok := s.Num(key)
	assert.False(t, ok)
	assert.Zero(t, s.NumOrZero(key))

	s.SetNum(key, 12.5)
	v, ok := s.Num(key)
	require.True(t, ok)
	assert.Equal(t, 12.5, v)

	s.Clear()
	_, ok = s.Num(key)
	assert.False(t, ok)
}

func TestStoreDistinctTexts(t *testing.T) {
	s := NewStore()
	put := func(row, val string) {
		s.SetText(cellKey("revenue", "actual", []string{row, "us"}, "route", timeSentinel), val)
	}
	put("electronics", "Online")
	put("apparel", "Direct")
	put("home", "Online")

	// Blank values and other versions are excluded.
	put("extra", "  ")
	s.SetText(cellKey("revenue", "budget", []string{"electronics", "us"}, "route", timeSentinel), "Channel")

	assert.Equal(t, []string{"Direct", "Online"}, s.DistinctTexts("revenue", "actual", "route"))
	assert.Empty(t, s.DistinctTexts("revenue", "actual", "manager"))
}

func TestCellKeyShape(t *testing.T) {
	key := cellKey("pnl", "budget", []string{"home"}, "revenue", "q2_24")
	assert.Equal(t, "pnl|budget|home|revenue|q2_24", key)

	// Modules without row dimensions still key cleanly.
	assert.Equal(t, "m|v||li|_", cellKey("m", "v", nil, "li", timeSentinel))
}
