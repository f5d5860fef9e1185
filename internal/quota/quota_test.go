package quota

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReserveUnboundedWithoutRecord(t *testing.T) {
	tb := NewTable()
	require.True(t, tb.Reserve("/export/a", 1000, 1<<20))
}

func TestSetAndReserveWithinHard(t *testing.T) {
	tb := NewTable()
	tb.Set("/export/a", 1000, 50, 100)
	require.True(t, tb.Reserve("/export/a", 1000, 90))
	rec, ok := tb.Get("/export/a", 1000)
	require.True(t, ok)
	require.EqualValues(t, 90, rec.Used)
}

func TestReserveRejectsOverHard(t *testing.T) {
	tb := NewTable()
	tb.Set("/export/a", 1000, 50, 100)
	require.True(t, tb.Reserve("/export/a", 1000, 100))
	require.False(t, tb.Reserve("/export/a", 1000, 1))
	rec, _ := tb.Get("/export/a", 1000)
	require.EqualValues(t, 100, rec.Used, "a rejected reservation must not change Used")
}

func TestZeroHardIsUnbounded(t *testing.T) {
	tb := NewTable()
	tb.Set("/export/a", 1000, 0, 0)
	require.True(t, tb.Reserve("/export/a", 1000, 1<<40))
}

func TestReserveNegativeDeltaShrinksUsage(t *testing.T) {
	tb := NewTable()
	tb.Set("/export/a", 1000, 0, 1000)
	tb.Reserve("/export/a", 1000, 500)
	require.True(t, tb.Reserve("/export/a", 1000, -200))
	rec, _ := tb.Get("/export/a", 1000)
	require.EqualValues(t, 300, rec.Used)
}

func TestReserveNegativeDeltaFloorsAtZero(t *testing.T) {
	tb := NewTable()
	tb.Set("/export/a", 1000, 0, 1000)
	require.True(t, tb.Reserve("/export/a", 1000, -500))
	rec, _ := tb.Get("/export/a", 1000)
	require.EqualValues(t, 0, rec.Used)
}

func TestRemove(t *testing.T) {
	tb := NewTable()
	tb.Set("/export/a", 1000, 0, 1000)
	tb.Remove("/export/a", 1000)
	_, ok := tb.Get("/export/a", 1000)
	require.False(t, ok)
}

func TestAll(t *testing.T) {
	tb := NewTable()
	tb.Set("/a", 1, 0, 0)
	tb.Set("/b", 2, 0, 0)
	require.Len(t, tb.All(), 2)
}
