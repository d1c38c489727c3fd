package timer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRunFiresInDeadlineOrder(t *testing.T) {
	w := New()
	base := time.Unix(0, 0)
	var order []int
	w.Add(base.Add(30*time.Millisecond), func(time.Time) { order = append(order, 3) })
	w.Add(base.Add(10*time.Millisecond), func(time.Time) { order = append(order, 1) })
	w.Add(base.Add(20*time.Millisecond), func(time.Time) { order = append(order, 2) })

	fired := w.Run(base.Add(25 * time.Millisecond))
	require.Equal(t, 2, fired)
	require.Equal(t, []int{1, 2}, order)
	require.Equal(t, 1, w.Len())
}

func TestCancelIsIdempotent(t *testing.T) {
	w := New()
	called := false
	id := w.Add(time.Unix(0, 0), func(time.Time) { called = true })
	w.Remove(id)
	w.Remove(id) // no-op, must not panic

	w.Run(time.Unix(1, 0))
	require.False(t, called)
}

func TestCancelAfterFireIsNoop(t *testing.T) {
	w := New()
	id := w.Add(time.Unix(0, 0), func(time.Time) {})
	w.Run(time.Unix(1, 0))
	require.NotPanics(t, func() { w.Remove(id) })
}

func TestNextDeadlineReflectsEarliestPending(t *testing.T) {
	w := New()
	_, ok := w.NextDeadline()
	require.False(t, ok)

	later := time.Unix(100, 0)
	earlier := time.Unix(50, 0)
	w.Add(later, func(time.Time) {})
	w.Add(earlier, func(time.Time) {})

	d, ok := w.NextDeadline()
	require.True(t, ok)
	require.Equal(t, earlier, d)
}
