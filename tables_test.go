package harmony

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTablePool(t *testing.T) {
	p := newTablePool(3)
	require.Equal(t, 3, p.freeCount())

	var got []int
	for range 3 {
		table, ok := p.tryAcquire()
		require.True(t, ok)
		got = append(got, table)
	}
	require.Equal(t, []int{0, 1, 2}, got)
	_, ok := p.tryAcquire()
	require.False(t, ok)

	c, err := NewController(1)
	require.NoError(t, err)
	first := &AdmissionToken{id: "first", owner: c}
	second := &AdmissionToken{id: "second", owner: c}
	p.enqueue(first)
	e := p.enqueue(second)

	// released tables go to the oldest waiter
	require.Same(t, first, p.release(1))
	require.Equal(t, 0, p.freeCount())
	p.remove(e)
	require.Nil(t, p.release(2))
	require.Equal(t, 1, p.freeCount())

	table, ok := p.tryAcquire()
	require.True(t, ok)
	require.Equal(t, 2, table)
}
