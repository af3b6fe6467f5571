package parallel

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapFillsDisjointSlots(t *testing.T) {
	for _, workers := range []int{0, 1, 4, 64} {
		out := make([]int, 100)
		err := Map(workers, len(out), func(i int) error {
			out[i] = i * i
			return nil
		})
		require.NoError(t, err)
		for i, v := range out {
			assert.Equal(t, i*i, v)
		}
	}
}

func TestMapPropagatesError(t *testing.T) {
	boom := errors.New("boom")
	err := Map(4, 10, func(i int) error {
		if i == 7 {
			return boom
		}
		return nil
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
}

func TestMapZeroTasks(t *testing.T) {
	require.NoError(t, Map(4, 0, func(int) error { return nil }))
}
