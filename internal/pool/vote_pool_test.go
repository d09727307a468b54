package pool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVoteContext(t *testing.T) {
	vc := Get(10)
	defer Put(vc)

	assert.Equal(t, uint32(1), vc.AddCount(3))
	assert.Equal(t, uint32(2), vc.AddCount(3))
	assert.InDelta(t, 0.5, vc.AddWeight(3, 0.5), 1e-12)
	assert.InDelta(t, 0.25, vc.AddWeight(7, 0.25), 1e-12)
	assert.ElementsMatch(t, []uint32{3, 7}, vc.Touched, "each id touched once")

	assert.True(t, vc.Admit(3))
	assert.False(t, vc.Admit(3))
	assert.True(t, vc.Admit(9))
	assert.Equal(t, uint(2), vc.Admitted.Count())

	vc.Reset()
	assert.Zero(t, vc.Counts[3])
	assert.Zero(t, vc.Weights[7])
	assert.Empty(t, vc.Touched)
	assert.Zero(t, vc.Admitted.Count())
}

func TestVoteContextGrows(t *testing.T) {
	vc := Get(DefaultCapacity + 5)
	defer Put(vc)
	require.GreaterOrEqual(t, len(vc.Counts), DefaultCapacity+5)

	id := uint32(DefaultCapacity + 4)
	vc.AddCount(id)
	assert.True(t, vc.Admit(id))
}

func TestPutClears(t *testing.T) {
	for range 50 {
		vc := Get(100)
		for id := uint32(0); id < 100; id++ {
			assert.Zero(t, vc.Counts[id])
			assert.Zero(t, vc.Weights[id])
		}
		assert.Zero(t, vc.Admitted.Count())
		vc.AddCount(42)
		vc.AddWeight(17, 1)
		vc.Admit(42)
		Put(vc)
	}
}

func TestConcurrentUse(t *testing.T) {
	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				vc := Get(1000)
				id := uint32(g)
				assert.Equal(t, uint32(1), vc.AddCount(id))
				Put(vc)
			}
		}()
	}
	wg.Wait()
}
