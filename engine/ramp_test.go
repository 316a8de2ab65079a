package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vsariola/mixgraph"
)

func TestRampConvergesWithoutOvershoot(t *testing.T) {
	r := newRamp(mixgraph.DefaultConfig())
	cur, steps := 0.0, 0
	for ; steps < 10000 && 1-cur > 1e-3; steps++ {
		next := r.step(cur, 1)
		require.GreaterOrEqual(t, next, cur, "ramp up should never decrease")
		require.LessOrEqual(t, next, 1.0, "ramp up should never overshoot")
		cur = next
	}
	// from -60 dB to 0 dB at about 3 dB per 200 samples
	assert.LessOrEqual(t, steps, 2000)
	for i := 0; i < 10; i++ {
		cur = r.step(cur, 1)
	}
	assert.Equal(t, 1.0, cur, "ramp should settle exactly on the target")
}

func TestRampDownSnapsBelowFloor(t *testing.T) {
	r := newRamp(mixgraph.DefaultConfig())
	cur, steps := 1.0, 0
	for ; cur > 0 && steps < 10000; steps++ {
		next := r.step(cur, 0)
		require.LessOrEqual(t, next, cur)
		require.GreaterOrEqual(t, next, 0.0)
		cur = next
	}
	assert.Equal(t, 0.0, cur)
	assert.Less(t, steps, 2100)
}

func TestRampHoldsAtTarget(t *testing.T) {
	r := newRamp(mixgraph.DefaultConfig())
	assert.Equal(t, 0.5, r.step(0.5, 0.5))
	assert.Equal(t, 0.0, r.step(0, 0))
	assert.InDelta(t, 0.001*r.Up, r.step(0, 0.5), 1e-12, "rising from zero should kick-start at the floor")
}
