package oto_test

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vsariola/mixgraph/oto"
)

func decode(b []byte) []float32 {
	ret := make([]float32, len(b)/4)
	for i := range ret {
		ret[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return ret
}

func TestOutputInterleavesBlocks(t *testing.T) {
	o := oto.NewOutput(2, 4, 1024)
	o.WriteSamples(0, [][]float32{{1, 2, 3}, {-1, -2, -3}})
	o.WriteSamples(3, [][]float32{{4}, {-4}})
	p := make([]byte, 4*2*4)
	n, err := o.Read(p)
	require.NoError(t, err)
	assert.Equal(t, len(p), n)
	assert.Equal(t, []float32{1, -1, 2, -2, 3, -3, 4, -4}, decode(p))
	assert.Zero(t, o.Underruns())
}

func TestOutputSplitsBlocksAcrossReads(t *testing.T) {
	o := oto.NewOutput(2, 4, 1024)
	o.WriteSamples(0, [][]float32{{1, 2, 3}, {5, 6, 7}})
	p := make([]byte, 2*2*4)
	_, err := o.Read(p)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 5, 2, 6}, decode(p))
	_, err = o.Read(p)
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 7, 0, 0}, decode(p), "the tail should be padded with silence")
	assert.Equal(t, int64(1), o.Underruns())
}

func TestOutputRepeatsMono(t *testing.T) {
	o := oto.NewOutput(2, 4, 1024)
	o.WriteSamples(0, [][]float32{{0.5, 0.25}})
	p := make([]byte, 2*2*4)
	_, err := o.Read(p)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.5, 0.25, 0.25}, decode(p))
}

func TestOutputCountsOverruns(t *testing.T) {
	o := oto.NewOutput(1, 2, 1024)
	for i := 0; i < 3; i++ {
		o.WriteSamples(i, [][]float32{{1}})
	}
	assert.Equal(t, int64(1), o.Overruns())
}
