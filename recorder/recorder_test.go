package recorder_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vsariola/mixgraph/fifo"
	"github.com/vsariola/mixgraph/recorder"
)

func TestDrainInterleaves(t *testing.T) {
	f := fifo.New(4, 1024)
	require.NoError(t, f.Put(2, 2, [][]float32{{1, 2}, {-1, -2}}, 100))
	require.NoError(t, f.Put(2, 1, [][]float32{{3}, {-3}}, 102))
	r := recorder.New(f, 2, 44100, false)
	assert.Equal(t, 2, r.Drain())
	assert.Equal(t, []float32{1, -1, 2, -2, 3, -3}, r.Samples())
	assert.Equal(t, 3, r.Frames())
	assert.Equal(t, 100, r.Start())
	assert.Zero(t, r.Gaps())
	assert.Zero(t, f.Count())
}

func TestDrainCountsGaps(t *testing.T) {
	f := fifo.New(4, 1024)
	require.NoError(t, f.Put(1, 2, [][]float32{{1, 2}}, 0))
	require.NoError(t, f.Put(1, 2, [][]float32{{1, 2}}, 10))
	r := recorder.New(f, 1, 44100, false)
	r.Drain()
	assert.Equal(t, 1, r.Gaps())
}

func TestRunStopsWithContext(t *testing.T) {
	f := fifo.New(4, 1024)
	require.NoError(t, f.Put(1, 4, [][]float32{{0.5, 0.5, 0.5, 0.5}}, 0))
	r := recorder.New(f, 1, 44100, true)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- r.Run(ctx, time.Millisecond) }()
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, 4, r.Frames())
}

func TestWriteFile(t *testing.T) {
	f := fifo.New(4, 1024)
	require.NoError(t, f.Put(2, 3, [][]float32{{0, 0.5, 1}}, 0))
	r := recorder.New(f, 2, 48000, true)
	r.Drain()
	path := filepath.Join(t.TempDir(), "out.wav")
	require.NoError(t, r.WriteFile(path))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "RIFF", string(b[:4]))
	assert.Equal(t, 44+3*2*2, len(b))
}
