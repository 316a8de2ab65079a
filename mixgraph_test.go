package mixgraph_test

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vsariola/mixgraph"
)

func TestClamp(t *testing.T) {
	tests := []struct {
		name     string
		spec     mixgraph.ChannelSpec
		src, dst int
		want     mixgraph.ChannelSpec
		ok       bool
	}{
		{"all channels", mixgraph.AllChannels, 2, 2, mixgraph.ChannelSpec{Channel: 0, Channels: 2}, true},
		{"second channel", mixgraph.ChannelSpec{Channel: 1, Channels: 1, RemoteChannel: 1}, 2, 2, mixgraph.ChannelSpec{Channel: 1, Channels: 1, RemoteChannel: 1}, true},
		{"channel out of range", mixgraph.ChannelSpec{Channel: 3, Channels: 1}, 2, 2, mixgraph.ChannelSpec{Channel: 0, Channels: 1}, false},
		{"too many channels", mixgraph.ChannelSpec{Channel: 1, Channels: 2}, 2, 2, mixgraph.ChannelSpec{Channel: 1, Channels: 1}, false},
		{"remote out of range", mixgraph.ChannelSpec{Channels: 1, RemoteChannel: 2}, 1, 2, mixgraph.ChannelSpec{Channels: 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.spec.Clamp(tt.src, tt.dst)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestTrackTypeNames(t *testing.T) {
	for typ := mixgraph.Midi; typ < mixgraph.NumTrackTypes; typ++ {
		parsed, err := mixgraph.ParseTrackType(typ.String())
		require.NoError(t, err)
		assert.Equal(t, typ, parsed)
	}
	_, err := mixgraph.ParseTrackType("bus")
	assert.Error(t, err)
	assert.True(t, mixgraph.SoftSynth.IsAudio())
	assert.True(t, mixgraph.Drum.IsMidi())
	assert.False(t, mixgraph.Midi.IsAudio())
}

func TestDiagnosticUnwrapsToKind(t *testing.T) {
	d := mixgraph.Diagnostic{Kind: mixgraph.ErrOverrun, Track: 3, Name: "out", Detail: "block dropped"}
	assert.True(t, errors.Is(d, mixgraph.ErrOverrun))
	assert.False(t, errors.Is(d, mixgraph.ErrUnderrun))
	assert.Contains(t, d.Error(), "out")
}

func TestDefaultConfigIsValid(t *testing.T) {
	assert.NoError(t, mixgraph.DefaultConfig().Validate())
	cfg := mixgraph.DefaultConfig()
	cfg.RampUpFactor = 0.9
	cfg.SegmentSize = 0
	assert.Error(t, cfg.Validate())
}

func TestLoadConfigKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("segmentsize: 64\nautomation: false\n"), 0644))
	cfg, err := mixgraph.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.SegmentSize)
	assert.False(t, cfg.Automation)
	assert.Equal(t, mixgraph.DefaultConfig().SampleRate, cfg.SampleRate)

	require.NoError(t, os.WriteFile(path, []byte("rampdownfactor: 2\n"), 0644))
	_, err = mixgraph.LoadConfig(path)
	assert.Error(t, err)
}

func TestInterleave(t *testing.T) {
	got := mixgraph.Interleave(nil, [][]float32{{1, 2}, {3, 4}})
	assert.Equal(t, []float32{1, 3, 2, 4}, got)
}

func TestWavHeader(t *testing.T) {
	b, err := mixgraph.Wav([]float32{0, 0.5, -0.5, 1}, 2, 48000, false)
	require.NoError(t, err)
	assert.Equal(t, "RIFF", string(b[0:4]))
	assert.Equal(t, "WAVE", string(b[8:12]))
	assert.Equal(t, uint16(3), binary.LittleEndian.Uint16(b[20:]), "float wav should use format 3")
	assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(b[22:]))
	assert.Equal(t, uint32(48000), binary.LittleEndian.Uint32(b[24:]))
	_, err = mixgraph.Wav(nil, 0, 48000, false)
	assert.Error(t, err)
}

func TestTrySendDoesNotBlock(t *testing.T) {
	c := make(chan int, 1)
	assert.True(t, mixgraph.TrySend(c, 1))
	assert.False(t, mixgraph.TrySend(c, 2))
	v, ok := mixgraph.TryReceive(c)
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	_, ok = mixgraph.TryReceive(c)
	assert.False(t, ok)
	_, ok = mixgraph.TimeoutReceive(c, time.Millisecond)
	assert.False(t, ok)
}
