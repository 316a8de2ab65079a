// Package oto plays the output tracks of the mixer on the default audio
// device.
package oto

import (
	"fmt"
	"sync/atomic"

	"github.com/ebitengine/oto/v3"
	"github.com/sirupsen/logrus"
	"github.com/vsariola/mixgraph"
	"github.com/vsariola/mixgraph/fifo"
)

type (
	Context struct {
		ctx        *oto.Context
		channels   int
		fifoLength int
		maxSamples int
		players    []*oto.Player
	}

	// Output is a SampleSink feeding an oto player. The real-time thread
	// puts finished blocks into a fifo with WriteSamples; the player drains
	// it through Read.
	Output struct {
		fifo     *fifo.Fifo
		channels int
		block    [][]float32
		frames   int
		offset   int
		overruns atomic.Int64
		silent   atomic.Int64
	}
)

const bytesPerSample = 4

var _ mixgraph.AudioContext = (*Context)(nil)

// NewContext opens the audio device with float32 samples. channels is the
// channel count of the device; outputs with fewer channels are repeated
// into it.
func NewContext(cfg mixgraph.Config, channels int) (*Context, error) {
	op := &oto.NewContextOptions{
		SampleRate:   cfg.SampleRate,
		ChannelCount: channels,
		Format:       oto.FormatFloat32LE,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("cannot create oto context: %w", err)
	}
	<-ready
	return &Context{ctx: ctx, channels: channels, fifoLength: cfg.FifoLength, maxSamples: cfg.MaxBlockSamples}, nil
}

// Output implements mixgraph.AudioContext.
func (c *Context) Output(channels int) (mixgraph.SampleSink, error) {
	o, err := c.Open(channels)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// Open starts a player and returns the output feeding it.
func (c *Context) Open(channels int) (*Output, error) {
	if channels < 1 || channels > c.channels {
		return nil, fmt.Errorf("cannot open output with %d channels on a %d channel device", channels, c.channels)
	}
	o := NewOutput(c.channels, c.fifoLength, c.maxSamples)
	p := c.ctx.NewPlayer(o)
	p.Play()
	c.players = append(c.players, p)
	logrus.WithFields(logrus.Fields{
		"function": "Output",
		"channels": channels,
	}).Debug("Audio output started")
	return o, nil
}

func (c *Context) Close() error {
	var first error
	for _, p := range c.players {
		if err := p.Close(); err != nil && first == nil {
			first = fmt.Errorf("cannot close oto player: %w", err)
		}
	}
	c.players = nil
	if err := c.ctx.Suspend(); err != nil && first == nil {
		first = fmt.Errorf("cannot suspend oto context: %w", err)
	}
	return first
}

// NewOutput returns an Output of the given device channel count, buffering
// at most fifoLength blocks.
func NewOutput(channels, fifoLength, maxSamples int) *Output {
	return &Output{
		fifo:     fifo.New(fifoLength, maxSamples),
		channels: channels,
		block:    make([][]float32, channels),
	}
}

// WriteSamples implements mixgraph.SampleSink. A block that does not fit
// in the fifo is dropped and counted.
func (o *Output) WriteSamples(pos int, buffers [][]float32) {
	if len(buffers) == 0 {
		return
	}
	if err := o.fifo.Put(o.channels, len(buffers[0]), buffers, pos); err != nil {
		o.overruns.Add(1)
	}
}

// Read implements io.Reader for the oto player. When no block is queued
// the rest of p is filled with silence, so the device never stalls.
func (o *Output) Read(p []byte) (int, error) {
	frameBytes := o.channels * bytesPerSample
	want := len(p) / frameBytes
	n := 0
	for want > 0 {
		if o.offset == o.frames {
			if o.frames > 0 {
				o.fifo.Remove()
				o.frames, o.offset = 0, 0
			}
			frames, _, err := o.fifo.Peek(o.block)
			if err != nil {
				o.silent.Add(1)
				clear(p[n : want*frameBytes+n])
				return n + want*frameBytes, nil
			}
			if frames == 0 {
				o.fifo.Remove()
				continue
			}
			o.frames = frames
		}
		k := min(want, o.frames-o.offset)
		n += putFloat32LE(p[n:], o.block, o.offset, o.offset+k)
		o.offset += k
		want -= k
	}
	return n, nil
}

// Overruns returns the number of blocks dropped because the device did
// not keep up.
func (o *Output) Overruns() int64 { return o.overruns.Load() }

// Underruns returns the number of reads padded with silence.
func (o *Output) Underruns() int64 { return o.silent.Load() }

// Buffered returns the number of blocks waiting to be played.
func (o *Output) Buffered() int { return o.fifo.Count() }

// Capacity returns the number of blocks the output can buffer.
func (o *Output) Capacity() int { return o.fifo.Cap() }
