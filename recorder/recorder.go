// Package recorder drains the recording fifo of a track on a worker
// goroutine and encodes what it collected as a .wav file.
package recorder

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vsariola/mixgraph"
	"github.com/vsariola/mixgraph/fifo"
)

type Recorder struct {
	fifo       *fifo.Fifo
	channels   int
	sampleRate int
	pcm16      bool

	block   [][]float32
	samples []float32 // interleaved
	start   int
	next    int
	blocks  int
	gaps    int
}

// New returns a recorder of channels channels reading from f.
func New(f *fifo.Fifo, channels, sampleRate int, pcm16 bool) *Recorder {
	return &Recorder{
		fifo:       f,
		channels:   channels,
		sampleRate: sampleRate,
		pcm16:      pcm16,
		block:      make([][]float32, channels),
		start:      -1,
	}
}

// Drain moves every block queued in the fifo into the recording and
// returns how many were moved.
func (r *Recorder) Drain() int {
	n := 0
	for {
		frames, pos, err := r.fifo.Peek(r.block)
		if err != nil {
			return n
		}
		if r.start < 0 {
			r.start = pos
		} else if pos != r.next {
			r.gaps++
		}
		r.next = pos + frames
		r.samples = mixgraph.Interleave(r.samples, r.block)
		r.fifo.Remove()
		r.blocks++
		n++
	}
}

// Run drains the fifo every poll interval until ctx is done, then drains
// it a last time.
func (r *Recorder) Run(ctx context.Context, poll time.Duration) error {
	for {
		r.Drain()
		mixgraph.TimeoutReceive(ctx.Done(), poll)
		if ctx.Err() != nil {
			r.Drain()
			logrus.WithFields(logrus.Fields{
				"function": "Run",
				"blocks":   r.blocks,
				"frames":   r.Frames(),
				"gaps":     r.gaps,
			}).Debug("Recorder stopped")
			return ctx.Err()
		}
	}
}

// Frames returns the number of frames recorded so far.
func (r *Recorder) Frames() int { return len(r.samples) / r.channels }

// Start returns the frame position of the first recorded block, or -1.
func (r *Recorder) Start() int { return r.start }

// Gaps returns how many times a block did not continue where the previous
// one ended, e.g. after an overrun dropped blocks.
func (r *Recorder) Gaps() int { return r.gaps }

// Samples returns the recording as interleaved samples.
func (r *Recorder) Samples() []float32 { return r.samples }

func (r *Recorder) Wav() ([]byte, error) {
	return mixgraph.Wav(r.samples, r.channels, r.sampleRate, r.pcm16)
}

// WriteFile writes the recording to path as a .wav file.
func (r *Recorder) WriteFile(path string) error {
	b, err := r.Wav()
	if err != nil {
		return fmt.Errorf("could not encode recording: %w", err)
	}
	if err := os.WriteFile(path, b, 0644); err != nil {
		return fmt.Errorf("could not write recording to %v: %w", path, err)
	}
	return nil
}
