package rig

import (
	"fmt"
	"math"

	"github.com/viterin/vek/vek32"
	"github.com/vsariola/mixgraph"
)

type (
	// Source is a test signal feeding an input, synth or wave track.
	Source struct {
		Kind      string  // "sine" or "constant"
		Frequency float64 `yaml:",omitempty"`
		Amplitude float64 `yaml:",omitempty"`
		Value     float64 `yaml:",omitempty"`
	}

	// Sine renders a sine wave as a function of the frame position, so
	// that the same position always reads the same samples.
	Sine struct {
		Frequency  float64
		Amplitude  float64
		SampleRate int
	}

	Constant struct {
		Value float32
	}
)

func (s *Source) sampleSource(sampleRate int) (mixgraph.SampleSource, error) {
	switch s.Kind {
	case "sine":
		if s.Frequency <= 0 {
			return nil, fmt.Errorf("sine source needs a positive frequency, got %v", s.Frequency)
		}
		a := s.Amplitude
		if a == 0 {
			a = 1
		}
		return &Sine{Frequency: s.Frequency, Amplitude: a, SampleRate: sampleRate}, nil
	case "constant":
		return Constant{Value: float32(s.Value)}, nil
	}
	return nil, fmt.Errorf("unknown source kind %q", s.Kind)
}

func (s *Sine) ReadSamples(pos int, buffers [][]float32) bool {
	w := 2 * math.Pi * s.Frequency / float64(s.SampleRate)
	for _, b := range buffers {
		for i := range b {
			b[i] = float32(s.Amplitude * math.Sin(w*float64(pos+i)))
		}
	}
	return true
}

func (c Constant) ReadSamples(pos int, buffers [][]float32) bool {
	for _, b := range buffers {
		vek32.Repeat_Into(b, c.Value, len(b))
	}
	return true
}
