package engine

import (
	"math"
	"sync/atomic"

	"github.com/vsariola/mixgraph"
	"github.com/vsariola/mixgraph/ctrl"
	"github.com/vsariola/mixgraph/fifo"
	"github.com/vsariola/mixgraph/graph"
)

type (
	// AuxSend sends a scaled copy of a track's output to an aux track.
	AuxSend struct {
		Aux   mixgraph.TrackID
		Level float64
	}

	// planar is a set of preallocated channel buffers with reusable
	// storage for a view of their first frames.
	planar struct {
		data [][]float32
		view [][]float32
	}

	// strip is the audio state of one track. Everything except the atomics,
	// ctrls and fifo belongs to the real-time thread.
	strip struct {
		track    *graph.Track
		ctrls    *ctrl.Controls
		effects  mixgraph.EffectPipeline
		source   mixgraph.SampleSource
		sink     mixgraph.SampleSink
		gain     float64
		prefader bool
		sends    []AuxSend

		curVolume, curVol1, curVol2 float64

		outBuffers  planar // post-fader, one per declared output channel
		extraMix    [2][]float32
		work        planar // gathered input
		sendBuffers planar // aux tracks: sum of the sends of this block
		hw          planar // output tracks: the block handed to the sink
		scratch     []float32

		processed bool
		haveData  bool
		busy      bool

		meter  [mixgraph.MaxChannels]atomic.Uint32
		peak   [mixgraph.MaxChannels]atomic.Uint32
		record atomic.Bool
		fifo   *fifo.Fifo
	}
)

func newStrip(t *graph.Track, cfg mixgraph.Config, c *ctrl.Controls) *strip {
	seg := cfg.SegmentSize
	s := &strip{
		track:   t,
		ctrls:   c,
		gain:    1,
		scratch: make([]float32, seg),
	}
	outs := t.Channels
	if t.Channels > 1 {
		outs = t.TotalOutChannels
	}
	s.outBuffers = newPlanar(outs, seg)
	s.work = newPlanar(max(outs, t.Channels), seg)
	s.extraMix = [2][]float32{make([]float32, seg), make([]float32, seg)}
	switch t.Type {
	case mixgraph.AudioAux:
		s.sendBuffers = newPlanar(t.Channels, seg)
	case mixgraph.AudioOutput:
		s.hw = newPlanar(t.Channels, seg)
	}
	if t.Type == mixgraph.Wave || t.Type == mixgraph.AudioOutput {
		s.fifo = fifo.New(cfg.FifoLength, cfg.MaxBlockSamples)
	}
	return s
}

func newPlanar(channels, frames int) planar {
	p := planar{data: make([][]float32, channels), view: make([][]float32, 0, channels)}
	for i := range p.data {
		p.data[i] = make([]float32, frames)
	}
	return p
}

// frames returns the first n frames of the first channels buffers. The
// returned slice is valid until the next call.
func (p *planar) frames(channels, n int) [][]float32 {
	p.view = p.view[:0]
	for _, c := range p.data[:min(channels, len(p.data))] {
		p.view = append(p.view, c[:n])
	}
	return p.view
}

// srcTotalOut is the number of output channels other tracks can route
// from. A mono track only ever has one.
func (s *strip) srcTotalOut() int {
	if s.track.Channels == 1 {
		return 1
	}
	return s.track.TotalOutChannels
}

func (s *strip) hasAuxSend(threshold float64) bool {
	for _, a := range s.sends {
		if a.Level > threshold {
			return true
		}
	}
	return false
}

func (s *strip) sendsTo(aux mixgraph.TrackID, threshold float64) bool {
	for _, a := range s.sends {
		if a.Aux == aux && a.Level > threshold {
			return true
		}
	}
	return false
}

func (s *strip) setMeter(c int, v float32) {
	s.meter[c].Store(math.Float32bits(v))
	if v > math.Float32frombits(s.peak[c].Load()) {
		s.peak[c].Store(math.Float32bits(v))
	}
}

func (s *strip) resetMeter() {
	for i := range s.meter {
		s.meter[i].Store(0)
	}
}

func (s *strip) resetPeaks() {
	for i := range s.peak {
		s.peak[i].Store(0)
	}
}

func (s *strip) meters(peak bool) []float32 {
	src := &s.meter
	if peak {
		src = &s.peak
	}
	ret := make([]float32, s.track.Channels)
	for i := range ret {
		ret[i] = math.Float32frombits(src[i].Load())
	}
	return ret
}
