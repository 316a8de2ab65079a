// Package engine mixes the tracks of a graph once per audio block.
//
// The engine has two sides. ProcessBlock is called by the real-time audio
// thread; it never blocks, logs or allocates in the steady state. All other
// methods are called by the non-real-time side: they stage their changes
// through the graph or post control events, which ProcessBlock picks up at
// the start of the next block.
package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"github.com/vsariola/mixgraph"
	"github.com/vsariola/mixgraph/graph"
)

type Engine struct {
	cfg       mixgraph.Config
	transport mixgraph.Transport
	graph     *graph.Graph
	ramp      ramp

	clock      atomic.Int64
	blockClock int

	diag    chan mixgraph.Diagnostic
	dropped atomic.Int64

	// non-real-time registry of the tracks
	mu     sync.RWMutex
	tracks map[mixgraph.TrackID]*graph.Track

	// real-time work lists, rebuilt when the graph changes
	outputs []*graph.Track
	senders []*graph.Track
	auxes   []*graph.Track
	pending []*graph.Track
	epoch   uint32
}

// New creates an engine with an empty graph. A nil transport never rolls.
func New(cfg mixgraph.Config, transport mixgraph.Transport) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine.New: %w", err)
	}
	if transport == nil {
		transport = mixgraph.StoppedTransport{}
	}
	e := &Engine{
		cfg:       cfg,
		transport: transport,
		ramp:      newRamp(cfg),
		diag:      make(chan mixgraph.Diagnostic, cfg.DiagnosticQueueLength),
		tracks:    make(map[mixgraph.TrackID]*graph.Track),
		outputs:   make([]*graph.Track, 0, cfg.MaxTracks),
		senders:   make([]*graph.Track, 0, cfg.MaxTracks),
		auxes:     make([]*graph.Track, 0, cfg.MaxTracks),
		pending:   make([]*graph.Track, 0, cfg.MaxTracks),
	}
	e.graph = graph.New(cfg.OpQueueLength, cfg.MaxTracks, e)
	logrus.WithFields(logrus.Fields{
		"function":    "New",
		"samplerate":  cfg.SampleRate,
		"segmentsize": cfg.SegmentSize,
	}).Debug("Engine created")
	return e, nil
}

func (e *Engine) Config() mixgraph.Config { return e.cfg }

// Frame returns the engine clock: the number of frames processed so far.
// Control events are timestamped with it.
func (e *Engine) Frame() int { return int(e.clock.Load()) }

// Report implements mixgraph.Reporter. It never blocks: if the diagnostics
// channel is full the diagnostic is counted as dropped.
func (e *Engine) Report(d mixgraph.Diagnostic) {
	if !mixgraph.TrySend(e.diag, d) {
		e.dropped.Add(1)
	}
}

// Diagnostics returns the channel of real-time diagnostics, for callers
// that do not use RunDiagnostics.
func (e *Engine) Diagnostics() <-chan mixgraph.Diagnostic { return e.diag }

// Dropped returns the number of diagnostics lost because nobody drained
// the channel in time.
func (e *Engine) Dropped() int64 { return e.dropped.Load() }

// RunDiagnostics logs real-time diagnostics until ctx is done.
func (e *Engine) RunDiagnostics(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d := <-e.diag:
			logDiagnostic(d)
		}
	}
}

func logDiagnostic(d mixgraph.Diagnostic) {
	entry := logrus.WithFields(logrus.Fields{
		"function": "RunDiagnostics",
		"kind":     fmt.Sprint(d.Kind),
		"track":    d.Track,
		"name":     d.Name,
		"frame":    d.Frame,
	})
	if errors.Is(d.Kind, mixgraph.ErrMissingUpstream) {
		entry.Debug(d.Detail)
		return
	}
	entry.Warn(d.Detail)
}

// ProcessBlock renders frames frames starting at transport position pos.
// It first commits the staged graph operations, then pulls every output
// track, in chunks of at most SegmentSize frames.
func (e *Engine) ProcessBlock(pos, frames int) {
	if e.graph.Commit() > 0 {
		e.refresh()
	}
	for frames > 0 {
		n := min(frames, e.cfg.SegmentSize)
		e.process(pos, n)
		pos += n
		frames -= n
	}
}

// refresh rebuilds the work lists after the graph changed and clears the
// meters of tracks that went silent.
func (e *Engine) refresh() {
	e.outputs, e.senders, e.auxes = e.outputs[:0], e.senders[:0], e.auxes[:0]
	for _, t := range e.graph.Tracks() {
		s, ok := t.Data.(*strip)
		if !ok {
			continue
		}
		switch t.Type {
		case mixgraph.AudioOutput:
			e.outputs = append(e.outputs, t)
		case mixgraph.AudioAux:
			e.auxes = append(e.auxes, t)
		}
		if s.hasAuxSend(e.cfg.AuxSendThreshold) {
			e.senders = append(e.senders, t)
		}
		if t.Off || e.graph.IsMute(t) {
			s.resetMeter()
		}
	}
	e.orderSenders()
}

// orderSenders puts every sender after the senders feeding an aux bus it
// pulls, so that each bus is complete before anyone reads it. Senders on a
// feedback loop keep their order.
func (e *Engine) orderSenders() {
	e.pending = append(e.pending[:0], e.senders...)
	e.senders = e.senders[:0]
	for len(e.pending) > 0 {
		i := 0
		for j, t := range e.pending {
			e.epoch++
			if !e.pullsPendingAux(t, t) {
				i = j
				break
			}
		}
		e.senders = append(e.senders, e.pending[i])
		e.pending = slices.Delete(e.pending, i, i+1)
	}
}

// pullsPendingAux reports whether t, or a track upstream of it, is an aux
// bus that a pending sender other than self still has to feed.
func (e *Engine) pullsPendingAux(t, self *graph.Track) bool {
	s, ok := t.Data.(*strip)
	if !ok || s.visit == e.epoch {
		return false
	}
	s.visit = e.epoch
	if t.Type == mixgraph.AudioAux {
		for _, p := range e.pending {
			if p != self && p.Data.(*strip).sendsTo(t.ID, e.cfg.AuxSendThreshold) {
				return true
			}
		}
	}
	for _, r := range t.InRoutes {
		if r.Kind != mixgraph.TrackRoute {
			continue
		}
		if src := e.graph.Track(r.Track); src != nil && src.IsAudio() && e.pullsPendingAux(src, self) {
			return true
		}
	}
	return false
}

func (e *Engine) process(pos, n int) {
	e.blockClock = e.Frame()
	for _, t := range e.graph.Tracks() {
		if s, ok := t.Data.(*strip); ok {
			s.processed, s.haveData, s.busy = false, false, false
		}
	}
	for _, t := range e.auxes {
		s := t.Data.(*strip)
		for _, b := range s.sendBuffers.frames(t.Channels, n) {
			clear(b)
		}
	}
	// tracks feeding aux buses run first so the buses are complete when
	// the outputs pull them
	for _, t := range e.senders {
		e.copyData(t, pos, 0, -1, n, nil, true)
	}
	recording := e.transport.Recording()
	for _, t := range e.outputs {
		s := t.Data.(*strip)
		hw := s.hw.frames(t.Channels, n)
		e.copyData(t, pos, 0, -1, n, hw, false)
		if s.sink != nil {
			s.sink.WriteSamples(pos, hw)
		}
		if recording && s.record.Load() {
			if err := s.fifo.Put(t.Channels, n, hw, pos); err != nil {
				e.Report(mixgraph.Diagnostic{Kind: err, Track: t.ID, Name: t.Name, Frame: pos, Detail: "bounce block dropped"})
			}
		}
	}
	for _, t := range e.graph.Tracks() {
		if s, ok := t.Data.(*strip); ok && !s.processed {
			s.resetMeter()
		}
	}
	e.clock.Add(int64(n))
}

// Graph returns the graph of the engine. It must only be used by the
// real-time thread, or while ProcessBlock is not running.
func (e *Engine) Graph() *graph.Graph { return e.graph }
