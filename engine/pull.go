package engine

import (
	"github.com/viterin/vek/vek32"
	"github.com/vsariola/mixgraph"
	"github.com/vsariola/mixgraph/ctrl"
	"github.com/vsariola/mixgraph/graph"
)

// copyData pulls the output of track t for this block into dst, copying
// or, if add is set, summing. srcStart and srcChannels select the source
// channels; srcChannels == -1 means all of them. The track is processed at
// most once per block: later calls reuse its output buffers.
func (e *Engine) copyData(t *graph.Track, pos, srcStart, srcChannels, n int, dst [][]float32, add bool) {
	s, ok := t.Data.(*strip)
	if !ok {
		if !add {
			e.silence(dst)
		}
		return
	}
	if srcStart == -1 {
		srcStart = 0
	}
	trackChans := t.Channels
	srcChans := srcChannels
	if srcChans == -1 {
		srcChans = trackChans
	}
	srcTotal := s.srcTotalOut()

	if s.processed {
		if s.busy {
			e.Report(mixgraph.Diagnostic{Kind: mixgraph.ErrCircularRoute, Track: t.ID, Name: t.Name, Frame: pos, Detail: "feedback path read as silence"})
		}
		if s.haveData {
			e.mapOut(s, srcStart, srcChans, n, dst, add)
		} else if !add {
			e.silence(dst)
		}
		return
	}
	s.processed, s.haveData, s.busy = true, false, true
	defer func() { s.busy = false }()

	if t.Off {
		if !add {
			e.silence(dst)
		}
		if s.effects != nil {
			s.effects.Apply(pos, 0, n, nil)
		}
		e.processTrackCtrls(s, pos, 0, n, nil)
		s.resetMeter()
		return
	}

	buffer := s.work.frames(srcTotal, n)
	if !e.getData(s, pos, n, buffer) {
		e.silence(buffer)
	}
	// effects run even when muted so that tails can decay
	if s.effects != nil {
		s.effects.Apply(pos, trackChans, n, buffer)
	}
	e.processTrackCtrls(s, pos, trackChans, n, buffer)

	validOut := 0
	if !s.prefader {
		validOut = min(trackChans, 2)
	}
	muted := e.graph.IsMute(t)
	for c := 0; c < trackChans; c++ {
		if muted {
			s.setMeter(c, 0)
			continue
		}
		src := s.outBuffers.data[c][:n]
		if c >= validOut {
			src = buffer[c]
		}
		s.setMeter(c, e.peak(s, src))
	}
	if muted {
		if !add {
			e.silence(dst)
		}
		return
	}
	for i := validOut; i < srcTotal; i++ {
		copy(s.outBuffers.data[i][:n], buffer[i])
	}
	s.haveData = true

	e.auxSend(s, n)

	if srcStart >= srcTotal {
		if !add {
			e.silence(dst)
		}
		return
	}
	e.mapOut(s, srcStart, srcChans, n, dst, add)
}

func (e *Engine) addData(t *graph.Track, pos, srcStart, srcChannels, n int, dst [][]float32) {
	e.copyData(t, pos, srcStart, srcChannels, n, dst, true)
}

// mapOut copies or sums the processed output of s into dst, adapting the
// channel layout: equal counts map one to one, mono feeds both sides of a
// stereo destination and stereo is summed into mono.
func (e *Engine) mapOut(s *strip, srcStart, srcChans, n int, dst [][]float32, add bool) {
	srcTotal := s.srcTotalOut()
	if srcStart >= srcTotal {
		if !add {
			e.silence(dst)
		}
		return
	}
	if srcStart+srcChans > srcTotal {
		srcChans = srcTotal - srcStart
	}
	out := s.outBuffers.data
	dstChans := len(dst)
	switch {
	case srcChans == dstChans:
		for c := range dst {
			put(dst[c], out[c+srcStart][:n], add)
		}
	case srcChans == 1 && dstChans == 2:
		for c := range dst {
			sp := out[srcStart][:n]
			if !s.prefader && srcStart == 0 && s.track.Channels == 1 {
				sp = s.extraMix[c][:n]
			}
			put(dst[c], sp, add)
		}
	case srcChans == 2 && dstChans == 1:
		put(dst[0], out[srcStart][:n], add)
		vek32.Add_Inplace(dst[0], out[srcStart+1][:n])
	default:
		if !add {
			e.silence(dst)
		}
	}
}

func put(dst, src []float32, add bool) {
	if add {
		vek32.Add_Inplace(dst, src)
		return
	}
	copy(dst, src)
}

// getData fills buffer with the input of the track for this block and
// reports whether there was any.
func (e *Engine) getData(s *strip, pos, n int, buffer [][]float32) bool {
	t := s.track
	switch t.Type {
	case mixgraph.AudioInput:
		return e.readInput(s, pos, buffer)
	case mixgraph.AudioAux:
		for i, b := range buffer {
			copy(b, s.sendBuffers.data[i%len(s.sendBuffers.data)][:n])
		}
		return true
	case mixgraph.SoftSynth:
		if s.source != nil {
			return s.source.ReadSamples(pos, buffer)
		}
		return false
	case mixgraph.Wave:
		if s.source != nil && e.transport.Playing() && !hasTrackRoutes(t) {
			return s.source.ReadSamples(pos, buffer)
		}
		ok := e.fanIn(t, pos, n, buffer)
		if ok && s.record.Load() && e.transport.Recording() {
			if err := s.fifo.Put(t.Channels, n, buffer, pos); err != nil {
				e.Report(mixgraph.Diagnostic{Kind: err, Track: t.ID, Name: t.Name, Frame: pos, Detail: "recorded block dropped"})
			}
		}
		return ok
	}
	return e.fanIn(t, pos, n, buffer)
}

// fanIn copies the first input route into buffer and sums the rest.
func (e *Engine) fanIn(t *graph.Track, pos, n int, buffer [][]float32) bool {
	first := true
	for _, r := range t.InRoutes {
		if r.Kind != mixgraph.TrackRoute {
			continue
		}
		src := e.graph.Track(r.Track)
		if src == nil || !src.IsAudio() {
			continue
		}
		if first {
			e.copyData(src, pos, r.Channel, r.Channels, n, buffer, false)
			first = false
		} else {
			e.addData(src, pos, r.Channel, r.Channels, n, buffer)
		}
	}
	return !first
}

func hasTrackRoutes(t *graph.Track) bool {
	for _, r := range t.InRoutes {
		if r.Kind == mixgraph.TrackRoute {
			return true
		}
	}
	return false
}

// readInput reads the hardware capture of an input track. A missing or
// failing capture reads as silence.
func (e *Engine) readInput(s *strip, pos int, buffer [][]float32) bool {
	t := s.track
	if s.source == nil || !s.source.ReadSamples(pos, buffer) {
		e.Report(mixgraph.Diagnostic{Kind: mixgraph.ErrMissingUpstream, Track: t.ID, Name: t.Name, Frame: pos, Detail: "no capture data"})
		e.silence(buffer)
		return true
	}
	if e.cfg.UseDenormalBias {
		addBias(buffer, e.cfg.DenormalBias)
	}
	return true
}

// auxSend adds the scaled output of s to the send buffers of its aux
// tracks.
func (e *Engine) auxSend(s *strip, n int) {
	srcChans := s.track.Channels
	for _, a := range s.sends {
		if a.Level <= e.cfg.AuxSendThreshold {
			continue
		}
		aux := e.graph.Track(a.Aux)
		if aux == nil || aux.Type != mixgraph.AudioAux {
			continue
		}
		as := aux.Data.(*strip)
		m := float32(a.Level)
		dst := as.sendBuffers.data
		auxChans := len(dst)
		scaled := s.scratch[:n]
		switch {
		case (srcChans == 1 && auxChans == 1) || srcChans == 2:
			for ch := 0; ch < srcChans; ch++ {
				vek32.MulNumber_Into(scaled, s.outBuffers.data[ch][:n], m)
				vek32.Add_Inplace(dst[ch%auxChans][:n], scaled)
			}
		case srcChans == 1 && auxChans == 2:
			vek32.MulNumber_Into(scaled, s.outBuffers.data[0][:n], m)
			for ch := 0; ch < auxChans; ch++ {
				vek32.Add_Inplace(dst[ch][:n], scaled)
			}
		}
	}
}

// processTrackCtrls advances the controllers of s over the block and, if
// the track runs, renders buffer through the volume and pan ramp.
func (e *Engine) processTrackCtrls(s *strip, pos, trackChans, n int, buffer [][]float32) {
	run := trackChans != 0 && !s.prefader
	sl := s.ctrls.Slices(pos, e.blockClock, n, ctrl.SliceOptions{
		Playing:    e.transport.Playing(),
		Automation: e.cfg.Automation,
		Run:        run,
		MinPeriod:  min(e.cfg.MinControlProcessPeriod, n),
	})
	for {
		slice, ok := sl.Next()
		if !ok {
			return
		}
		if run {
			e.applyRamp(s, pos, slice, trackChans, buffer)
		}
	}
}

// peak returns the largest absolute sample of buf.
func (e *Engine) peak(s *strip, buf []float32) float32 {
	if len(buf) == 0 {
		return 0
	}
	tmp := s.scratch[:len(buf)]
	copy(tmp, buf)
	vek32.Abs_Inplace(tmp)
	return vek32.Max(tmp)
}

// silence fills the buffers with zeros, or with the denormal bias if
// enabled.
func (e *Engine) silence(bufs [][]float32) {
	for _, b := range bufs {
		if e.cfg.UseDenormalBias {
			for i := range b {
				b[i] = e.cfg.DenormalBias
			}
			continue
		}
		vek32.Zeros_Into(b, len(b))
	}
}

func addBias(bufs [][]float32, bias float32) {
	for _, b := range bufs {
		vek32.AddNumber_Inplace(b, bias)
	}
}
