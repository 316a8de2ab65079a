package engine

import (
	"github.com/vsariola/mixgraph"
	"github.com/vsariola/mixgraph/ctrl"
)

// ramp moves a running gain towards its target one sample at a time:
// exponentially up by Up, down by Down. Rising from exact zero starts at
// Floor, and falling below Floor snaps to the target.
type ramp struct {
	Up, Down, Floor float64
}

func newRamp(cfg mixgraph.Config) ramp {
	return ramp{Up: cfg.RampUpFactor, Down: cfg.RampDownFactor, Floor: cfg.RampFloor}
}

func (r ramp) step(cur, target float64) float64 {
	switch {
	case target > cur:
		if cur == 0 {
			cur = r.Floor
		}
		cur *= r.Up
		if cur >= target {
			cur = target
		}
	case target < cur:
		cur *= r.Down
		if cur <= target || cur <= r.Floor {
			cur = target
		}
	}
	return cur
}

// apply renders one slice of frames through the volume and pan
// controllers. Mono tracks write the volume-only signal to outBuffers[0]
// and the pan-split signal to extraMix; stereo tracks write the pan-split
// signal to outBuffers[0:2].
func (e *Engine) applyRamp(s *strip, pos int, sl ctrl.Slice, trackChans int, in [][]float32) {
	r := e.ramp
	playing := e.transport.Playing()
	vol := s.ctrls.Port(ctrl.Volume)
	pan := s.ctrls.Port(ctrl.Pan)
	frame := pos + sl.Offset
	lo, hi := sl.Offset, sl.Offset+sl.Frames

	var sp1, sp2, dp1, dp2 []float32
	if trackChans == 1 {
		sp, dp := in[0][lo:hi], s.outBuffers.data[0][lo:hi]
		if vol.Interp.DoInterp && playing {
			var v float64
			for k := range dp {
				v = vol.Interp.At(frame+k, vol.ValueType)
				s.curVolume = r.step(s.curVolume, v*s.gain)
				dp[k] = sp[k] * float32(s.curVolume)
			}
			vol.SetValue(v)
		} else {
			v := staticValue(vol, frame)
			vol.SetValue(v)
			for k := range dp {
				s.curVolume = r.step(s.curVolume, v*s.gain)
				dp[k] = sp[k] * float32(s.curVolume)
			}
		}
		sp1, sp2 = sp, sp
		dp1, dp2 = s.extraMix[0][lo:hi], s.extraMix[1][lo:hi]
	} else {
		sp1, sp2 = in[0][lo:hi], in[1][lo:hi]
		dp1, dp2 = s.outBuffers.data[0][lo:hi], s.outBuffers.data[1][lo:hi]
	}

	if (vol.Interp.DoInterp || pan.Interp.DoInterp) && playing {
		var v, p float64
		for k := range dp1 {
			v = vol.Interp.At(frame+k, vol.ValueType)
			p = pan.Interp.At(frame+k, pan.ValueType)
			g := v * s.gain
			s.curVol1 = r.step(s.curVol1, g*(1-p))
			s.curVol2 = r.step(s.curVol2, g*(1+p))
			dp1[k] = sp1[k] * float32(s.curVol1)
			dp2[k] = sp2[k] * float32(s.curVol2)
		}
		vol.SetValue(v)
		pan.SetValue(p)
		return
	}
	v, p := staticValue(vol, frame), staticValue(pan, frame)
	vol.SetValue(v)
	pan.SetValue(p)
	g := v * s.gain
	v1, v2 := g*(1-p), g*(1+p)
	for k := range dp1 {
		s.curVol1 = r.step(s.curVol1, v1)
		s.curVol2 = r.step(s.curVol2, v2)
		dp1[k] = sp1[k] * float32(s.curVol1)
		dp2[k] = sp2[k] * float32(s.curVol2)
	}
}

// staticValue is the value of a port while the transport is stopped: the
// automation value at the start of the slice, or the start of the segment.
func staticValue(p *ctrl.Port, frame int) float64 {
	if p.Interp.DoInterp {
		return p.Interp.At(frame, p.ValueType)
	}
	return p.Interp.SVal
}
