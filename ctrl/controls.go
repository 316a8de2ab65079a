package ctrl

import (
	"math"
	"sync/atomic"

	"github.com/vsariola/mixgraph"
)

// AutomationType is the automation mode of a track. Read and touch play
// back the same way; under touch the user interface disables a controller
// with Enable while it is held, and the controller follows its events
// instead of its curve until released.
type AutomationType int32

const (
	AutoOff AutomationType = iota
	AutoRead
	AutoTouch
)

// Track controller indices. Effect parameters follow them.
const (
	Volume = iota
	Pan
	NumTrackCtrls
)

var automationTypeNames = [...]string{"off", "read", "touch"}

func (t AutomationType) String() string {
	if t < 0 || int(t) >= len(automationTypeNames) {
		return "invalid"
	}
	return automationTypeNames[t]
}

type (
	// Port is one controller. Its current value is shared with the
	// non-real-time side; the automation list and cursor belong to the
	// real-time thread.
	Port struct {
		Name      string
		Min, Max  float64
		ValueType ValueType

		List   *List
		Interp Interpolate

		value   atomic.Uint64
		enabled atomic.Bool
	}

	// Controls is the controller set of a track together with its event
	// queue.
	Controls struct {
		ports    []Port
		queue    *Queue
		autoType atomic.Int32

		lastFrame int
		hasLast   bool

		track    mixgraph.TrackID
		name     string
		reporter mixgraph.Reporter
	}

	// PortSpec describes a controller to create.
	PortSpec struct {
		Name      string
		Min, Max  float64
		Init      float64
		ValueType ValueType
	}

	// SliceOptions are the per-block conditions of slicing. Run is set when
	// the track actually renders audio with its controllers; otherwise
	// events still update the values but do not split the block.
	SliceOptions struct {
		Playing    bool
		Automation bool
		Run        bool
		MinPeriod  int
	}

	// Slice is a run of frames over which every controller is either
	// constant or moving along one automation segment.
	Slice struct {
		Offset, Frames int
	}

	// Slicer splits one block into slices; see Controls.Slices.
	Slicer struct {
		c       *Controls
		opts    SliceOptions
		pos     int
		clock   int
		nframes int
		sample  int
		slice   int
	}
)

// TrackPorts returns the volume and pan controllers of a track.
func TrackPorts(volume, pan float64) []PortSpec {
	return []PortSpec{
		{Name: "volume", Min: 0, Max: 2, Init: volume, ValueType: Log},
		{Name: "pan", Min: -1, Max: 1, Init: pan, ValueType: Linear},
	}
}

func NewControls(ports []PortSpec, queueLength int, track mixgraph.TrackID, name string, r mixgraph.Reporter) *Controls {
	if r == nil {
		r = mixgraph.Discard
	}
	c := &Controls{
		ports:    make([]Port, len(ports)),
		queue:    NewQueue(queueLength),
		track:    track,
		name:     name,
		reporter: r,
	}
	for i, s := range ports {
		p := &c.ports[i]
		p.Name, p.Min, p.Max, p.ValueType = s.Name, s.Min, s.Max, s.ValueType
		if p.Min == 0 && p.Max == 0 {
			p.Min, p.Max = math.Inf(-1), math.Inf(1)
		}
		p.SetValue(p.clamp(s.Init))
		p.enabled.Store(true)
		p.Interp.Static(p.Value())
	}
	return c
}

func (p *Port) Value() float64 { return math.Float64frombits(p.value.Load()) }

// SetValue stores v as the current value seen by observers.
func (p *Port) SetValue(v float64) { p.value.Store(math.Float64bits(v)) }

func (p *Port) clamp(v float64) float64 { return min(max(v, p.Min), p.Max) }

// Enabled reports whether automation playback drives the port. Touch
// automation disables a port while the user holds it.
func (p *Port) Enabled() bool { return p.enabled.Load() }

func (c *Controls) NumPorts() int { return len(c.ports) }

// Port returns the controller at index i, or nil.
func (c *Controls) Port(i int) *Port {
	if i < 0 || i >= len(c.ports) {
		return nil
	}
	return &c.ports[i]
}

func (c *Controls) Value(i int) float64 {
	if p := c.Port(i); p != nil {
		return p.Value()
	}
	return 0
}

func (c *Controls) Enable(i int, on bool) error {
	p := c.Port(i)
	if p == nil {
		return mixgraph.ErrInvalidParam
	}
	p.enabled.Store(on)
	return nil
}

func (c *Controls) AutomationType() AutomationType {
	return AutomationType(c.autoType.Load())
}

func (c *Controls) SetAutomationType(t AutomationType) {
	c.autoType.Store(int32(t))
}

// Schedule enqueues a control event. It never blocks.
func (c *Controls) Schedule(ev Event) error {
	if c.Port(ev.Param) == nil {
		return mixgraph.ErrInvalidParam
	}
	if !c.queue.Push(ev) {
		return mixgraph.ErrQueueFull
	}
	return nil
}

// SetList replaces the automation list of a port. It must be called from
// the real-time thread, between blocks.
func (c *Controls) SetList(i int, l *List) error {
	p := c.Port(i)
	if p == nil {
		return mixgraph.ErrInvalidParam
	}
	p.List = l
	return nil
}

// Slices starts splitting a block of nframes frames. pos is the transport
// position used for automation, clock the engine clock used for events.
func (c *Controls) Slices(pos, clock, nframes int, opts SliceOptions) Slicer {
	if opts.MinPeriod < 1 {
		opts.MinPeriod = 1
	}
	return Slicer{c: c, opts: opts, pos: pos, clock: clock, nframes: nframes}
}

// Next returns the next slice of the block. Before it returns, the ports
// are positioned for the slice: Interp describes the automation segment
// and Value holds the latest event value.
func (s *Slicer) Next() (Slice, bool) {
	for s.sample < s.nframes {
		n, consumed := s.plan()
		s.slice++
		if n <= 0 && !consumed {
			n = s.nframes - s.sample
		}
		if n > 0 {
			sl := Slice{Offset: s.sample, Frames: n}
			s.sample += n
			return sl, true
		}
	}
	return Slice{}, false
}

func (s *Slicer) plan() (n int, consumed bool) {
	c, opts := s.c, s.opts
	n = s.nframes - s.sample
	frame := s.pos + s.sample
	noAuto := !opts.Automation || c.AutomationType() == AutoOff
	if opts.Run {
		for i := range c.ports {
			p := &c.ports[i]
			ci := &p.Interp
			stale := frame < ci.SFrame || (ci.EFrame != -1 && frame >= ci.EFrame)
			switch {
			case ci.EStop && ci.EFrame != -1 && frame >= ci.EFrame:
				ci.Static(ci.EVal)
			case s.slice == 0 || (!ci.EStop && opts.Playing && stale):
				if p.List != nil {
					p.List.Interpolation(frame, noAuto || !p.Enabled(), p.Value(), ci)
				} else {
					ci.Static(p.Value())
				}
			}
			if opts.Playing && ci.EFrame != -1 {
				n = min(n, ci.EFrame-frame)
			}
		}
	}

	found := false
	first, last := 0, 0
	for {
		ev, ok := c.queue.Peek()
		if !ok {
			break
		}
		if c.hasLast && ev.Frame < c.lastFrame {
			c.queue.Remove()
			c.reporter.Report(mixgraph.Diagnostic{Kind: mixgraph.ErrOutOfOrderEvent, Track: c.track, Name: c.name, Frame: ev.Frame, Detail: "event discarded"})
			continue
		}
		rel := max(ev.Frame-s.clock, s.sample)
		if rel >= s.nframes || rel-s.sample >= max(n, 1) {
			break
		}
		if found && opts.Run && (ev.Unique || rel-first >= opts.MinPeriod) {
			break
		}
		c.queue.Remove()
		c.lastFrame, c.hasLast = ev.Frame, true
		p := c.Port(ev.Param)
		if p == nil {
			c.reporter.Report(mixgraph.Diagnostic{Kind: mixgraph.ErrInvalidParam, Track: c.track, Name: c.name, Frame: ev.Frame, Detail: "event discarded"})
			continue
		}
		if !found {
			first = rel
		}
		found, consumed, last = true, true, rel
		v := p.clamp(ev.Value)
		if opts.Run {
			p.Interp.EFrame = s.pos + rel
			p.Interp.EVal = v
			p.Interp.EStop = true
		}
		p.SetValue(v)
		if ev.Unique && opts.Run {
			break
		}
	}
	if found && opts.Run {
		n = last - s.sample
	}
	return n, consumed
}
