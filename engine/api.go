package engine

import (
	"fmt"
	"slices"

	"github.com/sirupsen/logrus"
	"github.com/vsariola/mixgraph"
	"github.com/vsariola/mixgraph/ctrl"
	"github.com/vsariola/mixgraph/fifo"
	"github.com/vsariola/mixgraph/graph"
)

// TrackSpec describes a track to add. Zero Gain means unity gain.
type TrackSpec struct {
	Type             mixgraph.TrackType
	Name             string
	Channels         int
	TotalOutChannels int
	Volume, Pan      float64
	Gain             float64
	Prefader         bool
	Mute, Off, Solo  bool
	Record           bool

	// Effect parameters, appended after the volume and pan controllers.
	ExtraParams []ctrl.PortSpec

	Effects mixgraph.EffectPipeline
	Source  mixgraph.SampleSource
	Sink    mixgraph.SampleSink

	// Midi connects midi and soft synth tracks. Nil leaves the track
	// unconnected.
	Midi *MidiPorts
}

// MidiPorts are the midi connections of a track: midi tracks send to
// OutPort on OutChannel, soft synths listen on Port. -1 means none.
type MidiPorts struct {
	Port       int
	OutPort    int
	OutChannel int
}

// AddTrack creates a track and stages its insertion. The track takes part
// in processing from the next block on.
func (e *Engine) AddTrack(spec TrackSpec) (mixgraph.TrackID, error) {
	t := e.graph.NewTrack(spec.Type, spec.Name, spec.Channels)
	if spec.TotalOutChannels > t.TotalOutChannels && t.IsAudio() {
		t.TotalOutChannels = spec.TotalOutChannels
	}
	t.Mute, t.Off, t.Solo = spec.Mute, spec.Off, spec.Solo
	if m := spec.Midi; m != nil {
		t.MidiPort, t.MidiOutPort, t.MidiOutChannel = m.Port, m.OutPort, m.OutChannel
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.tracks) >= e.cfg.MaxTracks {
		return mixgraph.NoTrack, fmt.Errorf("AddTrack: limit of %d tracks reached: %w", e.cfg.MaxTracks, mixgraph.ErrAllocation)
	}
	var s *strip
	if t.IsAudio() {
		ports := append(ctrl.TrackPorts(spec.Volume, spec.Pan), spec.ExtraParams...)
		c := ctrl.NewControls(ports, e.cfg.ControlQueueLength, t.ID, t.Name, e)
		s = newStrip(t, e.cfg, c)
		s.effects, s.source, s.sink = spec.Effects, spec.Source, spec.Sink
		s.prefader = spec.Prefader
		if spec.Gain != 0 {
			s.gain = spec.Gain
		}
		s.record.Store(spec.Record)
		t.Data = s
	}
	if err := e.graph.Stage(graph.AddTrack{Track: t}); err != nil {
		return mixgraph.NoTrack, fmt.Errorf("AddTrack: %w", err)
	}
	e.tracks[t.ID] = t
	logrus.WithFields(logrus.Fields{
		"function": "AddTrack",
		"track":    t.ID,
		"name":     t.Name,
		"type":     t.Type.String(),
		"channels": t.Channels,
	}).Debug("Track staged")
	return t.ID, nil
}

// RemoveTrack stages the removal of a track and all its routes.
func (e *Engine) RemoveTrack(id mixgraph.TrackID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.tracks[id] == nil {
		return fmt.Errorf("RemoveTrack: track %d: %w", id, mixgraph.ErrUnknownTrack)
	}
	if err := e.graph.Stage(graph.RemoveTrack{ID: id}); err != nil {
		return fmt.Errorf("RemoveTrack: %w", err)
	}
	delete(e.tracks, id)
	logrus.WithFields(logrus.Fields{
		"function": "RemoveTrack",
		"track":    id,
	}).Debug("Track removal staged")
	return nil
}

// AddRoute stages a track route from src to dst.
func (e *Engine) AddRoute(src, dst mixgraph.TrackID, spec mixgraph.ChannelSpec) error {
	if err := e.graph.Stage(graph.AddRoute{Src: src, Dst: dst, Spec: spec}); err != nil {
		return fmt.Errorf("AddRoute: %w", err)
	}
	logrus.WithFields(logrus.Fields{
		"function": "AddRoute",
		"src":      src,
		"dst":      dst,
	}).Debug("Route staged")
	return nil
}

// AddPortRoute stages a route from a midi port into an input track,
// carrying the midi channels set in channelMask.
func (e *Engine) AddPortRoute(dst mixgraph.TrackID, midiPort, channelMask int) error {
	op := graph.AddRoute{Src: mixgraph.NoTrack, Dst: dst, Spec: mixgraph.AllChannels, Kind: mixgraph.MidiPortRoute, MidiPort: midiPort, ChannelMask: channelMask}
	if err := e.graph.Stage(op); err != nil {
		return fmt.Errorf("AddPortRoute: %w", err)
	}
	return nil
}

func (e *Engine) RemoveRoute(src, dst mixgraph.TrackID, spec mixgraph.ChannelSpec) error {
	if err := e.graph.Stage(graph.RemoveRoute{Src: src, Dst: dst, Spec: spec}); err != nil {
		return fmt.Errorf("RemoveRoute: %w", err)
	}
	return nil
}

func (e *Engine) SetSolo(id mixgraph.TrackID, on bool) error {
	return e.stage("SetSolo", graph.SetSolo{ID: id, On: on})
}

func (e *Engine) SetMute(id mixgraph.TrackID, on bool) error {
	return e.stage("SetMute", graph.SetMute{ID: id, On: on})
}

func (e *Engine) SetOff(id mixgraph.TrackID, on bool) error {
	return e.stage("SetOff", graph.SetOff{ID: id, On: on})
}

func (e *Engine) stage(function string, op any) error {
	if err := e.graph.Stage(op); err != nil {
		return fmt.Errorf("%s: %w", function, err)
	}
	return nil
}

// strip returns the registered audio strip of a track.
func (e *Engine) strip(function string, id mixgraph.TrackID) (*strip, error) {
	e.mu.RLock()
	t := e.tracks[id]
	e.mu.RUnlock()
	if t == nil {
		return nil, fmt.Errorf("%s: track %d: %w", function, id, mixgraph.ErrUnknownTrack)
	}
	s, ok := t.Data.(*strip)
	if !ok {
		return nil, fmt.Errorf("%s: track %d: %w", function, id, mixgraph.ErrNotAudioTrack)
	}
	return s, nil
}

// update stages f to run on the strip of track id on the real-time thread.
func (e *Engine) update(function string, id mixgraph.TrackID, f func(s *strip)) error {
	s, err := e.strip(function, id)
	if err != nil {
		return err
	}
	return e.stage(function, graph.Func(func(*graph.Graph) { f(s) }))
}

func (e *Engine) SetPrefader(id mixgraph.TrackID, on bool) error {
	return e.update("SetPrefader", id, func(s *strip) { s.prefader = on })
}

// SetGain sets the external gain multiplier applied on top of the volume
// controller.
func (e *Engine) SetGain(id mixgraph.TrackID, gain float64) error {
	return e.update("SetGain", id, func(s *strip) { s.gain = gain })
}

// SetAuxSend sets the level of the send from track id to aux. A level at
// or below the send threshold disables the send. Aux tracks cannot send.
func (e *Engine) SetAuxSend(id, aux mixgraph.TrackID, level float64) error {
	a, err := e.strip("SetAuxSend", aux)
	if err != nil {
		return err
	}
	if a.track.Type != mixgraph.AudioAux {
		return fmt.Errorf("SetAuxSend: track %d is %v, not an aux track: %w", aux, a.track.Type, mixgraph.ErrInvalidParam)
	}
	s, err := e.strip("SetAuxSend", id)
	if err != nil {
		return err
	}
	if s.track.Type == mixgraph.AudioAux {
		return fmt.Errorf("SetAuxSend: aux track %d cannot send: %w", id, mixgraph.ErrInvalidParam)
	}
	return e.update("SetAuxSend", id, func(s *strip) {
		i := slices.IndexFunc(s.sends, func(x AuxSend) bool { return x.Aux == aux })
		switch {
		case i < 0:
			s.sends = append(s.sends, AuxSend{Aux: aux, Level: level})
		default:
			s.sends[i].Level = level
		}
	})
}

// SetSink replaces the sink an output track hands its blocks to.
func (e *Engine) SetSink(id mixgraph.TrackID, sink mixgraph.SampleSink) error {
	return e.update("SetSink", id, func(s *strip) { s.sink = sink })
}

// SetSource replaces the source of an input, synth or wave track.
func (e *Engine) SetSource(id mixgraph.TrackID, src mixgraph.SampleSource) error {
	return e.update("SetSource", id, func(s *strip) { s.source = src })
}

// SetRecord arms or disarms recording of a wave or output track.
func (e *Engine) SetRecord(id mixgraph.TrackID, on bool) error {
	s, err := e.strip("SetRecord", id)
	if err != nil {
		return err
	}
	if s.fifo == nil {
		return fmt.Errorf("SetRecord: track %d of type %v cannot record: %w", id, s.track.Type, mixgraph.ErrInvalidParam)
	}
	s.record.Store(on)
	return nil
}

// RecordFifo returns the fifo that recorded blocks of a wave or output
// track are put into.
func (e *Engine) RecordFifo(id mixgraph.TrackID) (*fifo.Fifo, error) {
	s, err := e.strip("RecordFifo", id)
	if err != nil {
		return nil, err
	}
	if s.fifo == nil {
		return nil, fmt.Errorf("RecordFifo: track %d of type %v cannot record: %w", id, s.track.Type, mixgraph.ErrInvalidParam)
	}
	return s.fifo, nil
}

// SetAutomation installs an automation curve for a controller. The list
// must not be modified afterwards.
func (e *Engine) SetAutomation(id mixgraph.TrackID, param int, l *ctrl.List) error {
	s, err := e.strip("SetAutomation", id)
	if err != nil {
		return err
	}
	if s.ctrls.Port(param) == nil {
		return fmt.Errorf("SetAutomation: param %d: %w", param, mixgraph.ErrInvalidParam)
	}
	return e.stage("SetAutomation", graph.Func(func(*graph.Graph) { s.ctrls.SetList(param, l) }))
}

func (e *Engine) SetAutomationType(id mixgraph.TrackID, t ctrl.AutomationType) error {
	s, err := e.strip("SetAutomationType", id)
	if err != nil {
		return err
	}
	s.ctrls.SetAutomationType(t)
	return nil
}

// EnableController turns automation playback of one controller on or
// off, e.g. while the user touches it.
func (e *Engine) EnableController(id mixgraph.TrackID, param int, on bool) error {
	s, err := e.strip("EnableController", id)
	if err != nil {
		return err
	}
	if err := s.ctrls.Enable(param, on); err != nil {
		return fmt.Errorf("EnableController: %w", err)
	}
	return nil
}

// ScheduleControlChange posts a control event taking effect at engine
// frame atFrame. It returns false if the track is unknown or its queue is
// full.
func (e *Engine) ScheduleControlChange(id mixgraph.TrackID, param int, value float64, atFrame int) bool {
	return e.ScheduleControlEvent(id, ctrl.Event{Param: param, Value: value, Frame: atFrame}) == nil
}

func (e *Engine) ScheduleControlEvent(id mixgraph.TrackID, ev ctrl.Event) error {
	s, err := e.strip("ScheduleControlEvent", id)
	if err != nil {
		return err
	}
	if err := s.ctrls.Schedule(ev); err != nil {
		return fmt.Errorf("ScheduleControlEvent: track %d: %w", id, err)
	}
	return nil
}

// SetVolume schedules a volume change at the current engine frame.
func (e *Engine) SetVolume(id mixgraph.TrackID, v float64) error {
	return e.ScheduleControlEvent(id, ctrl.Event{Param: ctrl.Volume, Value: v, Frame: e.Frame()})
}

// SetPan schedules a pan change at the current engine frame.
func (e *Engine) SetPan(id mixgraph.TrackID, p float64) error {
	return e.ScheduleControlEvent(id, ctrl.Event{Param: ctrl.Pan, Value: p, Frame: e.Frame()})
}

// Value returns the current value of a controller.
func (e *Engine) Value(id mixgraph.TrackID, param int) (float64, error) {
	s, err := e.strip("Value", id)
	if err != nil {
		return 0, err
	}
	p := s.ctrls.Port(param)
	if p == nil {
		return 0, fmt.Errorf("Value: param %d: %w", param, mixgraph.ErrInvalidParam)
	}
	return p.Value(), nil
}

// Meter returns the per-channel peak of the last block.
func (e *Engine) Meter(id mixgraph.TrackID) ([]float32, error) {
	s, err := e.strip("Meter", id)
	if err != nil {
		return nil, err
	}
	return s.meters(false), nil
}

// Peak returns the per-channel peak since the last ResetPeaks.
func (e *Engine) Peak(id mixgraph.TrackID) ([]float32, error) {
	s, err := e.strip("Peak", id)
	if err != nil {
		return nil, err
	}
	return s.meters(true), nil
}

func (e *Engine) ResetPeaks(id mixgraph.TrackID) error {
	s, err := e.strip("ResetPeaks", id)
	if err != nil {
		return err
	}
	s.resetPeaks()
	return nil
}

// TrackInfo is a snapshot of a track for display.
type TrackInfo struct {
	ID       mixgraph.TrackID
	Name     string
	Type     mixgraph.TrackType
	Channels int
	Volume   float64
	Pan      float64
}

// Tracks returns a snapshot of the registered tracks, ordered by id.
func (e *Engine) Tracks() []TrackInfo {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ret := make([]TrackInfo, 0, len(e.tracks))
	for id, t := range e.tracks {
		info := TrackInfo{ID: id, Name: t.Name, Type: t.Type, Channels: t.Channels}
		if s, ok := t.Data.(*strip); ok {
			info.Volume = s.ctrls.Value(ctrl.Volume)
			info.Pan = s.ctrls.Value(ctrl.Pan)
		}
		ret = append(ret, info)
	}
	slices.SortFunc(ret, func(a, b TrackInfo) int { return int(a.ID - b.ID) })
	return ret
}
