// Package rig describes a complete mixer setup in YAML (tracks, routes,
// aux sends, automation, scheduled events, MIDI mappings and test signal
// sources) and builds it onto an engine.
package rig

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/vsariola/mixgraph"
	"github.com/vsariola/mixgraph/ctrl"
	"github.com/vsariola/mixgraph/engine"
	"github.com/vsariola/mixgraph/gomidi"
)

type (
	Rig struct {
		Frames int             `yaml:",omitempty"` // length of a render, in frames
		Config mixgraph.Config `yaml:",omitempty"`
		Tracks []Track         `yaml:",omitempty"`
		Routes []Route         `yaml:",omitempty"`
		Events []Event         `yaml:",omitempty"`
		Midi   []MidiMapping   `yaml:",omitempty"`
	}

	Track struct {
		Name           string
		Type           string
		Channels       int      `yaml:",omitempty"`
		Volume         *float64 `yaml:",omitempty"` // 1 if omitted
		Pan            float64  `yaml:",omitempty"`
		Gain           float64  `yaml:",omitempty"`
		Prefader       bool     `yaml:",omitempty"`
		Mute           bool     `yaml:",omitempty"`
		Off            bool     `yaml:",omitempty"`
		Solo           bool     `yaml:",omitempty"`
		Record         bool     `yaml:",omitempty"`
		AutomationType string   `yaml:"automationtype,omitempty"`
		Source         *Source  `yaml:",omitempty"`
		Sends          []Send   `yaml:",omitempty"`
		Automation     []Curve  `yaml:",omitempty"`
	}

	Route struct {
		Src, Dst      string
		Channel       int  `yaml:",omitempty"`
		Channels      *int `yaml:",omitempty"` // all channels if omitted
		RemoteChannel int  `yaml:"remotechannel,omitempty"`
	}

	Send struct {
		Aux   string
		Level float64
	}

	// Curve is an automation curve of one controller.
	Curve struct {
		Param    string
		Log      bool `yaml:",omitempty"`
		Discrete bool `yaml:",omitempty"`
		Points   []Point
	}

	Point struct {
		Frame int
		Value float64
	}

	// Event is a control change scheduled at an engine frame.
	Event struct {
		Track  string
		Param  string
		Value  float64
		Frame  int
		Unique bool `yaml:",omitempty"`
	}

	MidiMapping struct {
		Channel *int `yaml:",omitempty"` // any channel if omitted
		CC      int
		Track   string
		Param   string
		Min     float64
		Max     float64
	}

	// Built is the result of building a rig: the ids of its tracks by name
	// and the MIDI mappings resolved to them.
	Built struct {
		IDs     map[string]mixgraph.TrackID
		Outputs []mixgraph.TrackID
		Midi    []gomidi.Mapping
	}
)

// Load reads a rig from a YAML file. Config keys missing from the rig keep
// their values in base.
func Load(path string, base mixgraph.Config) (*Rig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read rig %v: %w", path, err)
	}
	return Parse(b, base)
}

func Parse(b []byte, base mixgraph.Config) (*Rig, error) {
	r := Rig{Config: base}
	if err := yaml.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("could not parse rig: %w", err)
	}
	if err := r.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rig config: %w", err)
	}
	return &r, nil
}

// Build adds the rig to e. The tracks and routes take effect when the
// engine processes its next block.
func (r *Rig) Build(e *engine.Engine) (*Built, error) {
	b := &Built{IDs: make(map[string]mixgraph.TrackID, len(r.Tracks))}
	sampleRate := e.Config().SampleRate
	for _, t := range r.Tracks {
		if _, ok := b.IDs[t.Name]; ok {
			return nil, fmt.Errorf("duplicate track name %q", t.Name)
		}
		typ, err := mixgraph.ParseTrackType(t.Type)
		if err != nil {
			return nil, fmt.Errorf("track %q: %w", t.Name, err)
		}
		spec := engine.TrackSpec{
			Type:     typ,
			Name:     t.Name,
			Channels: t.Channels,
			Volume:   1,
			Pan:      t.Pan,
			Gain:     t.Gain,
			Prefader: t.Prefader,
			Mute:     t.Mute,
			Off:      t.Off,
			Solo:     t.Solo,
			Record:   t.Record,
		}
		if spec.Channels == 0 {
			spec.Channels = 2
		}
		if t.Volume != nil {
			spec.Volume = *t.Volume
		}
		if t.Source != nil {
			src, err := t.Source.sampleSource(sampleRate)
			if err != nil {
				return nil, fmt.Errorf("track %q: %w", t.Name, err)
			}
			spec.Source = src
		}
		id, err := e.AddTrack(spec)
		if err != nil {
			return nil, fmt.Errorf("track %q: %w", t.Name, err)
		}
		b.IDs[t.Name] = id
		if typ == mixgraph.AudioOutput {
			b.Outputs = append(b.Outputs, id)
		}
	}
	var errs []error
	for _, t := range r.Tracks {
		errs = append(errs, b.configure(e, t))
	}
	for _, rt := range r.Routes {
		errs = append(errs, b.route(e, rt))
	}
	for _, ev := range r.Events {
		errs = append(errs, b.event(e, ev))
	}
	for _, m := range r.Midi {
		mp, err := b.mapping(m)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		b.Midi = append(b.Midi, mp)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"function": "Build",
		"tracks":   len(r.Tracks),
		"routes":   len(r.Routes),
	}).Debug("Rig built")
	return b, nil
}

func (b *Built) track(name string) (mixgraph.TrackID, error) {
	id, ok := b.IDs[name]
	if !ok {
		return mixgraph.NoTrack, fmt.Errorf("track %q: %w", name, mixgraph.ErrUnknownTrack)
	}
	return id, nil
}

func (b *Built) configure(e *engine.Engine, t Track) error {
	id := b.IDs[t.Name]
	for _, s := range t.Sends {
		aux, err := b.track(s.Aux)
		if err != nil {
			return fmt.Errorf("send of %q: %w", t.Name, err)
		}
		if err := e.SetAuxSend(id, aux, s.Level); err != nil {
			return fmt.Errorf("send of %q: %w", t.Name, err)
		}
	}
	if len(t.Automation) > 0 && t.AutomationType == "" {
		t.AutomationType = ctrl.AutoRead.String()
	}
	if t.AutomationType != "" {
		at, err := parseAutomationType(t.AutomationType)
		if err != nil {
			return fmt.Errorf("track %q: %w", t.Name, err)
		}
		if err := e.SetAutomationType(id, at); err != nil {
			return err
		}
	}
	for _, c := range t.Automation {
		param, err := parseParam(c.Param)
		if err != nil {
			return fmt.Errorf("automation of %q: %w", t.Name, err)
		}
		vt := ctrl.Linear
		if c.Log || (param == ctrl.Volume && !c.Discrete) {
			vt = ctrl.Log
		}
		l := ctrl.NewList(param, vt, 0)
		if c.Discrete {
			l.Mode = ctrl.Discrete
		}
		for _, p := range c.Points {
			l.Add(p.Frame, p.Value)
		}
		if err := e.SetAutomation(id, param, l); err != nil {
			return err
		}
	}
	return nil
}

func (b *Built) route(e *engine.Engine, r Route) error {
	src, err := b.track(r.Src)
	if err != nil {
		return fmt.Errorf("route: %w", err)
	}
	dst, err := b.track(r.Dst)
	if err != nil {
		return fmt.Errorf("route: %w", err)
	}
	spec := mixgraph.ChannelSpec{Channel: r.Channel, Channels: -1, RemoteChannel: r.RemoteChannel}
	if r.Channels != nil {
		spec.Channels = *r.Channels
	}
	return e.AddRoute(src, dst, spec)
}

func (b *Built) event(e *engine.Engine, ev Event) error {
	id, err := b.track(ev.Track)
	if err != nil {
		return fmt.Errorf("event: %w", err)
	}
	param, err := parseParam(ev.Param)
	if err != nil {
		return fmt.Errorf("event of %q: %w", ev.Track, err)
	}
	return e.ScheduleControlEvent(id, ctrl.Event{Param: param, Value: ev.Value, Frame: ev.Frame, Unique: ev.Unique})
}

func (b *Built) mapping(m MidiMapping) (gomidi.Mapping, error) {
	id, err := b.track(m.Track)
	if err != nil {
		return gomidi.Mapping{}, fmt.Errorf("midi mapping: %w", err)
	}
	param, err := parseParam(m.Param)
	if err != nil {
		return gomidi.Mapping{}, fmt.Errorf("midi mapping of %q: %w", m.Track, err)
	}
	mp := gomidi.Mapping{Channel: -1, CC: m.CC, Track: id, Param: param, Min: m.Min, Max: m.Max}
	if m.Channel != nil {
		mp.Channel = *m.Channel
	}
	return mp, nil
}

// parseParam accepts "volume", "pan" or a controller index.
func parseParam(s string) (int, error) {
	switch s {
	case "volume":
		return ctrl.Volume, nil
	case "pan":
		return ctrl.Pan, nil
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("unknown controller %q: %w", s, mixgraph.ErrInvalidParam)
	}
	return i, nil
}

func parseAutomationType(s string) (ctrl.AutomationType, error) {
	for t := ctrl.AutoOff; t <= ctrl.AutoTouch; t++ {
		if t.String() == s {
			return t, nil
		}
	}
	return ctrl.AutoOff, fmt.Errorf("unknown automation type %q", s)
}
