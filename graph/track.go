package graph

import (
	"github.com/vsariola/mixgraph"
)

// Track is a node of the graph. All fields belong to the real-time thread
// once the track has been committed; before that the creator may fill them
// in freely.
type Track struct {
	ID       mixgraph.TrackID
	Name     string
	Type     mixgraph.TrackType
	Mute     bool
	Off      bool
	Solo     bool
	Selected bool

	// Channels is the number of processed channels, TotalInChannels and
	// TotalOutChannels the number of declared channels, which can be
	// larger, e.g. for multi-out synths.
	Channels         int
	TotalInChannels  int
	TotalOutChannels int

	InRoutes  []mixgraph.Route
	OutRoutes []mixgraph.Route

	SoloRefCount int
	InternalSolo int

	// Midi tracks send to MidiOutPort on MidiOutChannel; soft synths
	// listen on MidiPort. -1 means none.
	MidiOutPort    int
	MidiOutChannel int
	MidiPort       int

	// Data is owner-attached state, e.g. the audio strip of the engine.
	Data any

	index   int
	variant variant
}

const routeCapacity = 8

// NewTrack returns a detached track. Audio tracks get between 1 and
// MaxChannels processed channels; midi tracks get none.
func NewTrack(id mixgraph.TrackID, typ mixgraph.TrackType, name string, channels int) *Track {
	t := &Track{
		ID:             id,
		Name:           name,
		Type:           typ,
		MidiOutPort:    -1,
		MidiOutChannel: -1,
		MidiPort:       -1,
		InRoutes:       make([]mixgraph.Route, 0, routeCapacity),
		OutRoutes:      make([]mixgraph.Route, 0, routeCapacity),
		index:          -1,
	}
	if typ.IsAudio() {
		t.Channels = min(max(channels, 1), mixgraph.MaxChannels)
		t.TotalInChannels = max(channels, t.Channels)
		t.TotalOutChannels = t.TotalInChannels
		t.variant = audioVariant{}
	} else {
		t.variant = midiVariant{}
	}
	return t
}

func (t *Track) IsAudio() bool { return t.Type.IsAudio() }

// variant is the per-type behaviour of a track in the solo chains.
type variant interface {
	// chains returns the traversal modes started from a soloed track:
	// true for the input side, false for the output side.
	chains() []bool
	// soloDeps visits every track that a solo chain passing through t
	// reaches next.
	soloDeps(p *soloPass, t *Track, inputs bool)
	// recurses tells whether a visited track passes the chain on.
	recurses() bool
}

type (
	audioVariant struct{}
	midiVariant  struct{}
)

var (
	audioChains = []bool{true, false}
	midiChains  = []bool{false}
)

func (audioVariant) chains() []bool { return audioChains }
func (audioVariant) recurses() bool { return true }

func (audioVariant) soloDeps(p *soloPass, t *Track, inputs bool) {
	g := p.g
	if !inputs {
		for _, r := range t.OutRoutes {
			if r.Kind == mixgraph.TrackRoute {
				if d := g.Track(r.Track); d != nil {
					p.visit(d, inputs)
				}
			}
		}
		return
	}
	if t.Type == mixgraph.SoftSynth && t.MidiPort >= 0 {
		for _, m := range g.tracks {
			if m.Type.IsMidi() && m.MidiOutPort == t.MidiPort {
				p.visit(m, inputs)
			}
		}
	}
	for _, r := range t.InRoutes {
		switch r.Kind {
		case mixgraph.TrackRoute:
			if s := g.Track(r.Track); s != nil {
				p.visit(s, inputs)
			}
		case mixgraph.MidiPortRoute:
			for _, m := range g.tracks {
				if m.Type.IsMidi() && m.MidiOutPort == r.MidiPort && channelBit(m.MidiOutChannel)&r.ChannelMask != 0 {
					p.visit(m, inputs)
				}
			}
		}
	}
}

func (midiVariant) chains() []bool { return midiChains }
func (midiVariant) recurses() bool { return false }

// soloDeps of a midi track reaches the synth listening on its port and
// the audio inputs fed from that port on its channel.
func (midiVariant) soloDeps(p *soloPass, t *Track, inputs bool) {
	if t.MidiOutPort < 0 {
		return
	}
	bit := channelBit(t.MidiOutChannel)
	for _, a := range p.g.tracks {
		switch a.Type {
		case mixgraph.SoftSynth:
			if a.MidiPort == t.MidiOutPort {
				p.visit(a, inputs)
			}
		case mixgraph.AudioInput:
			for _, r := range a.InRoutes {
				if r.Kind == mixgraph.MidiPortRoute && r.MidiPort == t.MidiOutPort && r.ChannelMask&bit != 0 {
					p.visit(a, inputs)
					break
				}
			}
		}
	}
}

func channelBit(ch int) int {
	if ch < 0 || ch > 15 {
		return 0
	}
	return 1 << ch
}
