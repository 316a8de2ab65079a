// Package graph holds the tracks of the mixer and the routes between them.
//
// The graph is owned by the real-time thread. Other goroutines never touch
// it directly: they Stage operations, which the real-time thread applies
// with Commit at a block boundary, so that a block always sees one
// consistent snapshot of the topology.
package graph

import (
	"slices"
	"sync/atomic"

	"github.com/vsariola/mixgraph"
)

type (
	Graph struct {
		tracks    []*Track
		byID      map[mixgraph.TrackID]*Track
		ops       chan any
		nextID    atomic.Int64
		soloCount int
		solo      soloPass
		reporter  mixgraph.Reporter
	}

	// AddTrack inserts a track created with NewTrack. Routes already in
	// the track get their reciprocal halves added to the peers.
	AddTrack struct {
		Track *Track
	}

	RemoveTrack struct {
		ID mixgraph.TrackID
	}

	// AddRoute connects Src to Dst. For MidiPortRoute and
	// ExternalPortRoute one of the endpoints is NoTrack, and only the
	// track end stores the route.
	AddRoute struct {
		Src, Dst    mixgraph.TrackID
		Spec        mixgraph.ChannelSpec
		Kind        mixgraph.RouteKind
		MidiPort    int
		ChannelMask int
	}

	RemoveRoute struct {
		Src, Dst mixgraph.TrackID
		Spec     mixgraph.ChannelSpec
		Kind     mixgraph.RouteKind
		MidiPort int
	}

	SetSolo struct {
		ID mixgraph.TrackID
		On bool
	}

	SetMute struct {
		ID mixgraph.TrackID
		On bool
	}

	SetOff struct {
		ID mixgraph.TrackID
		On bool
	}

	// Func runs on the real-time thread during Commit, in order with the
	// other staged operations.
	Func func(g *Graph)
)

// New returns an empty graph. queueLength bounds the number of staged
// operations between two commits, maxTracks is a capacity hint.
func New(queueLength, maxTracks int, r mixgraph.Reporter) *Graph {
	if r == nil {
		r = mixgraph.Discard
	}
	g := &Graph{
		tracks:   make([]*Track, 0, maxTracks),
		byID:     make(map[mixgraph.TrackID]*Track, maxTracks),
		ops:      make(chan any, queueLength),
		reporter: r,
	}
	g.solo.g = g
	g.solo.reset(maxTracks)
	return g
}

// NewTrack creates a detached track with a fresh ID. Safe to call from any
// goroutine.
func (g *Graph) NewTrack(typ mixgraph.TrackType, name string, channels int) *Track {
	return NewTrack(mixgraph.TrackID(g.nextID.Add(1)), typ, name, channels)
}

// Stage queues an operation for the next Commit without blocking.
func (g *Graph) Stage(op any) error {
	if !mixgraph.TrySend(g.ops, op) {
		return mixgraph.ErrQueueFull
	}
	return nil
}

// Commit applies all staged operations in order and recomputes the solo
// state if anything affecting it changed. It must only be called by the
// real-time thread between blocks. It returns the number of operations
// applied.
func (g *Graph) Commit() int {
	n := 0
	dirty := false
loop:
	for {
		select {
		case msg := <-g.ops:
			n++
			switch m := msg.(type) {
			case AddTrack:
				dirty = g.addTrack(m.Track) || dirty
			case RemoveTrack:
				dirty = g.removeTrack(m.ID) || dirty
			case AddRoute:
				dirty = g.addRoute(m) || dirty
			case RemoveRoute:
				dirty = g.removeRoute(m) || dirty
			case SetSolo:
				if t := g.lookup(m.ID); t != nil && t.Solo != m.On {
					t.Solo = m.On
					dirty = true
				}
			case SetMute:
				if t := g.lookup(m.ID); t != nil {
					t.Mute = m.On
				}
			case SetOff:
				if t := g.lookup(m.ID); t != nil {
					t.Off = m.On
				}
			case Func:
				m(g)
			}
		default:
			break loop
		}
	}
	if dirty {
		g.updateSolo()
	}
	return n
}

// Tracks returns the tracks in insertion order. The slice must not be
// modified.
func (g *Graph) Tracks() []*Track { return g.tracks }

// Track returns the track with the given id, or nil.
func (g *Graph) Track(id mixgraph.TrackID) *Track { return g.byID[id] }

func (g *Graph) RoutesOut(id mixgraph.TrackID) []mixgraph.Route {
	if t := g.byID[id]; t != nil {
		return t.OutRoutes
	}
	return nil
}

func (g *Graph) RoutesIn(id mixgraph.TrackID) []mixgraph.Route {
	if t := g.byID[id]; t != nil {
		return t.InRoutes
	}
	return nil
}

func (g *Graph) Len() int { return len(g.tracks) }

func (g *Graph) lookup(id mixgraph.TrackID) *Track {
	t := g.byID[id]
	if t == nil {
		g.reporter.Report(mixgraph.Diagnostic{Kind: mixgraph.ErrUnknownTrack, Track: id, Detail: "operation ignored"})
	}
	return t
}

func (g *Graph) addTrack(t *Track) bool {
	if t == nil || g.byID[t.ID] != nil {
		return false
	}
	t.index = len(g.tracks)
	g.tracks = append(g.tracks, t)
	g.byID[t.ID] = t
	// re-create the reciprocal halves of routes the track already carries
	in, out := t.InRoutes, t.OutRoutes
	t.InRoutes = make([]mixgraph.Route, 0, max(routeCapacity, len(in)))
	t.OutRoutes = make([]mixgraph.Route, 0, max(routeCapacity, len(out)))
	for _, r := range in {
		if r.Kind == mixgraph.TrackRoute {
			g.addRoute(AddRoute{Src: r.Track, Dst: t.ID, Spec: r.Spec(), Kind: r.Kind})
		} else {
			g.addRoute(AddRoute{Src: mixgraph.NoTrack, Dst: t.ID, Spec: r.Spec(), Kind: r.Kind, MidiPort: r.MidiPort, ChannelMask: r.ChannelMask})
		}
	}
	for _, r := range out {
		if r.Kind == mixgraph.TrackRoute {
			g.addRoute(AddRoute{Src: t.ID, Dst: r.Track, Spec: r.Spec(), Kind: r.Kind})
		} else {
			g.addRoute(AddRoute{Src: t.ID, Dst: mixgraph.NoTrack, Spec: r.Spec(), Kind: r.Kind, MidiPort: r.MidiPort, ChannelMask: r.ChannelMask})
		}
	}
	return true
}

func (g *Graph) removeTrack(id mixgraph.TrackID) bool {
	t := g.lookup(id)
	if t == nil {
		return false
	}
	for _, r := range t.OutRoutes {
		if p := g.byID[r.Track]; p != nil && r.Kind == mixgraph.TrackRoute {
			p.InRoutes = slices.DeleteFunc(p.InRoutes, func(o mixgraph.Route) bool { return o.Track == id })
		}
	}
	for _, r := range t.InRoutes {
		if p := g.byID[r.Track]; p != nil && r.Kind == mixgraph.TrackRoute {
			p.OutRoutes = slices.DeleteFunc(p.OutRoutes, func(o mixgraph.Route) bool { return o.Track == id })
		}
	}
	g.tracks = slices.Delete(g.tracks, t.index, t.index+1)
	for i := t.index; i < len(g.tracks); i++ {
		g.tracks[i].index = i
	}
	delete(g.byID, id)
	t.index = -1
	return true
}

// halves returns the two halves of a track route, with the channel spec
// clamped into the tracks' declared channels.
func (g *Graph) halves(src, dst *Track, spec mixgraph.ChannelSpec) (out, in mixgraph.Route) {
	c, ok := spec.Clamp(src.TotalOutChannels, dst.TotalInChannels)
	if !ok {
		g.reporter.Report(mixgraph.Diagnostic{Kind: mixgraph.ErrChannelMismatch, Track: dst.ID, Name: dst.Name, Detail: "route channels clamped"})
	}
	out = mixgraph.Route{Track: dst.ID, Channel: c.Channel, Channels: c.Channels, RemoteChannel: c.RemoteChannel, Kind: mixgraph.TrackRoute}
	in = out
	in.Track = src.ID
	return out, in
}

// portRoute returns the route half stored on the track end of a port
// route.
func portRoute(t *Track, op AddRoute) mixgraph.Route {
	c, _ := op.Spec.Clamp(max(t.TotalOutChannels, 1), max(t.TotalInChannels, 1))
	return mixgraph.Route{Track: mixgraph.NoTrack, Channel: c.Channel, Channels: c.Channels, RemoteChannel: c.RemoteChannel, Kind: op.Kind, MidiPort: op.MidiPort, ChannelMask: op.ChannelMask}
}

func contains(routes []mixgraph.Route, r mixgraph.Route) bool {
	return slices.ContainsFunc(routes, r.SameEndpoint)
}

func (g *Graph) addRoute(op AddRoute) bool {
	if op.Kind != mixgraph.TrackRoute {
		if t := g.byID[op.Dst]; t != nil && op.Src == mixgraph.NoTrack {
			r := portRoute(t, op)
			if !contains(t.InRoutes, r) {
				t.InRoutes = append(t.InRoutes, r)
				return true
			}
			return false
		}
		if t := g.byID[op.Src]; t != nil && op.Dst == mixgraph.NoTrack {
			r := portRoute(t, op)
			if !contains(t.OutRoutes, r) {
				t.OutRoutes = append(t.OutRoutes, r)
				return true
			}
			return false
		}
		g.reporter.Report(mixgraph.Diagnostic{Kind: mixgraph.ErrUnknownTrack, Track: op.Dst, Detail: "port route dropped"})
		return false
	}
	src, dst := g.lookup(op.Src), g.lookup(op.Dst)
	if src == nil || dst == nil {
		return false
	}
	if !src.IsAudio() || !dst.IsAudio() {
		g.reporter.Report(mixgraph.Diagnostic{Kind: mixgraph.ErrNotAudioTrack, Track: dst.ID, Name: dst.Name, Detail: "track route dropped"})
		return false
	}
	out, in := g.halves(src, dst, op.Spec)
	if contains(src.OutRoutes, out) {
		return false
	}
	src.OutRoutes = append(src.OutRoutes, out)
	dst.InRoutes = append(dst.InRoutes, in)
	return true
}

func (g *Graph) removeRoute(op RemoveRoute) bool {
	if op.Kind != mixgraph.TrackRoute {
		if t := g.byID[op.Dst]; t != nil {
			r := portRoute(t, AddRoute{Spec: op.Spec, Kind: op.Kind, MidiPort: op.MidiPort})
			n := len(t.InRoutes)
			t.InRoutes = slices.DeleteFunc(t.InRoutes, r.SameEndpoint)
			return n != len(t.InRoutes)
		}
		if t := g.byID[op.Src]; t != nil {
			r := portRoute(t, AddRoute{Spec: op.Spec, Kind: op.Kind, MidiPort: op.MidiPort})
			n := len(t.OutRoutes)
			t.OutRoutes = slices.DeleteFunc(t.OutRoutes, r.SameEndpoint)
			return n != len(t.OutRoutes)
		}
		return false
	}
	src, dst := g.lookup(op.Src), g.lookup(op.Dst)
	if src == nil || dst == nil {
		return false
	}
	c, _ := op.Spec.Clamp(src.TotalOutChannels, dst.TotalInChannels)
	out := mixgraph.Route{Track: dst.ID, Channel: c.Channel, Channels: c.Channels, RemoteChannel: c.RemoteChannel, Kind: mixgraph.TrackRoute}
	in := out
	in.Track = src.ID
	n := len(src.OutRoutes)
	src.OutRoutes = slices.DeleteFunc(src.OutRoutes, out.SameEndpoint)
	dst.InRoutes = slices.DeleteFunc(dst.InRoutes, in.SameEndpoint)
	return n != len(src.OutRoutes)
}
