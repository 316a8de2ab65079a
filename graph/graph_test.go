package graph_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vsariola/mixgraph"
	"github.com/vsariola/mixgraph/graph"
)

type diags []mixgraph.Diagnostic

func (d *diags) Report(x mixgraph.Diagnostic) { *d = append(*d, x) }

func (d diags) count(kind error) int {
	n := 0
	for _, x := range d {
		if errors.Is(x, kind) {
			n++
		}
	}
	return n
}

func add(t *testing.T, g *graph.Graph, typ mixgraph.TrackType, name string, channels int) *graph.Track {
	t.Helper()
	tr := g.NewTrack(typ, name, channels)
	require.NoError(t, g.Stage(graph.AddTrack{Track: tr}))
	g.Commit()
	return tr
}

func route(t *testing.T, g *graph.Graph, src, dst *graph.Track) {
	t.Helper()
	require.NoError(t, g.Stage(graph.AddRoute{Src: src.ID, Dst: dst.ID, Spec: mixgraph.AllChannels}))
	g.Commit()
}

func solo(t *testing.T, g *graph.Graph, tr *graph.Track, on bool) {
	t.Helper()
	require.NoError(t, g.Stage(graph.SetSolo{ID: tr.ID, On: on}))
	g.Commit()
}

func refCounts(g *graph.Graph) map[mixgraph.TrackID][2]int {
	ret := map[mixgraph.TrackID][2]int{}
	for _, t := range g.Tracks() {
		ret[t.ID] = [2]int{t.SoloRefCount, t.InternalSolo}
	}
	return ret
}

func TestSoloPropagatesUpstream(t *testing.T) {
	g := graph.New(16, 8, nil)
	a := add(t, g, mixgraph.Wave, "A", 1)
	b := add(t, g, mixgraph.AudioGroup, "B", 2)
	c := add(t, g, mixgraph.AudioOutput, "C", 2)
	d := add(t, g, mixgraph.Wave, "D", 1)
	route(t, g, a, b)
	route(t, g, b, c)
	solo(t, g, c, true)
	assert.GreaterOrEqual(t, a.SoloRefCount, 1)
	assert.GreaterOrEqual(t, b.SoloRefCount, 1)
	assert.Equal(t, 0, d.SoloRefCount)
	assert.False(t, g.IsMute(a))
	assert.False(t, g.IsMute(c))
	assert.True(t, g.IsMute(d), "unrelated tracks are silent while something is soloed")
}

func TestSoloPropagatesDownstream(t *testing.T) {
	g := graph.New(16, 8, nil)
	a := add(t, g, mixgraph.Wave, "A", 1)
	b := add(t, g, mixgraph.AudioOutput, "B", 2)
	route(t, g, a, b)
	solo(t, g, a, true)
	assert.Equal(t, 1, b.InternalSolo)
	assert.False(t, g.IsMute(b))
}

func TestSoloIsIdempotent(t *testing.T) {
	g := graph.New(16, 8, nil)
	a := add(t, g, mixgraph.Wave, "A", 1)
	b := add(t, g, mixgraph.AudioGroup, "B", 2)
	c := add(t, g, mixgraph.AudioOutput, "C", 2)
	d := add(t, g, mixgraph.Wave, "D", 1)
	route(t, g, a, b)
	route(t, g, b, c)
	route(t, g, d, c)
	for _, pre := range []*graph.Track{nil, d} {
		if pre != nil {
			solo(t, g, pre, true)
		}
		before := refCounts(g)
		soloBefore := g.SoloCount()
		for _, tr := range []*graph.Track{a, b, c} {
			solo(t, g, tr, true)
			solo(t, g, tr, false)
			assert.Equal(t, before, refCounts(g))
			assert.Equal(t, soloBefore, g.SoloCount())
		}
	}
}

func TestSoloCycleTerminates(t *testing.T) {
	var d diags
	g := graph.New(16, 8, &d)
	a := add(t, g, mixgraph.AudioGroup, "A", 2)
	b := add(t, g, mixgraph.AudioGroup, "B", 2)
	route(t, g, a, b)
	route(t, g, b, a)
	solo(t, g, b, true)
	assert.Positive(t, d.count(mixgraph.ErrCircularRoute))
	assert.Positive(t, a.SoloRefCount)
	assert.False(t, g.IsMute(a))
}

func TestMutedTrackInSoloChainStaysMuted(t *testing.T) {
	g := graph.New(16, 8, nil)
	a := add(t, g, mixgraph.Wave, "A", 1)
	b := add(t, g, mixgraph.AudioOutput, "B", 2)
	route(t, g, a, b)
	require.NoError(t, g.Stage(graph.SetMute{ID: a.ID, On: true}))
	g.Commit()
	assert.True(t, g.IsMute(a))
	solo(t, g, b, true)
	assert.True(t, g.IsMute(a))
	solo(t, g, a, true)
	assert.False(t, g.IsMute(a), "an explicit solo overrides mute")
}

func TestMidiSoloChain(t *testing.T) {
	g := graph.New(16, 8, nil)
	m := add(t, g, mixgraph.Midi, "M", 0)
	s := g.NewTrack(mixgraph.SoftSynth, "S", 2)
	s.MidiPort = 3
	require.NoError(t, g.Stage(graph.AddTrack{Track: s}))
	o := add(t, g, mixgraph.AudioOutput, "O", 2)
	in := add(t, g, mixgraph.AudioInput, "I", 2)
	require.NoError(t, g.Stage(graph.Func(func(*graph.Graph) { m.MidiOutPort, m.MidiOutChannel = 3, 2 })))
	require.NoError(t, g.Stage(graph.AddRoute{Src: mixgraph.NoTrack, Dst: in.ID, Kind: mixgraph.MidiPortRoute, MidiPort: 3, ChannelMask: 1 << 2, Spec: mixgraph.AllChannels}))
	g.Commit()
	route(t, g, s, o)

	solo(t, g, m, true)
	assert.Equal(t, 1, s.InternalSolo)
	assert.Equal(t, 1, o.InternalSolo)
	assert.Equal(t, 1, in.InternalSolo)
	solo(t, g, m, false)

	solo(t, g, o, true)
	assert.Equal(t, 1, m.InternalSolo, "the midi track driving the synth is kept audible")
	assert.Equal(t, 0, in.InternalSolo)
}

func TestRoutesAreReciprocal(t *testing.T) {
	g := graph.New(16, 8, nil)
	a := add(t, g, mixgraph.Wave, "A", 1)
	b := add(t, g, mixgraph.AudioOutput, "B", 2)
	route(t, g, a, b)
	route(t, g, a, b)
	require.Len(t, g.RoutesOut(a.ID), 1, "duplicate routes are ignored")
	require.Len(t, g.RoutesIn(b.ID), 1)
	out, in := g.RoutesOut(a.ID)[0], g.RoutesIn(b.ID)[0]
	assert.Equal(t, b.ID, out.Track)
	assert.Equal(t, a.ID, in.Track)
	assert.Equal(t, out.Spec(), in.Spec())
	assert.Equal(t, 1, out.Channels, "all channels of a mono source is one channel")

	require.NoError(t, g.Stage(graph.RemoveRoute{Src: a.ID, Dst: b.ID, Spec: mixgraph.AllChannels}))
	g.Commit()
	assert.Empty(t, g.RoutesOut(a.ID))
	assert.Empty(t, g.RoutesIn(b.ID))
}

func TestRemoveTrackRemovesRoutes(t *testing.T) {
	g := graph.New(16, 8, nil)
	a := add(t, g, mixgraph.Wave, "A", 1)
	b := add(t, g, mixgraph.AudioGroup, "B", 2)
	c := add(t, g, mixgraph.AudioOutput, "C", 2)
	route(t, g, a, b)
	route(t, g, b, c)
	require.NoError(t, g.Stage(graph.RemoveTrack{ID: b.ID}))
	g.Commit()
	assert.Nil(t, g.Track(b.ID))
	assert.Empty(t, a.OutRoutes)
	assert.Empty(t, c.InRoutes)
	assert.Equal(t, []*graph.Track{a, c}, g.Tracks())
}

func TestRouteChannelsAreClamped(t *testing.T) {
	var d diags
	g := graph.New(16, 8, &d)
	a := add(t, g, mixgraph.Wave, "A", 1)
	b := add(t, g, mixgraph.AudioOutput, "B", 2)
	require.NoError(t, g.Stage(graph.AddRoute{Src: a.ID, Dst: b.ID, Spec: mixgraph.ChannelSpec{Channel: 1, Channels: 2, RemoteChannel: 5}}))
	g.Commit()
	require.Len(t, a.OutRoutes, 1)
	assert.Equal(t, mixgraph.ChannelSpec{Channel: 0, Channels: 1, RemoteChannel: 0}, a.OutRoutes[0].Spec())
	assert.Equal(t, 1, d.count(mixgraph.ErrChannelMismatch))
}

func TestCarriedRoutesAreMirrored(t *testing.T) {
	g := graph.New(16, 8, nil)
	a := add(t, g, mixgraph.Wave, "A", 1)
	b := g.NewTrack(mixgraph.AudioOutput, "B", 2)
	b.InRoutes = append(b.InRoutes, mixgraph.Route{Track: a.ID, Channels: -1})
	require.NoError(t, g.Stage(graph.AddTrack{Track: b}))
	g.Commit()
	require.Len(t, a.OutRoutes, 1)
	assert.Equal(t, b.ID, a.OutRoutes[0].Track)
	require.Len(t, b.InRoutes, 1)
}

func TestUnknownTrackIsReported(t *testing.T) {
	var d diags
	g := graph.New(16, 8, &d)
	a := add(t, g, mixgraph.Wave, "A", 1)
	require.NoError(t, g.Stage(graph.AddRoute{Src: a.ID, Dst: 1000, Spec: mixgraph.AllChannels}))
	require.NoError(t, g.Stage(graph.SetMute{ID: 1000, On: true}))
	assert.Equal(t, 2, g.Commit())
	assert.Equal(t, 2, d.count(mixgraph.ErrUnknownTrack))
	assert.Empty(t, a.OutRoutes)
}

func TestStageOnFullQueue(t *testing.T) {
	g := graph.New(1, 8, nil)
	require.NoError(t, g.Stage(graph.SetSolo{ID: 1}))
	assert.ErrorIs(t, g.Stage(graph.SetSolo{ID: 1}), mixgraph.ErrQueueFull)
}

func TestOperationsApplyInOrder(t *testing.T) {
	g := graph.New(16, 8, nil)
	a := g.NewTrack(mixgraph.Wave, "A", 1)
	var seen *graph.Track
	require.NoError(t, g.Stage(graph.AddTrack{Track: a}))
	require.NoError(t, g.Stage(graph.Func(func(g *graph.Graph) { seen = g.Track(a.ID) })))
	assert.Nil(t, g.Track(a.ID), "staged operations are invisible before commit")
	assert.Equal(t, 2, g.Commit())
	assert.Same(t, a, seen)
}
