package mixgraph

type (
	// RouteKind tells what kind of endpoint a Route connects to.
	RouteKind int

	// Route is one half of a connection between two endpoints. A route
	// stored in the OutRoutes of track A with Track == B has a reciprocal
	// route in the InRoutes of B with Track == A and identical channels.
	//
	// Channel is the first channel of the source track that is routed,
	// Channels the number of routed channels (-1 for all channels from
	// Channel on). RemoteChannel is the first channel on the other end.
	// MidiPort and ChannelMask are only used by MidiPortRoutes: the route
	// carries the midi channels whose bit is set in ChannelMask.
	Route struct {
		Track         TrackID
		Channel       int
		Channels      int
		RemoteChannel int
		Kind          RouteKind
		MidiPort      int
		ChannelMask   int
	}

	// ChannelSpec is the channel part of a route request.
	ChannelSpec struct {
		Channel       int
		Channels      int
		RemoteChannel int
	}
)

const (
	TrackRoute RouteKind = iota
	MidiPortRoute
	ExternalPortRoute
)

// AllChannels is a ChannelSpec routing every channel of the source.
var AllChannels = ChannelSpec{Channel: 0, Channels: -1}

func (k RouteKind) String() string {
	switch k {
	case TrackRoute:
		return "track"
	case MidiPortRoute:
		return "midiport"
	case ExternalPortRoute:
		return "external"
	}
	return "unknown"
}

// Spec returns the channel part of the route.
func (r Route) Spec() ChannelSpec {
	return ChannelSpec{Channel: r.Channel, Channels: r.Channels, RemoteChannel: r.RemoteChannel}
}

// SameEndpoint reports whether two route halves describe the same
// connection, ignoring the peer-side MIDI fields.
func (r Route) SameEndpoint(o Route) bool {
	return r.Track == o.Track && r.Kind == o.Kind && r.Channel == o.Channel &&
		r.Channels == o.Channels && r.RemoteChannel == o.RemoteChannel &&
		r.MidiPort == o.MidiPort
}

// Clamp fits the spec into a source with srcChannels channels and a
// destination with dstChannels channels. ok is false if anything had to be
// changed. A Channels value of -1 is resolved to all remaining channels
// without counting as a change.
func (c ChannelSpec) Clamp(srcChannels, dstChannels int) (ret ChannelSpec, ok bool) {
	ret, ok = c, true
	if srcChannels < 1 {
		srcChannels = 1
	}
	if dstChannels < 1 {
		dstChannels = 1
	}
	if ret.Channel < 0 || ret.Channel >= srcChannels {
		ret.Channel, ok = 0, false
	}
	if ret.Channels == -1 {
		ret.Channels = srcChannels - ret.Channel
	}
	if ret.Channels < 1 || ret.Channel+ret.Channels > srcChannels {
		ret.Channels, ok = srcChannels-ret.Channel, false
	}
	if ret.RemoteChannel < 0 || ret.RemoteChannel >= dstChannels {
		ret.RemoteChannel, ok = 0, false
	}
	return ret, ok
}
