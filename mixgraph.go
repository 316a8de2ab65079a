// Package mixgraph contains the data model shared by the real-time mixing
// engine: track identities and types, routes between tracks, the interfaces
// of the collaborators the engine talks to, configuration and the error
// taxonomy of the real-time path.
package mixgraph

import "fmt"

type (
	// TrackID identifies a track for its whole lifetime. IDs are never
	// reused within one engine.
	TrackID int

	// TrackType is the variant tag of a track.
	TrackType int

	// Capability is a bit set describing what a track variant can do.
	Capability uint8
)

const (
	Midi TrackType = iota
	Drum
	Wave
	AudioOutput
	AudioGroup
	AudioAux
	AudioInput
	SoftSynth
	NumTrackTypes
)

const (
	AudioIO Capability = 1 << iota // has audio buffers, controllers and meters
	MidiIO                         // sends or receives midi
	Synth                          // renders audio from midi
)

// MaxChannels is the maximum number of channels a track processes. Tracks
// may declare more total output channels (e.g. multi-out synths), but
// metering, panning and copying work on at most this many.
const MaxChannels = 2

// NoTrack is the zero value used when a Diagnostic is not tied to a track.
const NoTrack TrackID = -1

var trackTypeNames = [NumTrackTypes]string{
	Midi:        "midi",
	Drum:        "drum",
	Wave:        "wave",
	AudioOutput: "output",
	AudioGroup:  "group",
	AudioAux:    "aux",
	AudioInput:  "input",
	SoftSynth:   "synth",
}

func (t TrackType) String() string {
	if t < 0 || t >= NumTrackTypes {
		return fmt.Sprintf("TrackType(%d)", int(t))
	}
	return trackTypeNames[t]
}

// ParseTrackType is the inverse of TrackType.String.
func ParseTrackType(s string) (TrackType, error) {
	for i, n := range trackTypeNames {
		if n == s {
			return TrackType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown track type %q", s)
}

func (t TrackType) Capabilities() Capability {
	switch t {
	case Midi, Drum:
		return MidiIO
	case SoftSynth:
		return AudioIO | MidiIO | Synth
	case Wave, AudioOutput, AudioGroup, AudioAux, AudioInput:
		return AudioIO
	}
	return 0
}

func (t TrackType) IsAudio() bool { return t.Capabilities()&AudioIO != 0 }

func (t TrackType) IsMidi() bool { return t == Midi || t == Drum }
