package mixgraph

type (
	// EffectPipeline is the per-track effect chain. Apply processes frames
	// frames of the given buffers in place. A call with channels == 0 and nil
	// buffers asks the pipeline to advance its controllers only, without
	// running any audio.
	EffectPipeline interface {
		Apply(pos, channels, frames int, buffers [][]float32)
	}

	// Transport tells the engine whether the song is rolling and recording.
	Transport interface {
		Playing() bool
		Recording() bool
	}

	// SampleSource supplies audio for a track: hardware capture for input
	// tracks, rendered audio for synths, file playback for wave tracks.
	// ReadSamples fills len(buffers) channels of len(buffers[0]) frames
	// starting at frame pos, and returns false if no data is available.
	SampleSource interface {
		ReadSamples(pos int, buffers [][]float32) bool
	}

	// SampleSink accepts the finished audio of an output track. The
	// buffers are only valid for the duration of the call.
	SampleSink interface {
		WriteSamples(pos int, buffers [][]float32)
	}

	// AudioContext is a hardware audio device that can open output sinks.
	AudioContext interface {
		Output(channels int) (SampleSink, error)
		Close() error
	}
)

// StoppedTransport is a Transport that never rolls.
type StoppedTransport struct{}

func (StoppedTransport) Playing() bool   { return false }
func (StoppedTransport) Recording() bool { return false }
