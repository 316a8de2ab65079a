package mixgraph

import (
	"errors"
	"fmt"
)

// Errors of the real-time path. None of them stops block processing; they
// reach the non-real-time side as the Kind of a Diagnostic.
var (
	ErrAllocation      = errors.New("buffer allocation failed")
	ErrOverrun         = errors.New("fifo overrun")
	ErrUnderrun        = errors.New("fifo underrun")
	ErrOutOfOrderEvent = errors.New("control event out of order")
	ErrCircularRoute   = errors.New("circular route")
	ErrChannelMismatch = errors.New("route channels out of range")
	ErrMissingUpstream = errors.New("no upstream data")
)

// Errors returned to non-real-time callers.
var (
	ErrQueueFull     = errors.New("queue is full")
	ErrUnknownTrack  = errors.New("unknown track")
	ErrNotAudioTrack = errors.New("not an audio track")
	ErrInvalidParam  = errors.New("invalid controller parameter")
)

// Diagnostic is a report from the real-time thread. Kind is one of the
// error values above, so that receivers can use errors.Is(d, ErrOverrun).
type Diagnostic struct {
	Kind   error
	Track  TrackID
	Name   string
	Frame  int
	Detail string
}

func (d Diagnostic) Error() string {
	if d.Track == NoTrack {
		return fmt.Sprintf("%v: %s", d.Kind, d.Detail)
	}
	return fmt.Sprintf("track %d (%s): %v: %s", d.Track, d.Name, d.Kind, d.Detail)
}

func (d Diagnostic) Unwrap() error { return d.Kind }

// Reporter receives diagnostics. Implementations used on the real-time
// thread must not block.
type Reporter interface {
	Report(d Diagnostic)
}

// ReporterFunc adapts a function to a Reporter.
type ReporterFunc func(d Diagnostic)

func (f ReporterFunc) Report(d Diagnostic) { f(d) }

// Discard is a Reporter that drops everything.
var Discard Reporter = ReporterFunc(func(Diagnostic) {})
