// Package ctrl implements automatable controller parameters: automation
// curves, the interpolation cursor the mixer renders with, and the bounded
// queue of discrete control events sent from the user interface to the
// real-time thread.
package ctrl

import (
	"math"
	"slices"
)

type (
	// ValueType tells how values between two automation points are
	// computed. Log curves interpolate linearly in decibels, i.e.
	// exponentially in amplitude, which is what gain curves want.
	ValueType int

	// Mode of an automation curve.
	Mode int

	Point struct {
		Frame int
		Value float64
	}

	// List is an automation curve of one controller: a set of points
	// sorted by frame. A List handed to the engine is read by the real-time
	// thread and must not be modified afterwards; modify a Clone and hand
	// that over instead.
	List struct {
		ID        int
		ValueType ValueType
		Mode      Mode
		Default   float64
		points    []Point
	}

	// Interpolate is the cursor of one controller within the current
	// automation segment. The value moves from SVal at SFrame to EVal at
	// EFrame; EFrame == -1 means the segment never ends. EStop is set when a
	// discrete event ends the segment: once EFrame is reached the value
	// stays at EVal.
	Interpolate struct {
		SFrame, EFrame int
		SVal, EVal     float64
		DoInterp       bool
		EStop          bool
	}
)

const (
	Linear ValueType = iota
	Log
)

const (
	Interpolated Mode = iota
	Discrete
)

// logFloor is the smallest amplitude used when interpolating Log curves.
const logFloor = 1e-3

func NewList(id int, vt ValueType, def float64) *List {
	return &List{ID: id, ValueType: vt, Default: def}
}

// Add inserts a point, replacing an existing point at the same frame.
func (l *List) Add(frame int, value float64) {
	i, found := slices.BinarySearchFunc(l.points, frame, cmpFrame)
	if found {
		l.points[i].Value = value
		return
	}
	l.points = slices.Insert(l.points, i, Point{Frame: frame, Value: value})
}

// Del removes the point at frame and reports whether there was one.
func (l *List) Del(frame int) bool {
	i, found := slices.BinarySearchFunc(l.points, frame, cmpFrame)
	if found {
		l.points = slices.Delete(l.points, i, i+1)
	}
	return found
}

func (l *List) Clear() { l.points = l.points[:0] }

func (l *List) Len() int { return len(l.points) }

func (l *List) Points() []Point { return slices.Clone(l.points) }

func (l *List) Clone() *List {
	ret := *l
	ret.points = slices.Clone(l.points)
	return &ret
}

func cmpFrame(p Point, frame int) int {
	switch {
	case p.Frame < frame:
		return -1
	case p.Frame > frame:
		return 1
	}
	return 0
}

// upper returns the index of the first point after frame.
func (l *List) upper(frame int) int {
	i, found := slices.BinarySearchFunc(l.points, frame, cmpFrame)
	if found {
		i++
	}
	return i
}

// Value returns the value of the curve at frame, or Default if the curve
// has no points.
func (l *List) Value(frame int) float64 {
	var ci Interpolate
	l.Interpolation(frame, false, l.Default, &ci)
	return ci.At(frame, l.ValueType)
}

// Interpolation fills ci with the segment of the curve covering frame. If
// curValOnly is set, or the curve is empty, ci becomes an endless constant
// segment holding curVal.
func (l *List) Interpolation(frame int, curValOnly bool, curVal float64, ci *Interpolate) {
	if curValOnly || len(l.points) == 0 {
		ci.Static(curVal)
		return
	}
	i := l.upper(frame)
	switch {
	case i == 0:
		p := l.points[0]
		*ci = Interpolate{SFrame: 0, EFrame: p.Frame, SVal: p.Value, EVal: p.Value}
	case i == len(l.points):
		p := l.points[i-1]
		*ci = Interpolate{SFrame: p.Frame, EFrame: -1, SVal: p.Value, EVal: p.Value}
	default:
		s, e := l.points[i-1], l.points[i]
		*ci = Interpolate{SFrame: s.Frame, EFrame: e.Frame, SVal: s.Value, EVal: e.Value}
		if l.Mode == Discrete {
			ci.EVal = s.Value
		}
		ci.DoInterp = ci.SVal != ci.EVal
	}
}

// Static turns the cursor into an endless constant segment.
func (ci *Interpolate) Static(v float64) {
	*ci = Interpolate{SFrame: 0, EFrame: -1, SVal: v, EVal: v}
}

// At returns the value of the segment at frame.
func (ci *Interpolate) At(frame int, vt ValueType) float64 {
	if !ci.DoInterp || ci.EFrame == -1 || frame <= ci.SFrame {
		return ci.SVal
	}
	if frame >= ci.EFrame {
		return ci.EVal
	}
	t := float64(frame-ci.SFrame) / float64(ci.EFrame-ci.SFrame)
	if vt == Log {
		s := math.Log(max(ci.SVal, logFloor))
		e := math.Log(max(ci.EVal, logFloor))
		return math.Exp(s + (e-s)*t)
	}
	return ci.SVal + (ci.EVal-ci.SVal)*t
}

// Interpolate returns the value of the segment ci at frame, using the
// value type of the curve.
func (l *List) Interpolate(frame int, ci Interpolate) float64 {
	return ci.At(frame, l.ValueType)
}
