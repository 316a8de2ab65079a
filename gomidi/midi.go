// Package gomidi maps MIDI control change messages onto track controllers
// of the mixer.
package gomidi

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"github.com/vsariola/mixgraph"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

type (
	// Scheduler is the part of the engine the mapper drives.
	Scheduler interface {
		ScheduleControlChange(id mixgraph.TrackID, param int, value float64, atFrame int) bool
		Frame() int
	}

	// Mapping binds one controller number to a track controller. The 0..127
	// controller value is scaled linearly onto [Min, Max]. Channel -1
	// matches every MIDI channel.
	Mapping struct {
		Channel  int
		CC       int
		Track    mixgraph.TrackID
		Param    int
		Min, Max float64
	}

	Mapper struct {
		sched    Scheduler
		mu       sync.RWMutex
		mappings []Mapping
		stop     func()
		handled  atomic.Int64
		dropped  atomic.Int64
	}
)

func NewMapper(s Scheduler, mappings ...Mapping) *Mapper {
	return &Mapper{sched: s, mappings: mappings}
}

// Map adds a mapping. Several mappings may share a controller number.
func (m *Mapper) Map(mp Mapping) {
	m.mu.Lock()
	m.mappings = append(m.mappings, mp)
	m.mu.Unlock()
}

// HandleMessage schedules the control changes bound to msg at the current
// engine frame. It has the signature of a midi.ListenTo callback.
func (m *Mapper) HandleMessage(msg midi.Message, timestampms int32) {
	var channel, cc, value uint8
	if !msg.GetControlChange(&channel, &cc, &value) {
		return
	}
	frame := m.sched.Frame()
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, mp := range m.mappings {
		if mp.CC != int(cc) || (mp.Channel >= 0 && mp.Channel != int(channel)) {
			continue
		}
		v := mp.Min + (mp.Max-mp.Min)*float64(value)/127
		if m.sched.ScheduleControlChange(mp.Track, mp.Param, v, frame) {
			m.handled.Add(1)
		} else {
			m.dropped.Add(1)
		}
	}
}

// Listen opens in and feeds its messages to HandleMessage until Close.
func (m *Mapper) Listen(in drivers.In) error {
	if !in.IsOpen() {
		if err := in.Open(); err != nil {
			return fmt.Errorf("opening MIDI input failed: %w", err)
		}
	}
	stop, err := midi.ListenTo(in, m.HandleMessage)
	if err != nil {
		in.Close()
		return fmt.Errorf("listening to MIDI input failed: %w", err)
	}
	m.mu.Lock()
	m.stop = stop
	m.mu.Unlock()
	logrus.WithFields(logrus.Fields{
		"function": "Listen",
		"input":    in.String(),
	}).Info("Listening to MIDI input")
	return nil
}

// Close stops listening, if Listen was called.
func (m *Mapper) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stop != nil {
		m.stop()
		m.stop = nil
	}
}

// Handled returns the number of control changes scheduled so far.
func (m *Mapper) Handled() int64 { return m.handled.Load() }

// Dropped returns the number of control changes the engine refused,
// because the track was unknown or its queue was full.
func (m *Mapper) Dropped() int64 { return m.dropped.Load() }
