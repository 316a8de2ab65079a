//go:build cgo

package main

import (
	"fmt"
	"strings"

	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// openMidiInput returns the first MIDI input whose name starts with
// prefix, and a function closing the driver.
func openMidiInput(prefix string) (drivers.In, func(), error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, nil, fmt.Errorf("could not open rtmidi driver: %w", err)
	}
	ins, err := drv.Ins()
	if err != nil {
		drv.Close()
		return nil, nil, fmt.Errorf("could not list MIDI inputs: %w", err)
	}
	for _, in := range ins {
		if strings.HasPrefix(in.String(), prefix) {
			return in, func() { drv.Close() }, nil
		}
	}
	drv.Close()
	return nil, nil, fmt.Errorf("could not find any MIDI input starting with %q", prefix)
}
