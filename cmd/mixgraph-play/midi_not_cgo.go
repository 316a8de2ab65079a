//go:build !cgo

package main

import (
	"errors"

	"gitlab.com/gomidi/midi/v2/drivers"
)

func openMidiInput(prefix string) (drivers.In, func(), error) {
	return nil, nil, errors.New("MIDI input needs a build with cgo")
}
