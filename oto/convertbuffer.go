package oto

import (
	"encoding/binary"
	"math"
)

// putFloat32LE writes frames [from, to) of the planar channels into dst as
// interleaved 32-bit little-endian floats and returns the number of bytes
// written. dst must hold (to-from)*len(channels)*4 bytes.
func putFloat32LE(dst []byte, channels [][]float32, from, to int) int {
	n := 0
	for i := from; i < to; i++ {
		for _, ch := range channels {
			binary.LittleEndian.PutUint32(dst[n:], math.Float32bits(ch[i]))
			n += 4
		}
	}
	return n
}
