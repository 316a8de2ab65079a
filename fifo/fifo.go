// Package fifo implements a fixed-capacity single-producer single-consumer
// queue of audio blocks, used to hand finished blocks from the real-time
// thread to worker threads (disk writers, audio devices) and back.
//
// The producer and the consumer share nothing but an atomic count of the
// occupied slots; each owns its own cursor. Slot storage grows on first use
// to the largest block requested and is reused afterwards, so after warm-up
// neither side allocates.
package fifo

import (
	"sync/atomic"

	"github.com/vsariola/mixgraph"
)

type (
	Fifo struct {
		slots      []slot
		count      atomic.Int32
		widx       int // producer only
		ridx       int // consumer only
		maxSamples int
	}

	// slot holds one block of segs channels of samples frames each,
	// stored planar: channel i starts at data[i*samples].
	slot struct {
		data    []float32
		segs    int
		samples int
		pos     int
	}
)

// New returns a fifo with n slots. No slot may hold more than maxSamples
// samples (over all channels); larger requests fail with
// mixgraph.ErrAllocation.
func New(n, maxSamples int) *Fifo {
	if n < 1 {
		n = 1
	}
	return &Fifo{slots: make([]slot, n), maxSamples: maxSamples}
}

// Put copies segs channels of samples frames from src into the next free
// slot, tagging it with the frame position pos. If src has fewer channels
// than segs, its channels are repeated. On a full fifo Put returns
// mixgraph.ErrOverrun and the block is dropped.
func (f *Fifo) Put(segs, samples int, src [][]float32, pos int) error {
	if int(f.count.Load()) == len(f.slots) {
		return mixgraph.ErrOverrun
	}
	if len(src) == 0 {
		return mixgraph.ErrMissingUpstream
	}
	s := &f.slots[f.widx]
	if err := f.prepare(s, segs, samples, pos); err != nil {
		return err
	}
	for i := 0; i < segs; i++ {
		n := copy(s.data[i*samples:(i+1)*samples], src[i%len(src)])
		clear(s.data[i*samples+n : (i+1)*samples])
	}
	f.Add()
	return nil
}

// GetWriteBuffer points dst[0:segs] at the storage of the next free slot so
// that the producer can fill it in place. The slot is published with Add.
func (f *Fifo) GetWriteBuffer(segs, samples, pos int, dst [][]float32) error {
	if int(f.count.Load()) == len(f.slots) {
		return mixgraph.ErrOverrun
	}
	s := &f.slots[f.widx]
	if err := f.prepare(s, segs, samples, pos); err != nil {
		return err
	}
	for i := 0; i < segs && i < len(dst); i++ {
		dst[i] = s.data[i*samples : (i+1)*samples]
	}
	return nil
}

// Add publishes the slot filled through GetWriteBuffer.
func (f *Fifo) Add() {
	f.widx = (f.widx + 1) % len(f.slots)
	f.count.Add(1)
}

func (f *Fifo) prepare(s *slot, segs, samples, pos int) error {
	if segs < 1 || samples < 0 {
		return mixgraph.ErrAllocation
	}
	n := segs * samples
	if n > cap(s.data) {
		if n > f.maxSamples {
			return mixgraph.ErrAllocation
		}
		s.data = make([]float32, n)
	}
	s.data = s.data[:n]
	s.segs, s.samples, s.pos = segs, samples, pos
	return nil
}

// Get copies the oldest block into dst, which must hold len(dst) channels
// of at least samples frames, and returns the block's frame position. If
// the block has fewer channels than dst, its channels are repeated. On an
// empty fifo Get returns mixgraph.ErrUnderrun and leaves the cursors alone.
func (f *Fifo) Get(samples int, dst [][]float32) (pos int, err error) {
	if f.count.Load() == 0 {
		return 0, mixgraph.ErrUnderrun
	}
	s := &f.slots[f.ridx]
	n := min(samples, s.samples)
	for i := range dst {
		ch := i % s.segs
		copy(dst[i][:n], s.data[ch*s.samples:ch*s.samples+n])
		clear(dst[i][n:samples])
	}
	pos = s.pos
	f.Remove()
	return pos, nil
}

// Peek points dst at the channels of the oldest block without copying and
// returns the block's frame count and position. The slices stay valid
// until Remove is called.
func (f *Fifo) Peek(dst [][]float32) (samples, pos int, err error) {
	if f.count.Load() == 0 {
		return 0, 0, mixgraph.ErrUnderrun
	}
	s := &f.slots[f.ridx]
	for i := range dst {
		ch := i % s.segs
		dst[i] = s.data[ch*s.samples : (ch+1)*s.samples]
	}
	return s.samples, s.pos, nil
}

// Segs returns the channel count of the oldest block, or 0 if the fifo is
// empty.
func (f *Fifo) Segs() int {
	if f.count.Load() == 0 {
		return 0
	}
	return f.slots[f.ridx].segs
}

// Remove drops the oldest block.
func (f *Fifo) Remove() {
	if f.count.Load() == 0 {
		return
	}
	f.ridx = (f.ridx + 1) % len(f.slots)
	f.count.Add(-1)
}

func (f *Fifo) Count() int { return int(f.count.Load()) }

func (f *Fifo) Cap() int { return len(f.slots) }

// Clear empties the fifo. It must only be called while neither the
// producer nor the consumer is running.
func (f *Fifo) Clear() {
	f.widx, f.ridx = 0, 0
	f.count.Store(0)
}
