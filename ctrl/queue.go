package ctrl

import "github.com/vsariola/mixgraph"

// Event is a discrete change of one controller. Frame is the engine clock
// at which the change takes effect. Unique events are never coalesced with
// their neighbours.
type Event struct {
	Param  int
	Value  float64
	Frame  int
	Unique bool
}

// Queue is a bounded single-producer single-consumer queue of control
// events. Push is called by the non-real-time side; Peek and Remove by the
// real-time thread only.
type Queue struct {
	ch      chan Event
	head    Event
	hasHead bool
}

func NewQueue(n int) *Queue {
	return &Queue{ch: make(chan Event, n)}
}

// Push enqueues the event without blocking and returns false if the queue
// is full.
func (q *Queue) Push(ev Event) bool {
	return mixgraph.TrySend(q.ch, ev)
}

// Peek returns the oldest event without removing it.
func (q *Queue) Peek() (Event, bool) {
	if !q.hasHead {
		ev, ok := mixgraph.TryReceive(q.ch)
		if !ok {
			return Event{}, false
		}
		q.head, q.hasHead = ev, true
	}
	return q.head, true
}

// Remove drops the event returned by the last Peek.
func (q *Queue) Remove() {
	q.hasHead = false
}

// Len is approximate while the producer is running.
func (q *Queue) Len() int {
	n := len(q.ch)
	if q.hasHead {
		n++
	}
	return n
}

func (q *Queue) Cap() int { return cap(q.ch) + 1 }
