// Package pipeline implements the staged-processing runtime: bounded
// alignment queues between adjacent stages (C2) and the module
// abstraction that runs a stage asynchronously over them (C3).
package pipeline

import "github.com/vbi-informatics/gecore/sam"

// Queue is a bounded, thread-safe FIFO of alignments connecting two
// pipeline stages. It is backed by a Go channel rather than a manual
// mutex/condvar pair: a channel receive that observes closed+drained
// already gives get_input's "no more" signal for free, which is the
// reason the original polling loop (20ms sleeps on an empty queue) is
// unnecessary here — see the re-architecture note on polling in
// SPEC_FULL.md.
type Queue struct {
	ch chan *sam.Alignment
}

// NewQueue creates a Queue with the given capacity. A capacity of 0
// yields a synchronous (unbuffered) handoff.
func NewQueue(capacity int) *Queue {
	return &Queue{ch: make(chan *sam.Alignment, capacity)}
}

// Put enqueues a, blocking while the queue is at capacity.
func (q *Queue) Put(a *sam.Alignment) {
	q.ch <- a
}

// Get dequeues the next alignment, blocking while the queue is empty.
// It reports ok=false only once the queue has been closed and fully
// drained — i.e. the upstream stage has finished and nothing remains.
func (q *Queue) Get() (a *sam.Alignment, ok bool) {
	a, ok = <-q.ch
	return
}

// Close signals that no further alignments will be put on q. Callers
// downstream of the producing stage observe this via Get returning
// ok=false once the buffered entries are drained.
func (q *Queue) Close() {
	close(q.ch)
}
