package realign

import (
	"sync"

	"github.com/willf/bitset"

	"github.com/vbi-informatics/gecore/sam"
)

// maxQueuedEmissions bounds how many intervals' worth of reads can be
// staged for emission before a producer has to block, mirroring
// local_realignment.h's fixed-size emit queue.
const maxQueuedEmissions = 1000

// emission is the read batch produced by finalizing one interval (or
// one passed-through read outside any interval), tagged with the
// input order it must be handed onward in.
type emission struct {
	batch    []*sam.Alignment
	modified *bitset.BitSet
}

// emitSink receives completed emissions strictly in order; realign
// wires this to matefix.Manager.AddReads (AddRead with canFlush set
// for a lone read handed over without a modified set), so the
// mate-fixing manager
// never sees two intervals' reads out of the order they occurred in
// the input stream, no matter which interval finished cleaning first.
type emitSink func(batch []*sam.Alignment, modified *bitset.BitSet)

// emitQueue restores input order across intervals that were cleaned
// concurrently: each interval is cleaned independently (so that a slow
// consensus search on one interval doesn't stall the rest), but reads
// must reach the downstream mate-fixing manager in the same order they
// would have in a purely serial run. Producers submit as soon as their
// interval's cleaning finishes; only entries at the front of the
// queue, in order, are released — out-of-order completions simply wait
// their turn.
type emitQueue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending map[int64]emission
	next    int64
	sink    emitSink
	nOrders int64
}

func newEmitQueue(sink emitSink) *emitQueue {
	q := &emitQueue{pending: make(map[int64]emission), sink: sink}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// reserve hands out the next order token a producer must later submit
// with. Callers reserve in the order their intervals are read from the
// input stream, before starting any concurrent cleaning work, so order
// tokens always reflect input order regardless of completion order.
func (q *emitQueue) reserve() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	order := q.nOrders
	q.nOrders++
	return order
}

// submit hands a finished batch to the queue under its reserved order.
// If the queue is already at capacity and this isn't the next entry
// due for release, the caller blocks — back-pressure against a
// runaway producer racing far ahead of a slow one.
func (q *emitQueue) submit(order int64, batch []*sam.Alignment, modified *bitset.BitSet) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.pending) >= maxQueuedEmissions && order != q.next {
		q.cond.Wait()
	}
	q.pending[order] = emission{batch: batch, modified: modified}
	q.drainLocked()
	q.cond.Broadcast()
}

// drainLocked releases every consecutive entry starting at q.next. It
// must be called with q.mu held.
func (q *emitQueue) drainLocked() {
	for {
		e, ok := q.pending[q.next]
		if !ok {
			return
		}
		delete(q.pending, q.next)
		q.next++
		q.sink(e.batch, e.modified)
	}
}

// close blocks until every reserved order has been submitted and
// drained, guaranteeing full emission of everything reserve handed
// out before the caller proceeds to close whatever sits downstream of
// sink.
func (q *emitQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.next < q.nOrders || len(q.pending) > 0 {
		q.cond.Wait()
	}
}
