// Package matefix implements the constrained mate-fixing manager
// (C8): it buffers coordinate-sorted reads just long enough to pair
// each read with its mate, rewrite the pair's mate fields, and emit
// both in coordinate order — without ever moving a read further than
// a configured bound from its original position.
package matefix

import (
	"log"
	"sort"
	"sync"

	"github.com/willf/bitset"

	"github.com/vbi-informatics/gecore/locus"
	"github.com/vbi-informatics/gecore/sam"
	"github.com/vbi-informatics/gecore/sortmerge"
)

// EmitFrequency is the cadence (in added reads) at which addReadInternal
// checks whether reads at the front of waitingReads are now safe to
// emit.
const EmitFrequency = 10000

type mateEntry struct {
	record      *sam.Alignment
	wasModified bool
}

// Manager holds reads awaiting their mate or their final emission
// slot. If built in multi-threaded mode, AddRead/AddReads only enqueue
// onto an internal channel; a single dedicated goroutine owns
// waitingReads and forMateMatching exclusively and drains that
// channel, removing the need for per-operation locking on those two
// structures. The mutex in Manager guards only the public add
// entry points, so interleaved callers cannot reorder across the
// channel boundary — exactly the division of labor the teacher's
// addread_threadproc / add_read_lock pair implements with a condition
// variable and a pthread.
type Manager struct {
	mu             sync.Mutex
	queue          chan addRequest
	workerDone     chan struct{}
	singleThreaded bool
	debug          bool

	waitingReads    []*sam.Alignment
	forMateMatching map[string]*mateEntry
	lastLocFlushed  *locus.Locus
	counter         int

	maxInsertSizeForMovingReadPairs int32
	maxPosMoveAllowed               int32
	maxRecordsInMemory              int

	emit func(*sam.Alignment)
	less sam.By
}

type addRequest struct {
	read        *sam.Alignment
	wasModified bool
	canFlush    bool
}

// Options configures a Manager, replacing OpenGE's
// ConstrainedMateFixingManager statics (MAX_INSERT_SIZE_FOR_MOVING_READ_PAIRS,
// MAX_POS_MOVE_ALLOWED, MAX_RECORDS_IN_MEMORY) with per-instance fields.
type Options struct {
	MaxInsertSizeForMovingReadPairs int32
	MaxPosMoveAllowed               int32
	MaxRecordsInMemory              int
	SingleThreaded                  bool
	Debug                           bool
}

// DefaultOptions returns the GATK IndelRealigner defaults for the
// mate-fixing manager's tuning knobs.
func DefaultOptions() Options {
	return Options{
		MaxInsertSizeForMovingReadPairs: 3000,
		MaxPosMoveAllowed:               200,
		MaxRecordsInMemory:              150000,
	}
}

// New builds a Manager. emit is called, in final coordinate order,
// for every read the manager releases — including on Close's final
// drain.
func New(opts Options, emit func(*sam.Alignment)) *Manager {
	m := &Manager{
		singleThreaded:                  opts.SingleThreaded,
		debug:                           opts.Debug,
		forMateMatching:                 make(map[string]*mateEntry),
		maxInsertSizeForMovingReadPairs: opts.MaxInsertSizeForMovingReadPairs,
		maxPosMoveAllowed:               opts.MaxPosMoveAllowed,
		maxRecordsInMemory:              opts.MaxRecordsInMemory,
		emit:                            emit,
		less:                            sortmerge.Comparator(sortmerge.ByCoordinate),
	}
	if !m.singleThreaded {
		m.queue = make(chan addRequest, 1024)
		m.workerDone = make(chan struct{})
		go m.worker()
	}
	return m
}

func (m *Manager) worker() {
	for req := range m.queue {
		m.addReadInternal(req.read, req.wasModified, req.canFlush)
	}
	close(m.workerDone)
}

// AddRead enqueues a single read. canFlush permits a flush of the
// whole buffered set on this call if the in-memory cap is exceeded;
// callers pass false for reads arriving as part of an interval's
// cleaned batch and true for reads crossing an interval boundary, so
// a flush only happens at a point the caller knows is safe.
func (m *Manager) AddRead(read *sam.Alignment, wasModified, canFlush bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.singleThreaded {
		m.addReadInternal(read, wasModified, canFlush)
		return
	}
	m.queue <- addRequest{read, wasModified, canFlush}
}

// AddReads forwards each read in reads, marking read i as modified
// when modified.Test(i) is set. A bitset keyed by batch position is a
// natural fit here: realign hands over a whole interval's reads in one
// batch and only a minority are ever rewritten by cleaning.
func (m *Manager) AddReads(reads []*sam.Alignment, modified *bitset.BitSet) {
	for i, r := range reads {
		wasModified := modified != nil && modified.Test(uint(i))
		m.AddRead(r, wasModified, false)
	}
}

// Close signals the worker (if any) to terminate, then drains
// waitingReads in coordinate order to emit.
func (m *Manager) Close() {
	m.mu.Lock()
	if !m.singleThreaded {
		close(m.queue)
		m.mu.Unlock()
		<-m.workerDone
	} else {
		m.mu.Unlock()
	}
	for len(m.waitingReads) > 0 {
		m.emit(m.popFront())
	}
}

// CanMoveReads reports whether a read at earliest is still eligible
// for repositioning given what has already been flushed downstream —
// false once enough has been emitted that moving reads near earliest
// could no longer land them before the flush point.
func (m *Manager) CanMoveReads(earliest locus.Locus) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.canMoveReadsLocked(earliest)
}

func (m *Manager) canMoveReadsLocked(earliest locus.Locus) bool {
	if m.lastLocFlushed == nil {
		return true
	}
	if m.lastLocFlushed.CompareContigs(earliest) != 0 {
		return true
	}
	return m.lastLocFlushed.Distance(earliest) > m.maxInsertSizeForMovingReadPairs
}

func noReadCanMoveBefore(pos, addedPos, maxPosMoveAllowed int32) bool {
	return pos+2*maxPosMoveAllowed < addedPos
}

// IsizeTooBigToMove reports whether read's insert size (or its
// cross-contig mate) rules out ever repositioning it.
func (m *Manager) IsizeTooBigToMove(read *sam.Alignment) bool {
	return isizeTooBigToMove(read, m.maxInsertSizeForMovingReadPairs)
}

func isizeTooBigToMove(read *sam.Alignment, maxInsertSize int32) bool {
	abs := func(v int32) int32 {
		if v < 0 {
			return -v
		}
		return v
	}
	return (read.IsPaired() && read.IsMapped() && read.REFID() != read.MateREFID()) ||
		abs(read.TLEN) > maxInsertSize
}

func (m *Manager) pairedReadIsMovable(read *sam.Alignment) bool {
	return read.IsPaired() &&
		(read.IsMapped() || read.IsMateMapped()) &&
		!m.IsizeTooBigToMove(read)
}

func (m *Manager) purgeUnmodifiedMates() {
	cleaned := make(map[string]*mateEntry, len(m.forMateMatching))
	for name, entry := range m.forMateMatching {
		if entry.wasModified {
			cleaned[name] = entry
		}
	}
	m.forMateMatching = cleaned
}

// insertWaiting inserts read into waitingReads keeping coordinate
// order, standing in for the teacher's ordered std::multiset.
func (m *Manager) insertWaiting(read *sam.Alignment) {
	i := sort.Search(len(m.waitingReads), func(i int) bool {
		return m.less(read, m.waitingReads[i])
	})
	m.waitingReads = append(m.waitingReads, nil)
	copy(m.waitingReads[i+1:], m.waitingReads[i:])
	m.waitingReads[i] = read
}

func (m *Manager) popFront() *sam.Alignment {
	read := m.waitingReads[0]
	m.waitingReads = m.waitingReads[1:]
	return read
}

// removeWaiting removes the exact record (by identity, not merely by
// equal key) from waitingReads, reporting whether it was found —
// a flush between the mate's arrival and this call may have already
// evicted it.
func (m *Manager) removeWaiting(read *sam.Alignment) bool {
	for i, r := range m.waitingReads {
		if r == read {
			m.waitingReads = append(m.waitingReads[:i], m.waitingReads[i+1:]...)
			return true
		}
	}
	return false
}

func (m *Manager) addReadInternal(newRead *sam.Alignment, wasModified, canFlush bool) {
	if m.debug {
		log.Printf("matefix: new read %s pos=%d modified=%v", newRead.QNAME, newRead.POS, wasModified)
	}

	tooManyReads := len(m.waitingReads) >= m.maxRecordsInMemory
	if (canFlush && tooManyReads) || (len(m.waitingReads) > 0 && m.waitingReads[0].REFID() != newRead.REFID()) {
		for len(m.waitingReads) > 1 {
			m.emit(m.popFront())
		}
		lastRead := m.popFront()
		if lastRead.REFID() == -1 {
			m.lastLocFlushed = nil
		} else {
			loc := locus.New(lastRead.REFID(), lastRead.POS, lastRead.End())
			m.lastLocFlushed = &loc
		}
		m.emit(lastRead)

		if !tooManyReads {
			m.forMateMatching = make(map[string]*mateEntry)
		} else {
			m.purgeUnmodifiedMates()
		}
	}

	if newRead.IsPaired() {
		if mate, ok := m.forMateMatching[newRead.QNAME]; ok {
			doNotFixMates := !newRead.IsMapped() && (!mate.record.IsMapped() || !m.contains(mate.record))
			if !doNotFixMates {
				reQueueMate := !mate.record.IsMapped() && newRead.IsMapped()
				if reQueueMate {
					if !m.removeWaiting(mate.record) {
						reQueueMate = false
					}
				}
				setMateInfo(mate.record, newRead)
				if reQueueMate {
					m.insertWaiting(mate.record)
				}
			}
			delete(m.forMateMatching, newRead.QNAME)
		} else if m.pairedReadIsMovable(newRead) {
			m.forMateMatching[newRead.QNAME] = &mateEntry{record: newRead, wasModified: wasModified}
		}
	}

	m.insertWaiting(newRead)

	m.counter++
	if m.counter%EmitFrequency == 0 {
		for len(m.waitingReads) > 0 {
			read := m.waitingReads[0]
			if noReadCanMoveBefore(read.POS, newRead.POS, m.maxPosMoveAllowed) &&
				(!m.pairedReadIsMovable(read) || noReadCanMoveBefore(read.PNEXT, newRead.POS, m.maxPosMoveAllowed)) {
				delete(m.forMateMatching, read.QNAME)
				m.emit(m.popFront())
			} else {
				break
			}
		}
	}
}

func (m *Manager) contains(read *sam.Alignment) bool {
	for _, r := range m.waitingReads {
		if r == read {
			return true
		}
	}
	return false
}
