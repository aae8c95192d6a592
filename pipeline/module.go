package pipeline

import (
	"sync/atomic"

	"github.com/vbi-informatics/gecore/sam"
	"github.com/vbi-informatics/gecore/utils"
)

// Source is the cheaply-copyable header/reference handle a module
// captures at wiring time. The original engine instead stored a live
// back-pointer to the upstream stage so header() and references()
// could be forwarded; that creates a cyclic reader/source reference
// and ties a module's lifetime to its upstream's. Capturing just the
// two values needed removes the cycle entirely.
type Source interface {
	Header() *sam.Header
	References() []string
}

// staticSource is a Source snapshot, used when wiring a module whose
// upstream is not itself a Module (e.g. the file reader, which is the
// root of the pipeline).
type staticSource struct {
	header     *sam.Header
	references []string
}

func (s staticSource) Header() *sam.Header     { return s.header }
func (s staticSource) References() []string    { return s.references }

// NewStaticSource wraps a fixed header/reference pair as a Source.
func NewStaticSource(header *sam.Header, references []string) Source {
	return staticSource{header, references}
}

// Loop is a stage's internal driving function. It receives the module
// so it can call GetInput/PutOutput, and returns the stage's exit
// code: 0 for success, nonzero on failure.
type Loop func(m *Module) int

// Module is a single pipeline stage: an input queue, a fan-out set of
// downstream queues, and an async lifecycle built around a single
// internal Loop.
type Module struct {
	Name    string
	input   *Queue
	outputs []*Queue
	src     Source

	loop Loop

	finished int32 // atomic; release-ordered write, acquire-ordered read
	exitCode int32
	done     chan struct{}
}

// NewModule builds a module reading from input, sourcing its header
// and reference dictionary from src, and driven by loop.
func NewModule(name string, input *Queue, src Source, loop Loop) *Module {
	return &Module{
		Name:  name,
		input: input,
		src:   src,
		loop:  loop,
		done:  make(chan struct{}),
	}
}

// AddOutput registers a downstream queue. Call before StartAsync;
// the output set is fixed once the stage is running.
func (m *Module) AddOutput(q *Queue) {
	m.outputs = append(m.outputs, q)
}

// PutInput enqueues a onto m's input queue.
func (m *Module) PutInput(a *sam.Alignment) {
	m.input.Put(a)
}

// GetInput dequeues the next input alignment. ok is false once the
// upstream has closed its side of the queue and it has drained.
func (m *Module) GetInput() (*sam.Alignment, bool) {
	return m.input.Get()
}

// PutOutput fans a out to every registered downstream: sink 0 receives
// the original, every other sink receives a deep copy. With no
// downstream, a is simply dropped — ownership ends here and Go's GC
// reclaims it, standing in for the explicit delete of the source.
func (m *Module) PutOutput(a *sam.Alignment) {
	if len(m.outputs) == 0 {
		return
	}
	m.outputs[0].Put(a)
	for _, q := range m.outputs[1:] {
		q.Put(deepCopy(a))
	}
}

func deepCopy(a *sam.Alignment) *sam.Alignment {
	cp := *a
	cp.TAGS = append(utils.SmallMap(nil), a.TAGS...)
	cp.Temps = append(utils.SmallMap(nil), a.Temps...)
	return &cp
}

// Header delegates to the upstream source.
func (m *Module) Header() *sam.Header { return m.src.Header() }

// References delegates to the upstream source.
func (m *Module) References() []string { return m.src.References() }

// Run executes the stage synchronously on the calling goroutine and
// returns its exit code. It closes every downstream queue and
// publishes FinishedExecution before returning, so a downstream module
// that observes completion via either signal also observes every
// PutOutput that preceded it.
func (m *Module) Run() int {
	code := m.loop(m)
	for _, q := range m.outputs {
		q.Close()
	}
	atomic.StoreInt32(&m.exitCode, int32(code))
	atomic.StoreInt32(&m.finished, 1) // release
	close(m.done)
	return code
}

// StartAsync launches Run on its own goroutine.
func (m *Module) StartAsync() {
	go m.Run()
}

// FinishAsync blocks until the stage launched by StartAsync completes
// and returns its exit code, standing in for a pthread_join.
func (m *Module) FinishAsync() int {
	<-m.done
	return int(atomic.LoadInt32(&m.exitCode))
}

// FinishedExecution reports whether the stage's internal loop has
// returned (acquire-ordered read, paired with the release-ordered
// write in Run).
func (m *Module) FinishedExecution() bool {
	return atomic.LoadInt32(&m.finished) != 0
}
