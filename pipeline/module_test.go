package pipeline

import (
	"testing"

	"github.com/vbi-informatics/gecore/sam"
)

func makeAln(qname string) *sam.Alignment {
	a := sam.NewAlignment()
	a.QNAME = qname
	a.SetREFID(0)
	return a
}

func TestFanOutDuplicatesToAllButFirstSink(t *testing.T) {
	in := NewQueue(4)
	out1, out2 := NewQueue(4), NewQueue(4)
	m := NewModule("passthrough", in, NewStaticSource(sam.NewHeader(), nil), func(m *Module) int {
		for {
			a, ok := m.GetInput()
			if !ok {
				return 0
			}
			m.PutOutput(a)
		}
	})
	m.AddOutput(out1)
	m.AddOutput(out2)
	m.StartAsync()

	original := makeAln("read1")
	in.Put(original)
	in.Close()

	got1, ok := out1.Get()
	if !ok || got1 != original {
		t.Fatalf("sink 0 should receive the original record")
	}
	got2, ok := out2.Get()
	if !ok || got2 == original {
		t.Fatalf("sink 1 should receive a distinct deep copy, not the original")
	}
	if got2.QNAME != original.QNAME {
		t.Fatalf("deep copy should preserve content")
	}

	if code := m.FinishAsync(); code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}
	if !m.FinishedExecution() {
		t.Fatal("FinishedExecution should be true after FinishAsync returns")
	}
	if _, ok := out1.Get(); ok {
		t.Fatal("sink 0 should be closed and drained")
	}
}

func TestZeroSinksDropsRecord(t *testing.T) {
	in := NewQueue(1)
	m := NewModule("sink", in, NewStaticSource(sam.NewHeader(), nil), func(m *Module) int {
		for {
			_, ok := m.GetInput()
			if !ok {
				return 0
			}
		}
	})
	m.StartAsync()
	in.Put(makeAln("read1"))
	in.Close()
	if code := m.FinishAsync(); code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}
}

func TestFailureReturnsNonzeroExitCode(t *testing.T) {
	in := NewQueue(1)
	m := NewModule("failing", in, NewStaticSource(sam.NewHeader(), nil), func(m *Module) int {
		return 1
	})
	m.StartAsync()
	in.Close()
	if code := m.FinishAsync(); code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if !m.FinishedExecution() {
		t.Fatal("FinishedExecution should be true even on failure")
	}
}
