package sortmerge

import (
	"os"
	"testing"

	"github.com/vbi-informatics/gecore/pipeline"
	"github.com/vbi-informatics/gecore/sam"
	"github.com/vbi-informatics/gecore/threadpool"
)

func aln(refid, pos int32, name string) *sam.Alignment {
	a := sam.NewAlignment()
	a.QNAME = name
	a.POS = pos
	a.SetREFID(refid)
	a.SetMateREFID(-1)
	return a
}

func TestByCoordinateSortsAndIsStable(t *testing.T) {
	opts := Options{Order: ByCoordinate, AlignmentsPerTempFile: 2, TempDir: t.TempDir()}
	spillPool := threadpool.New(2)
	sortPool := threadpool.New(2)

	in := []*sam.Alignment{
		aln(0, 200, "a"),
		aln(0, 100, "b"),
		aln(0, 100, "c"),
		aln(1, 50, "d"),
		aln(-1, 0, "e"),
	}
	q := pipeline.NewQueue(len(in))
	outQ := pipeline.NewQueue(len(in))
	m := pipeline.NewModule("sort", q, pipeline.NewStaticSource(sam.NewHeader(), nil), Stage(opts, spillPool, sortPool))
	m.AddOutput(outQ)
	m.StartAsync()

	for _, a := range in {
		q.Put(a)
	}
	q.Close()

	var out []*sam.Alignment
	for {
		a, ok := outQ.Get()
		if !ok {
			break
		}
		out = append(out, a)
	}
	if code := m.FinishAsync(); code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}

	if len(out) != len(in) {
		t.Fatalf("expected %d records out, got %d", len(in), len(out))
	}
	names := make([]string, len(out))
	for i, a := range out {
		names[i] = a.QNAME
	}
	want := []string{"b", "c", "a", "d", "e"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, names)
		}
	}
}

func TestByNameSortsLexicographically(t *testing.T) {
	opts := Options{Order: ByName, AlignmentsPerTempFile: 100, TempDir: t.TempDir()}
	spillPool := threadpool.New(2)
	sortPool := threadpool.New(2)

	in := []*sam.Alignment{aln(0, 1, "z"), aln(0, 2, "a"), aln(0, 3, "m")}
	q := pipeline.NewQueue(len(in))
	outQ := pipeline.NewQueue(len(in))
	m := pipeline.NewModule("sort", q, pipeline.NewStaticSource(sam.NewHeader(), nil), Stage(opts, spillPool, sortPool))
	m.AddOutput(outQ)
	m.StartAsync()
	for _, a := range in {
		q.Put(a)
	}
	q.Close()

	var names []string
	for {
		a, ok := outQ.Get()
		if !ok {
			break
		}
		names = append(names, a.QNAME)
	}
	m.FinishAsync()
	want := []string{"a", "m", "z"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, names)
		}
	}
}

func TestSpillEmitsEveryRecordAndCleansUp(t *testing.T) {
	dir := t.TempDir()
	opts := Options{Order: ByCoordinate, AlignmentsPerTempFile: 3, TempDir: dir}
	spillPool := threadpool.New(4)
	sortPool := threadpool.New(4)

	const total = 10 // -> ceil(10/3) = 4 chunks/temp files along the way
	in := make([]*sam.Alignment, total)
	for i := range in {
		in[i] = aln(0, int32(total-i), "r")
	}
	q := pipeline.NewQueue(total)
	outQ := pipeline.NewQueue(total)
	m := pipeline.NewModule("sort", q, pipeline.NewStaticSource(sam.NewHeader(), nil), Stage(opts, spillPool, sortPool))
	m.AddOutput(outQ)
	m.StartAsync()
	for _, a := range in {
		q.Put(a)
	}
	q.Close()

	count := 0
	for {
		_, ok := outQ.Get()
		if !ok {
			break
		}
		count++
	}
	if code := m.FinishAsync(); code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if count != total {
		t.Fatalf("expected %d records emitted, got %d", total, count)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("expected all temp files removed, found %v", entries)
	}
}
