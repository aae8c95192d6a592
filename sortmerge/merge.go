package sortmerge

import (
	"container/heap"
	"io"

	"github.com/vbi-informatics/gecore/sam"
)

// run is one open temp file with its current head record buffered,
// the same shape as the "reader" type in the k-way merge this is
// ported from: a head element plus the means to advance it.
type run struct {
	id   int
	tr   *tempFileReader
	head *sam.Alignment
	err  error
}

func (r *run) advance() {
	r.head, r.err = r.tr.next()
	if r.err == io.EOF {
		r.head, r.err = nil, nil
	}
}

// runHeap orders open runs by the active comparator, breaking ties by
// id so the merge is deterministic regardless of heap internals —
// mirroring bySortOrderAndID in the teacher pack's hts merge helper.
type runHeap struct {
	runs []*run
	less sam.By
}

func (h *runHeap) Len() int { return len(h.runs) }
func (h *runHeap) Less(i, j int) bool {
	a, b := h.runs[i], h.runs[j]
	if h.less(a.head, b.head) {
		return true
	}
	if h.less(b.head, a.head) {
		return false
	}
	return a.id < b.id
}
func (h *runHeap) Swap(i, j int) { h.runs[i], h.runs[j] = h.runs[j], h.runs[i] }
func (h *runHeap) Push(x interface{}) { h.runs = append(h.runs, x.(*run)) }
func (h *runHeap) Pop() interface{} {
	old := h.runs
	n := len(old)
	r := old[n-1]
	h.runs = old[:n-1]
	return r
}

// mergeRuns opens every temp file in paths and emits the globally
// sorted stream to emit, via a min-heap over one buffered head per
// file. Every run is closed, and its temp file removed, when mergeRuns
// returns.
func mergeRuns(paths []string, compressed bool, less sam.By, emit func(*sam.Alignment)) error {
	h := &runHeap{less: less}
	heap.Init(h)
	var openRuns []*run
	defer func() {
		for _, r := range openRuns {
			r.tr.close()
		}
	}()

	for i, path := range paths {
		tr, err := openTempFile(path, compressed)
		if err != nil {
			return err
		}
		r := &run{id: i, tr: tr}
		openRuns = append(openRuns, r)
		r.advance()
		if r.err != nil {
			return r.err
		}
		if r.head != nil {
			heap.Push(h, r)
		}
	}

	for h.Len() > 0 {
		r := heap.Pop(h).(*run)
		emit(r.head)
		r.advance()
		if r.err != nil {
			return r.err
		}
		if r.head != nil {
			heap.Push(h, r)
		}
	}
	return nil
}
