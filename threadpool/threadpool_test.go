package threadpool

import (
	"sync/atomic"
	"testing"
)

func TestWaitForCompletionDrainsAllJobs(t *testing.T) {
	p := New(4)
	var n int32
	for i := 0; i < 100; i++ {
		p.Add(func() { atomic.AddInt32(&n, 1) })
	}
	p.WaitForCompletion()
	if got := atomic.LoadInt32(&n); got != 100 {
		t.Fatalf("expected 100 completed jobs, got %d", got)
	}
}

func TestTwoPoolsAreIndependent(t *testing.T) {
	spill := New(2)
	sortPool := New(2)
	var spillCount, sortCount int32
	for i := 0; i < 10; i++ {
		spill.Add(func() { atomic.AddInt32(&spillCount, 1) })
		sortPool.Add(func() { atomic.AddInt32(&sortCount, 1) })
	}
	spill.WaitForCompletion()
	sortPool.WaitForCompletion()
	if spillCount != 10 || sortCount != 10 {
		t.Fatalf("expected 10/10, got %d/%d", spillCount, sortCount)
	}
}
