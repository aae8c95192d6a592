// Package threadpool implements a general-purpose, fixed-worker job
// queue (C6). Spill/merge work and in-chunk sort shards run on two
// separate Pool instances so a burst of one kind of job never starves
// the other — the priority inversion the teacher's read_sorter.cpp
// keeps per-shard completion latches for, expressed here as plain
// WaitGroup-backed completion instead of mutex/condvar discipline.
package threadpool

import "sync"

// Job is a unit of work that runs to completion; jobs are never
// cancelled once started.
type Job interface {
	Run()
}

// JobFunc adapts a plain function to the Job interface.
type JobFunc func()

func (f JobFunc) Run() { f() }

// Pool is a fixed-size worker pool with FIFO scheduling and no
// priority levels.
type Pool struct {
	jobs chan Job
	wg   sync.WaitGroup
}

// New starts a Pool with the given number of workers. workers <= 0 is
// treated as 1.
func New(workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	p := &Pool{jobs: make(chan Job, workers*4)}
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	for job := range p.jobs {
		job.Run()
		p.wg.Done()
	}
}

// AddJob enqueues job. It blocks only if the pool's internal buffer is
// full; it never blocks waiting for a worker to become free.
func (p *Pool) AddJob(job Job) {
	p.wg.Add(1)
	p.jobs <- job
}

// Add is a convenience wrapper around AddJob for plain functions.
func (p *Pool) Add(f func()) {
	p.AddJob(JobFunc(f))
}

// WaitForCompletion blocks until every job submitted so far has run to
// completion and all workers are idle.
func (p *Pool) WaitForCompletion() {
	p.wg.Wait()
}

// Close shuts the pool down. It must only be called after a final
// WaitForCompletion; no further jobs may be submitted.
func (p *Pool) Close() {
	close(p.jobs)
}
