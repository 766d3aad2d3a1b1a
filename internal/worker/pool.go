// Package worker runs queue-triggered enrichments on a bounded set of goroutines.
package worker

import (
	"runtime"
	"sync"
	"sync/atomic"

	"go-image-enricher/internal/logger"
)

// Stats is a snapshot of the pool counters.
type Stats struct {
	Workers       int   `json:"workers"`
	TotalJobs     int64 `json:"total_jobs"`
	CompletedJobs int64 `json:"completed_jobs"`
	PanickedJobs  int64 `json:"panicked_jobs"`
	ActiveWorkers int64 `json:"active_workers"`
}

// Pool manages concurrent enrichment jobs
type Pool struct {
	workers  int
	jobQueue chan func()
	wg       sync.WaitGroup
	once     sync.Once

	mu     sync.RWMutex
	closed bool

	totalJobs     atomic.Int64
	completedJobs atomic.Int64
	panickedJobs  atomic.Int64
	activeWorkers atomic.Int64
}

// NewPool creates a new worker pool with the specified number of workers
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	return &Pool{
		workers:  workers,
		jobQueue: make(chan func(), workers*2),
	}
}

// Start initializes and starts all workers in the pool
func (p *Pool) Start() {
	p.once.Do(func() {
		for i := 0; i < p.workers; i++ {
			go p.worker()
		}
	})
}

// worker processes jobs from the job queue
func (p *Pool) worker() {
	for job := range p.jobQueue {
		p.run(job)
	}
}

func (p *Pool) run(job func()) {
	p.activeWorkers.Add(1)
	defer func() {
		if r := recover(); r != nil {
			p.panickedJobs.Add(1)
			logger.WithField("panic", r).Error("Worker job panicked")
		}
		p.activeWorkers.Add(-1)
		p.completedJobs.Add(1)
		p.wg.Done()
	}()
	job()
}

// Submit adds a job to the queue, blocking while the queue is full. It returns false once the
// pool has been closed.
func (p *Pool) Submit(job func()) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}

	p.wg.Add(1)
	p.totalJobs.Add(1)
	p.jobQueue <- job
	return true
}

// Wait waits for all submitted jobs to complete
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Close stops accepting jobs. Queued jobs still run; call Wait to drain them.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.jobQueue)
}

// GetStats returns the current pool counters
func (p *Pool) GetStats() Stats {
	return Stats{
		Workers:       p.workers,
		TotalJobs:     p.totalJobs.Load(),
		CompletedJobs: p.completedJobs.Load(),
		PanickedJobs:  p.panickedJobs.Load(),
		ActiveWorkers: p.activeWorkers.Load(),
	}
}
