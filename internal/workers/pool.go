// Package workers distributes independent, index-addressed jobs across a
// fixed number of goroutines.
package workers

import (
	"sync"
)

// ProgressCallback is called after each completed job
type ProgressCallback func(current, total int, message string)

// WorkerPool manages a pool of worker goroutines for parallel evaluation
type WorkerPool struct {
	numWorkers int
}

// NewWorkerPool creates a new worker pool with the specified number of workers
func NewWorkerPool(numWorkers int) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = 10 // Default to 10 workers
	}
	return &WorkerPool{
		numWorkers: numWorkers,
	}
}

// Size returns the configured number of workers
func (wp *WorkerPool) Size() int {
	return wp.numWorkers
}

// Run executes fn for every index in [0, numJobs) across the pool.
//
// fn receives the worker slot (in [0, Size())) so callers can keep per-worker
// scratch buffers, and the job index, so each job writes only its own output
// slot. Run returns when every job has finished. The callback, when not nil,
// is invoked from the collecting goroutine only.
func (wp *WorkerPool) Run(numJobs int, fn func(worker, job int), progress ProgressCallback) {
	if numJobs <= 0 {
		return
	}

	// Create channels for work distribution and completion tracking
	jobs := make(chan int, numJobs)
	done := make(chan int, numJobs)

	// Start workers
	var wg sync.WaitGroup
	numActualWorkers := wp.numWorkers
	if numJobs < numActualWorkers {
		numActualWorkers = numJobs // Don't spawn more workers than jobs
	}

	for w := 0; w < numActualWorkers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for job := range jobs {
				fn(worker, job)
				done <- job
			}
		}(w)
	}

	// Send jobs to workers
	for job := 0; job < numJobs; job++ {
		jobs <- job
	}
	close(jobs)

	// Wait for all workers to finish
	go func() {
		wg.Wait()
		close(done)
	}()

	completed := 0
	for range done {
		completed++
		if progress != nil {
			progress(completed, numJobs, "job completed")
		}
	}
}
