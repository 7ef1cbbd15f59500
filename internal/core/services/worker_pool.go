package services

import (
	"sync"

	"github.com/ocrly/backend/internal/infrastructure/logger"
)

// WorkerPool runs submitted jobs on a fixed number of workers with a
// bounded queue. Dispatch never blocks: past the queue limit it rejects, so
// the HTTP layer can push back instead of piling up goroutines.
type WorkerPool struct {
	jobs chan func()
	wg   sync.WaitGroup
	log  *logger.Logger
}

func NewWorkerPool(workers, queueSize int, log *logger.Logger) *WorkerPool {
	p := &WorkerPool{
		jobs: make(chan func(), queueSize),
		log:  log,
	}

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	return p
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()
	for job := range p.jobs {
		p.run(id, job)
	}
}

// run isolates a job so a panic kills neither the worker nor the pool.
func (p *WorkerPool) run(id int, job func()) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Errorw("worker_job_panic", "worker", id, "panic", r)
		}
	}()
	job()
}

func (p *WorkerPool) Dispatch(job func()) error {
	select {
	case p.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop drains queued jobs and waits for in-flight ones. Dispatch must not
// be called after Stop.
func (p *WorkerPool) Stop() {
	close(p.jobs)
	p.wg.Wait()
}
