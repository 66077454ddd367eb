package parser

import (
	"context"
	"sync"

	"copilot-salud-backend/internal/dataset"
	"copilot-salud-backend/internal/intent"
	"copilot-salud-backend/internal/model"
	"copilot-salud-backend/internal/roles"
)

const poolWorkers = 3

// Job is one queued parse request.
type Job struct {
	Raw    string
	Bundle *dataset.Bundle
	Intent intent.Intent
	Role   roles.Role

	done   chan struct{}
	result model.AnalysisResult
	err    error
}

// Wait blocks until the job is parsed or ctx is cancelled.
func (j *Job) Wait(ctx context.Context) (model.AnalysisResult, error) {
	select {
	case <-j.done:
		return j.result, j.err
	case <-ctx.Done():
		return model.AnalysisResult{}, ctx.Err()
	}
}

// Pool parses responses on a small fixed set of workers so a burst
// of long answers cannot monopolize request goroutines.
type Pool struct {
	parser Parser
	jobs   chan *Job
	wg     sync.WaitGroup
	once   sync.Once
}

// NewPool starts the parse pool.
func NewPool(p Parser) *Pool {
	pool := &Pool{
		parser: p,
		jobs:   make(chan *Job, poolWorkers*2),
	}
	for i := 0; i < poolWorkers; i++ {
		pool.wg.Add(1)
		go pool.work()
	}
	return pool
}

func (p *Pool) work() {
	defer p.wg.Done()
	for job := range p.jobs {
		job.result, job.err = p.parser.Parse(job.Raw, job.Bundle, job.Intent, job.Role)
		close(job.done)
	}
}

// Submit queues a parse request.
func (p *Pool) Submit(job *Job) *Job {
	job.done = make(chan struct{})
	p.jobs <- job
	return job
}

// Stop drains the queue and waits for the workers.
func (p *Pool) Stop() {
	p.once.Do(func() {
		close(p.jobs)
		p.wg.Wait()
	})
}
