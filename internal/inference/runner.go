package inference

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrRunnerStopped is returned for work submitted after shutdown.
var ErrRunnerStopped = errors.New("inference runner stopped")

// Future resolves to the raw completion text of a submitted query.
type Future struct {
	done chan struct{}
	text string
	err  error
}

// Wait blocks until the completion finishes or ctx is cancelled.
func (f *Future) Wait(ctx context.Context) (string, error) {
	select {
	case <-f.done:
		return f.text, f.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

type task struct {
	ctx        context.Context
	systemText string
	userText   string
	future     *Future
}

// Runner fans completion requests out to a fixed pool of workers so
// callers can hand off a query and collect the answer later.
type Runner struct {
	client  Client
	tasks   chan task
	wg      sync.WaitGroup
	mu      sync.Mutex
	stopped bool
}

// NewRunner builds a runner with the given pool size.
func NewRunner(client Client, workers int) *Runner {
	if workers <= 0 {
		workers = maxConcurrent
	}
	r := &Runner{
		client: client,
		tasks:  make(chan task, workers*2),
	}
	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go r.work()
	}
	return r
}

func (r *Runner) work() {
	defer r.wg.Done()
	for t := range r.tasks {
		if t.ctx.Err() != nil {
			t.future.err = t.ctx.Err()
			close(t.future.done)
			continue
		}
		t.future.text, t.future.err = r.client.Complete(t.ctx, t.systemText, t.userText)
		close(t.future.done)
	}
}

// Submit queues a completion and returns its future.
func (r *Runner) Submit(ctx context.Context, systemText, userText string) *Future {
	f := &Future{done: make(chan struct{})}

	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		f.err = ErrRunnerStopped
		close(f.done)
		return f
	}
	r.tasks <- f.task(ctx, systemText, userText)
	r.mu.Unlock()
	return f
}

func (f *Future) task(ctx context.Context, systemText, userText string) task {
	return task{ctx: ctx, systemText: systemText, userText: userText, future: f}
}

// Complete submits the query and waits for it, so a Runner can stand
// in wherever a Client is expected.
func (r *Runner) Complete(ctx context.Context, systemText, userText string) (string, error) {
	return r.Submit(ctx, systemText, userText).Wait(ctx)
}

// Stop drains the queue and waits for in-flight work to finish.
func (r *Runner) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	close(r.tasks)
	r.mu.Unlock()

	r.wg.Wait()
	log.Info().Msg("Inference runner stopped")
}
