// File: internal/infra/worker/pool.go
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/rs/zerolog"

	"balans-ai/internal/domain/ports/adapter"
	"balans-ai/internal/infra/metrics"
)

var _ adapter.Dispatcher = (*Pool)(nil)

// Pool runs detached tasks (payment DMs) on a fixed set of goroutines. Tasks
// are dropped when the queue is full so webhook replies never wait on it.
type Pool struct {
	wg        sync.WaitGroup
	jobs      chan job
	quit      chan struct{}
	n         int
	log       *zerolog.Logger
	startOnce sync.Once
	stopOnce  sync.Once
}

type job struct {
	name string
	task adapter.Task
}

var ErrQueueFull = errors.New("worker queue full")

func NewPool(workers int, logger *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	l := logger.With().Str("component", "worker_pool").Logger()
	return &Pool{jobs: make(chan job, workers*4), quit: make(chan struct{}), n: workers, log: &l}
}

func (p *Pool) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		for i := 0; i < p.n; i++ {
			p.wg.Add(1)
			go p.loop(ctx, i)
		}
	})
}

func (p *Pool) loop(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.quit:
			return
		case j := <-p.jobs:
			p.run(ctx, id, j)
		}
	}
}

func (p *Pool) run(ctx context.Context, id int, j job) {
	defer func() {
		if r := recover(); r != nil {
			metrics.IncJob(j.name, "error")
			p.log.Error().Int("worker", id).Str("task", j.name).Str("panic", fmt.Sprint(r)).Msg("task panicked")
		}
	}()
	if err := j.task(ctx); err != nil {
		metrics.IncJob(j.name, "error")
		p.log.Warn().Err(err).Int("worker", id).Str("task", j.name).Msg("task failed")
		return
	}
	metrics.IncJob(j.name, "ok")
}

// Stop stops the workers and waits for running tasks. Queued tasks are discarded.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() { close(p.quit) })
	p.wg.Wait()
}

func (p *Pool) Submit(name string, task adapter.Task) error {
	if task == nil {
		return errors.New("nil task")
	}
	select {
	case <-p.quit:
		return ErrQueueFull
	default:
	}
	select {
	case p.jobs <- job{name: name, task: task}:
		return nil
	default:
		metrics.IncJob(name, "dropped")
		return ErrQueueFull
	}
}

// Dispatch is Submit for callers that only care whether the task was queued.
func (p *Pool) Dispatch(name string, task adapter.Task) bool {
	return p.Submit(name, task) == nil
}
