package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/rs/zerolog"
)

// ErrQueueFull is returned by Submit when every queue slot is taken.
var ErrQueueFull = errors.New("worker queue full")

type Task func(ctx context.Context) error

// Pool is a small bounded worker pool for fire-and-forget work.
type Pool struct {
	wg   sync.WaitGroup
	jobs chan Task
	quit chan struct{}
	once sync.Once
	n    int
	log  *zerolog.Logger
}

// NewPool creates a pool of workers goroutines with a queue of queueSize tasks.
// Non-positive values default to NumCPU workers and 4 slots per worker.
func NewPool(workers, queueSize int, logger *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if queueSize <= 0 {
		queueSize = workers * 4
	}
	compLog := logger.With().Str("component", "WorkerPool").Logger()
	return &Pool{jobs: make(chan Task, queueSize), quit: make(chan struct{}), n: workers, log: &compLog}
}

// Start launches the workers. Tasks see ctx's values but not its cancellation:
// workers run until Stop, which drains the queue first, so work accepted just
// before a shutdown signal still runs.
func (p *Pool) Start(ctx context.Context) {
	taskCtx := context.WithoutCancel(ctx)
	for i := 0; i < p.n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for {
				select {
				case <-p.quit:
					p.drain(taskCtx, id)
					return
				case task := <-p.jobs:
					p.run(taskCtx, id, task)
				}
			}
		}(i)
	}
}

// drain runs whatever is still queued so that Stop does not lose accepted tasks.
func (p *Pool) drain(ctx context.Context, id int) {
	for {
		select {
		case task := <-p.jobs:
			p.run(ctx, id, task)
		default:
			return
		}
	}
}

func (p *Pool) run(ctx context.Context, id int, task Task) {
	if task == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Int("worker", id).Interface("panic", r).Msg("task panicked")
		}
	}()
	if err := task(ctx); err != nil {
		p.log.Warn().Err(err).Int("worker", id).Msg("task error")
	}
}

// Stop signals the workers, lets them finish queued tasks and waits. Safe to call twice.
func (p *Pool) Stop() {
	p.once.Do(func() { close(p.quit) })
	p.wg.Wait()
}

func (p *Pool) Submit(task Task) error {
	if task == nil {
		return errors.New("nil task")
	}
	select {
	case p.jobs <- task:
		return nil
	default:
		// drop when saturated; callers treat the work as best-effort
		return ErrQueueFull
	}
}
