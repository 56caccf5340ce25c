package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"matatu-feedback/metrics"

	"github.com/apex/log"
)

// ErrQueueFull is returned by Submit when the task queue has no room
var ErrQueueFull = errors.New("task queue full")

// ErrPoolStopped is returned by Submit after Stop has been called
var ErrPoolStopped = errors.New("worker pool stopped")

// Task is one unit of background work
type Task func(ctx context.Context) error

type job struct {
	name string
	run  Task
}

// Pool runs background tasks on a fixed number of worker goroutines.
// Submit never blocks: when the queue is full the task is dropped.
type Pool struct {
	workers int
	queue   chan job

	mu      sync.RWMutex
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPool creates a pool with the given worker count and queue size
func NewPool(workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		workers: workers,
		queue:   make(chan job, queueSize),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the worker goroutines
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	log.Infof("Dispatch worker pool started with %d workers (queue size %d)", p.workers, cap(p.queue))
}

// Submit enqueues a task without blocking
func (p *Pool) Submit(name string, task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		metrics.DispatchQueueDroppedTotal.Inc()
		return ErrPoolStopped
	}

	select {
	case p.queue <- job{name: name, run: task}:
		return nil
	default:
		metrics.DispatchQueueDroppedTotal.Inc()
		return ErrQueueFull
	}
}

// Stop stops accepting tasks and waits for queued tasks to finish or for
// ctx to expire, whichever comes first. Tasks still running when ctx
// expires see their context cancelled.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.queue)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		log.Info("Dispatch worker pool drained")
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for j := range p.queue {
		p.run(id, j)
	}
}

func (p *Pool) run(workerID int, j job) {
	startedAt := time.Now()
	metrics.WorkerInFlight.Inc()
	defer metrics.WorkerInFlight.Dec()

	var err error
	panicVal := any(nil)

	func() {
		defer func() {
			if r := recover(); r != nil {
				panicVal = r
			}
		}()
		err = j.run(p.ctx)
	}()

	result := "ok"
	entry := log.WithFields(log.Fields{
		"worker_id":   workerID,
		"task":        j.name,
		"duration_ms": time.Since(startedAt).Milliseconds(),
	})
	switch {
	case panicVal != nil:
		result = "panic"
		entry.Errorf("task panicked: %v", panicVal)
	case err != nil:
		result = "error"
		entry.WithError(err).Warn("task failed")
	default:
		entry.Debug("task finished")
	}
	metrics.TaskDurationSeconds.WithLabelValues(j.name, result).Observe(time.Since(startedAt).Seconds())
}
