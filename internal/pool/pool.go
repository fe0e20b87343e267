// Package pool provides a fixed-size worker pool draining a bounded FIFO
// queue of tasks. Submission never blocks; callers must handle rejection
// when the queue is full.
package pool

import (
	"errors"
	"log"
	"sync"

	"github.com/eapache/queue"
)

var (
	// ErrQueueFull is returned by Submit when the queue is at capacity.
	ErrQueueFull = errors.New("pool: task queue is full")

	// ErrPoolClosed is returned by Submit once Shutdown has begun.
	ErrPoolClosed = errors.New("pool: pool is shut down")
)

// Task is one unit of work executed by a pool worker.
type Task func()

// Pool runs tasks on a fixed set of worker goroutines. Tasks are executed in
// FIFO order; workers block while the queue is empty and exit after Shutdown
// once the queue has drained.
type Pool struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	tasks    *queue.Queue
	capacity int
	closed   bool
	wg       sync.WaitGroup
}

// New creates a pool with the given number of workers and queue capacity and
// starts the workers immediately.
func New(workers, queueCapacity int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueCapacity <= 0 {
		queueCapacity = 1
	}

	p := &Pool{
		tasks:    queue.New(),
		capacity: queueCapacity,
	}
	p.notEmpty = sync.NewCond(&p.mu)

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}

	log.Printf("Worker pool started with %d workers, queue capacity %d", workers, queueCapacity)
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		p.mu.Lock()
		for p.tasks.Length() == 0 && !p.closed {
			p.notEmpty.Wait()
		}
		if p.closed && p.tasks.Length() == 0 {
			p.mu.Unlock()
			return
		}
		task := p.tasks.Remove().(Task)
		p.mu.Unlock()

		task()
	}
}

// Submit enqueues a task at the tail of the queue. It fails immediately with
// ErrQueueFull when the queue is at capacity and ErrPoolClosed after Shutdown
// has begun; it never blocks.
func (p *Pool) Submit(task Task) error {
	if task == nil {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}
	if p.tasks.Length() >= p.capacity {
		return ErrQueueFull
	}

	p.tasks.Add(task)
	p.notEmpty.Signal()
	return nil
}

// QueueLen reports the number of queued, not yet started tasks.
func (p *Pool) QueueLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tasks.Length()
}

// Shutdown flags the pool closed, wakes every blocked worker, and waits for
// all workers to exit. Queued tasks are drained before the workers stop, so
// every task accepted by Submit runs exactly once.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	p.closed = true
	p.notEmpty.Broadcast()
	p.mu.Unlock()

	p.wg.Wait()
	log.Println("Worker pool shutdown complete")
}
