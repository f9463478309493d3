package pass

import (
	"runtime"
	"sync"
)

// WorkerPool runs tile tasks on a fixed set of goroutines shared by every
// program of a backend.
type WorkerPool struct {
	workers int
	tasks   chan func()
	closed  sync.Once
}

// NewWorkerPool starts the workers. workers <= 0 means runtime.GOMAXPROCS(0).
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	p := &WorkerPool{
		workers: workers,
		tasks:   make(chan func(), workers*4),
	}
	for i := 0; i < workers; i++ {
		go func() {
			for task := range p.tasks {
				task()
			}
		}()
	}
	return p
}

func (p *WorkerPool) Workers() int { return p.workers }

// Batch groups the tasks of one pass. Waiting on a batch does not wait on
// passes other frames are running on the same pool.
func (p *WorkerPool) Batch() *Batch { return &Batch{pool: p} }

func (p *WorkerPool) Close() {
	p.closed.Do(func() { close(p.tasks) })
}

type Batch struct {
	pool *WorkerPool
	wg   sync.WaitGroup
}

func (b *Batch) Go(task func()) {
	b.wg.Add(1)
	b.pool.tasks <- func() {
		defer b.wg.Done()
		task()
	}
}

// Wait blocks until every task of the batch has finished.
func (b *Batch) Wait() { b.wg.Wait() }
