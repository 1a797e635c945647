package imagecache

import "sync"

// pool is a fixed set of goroutines draining a bounded task queue.
type pool struct {
	queue chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

func newPool(workers, queueSize int) *pool {
	p := &pool{queue: make(chan func(), queueSize)}
	for range workers {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for task := range p.queue {
				task()
			}
		}()
	}
	return p
}

// submit queues task without blocking. It returns false when the queue is full.
func (p *pool) submit(task func()) bool {
	select {
	case p.queue <- task:
		return true
	default:
		return false
	}
}

// stop refuses further tasks. Queued tasks still run.
func (p *pool) stop() {
	p.once.Do(func() { close(p.queue) })
}

// wait blocks until every worker has exited. It is safe from any goroutine.
func (p *pool) wait() {
	p.wg.Wait()
}
