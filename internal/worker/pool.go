package worker

import (
	"context"
	"sync"
)

// Pool fans a batch of indexed jobs out over a bounded set of
// goroutines. The first job error cancels the remaining jobs and is
// returned to the caller.
type Pool struct {
	workers int
}

const defaultWorkers = 4

func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Pool{workers: workers}
}

// Run executes fn for every index in [0, jobs). It blocks until all
// scheduled jobs finish.
func (p *Pool) Run(ctx context.Context, jobs int, fn func(ctx context.Context, i int) error) error {
	if jobs == 0 {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobCh := make(chan int)
	var wg sync.WaitGroup
	var once sync.Once
	var firstErr error

	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	workers := p.workers
	if workers > jobs {
		workers = jobs
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobCh {
				if ctx.Err() != nil {
					return
				}
				if err := fn(ctx, i); err != nil {
					fail(err)
					return
				}
			}
		}()
	}

dispatch:
	for i := 0; i < jobs; i++ {
		select {
		case jobCh <- i:
		case <-ctx.Done():
			break dispatch
		}
	}
	close(jobCh)
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}
