package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestPoolRunsAllJobs(t *testing.T) {
	pool := NewPool(3)
	results := make([]int, 50)
	var mu sync.Mutex

	err := pool.Run(context.Background(), len(results), func(_ context.Context, i int) error {
		mu.Lock()
		results[i] = i + 1
		mu.Unlock()
		return nil
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for i, got := range results {
		if got != i+1 {
			t.Fatalf("job %d did not run", i)
		}
	}
}

func TestPoolZeroJobs(t *testing.T) {
	pool := NewPool(2)
	if err := pool.Run(context.Background(), 0, func(context.Context, int) error {
		t.Fatal("no job should run")
		return nil
	}); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestPoolStopsOnFirstError(t *testing.T) {
	pool := NewPool(2)
	boom := errors.New("embedding failed")
	var ran int64

	err := pool.Run(context.Background(), 100, func(_ context.Context, i int) error {
		atomic.AddInt64(&ran, 1)
		if i == 3 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected the job error, got %v", err)
	}
	if atomic.LoadInt64(&ran) == 100 {
		t.Fatalf("expected remaining jobs to be skipped after the failure")
	}
}

func TestPoolHonorsCancellation(t *testing.T) {
	pool := NewPool(2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := pool.Run(ctx, 10, func(context.Context, int) error {
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
