package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestWorkerPool_StartStop(t *testing.T) {
	var processed atomic.Int64
	processor := func(ctx context.Context, job int) error {
		processed.Add(1)
		return nil
	}

	pool := NewWorkerPool(2, 10, processor)
	pool.Start(context.Background())

	for i := 0; i < 5; i++ {
		pool.Submit(i)
	}

	// Stop drains the queue before returning.
	pool.Stop()

	if processed.Load() != 5 {
		t.Errorf("expected 5 jobs processed, got %d", processed.Load())
	}
}

func TestWorkerPool_ConcurrentSubmit(t *testing.T) {
	var processed atomic.Int64
	processor := func(ctx context.Context, job int) error {
		processed.Add(1)
		return nil
	}

	pool := NewWorkerPool(4, 100, processor)
	pool.Start(context.Background())

	done := make(chan struct{})
	for i := 0; i < 100; i++ {
		go func(n int) {
			pool.Submit(n)
			done <- struct{}{}
		}(i)
	}
	for i := 0; i < 100; i++ {
		<-done
	}

	pool.Stop()

	if processed.Load() != 100 {
		t.Errorf("expected 100 jobs processed, got %d", processed.Load())
	}
}

func TestWorkerPool_GracefulShutdown(t *testing.T) {
	var processed atomic.Int64
	processor := func(ctx context.Context, job int) error {
		time.Sleep(10 * time.Millisecond)
		processed.Add(1)
		return nil
	}

	pool := NewWorkerPool(2, 50, processor)

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)

	for i := 0; i < 20; i++ {
		pool.Submit(i)
	}

	cancel()

	done := make(chan struct{})
	go func() {
		pool.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("pool.Stop() timed out")
	}

	t.Logf("processed %d jobs before shutdown", processed.Load())
}

func TestWorkerPool_RecoversPanics(t *testing.T) {
	var processed atomic.Int64
	processor := func(ctx context.Context, job int) error {
		if job == 2 {
			panic("boom")
		}
		processed.Add(1)
		return nil
	}

	pool := NewWorkerPool(1, 10, processor)
	pool.Start(context.Background())
	for i := 0; i < 5; i++ {
		pool.Submit(i)
	}
	pool.Stop()

	if processed.Load() != 4 {
		t.Errorf("expected 4 jobs processed around the panic, got %d", processed.Load())
	}
}

func TestWorkerPool_StopTwice(t *testing.T) {
	pool := NewWorkerPool(1, 1, func(ctx context.Context, job string) error { return nil })
	pool.Start(context.Background())
	pool.Stop()
	pool.Stop()
}
