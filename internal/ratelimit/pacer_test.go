package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestPacer_RunsEveryIndexOnce(t *testing.T) {
	var mu sync.Mutex
	seen := make(map[int]int)

	p := Pacer{BatchSize: 3}
	if err := p.Run(context.Background(), 10, func(ctx context.Context, i int) {
		mu.Lock()
		seen[i]++
		mu.Unlock()
	}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(seen) != 10 {
		t.Fatalf("Run() visited %d indexes, want 10", len(seen))
	}
	for i, n := range seen {
		if n != 1 {
			t.Errorf("index %d ran %d times", i, n)
		}
	}
}

func TestPacer_DelaysBetweenBatches(t *testing.T) {
	p := Pacer{BatchSize: 2, Delay: 30 * time.Millisecond}

	start := time.Now()
	_ = p.Run(context.Background(), 5, func(ctx context.Context, i int) {})
	elapsed := time.Since(start)

	// three batches, two gaps
	if elapsed < 55*time.Millisecond {
		t.Errorf("Run() elapsed %v, want at least two inter-batch delays", elapsed)
	}
}

func TestPacer_SequentialPreservesOrder(t *testing.T) {
	var order []int
	p := Pacer{BatchSize: 1}
	_ = p.Run(context.Background(), 4, func(ctx context.Context, i int) {
		order = append(order, i)
	})

	for i, v := range order {
		if v != i {
			t.Fatalf("sequential order = %v, want 0..3", order)
		}
	}
}

func TestPacer_BatchRunsConcurrently(t *testing.T) {
	p := Pacer{BatchSize: 4}

	start := time.Now()
	_ = p.Run(context.Background(), 4, func(ctx context.Context, i int) {
		time.Sleep(50 * time.Millisecond)
	})
	if elapsed := time.Since(start); elapsed > 150*time.Millisecond {
		t.Errorf("one batch of 4 took %v, tasks did not overlap", elapsed)
	}
}

func TestPacer_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Pacer{BatchSize: 1, Delay: time.Hour}

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- p.Run(ctx, 3, func(ctx context.Context, i int) { calls++ })
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Error("Run() should report cancellation")
		}
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not stop after cancel")
	}
}
