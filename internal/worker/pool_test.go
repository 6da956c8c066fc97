package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// mockGenerator simulates frame rendering for testing
type mockGenerator struct {
	delay      time.Duration
	failFrames map[int]bool
	callCount  atomic.Int32

	mu      sync.Mutex
	workers map[int]bool
}

func (m *mockGenerator) Generate(ctx context.Context, worker int, task Task) (string, error) {
	m.callCount.Add(1)

	m.mu.Lock()
	if m.workers == nil {
		m.workers = make(map[int]bool)
	}
	m.workers[worker] = true
	m.mu.Unlock()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(m.delay):
	}

	if m.failFrames[task.Index] {
		return "", errors.New("simulated failure")
	}

	return fmt.Sprintf("/tmp/frame_%05d.png", task.Index), nil
}

func TestTasks(t *testing.T) {
	tasks := Tasks(4, 2)
	if len(tasks) != 4 {
		t.Fatalf("Expected 4 tasks, got %d", len(tasks))
	}
	for i, task := range tasks {
		if task.Index != i {
			t.Errorf("Task %d has index %d", i, task.Index)
		}
		if want := float64(i) / 2; task.Time != want {
			t.Errorf("Task %d time = %v, want %v", i, task.Time, want)
		}
	}

	if Tasks(0, 30) != nil || Tasks(10, 0) != nil {
		t.Error("Expected no tasks for empty loop")
	}
}

func TestPool_BasicExecution(t *testing.T) {
	gen := &mockGenerator{delay: 10 * time.Millisecond}

	pool := New(Config{
		Workers:   2,
		Generator: gen,
	})

	tasks := Tasks(3, 30)
	results := pool.Run(context.Background(), tasks)

	if len(results) != len(tasks) {
		t.Fatalf("Expected %d results, got %d", len(tasks), len(results))
	}

	for i, r := range results {
		if r.Err != nil {
			t.Errorf("Unexpected error for frame %d: %v", r.Task.Index, r.Err)
		}
		if r.Task.Index != i {
			t.Errorf("Expected results ordered by index, got %d at %d", r.Task.Index, i)
		}
		if r.Path == "" {
			t.Errorf("Expected path for frame %d, got empty", r.Task.Index)
		}
	}

	if gen.callCount.Load() != int32(len(tasks)) {
		t.Errorf("Expected %d generator calls, got %d", len(tasks), gen.callCount.Load())
	}
}

func TestPool_WorkerIDs(t *testing.T) {
	gen := &mockGenerator{delay: 5 * time.Millisecond}

	pool := New(Config{Workers: 3, Generator: gen})
	pool.Run(context.Background(), Tasks(12, 30))

	gen.mu.Lock()
	defer gen.mu.Unlock()
	for id := range gen.workers {
		if id < 0 || id >= pool.Workers() {
			t.Errorf("Worker id %d outside [0, %d)", id, pool.Workers())
		}
	}
}

func TestPool_Parallelism(t *testing.T) {
	gen := &mockGenerator{delay: 50 * time.Millisecond}

	pool := New(Config{
		Workers:   4,
		Generator: gen,
	})

	tasks := Tasks(8, 30)

	start := time.Now()
	results := pool.Run(context.Background(), tasks)
	elapsed := time.Since(start)

	// 4 workers, 8 tasks at 50ms each: about 100ms
	maxExpected := 200 * time.Millisecond
	if elapsed > maxExpected {
		t.Errorf("Expected parallel execution in ~100ms, took %v", elapsed)
	}

	if len(results) != len(tasks) {
		t.Errorf("Expected %d results, got %d", len(tasks), len(results))
	}

	t.Logf("Processed %d tasks with %d workers in %v", len(tasks), 4, elapsed)
}

func TestPool_ErrorHandling(t *testing.T) {
	gen := &mockGenerator{
		delay:      10 * time.Millisecond,
		failFrames: map[int]bool{1: true},
	}

	pool := New(Config{
		Workers:   2,
		Generator: gen,
	})

	tasks := Tasks(3, 30)
	results := pool.Run(context.Background(), tasks)

	if len(results) != len(tasks) {
		t.Errorf("Expected %d results, got %d", len(tasks), len(results))
	}

	var successCount, failCount int
	for _, r := range results {
		if r.Err != nil {
			failCount++
			if r.Task.Index != 1 {
				t.Errorf("Unexpected failure for frame %d", r.Task.Index)
			}
		} else {
			successCount++
		}
	}

	if successCount != 2 {
		t.Errorf("Expected 2 successes, got %d", successCount)
	}
	if failCount != 1 {
		t.Errorf("Expected 1 failure, got %d", failCount)
	}
}

func TestPool_Cancellation(t *testing.T) {
	gen := &mockGenerator{delay: 100 * time.Millisecond}

	pool := New(Config{
		Workers:   2,
		Generator: gen,
	})

	tasks := Tasks(10, 30)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	results := pool.Run(ctx, tasks)
	elapsed := time.Since(start)

	if elapsed > 200*time.Millisecond {
		t.Errorf("Expected early cancellation, took %v", elapsed)
	}
	if len(results) != len(tasks) {
		t.Errorf("Expected a result for every task, got %d", len(results))
	}

	var cancelledCount int
	for _, r := range results {
		if errors.Is(r.Err, context.Canceled) {
			cancelledCount++
		}
	}
	if cancelledCount == 0 {
		t.Error("Expected cancelled results")
	}
}

func TestPool_ProgressCallback(t *testing.T) {
	gen := &mockGenerator{delay: 10 * time.Millisecond}

	var progressCalls atomic.Int32
	var lastCompleted, lastTotal int
	seen := map[int]bool{}

	pool := New(Config{
		Workers:   2,
		Generator: gen,
		OnProgress: func(r Result, completed, total int) {
			progressCalls.Add(1)
			lastCompleted = completed
			lastTotal = total
			seen[r.Task.Index] = true
		},
	})

	tasks := Tasks(3, 30)
	pool.Run(context.Background(), tasks)

	if progressCalls.Load() != int32(len(tasks)) {
		t.Errorf("Expected %d progress callbacks, got %d", len(tasks), progressCalls.Load())
	}
	if lastCompleted != len(tasks) {
		t.Errorf("Expected lastCompleted=%d, got %d", len(tasks), lastCompleted)
	}
	if lastTotal != len(tasks) {
		t.Errorf("Expected lastTotal=%d, got %d", len(tasks), lastTotal)
	}
	if len(seen) != len(tasks) {
		t.Errorf("Expected a result per frame in callbacks, got %v", seen)
	}
}

func TestPool_EmptyTasks(t *testing.T) {
	gen := &mockGenerator{}

	pool := New(Config{
		Workers:   2,
		Generator: gen,
	})

	results := pool.Run(context.Background(), nil)

	if len(results) != 0 {
		t.Errorf("Expected 0 results for empty tasks, got %d", len(results))
	}
	if gen.callCount.Load() != 0 {
		t.Errorf("Expected 0 generator calls for empty tasks, got %d", gen.callCount.Load())
	}
}

func TestPool_GeneratorFunc(t *testing.T) {
	pool := New(Config{
		Generator: GeneratorFunc(func(ctx context.Context, worker int, task Task) (string, error) {
			return fmt.Sprintf("w%d-f%d", worker, task.Index), nil
		}),
	})

	results := pool.Run(context.Background(), Tasks(1, 30))
	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}
	if results[0].Path != "w0-f0" {
		t.Errorf("Expected single worker 0, got %s", results[0].Path)
	}
}
