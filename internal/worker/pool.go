// Package worker renders batches of animation frames in parallel.
package worker

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Generator renders a single frame. The worker index is stable for the
// lifetime of a Run and lies in [0, Workers), so implementations can keep
// per-worker render state without locking.
type Generator interface {
	Generate(ctx context.Context, worker int, task Task) (path string, err error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, worker int, task Task) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, worker int, task Task) (string, error) {
	return f(ctx, worker, task)
}

// Task is one frame of an animation loop.
type Task struct {
	Index int
	Time  float64 // Animation time in seconds
}

// Tasks returns the tasks for frames evenly spaced at fps, starting at t=0.
func Tasks(frames int, fps float64) []Task {
	if frames <= 0 || fps <= 0 {
		return nil
	}
	tasks := make([]Task, frames)
	for i := range tasks {
		tasks[i] = Task{Index: i, Time: float64(i) / fps}
	}
	return tasks
}

// Result represents the outcome of a frame task.
type Result struct {
	Task    Task
	Path    string
	Err     error
	Elapsed time.Duration
}

// ProgressFunc is called from the Run goroutine after each task completes.
type ProgressFunc func(r Result, completed, total int)

// Config configures the worker pool.
type Config struct {
	Workers    int
	Generator  Generator
	OnProgress ProgressFunc
}

// Pool runs frame tasks on a fixed number of workers.
type Pool struct {
	workers    int
	generator  Generator
	onProgress ProgressFunc
}

// New creates a new worker pool.
func New(cfg Config) *Pool {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	return &Pool{
		workers:    workers,
		generator:  cfg.Generator,
		onProgress: cfg.OnProgress,
	}
}

// Workers returns the number of workers the pool starts.
func (p *Pool) Workers() int {
	return p.workers
}

// Run executes all tasks and returns one result per task, ordered by frame
// index. It blocks until every task finished or was cancelled.
func (p *Pool) Run(ctx context.Context, tasks []Task) []Result {
	if len(tasks) == 0 {
		return nil
	}

	taskCh := make(chan Task, len(tasks))
	resultCh := make(chan Result, len(tasks))

	for _, task := range tasks {
		taskCh <- task
	}
	close(taskCh)

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.worker(ctx, id, taskCh, resultCh)
		}(i)
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	results := make([]Result, 0, len(tasks))
	for result := range resultCh {
		results = append(results, result)
		if p.onProgress != nil {
			p.onProgress(result, len(results), len(tasks))
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Task.Index < results[j].Task.Index
	})
	return results
}

func (p *Pool) worker(ctx context.Context, id int, tasks <-chan Task, results chan<- Result) {
	for task := range tasks {
		if err := ctx.Err(); err != nil {
			results <- Result{Task: task, Err: err}
			continue
		}

		start := time.Now()
		path, err := p.generator.Generate(ctx, id, task)

		results <- Result{
			Task:    task,
			Path:    path,
			Err:     err,
			Elapsed: time.Since(start),
		}
	}
}
