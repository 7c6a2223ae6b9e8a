// Package worker fetches the tiles of one map in parallel.
package worker

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MeKo-Tech/staticmap/internal/tile"
)

// Fetcher retrieves one decoded tile. datasource.TileSource satisfies it.
type Fetcher interface {
	FetchTile(ctx context.Context, url string) (image.Image, error)
}

// Task is a single tile to fetch.
type Task struct {
	Coords tile.Coords
	URL    string
}

// Result is a fetched tile.
type Result struct {
	Task    Task
	Image   image.Image
	Elapsed time.Duration
}

// Event reports one finished task.
type Event struct {
	Coords  tile.Coords
	Elapsed time.Duration
	Err     error

	Completed int
	Failed    int
	Total     int
}

// ProgressFunc is called after each task completes, possibly from several
// goroutines at once.
type ProgressFunc func(Event)

// Config configures the worker pool.
type Config struct {
	Workers    int
	Fetcher    Fetcher
	OnProgress ProgressFunc
}

// Pool runs tile fetches with bounded parallelism.
type Pool struct {
	workers    int
	fetcher    Fetcher
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
		fetcher:    cfg.Fetcher,
		onProgress: cfg.OnProgress,
	}
}

// Workers returns the parallelism limit.
func (p *Pool) Workers() int {
	return p.workers
}

// Run fetches every task and passes each result to handle, which may be called
// concurrently from several goroutines.
//
// The first fetch or handle error cancels the remaining work and is returned;
// Run never returns before all started goroutines have finished.
func (p *Pool) Run(ctx context.Context, tasks []Task, handle func(Result) error) error {
	if len(tasks) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	var (
		completed int
		failed    int
		mu        sync.Mutex
	)
	report := func(task Task, elapsed time.Duration, err error) {
		mu.Lock()
		completed++
		if err != nil {
			failed++
		}
		ev := Event{Coords: task.Coords, Elapsed: elapsed, Err: err, Completed: completed, Failed: failed, Total: len(tasks)}
		mu.Unlock()

		if p.onProgress != nil {
			p.onProgress(ev)
		}
	}

	for _, task := range tasks {
		// Stop scheduling once something failed.
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			start := time.Now()
			img, err := p.fetcher.FetchTile(gctx, task.URL)
			if err != nil {
				report(task, time.Since(start), err)
				return fmt.Errorf("tile %s: %w", task.Coords, err)
			}

			elapsed := time.Since(start)
			err = handle(Result{Task: task, Image: img, Elapsed: elapsed})
			report(task, elapsed, err)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	// The parent context may have been cancelled before any task started.
	return ctx.Err()
}
