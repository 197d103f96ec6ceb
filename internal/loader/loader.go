// Package loader reads module descriptors in parallel. Resolution itself
// stays single-threaded; only the file reads are spread over workers.
package loader

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Job names one descriptor to read.
type Job struct {
	Name string
}

// Descriptor is the raw text of a module descriptor and where it came from.
type Descriptor struct {
	Path    string
	Content []byte
	Patched bool
}

// Result is the outcome of one Job.
type Result struct {
	Job        Job
	Descriptor Descriptor
	Error      error
}

// Fetcher reads a single descriptor.
type Fetcher interface {
	Fetch(name string) (Descriptor, error)
}

// Loader runs fetches on a bounded number of workers.
type Loader struct {
	workers int
	fetcher Fetcher
}

// New creates a loader. workers <= 0 means one worker per CPU.
func New(fetcher Fetcher, workers int) *Loader {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Loader{workers: workers, fetcher: fetcher}
}

// Workers returns the worker count.
func (l *Loader) Workers() int {
	return l.workers
}

// Load fetches every job. Results come back in job order; a failed fetch
// is reported in its Result and does not stop the others. Only context
// cancellation aborts the whole load.
func (l *Loader) Load(ctx context.Context, jobs []Job) ([]Result, error) {
	results := make([]Result, len(jobs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)

	for i, job := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			desc, err := l.fetcher.Fetch(job.Name)
			results[i] = Result{Job: job, Descriptor: desc, Error: err}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
