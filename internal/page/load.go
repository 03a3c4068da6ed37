// Package page holds the controllers behind each screen. A controller owns
// the cache for its screen, loads it, and exposes the derived view.
package page

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Fetch is one independent request made while loading a screen
type Fetch struct {
	Name string
	Run  func(ctx context.Context) error
}

// Timing records how one fetch went
type Timing struct {
	Name      string
	Succeeded bool
	Duration  time.Duration
}

// Report collects the outcome of a LoadAll
type Report struct {
	Timings []Timing
	Errors  []error
}

// Failed reports whether any fetch failed
func (r Report) Failed() bool { return len(r.Errors) > 0 }

// FetchFailed reports whether the fetch called name ran and failed
func (r Report) FetchFailed(name string) bool {
	for _, t := range r.Timings {
		if t.Name == name && !t.Succeeded {
			return true
		}
	}
	return false
}

// Err joins every fetch error, or returns nil
func (r Report) Err() error { return errors.Join(r.Errors...) }

// Merge appends other to r
func (r Report) Merge(other Report) Report {
	r.Timings = append(r.Timings, other.Timings...)
	r.Errors = append(r.Errors, other.Errors...)
	return r
}

// LoadAll starts every fetch at once and waits for all of them. A failing
// fetch does not cancel the others; its error is recorded with the fetch
// name and the rest still populate their caches.
func LoadAll(ctx context.Context, log *slog.Logger, fetches ...Fetch) Report {
	timings := make([]Timing, len(fetches))
	errs := make([]error, len(fetches))

	var g errgroup.Group
	for i, f := range fetches {
		g.Go(func() error {
			start := time.Now()
			err := f.Run(ctx)
			timings[i] = Timing{Name: f.Name, Succeeded: err == nil, Duration: time.Since(start)}
			if err != nil {
				errs[i] = fmt.Errorf("load %s: %w", f.Name, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	rep := Report{Timings: timings}
	for _, err := range errs {
		if err != nil {
			rep.Errors = append(rep.Errors, err)
		}
	}
	if log != nil {
		for _, t := range timings {
			log.Debug("fetch", "name", t.Name, "ok", t.Succeeded, "duration", t.Duration)
		}
		if rep.Failed() {
			log.Warn("page load had failures", "failed", len(rep.Errors), "total", len(fetches))
		}
	}
	return rep
}

// fetchInto builds a Fetch that stores a list result with set
func fetchInto[T any](name string, get func(context.Context) ([]T, error), set func([]T)) Fetch {
	return Fetch{
		Name: name,
		Run: func(ctx context.Context) error {
			items, err := get(ctx)
			if err != nil {
				return err
			}
			set(items)
			return nil
		},
	}
}
