// Package tasks provides a fire-and-forget runner for work that must outlive
// the HTTP request that triggered it.
package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

type Config struct {
	Timeout time.Duration `split_words:"true" default:"5m"`
}

// Runner spawns detached tasks on goroutines. Each task gets its own context
// (never the request's) so a completed response cannot cancel it.
type Runner struct {
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewRunner(cfg Config) *Runner {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Runner{timeout: timeout}
}

// Spawn runs fn on its own goroutine. Panics are recovered and logged;
// a background task must never take down the host process.
func (r *Runner) Spawn(name string, fn func(ctx context.Context)) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().Str("task", name).Any("panic", rec).Msg("background task panicked")
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		started := time.Now()
		fn(ctx)
		log.Debug().Str("task", name).Dur("elapsed", time.Since(started)).Msg("background task finished")
	}()
}

// Wait blocks until all spawned tasks have returned. Used in shutdown and tests.
func (r *Runner) Wait() {
	r.wg.Wait()
}
