package runner

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Group runs named long-lived workers and turns their panics into errors.
type Group struct {
	wg     sync.WaitGroup
	Logger zerolog.Logger
}

// Go starts fn and returns a channel that yields its result once.
func (g *Group) Go(ctx context.Context, name string, fn func(ctx context.Context) error) <-chan error {
	done := make(chan error, 1)
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer close(done)
		var err error
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("worker %s panicked: %v", name, r)
			}
			if err != nil {
				g.Logger.Error().Err(err).Str("worker", name).Msg("worker exited")
			} else {
				g.Logger.Info().Str("worker", name).Msg("worker exited")
			}
			done <- err
		}()
		g.Logger.Info().Str("worker", name).Msg("worker started")
		err = fn(ctx)
	}()
	return done
}

func (g *Group) Wait() { g.wg.Wait() }
