package runner

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestGroup_ReturnsResult(t *testing.T) {
	g := &Group{Logger: zerolog.Nop()}
	boom := errors.New("boom")
	ok := g.Go(context.Background(), "ok", func(context.Context) error { return nil })
	bad := g.Go(context.Background(), "bad", func(context.Context) error { return boom })
	require.NoError(t, <-ok)
	require.ErrorIs(t, <-bad, boom)
	g.Wait()
}

func TestGroup_RecoversPanic(t *testing.T) {
	g := &Group{Logger: zerolog.Nop()}
	done := g.Go(context.Background(), "trader", func(context.Context) error { panic("nil matrix") })
	err := <-done
	require.Error(t, err)
	require.Contains(t, err.Error(), "trader")
	_, open := <-done
	require.False(t, open)
	g.Wait()
}
