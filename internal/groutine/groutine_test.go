package groutine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoCarriesName(t *testing.T) {
	got := make(chan string, 1)

	Go(context.Background(), "drain-loop", func(ctx context.Context) {
		got <- GetName(ctx)
	})

	select {
	case name := <-got:
		assert.Equal(t, "drain-loop", name)
	case <-time.After(time.Second):
		t.Fatal("goroutine never ran")
	}
}

func TestGoNilParentContext(t *testing.T) {
	done := make(chan context.Context, 1)

	Go(nil, "orphan", func(ctx context.Context) {
		done <- ctx
	})

	select {
	case ctx := <-done:
		require.NotNil(t, ctx)
		assert.Equal(t, "orphan", GetName(ctx))
	case <-time.After(time.Second):
		t.Fatal("goroutine never ran")
	}
}

func TestGetNameOutsideGo(t *testing.T) {
	assert.Empty(t, GetName(context.Background()))
	assert.Empty(t, GetName(nil))
}

func TestGoPropagatesCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	observed := make(chan error, 1)

	Go(ctx, "watcher", func(ctx context.Context) {
		<-ctx.Done()
		observed <- ctx.Err()
	})

	cancel()
	select {
	case err := <-observed:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancellation never reached the goroutine")
	}
}
