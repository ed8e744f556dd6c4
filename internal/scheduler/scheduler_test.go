package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ctsmirror/internal/logging"
)

func TestEveryRunsImmediatelyAndOnTicks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var n atomic.Int32

	done := make(chan struct{})
	go func() {
		defer close(done)
		Every(ctx, logging.Nop(), 10*time.Millisecond, "count", func(context.Context) error {
			if n.Add(1) == 2 {
				return errors.New("boom")
			}
			return nil
		})
	}()

	require.Eventually(t, func() bool { return n.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Every did not return after cancel")
	}
}

func TestEveryDisabledForNonPositiveInterval(t *testing.T) {
	called := false
	Every(context.Background(), logging.Nop(), 0, "never", func(context.Context) error {
		called = true
		return nil
	})
	assert.False(t, called)
}
