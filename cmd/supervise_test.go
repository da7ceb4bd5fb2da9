// File: cmd/supervise_test.go
package cmd

import (
	"context"
	"errors"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/emedauto/internal/orchestrator"
)

// blockingWork waits for its context, reporting whether it was started.
func blockingWork(started chan<- struct{}) func(context.Context) error {
	return func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}
}

func TestSuperviseRun_Completes(t *testing.T) {
	stop := orchestrator.NewStopToken()
	err := superviseRun(context.Background(), make(chan os.Signal), stop, zaptest.NewLogger(t), func(ctx context.Context) error {
		return errors.New("work result")
	})
	assert.EqualError(t, err, "work result")
	assert.False(t, stop.Stopped())
}

func TestSuperviseRun_FirstSignalStops(t *testing.T) {
	sigs := make(chan os.Signal, 1)
	stop := orchestrator.NewStopToken()

	err := superviseRun(context.Background(), sigs, stop, zaptest.NewLogger(t), func(ctx context.Context) error {
		sigs <- syscall.SIGINT
		select {
		case <-stop.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
			return errors.New("stop token never fired")
		}
	})
	require.NoError(t, err, "a single interrupt must not cancel the work context")
	assert.True(t, stop.Stopped())
}

func TestSuperviseRun_ParentCancelStopsButDoesNotAbort(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	stop := orchestrator.NewStopToken()

	err := superviseRun(ctx, nil, stop, zaptest.NewLogger(t), func(workCtx context.Context) error {
		cancel()
		<-stop.Done()
		return workCtx.Err()
	})
	require.NoError(t, err)
	assert.True(t, stop.Stopped())
}

func TestSuperviseRun_SecondSignalAborts(t *testing.T) {
	sigs := make(chan os.Signal, 2)
	stop := orchestrator.NewStopToken()
	started := make(chan struct{})

	go func() {
		<-started
		sigs <- syscall.SIGINT
		sigs <- syscall.SIGTERM
	}()

	err := superviseRun(context.Background(), sigs, stop, zaptest.NewLogger(t), blockingWork(started))
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, stop.Stopped())
}
