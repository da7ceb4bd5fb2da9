// File: cmd/supervise.go
package cmd

import (
	"context"
	"os"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/emedauto/internal/orchestrator"
)

// superviseRun executes work on its own goroutine while the caller's
// goroutine watches for interrupts. The first interrupt (or ctx being done)
// stops the token so the current record can finish; a second interrupt
// cancels the context work runs under.
//
// work gets a context detached from ctx, so the signal-aware parent being
// cancelled does not abort the run by itself.
func superviseRun(ctx context.Context, sigs <-chan os.Signal, stop *orchestrator.StopToken, logger *zap.Logger, work func(context.Context) error) error {
	workCtx, cancelWork := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelWork()

	done := make(chan struct{})
	var g errgroup.Group
	g.Go(func() error {
		defer close(done)
		return work(workCtx)
	})

	g.Go(func() error {
		requestStop := func() {
			if !stop.Stopped() {
				logger.Warn("Stop requested, finishing the current record. Interrupt again to abort.")
				stop.Stop()
			}
		}

		parentDone := ctx.Done()
		interrupts := 0
		for {
			select {
			case <-done:
				return nil
			case <-parentDone:
				parentDone = nil
				requestStop()
			case sig := <-sigs:
				interrupts++
				if interrupts == 1 {
					requestStop()
					continue
				}
				logger.Warn("Aborting run", zap.Stringer("signal", sig))
				cancelWork()
				<-done
				return nil
			}
		}
	})

	return g.Wait()
}
