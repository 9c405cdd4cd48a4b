// Package worker provides the cadence/shutdown helper every Supervisor-owned
// background worker (§5, W1-W9) is built on.
package worker

import (
	"context"
	"time"
)

// Loop runs fn every interval until ctx is cancelled. It honors shutdown at
// the next cadence boundary, per spec §4.13/§5. fn receives ctx itself,
// with no per-tick deadline; a tick that calls a collaborator bounds that
// call with RunOnce or its own context.WithTimeout.
func Loop(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

// RunOnce executes fn with a bounded timeout, the per-collaborator-call
// cap recommended by spec §5 ("≤5s recommended") so a single stuck call
// cannot indefinitely delay shutdown.
func RunOnce(ctx context.Context, timeout time.Duration, fn func(context.Context)) {
	tickCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	fn(tickCtx)
}
