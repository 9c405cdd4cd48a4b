package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestLoopRunsFnOnEachTick(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var count int32

	done := make(chan struct{})
	go func() {
		Loop(ctx, 5*time.Millisecond, func(context.Context) { atomic.AddInt32(&count, 1) })
		close(done)
	}()

	time.Sleep(25 * time.Millisecond)
	cancel()
	<-done

	if atomic.LoadInt32(&count) < 2 {
		t.Errorf("expected at least 2 ticks, got %d", count)
	}
}

func TestLoopExitsPromptlyOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // already cancelled

	start := time.Now()
	Loop(ctx, time.Hour, func(context.Context) {})
	if time.Since(start) > time.Second {
		t.Error("expected Loop to return immediately when ctx is already cancelled")
	}
}

func TestRunOnceBoundsFnContext(t *testing.T) {
	var sawDeadline bool
	RunOnce(context.Background(), 10*time.Millisecond, func(ctx context.Context) {
		_, sawDeadline = ctx.Deadline()
	})
	if !sawDeadline {
		t.Error("expected RunOnce to hand fn a context with a deadline")
	}
}
