package capture

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestTicksOnlyWhileBothReady(t *testing.T) {
	var n int64

	s := New(context.Background(), 2*time.Millisecond, func() { atomic.AddInt64(&n, 1) })
	defer s.Stop()

	for _, c := range []struct{ camera, connected bool }{{false, false}, {true, false}, {false, true}} {
		if s.Update(c.camera, c.connected) {
			t.Fatalf("running with camera=%v connected=%v", c.camera, c.connected)
		}
	}

	time.Sleep(20 * time.Millisecond)

	if atomic.LoadInt64(&n) != 0 {
		t.Fatalf("ticked %d times while gated", n)
	}

	if !s.Update(true, true) || !s.Update(true, true) {
		t.Fatal("not running with both preconditions")
	}

	time.Sleep(30 * time.Millisecond)

	if atomic.LoadInt64(&n) == 0 {
		t.Fatal("never ticked")
	}

	s.Update(true, false)
	stopped := atomic.LoadInt64(&n)

	time.Sleep(20 * time.Millisecond)

	if got := atomic.LoadInt64(&n); got != stopped {
		t.Fatalf("ticked after stop: %d -> %d", stopped, got)
	}

	if s.Running() {
		t.Fatal("still running")
	}
}

func TestContextCancelPreventsStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(ctx, time.Millisecond, func() {})
	if s.Update(true, true) {
		t.Fatal("started on a cancelled context")
	}
}
