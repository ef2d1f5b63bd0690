package pipeline

import (
	"sync/atomic"
	"testing"
	"time"
)

type addMsg struct {
	n int
}

type sumCall struct {
	CallMsgIns
}

func newSumCall() *sumCall {
	c := &sumCall{}
	c.Init()

	return c
}

func TestPipelineRunsInOrder(t *testing.T) {
	p := NewPipeline(16)

	var seen []int

	p.RegisterGo(&addMsg{}, func(args []interface{}) {
		seen = append(seen, args[0].(*addMsg).n)
	})
	p.RegisterCall(&sumCall{}, func(CallMsg) interface{} {
		total := 0
		for _, v := range seen {
			total += v
		}

		return total
	})

	p.Start()
	defer p.Stop()

	for i := 1; i <= 4; i++ {
		if err := p.GoWait([]interface{}{&addMsg{n: i}}); err != nil {
			t.Fatalf("GoWait: %v", err)
		}
	}

	ret, err := p.Call(newSumCall())
	if err != nil {
		t.Fatalf("Call: %v", err)
	}

	if ret.(int) != 10 {
		t.Fatalf("unexpected sum: %v", ret)
	}

	if len(seen) != 4 || seen[0] != 1 || seen[3] != 4 {
		t.Fatalf("unexpected order: %v", seen)
	}
}

func TestPipelineGoDropsWhenFull(t *testing.T) {
	p := NewPipeline(1)
	p.RegisterGo(&addMsg{}, func([]interface{}) {})

	if err := p.Go([]interface{}{&addMsg{}}); err != nil {
		t.Fatalf("first Go: %v", err)
	}

	if err := p.Go([]interface{}{&addMsg{}}); err != ErrorChanFull {
		t.Fatalf("expected ErrorChanFull, got %v", err)
	}
}

func TestPipelineRejectsAfterStop(t *testing.T) {
	p := NewPipeline(4)
	p.RegisterGo(&addMsg{}, func([]interface{}) {})

	p.Start()
	p.Stop()
	p.Stop()

	if err := p.Go([]interface{}{&addMsg{}}); err != ErrorStopped {
		t.Fatalf("expected ErrorStopped, got %v", err)
	}

	if _, err := p.Call(newSumCall()); err != ErrorStopped {
		t.Fatalf("expected ErrorStopped, got %v", err)
	}
}

func TestStopBeforeLoopDrainsAndBlocksLateRun(t *testing.T) {
	p := NewPipeline(4)

	var seen []int

	p.RegisterGo(&addMsg{}, func(args []interface{}) {
		seen = append(seen, args[0].(*addMsg).n)
	})

	for i := 1; i <= 3; i++ {
		if err := p.Go([]interface{}{&addMsg{n: i}}); err != nil {
			t.Fatalf("Go: %v", err)
		}
	}

	p.Stop()

	if len(seen) != 3 || seen[0] != 1 || seen[2] != 3 {
		t.Fatalf("queued messages not drained by Stop: %v", seen)
	}

	// a loop scheduled too late must not pick anything up
	done := make(chan struct{})
	go func() {
		p.Run()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run after Stop did not return")
	}

	p.Start()

	if len(seen) != 3 {
		t.Fatalf("handler ran after Stop: %v", seen)
	}
}

func TestStartThenStopWaitsForLoop(t *testing.T) {
	for i := 0; i < 100; i++ {
		p := NewPipeline(4)

		var ran int32

		p.RegisterGo(&addMsg{}, func([]interface{}) {
			atomic.AddInt32(&ran, 1)
		})

		p.Start()

		if err := p.Go([]interface{}{&addMsg{}}); err != nil {
			t.Fatalf("Go: %v", err)
		}

		p.Stop()

		after := atomic.LoadInt32(&ran)
		time.Sleep(time.Millisecond)

		if after != 1 || atomic.LoadInt32(&ran) != 1 {
			t.Fatalf("round %d: handler ran %d times, %d after Stop", i, after, atomic.LoadInt32(&ran))
		}
	}
}
