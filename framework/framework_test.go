package framework

import (
	"testing"

	"yogavision/util/pipeline"
)

type ping struct{ n int }

type pingModule struct {
	p   *pipeline.Pipeline
	got []int
}

func (m *pingModule) Init(r Router) {
	r.RegisterPipelineWait(m.p, (*ping)(nil), func(args []interface{}) {
		m.got = append(m.got, args[0].(*ping).n)
	})
	r.RegisterPipelineWait(m.p, (*OnConnect)(nil), func([]interface{}) {
		m.got = append(m.got, -1)
	})
}

func TestRouterDispatchesOntoPipeline(t *testing.T) {
	p := pipeline.NewPipeline(8)
	m := &pingModule{p: p}
	r := NewRouter(OptionWithModule(m))

	p.Start()

	r.OnConnect(nil)
	r.Handle(nil, &ping{n: 1})
	r.Handle(nil, &ping{n: 2})
	r.Handle(nil, struct{}{})
	r.OnClose(nil)

	p.Stop()

	if len(m.got) != 3 || m.got[0] != -1 || m.got[1] != 1 || m.got[2] != 2 {
		t.Fatalf("unexpected dispatch order %v", m.got)
	}
}

func TestRegisterTwicePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()

	r := NewRouter()
	r.Register((*ping)(nil), func([]interface{}) {})
	r.Register((*ping)(nil), func([]interface{}) {})
}

func TestUnhandledAndDroppedHooks(t *testing.T) {
	var unhandled, dropped []interface{}

	p := pipeline.NewPipeline(1)
	r := NewRouter(
		OptionWithUnhandled(func(m interface{}) { unhandled = append(unhandled, m) }),
		OptionWithDropped(func(m interface{}) { dropped = append(dropped, m) }))

	r.RegisterPipeline(p, (*ping)(nil), func([]interface{}) {})

	// nothing drains p, so the second ping finds it full
	r.Handle(nil, &ping{n: 1})
	r.Handle(nil, &ping{n: 2})
	r.Handle(nil, "stray")

	if len(dropped) != 1 || dropped[0].(*ping).n != 2 {
		t.Fatalf("dropped %v", dropped)
	}

	if len(unhandled) != 1 || unhandled[0] != "stray" {
		t.Fatalf("unhandled %v", unhandled)
	}
}
