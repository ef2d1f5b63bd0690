// Package framework routes decoded inbound events to handlers by message
// type, optionally hopping onto a pipeline so handlers run on one goroutine.
package framework

import (
	"fmt"
	"reflect"

	"yogavision/log"
	"yogavision/network"
	"yogavision/util/pipeline"

	"go.uber.org/zap"
)

type (
	Module interface {
		Init(Router)
	}

	Router interface {
		Register(interface{}, func([]interface{}))
		// RegisterPipeline posts without blocking; the event is dropped when the pipeline is busy.
		RegisterPipeline(*pipeline.Pipeline, interface{}, func([]interface{}))
		// RegisterPipelineWait blocks the reader until the pipeline accepts the event.
		RegisterPipelineWait(*pipeline.Pipeline, interface{}, func([]interface{}))
		network.Handler
	}

	router struct {
		r    map[reflect.Type]func([]interface{})
		opts Options
	}

	// OnConnect and OnClose are routed like messages when the namespace join
	// is acknowledged and when a joined connection ends.
	OnClose struct{}

	OnConnect struct{}
)

func NewRouter(opts ...Option) Router {
	r := &router{
		r: make(map[reflect.Type]func([]interface{})),
	}

	for _, o := range opts {
		o(&r.opts)
	}

	for _, v := range r.opts.Module {
		v.Init(r)
	}

	return r
}

func (r *router) Register(m interface{}, f func([]interface{})) {
	t := reflect.TypeOf(m)
	if _, ok := r.r[t]; ok {
		panic(fmt.Sprintf("msg %T: already routed", m))
	}

	r.r[t] = f
}

func (r *router) RegisterPipeline(p *pipeline.Pipeline, m interface{}, f func([]interface{})) {
	r.Register(m, func(args []interface{}) {
		if err := p.Go(args); err != nil {
			log.Debug("RouterDrop", zap.String("msg", fmt.Sprintf("%T", args[0])), zap.String("err", err.Error()))

			if r.opts.Dropped != nil {
				r.opts.Dropped(args[0])
			}
		}
	})

	p.RegisterGo(m, f)
}

func (r *router) RegisterPipelineWait(p *pipeline.Pipeline, m interface{}, f func([]interface{})) {
	r.Register(m, func(args []interface{}) {
		if err := p.GoWait(args); err != nil {
			log.Warn("RouterGoWait", zap.String("msg", fmt.Sprintf("%T", args[0])), zap.String("err", err.Error()))
		}
	})

	p.RegisterGo(m, f)
}

func (r *router) Handle(a network.Agent, m interface{}) {
	if f, ok := r.r[reflect.TypeOf(m)]; ok {
		f([]interface{}{m, a})

		return
	}

	log.Warn("RouterUnhandled", zap.String("msg", fmt.Sprintf("%T", m)))

	if r.opts.Unhandled != nil {
		r.opts.Unhandled(m)
	}
}

func (r *router) OnConnect(a network.Agent) {
	if f, ok := r.r[reflect.TypeOf((*OnConnect)(nil))]; ok {
		f([]interface{}{(*OnConnect)(nil), a})
	}
}

func (r *router) OnClose(a network.Agent) {
	if f, ok := r.r[reflect.TypeOf((*OnClose)(nil))]; ok {
		f([]interface{}{(*OnClose)(nil), a})
	}
}
