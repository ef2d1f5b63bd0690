package pipeline

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"yogavision/log"

	"go.uber.org/zap"
)

var DefaultGoLen uint32 = 1

var (
	ErrorChanFull = errors.New("channel full")
	ErrorStopped  = errors.New("pipeline stopped")
)

type CallMsg interface {
	Wait() interface{}
	RetCh() chan interface{}
}

type CallMsgIns struct {
	ch chan interface{}
}

func (c *CallMsgIns) Init() {
	c.ch = make(chan interface{}, 1)
}

func (c *CallMsgIns) Wait() interface{} {
	return <-c.ch
}

func (c *CallMsgIns) RetCh() chan interface{} {
	return c.ch
}

type GoFunc func([]interface{})

type CallFunc func(CallMsg) interface{}

type envelope struct {
	args []interface{}
	call CallMsg
}

// Pipeline runs every registered handler on its single loop goroutine,
// in the order messages were queued.
type Pipeline struct {
	stopCh   chan struct{}
	isStopCh chan struct{}
	queue    chan envelope

	goFuncs   map[reflect.Type]GoFunc
	callFuncs map[reflect.Type]CallFunc

	started  int32
	stopOnce sync.Once
}

func NewPipeline(goLen uint32) *Pipeline {
	if goLen == 0 {
		goLen = DefaultGoLen
	}

	return &Pipeline{
		stopCh:    make(chan struct{}),
		isStopCh:  make(chan struct{}),
		queue:     make(chan envelope, int(goLen)),
		goFuncs:   make(map[reflect.Type]GoFunc),
		callFuncs: make(map[reflect.Type]CallFunc),
	}
}

// Start claims the pipeline before spawning its loop, so a Stop that follows
// always waits for the loop to finish.
func (p *Pipeline) Start() {
	if !atomic.CompareAndSwapInt32(&p.started, 0, 1) {
		return
	}

	go p.run()
}

// Run blocks the caller until Stop. It returns at once if the pipeline was
// already started or stopped.
func (p *Pipeline) Run() {
	if !atomic.CompareAndSwapInt32(&p.started, 0, 1) {
		return
	}

	p.run()
}

func (p *Pipeline) run() {
	defer close(p.isStopCh)

GoEndFor:
	for {
		select {
		case <-p.stopCh:
			break GoEndFor
		case e := <-p.queue:
			p.exec(e)
		}
	}

	p.drain()
}

// messages accepted before Stop are still delivered
func (p *Pipeline) drain() {
	for {
		select {
		case e := <-p.queue:
			p.exec(e)
		default:
			return
		}
	}
}

func (p *Pipeline) exec(e envelope) {
	if e.call != nil {
		p.execCall(e.call)

		return
	}

	p.execGo(e.args)
}

func (p *Pipeline) execGo(msg []interface{}) {
	t := reflect.TypeOf(msg[0])
	if f, ok := p.goFuncs[t]; ok {
		f(msg)
	} else {
		log.Warn("dispatchMessage", zap.String("msgtype", fmt.Sprint(t)))
	}
}

func (p *Pipeline) execCall(msg CallMsg) {
	t := reflect.TypeOf(msg)
	if f, ok := p.callFuncs[t]; ok {
		msg.RetCh() <- f(msg)
	} else {
		log.Warn("dispatchCall", zap.String("msgtype", t.String()))
		msg.RetCh() <- nil
	}
}

// RegisterGo and RegisterCall must be called before Start or Run.
func (p *Pipeline) RegisterGo(m interface{}, f GoFunc) {
	if _, ok := p.goFuncs[reflect.TypeOf(m)]; ok {
		panic(fmt.Sprintf("msg %T: already registered", m))
	}

	p.goFuncs[reflect.TypeOf(m)] = f
}

func (p *Pipeline) RegisterCall(m CallMsg, f CallFunc) {
	if _, ok := p.callFuncs[reflect.TypeOf(m)]; ok {
		panic(fmt.Sprintf("msg %T: already registered", m))
	}

	p.callFuncs[reflect.TypeOf(m)] = f
}

// Stop is idempotent. Once it returns no handler runs again: a running loop
// is waited for, and a pipeline whose loop never got going is drained here
// and can no longer be started.
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
	})

	if atomic.CompareAndSwapInt32(&p.started, 0, 2) {
		p.drain()
		close(p.isStopCh)

		return
	}

	<-p.isStopCh
}

func (p *Pipeline) stopped() bool {
	select {
	case <-p.stopCh:
		return true
	default:
		return false
	}
}

// Go queues m without blocking; a full queue drops it.
func (p *Pipeline) Go(m []interface{}) error {
	if p.stopped() {
		return ErrorStopped
	}

	select {
	case p.queue <- envelope{args: m}:
	default:
		return ErrorChanFull
	}

	return nil
}

// GoWait queues m, blocking until there is room or the pipeline stops.
func (p *Pipeline) GoWait(m []interface{}) error {
	if p.stopped() {
		return ErrorStopped
	}

	select {
	case p.queue <- envelope{args: m}:
	case <-p.stopCh:
		return ErrorStopped
	}

	return nil
}

// Call queues m behind everything already queued and waits for its result.
func (p *Pipeline) Call(m CallMsg) (interface{}, error) {
	if p.stopped() {
		return nil, ErrorStopped
	}

	select {
	case p.queue <- envelope{call: m}:
	case <-p.stopCh:
		return nil, ErrorStopped
	}

	select {
	case ret := <-m.RetCh():
		return ret, nil
	case <-p.isStopCh:
		select {
		case ret := <-m.RetCh():
			return ret, nil
		default:
			return nil, ErrorStopped
		}
	}
}
