// Package live is one streaming session: a single event loop owns the
// connection, camera, pose and frame-rate state and everything else posts
// messages to it.
package live

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"yogavision/camera"
	"yogavision/capture"
	"yogavision/encoder"
	"yogavision/framework"
	"yogavision/log"
	"yogavision/network"
	"yogavision/pose"
	plmxs "yogavision/prometheus"
	"yogavision/proto"
	"yogavision/util/pipeline"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrorNoChannel = errors.New("no stream channel")
	ErrorNoSource  = errors.New("no camera source")
)

// Channel is the part of the stream channel a session drives.
type Channel interface {
	Connect(context.Context)
	Send(interface{}) error
	SendCommand(string) error
	SetOption(...network.ClientOption)
	Close()
}

type (
	tick struct{}

	cameraFailed struct {
		err error
	}

	cameraReady struct {
		meta camera.Metadata
	}

	adjustCall struct {
		pipeline.CallMsgIns
		action pose.Action
	}

	snapshotCall struct {
		pipeline.CallMsgIns
	}
)

type Page struct {
	id     string
	opts   Options
	p      *pipeline.Pipeline
	router framework.Router
	cal    *pose.Calibration
	sched  *capture.Scheduler

	// loop only
	state State
	fps   *fpsMeter

	listeners []func(State)

	mu     sync.Mutex
	last   State
	stream camera.Stream

	opened    int32
	closed    int32
	ctx       context.Context
	cancel    context.CancelFunc
	acquiring sync.WaitGroup
	openOnce  sync.Once
	closeOnce sync.Once
}

func New(opts ...Option) (*Page, error) {
	p := &Page{
		id:  uuid.NewString(),
		cal: pose.NewCalibration(),
	}

	for _, o := range opts {
		o(&p.opts)
	}

	if p.opts.Channel == nil {
		return nil, ErrorNoChannel
	}

	if p.opts.Source == nil {
		return nil, ErrorNoSource
	}

	if p.opts.Constraints == (camera.Constraints{}) {
		p.opts.Constraints = camera.DefaultConstraints
	}

	if p.opts.Encoder == nil {
		p.opts.Encoder = encoder.New()
	}

	if p.opts.QueueLen == 0 {
		p.opts.QueueLen = DefaultQueueLen
	}

	if p.opts.Clock == nil {
		p.opts.Clock = time.Now
	}

	p.state = State{ID: p.id, Pose: p.cal.Offset()}
	p.last = p.state
	p.p = pipeline.NewPipeline(p.opts.QueueLen)
	p.router = framework.NewRouter(
		framework.OptionWithModule(p),
		framework.OptionWithUnhandled(func(interface{}) { p.opts.Monitor.Event("unhandled") }),
		framework.OptionWithDropped(func(m interface{}) {
			if _, ok := m.(*proto.ProcessedFrame); ok {
				p.opts.Monitor.Event("processed_frame_dropped")
			}
		}))

	p.p.RegisterGo((*tick)(nil), p.onTick)
	p.p.RegisterGo((*cameraFailed)(nil), p.onCameraFailed)
	p.p.RegisterGo((*cameraReady)(nil), p.onCameraReady)
	p.p.RegisterCall((*adjustCall)(nil), p.onAdjust)
	p.p.RegisterCall((*snapshotCall)(nil), func(pipeline.CallMsg) interface{} {
		return p.state
	})

	p.opts.Channel.SetOption(network.ClientOptionWithHandler(p.router))

	return p, nil
}

// Init routes inbound events onto the loop. Connection changes and pose
// echoes wait for room; processed frames are dropped when the loop is behind.
func (p *Page) Init(r framework.Router) {
	r.RegisterPipelineWait(p.p, (*framework.OnConnect)(nil), p.onConnect)
	r.RegisterPipelineWait(p.p, (*framework.OnClose)(nil), p.onClose)
	r.RegisterPipeline(p.p, (*proto.ProcessedFrame)(nil), p.onProcessedFrame)
	r.RegisterPipelineWait(p.p, (*proto.PoseAdjusted)(nil), p.onPoseAdjusted)
	r.RegisterPipelineWait(p.p, (*proto.Status)(nil), p.onStatus)
	r.RegisterPipelineWait(p.p, (*proto.Error)(nil), p.onError)
}

func (p *Page) ID() string {
	return p.id
}

// OnChange registers f to run on the loop after every state change. It must
// be called before Open and f must not block or call back into the Page.
func (p *Page) OnChange(f func(State)) {
	p.listeners = append(p.listeners, f)
}

// Open starts the loop, camera acquisition and the channel. Later calls are no-ops.
func (p *Page) Open(ctx context.Context) {
	p.openOnce.Do(func() {
		if atomic.LoadInt32(&p.closed) == 1 {
			return
		}

		p.ctx, p.cancel = context.WithCancel(ctx)
		p.fps = newFPSMeter(p.opts.Clock())
		p.sched = capture.New(p.ctx, p.opts.Interval, func() {
			// a busy loop drops the tick
			_ = p.p.Go([]interface{}{(*tick)(nil)})
		})

		p.p.Start()

		p.acquiring.Add(1)

		go p.acquire(p.ctx)

		p.opts.Channel.Connect(p.ctx)

		atomic.StoreInt32(&p.opened, 1)

		log.Info("SessionOpen", zap.String("session", p.id), zap.String("camera", p.opts.Source.String()))
	})
}

func (p *Page) acquire(ctx context.Context) {
	defer p.acquiring.Done()

	stream, err := p.opts.Source.Open(ctx, p.opts.Constraints)
	if err != nil {
		_ = p.p.GoWait([]interface{}{&cameraFailed{err: err}})

		return
	}

	p.mu.Lock()
	p.stream = stream
	p.mu.Unlock()

	select {
	case <-ctx.Done():
		return
	case err := <-stream.Err():
		_ = p.p.GoWait([]interface{}{&cameraFailed{err: err}})

		return
	case meta := <-stream.Metadata():
		_ = p.p.GoWait([]interface{}{&cameraReady{meta: meta}})
	}

	select {
	case <-ctx.Done():
	case err := <-stream.Err():
		_ = p.p.GoWait([]interface{}{&cameraFailed{err: err}})
	}
}

func (p *Page) camera() camera.Stream {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.stream
}

// Adjust asks the backend to move or scale the overlay. The local pose only
// changes once the backend echoes pose_adjusted.
func (p *Page) Adjust(action string) error {
	a, err := pose.ParseAction(action)
	if err != nil {
		p.opts.Monitor.Command(action, "invalid")

		return err
	}

	if atomic.LoadInt32(&p.opened) == 0 {
		p.opts.Monitor.Command(action, plmxs.ResultDiscarded)

		return network.ErrorNotConnected
	}

	m := &adjustCall{action: a}
	m.Init()

	ret, err := p.p.Call(m)
	if err != nil {
		// a closed session is a disconnected one
		return network.ErrorNotConnected
	}

	if err, ok := ret.(error); ok {
		return err
	}

	return nil
}

// Snapshot returns the state after every message queued before the call.
func (p *Page) Snapshot() State {
	if atomic.LoadInt32(&p.opened) == 1 {
		m := &snapshotCall{}
		m.Init()

		if ret, err := p.p.Call(m); err == nil {
			if s, ok := ret.(State); ok {
				return s
			}
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.last
}

// Close tears down the scheduler, the channel, the camera and finally the
// loop. It is idempotent.
func (p *Page) Close() {
	p.closeOnce.Do(func() {
		atomic.StoreInt32(&p.closed, 1)

		if atomic.LoadInt32(&p.opened) == 0 {
			p.opts.Channel.Close()
			p.opts.Publisher.Close()

			return
		}

		p.cancel()
		p.sched.Stop()
		p.opts.Channel.Close()

		p.acquiring.Wait()

		if s := p.camera(); s != nil {
			s.Stop()
		}

		p.p.Stop()
		p.opts.Publisher.Close()

		log.Info("SessionClosed", zap.String("session", p.id))
	})
}

func (p *Page) changed() {
	s := p.state

	p.mu.Lock()
	p.last = s
	p.mu.Unlock()

	for _, f := range p.listeners {
		f(s)
	}
}

func (p *Page) publish(kind string, data interface{}) {
	if err := p.opts.Publisher.Publish(p.id, kind, data); err != nil {
		log.Debug("SessionTelemetry", zap.String("kind", kind), zap.String("err", err.Error()))
	}
}

func (p *Page) updateCapture() {
	p.sched.Update(p.state.CameraReady, p.state.Connected)
}

func (p *Page) onConnect(args []interface{}) {
	transport := ""
	if a, ok := args[1].(network.Agent); ok && a != nil {
		transport = a.Transport()
	}

	p.state.Connected = true
	p.state.Transport = transport
	p.opts.Monitor.Connected(true)
	p.publish("connected", map[string]string{"transport": transport})
	p.updateCapture()
	p.changed()
}

func (p *Page) onClose([]interface{}) {
	p.state.Connected = false
	p.state.Transport = ""
	p.opts.Monitor.Connected(false)
	p.publish("disconnected", nil)
	p.updateCapture()
	p.changed()
}

func (p *Page) onProcessedFrame(args []interface{}) {
	m := args[0].(*proto.ProcessedFrame)

	p.state.ProcessedImage = m.Image
	p.state.FPS, _ = p.fps.Frame(p.opts.Clock())
	p.opts.Monitor.Processed(p.state.FPS)
	p.changed()
}

func (p *Page) onPoseAdjusted(args []interface{}) {
	m := args[0].(*proto.PoseAdjusted)

	p.cal.Apply(m)
	p.state.Pose = p.cal.Offset()
	log.Debug("PoseAdjusted", zap.Float64("x", m.OffsetX), zap.Float64("y", m.OffsetY), zap.Float64("scale", m.Scale))
	p.publish(proto.EventPoseAdjusted, p.state.Pose)
	p.changed()
}

func (p *Page) onStatus(args []interface{}) {
	m := args[0].(*proto.Status)

	log.Info("BackendStatus", zap.String("session", p.id), zap.String("message", m.Message))
	p.state.Banner = Banner{Level: BannerInfo, Message: m.Message}
	p.opts.Monitor.Event(proto.EventStatus)
	p.publish(proto.EventStatus, m)
	p.changed()
}

func (p *Page) onError(args []interface{}) {
	m := args[0].(*proto.Error)

	log.Warn("BackendError", zap.String("session", p.id), zap.String("message", m.Message))
	p.state.Banner = Banner{Level: BannerError, Message: m.Message}
	p.opts.Monitor.Event(proto.EventError)
	p.publish(proto.EventError, m)
	p.changed()
}

func (p *Page) onCameraFailed(args []interface{}) {
	m := args[0].(*cameraFailed)

	log.Error("CameraFailed", zap.String("session", p.id), zap.String("source", p.opts.Source.String()), zap.String("err", m.err.Error()))
	p.state.CameraError = camera.Describe(m.err)
	p.state.CameraReady = false
	p.updateCapture()
	p.publish("camera_failed", map[string]string{"error": m.err.Error()})
	p.changed()
}

func (p *Page) onCameraReady(args []interface{}) {
	m := args[0].(*cameraReady)

	log.Info("CameraReady", zap.String("session", p.id), zap.Int("width", m.meta.Width), zap.Int("height", m.meta.Height))
	p.state.CameraReady = true
	p.updateCapture()
	p.changed()
}

func (p *Page) onTick([]interface{}) {
	// ticks queued before the scheduler stopped land here too
	if !p.state.CameraReady || !p.state.Connected {
		return
	}

	stream := p.camera()
	if stream == nil || stream.ReadyState() != camera.HaveEnoughData {
		return
	}

	img, err := stream.Frame()
	if err != nil {
		return
	}

	start := time.Now()

	uri, err := p.opts.Encoder.DataURI(img)
	if err != nil {
		p.opts.Monitor.Frame(plmxs.ResultFailed)
		log.Debug("FrameEncode", zap.String("err", err.Error()))

		return
	}

	p.opts.Monitor.Encoded(time.Since(start))

	if err := p.opts.Channel.Send(&proto.Frame{Image: uri}); err != nil {
		p.opts.Monitor.Frame(plmxs.ResultDropped)
		log.Debug("FrameSend", zap.String("err", err.Error()))

		return
	}

	p.opts.Monitor.Frame(plmxs.ResultSent)
}

func (p *Page) onAdjust(msg pipeline.CallMsg) interface{} {
	m := msg.(*adjustCall)
	action := string(m.action)

	if !p.state.Connected {
		p.opts.Monitor.Command(action, plmxs.ResultDiscarded)

		return network.ErrorNotConnected
	}

	if err := p.opts.Channel.SendCommand(action); err != nil {
		p.opts.Monitor.Command(action, plmxs.ResultDropped)

		return err
	}

	p.opts.Monitor.Command(action, plmxs.ResultSent)
	p.publish(proto.EventAdjustPose, map[string]string{"action": action})

	return nil
}
