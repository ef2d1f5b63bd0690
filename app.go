package yogavision

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"yogavision/broker"
	"yogavision/camera"
	"yogavision/config"
	"yogavision/encoder"
	"yogavision/exercises"
	"yogavision/live"
	"yogavision/log"
	"yogavision/network"
	"yogavision/network/channel"
	"yogavision/network/polling"
	"yogavision/network/ws"
	plmxs "yogavision/prometheus"
	"yogavision/registry"
	"yogavision/ui"
	"yogavision/util/addr"
	"yogavision/util/profile"

	"go.uber.org/zap"
)

type app struct {
	cfg      *config.Config
	registry registry.Registry
	broker   broker.Broker
	store    exercises.Store

	mu      sync.Mutex
	page    *live.Page
	console *ui.Server
	ready   chan struct{}
}

func (a *app) AddRegistry(r registry.Registry) {
	a.registry = r
}

func (a *app) AddBroker(b broker.Broker) {
	a.broker = b
}

func (a *app) AddStore(s exercises.Store) {
	a.store = s
}

func (a *app) Ready() <-chan struct{} {
	return a.ready
}

func (a *app) Adjust(action string) error {
	a.mu.Lock()
	p := a.page
	a.mu.Unlock()

	if p == nil {
		return network.ErrorNotConnected
	}

	return p.Adjust(action)
}

func (a *app) ConsoleAddr() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.console == nil {
		return ""
	}

	return a.console.Addr()
}

func (a *app) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	monitor := plmxs.NewPrometheusMonitor(a.cfg.Name)
	monitor.StartSystem()

	defer monitor.Close()
	defer closeStore(a.store)

	var ch *channel.Channel

	resolver, backend, err := a.resolve(func(addr string) {
		log.Info("BackendMoved", zap.String("addr", addr))
		ch.SetOption(network.ClientOptionWithAddr(addr))
	})
	if err != nil {
		return err
	}

	if a.registry != nil {
		defer a.registry.Release()
	}

	a.enableExercises(ctx)

	ch = channel.New(a.channelOptions(backend)...)

	page, err := live.New(
		live.OptionWithChannel(ch),
		live.OptionWithSource(a.source()),
		live.OptionWithConstraints(camera.Constraints{
			Width:  a.cfg.Camera.Width,
			Height: a.cfg.Camera.Height,
			Facing: camera.Facing(a.cfg.Camera.Facing),
			Device: a.cfg.Camera.Device,
		}),
		live.OptionWithInterval(a.cfg.Capture.Interval),
		live.OptionWithEncoder(encoder.New(encoder.OptionWithQuality(a.cfg.Capture.Quality))),
		live.OptionWithMonitor(monitor),
		live.OptionWithPublisher(a.publisher()))
	if err != nil {
		ch.Close()

		return fmt.Errorf("failed to create session %w", err)
	}

	console, err := ui.NewServer(
		ui.OptionWithAddr(a.cfg.Console.Listen),
		ui.OptionWithSession(page),
		ui.OptionWithMonitor(monitor),
		ui.OptionWithExercises(a.store))
	if err != nil {
		page.Close()

		return fmt.Errorf("failed to create console %w", err)
	}

	page.OnChange(console.Push)

	if err := console.Start(); err != nil {
		page.Close()

		return fmt.Errorf("failed to start console %w", err)
	}

	if !addr.IsLoopback(console.Addr()) {
		log.Warn("ConsoleExposed", zap.String("addr", console.Addr()))
	}

	a.mu.Lock()
	a.page = page
	a.console = console
	a.mu.Unlock()

	prof, metrics := a.sidecars(monitor)

	page.Open(ctx)

	if resolver != nil {
		if err := resolver.Watch(ctx, DefaultWatchInterval); err != nil {
			log.Warn("RegistryWatch", zap.String("err", err.Error()))
		}
	}

	log.Info("SessionStarted", zap.String("session", page.ID()), zap.String("backend", backend))
	close(a.ready)

	<-ctx.Done()

	log.Info("SessionStopping", zap.String("session", page.ID()))

	console.Close()
	page.Close()
	prof.Stop()

	if metrics != nil {
		sctx, cancel := context.WithTimeout(context.Background(), DefaultShutdownWait)
		_ = metrics.Shutdown(sctx)
		cancel()
	}

	return nil
}

// resolve returns the backend address, from the registry when one is set.
func (a *app) resolve(onChange func(string)) (*registry.Resolver, string, error) {
	if a.registry == nil {
		if a.cfg.Backend.Addr == "" {
			return nil, "", ErrorNoBackend
		}

		return nil, a.cfg.Backend.Addr, nil
	}

	if err := a.registry.Init(); err != nil {
		return nil, "", fmt.Errorf("failed to init registry %w", err)
	}

	r := registry.NewResolver(a.registry, a.cfg.Registry.Domain, a.cfg.Registry.Service, onChange)

	backend, err := r.Resolve()
	if err != nil {
		if a.cfg.Backend.Addr == "" {
			a.registry.Release()

			return nil, "", fmt.Errorf("failed to resolve backend %w", err)
		}

		log.Warn("RegistryResolve", zap.String("fallback", a.cfg.Backend.Addr), zap.String("err", err.Error()))

		backend = a.cfg.Backend.Addr
	}

	return r, backend, nil
}

func (a *app) channelOptions(backend string) []network.ClientOption {
	b := a.cfg.Backend

	if b.WriteBuffer == 0 {
		b.WriteBuffer = network.DefaultWriteBufLen
	}

	if b.HandshakeTimeout == 0 {
		b.HandshakeTimeout = network.DefaultHandshakeTimeout
	}

	var dialers []network.Dialer

	for _, t := range b.Transports {
		switch t {
		case network.TransportWebsocket:
			dialers = append(dialers, ws.NewDialer(
				ws.OptionWithHandshakeTimeout(b.HandshakeTimeout),
				ws.OptionWithMaxWriteBufLen(b.WriteBuffer)))
		case network.TransportPolling:
			dialers = append(dialers, polling.NewDialer(
				polling.OptionWithHandshakeTimeout(b.HandshakeTimeout),
				polling.OptionWithMaxWriteBufLen(b.WriteBuffer)))
		}
	}

	return []network.ClientOption{
		network.ClientOptionWithName(a.cfg.Name),
		network.ClientOptionWithAddr(backend),
		network.ClientOptionWithDialers(dialers...),
		network.ClientOptionWithReconnectInterval(b.ReconnectInterval),
		network.ClientOptionWithMaxReconnectNum(b.MaxReconnect),
		network.ClientOptionWithHandshakeTimeout(b.HandshakeTimeout),
		network.ClientOptionWithMaxWriteBufLen(b.WriteBuffer),
		network.ClientOptionWithAuth(b.Auth),
	}
}

func (a *app) source() camera.Source {
	if a.cfg.Camera.Source == config.SourcePattern {
		return camera.NewPattern(a.cfg.Capture.Interval)
	}

	return camera.NewWebcam()
}

// publisher connects the telemetry broker. A broker that cannot connect is
// logged and skipped; the session runs without telemetry.
func (a *app) publisher() *broker.Publisher {
	if a.broker == nil {
		return nil
	}

	if err := a.broker.Connect(); err != nil {
		log.Warn("TelemetryConnect", zap.String("broker", a.broker.String()), zap.String("err", err.Error()))

		return nil
	}

	return broker.NewPublisher(a.broker, a.cfg.Telemetry.Topic, a.cfg.Telemetry.Buffer)
}

// enableExercises applies the configured selection before streaming starts.
// Failure does not stop the session.
func (a *app) enableExercises(ctx context.Context) {
	names := a.cfg.Exercises.Enable
	if len(names) == 0 {
		return
	}

	var (
		n   int64
		err error
	)

	switch {
	case a.cfg.Exercises.Remote != "":
		n, err = exercises.NewClient(a.cfg.Exercises.Remote).Update(ctx, names)
	case a.store != nil:
		n, err = a.store.Enable(ctx, names)
	default:
		log.Warn("ExercisesSkipped", zap.Strings("exercises", names))

		return
	}

	if err != nil {
		log.Warn("ExercisesEnable", zap.Strings("exercises", names), zap.String("err", err.Error()))

		return
	}

	log.Info("ExercisesEnable", zap.Strings("exercises", names), zap.Int64("affectedRows", n))
}

// sidecars starts the optional pprof and dedicated metrics listeners.
func (a *app) sidecars(monitor *plmxs.PrometheusMonitor) (*profile.Server, *http.Server) {
	var (
		prof    *profile.Server
		metrics *http.Server
	)

	if a.cfg.Profile.Listen != "" {
		p, err := profile.Start(a.cfg.Profile.Listen)
		if err != nil {
			log.Warn("StartProfile", zap.String("err", err.Error()))
		}

		prof = p
	}

	if a.cfg.Metrics.Listen != "" {
		metrics = monitor.ListenAndServe(a.cfg.Metrics.Listen)
	}

	return prof, metrics
}
