package plmxs

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"yogavision/log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	readSuccess = 200
	ListenAddr  = "0.0.0.0:6061"
)

const (
	ResultSent      = "sent"
	ResultDropped   = "dropped"
	ResultDiscarded = "discarded"
	ResultFailed    = "failed"
)

// PrometheusMonitor owns every metric of one live session process. All
// recording methods are safe on a nil receiver so callers may run without
// metrics.
type PrometheusMonitor struct {
	sync.RWMutex
	ServiceName string
	Registry    *prometheus.Registry

	FramesCounter    *prometheus.CounterVec // outbound frames by result
	ProcessedCounter *prometheus.CounterVec // inbound processed frames
	CommandsCounter  *prometheus.CounterVec // pose commands by action and result
	EventsCounter    *prometheus.CounterVec // inbound status/error notifications
	ReconnectCounter *prometheus.CounterVec

	ConnectedGauge *prometheus.GaugeVec
	FPSGauge       *prometheus.GaugeVec
	EncodeDuration *prometheus.HistogramVec

	APIRequestsCounter *prometheus.CounterVec // console requests
	RequestDuration    *prometheus.HistogramVec
	APIRequestsGauge   *prometheus.GaugeVec // console requests per refresh window

	handlerRequestsNum map[string]float64

	MemoryUseGauge *prometheus.GaugeVec
	MemoryPercent  *prometheus.GaugeVec
	CPUPercent     *prometheus.GaugeVec
	DiskPercent    *prometheus.GaugeVec

	stop func()
}

func NewPrometheusMonitor(namespace string) *PrometheusMonitor {
	labels := []string{"micro_name"}

	p := &PrometheusMonitor{
		ServiceName: namespace,
		Registry:    prometheus.NewRegistry(),

		FramesCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "captured frames by outcome",
		}, []string{"result", "micro_name"}),
		ProcessedCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "processed_frames_total",
			Help:      "processed frames received from the backend",
		}, labels),
		CommandsCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pose_commands_total",
			Help:      "pose adjustment commands by action and outcome",
		}, []string{"action", "result", "micro_name"}),
		EventsCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_events_total",
			Help:      "status and error notifications from the backend",
		}, []string{"event", "micro_name"}),
		ReconnectCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connects_total",
			Help:      "acknowledged namespace joins",
		}, labels),
		ConnectedGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected",
			Help:      "1 while the stream channel is connected",
		}, labels),
		FPSGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "processed_fps",
			Help:      "processed frames per second estimate",
		}, labels),
		EncodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "frame_encode_duration_seconds",
			Help:      "A histogram of frame rasterize and encode latencies.",
			Buckets:   []float64{.001, .0025, .005, .01, .02, .033, .05, .1},
		}, labels),

		APIRequestsCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "console requests by handler",
		}, []string{"handler", "method", "code", "micro_name"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "A histogram of latencies for requests.",
		}, []string{"handler", "method", "code", "micro_name"}),
		APIRequestsGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_gauge",
			Help:      "console requests in the last refresh window",
		}, []string{"handler", "micro_name"}),

		MemoryUseGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "memory_use_gauge",
			Help: "runtime memory in MiB",
		}, labels),
		MemoryPercent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "memory_percent",
			Help: "host memory used percent",
		}, labels),
		CPUPercent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cpu_percent",
			Help: "host cpu used percent",
		}, labels),
		DiskPercent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "disk_percent",
			Help: "first partition used percent",
		}, labels),

		handlerRequestsNum: make(map[string]float64),
	}

	p.Registry.MustRegister(p.FramesCounter, p.ProcessedCounter, p.CommandsCounter, p.EventsCounter,
		p.ReconnectCounter, p.ConnectedGauge, p.FPSGauge, p.EncodeDuration,
		p.APIRequestsCounter, p.RequestDuration, p.APIRequestsGauge,
		p.MemoryUseGauge, p.MemoryPercent, p.CPUPercent, p.DiskPercent)

	return p
}

func (s *PrometheusMonitor) label() prometheus.Labels {
	return prometheus.Labels{"micro_name": s.ServiceName}
}

// Handler serves this monitor's registry only.
func (s *PrometheusMonitor) Handler() http.Handler {
	return promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{})
}

// ListenAndServe exposes /metrics and /heart on a dedicated listener.
func (s *PrometheusMonitor) ListenAndServe(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/heart", http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(readSuccess)
	}))
	mux.Handle("/metrics", s.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("ListenAndServe", zap.String("data", err.Error()))
		}
	}()

	return srv
}

func (s *PrometheusMonitor) Frame(result string) {
	if s == nil {
		return
	}

	s.FramesCounter.With(prometheus.Labels{"result": result, "micro_name": s.ServiceName}).Inc()
}

func (s *PrometheusMonitor) Processed(fps int) {
	if s == nil {
		return
	}

	s.ProcessedCounter.With(s.label()).Inc()
	s.FPSGauge.With(s.label()).Set(float64(fps))
}

func (s *PrometheusMonitor) Command(action, result string) {
	if s == nil {
		return
	}

	s.CommandsCounter.With(prometheus.Labels{"action": action, "result": result, "micro_name": s.ServiceName}).Inc()
}

func (s *PrometheusMonitor) Event(name string) {
	if s == nil {
		return
	}

	s.EventsCounter.With(prometheus.Labels{"event": name, "micro_name": s.ServiceName}).Inc()
}

func (s *PrometheusMonitor) Connected(up bool) {
	if s == nil {
		return
	}

	if up {
		s.ReconnectCounter.With(s.label()).Inc()
		s.ConnectedGauge.With(s.label()).Set(1)

		return
	}

	s.ConnectedGauge.With(s.label()).Set(0)
}

func (s *PrometheusMonitor) Encoded(d time.Duration) {
	if s == nil {
		return
	}

	s.EncodeDuration.With(s.label()).Observe(d.Seconds())
}

// Request records one console request.
func (s *PrometheusMonitor) Request(handler, method string, code int, d time.Duration) {
	if s == nil {
		return
	}

	l := prometheus.Labels{"handler": handler, "method": method, "code": strconv.Itoa(code), "micro_name": s.ServiceName}
	s.APIRequestsCounter.With(l).Inc()
	s.RequestDuration.With(l).Observe(d.Seconds())

	s.Lock()
	s.handlerRequestsNum[handler]++
	s.Unlock()
}
