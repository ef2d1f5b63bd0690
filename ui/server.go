// Package ui is the local console: an embedded page that shows the rendered
// session view, kept current over a websocket, plus a small JSON API.
package ui

import (
	"bufio"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"yogavision/exercises"
	"yogavision/live"
	"yogavision/log"
	"yogavision/network"
	"yogavision/pose"
	"yogavision/render"
	"yogavision/util/addr"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

//go:embed web/*
var webFS embed.FS

const maxBody = 4 << 10

var ErrorNoSession = errors.New("no session")

// Session is what the console needs from a live session.
type Session interface {
	Snapshot() live.State
	Adjust(action string) error
}

type Server struct {
	opts     Options
	router   *mux.Router
	hub      *hub
	upgrader websocket.Upgrader

	mu  sync.Mutex
	srv *http.Server
	ln  net.Listener
}

type poseRequest struct {
	Action string `json:"action"`
}

type message struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

func NewServer(opts ...Option) (*Server, error) {
	s := &Server{
		hub: newHub(),
		upgrader: websocket.Upgrader{
			CheckOrigin: sameHost,
		},
	}

	for _, o := range opts {
		o(&s.opts)
	}

	if s.opts.Session == nil {
		return nil, ErrorNoSession
	}

	if s.opts.Addr == "" {
		s.opts.Addr = DefaultAddr
	}

	sub, err := fs.Sub(webFS, "web")
	if err != nil {
		return nil, err
	}

	r := mux.NewRouter()
	r.Use(s.metrics)

	r.HandleFunc("/ws", s.handleWS)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/view", s.handleView).Methods(http.MethodGet)
	r.HandleFunc("/api/pose", s.handlePose).Methods(http.MethodPost)

	if s.opts.Monitor != nil {
		r.Handle("/metrics", s.opts.Monitor.Handler()).Methods(http.MethodGet)
	}

	if s.opts.Exercises != nil {
		// the handler answers 405 itself
		r.Handle(exercises.Path, exercises.NewHandler(s.opts.Exercises))
	}

	r.Handle("/", http.FileServer(http.FS(sub))).Methods(http.MethodGet)

	s.router = r

	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Push renders st for every connected browser. It never blocks, so it can
// be registered as a session change listener.
func (s *Server) Push(st live.State) {
	s.hub.publish(render.Render(st))
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.mu.Lock()
	s.srv = srv
	s.ln = ln
	s.mu.Unlock()

	log.Info("ConsoleListen", zap.String("url", consoleURL(ln.Addr().String())))

	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Error("ConsoleServe", zap.String("err", err.Error()))
		}
	}()

	return nil
}

// Addr is the bound address once started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ln == nil {
		return s.opts.Addr
	}

	return s.ln.Addr().String()
}

func (s *Server) Close() {
	s.hub.close()

	s.mu.Lock()
	srv := s.srv
	s.srv = nil
	s.mu.Unlock()

	if srv == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleView(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, render.Render(s.opts.Session.Snapshot()))
}

func (s *Server) handlePose(w http.ResponseWriter, r *http.Request) {
	var req poseRequest

	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, &message{Message: "Invalid request", Error: err.Error()})

		return
	}

	if code, m := s.adjust(req.Action); code != http.StatusOK {
		writeJSON(w, code, m)

		return
	}

	writeJSON(w, http.StatusOK, &message{Message: "Command sent"})
}

func (s *Server) adjust(action string) (int, *message) {
	err := s.opts.Session.Adjust(action)

	switch {
	case err == nil:
		return http.StatusOK, nil
	case errors.Is(err, pose.ErrorInvalidAction):
		return http.StatusBadRequest, &message{Message: "Invalid action", Error: err.Error()}
	case errors.Is(err, network.ErrorNotConnected):
		return http.StatusServiceUnavailable, &message{Message: "Not connected", Error: err.Error()}
	default:
		return http.StatusInternalServerError, &message{Message: "Command failed", Error: err.Error()}
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	conn.SetReadLimit(maxBody)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	c := &client{conn: conn}

	initial := s.hub.add(c)
	if initial == nil {
		initial, _ = json.Marshal(render.Render(s.opts.Session.Snapshot()))
	}

	if err := c.write(websocket.TextMessage, initial); err != nil {
		s.hub.remove(c)

		return
	}

	go s.serveClient(c)
}

// serveClient keeps c alive with pings and accepts {"action": ...} commands.
func (s *Server) serveClient(c *client) {
	done := make(chan struct{})
	defer close(done)
	defer s.hub.remove(c)

	go func() {
		ticker := time.NewTicker(pingEvery)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := c.write(websocket.PingMessage, nil); err != nil {
					_ = c.conn.Close()

					return
				}
			}
		}
	}()

	for {
		messageType, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		if messageType != websocket.TextMessage {
			continue
		}

		var req poseRequest
		if err := json.Unmarshal(payload, &req); err != nil || req.Action == "" {
			continue
		}

		if code, m := s.adjust(req.Action); code != http.StatusOK {
			log.Debug("ConsoleAdjust", zap.String("action", req.Action), zap.String("err", m.Error))
		}
	}
}

// metrics records every request against its route template.
func (s *Server) metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}

		next.ServeHTTP(sw, r)

		name := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if t, err := route.GetPathTemplate(); err == nil {
				name = t
			}
		}

		s.opts.Monitor.Request(name, r.Method, sw.code, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrade through the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijack not supported")
	}

	w.code = http.StatusSwitchingProtocols

	return h.Hijack()
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("ConsoleWrite", zap.String("err", err.Error()))
	}
}

// sameHost accepts browsers served by this console and non-browser clients.
func sameHost(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil {
		return false
	}

	return u.Host == r.Host
}

func consoleURL(a string) string {
	host, port, err := net.SplitHostPort(a)
	if err != nil {
		return "http://" + a
	}

	if h, err := addr.Extract(host); err == nil {
		host = h
	}

	return "http://" + net.JoinHostPort(host, port)
}
