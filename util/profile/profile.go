// Package profile serves pprof on its own listener, away from the console.
package profile

import (
	"context"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"yogavision/log"

	"go.uber.org/zap"
)

type Server struct {
	srv *http.Server
	ln  net.Listener
}

// Handler exposes the pprof index and its named profiles under /debug/pprof/.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	return mux
}

// Start listens on addr, e.g. 127.0.0.1:6060, and serves in the background.
func Start(addr string) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	s := &Server{
		srv: &http.Server{Handler: Handler(), ReadHeaderTimeout: 5 * time.Second},
		ln:  ln,
	}

	log.Info("StartProfile", zap.String("addr", ln.Addr().String()))

	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Warn("ProfileServe", zap.String("err", err.Error()))
		}
	}()

	return s, nil
}

func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

func (s *Server) Stop() {
	if s == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_ = s.srv.Shutdown(ctx)
}
