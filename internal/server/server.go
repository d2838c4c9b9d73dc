// Package server exposes the engine's HTTP surface: the media-stream
// WebSocket, health probes, and the Prometheus scrape endpoint.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vaanilabs/vaani/internal/call"
	"github.com/vaanilabs/vaani/internal/config"
	"github.com/vaanilabs/vaani/internal/health"
	"github.com/vaanilabs/vaani/internal/observe"
)

// drainTimeout bounds how long in-flight calls may keep running after a
// shutdown request before the listener is torn down regardless.
const drainTimeout = 15 * time.Second

// Server accepts media-stream connections and runs one call session per
// connection.
type Server struct {
	cfg     *config.Config
	sessCfg call.Config
	deps    call.Deps

	log *slog.Logger
	met *observe.Metrics

	health  *health.Handler
	httpSrv *http.Server
	calls   sync.WaitGroup
}

// New builds a server from the application config and the per-call
// dependencies. checks become the /readyz probes.
func New(cfg *config.Config, deps call.Deps, checks ...health.Checker) *Server {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	met := deps.Metrics
	if met == nil {
		met = observe.DefaultMetrics()
	}
	s := &Server{
		cfg:     cfg,
		sessCfg: call.FromConfig(cfg),
		deps:    deps,
		health:  health.New(checks...),
		log:     log,
		met:     met,
	}
	s.httpSrv = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Routes assembles the HTTP handler. The WebSocket endpoint bypasses the
// observability middleware because the status recorder does not support
// connection hijacking; everything else goes through it.
func (s *Server) Routes() http.Handler {
	inner := http.NewServeMux()
	s.health.Register(inner)
	inner.Handle("GET /metrics", promhttp.Handler())

	outer := http.NewServeMux()
	outer.HandleFunc("GET /stream", s.handleStream)
	outer.Handle("/", observe.Middleware(s.met)(inner))
	return outer
}

// handleStream upgrades the connection and runs a call session on it. The
// handler blocks for the whole call; the provider holds one WebSocket per
// live call leg.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// The telephony provider does not send an Origin header.
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.log.Warn("websocket accept failed", slog.String("error", err.Error()))
		return
	}

	s.calls.Add(1)
	defer s.calls.Done()

	sess := call.NewSession(&wsConn{c: c}, s.sessCfg, s.deps)
	if err := sess.Run(r.Context()); err != nil {
		s.log.Error("call session aborted", slog.String("error", err.Error()))
	}
}

// ListenAndServe runs the HTTP server until ctx is cancelled, then drains
// in-flight calls for up to drainTimeout before closing the listener.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	s.log.Info("server listening", slog.String("addr", s.cfg.Server.ListenAddr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// Fail readiness first so the dialer stops routing new call legs here
	// while the in-flight ones play out.
	s.health.SetDraining(true)
	s.log.Info("draining in-flight calls", slog.Duration("timeout", drainTimeout))
	sctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	drained := make(chan struct{})
	go func() {
		s.calls.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-sctx.Done():
		// Hijacked WebSocket connections survive Shutdown; Close is the
		// only way to cut calls that outlive the drain window.
		s.log.Warn("drain timeout exceeded, closing remaining calls")
		return s.httpSrv.Close()
	}
	return s.httpSrv.Shutdown(sctx)
}

// ─── WebSocket adapter ───

// wsConn adapts a coder/websocket connection to the [call.Conn] transport.
// Media-stream envelopes are JSON, so all messages go as text frames.
type wsConn struct {
	c *websocket.Conn
}

var _ call.Conn = (*wsConn)(nil)

func (w *wsConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := w.c.Read(ctx)
	return data, err
}

func (w *wsConn) Write(ctx context.Context, data []byte) error {
	return w.c.Write(ctx, websocket.MessageText, data)
}

func (w *wsConn) Close() error {
	return w.c.Close(websocket.StatusNormalClosure, "call ended")
}
