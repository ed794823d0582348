package wire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/arvidnl/pgwire/wiremetrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ListenAndServe opens a new Postgres server using the given address and
// default configuration. The given parse handler is used to handle simple
// queries. This function is a convenience wrapper for constructing a server
// for testing purposes or simple use cases.
func ListenAndServe(address string, parse ParseFn) error {
	srv, err := NewServer(parse)
	if err != nil {
		return err
	}

	return srv.ListenAndServe(address)
}

// NewServer constructs a new Postgres server using the given parse handler
// and server options.
func NewServer(parse ParseFn, options ...OptionFn) (*Server, error) {
	srv := &Server{
		parse:    parse,
		logger:   slog.Default(),
		closer:   make(chan struct{}),
		sessions: make(map[uint64]context.CancelFunc),
	}

	for _, option := range options {
		if err := option(srv); err != nil {
			return nil, fmt.Errorf("unexpected error while configuring server: %w", err)
		}
	}

	return srv, nil
}

// Server binds a TCP endpoint and drives one session per accepted
// connection. It assigns monotonically increasing session IDs and tracks
// the live set so sessions can be accounted for on shutdown; the live set
// is not otherwise inspected by the protocol.
type Server struct {
	closing         atomic.Bool
	wg              sync.WaitGroup
	logger          *slog.Logger
	metrics         *wiremetrics.Collector
	BufferedMsgSize int
	Version         string
	MetricsAddress  string
	parse           ParseFn
	closer          chan struct{}
	metricsSrv      *http.Server

	nextID   atomic.Uint64
	mu       sync.Mutex
	sessions map[uint64]context.CancelFunc
}

// ListenAndServe opens a new Postgres server on the given address and
// starts accepting and serving incoming client connections.
func (srv *Server) ListenAndServe(address string) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}

	return srv.Serve(listener)
}

// Serve accepts and serves incoming Postgres client connections using the
// preconfigured configuration. The listener is closed once the server is
// gracefully closed.
func (srv *Server) Serve(listener net.Listener) error {
	defer srv.logger.Info("closing server")

	srv.logger.Info("serving incoming connections", slog.String("addr", listener.Addr().String()))
	srv.startMetricsServer()
	srv.wg.Add(1)

	go func() {
		defer srv.wg.Done()
		<-srv.closer

		if err := listener.Close(); err != nil {
			srv.logger.Error("unexpected error while closing the net listener", "err", err)
		}
	}()

	for {
		conn, err := listener.Accept()
		if errors.Is(err, net.ErrClosed) {
			return nil
		}

		if err != nil {
			return err
		}

		go srv.accept(conn)
	}
}

// accept assigns a session ID to the connection, records it in the live
// set, and drives it to completion, removing it from the live set
// regardless of outcome.
func (srv *Server) accept(conn net.Conn) {
	id := srv.nextID.Add(1)
	ctx, cancel := context.WithCancel(context.Background())

	srv.mu.Lock()
	srv.sessions[id] = cancel
	srv.mu.Unlock()
	srv.metrics.SessionOpened()

	defer func() {
		srv.mu.Lock()
		delete(srv.sessions, id)
		srv.mu.Unlock()
		srv.metrics.SessionClosed()
		cancel()
	}()

	s := &session{
		id:      id,
		srv:     srv,
		conn:    conn,
		logger:  srv.logger.With(slog.Uint64("session", id)),
		metrics: srv.metrics,
	}

	err := s.run(ctx)
	if err != nil && !errors.Is(err, errSessionFatal) {
		srv.logger.Error("session ended with an unexpected error", slog.Uint64("session", id), "err", err)
	}
}

// Close gracefully closes the underlying Postgres server: the listener is
// closed and Close blocks until the goroutine closing it has returned. It
// does not wait for accept goroutines; live sessions are not forcibly
// interrupted and drain on their next I/O attempt once the client
// disconnects. The metrics HTTP server, if one was started, is shut down
// alongside it.
func (srv *Server) Close() error {
	if srv.closing.Load() {
		return nil
	}

	srv.closing.Store(true)
	close(srv.closer)
	srv.wg.Wait()

	if srv.metricsSrv != nil {
		return srv.metricsSrv.Close()
	}

	return nil
}

// startMetricsServer binds a separate HTTP listener exposing the collector's
// Prometheus registry, independent of the Postgres TCP listener. A no-op
// when no metrics address is configured or no collector was attached.
func (srv *Server) startMetricsServer() {
	if srv.MetricsAddress == "" || srv.metrics == nil {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(srv.metrics.Registry, promhttp.HandlerOpts{}))

	srv.metricsSrv = &http.Server{
		Addr:    srv.MetricsAddress,
		Handler: mux,
	}

	srv.logger.Info("serving metrics", slog.String("addr", srv.MetricsAddress))

	go func() {
		if err := srv.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srv.logger.Error("metrics server exited unexpectedly", "err", err)
		}
	}()
}

// Sessions returns the number of currently live sessions.
func (srv *Server) Sessions() int {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	return len(srv.sessions)
}
