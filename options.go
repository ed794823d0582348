package wire

import (
	"log/slog"

	"github.com/arvidnl/pgwire/wireconfig"
	"github.com/arvidnl/pgwire/wiremetrics"
)

// OptionFn configures a Server constructed through NewServer.
type OptionFn func(*Server) error

// WithLogger sets the structured logger used for all server and session
// diagnostics. The default is slog.Default().
func WithLogger(logger *slog.Logger) OptionFn {
	return func(srv *Server) error {
		srv.logger = logger
		return nil
	}
}

// WithMetrics attaches a Prometheus collector. A nil collector (the
// default when this option is omitted) makes every metrics call a no-op.
func WithMetrics(collector *wiremetrics.Collector) OptionFn {
	return func(srv *Server) error {
		srv.metrics = collector
		return nil
	}
}

// WithBufferSize overrides the per-connection read buffer size.
func WithBufferSize(size int) OptionFn {
	return func(srv *Server) error {
		srv.BufferedMsgSize = size
		return nil
	}
}

// WithVersion sets the server_version ParameterStatus value advertised at
// startup. The default is "14".
func WithVersion(version string) OptionFn {
	return func(srv *Server) error {
		srv.Version = version
		return nil
	}
}

// WithConfig applies a loaded wireconfig.Config as a single option,
// equivalent to WithBufferSize, WithVersion, and WithMetricsAddress called
// individually for each config field that is set; zero-valued fields leave
// the server's current value unchanged.
func WithConfig(cfg *wireconfig.Config) OptionFn {
	return func(srv *Server) error {
		if cfg.BufferSize > 0 {
			srv.BufferedMsgSize = cfg.BufferSize
		}

		if cfg.ServerVersion != "" {
			srv.Version = cfg.ServerVersion
		}

		if cfg.MetricsAddress != "" {
			srv.MetricsAddress = cfg.MetricsAddress
		}

		return nil
	}
}

// WithMetricsAddress binds a separate HTTP listener exposing the metrics
// collector's Prometheus registry at /metrics. Has no effect unless
// WithMetrics is also supplied.
func WithMetricsAddress(addr string) OptionFn {
	return func(srv *Server) error {
		srv.MetricsAddress = addr
		return nil
	}
}
