package wire

import (
	"io"
	"log/slog"
	"testing"

	"github.com/arvidnl/pgwire/wireconfig"
	"github.com/arvidnl/pgwire/wiremetrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithConfigAppliesNonZeroFieldsOnly(t *testing.T) {
	srv := &Server{BufferedMsgSize: 999, Version: "13"}

	cfg := &wireconfig.Config{BufferSize: 0, ServerVersion: "", MetricsAddress: ""}
	require.NoError(t, WithConfig(cfg)(srv))

	assert.Equal(t, 999, srv.BufferedMsgSize, "zero BufferSize in config must not override an existing value")
	assert.Equal(t, "13", srv.Version, "empty ServerVersion in config must not override an existing value")
	assert.Empty(t, srv.MetricsAddress)
}

func TestWithConfigOverridesWhenSet(t *testing.T) {
	srv := &Server{}

	cfg := &wireconfig.Config{BufferSize: 4096, ServerVersion: "16", MetricsAddress: ":9090"}
	require.NoError(t, WithConfig(cfg)(srv))

	assert.Equal(t, 4096, srv.BufferedMsgSize)
	assert.Equal(t, "16", srv.Version)
	assert.Equal(t, ":9090", srv.MetricsAddress)
}

func TestWithMetricsStoresNilSafeCollector(t *testing.T) {
	srv, err := NewServer(nil, WithMetrics(nil))
	require.NoError(t, err)
	assert.Nil(t, srv.metrics)
	assert.NotPanics(t, func() { srv.metrics.SessionOpened() })
}

func TestWithLoggerOverridesDefault(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, err := NewServer(nil, WithLogger(logger))
	require.NoError(t, err)
	assert.Same(t, logger, srv.logger)
}

func TestWithMetricsAttachesCollector(t *testing.T) {
	collector := wiremetrics.New()
	srv, err := NewServer(nil, WithMetrics(collector))
	require.NoError(t, err)
	assert.Same(t, collector, srv.metrics)
}
