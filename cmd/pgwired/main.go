// Command pgwired boots a demo pgwire server on :15432 with an in-memory
// parse handler that always answers with the same two-row, two-column
// result set, regardless of the query text.
package main

import (
	"context"
	"log/slog"
	"os"

	wire "github.com/arvidnl/pgwire"
	"github.com/arvidnl/pgwire/wireconfig"
	"github.com/arvidnl/pgwire/wiremetrics"
	"github.com/lib/pq/oid"
)

var columns = wire.Columns{
	{Name: "name", Oid: oid.T_text},
	{Name: "age", Oid: oid.T_int4},
}

func parse(ctx context.Context, query string) (wire.PreparedStatement, error) {
	return wire.PreparedStatement{
		Columns: columns,
		Exec: func(ctx context.Context, writer wire.DataWriter) error {
			row := writer.Row()
			row.WriteString("euiko")
			row.WriteInt4(8)
			if err := row.Close(); err != nil {
				return err
			}

			row = writer.Row()
			row.WriteString("alice")
			row.WriteInt4(9)
			return row.Close()
		},
	}, nil
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	cfg, err := wireconfig.Load(os.Getenv("PGWIRE_CONFIG"))
	if err != nil {
		logger.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}

	collector := wiremetrics.New()

	srv, err := wire.NewServer(parse,
		wire.WithLogger(logger),
		wire.WithConfig(cfg),
		wire.WithMetrics(collector),
	)
	if err != nil {
		logger.Error("failed to construct server", "err", err)
		os.Exit(1)
	}

	logger.Info("pgwire demo server listening", "addr", cfg.ListenAddress)
	if err := srv.ListenAndServe(cfg.ListenAddress); err != nil {
		logger.Error("server exited", "err", err)
		os.Exit(1)
	}
}
