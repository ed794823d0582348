package wire

import (
	"context"
	"log/slog"
	"net"

	"github.com/arvidnl/pgwire/buffer"
	"github.com/arvidnl/pgwire/types"
)

// authOK is the sole authentication status this server ever sends: per the
// startup negotiation, every client is authenticated unconditionally.
const authOK int32 = 0

// Handshake performs the connection startup negotiation and returns a
// buffered reader positioned to read the first post-startup frontend
// message. Any number of SSLRequests are declined in turn before the real
// Startup message is processed; this loop is what keeps StartupPending
// re-entrant for repeated SSL probes.
func (srv *Server) Handshake(conn net.Conn) (_ net.Conn, reader *buffer.Reader, err error) {
	reader = buffer.NewReader(srv.logger, conn, srv.BufferedMsgSize)

	for {
		version, err := srv.readVersion(reader)
		if err != nil {
			return conn, reader, err
		}

		if version == types.VersionSSLRequest {
			srv.logger.Debug("declining TLS upgrade, replying with 'N'")

			if _, err := conn.Write(sslUnsupported); err != nil {
				return conn, reader, err
			}

			continue
		}

		if version == types.VersionCancel {
			return conn, reader, errCancelRequest
		}

		return conn, reader, nil
	}
}

// errCancelRequest signals that the connection sent a CancelRequest startup
// frame instead of a real Startup; the caller closes the connection without
// further negotiation. Cancel requests are not otherwise acted upon.
var errCancelRequest = &cancelRequestError{}

type cancelRequestError struct{}

func (*cancelRequestError) Error() string { return "cancel request received" }

// readVersion reads the start-up protocol version (uint32) from the buffer.
func (srv *Server) readVersion(reader *buffer.Reader) (types.Version, error) {
	_, err := reader.ReadUntypedMsg()
	if err != nil {
		return 0, err
	}

	version, err := reader.GetUint32()
	if err != nil {
		return 0, err
	}

	return types.Version(version), nil
}

// readClientParameters reads the key/value startup parameters sent by the
// client. An empty key terminates the list. The retained parameters (user,
// database, options) are attached to the returned context.
func (srv *Server) readClientParameters(ctx context.Context, reader *buffer.Reader) (context.Context, error) {
	meta := make(Parameters)

	for {
		key, err := reader.GetString()
		if err != nil {
			return nil, err
		}

		if len(key) == 0 {
			break
		}

		value, err := reader.GetString()
		if err != nil {
			return nil, err
		}

		srv.logger.Debug("client parameter", slog.String("key", key), slog.String("value", value))

		switch ParameterStatus(key) {
		case ParamUsername, ParamDatabase, ParamOptions:
			meta[ParameterStatus(key)] = value
		}
	}

	return setClientParameters(ctx, meta), nil
}

// writeParameters writes the fixed set of server ParameterStatus rows to the
// client. The written parameters are attached to the returned context.
// https://www.postgresql.org/docs/10/libpq-status.html
func (srv *Server) writeParameters(ctx context.Context, writer *buffer.Writer) (context.Context, error) {
	params := Parameters{
		ParamServerVersion:  serverVersion(srv.Version),
		ParamServerEncoding: "UTF-8",
		ParamClientEncoding: "UTF-8",
		ParamDateStyle:      "ISO",
		ParamTimeZone:       "UTC",
	}

	for key, value := range params {
		srv.logger.Debug("server parameter", slog.String("key", string(key)), slog.String("value", value))

		writer.Start(types.ServerParameterStatus)
		writer.AddString(string(key))
		writer.AddNullTerminate()
		writer.AddString(value)
		writer.AddNullTerminate()
		if err := writer.End(); err != nil {
			return ctx, err
		}
	}

	return setServerParameters(ctx, params), nil
}

func serverVersion(configured string) string {
	if configured != "" {
		return configured
	}

	return "14"
}

// writeAuthenticationOK announces to the client that the connection is
// authenticated. This server has no authentication strategies: every
// connection receives AuthenticationOk unconditionally.
func writeAuthenticationOK(writer *buffer.Writer) error {
	writer.Start(types.ServerAuth)
	writer.AddInt32(authOK)
	return writer.End()
}

// readyForQuery indicates that the server is ready to receive queries. This
// message is written once a command cycle (or the startup handshake) has
// completed.
func readyForQuery(writer *buffer.Writer, status types.ServerStatus) error {
	writer.Start(types.ServerReady)
	writer.AddByte(byte(status))
	return writer.End()
}
