package wire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/arvidnl/pgwire/buffer"
	"github.com/arvidnl/pgwire/codes"
	pgerror "github.com/arvidnl/pgwire/errors"
	"github.com/arvidnl/pgwire/types"
	"github.com/arvidnl/pgwire/wiremetrics"
)

// NewErrUnimplementedMessageType is returned when a message type reaches the
// dispatcher without anything to handle it; the simple-query path raises it
// when the server has no parse handler configured.
func NewErrUnimplementedMessageType(t types.ClientMessage) error {
	err := fmt.Errorf("unimplemented client message type: %d", t)
	return pgerror.WithSeverity(pgerror.WithCode(err, codes.ConnectionDoesNotExist), pgerror.LevelFatal)
}

// NewErrUndefinedStatement is returned whenever a parse handler yields no
// statement for a non-empty query.
func NewErrUndefinedStatement() error {
	err := errors.New("no statement has been defined")
	return pgerror.WithSeverity(pgerror.WithCode(err, codes.Syntax), pgerror.LevelError)
}

// session drives one accepted connection end-to-end: startup negotiation,
// then a ReadyForQuery/InQuery loop, until Terminate, transport failure, or
// a Fatal SQL error.
type session struct {
	id      uint64
	srv     *Server
	conn    net.Conn
	reader  *buffer.Reader
	writer  *buffer.Writer
	logger  *slog.Logger
	metrics *wiremetrics.Collector
}

// run executes the full session lifecycle. The connection is always closed
// on return, regardless of outcome.
func (s *session) run(ctx context.Context) error {
	defer s.conn.Close()

	conn, reader, err := s.srv.Handshake(s.conn)
	if err != nil {
		if errors.Is(err, errCancelRequest) {
			s.logger.Debug("closing connection after cancel request", slog.Uint64("session", s.id))
			return nil
		}

		return err
	}

	s.conn = conn
	s.reader = reader
	s.writer = buffer.NewWriter(s.logger, conn)

	ctx, err = s.srv.readClientParameters(ctx, s.reader)
	if err != nil {
		return err
	}

	if err := writeAuthenticationOK(s.writer); err != nil {
		return err
	}

	ctx, err = s.srv.writeParameters(ctx, s.writer)
	if err != nil {
		return err
	}

	if err := readyForQuery(s.writer, types.ServerIdle); err != nil {
		return err
	}

	return s.loop(ctx)
}

// loop implements ReadyForQuery <-> InQuery: it reads one tagged frontend
// message per iteration and dispatches it, returning when the connection
// terminates (by request or by error).
func (s *session) loop(ctx context.Context) error {
	for {
		t, length, err := s.reader.ReadTypedMsg()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if errors.Is(err, buffer.ErrMessageSizeExceeded) {
			if err := s.handleMessageSizeExceeded(err); err != nil {
				return err
			}

			continue
		}

		if err != nil {
			return err
		}

		s.logger.Debug("<- incoming message", slog.Int("length", length), slog.String("type", t.String()))

		switch t {
		case types.ClientSimpleQuery:
			if err := s.handleQuery(ctx); err != nil {
				return err
			}
		case types.ClientTerminate:
			return nil
		default:
			// Unhandled frontend message: the body has already been consumed
			// by ReadTypedMsg, so the stream stays synchronized. State is
			// unchanged; no reply is sent.
		}
	}
}

func (s *session) handleMessageSizeExceeded(exceeded error) error {
	unwrapped, ok := buffer.UnwrapMessageSizeExceeded(exceeded)
	if !ok {
		return exceeded
	}

	if err := s.reader.Slurp(unwrapped.Size); err != nil {
		return err
	}

	if err := ErrorCode(s.writer, exceeded); err != nil {
		return err
	}

	return readyForQuery(s.writer, types.ServerIdle)
}

// handleQuery implements the 'Q' transition: parse, describe, execute, and
// complete a single simple query, recovering from any non-Fatal SqlException
// raised by the user handler.
func (s *session) handleQuery(ctx context.Context) error {
	query, err := s.reader.GetString()
	if err != nil {
		return err
	}

	s.logger.Debug("incoming simple query", slog.String("query", query))
	started := time.Now()

	if strings.TrimSpace(query) == "" {
		s.writer.Start(types.ServerEmptyQuery)
		if err := s.writer.End(); err != nil {
			return err
		}

		s.metrics.QueryObserved(wiremetrics.OutcomeOK, time.Since(started))
		return readyForQuery(s.writer, types.ServerIdle)
	}

	if s.srv.parse == nil {
		err := NewErrUnimplementedMessageType(types.ClientSimpleQuery)
		return s.recoverable(ErrorCode(s.writer, err), started, err)
	}

	stmt, err := s.srv.parse(ctx, query)
	if err != nil {
		return s.recoverable(ErrorCode(s.writer, err), started, err)
	}

	if err := stmt.Columns.Define(s.writer, TextFormat); err != nil {
		return err
	}

	data := NewDataWriter(s.writer, TextFormat)

	if stmt.Exec == nil {
		return s.recoverable(ErrorCode(s.writer, NewErrUndefinedStatement()), started)
	}

	if err := stmt.Exec(ctx, data); err != nil {
		return s.recoverable(ErrorCode(s.writer, err), started, err)
	}

	tag := fmt.Sprintf("SELECT %d", data.Written())
	if err := data.Complete(tag); err != nil {
		return err
	}

	s.metrics.QueryObserved(wiremetrics.OutcomeOK, time.Since(started))
	return readyForQuery(s.writer, types.ServerIdle)
}

// recoverable sends ReadyForQuery after an ErrorResponse unless the
// originating error (if any) was Fatal, in which case the session is torn
// down and the connection closed without ReadyForQuery.
func (s *session) recoverable(writeErr error, started time.Time, cause ...error) error {
	if writeErr != nil {
		return writeErr
	}

	fatal := false
	for _, c := range cause {
		if IsFatal(c) {
			fatal = true
		}
	}

	if fatal {
		s.metrics.QueryObserved(wiremetrics.OutcomeFatal, time.Since(started))
		return errSessionFatal
	}

	s.metrics.QueryObserved(wiremetrics.OutcomeError, time.Since(started))
	return readyForQuery(s.writer, types.ServerIdle)
}

// errSessionFatal signals the acceptor that the connection was torn down
// deliberately after a Fatal-severity SqlException; it is not logged as an
// unexpected transport failure.
var errSessionFatal = errors.New("fatal SQL error, connection closed")
