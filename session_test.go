package wire

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/arvidnl/pgwire/codes"
	pgerror "github.com/arvidnl/pgwire/errors"
	"github.com/arvidnl/pgwire/types"
	"github.com/lib/pq/oid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rawMessage is a server->client message as read directly off the wire,
// bypassing buffer.Reader (which is typed for frontend messages) so the test
// can assert on raw bytes.
type rawMessage struct {
	tag  byte
	body []byte
}

func readRawMessage(t *testing.T, r io.Reader) rawMessage {
	t.Helper()

	var header [5]byte
	_, err := io.ReadFull(r, header[:])
	require.NoError(t, err)

	length := binary.BigEndian.Uint32(header[1:5])
	body := make([]byte, length-4)
	_, err = io.ReadFull(r, body)
	require.NoError(t, err)

	return rawMessage{tag: header[0], body: body}
}

func writeStartupMessage(t *testing.T, w io.Writer, version types.Version, params map[string]string) {
	t.Helper()

	body := bytes.NewBuffer(nil)
	var v [4]byte
	binary.BigEndian.PutUint32(v[:], uint32(version))
	body.Write(v[:])

	for k, val := range params {
		body.WriteString(k)
		body.WriteByte(0)
		body.WriteString(val)
		body.WriteByte(0)
	}
	body.WriteByte(0)

	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(body.Len()+4))

	_, err := w.Write(length[:])
	require.NoError(t, err)
	_, err = w.Write(body.Bytes())
	require.NoError(t, err)
}

func writeSimpleQuery(t *testing.T, w io.Writer, query string) {
	t.Helper()

	body := append([]byte(query), 0)
	var header [5]byte
	header[0] = byte(types.ClientSimpleQuery)
	binary.BigEndian.PutUint32(header[1:5], uint32(len(body)+4))

	_, err := w.Write(header[:])
	require.NoError(t, err)
	_, err = w.Write(body)
	require.NoError(t, err)
}

func writeTerminate(t *testing.T, w io.Writer) {
	t.Helper()

	header := []byte{byte(types.ClientTerminate), 0, 0, 0, 4}
	_, err := w.Write(header)
	require.NoError(t, err)
}

// runTestSession drives a single accepted connection through the server's
// session handling, using a net.Pipe so no real TCP socket is needed. It
// returns the client-side end of the pipe and a channel receiving the
// session's terminal error.
func runTestSession(t *testing.T, parse ParseFn) (net.Conn, <-chan struct{}) {
	t.Helper()

	srv, err := NewServer(parse, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)

	client, server := net.Pipe()
	done := make(chan struct{})

	go func() {
		defer close(done)
		srv.accept(server)
	}()

	t.Cleanup(func() {
		client.Close()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Log("session goroutine did not exit in time")
		}
	})

	return client, done
}

func handshakeAndDrain(t *testing.T, client net.Conn) {
	t.Helper()

	writeStartupMessage(t, client, types.Version30, map[string]string{"user": "tester"})

	auth := readRawMessage(t, client)
	assert.Equal(t, byte(types.ServerAuth), auth.tag)
	assert.Equal(t, int32(0), int32(binary.BigEndian.Uint32(auth.body)))

	for i := 0; i < 5; i++ {
		msg := readRawMessage(t, client)
		assert.Equal(t, byte(types.ServerParameterStatus), msg.tag)
	}

	ready := readRawMessage(t, client)
	assert.Equal(t, byte(types.ServerReady), ready.tag)
	assert.Equal(t, []byte{byte(types.ServerIdle)}, ready.body)
}

func TestSessionSSLThenStartupThenTerminate(t *testing.T) {
	client, done := runTestSession(t, nil)

	writeStartupMessage(t, client, types.VersionSSLRequest, nil)
	var sslReply [1]byte
	_, err := io.ReadFull(client, sslReply[:])
	require.NoError(t, err)
	assert.Equal(t, byte('N'), sslReply[0])

	handshakeAndDrain(t, client)
	writeTerminate(t, client)

	<-done
}

func TestSessionEmptyQuery(t *testing.T) {
	client, done := runTestSession(t, nil)
	handshakeAndDrain(t, client)

	writeSimpleQuery(t, client, "   ")

	empty := readRawMessage(t, client)
	assert.Equal(t, byte(types.ServerEmptyQuery), empty.tag)

	ready := readRawMessage(t, client)
	assert.Equal(t, byte(types.ServerReady), ready.tag)

	writeTerminate(t, client)
	<-done
}

func TestSessionRowsThenCommandComplete(t *testing.T) {
	columns := Columns{
		{Name: "name", Oid: oid.T_text},
		{Name: "age", Oid: oid.T_int4},
	}

	client, done := runTestSession(t, func(ctx context.Context, query string) (PreparedStatement, error) {
		return PreparedStatement{
			Columns: columns,
			Exec: func(ctx context.Context, writer DataWriter) error {
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
	})
	handshakeAndDrain(t, client)

	writeSimpleQuery(t, client, "SELECT * FROM people")

	rowDesc := readRawMessage(t, client)
	assert.Equal(t, byte(types.ServerRowDescription), rowDesc.tag)
	assert.EqualValues(t, 2, binary.BigEndian.Uint16(rowDesc.body[:2]))

	row1 := readRawMessage(t, client)
	assert.Equal(t, byte(types.ServerDataRow), row1.tag)

	row2 := readRawMessage(t, client)
	assert.Equal(t, byte(types.ServerDataRow), row2.tag)

	complete := readRawMessage(t, client)
	assert.Equal(t, byte(types.ServerCommandComplete), complete.tag)
	assert.Equal(t, "SELECT 2\x00", string(complete.body))

	ready := readRawMessage(t, client)
	assert.Equal(t, byte(types.ServerReady), ready.tag)

	writeTerminate(t, client)
	<-done
}

func TestSessionRecoverableErrorReturnsToReadyForQuery(t *testing.T) {
	client, done := runTestSession(t, func(ctx context.Context, query string) (PreparedStatement, error) {
		return PreparedStatement{}, fmt.Errorf("bad query: %s", query)
	})
	handshakeAndDrain(t, client)

	writeSimpleQuery(t, client, "SELECT bogus")

	errMsg := readRawMessage(t, client)
	assert.Equal(t, byte(types.ServerErrorResponse), errMsg.tag)

	ready := readRawMessage(t, client)
	assert.Equal(t, byte(types.ServerReady), ready.tag)

	writeTerminate(t, client)
	<-done
}

func TestSessionFatalErrorClosesWithoutReadyForQuery(t *testing.T) {
	fatalErr := pgerror.WithSeverity(pgerror.WithCode(fmt.Errorf("disk full"), codes.Internal), pgerror.LevelFatal)

	client, done := runTestSession(t, func(ctx context.Context, query string) (PreparedStatement, error) {
		return PreparedStatement{}, fatalErr
	})
	handshakeAndDrain(t, client)

	writeSimpleQuery(t, client, "SELECT 1")

	errMsg := readRawMessage(t, client)
	assert.Equal(t, byte(types.ServerErrorResponse), errMsg.tag)

	_, err := io.ReadFull(client, make([]byte, 1))
	assert.Error(t, err, "connection should be closed without a trailing ReadyForQuery")

	<-done
}

func TestSessionUnhandledTagIsSilentlyDiscarded(t *testing.T) {
	client, done := runTestSession(t, func(ctx context.Context, query string) (PreparedStatement, error) {
		return PreparedStatement{
			Columns: Columns{{Name: "x", Oid: oid.T_int4}},
			Exec: func(ctx context.Context, writer DataWriter) error {
				row := writer.Row()
				row.WriteInt4(1)
				return row.Close()
			},
		}, nil
	})
	handshakeAndDrain(t, client)

	// Parse ('P') is not implemented by the simple-query-only session; its
	// body must be consumed without desynchronizing the stream.
	body := []byte("stmt\x00SELECT 1\x00")
	var header [5]byte
	header[0] = 'P'
	binary.BigEndian.PutUint32(header[1:5], uint32(len(body)+4))
	_, err := client.Write(header[:])
	require.NoError(t, err)
	_, err = client.Write(body)
	require.NoError(t, err)

	writeSimpleQuery(t, client, "SELECT 1")

	rowDesc := readRawMessage(t, client)
	assert.Equal(t, byte(types.ServerRowDescription), rowDesc.tag)

	row := readRawMessage(t, client)
	assert.Equal(t, byte(types.ServerDataRow), row.tag)

	complete := readRawMessage(t, client)
	assert.Equal(t, byte(types.ServerCommandComplete), complete.tag)

	ready := readRawMessage(t, client)
	assert.Equal(t, byte(types.ServerReady), ready.tag)

	writeTerminate(t, client)
	<-done
}
