package buffer

import (
	"bytes"
	"encoding/binary"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/arvidnl/pgwire/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestReadTypedMsg(t *testing.T) {
	expected := types.ClientSimpleQuery
	text := append([]byte("SELECT 1"), 0)

	in := bytes.NewBuffer(nil)
	in.WriteByte(byte(expected))

	size := make([]byte, 4)
	binary.BigEndian.PutUint32(size, uint32(len(text)+4))
	in.Write(size)
	in.Write(text)

	reader := NewReader(nil, in, DefaultBufferSize)

	ty, ln, err := reader.ReadTypedMsg()
	require.NoError(t, err)
	assert.Equal(t, expected, ty)
	assert.Equal(t, len(text)+4, ln)

	got, err := reader.GetString()
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", got)
}

func TestNumericRoundTrip(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	writer := NewWriter(discardLogger(), buf)

	writer.Start(types.ServerDataRow)
	writer.AddInt16(math.MinInt16)
	writer.AddInt32(math.MinInt32)
	writer.AddInt64(math.MinInt64)
	writer.AddFloat32(3.25)
	writer.AddFloat64(-6.5)
	require.NoError(t, writer.End())

	reader := NewReader(nil, buf, DefaultBufferSize)
	_, _, err := reader.ReadTypedMsg()
	require.NoError(t, err)

	i16, err := reader.GetInt16()
	require.NoError(t, err)
	assert.EqualValues(t, math.MinInt16, i16)

	i32, err := reader.GetInt32()
	require.NoError(t, err)
	assert.EqualValues(t, math.MinInt32, i32)

	i64, err := reader.GetInt64()
	require.NoError(t, err)
	assert.EqualValues(t, math.MinInt64, i64)

	f32, err := reader.GetFloat32()
	require.NoError(t, err)
	assert.EqualValues(t, float32(3.25), f32)

	f64, err := reader.GetFloat64()
	require.NoError(t, err)
	assert.EqualValues(t, -6.5, f64)
}

func TestStringRoundTrip(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	writer := NewWriter(discardLogger(), buf)

	writer.Start(types.ServerCommandComplete)
	writer.AddString("héllo wörld")
	writer.AddNullTerminate()
	require.NoError(t, writer.End())

	reader := NewReader(nil, buf, DefaultBufferSize)
	_, _, err := reader.ReadTypedMsg()
	require.NoError(t, err)

	got, err := reader.GetString()
	require.NoError(t, err)
	assert.Equal(t, "héllo wörld", got)
}

func TestParameterStatusWireFormat(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	writer := NewWriter(discardLogger(), buf)

	writer.Start(types.ServerParameterStatus)
	writer.AddString("a")
	writer.AddNullTerminate()
	writer.AddString("b")
	writer.AddNullTerminate()
	require.NoError(t, writer.End())

	expected := []byte{'S', 0x00, 0x00, 0x00, 0x08, 'a', 0x00, 'b', 0x00}
	assert.Equal(t, expected, buf.Bytes())
}

func TestGetStringMissingNulTerminatorDegradesToEmpty(t *testing.T) {
	reader := &Reader{Msg: []byte("no terminator here")}

	got, err := reader.GetString()
	require.NoError(t, err)
	assert.Equal(t, "", got)
	assert.Empty(t, reader.Msg, "cursor should consume the remainder rather than desync the stream")
}

func TestGetUint32InsufficientDataDegradesToZero(t *testing.T) {
	reader := &Reader{Msg: []byte{1, 2}}

	got, err := reader.GetUint32()
	require.NoError(t, err)
	assert.EqualValues(t, 0, got)
	assert.Empty(t, reader.Msg)
}

func TestGetBytesInsufficientDataReturnsShortSlice(t *testing.T) {
	reader := &Reader{Msg: []byte{1, 2}}

	got, err := reader.GetBytes(5)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, got)
	assert.Empty(t, reader.Msg)
}

func TestReaderResetReusesCapacity(t *testing.T) {
	reader := &Reader{Msg: make([]byte, 0, 4096)}
	reader.reset(2048)
	assert.Len(t, reader.Msg, 2048)
	assert.GreaterOrEqual(t, cap(reader.Msg), 2048)
}
