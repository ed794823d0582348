package wire

import (
	"bytes"
	"encoding/binary"
	"io"
	"log/slog"
	"testing"

	"github.com/arvidnl/pgwire/buffer"
	"github.com/lib/pq/oid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nopWriter(buf *bytes.Buffer) *buffer.Writer {
	return buffer.NewWriter(slog.New(slog.NewTextHandler(io.Discard, nil)), buf)
}

func TestTypeSizeFixedAndVariableWidth(t *testing.T) {
	assert.EqualValues(t, 4, typeSize(oid.T_int4))
	assert.EqualValues(t, 16, typeSize(oid.T_uuid))
	assert.EqualValues(t, -1, typeSize(oid.T_text))
	assert.EqualValues(t, -1, typeSize(oid.Oid(999999)))
}

func TestColumnsDefineWritesRowDescription(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	columns := Columns{
		{Name: "id", Oid: oid.T_int4},
		{Name: "name", Oid: oid.T_text},
	}

	require.NoError(t, columns.Define(nopWriter(buf), TextFormat))

	out := buf.Bytes()
	assert.Equal(t, byte('T'), out[0])
	assert.EqualValues(t, 2, binary.BigEndian.Uint16(out[5:7]))
}

func TestDataWriterRowCountAndCompleteTag(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	w := NewDataWriter(nopWriter(buf), TextFormat)

	row := w.Row()
	row.WriteString("a")
	require.NoError(t, row.Close())

	row = w.Row()
	row.WriteString("b")
	require.NoError(t, row.Close())

	assert.EqualValues(t, 2, w.Written())
	require.NoError(t, w.Complete("SELECT 2"))
	assert.ErrorIs(t, w.Complete("SELECT 2"), ErrClosedWriter)
}

func TestDataWriterEmptyMarksClosed(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	w := NewDataWriter(nopWriter(buf), TextFormat)

	require.NoError(t, w.Empty())
	assert.ErrorIs(t, w.Empty(), ErrClosedWriter)
}

func TestRowBuilderTextEncodingOfScalarTypes(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	w := NewDataWriter(nopWriter(buf), TextFormat)

	row := w.Row()
	row.WriteBool(true)
	row.WriteInt2(-7)
	row.WriteInt4(42)
	row.WriteInt8(9000000000)
	row.WriteNull()
	require.NoError(t, row.Close())

	data := buf.Bytes()
	assert.Equal(t, byte('D'), data[0])

	colCount := binary.BigEndian.Uint16(data[5:7])
	assert.EqualValues(t, 5, colCount)

	rest := data[7:]
	readCol := func() []byte {
		n := int32(binary.BigEndian.Uint32(rest[:4]))
		rest = rest[4:]
		if n == -1 {
			return nil
		}
		v := rest[:n]
		rest = rest[n:]
		return v
	}

	assert.Equal(t, "t", string(readCol()))
	assert.Equal(t, "-7", string(readCol()))
	assert.Equal(t, "42", string(readCol()))
	assert.Equal(t, "9000000000", string(readCol()))
	assert.Nil(t, readCol())
}

func TestRowBuilderBinaryEncodingOfInt4(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	w := NewDataWriter(nopWriter(buf), BinaryFormat)

	row := w.Row()
	row.WriteInt4(42)
	require.NoError(t, row.Close())

	data := buf.Bytes()
	body := data[7:]
	length := int32(binary.BigEndian.Uint32(body[:4]))
	require.EqualValues(t, 4, length)
	assert.EqualValues(t, 42, int32(binary.BigEndian.Uint32(body[4:8])))
}
