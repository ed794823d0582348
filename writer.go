package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/arvidnl/pgwire/buffer"
	"github.com/arvidnl/pgwire/types"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/lib/pq/oid"
	"github.com/shopspring/decimal"
)

// ErrClosedWriter is returned when the data writer has already sent Empty or
// Complete and is reused.
var ErrClosedWriter = errors.New("closed writer")

// DataWriter streams typed column values into DataRow messages and tracks
// the number of rows written, so the final CommandComplete tag can report an
// accurate row count.
type DataWriter interface {
	// Row begins a new row. The returned RowBuilder must be fed exactly as
	// many column values as were described in the preceding RowDescription,
	// in order, then closed. The writer does not enforce this; a short or
	// long row produces a malformed DataRow and is the caller's responsibility.
	Row() *RowBuilder

	// Written returns the number of rows sent to the client so far.
	Written() uint64

	// Empty announces to the client that the command produced no rows.
	Empty() error

	// Complete announces that the command has finished, using the given
	// command tag (e.g. "SELECT 3").
	Complete(tag string) error
}

// NewDataWriter constructs a DataWriter that frames rows in the given
// format and flushes them through client.
func NewDataWriter(client *buffer.Writer, format FormatCode) DataWriter {
	return &dataWriter{client: client, format: format}
}

type dataWriter struct {
	client  *buffer.Writer
	format  FormatCode
	written uint64
	closed  bool
}

func (w *dataWriter) Row() *RowBuilder {
	return &RowBuilder{writer: w, format: w.format}
}

func (w *dataWriter) Written() uint64 {
	return w.written
}

func (w *dataWriter) Empty() error {
	if w.closed {
		return ErrClosedWriter
	}

	w.closed = true

	w.client.Start(types.ServerEmptyQuery)
	return w.client.End()
}

func (w *dataWriter) Complete(tag string) error {
	if w.closed {
		return ErrClosedWriter
	}

	w.closed = true

	w.client.Start(types.ServerCommandComplete)
	w.client.AddString(tag)
	w.client.AddNullTerminate()
	return w.client.End()
}

// RowBuilder accumulates one row of typed column values and frames them as a
// single DataRow message when Close is called.
type RowBuilder struct {
	writer  *dataWriter
	format  FormatCode
	cols    int
	body    bytes.Buffer
	scratch [8]byte
}

// Close frames the accumulated column values as a DataRow message: tag 'D',
// int32 length = body size + 6 (4 for the length field, 2 for the column
// count), int16 column count, then the column bodies.
func (row *RowBuilder) Close() error {
	client := row.writer.client
	client.Start(types.ServerDataRow)
	client.AddInt16(int16(row.cols))
	client.AddBytes(row.body.Bytes())

	err := client.End()
	if err != nil {
		return err
	}

	row.writer.written++
	return nil
}

// WriteNull appends a NULL column value, encoded as length -1 with no body.
func (row *RowBuilder) WriteNull() {
	row.cols++
	binary.BigEndian.PutUint32(row.scratch[:4], uint32(int32(-1)))
	row.body.Write(row.scratch[:4])
}

// WriteString appends a text column value: int32 length followed by the raw
// (unterminated) string bytes.
func (row *RowBuilder) WriteString(s string) {
	row.cols++
	row.writeLengthPrefixed([]byte(s))
}

// WriteBool appends a boolean column value. In Text format this is the
// single character "t" or "f"; in Binary format a single byte, 1 or 0.
func (row *RowBuilder) WriteBool(v bool) {
	row.cols++

	if row.format == BinaryFormat {
		b := byte(0)
		if v {
			b = 1
		}
		row.writeLengthPrefixed([]byte{b})
		return
	}

	if v {
		row.writeLengthPrefixed([]byte("t"))
	} else {
		row.writeLengthPrefixed([]byte("f"))
	}
}

// WriteInt2 appends an int16 column value. Text format renders the decimal
// representation; Binary format emits 2 big-endian bytes.
func (row *RowBuilder) WriteInt2(v int16) {
	row.cols++

	if row.format == BinaryFormat {
		binary.BigEndian.PutUint16(row.scratch[:2], uint16(v))
		row.writeLengthPrefixed(row.scratch[:2])
		return
	}

	row.writeLengthPrefixed([]byte(strconv.FormatInt(int64(v), 10)))
}

// WriteInt4 appends an int32 column value.
func (row *RowBuilder) WriteInt4(v int32) {
	row.cols++

	if row.format == BinaryFormat {
		binary.BigEndian.PutUint32(row.scratch[:4], uint32(v))
		row.writeLengthPrefixed(row.scratch[:4])
		return
	}

	row.writeLengthPrefixed([]byte(strconv.FormatInt(int64(v), 10)))
}

// WriteInt8 appends an int64 column value.
func (row *RowBuilder) WriteInt8(v int64) {
	row.cols++

	if row.format == BinaryFormat {
		binary.BigEndian.PutUint64(row.scratch[:8], uint64(v))
		row.writeLengthPrefixed(row.scratch[:8])
		return
	}

	row.writeLengthPrefixed([]byte(strconv.FormatInt(v, 10)))
}

// WriteFloat4 appends a float32 column value.
func (row *RowBuilder) WriteFloat4(v float32) {
	row.cols++

	if row.format == BinaryFormat {
		binary.BigEndian.PutUint32(row.scratch[:4], math.Float32bits(v))
		row.writeLengthPrefixed(row.scratch[:4])
		return
	}

	row.writeLengthPrefixed([]byte(strconv.FormatFloat(float64(v), 'f', -1, 32)))
}

// WriteFloat8 appends a float64 column value.
func (row *RowBuilder) WriteFloat8(v float64) {
	row.cols++

	if row.format == BinaryFormat {
		binary.BigEndian.PutUint64(row.scratch[:8], math.Float64bits(v))
		row.writeLengthPrefixed(row.scratch[:8])
		return
	}

	row.writeLengthPrefixed([]byte(strconv.FormatFloat(v, 'f', -1, 64)))
}

// WriteNumeric appends a NUMERIC column value, rendered through
// shopspring/decimal's canonical string representation in both Text and
// Binary format — the full Postgres NUMERIC binary wire layout (base-10000
// digit groups) is not implemented; callers that require wire-exact binary
// NUMERIC should use WriteValue instead.
func (row *RowBuilder) WriteNumeric(d decimal.Decimal) {
	row.cols++
	row.writeLengthPrefixed([]byte(d.String()))
}

// WriteValue is a generic escape hatch for column types that are not one of
// the fixed-width builtins (arrays, json, uuid, timestamps, ...). It encodes
// v for the given OID using the pgx type map, in the row's configured format.
func (row *RowBuilder) WriteValue(o oid.Oid, v any) error {
	row.cols++

	if v == nil {
		binary.BigEndian.PutUint32(row.scratch[:4], uint32(int32(-1)))
		row.body.Write(row.scratch[:4])
		return nil
	}

	m := pgtype.NewMap()
	encoded, err := m.Encode(uint32(o), int16(row.format), v, nil)
	if err != nil {
		return fmt.Errorf("encoding column value for oid %d: %w", o, err)
	}

	if encoded == nil {
		binary.BigEndian.PutUint32(row.scratch[:4], uint32(int32(-1)))
		row.body.Write(row.scratch[:4])
		return nil
	}

	row.writeLengthPrefixed(encoded)
	return nil
}

func (row *RowBuilder) writeLengthPrefixed(b []byte) {
	binary.BigEndian.PutUint32(row.scratch[:4], uint32(len(b)))
	row.body.Write(row.scratch[:4])
	row.body.Write(b)
}
