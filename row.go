package wire

import (
	"github.com/arvidnl/pgwire/buffer"
	"github.com/arvidnl/pgwire/types"
	"github.com/lib/pq/oid"
)

// Columns represent a collection of field descriptors for a single result set.
type Columns []Column

// Column represents a table column and its attributes such as name and type.
// https://www.postgresql.org/docs/8.3/catalog-pg-attribute.html
type Column struct {
	Table  int32 // table id, always 0 for results not backed by a real relation
	Name   string
	AttrNo int16 // column attribute no, always 0 unless the caller has a reason to set it
	Oid    oid.Oid
}

// Define writes the RowDescription header for the given columns and the
// given overall format code. RowDescription must be written before any
// DataRow belonging to the same query.
func (columns Columns) Define(writer *buffer.Writer, format FormatCode) error {
	writer.Start(types.ServerRowDescription)
	writer.AddInt16(int16(len(columns)))

	for _, column := range columns {
		column.define(writer, format)
	}

	return writer.End()
}

// define writes a single column header. See the RowDescription message
// format: cstring name, int32 table OID, int16 column index, int32 type OID,
// int16 type size, int32 type modifier, int16 format code.
func (column Column) define(writer *buffer.Writer, format FormatCode) {
	writer.AddString(column.Name)
	writer.AddNullTerminate()
	writer.AddInt32(column.Table)
	writer.AddInt16(column.AttrNo)
	writer.AddInt32(int32(column.Oid))
	writer.AddInt16(typeSize(column.Oid))
	writer.AddInt32(-1) // type modifier, unused
	writer.AddInt16(int16(format))
}
