package wire

import (
	"strconv"

	"github.com/arvidnl/pgwire/buffer"
	pgerror "github.com/arvidnl/pgwire/errors"
	"github.com/arvidnl/pgwire/types"
)

// ErrorCode writes an ErrorResponse message for the given error. Unlike the
// Postgres wire examples that fold ReadyForQuery into this call, here it is
// strictly the encoding step: the session state machine decides whether a
// ReadyForQuery follows or the connection is closed, based on the error's
// severity.
// https://www.postgresql.org/docs/current/static/protocol-error-fields.html
func ErrorCode(writer *buffer.Writer, err error) error {
	desc := pgerror.Flatten(err)

	writer.Start(types.ServerErrorResponse)

	writer.AddByte(byte(buffer.ServerErrFieldSeverity))
	writer.AddString(string(desc.Severity))
	writer.AddNullTerminate()
	writer.AddByte(byte(buffer.ServerErrFieldSQLState))
	writer.AddString(string(desc.Code))
	writer.AddNullTerminate()
	writer.AddByte(byte(buffer.ServerErrFieldMsgPrimary))
	writer.AddString(desc.Message)
	writer.AddNullTerminate()

	if desc.Hint != "" {
		writer.AddByte(byte(buffer.ServerErrFieldHint))
		writer.AddString(desc.Hint)
		writer.AddNullTerminate()
	}

	if desc.Detail != "" {
		writer.AddByte(byte(buffer.ServerErrFieldDetail))
		writer.AddString(desc.Detail)
		writer.AddNullTerminate()
	}

	if desc.ConstraintName != "" {
		writer.AddByte(byte(buffer.ServerErrFieldConstraintName))
		writer.AddString(desc.ConstraintName)
		writer.AddNullTerminate()
	}

	if desc.Source != nil {
		writer.AddByte(byte(buffer.ServerErrFieldSrcFile))
		writer.AddString(desc.Source.File)
		writer.AddNullTerminate()

		writer.AddByte(byte(buffer.ServerErrFieldSrcLine))
		writer.AddString(strconv.FormatInt(int64(desc.Source.Line), 10))
		writer.AddNullTerminate()

		writer.AddByte(byte(buffer.ServerErrFieldSrcFunction))
		writer.AddString(desc.Source.Function)
		writer.AddNullTerminate()
	}

	writer.AddNullTerminate()
	return writer.End()
}

// IsFatal reports whether the given error carries Fatal severity, in which
// case the session must close the connection instead of returning to
// ReadyForQuery.
func IsFatal(err error) bool {
	return pgerror.Flatten(err).Severity == pgerror.LevelFatal
}

