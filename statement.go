package wire

import "context"

// ParseFn is the user-supplied parse handler: it receives the raw text of a
// simple Query message and returns a PreparedStatement describing the
// result set it will produce. The handler does not execute the statement;
// Exec is invoked separately once RowDescription has been sent.
type ParseFn func(ctx context.Context, query string) (PreparedStatement, error)

// PreparedStatement is the external contract between the session and the
// query executor: field descriptors plus a function that streams rows
// through the given DataWriter. Exec may return an error produced by the
// errors package to signal a SQL-level failure; any other error is treated
// as non-fatal as well, surfaced to the client as an ErrorResponse.
type PreparedStatement struct {
	Columns Columns
	Exec    func(ctx context.Context, writer DataWriter) error
}
