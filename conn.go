package wire

import "context"

type ctxKey int

const (
	ctxClientParameters ctxKey = iota
	ctxServerParameters
)

// Parameters represents a collection of parameter status keys and their
// values, used both for client startup parameters and server ParameterStatus
// gossip.
type Parameters map[ParameterStatus]string

// ParameterStatus represents a metadata key that could be defined inside a
// server/client parameters collection.
type ParameterStatus string

// Client startup parameters the server retains. Any other key received
// during startup is accepted but not retained.
// https://www.postgresql.org/docs/current/protocol-message-formats.html
const (
	ParamUsername ParameterStatus = "user"
	ParamDatabase ParameterStatus = "database"
	ParamOptions  ParameterStatus = "options"
)

// Server parameters the server emits via ParameterStatus on startup.
// https://www.postgresql.org/docs/10/libpq-status.html
const (
	ParamServerVersion  ParameterStatus = "server_version"
	ParamServerEncoding ParameterStatus = "server_encoding"
	ParamClientEncoding ParameterStatus = "client_encoding"
	ParamDateStyle      ParameterStatus = "DateStyle"
	ParamTimeZone       ParameterStatus = "TimeZone"
)

// setClientParameters constructs a new context containing the given
// parameters. Any previously defined value will be overridden.
func setClientParameters(ctx context.Context, params Parameters) context.Context {
	if params == nil {
		return ctx
	}

	return context.WithValue(ctx, ctxClientParameters, params)
}

// ClientParameters returns the startup parameters sent by the client, if
// they have been set inside the given context.
func ClientParameters(ctx context.Context) Parameters {
	val := ctx.Value(ctxClientParameters)
	if val == nil {
		return nil
	}

	return val.(Parameters)
}

// setServerParameters constructs a new context containing the given
// parameters. Any previously defined value will be overridden.
func setServerParameters(ctx context.Context, params Parameters) context.Context {
	if params == nil {
		return ctx
	}

	return context.WithValue(ctx, ctxServerParameters, params)
}

// ServerParameters returns the ParameterStatus values sent to the client, if
// they have been set inside the given context.
func ServerParameters(ctx context.Context) Parameters {
	val := ctx.Value(ctxServerParameters)
	if val == nil {
		return nil
	}

	return val.(Parameters)
}
