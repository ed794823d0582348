package types

// ServerStatus indicates the transaction status carried on ReadyForQuery.
// This server has no transaction support, so it only ever reports
// ServerIdle; the other values are retained for protocol completeness.
type ServerStatus byte

const (
	ServerIdle              ServerStatus = 'I'
	ServerTransactionBlock  ServerStatus = 'T'
	ServerTransactionFailed ServerStatus = 'E'
)
