package wire

import "github.com/lib/pq/oid"

// typeSize looks up the fixed on-wire width, in bytes, of the given OID. It
// returns -1 for variable-width types (text, varchar, bytea, numeric, arrays,
// json, and any OID the table does not recognize), matching the Postgres
// convention for RowDescription's type-size field.
func typeSize(o oid.Oid) int16 {
	size, ok := oidSizes[o]
	if !ok {
		return -1
	}

	return size
}

// oidSizes is the authoritative OID→size mapping used when encoding
// RowDescription. Extending support for a fixed-width type means adding an
// entry here.
var oidSizes = map[oid.Oid]int16{
	oid.T_bool:      1,
	oid.T_char:      1,
	oid.T_int2:      2,
	oid.T_int4:      4,
	oid.T_int8:      8,
	oid.T_float4:    4,
	oid.T_float8:    8,
	oid.T_oid:       4,
	oid.T_xid:       4,
	oid.T_cid:       4,
	oid.T_date:      4,
	oid.T_time:      8,
	oid.T_timestamp: 8,
	oid.T_timestamptz: 8,
	oid.T_money:     8,
	oid.T_uuid:      16,

	// variable-width types are listed explicitly with -1; OIDs missing from
	// the table also resolve to -1 through the fallback in typeSize.
	oid.T_text:    -1,
	oid.T_varchar: -1,
	oid.T_bpchar:  -1,
	oid.T_bytea:   -1,
	oid.T_numeric: -1,
	oid.T_json:    -1,
	oid.T_jsonb:   -1,
}
