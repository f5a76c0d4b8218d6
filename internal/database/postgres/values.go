package postgres

import (
	"database/sql/driver"
	"net"
	"net/netip"

	"github.com/google/uuid"
)

// normalizeValue converts values decoded by pgx into shapes that encode to
// JSON the way clients expect: UUIDs and network types as strings, and
// pgtype wrappers (numeric, interval, time, geometric) as their text form.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case [16]byte:
		return uuid.UUID(val).String()
	case netip.Prefix:
		return val.String()
	case netip.Addr:
		return val.String()
	case net.HardwareAddr:
		return val.String()
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = normalizeValue(elem)
		}
		return out
	case map[string]any:
		for k, elem := range val {
			val[k] = normalizeValue(elem)
		}
		return val
	case driver.Valuer:
		dv, err := val.Value()
		if err != nil {
			return v
		}
		return dv
	}
	return v
}
