// Package admission decides whether raw query text may be forwarded to the
// database.
//
// The gate is advisory. It matches keywords in raw text and is not a
// security boundary: it rejects harmless queries that merely mention a
// keyword (a column named updated_at) and admits mutating statements built
// from constructs it does not list. Pair it with read-only execution.
package admission

import (
	"fmt"
	"strings"
)

// deniedKeywords are rejected wherever they appear in the text, including
// inside literals, comments and identifiers.
var deniedKeywords = []string{
	"DROP",
	"DELETE",
	"TRUNCATE",
	"ALTER",
	"CREATE",
	"INSERT",
	"UPDATE",
	"GRANT",
	"REVOKE",
}

// Mode selects how strictly the gate inspects a query.
type Mode string

const (
	// ModeDenylist rejects text containing any denied keyword substring.
	ModeDenylist Mode = "denylist"
	// ModeStrict applies the denylist, then requires a single statement
	// that starts with a read-only keyword.
	ModeStrict Mode = "strict"
)

// ParseMode validates a configured mode name. Empty selects ModeDenylist.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeDenylist:
		return ModeDenylist, nil
	case ModeStrict:
		return ModeStrict, nil
	default:
		return "", fmt.Errorf("unknown admission mode %q", s)
	}
}

// Rejection explains why a query was not admitted.
type Rejection struct {
	Keyword string
	Reason  string
}

func (r *Rejection) Error() string {
	if r.Keyword == "" {
		return "query rejected: " + r.Reason
	}
	return fmt.Sprintf("query rejected: %s (%s)", r.Keyword, r.Reason)
}

// IsAdmissible reports whether query contains none of the denied keywords,
// compared case-insensitively as plain substrings.
func IsAdmissible(query string) bool {
	return checkDenylist(query) == nil
}

func checkDenylist(query string) *Rejection {
	upper := strings.ToUpper(query)
	for _, keyword := range deniedKeywords {
		if strings.Contains(upper, keyword) {
			return &Rejection{Keyword: keyword, Reason: "denied keyword"}
		}
	}
	return nil
}

// Gate applies the configured admission mode. The zero value uses
// ModeDenylist. A Gate holds no mutable state and is safe for concurrent use.
type Gate struct {
	mode Mode
}

// New creates a gate for mode.
func New(mode Mode) *Gate {
	return &Gate{mode: mode}
}

// Mode returns the gate's mode.
func (g *Gate) Mode() Mode {
	if g == nil || g.mode == "" {
		return ModeDenylist
	}
	return g.mode
}

// Check returns nil if query is admitted, or a *Rejection.
func (g *Gate) Check(query string) error {
	if r := checkDenylist(query); r != nil {
		return r
	}
	if g.Mode() == ModeStrict {
		if r := checkStrict(query); r != nil {
			return r
		}
	}
	return nil
}
