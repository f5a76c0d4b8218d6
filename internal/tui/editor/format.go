package editor

import (
	"sort"
	"strings"
	"unicode"
)

var sqlKeywords = map[string]bool{
	"select": true, "from": true, "where": true, "and": true, "or": true,
	"join": true, "inner": true, "outer": true, "left": true, "right": true,
	"full": true, "cross": true, "lateral": true, "on": true, "using": true,
	"not": true, "in": true, "is": true, "null": true, "like": true,
	"ilike": true, "similar": true, "order": true, "by": true, "group": true,
	"having": true, "limit": true, "offset": true, "fetch": true,
	"first": true, "next": true, "rows": true, "only": true, "as": true,
	"distinct": true, "count": true, "sum": true, "avg": true, "min": true,
	"max": true, "between": true, "exists": true, "any": true, "case": true,
	"when": true, "then": true, "else": true, "end": true, "values": true,
	"union": true, "intersect": true, "except": true, "all": true,
	"asc": true, "desc": true, "nulls": true, "last": true, "with": true,
	"recursive": true, "over": true, "partition": true, "window": true,
	"filter": true, "cast": true, "coalesce": true, "true": true,
	"false": true, "explain": true, "analyze": true, "show": true,
	"table": true,
}

// Format uppercases SQL keywords outside of literals, quoted identifiers and
// comments.
func Format(sql string) string {
	var out, word strings.Builder
	flush := func() {
		if word.Len() == 0 {
			return
		}
		w := word.String()
		if sqlKeywords[strings.ToLower(w)] {
			w = strings.ToUpper(w)
		}
		out.WriteString(w)
		word.Reset()
	}

	runes := []rune(sql)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		switch {
		case ch == '\'' || ch == '"':
			flush()
			end := i + 1
			for end < len(runes) && runes[end] != ch {
				end++
			}
			if end >= len(runes) {
				end = len(runes) - 1
			}
			out.WriteString(string(runes[i : end+1]))
			i = end
		case ch == '-' && i+1 < len(runes) && runes[i+1] == '-':
			flush()
			end := i
			for end < len(runes) && runes[end] != '\n' {
				end++
			}
			out.WriteString(string(runes[i:end]))
			i = end - 1
		case unicode.IsLetter(ch) || ch == '_' || (word.Len() > 0 && unicode.IsDigit(ch)):
			word.WriteRune(ch)
		default:
			flush()
			out.WriteRune(ch)
		}
	}
	flush()
	return out.String()
}

// Candidates returns completions for the word at the end of text: table
// names after FROM, JOIN or TABLE, column names elsewhere. Matching is a
// case-insensitive prefix match and the result is sorted.
func Candidates(text string, tables, columns []string) []string {
	partial := lastWord(text)
	if partial == "" {
		return nil
	}

	pool := columns
	switch previousWord(strings.TrimSuffix(text, partial)) {
	case "FROM", "JOIN", "TABLE":
		pool = tables
	case ",":
		if tableContext(text) {
			pool = tables
		}
	}

	lower := strings.ToLower(partial)
	var out []string
	for _, name := range pool {
		if strings.HasPrefix(strings.ToLower(name), lower) && name != partial {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// tableContext reports whether the last clause keyword in text is FROM.
func tableContext(text string) bool {
	fields := strings.Fields(strings.ToUpper(text))
	for i := len(fields) - 1; i >= 0; i-- {
		switch fields[i] {
		case "FROM", "JOIN":
			return true
		case "SELECT", "WHERE", "ON", "GROUP", "ORDER", "HAVING", "BY":
			return false
		}
	}
	return false
}

// previousWord returns the uppercased token before the trailing partial,
// treating a trailing comma as its own token.
func previousWord(s string) string {
	s = strings.TrimRight(s, " \t\r\n")
	if strings.HasSuffix(s, ",") {
		return ","
	}
	return strings.ToUpper(lastWord(s))
}

// lastWord returns the identifier-like token that ends s.
func lastWord(s string) string {
	i := len(s)
	for i > 0 && isIdentByte(s[i-1]) {
		i--
	}
	return s[i:]
}

func isIdentByte(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') || c == '_'
}
