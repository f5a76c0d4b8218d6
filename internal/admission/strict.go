package admission

import (
	"strings"
	"unicode"
)

// readOnlyLeaders are the statement keywords accepted in strict mode.
var readOnlyLeaders = map[string]bool{
	"SELECT": true,
	"WITH":   true,
	"VALUES": true,
	"TABLE":  true,
	"SHOW":   true,
}

// blockedTokens are rejected in strict mode when they appear as words in
// code, outside literals and comments.
var blockedTokens = map[string]string{
	"INTO":                          "SELECT INTO creates a table",
	"SET_CONFIG":                    "set_config is not allowed",
	"DEFAULT_TRANSACTION_READ_ONLY": "cannot modify read-only mode",
}

func checkStrict(query string) *Rejection {
	statements := splitStatements(query)
	switch len(statements) {
	case 0:
		return &Rejection{Reason: "no statement"}
	case 1:
	default:
		return &Rejection{Reason: "multiple statements are not allowed"}
	}

	words := codeWords(statements[0])
	if len(words) == 0 {
		return &Rejection{Reason: "no statement"}
	}
	if !readOnlyLeaders[words[0]] {
		return &Rejection{Keyword: words[0], Reason: "statement is not a read-only query"}
	}
	for _, w := range words[1:] {
		if reason, blocked := blockedTokens[w]; blocked {
			return &Rejection{Keyword: w, Reason: reason}
		}
	}
	return nil
}

// codeWords returns the upper-cased identifier-like words of code that has
// already had literals and comments removed.
func codeWords(code string) []string {
	fields := strings.FieldsFunc(code, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_')
	})
	words := make([]string, 0, len(fields))
	for _, f := range fields {
		words = append(words, strings.ToUpper(f))
	}
	return words
}

// splitStatements removes comments, blanks out string literals, quoted
// identifiers and dollar-quoted bodies, then splits the remaining code on
// semicolons. Empty statements are dropped.
func splitStatements(sql string) []string {
	code := stripLiterals(sql)

	var statements []string
	for _, part := range strings.Split(code, ";") {
		if s := strings.TrimSpace(part); s != "" {
			statements = append(statements, s)
		}
	}
	return statements
}

// stripLiterals handles:
// - single-line comments (--)
// - nested block comments (/* */)
// - single-quoted strings, with '' and E'' backslash escapes
// - double-quoted identifiers
// - dollar-quoted strings ($$...$$, $tag$...$tag$)
func stripLiterals(sql string) string {
	var b strings.Builder
	n := len(sql)
	i := 0

	for i < n {
		ch := sql[i]

		switch {
		case ch == '-' && i+1 < n && sql[i+1] == '-':
			for i < n && sql[i] != '\n' {
				i++
			}
			b.WriteByte(' ')

		case ch == '/' && i+1 < n && sql[i+1] == '*':
			depth := 1
			i += 2
			for i < n && depth > 0 {
				switch {
				case sql[i] == '/' && i+1 < n && sql[i+1] == '*':
					depth++
					i += 2
				case sql[i] == '*' && i+1 < n && sql[i+1] == '/':
					depth--
					i += 2
				default:
					i++
				}
			}
			b.WriteByte(' ')

		case ch == '\'':
			escapes := i > 0 && (sql[i-1] == 'E' || sql[i-1] == 'e') && (i < 2 || !isIdentByte(sql[i-2]))
			i = skipQuoted(sql, i+1, '\'', escapes)
			b.WriteByte(' ')

		case ch == '"':
			i = skipQuoted(sql, i+1, '"', false)
			b.WriteByte(' ')

		case ch == '$':
			if tag, ok := dollarTag(sql, i); ok {
				end := strings.Index(sql[i+len(tag):], tag)
				if end < 0 {
					i = n
				} else {
					i += len(tag) + end + len(tag)
				}
				b.WriteByte(' ')
				continue
			}
			b.WriteByte(ch)
			i++

		default:
			b.WriteByte(ch)
			i++
		}
	}
	return b.String()
}

// skipQuoted returns the index just past the closing quote. A doubled quote
// is an escaped quote.
func skipQuoted(sql string, i int, quote byte, backslash bool) int {
	n := len(sql)
	for i < n {
		switch {
		case backslash && sql[i] == '\\':
			i += 2
		case sql[i] == quote:
			if i+1 < n && sql[i+1] == quote {
				i += 2
				continue
			}
			return i + 1
		default:
			i++
		}
	}
	return n
}

// dollarTag returns the opening tag ($$ or $name$) starting at i.
// Positional parameters such as $1 are not tags.
func dollarTag(sql string, i int) (string, bool) {
	if i > 0 && isIdentByte(sql[i-1]) {
		return "", false
	}
	j := i + 1
	if j < len(sql) && sql[j] >= '0' && sql[j] <= '9' {
		return "", false
	}
	for j < len(sql) && isIdentByte(sql[j]) {
		j++
	}
	if j < len(sql) && sql[j] == '$' {
		return sql[i : j+1], true
	}
	return "", false
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
