// Package ident renders SQLite identifiers and value literals. This is the
// one place in the engine allowed to turn a Go value into SQL text without
// going through an arguments sink — used only where binding is impossible
// (schema DDL) or explicitly disallowed by the caller's sink mode.
package ident

import (
	"fmt"
	"strconv"
	"strings"
)

// Quote renders name as a double-quoted SQLite identifier, doubling any
// embedded double quote per SQLite's quoting rules.
func Quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteQualified renders qualifier.name, omitting the qualifier when it is
// empty (the convention gencontext.Context.Qualifier uses to signal "no
// qualifier needed").
func QuoteQualified(qualifier, name string) string {
	if qualifier == "" {
		return Quote(name)
	}
	return Quote(qualifier) + "." + Quote(name)
}

// Literal renders a bound Go value as a SQL literal token. Supported types
// are nil, bool, int, int32, int64, float32, float64, string, and []byte
// (rendered as a SQLite blob literal x'...'); any other type is an error. It is the caller's responsibility to only reach for this
// when the sink is in raw mode (see package args) — Literal never appends
// to a sink itself.
func Literal(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "NULL", nil
	case bool:
		if val {
			return "1", nil
		}
		return "0", nil
	case int:
		return strconv.Itoa(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case int32:
		return strconv.FormatInt(int64(val), 10), nil
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(val), 'g', -1, 32), nil
	case string:
		return QuoteStringLiteral(val), nil
	case []byte:
		return "x'" + fmt.Sprintf("%x", val) + "'", nil
	default:
		return "", fmt.Errorf("ident: cannot render %T as a SQL literal", v)
	}
}

// QuoteStringLiteral renders s as a single-quoted SQL text literal, doubling
// embedded single quotes.
func QuoteStringLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
