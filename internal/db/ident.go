package db

import (
	"strings"
	"unicode"
)

// MaxIdentifierLen is the backend's identifier length limit in bytes.
const MaxIdentifierLen = 63

// IsValidIdentifier reports whether name is safe to interpolate into DDL
// after quoting: non-empty, at most 63 bytes, first character a letter or
// underscore, remaining characters letters, digits, underscores or hyphens.
func IsValidIdentifier(name string) bool {
	if name == "" || len(name) > MaxIdentifierLen {
		return false
	}
	for i, r := range name {
		if i == 0 {
			if !unicode.IsLetter(r) && r != '_' {
				return false
			}
			continue
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '-' {
			return false
		}
	}
	return true
}

// QuoteIdentifier wraps name in double quotes, doubling any embedded
// double quote characters. Callers must validate with IsValidIdentifier
// first; quoting alone is not a sanitizer.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteQualified quotes a schema-qualified table reference.
func QuoteQualified(schema, table string) string {
	return QuoteIdentifier(schema) + "." + QuoteIdentifier(table)
}
