package analytics

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrReadOnly is returned for any statement that is not a single read query.
var ErrReadOnly = errors.New("analytics: only single SELECT/WITH queries are allowed")

// dangerousKeywordPattern matches write and session keywords at word
// boundaries, so "RESET" does not match "SET".
var dangerousKeywordPattern = regexp.MustCompile(
	`(?i)\b(INSERT|UPDATE|DELETE|DROP|CREATE|ALTER|TRUNCATE|COPY|ATTACH|DETACH|LOAD|EXPORT|IMPORT|INSTALL|CALL|EXECUTE|PRAGMA|SET|USE)\b`,
)

// fileFunctionPattern matches table functions that reach the filesystem.
// Queries see only the logs and alerts tables.
var fileFunctionPattern = regexp.MustCompile(
	`(?i)\b(read_[a-z_]+|[a-z_]+_scan|glob|sniff_csv|getenv)\s*\(`,
)

// quotedSourcePattern matches a string literal, or a quoted identifier that
// looks like a path, used as a FROM/JOIN source. DuckDB would read it as a file.
var quotedSourcePattern = regexp.MustCompile(`(?i)\b(FROM|JOIN)\s+('|"[^"]*[./\\][^"]*")`)

// blockCommentPattern matches C-style block comments (/* ... */).
var blockCommentPattern = regexp.MustCompile(`/\*[\s\S]*?\*/`)

// stripSQLComments removes -- line comments and /* */ block comments.
func stripSQLComments(query string) string {
	cleaned := blockCommentPattern.ReplaceAllString(query, " ")
	var result strings.Builder
	for _, line := range strings.Split(cleaned, "\n") {
		if idx := strings.Index(line, "--"); idx >= 0 {
			line = line[:idx]
		}
		result.WriteString(line)
		result.WriteByte('\n')
	}
	return result.String()
}

// ValidateQuery rejects anything other than one read-only SELECT or WITH
// statement over the exposed tables. It is a first filter; the sandboxed
// database is what keeps queries off the filesystem.
func ValidateQuery(query string) error {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return fmt.Errorf("%w: empty query", ErrReadOnly)
	}
	if strings.Contains(trimmed, ";") {
		return fmt.Errorf("%w: semicolons are not allowed", ErrReadOnly)
	}

	stripped := strings.TrimSpace(stripSQLComments(trimmed))
	upper := strings.ToUpper(stripped)
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return ErrReadOnly
	}
	if match := dangerousKeywordPattern.FindString(stripped); match != "" {
		return fmt.Errorf("%w: disallowed keyword %s", ErrReadOnly, strings.ToUpper(match))
	}
	if match := fileFunctionPattern.FindString(stripped); match != "" {
		return fmt.Errorf("%w: disallowed function %s", ErrReadOnly, strings.TrimSpace(strings.TrimSuffix(match, "(")))
	}
	if quotedSourcePattern.MatchString(stripped) {
		return fmt.Errorf("%w: quoted table sources are not allowed", ErrReadOnly)
	}
	return nil
}
