// Package linein accepts newline-delimited JSON records from raw byte
// streams (TCP connections, piped stdin) and submits them to the ingestion
// service.
package linein

// Line is one non-empty input line and the source it came from.
type Line struct {
	Source string
	Text   string
}

// Source is a unified interface for line-oriented inputs.
type Source interface {
	Lines() <-chan Line // closed once the source is exhausted or stopped
	Stop()
	Name() string // "tcp", "stdin"
}
