// Package analytics runs ad-hoc read-only SQL over one tenant's logs and
// alerts using an embedded DuckDB. Every query gets a private in-memory
// database with filesystem access disabled, loaded from the tenant's
// records; the NDJSON files stay the source of truth.
package analytics

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/duckdb/duckdb-go/v2"
	"github.com/rs/zerolog/log"

	"github.com/tinytelemetry/logwatch/internal/logstore"
	"github.com/tinytelemetry/logwatch/internal/model"
)

const (
	DefaultTimeout       = 10 * time.Second
	DefaultMaxRows       = 1000
	DefaultMaxConcurrent = 4
)

// sandboxDSN opens an in-memory database that cannot touch the filesystem,
// so quoted paths and file table functions fail inside DuckDB itself.
const sandboxDSN = "?enable_external_access=false"

// LogSource reads a tenant's persisted records.
type LogSource interface {
	Scan(tenant string, filter model.ScanFilter) ([]model.LogRecord, error)
}

// AlertSource reads a tenant's persisted alerts, newest first.
type AlertSource interface {
	RecentAlerts(tenant string, n int) ([]model.Alert, error)
}

// Config holds engine limits.
type Config struct {
	Timeout       time.Duration
	MaxRows       int
	MaxConcurrent int
}

// Result is a bounded query result.
type Result struct {
	Columns   []string         `json:"columns"`
	Rows      []map[string]any `json:"rows"`
	Count     int              `json:"count"`
	Truncated bool             `json:"truncated"`
}

// Engine answers SQL queries against the logs and alerts of one tenant at a
// time.
type Engine struct {
	logs    LogSource
	alerts  AlertSource
	timeout time.Duration
	maxRows int
	slots   chan struct{}
}

const logsTable = `CREATE TABLE logs (timestamp BIGINT, service VARCHAR, level VARCHAR, message VARCHAR, ` +
	`latencyMs DOUBLE, requestId VARCHAR, metadata VARCHAR)`

const alertsTable = `CREATE TABLE alerts (id VARCHAR, type VARCHAR, severity VARCHAR, service VARCHAR, ` +
	`message VARCHAR, timestamp BIGINT, confidence BIGINT, metadata VARCHAR)`

// NewEngine creates an engine and checks that the sandboxed database opens.
func NewEngine(logs LogSource, alerts AlertSource, conf ...Config) (*Engine, error) {
	e := &Engine{logs: logs, alerts: alerts, timeout: DefaultTimeout, maxRows: DefaultMaxRows}
	maxConcurrent := DefaultMaxConcurrent
	if len(conf) > 0 {
		if conf[0].Timeout > 0 {
			e.timeout = conf[0].Timeout
		}
		if conf[0].MaxRows > 0 {
			e.maxRows = conf[0].MaxRows
		}
		if conf[0].MaxConcurrent > 0 {
			maxConcurrent = conf[0].MaxConcurrent
		}
	}
	e.slots = make(chan struct{}, maxConcurrent)

	db, err := sql.Open("duckdb", sandboxDSN)
	if err != nil {
		return nil, fmt.Errorf("analytics: open duckdb: %w", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("analytics: ping duckdb: %w", err)
	}
	return e, nil
}

// Query runs a read-only statement against tenant's logs and alerts tables.
func (e *Engine) Query(ctx context.Context, tenant, query string) (*Result, error) {
	if err := ValidateQuery(query); err != nil {
		return nil, err
	}
	if err := logstore.ValidateTenant(tenant); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	select {
	case e.slots <- struct{}{}:
		defer func() { <-e.slots }()
	case <-ctx.Done():
		return nil, fmt.Errorf("analytics: waiting for a query slot: %w", ctx.Err())
	}

	records, err := e.logs.Scan(tenant, model.ScanFilter{})
	if err != nil {
		return nil, fmt.Errorf("analytics: read logs: %w", err)
	}
	alerts, err := e.alerts.RecentAlerts(tenant, math.MaxInt)
	if err != nil {
		return nil, fmt.Errorf("analytics: read alerts: %w", err)
	}

	db, err := sql.Open("duckdb", sandboxDSN)
	if err != nil {
		return nil, fmt.Errorf("analytics: open duckdb: %w", err)
	}
	defer db.Close()

	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("analytics: conn: %w", err)
	}
	defer conn.Close()

	if err := load(ctx, conn, logsTable, "logs", logRows(records)); err != nil {
		return nil, err
	}
	if err := load(ctx, conn, alertsTable, "alerts", alertRows(alerts)); err != nil {
		return nil, err
	}

	rows, err := conn.QueryContext(ctx, strings.TrimSpace(query))
	if err != nil {
		return nil, fmt.Errorf("analytics: query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	res := &Result{Columns: columns, Rows: []map[string]any{}}
	for rows.Next() {
		if len(res.Rows) == e.maxRows {
			res.Truncated = true
			break
		}
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			log.Warn().Err(err).Str("tenant", tenant).Msg("analytics: scan error")
			continue
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		res.Rows = append(res.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("analytics: rows: %w", err)
	}
	res.Count = len(res.Rows)
	return res, nil
}

// load creates table with ddl and fills it through the DuckDB appender.
func load(ctx context.Context, conn *sql.Conn, ddl, table string, rows [][]driver.Value) error {
	if _, err := conn.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("analytics: create %s: %w", table, err)
	}
	if len(rows) == 0 {
		return nil
	}
	err := conn.Raw(func(driverConn any) error {
		dc, ok := driverConn.(driver.Conn)
		if !ok {
			return fmt.Errorf("unexpected driver connection %T", driverConn)
		}
		appender, err := duckdb.NewAppenderFromConn(dc, "", table)
		if err != nil {
			return err
		}
		for _, row := range rows {
			if err := appender.AppendRow(row...); err != nil {
				_ = appender.Close()
				return err
			}
		}
		return appender.Close()
	})
	if err != nil {
		return fmt.Errorf("analytics: load %s: %w", table, err)
	}
	return nil
}

func logRows(records []model.LogRecord) [][]driver.Value {
	out := make([][]driver.Value, 0, len(records))
	// Scan is newest first; load in file order.
	for i := len(records) - 1; i >= 0; i-- {
		r := records[i]
		out = append(out, []driver.Value{
			r.Timestamp, r.Service, string(r.Level), r.Message, r.LatencyMs, r.RequestID, jsonText(r.Metadata),
		})
	}
	return out
}

func alertRows(alerts []model.Alert) [][]driver.Value {
	out := make([][]driver.Value, 0, len(alerts))
	for i := len(alerts) - 1; i >= 0; i-- {
		a := alerts[i]
		out = append(out, []driver.Value{
			a.ID, string(a.Type), string(a.Severity), a.Service, a.Message,
			a.Timestamp, int64(a.Confidence), jsonText(a.Metadata),
		})
	}
	return out
}

// jsonText encodes v for a VARCHAR column; empty metadata is NULL.
func jsonText(v any) driver.Value {
	if m, ok := v.(map[string]any); ok && len(m) == 0 {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return string(b)
}
