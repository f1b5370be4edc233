// Package logstore persists accepted log records as one append-only NDJSON
// file per tenant and serves newest-first filtered scans over it.
package logstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/tinytelemetry/logwatch/internal/model"
	"github.com/tinytelemetry/logwatch/internal/ndjson"
)

// LogsFile is the per-tenant file name holding LogRecords.
const LogsFile = "logs.ndjson"

// ErrInvalidTenant is returned for tenant IDs that cannot name a directory.
var ErrInvalidTenant = errors.New("invalid tenant id")

var tenantPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// ValidateTenant rejects IDs that would escape the data directory.
func ValidateTenant(tenant string) error {
	if !tenantPattern.MatchString(tenant) || tenant == "." || tenant == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidTenant, tenant)
	}
	return nil
}

// Store is the append-only LogRecord store.
type Store struct {
	dir *ndjson.Dir
}

// New returns a store rooted at dir.
func New(dir *ndjson.Dir) *Store {
	return &Store{dir: dir}
}

// Open creates the data directory and returns a store over it.
func Open(root string) (*Store, error) {
	dir, err := ndjson.Open(root)
	if err != nil {
		return nil, err
	}
	return New(dir), nil
}

// Dir exposes the underlying directory so sibling files (alerts) share it.
func (s *Store) Dir() *ndjson.Dir {
	return s.dir
}

// TenantFile returns the relative path of a tenant's log file.
func TenantFile(tenant string) string {
	return path.Join(tenant, LogsFile)
}

// FilePath returns the on-disk location of a tenant's log file.
func (s *Store) FilePath(tenant string) (string, error) {
	if err := ValidateTenant(tenant); err != nil {
		return "", err
	}
	return s.dir.Path(TenantFile(tenant)), nil
}

// AppendBatch appends records to the tenant's file as a single write.
func (s *Store) AppendBatch(tenant string, records []model.LogRecord) error {
	if err := ValidateTenant(tenant); err != nil {
		return err
	}
	if err := ndjson.Append(s.dir, TenantFile(tenant), records); err != nil {
		return fmt.Errorf("logstore: append %s: %w", tenant, err)
	}
	return nil
}

// Scan reads the tenant's whole file and returns matching records newest
// first, stopping once filter.Limit matches are collected. A missing file
// yields an empty result. Malformed lines are skipped.
func (s *Store) Scan(tenant string, filter model.ScanFilter) ([]model.LogRecord, error) {
	if err := ValidateTenant(tenant); err != nil {
		return nil, err
	}
	lines, err := s.dir.ReadLines(TenantFile(tenant))
	if err != nil {
		return nil, fmt.Errorf("logstore: scan %s: %w", tenant, err)
	}

	search := strings.ToLower(filter.Search)
	results := make([]model.LogRecord, 0)
	skipped := 0

	for i := len(lines) - 1; i >= 0; i-- {
		var rec model.LogRecord
		if err := json.Unmarshal(lines[i], &rec); err != nil {
			skipped++
			continue
		}
		if !matches(&rec, filter, search) {
			continue
		}
		results = append(results, rec)
		if filter.Limit > 0 && len(results) >= filter.Limit {
			break
		}
	}

	if skipped > 0 {
		log.Warn().Str("tenant", tenant).Int("lines", skipped).Msg("logstore: skipped malformed lines")
	}
	return results, nil
}

// matches applies the filters cheapest first.
func matches(rec *model.LogRecord, f model.ScanFilter, search string) bool {
	if f.Level != "" && rec.Level != f.Level {
		return false
	}
	if f.Service != "" && rec.Service != f.Service {
		return false
	}
	if f.StartTime > 0 && rec.Timestamp < f.StartTime {
		return false
	}
	if f.EndTime > 0 && rec.Timestamp > f.EndTime {
		return false
	}
	if search == "" {
		return true
	}
	if containsFold(rec.Message, search) || containsFold(rec.Service, search) || containsFold(rec.RequestID, search) {
		return true
	}
	if len(rec.Metadata) > 0 {
		if meta, err := json.Marshal(rec.Metadata); err == nil && containsFold(string(meta), search) {
			return true
		}
	}
	return false
}

func containsFold(s, lowerNeedle string) bool {
	return strings.Contains(strings.ToLower(s), lowerNeedle)
}

// Remove deletes a tenant's directory, logs and alerts included.
func (s *Store) Remove(tenant string) error {
	if err := ValidateTenant(tenant); err != nil {
		return err
	}
	return s.dir.RemoveAll(tenant)
}
