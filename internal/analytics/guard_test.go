package analytics

import (
	"errors"
	"testing"
)

func TestValidateQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		ok    bool
	}{
		{"select", "SELECT * FROM logs", true},
		{"with", "WITH e AS (SELECT * FROM logs WHERE level = 'error') SELECT count(*) FROM e", true},
		{"lowercase", "  select level, count(*) from logs group by level", true},
		{"reset is not set", "SELECT 'RESET' AS word FROM logs", true},
		{"empty", "   ", false},
		{"semicolon chaining", "SELECT 1; DROP TABLE logs", false},
		{"not a select", "DELETE FROM logs", false},
		{"hidden in comment prefix", "/* SELECT */ DROP TABLE logs", false},
		{"write in subquery", "SELECT * FROM logs WHERE 1 = (INSERT INTO x VALUES (1))", false},
		{"pragma", "SELECT * FROM logs WHERE PRAGMA", false},
		{"file read", "SELECT * FROM read_csv('/etc/passwd')", false},
		{"parquet scan", "SELECT * FROM parquet_scan ('x.parquet')", false},
		{"glob", "SELECT * FROM glob('/*')", false},
		{"quoted file source", "SELECT message FROM '/data/victim/logs.ndjson'", false},
		{"quoted file join", "SELECT * FROM logs JOIN 'x.csv' USING (service)", false},
		{"double quoted path", `SELECT * FROM "/data/victim/logs.ndjson"`, false},
		{"double quoted table", `SELECT "level" FROM "logs"`, true},
		{"literal in select list", "SELECT 'FROM x' AS label, level FROM logs", true},
		{"line comment keeps select", "SELECT level -- DROP\nFROM logs", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateQuery(tt.query)
			if tt.ok && err != nil {
				t.Fatalf("ValidateQuery(%q): %v", tt.query, err)
			}
			if !tt.ok {
				if err == nil {
					t.Fatalf("ValidateQuery(%q) accepted", tt.query)
				}
				if !errors.Is(err, ErrReadOnly) {
					t.Fatalf("ValidateQuery(%q) = %v, want ErrReadOnly", tt.query, err)
				}
			}
		})
	}
}

func TestStripSQLComments(t *testing.T) {
	got := stripSQLComments("SELECT /* x */ 1 -- tail\nFROM logs")
	want := "SELECT   1 \nFROM logs\n"
	if got != want {
		t.Fatalf("stripSQLComments = %q, want %q", got, want)
	}
}
