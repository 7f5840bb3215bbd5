package database

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/lib/pq"
)

// =============================================================================
// Dialect Tests
// =============================================================================

func TestNewDialect(t *testing.T) {
	tests := []struct {
		input DialectType
		want  string
	}{
		{DialectSQLite, "*database.SQLiteDialect"},
		{DialectPostgres, "*database.PostgresDialect"},
		{"unknown", "*database.SQLiteDialect"},
	}
	for _, tt := range tests {
		t.Run(string(tt.input), func(t *testing.T) {
			if got := fmt.Sprintf("%T", NewDialect(tt.input)); got != tt.want {
				t.Errorf("NewDialect(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestDialectSyntax(t *testing.T) {
	tests := []struct {
		name        string
		dialect     Dialect
		driver      string
		placeholder string
		ciText      string
		jsonType    string
	}{
		{"sqlite", &SQLiteDialect{}, "sqlite", "?", "TEXT COLLATE NOCASE", "TEXT"},
		{"postgres", &PostgresDialect{}, "postgres", "$3", "CITEXT", "JSONB"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.dialect.DriverName(); got != tt.driver {
				t.Errorf("DriverName() = %q, want %q", got, tt.driver)
			}
			if got := tt.dialect.Placeholder(3); got != tt.placeholder {
				t.Errorf("Placeholder(3) = %q, want %q", got, tt.placeholder)
			}
			if got := tt.dialect.CaseInsensitiveText(); got != tt.ciText {
				t.Errorf("CaseInsensitiveText() = %q, want %q", got, tt.ciText)
			}
			if got := tt.dialect.JSONType(); got != tt.jsonType {
				t.Errorf("JSONType() = %q, want %q", got, tt.jsonType)
			}
		})
	}
}

func TestSQLiteDialect_InitStatements(t *testing.T) {
	stmts := (&SQLiteDialect{}).InitStatements()
	joined := strings.Join(stmts, ";")
	for _, want := range []string{"journal_mode = WAL", "busy_timeout"} {
		if !strings.Contains(joined, want) {
			t.Errorf("InitStatements() missing %q: %v", want, stmts)
		}
	}
}

func TestPostgresDialect_InitStatements(t *testing.T) {
	stmts := (&PostgresDialect{}).InitStatements()
	if len(stmts) != 1 || !strings.Contains(stmts[0], "citext") {
		t.Errorf("InitStatements() = %v, want the citext extension", stmts)
	}
}

func TestSQLiteDialect_IsDuplicateKeyError(t *testing.T) {
	d := &SQLiteDialect{}
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("some random error"), false},
		{errors.New("UNIQUE constraint failed: simulation_reports.id"), true},
		{errors.New("constraint failed: PRIMARY KEY constraint failed (1555)"), true},
		{errors.New("foreign key constraint failed"), false},
	}
	for _, tt := range tests {
		if got := d.IsDuplicateKeyError(tt.err); got != tt.want {
			t.Errorf("IsDuplicateKeyError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestPostgresDialect_IsDuplicateKeyError(t *testing.T) {
	d := &PostgresDialect{}
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("duplicate key value violates unique constraint"), false},
		{"unique violation", &pq.Error{Code: "23505"}, true},
		{"wrapped unique violation", fmt.Errorf("insert: %w", &pq.Error{Code: "23505"}), true},
		{"foreign key violation", &pq.Error{Code: "23503"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.IsDuplicateKeyError(tt.err); got != tt.want {
				t.Errorf("IsDuplicateKeyError() = %v, want %v", got, tt.want)
			}
		})
	}
}

// =============================================================================
// QueryBuilder Tests
// =============================================================================

func TestQueryBuilder_Build_SQLite(t *testing.T) {
	qb := NewQueryBuilder(&SQLiteDialect{})
	queries := []string{
		"SELECT * FROM simulation_reports",
		"SELECT * FROM simulation_reports WHERE id = ?",
		"DELETE FROM simulation_reports WHERE id = ? AND fingerprint = ?",
	}
	for _, q := range queries {
		if got := qb.Build(q); got != q {
			t.Errorf("Build(%q) = %q, want unchanged", q, got)
		}
	}
}

func TestQueryBuilder_Build_Postgres(t *testing.T) {
	qb := NewQueryBuilder(&PostgresDialect{})
	tests := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"SELECT * FROM simulation_reports ORDER BY created_at", "SELECT * FROM simulation_reports ORDER BY created_at"},
		{"SELECT * FROM simulation_reports WHERE id = ?", "SELECT * FROM simulation_reports WHERE id = $1"},
		{"UPDATE t SET a = ? WHERE id = ?", "UPDATE t SET a = $1 WHERE id = $2"},
		{
			"INSERT INTO t VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
			"INSERT INTO t VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)",
		},
		{"SELECT '?' AS q, id FROM t WHERE id = ?", "SELECT '?' AS q, id FROM t WHERE id = $1"},
	}
	for _, tt := range tests {
		if got := qb.Build(tt.input); got != tt.want {
			t.Errorf("Build(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

// =============================================================================
// Config Tests
// =============================================================================

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("/path/to/test.db")

	if cfg.Driver != "sqlite" {
		t.Errorf("Driver = %q, want %q", cfg.Driver, "sqlite")
	}
	if cfg.SQLitePath != "/path/to/test.db" {
		t.Errorf("SQLitePath = %q", cfg.SQLitePath)
	}
	if cfg.String() != "sqlite:/path/to/test.db" {
		t.Errorf("String() = %q", cfg.String())
	}
}

func TestDefaultPostgresConfig(t *testing.T) {
	cfg := DefaultPostgresConfig()

	if cfg.Host != "localhost" || cfg.Port != 5432 || cfg.SSLMode != "disable" {
		t.Errorf("connection defaults = %s:%d sslmode=%s", cfg.Host, cfg.Port, cfg.SSLMode)
	}
	if cfg.MaxOpenConns != 25 || cfg.MaxIdleConns != 5 {
		t.Errorf("pool = %d open / %d idle, want 25 / 5", cfg.MaxOpenConns, cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime != 5*time.Minute {
		t.Errorf("ConnMaxLifetime = %v, want %v", cfg.ConnMaxLifetime, 5*time.Minute)
	}
}

func TestPostgresDSN(t *testing.T) {
	cfg := Config{
		Driver: "postgres",
		Postgres: PostgresConfig{
			Host:     "db.example.com",
			Port:     5433,
			User:     "sim",
			Password: "secret",
			Database: "reports",
			SSLMode:  "require",
		},
	}

	want := "host=db.example.com port=5433 user=sim dbname=reports sslmode=require password=secret"
	if got := cfg.Postgres.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
	if s := cfg.String(); strings.Contains(s, "secret") {
		t.Errorf("String() leaks the password: %q", s)
	}

	cfg.Postgres.Password = ""
	if strings.Contains(cfg.Postgres.DSN(), "password") {
		t.Error("DSN() includes an empty password")
	}
}

func TestDialect_InterfaceCompliance(t *testing.T) {
	var _ Dialect = (*SQLiteDialect)(nil)
	var _ Dialect = (*PostgresDialect)(nil)
}
