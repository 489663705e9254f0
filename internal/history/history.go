// Package history records per-case verdicts of every capture and verification
// run in a SQL database, so drift can be traced across runs.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite" // SQLite driver

	"goldref/internal/domain"
)

// Supported drivers.
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// Entry is one recorded case verdict.
type Entry struct {
	RunID            string
	Kind             string
	CaseID           string
	Status           domain.Status
	Tolerance        string
	MaxAbsoluteError float64
	Fingerprint      string
	Message          string
	RecordedAt       time.Time
}

// Store is a verdict history backed by SQLite or MySQL.
type Store struct {
	db     *sql.DB
	driver string
}

var schemas = map[string]string{
	DriverSQLite: `
CREATE TABLE IF NOT EXISTS verdicts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	case_id TEXT NOT NULL,
	status TEXT NOT NULL,
	tolerance TEXT NOT NULL DEFAULT '',
	max_abs_error REAL NOT NULL DEFAULT 0,
	fingerprint TEXT NOT NULL DEFAULT '',
	message TEXT NOT NULL DEFAULT '',
	recorded_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_verdicts_case ON verdicts(case_id);`,
	DriverMySQL: `
CREATE TABLE IF NOT EXISTS verdicts (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	run_id VARCHAR(64) NOT NULL,
	kind VARCHAR(16) NOT NULL,
	case_id VARCHAR(512) NOT NULL,
	status VARCHAR(16) NOT NULL,
	tolerance VARCHAR(32) NOT NULL DEFAULT '',
	max_abs_error DOUBLE NOT NULL DEFAULT 0,
	fingerprint VARCHAR(64) NOT NULL DEFAULT '',
	message TEXT NOT NULL,
	recorded_at VARCHAR(40) NOT NULL,
	INDEX idx_verdicts_case (case_id(191))
)`,
}

// Open connects to the history database and creates its schema.
// For sqlite, dsn is a file path whose directory is created on demand.
// For mysql, the database named in dsn is created if it does not exist.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	var (
		db  *sql.DB
		err error
	)
	switch driver {
	case DriverSQLite:
		if dsn == "" {
			return nil, errors.New("sqlite history requires a file path")
		}
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
		db, err = sql.Open("sqlite", dsn+"?_pragma=busy_timeout(5000)")
		if err != nil {
			return nil, fmt.Errorf("failed to open history database: %w", err)
		}
		db.SetMaxOpenConns(1) // SQLite works best with single writer
	case DriverMySQL:
		if err := ensureDatabase(ctx, dsn); err != nil {
			return nil, err
		}
		db, err = sql.Open("mysql", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to history database: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported history driver: %s", driver)
	}

	s := &Store{db: db, driver: driver}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	for _, stmt := range strings.Split(schemas[s.driver], ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Record appends one entry per case outcome of run.
func (s *Store) Record(ctx context.Context, run *domain.RunOutput) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin history transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO verdicts
		(run_id, kind, case_id, status, tolerance, max_abs_error, fingerprint, message, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare history insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, d := range run.Details {
		if _, err := stmt.ExecContext(ctx, run.Meta.RunID, run.Meta.Kind, d.CaseID, string(d.Status),
			run.Meta.Tolerance, d.MaxAbsoluteError, d.Fingerprint, d.Message, now); err != nil {
			return fmt.Errorf("record %s: %w", d.CaseID, err)
		}
	}
	return tx.Commit()
}

// Recent returns up to limit entries, newest first. An empty caseID matches every case.
func (s *Store) Recent(ctx context.Context, caseID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT run_id, kind, case_id, status, tolerance, max_abs_error, fingerprint, message, recorded_at
		FROM verdicts`
	args := []any{}
	if caseID != "" {
		query += ` WHERE case_id = ?`
		args = append(args, caseID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e        Entry
			status   string
			recorded string
		)
		if err := rows.Scan(&e.RunID, &e.Kind, &e.CaseID, &status, &e.Tolerance,
			&e.MaxAbsoluteError, &e.Fingerprint, &e.Message, &recorded); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		e.Status = domain.Status(status)
		e.RecordedAt, _ = time.Parse(time.RFC3339Nano, recorded)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// MySQLDSNFromEnv builds a MySQL DSN from DB_HOST, DB_PORT, DB_USERNAME,
// DB_PASSWORD and DB_DATABASE, with local defaults.
func MySQLDSNFromEnv() string {
	cfg := mysql.NewConfig()
	cfg.User = envOr("DB_USERNAME", "root")
	cfg.Passwd = os.Getenv("DB_PASSWORD")
	cfg.Net = "tcp"
	cfg.Addr = envOr("DB_HOST", "127.0.0.1") + ":" + envOr("DB_PORT", "3306")
	cfg.DBName = envOr("DB_DATABASE", "goldref")
	return cfg.FormatDSN()
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// ensureDatabase creates the database named in dsn if the server lacks it.
func ensureDatabase(ctx context.Context, dsn string) error {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return fmt.Errorf("invalid mysql dsn: %w", err)
	}
	name := cfg.DBName
	if !isValidDatabaseName(name) {
		return fmt.Errorf("invalid database name: %q", name)
	}

	// Connect to MySQL server (without specifying database)
	cfg.DBName = ""
	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return fmt.Errorf("failed to connect to database server: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database server: %w", err)
	}

	var exists bool
	query := "SELECT EXISTS(SELECT SCHEMA_NAME FROM INFORMATION_SCHEMA.SCHEMATA WHERE SCHEMA_NAME = ?)"
	if err := db.QueryRowContext(ctx, query, name).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check database %s: %w", name, err)
	}
	if exists {
		return nil
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", name)); err != nil {
		return fmt.Errorf("failed to create database %s: %w", name, err)
	}
	return nil
}

// isValidDatabaseName allows identifiers safe to quote in CREATE DATABASE.
func isValidDatabaseName(name string) bool {
	if len(name) == 0 || len(name) > 64 {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return false
		}
	}
	return true
}
