// Package sqlstore implements the relational PolicyStore over database/sql
// for SQLite, MySQL and PostgreSQL.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/ochairo/enforcer/internal/domain/interfaces"
	"github.com/ochairo/enforcer/internal/domain/interfaces/repositories"
)

// Config selects the database to open
type Config struct {
	Driver       string // sqlite, mysql or postgres
	DSN          string
	MaxOpenConns int
}

// conn is the subset of *sql.DB and *sql.Tx the queries need
type conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries implements repositories.Queries against a connection or transaction
type queries struct {
	db      conn
	dialect dialect
}

var _ repositories.Queries = (*queries)(nil)

// Store is a PolicyStore backed by a relational database
type Store struct {
	*queries
	db      *sql.DB
	dialect dialect
	logger  interfaces.Logger
}

var _ repositories.PolicyStore = (*Store)(nil)

// Open connects to the configured database and verifies the connection.
// Call Migrate to create the schema.
func Open(ctx context.Context, cfg Config, logger interfaces.Logger) (*Store, error) {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	d, err := lookupDialect(cfg.Driver)
	if err != nil {
		return nil, err
	}
	if cfg.DSN == "" {
		return nil, errors.New("database dsn is required")
	}

	dsn := cfg.DSN
	switch d.Name {
	case DialectSQLite:
		dsn = sqliteDSN(dsn)
	case DialectMySQL:
		if dsn, err = mysqlDSN(dsn); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open(d.DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.Name, err)
	}

	switch {
	case d.Name == DialectSQLite:
		// One writer at a time; also keeps :memory: databases on a single connection.
		db.SetMaxOpenConns(1)
	case cfg.MaxOpenConns > 0:
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", d.Name, err)
	}

	logger.Debug("policy store opened", interfaces.F("driver", d.Name))
	return &Store{
		queries: &queries{db: db, dialect: d},
		db:      db,
		dialect: d,
		logger:  logger,
	}, nil
}

// sqliteDSN enables foreign keys and a busy timeout unless the DSN sets pragmas itself
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// mysqlDSN makes the driver decode DATETIME columns as UTC time.Time values
func mysqlDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}

// Dialect returns the name of the database dialect in use
func (s *Store) Dialect() string {
	return s.dialect.Name
}

// WithTx implements repositories.PolicyStore
func (s *Store) WithTx(ctx context.Context, fn func(q repositories.Queries) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&queries{db: tx, dialect: s.dialect}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("rollback failed", interfaces.Err(rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Close implements repositories.PolicyStore
func (s *Store) Close() error {
	return s.db.Close()
}

func (q *queries) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return q.db.ExecContext(ctx, q.dialect.rebind(query), args...)
}

func (q *queries) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return q.db.QueryContext(ctx, q.dialect.rebind(query), args...)
}

func (q *queries) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return q.db.QueryRowContext(ctx, q.dialect.rebind(query), args...)
}

// insert runs an INSERT and returns the generated key of pkColumn
func (q *queries) insert(ctx context.Context, pkColumn, query string, args ...any) (int64, error) {
	if q.dialect.returning {
		var id int64
		if err := q.queryRow(ctx, query+" RETURNING "+pkColumn, args...).Scan(&id); err != nil {
			return 0, mapError(err)
		}
		return id, nil
	}
	res, err := q.exec(ctx, query, args...)
	if err != nil {
		return 0, mapError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// insertIgnore runs a conflict-skipping insert and reports whether a row was written
func (q *queries) insertIgnore(ctx context.Context, table, pk, columns string, args ...any) (bool, error) {
	res, err := q.exec(ctx, q.dialect.insertIgnore(table, pk, columns, len(args)), args...)
	if err != nil {
		return false, mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func (q *queries) affected(res sql.Result, err error) (int64, error) {
	if err != nil {
		return 0, mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// mapError translates driver errors into repository errors
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return repositories.ErrNotFound
	case isUniqueViolation(err):
		return fmt.Errorf("%w: %v", repositories.ErrConflict, err)
	case isForeignKeyViolation(err):
		return fmt.Errorf("referenced row %w: %v", repositories.ErrNotFound, err)
	default:
		return err
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timeOrNil(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}
