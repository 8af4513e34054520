package sqlstore

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	// registers the "pgx" database/sql driver
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Supported dialect names
const (
	DialectSQLite   = "sqlite"
	DialectMySQL    = "mysql"
	DialectPostgres = "postgres"
)

// dialect captures the SQL differences between the supported databases
type dialect struct {
	Name       string
	DriverName string
	// DDL fragments substituted into the schema template
	PK   string
	TS   string
	Key  string
	Text string
	Bool string
	// returning reports whether INSERT ... RETURNING is available
	returning bool
	forUpdate string
	numbered  bool
}

var dialects = map[string]dialect{
	DialectSQLite: {
		Name:       DialectSQLite,
		DriverName: "sqlite",
		PK:         "INTEGER PRIMARY KEY AUTOINCREMENT",
		TS:         "TIMESTAMP",
		Key:        "VARCHAR(255)",
		Text:       "TEXT",
		Bool:       "BOOLEAN",
		returning:  true,
	},
	DialectMySQL: {
		Name:       DialectMySQL,
		DriverName: "mysql",
		PK:         "BIGINT AUTO_INCREMENT PRIMARY KEY",
		TS:         "DATETIME(6)",
		Key:        "VARCHAR(255)",
		Text:       "TEXT",
		Bool:       "BOOLEAN",
		forUpdate:  " FOR UPDATE",
	},
	DialectPostgres: {
		Name:       DialectPostgres,
		DriverName: "pgx",
		PK:         "BIGSERIAL PRIMARY KEY",
		TS:         "TIMESTAMPTZ",
		Key:        "VARCHAR(255)",
		Text:       "TEXT",
		Bool:       "BOOLEAN",
		returning:  true,
		forUpdate:  " FOR UPDATE",
		numbered:   true,
	},
}

func lookupDialect(name string) (dialect, error) {
	d, ok := dialects[strings.ToLower(name)]
	if !ok {
		return dialect{}, fmt.Errorf("unsupported database driver %q (want sqlite, mysql or postgres)", name)
	}
	return d, nil
}

// rebind rewrites ? placeholders as $1, $2, ... for postgres
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// insertIgnore renders an insert that skips natural-key conflicts only.
// Foreign key failures still surface as errors on every dialect.
func (d dialect) insertIgnore(table, pk, columns string, n int) string {
	values := strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
	if d.Name == DialectMySQL {
		return fmt.Sprintf("INSERT INTO %s(%s) VALUES(%s) ON DUPLICATE KEY UPDATE %s = %s", table, columns, values, pk, pk)
	}
	return fmt.Sprintf("INSERT INTO %s(%s) VALUES(%s) ON CONFLICT DO NOTHING", table, columns, values)
}

// isUniqueViolation reports whether err is a unique constraint failure
func isUniqueViolation(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

// isForeignKeyViolation reports whether err is a failed reference to a missing row
func isForeignKeyViolation(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1452
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY
	}
	return false
}
