package store

import (
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// Supported database/sql driver names.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// DB wraps the database connection that holds messages, chat settings and contacts.
type DB struct {
	*sql.DB
	driver string
	sb     sq.StatementBuilderType
}

// Open creates a new SQLite connection with WAL mode and recommended pragmas.
func Open(path string) (*DB, error) {
	return OpenDriver(DriverSQLite, path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
}

// OpenDriver opens a database for one of the supported drivers and verifies the connection.
func OpenDriver(driver, dsn string) (*DB, error) {
	var placeholders sq.PlaceholderFormat
	switch driver {
	case DriverSQLite:
		placeholders = sq.Question
	case DriverPostgres:
		placeholders = sq.Dollar
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return &DB{
		DB:     db,
		driver: driver,
		sb:     sq.StatementBuilder.PlaceholderFormat(placeholders),
	}, nil
}

// Driver returns the database/sql driver name in use.
func (db *DB) Driver() string {
	return db.driver
}

// now returns the current time truncated to the stored precision (milliseconds).
func now() time.Time {
	return time.UnixMilli(time.Now().UnixMilli())
}

func fromMillis(ms sql.NullInt64) *time.Time {
	if !ms.Valid {
		return nil
	}
	t := time.UnixMilli(ms.Int64)
	return &t
}

func fromNullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
