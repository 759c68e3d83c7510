package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// DB wraps the database connection
type DB struct {
	*sql.DB
	dialect Dialect
	logger  *zap.Logger
}

// Connect opens a connection for driver ("postgres" or "sqlite") and pings it.
func Connect(driver, connectionString string, logger *zap.Logger) (*DB, error) {
	dialect := DialectFor(driver)

	db, err := sql.Open(dialect.Name(), connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if dialect == SQLite {
		// An in-memory database exists per connection.
		db.SetMaxOpenConns(1)
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
	}

	return New(db, dialect, logger), nil
}

// New wraps an already-open handle. Tests use it with sqlmock.
func New(db *sql.DB, dialect Dialect, logger *zap.Logger) *DB {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DB{DB: db, dialect: dialect, logger: logger}
}

func (db *DB) Dialect() Dialect { return db.dialect }

// RunMigrations executes the dialect's *.sql files from fsys in name order.
// fsys holds one directory per dialect (postgres/, sqlite/).
func (db *DB) RunMigrations(fsys fs.FS) error {
	dir := db.dialect.Name()
	files, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var sqlFiles []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".sql") {
			sqlFiles = append(sqlFiles, file.Name())
		}
	}
	sort.Strings(sqlFiles)

	for _, filename := range sqlFiles {
		db.logger.Info("running migration", zap.String("file", filename))

		content, err := fs.ReadFile(fsys, path.Join(dir, filename))
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", filename, err)
		}

		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", filename, err)
		}
	}

	db.logger.Info("migrations completed", zap.Int("files", len(sqlFiles)))
	return nil
}

// Count returns the exact number of rows q matches.
func (db *DB) Count(ctx context.Context, q *Query) (int, error) {
	total := 0
	for _, b := range q.Batches(MaxInValues) {
		query, args := b.BuildCount(db.dialect)

		var n int
		if err := db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
			return 0, fmt.Errorf("count %s: %w", q.Table(), err)
		}
		total += n
	}
	return total, nil
}

// ConflictCode is the driver code attached to a failed insert.
type ConflictCode string

const (
	// pq.ErrorCode for unique_violation
	ConflictUniqueViolation ConflictCode = "23505"
)

// sqliteCoder matches modernc.org/sqlite errors.
type sqliteCoder interface {
	Code() int
}

// SQLite result codes for constraint failures. The primary code is returned
// when extended codes are off, so the message decides.
const (
	sqliteConstraint           = 19
	sqliteConstraintPrimaryKey = 1555
	sqliteConstraintUnique     = 2067
)

// IsUniqueViolation reports whether err is a primary-key or unique conflict
// from either driver.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return ConflictCode(pqErr.Code) == ConflictUniqueViolation
	}
	var sqErr sqliteCoder
	if errors.As(err, &sqErr) {
		switch sqErr.Code() {
		case sqliteConstraintPrimaryKey, sqliteConstraintUnique:
			return true
		case sqliteConstraint:
			return strings.Contains(err.Error(), "UNIQUE constraint failed")
		}
	}
	return false
}
