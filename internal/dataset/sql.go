package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/spherical-ai/ev-assistant/internal/config"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// DB represents a database connection interface.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// SQLSource reads the dataset from a SQL table through any database/sql driver.
type SQLSource struct {
	DB    DB
	Table string
	// Label names the backing store in logs, e.g. "sqlite" or "postgres".
	Label string
}

// Name implements Source.
func (s SQLSource) Name() string {
	label := s.Label
	if label == "" {
		label = "sql"
	}
	return label + ":" + s.Table
}

// Read implements Source.
func (s SQLSource) Read(ctx context.Context) ([]string, [][]string, error) {
	if !tableNamePattern.MatchString(s.Table) {
		return nil, nil, fmt.Errorf("%w: invalid table name %q", ErrDataUnavailable, s.Table)
	}

	rows, err := s.DB.QueryContext(ctx, "SELECT * FROM "+s.Table)
	if err != nil {
		return nil, nil, fmt.Errorf("query %s: %w", s.Table, err)
	}
	defer rows.Close()

	header, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("read columns: %w", err)
	}

	var out [][]string
	for rows.Next() {
		cells := make([]interface{}, len(header))
		ptrs := make([]interface{}, len(header))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, fmt.Errorf("scan row: %w", err)
		}

		record := make([]string, len(header))
		for i, c := range cells {
			record[i] = cellString(c)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate rows: %w", err)
	}

	return header, out, nil
}

func cellString(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case string:
		return x
	case float64:
		return FormatNumber(x)
	case float32:
		return FormatNumber(float64(x))
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}

// Dialect captures the SQL differences between supported stores.
type Dialect int

const (
	// DialectSQLite targets mattn/go-sqlite3.
	DialectSQLite Dialect = iota
	// DialectPostgres targets lib/pq.
	DialectPostgres
)

func (d Dialect) placeholder(i int) string {
	if d == DialectPostgres {
		return "$" + strconv.Itoa(i)
	}
	return "?"
}

func (d Dialect) numericType() string {
	if d == DialectPostgres {
		return "DOUBLE PRECISION"
	}
	return "REAL"
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// WriteSQL replaces the named SQL table with the contents of t. onRow, when
// set, is called after each inserted row.
func WriteSQL(ctx context.Context, db *sql.DB, dialect Dialect, name string, t *Table, onRow func()) error {
	if !tableNamePattern.MatchString(name) {
		return fmt.Errorf("invalid table name %q", name)
	}

	cols := t.Columns()
	defs := make([]string, len(cols))
	quoted := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, c := range cols {
		kind, _ := t.Kind(c)
		typ := "TEXT"
		if kind == KindNumeric {
			typ = dialect.numericType()
		}
		quoted[i] = quoteIdent(c)
		defs[i] = quoted[i] + " " + typ
		marks[i] = dialect.placeholder(i + 1)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+name); err != nil {
		return fmt.Errorf("drop table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", name, strings.Join(defs, ", "))); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		name, strings.Join(quoted, ", "), strings.Join(marks, ", ")))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < t.Len(); i++ {
		args := make([]interface{}, len(cols))
		for j, c := range cols {
			v := t.Value(i, c)
			kind, _ := t.Kind(c)
			switch {
			case !v.Valid:
				args[j] = nil
			case kind == KindNumeric:
				args[j] = v.Num
			default:
				args[j] = v.Str
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert row %d: %w", i+1, err)
		}
		if onRow != nil {
			onRow()
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// SourceFromConfig builds the Source selected by cfg. The returned close
// function releases any database handle and is never nil. SQL drivers must
// be registered by the caller.
func SourceFromConfig(cfg config.DatasetConfig) (Source, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Source {
	case "csv", "":
		return CSVSource{Path: cfg.Path}, noop, nil
	case "sqlite":
		db, err := sql.Open("sqlite3", cfg.Path)
		if err != nil {
			return nil, noop, fmt.Errorf("%w: open sqlite: %v", ErrDataUnavailable, err)
		}
		return SQLSource{DB: db, Table: cfg.Table, Label: "sqlite"}, db.Close, nil
	case "postgres":
		db, err := sql.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, noop, fmt.Errorf("%w: open postgres: %v", ErrDataUnavailable, err)
		}
		return SQLSource{DB: db, Table: cfg.Table, Label: "postgres"}, db.Close, nil
	default:
		return nil, noop, fmt.Errorf("%w: unsupported source %q", ErrDataUnavailable, cfg.Source)
	}
}
