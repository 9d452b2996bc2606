// Package export writes register-map fact tables into a SQLite database.
package export

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
	"github.com/tebeka/atexit"

	"github.com/robert-at-pretension-io/rdl2sv/internal/facts"
)

// Auto asks Open to pick a unique database name
const Auto = "auto"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs
	(
		run_id VARCHAR(20)  NOT NULL PRIMARY KEY,
		input  VARCHAR(400) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS modules
	(
		run_id      VARCHAR(20)  NOT NULL,
		name        VARCHAR(200) NOT NULL,
		path        VARCHAR(400) NOT NULL,
		data_width  INTEGER      NOT NULL,
		fingerprint VARCHAR(16)  NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS addresses
	(
		run_id  VARCHAR(20)  NOT NULL,
		module  VARCHAR(200) NOT NULL,
		name    VARCHAR(200) NOT NULL,
		path    VARCHAR(400) NOT NULL,
		kind    VARCHAR(10)  NOT NULL,
		address INTEGER      NOT NULL,
		size    INTEGER      NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS addresses_address_index ON addresses (module, address)`,
	`CREATE TABLE IF NOT EXISTS fields
	(
		run_id     VARCHAR(20)  NOT NULL,
		module     VARCHAR(200) NOT NULL,
		register   VARCHAR(200) NOT NULL,
		path       VARCHAR(400) NOT NULL,
		lsb        INTEGER      NOT NULL,
		msb        INTEGER      NOT NULL,
		storage    VARCHAR(5)   NOT NULL,
		sw         VARCHAR(2)   NOT NULL,
		hw         VARCHAR(2)   NOT NULL,
		precedence VARCHAR(2)   NOT NULL,
		reset      VARCHAR(20)  NULL
	)`,
	`CREATE INDEX IF NOT EXISTS fields_register_index ON fields (module, register)`,
	`CREATE TABLE IF NOT EXISTS ports
	(
		run_id    VARCHAR(20)  NOT NULL,
		module    VARCHAR(200) NOT NULL,
		name      VARCHAR(200) NOT NULL,
		direction VARCHAR(6)   NOT NULL,
		type      VARCHAR(200) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS enums
	(
		run_id  VARCHAR(20)  NOT NULL,
		package VARCHAR(200) NOT NULL,
		type    VARCHAR(200) NOT NULL,
		member  VARCHAR(200) NOT NULL,
		value   INTEGER      NOT NULL
	)`,
}

type run struct {
	id     string
	input  string
	tables facts.Tables
}

// Writer buffers fact tables and writes them in one transaction per
// flush. A Writer is flushed and closed when the process exits through
// atexit.
type Writer struct {
	mu      sync.Mutex
	db      *sql.DB
	path    string
	log     logrus.FieldLogger
	pending []run
	closed  bool
}

// Open creates the database. name is a file path; an empty name or Auto
// picks a unique name in dir. A missing extension becomes ".sqlite3".
func Open(name, dir string, log logrus.FieldLogger) (*Writer, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if name == "" || name == Auto {
		name = filepath.Join(dir, "rdl2sv_"+xid.New().String())
	}
	if filepath.Ext(name) == "" {
		name += ".sqlite3"
	}

	appending := exists(name)
	db, err := sql.Open("sqlite3", name)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", name, err)
	}
	w := &Writer{db: db, path: name, log: log.WithField("db", name)}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating schema in %s: %w", name, err)
		}
	}

	atexit.Register(func() {
		if err := w.Close(); err != nil {
			w.log.WithError(err).Error("flushing register-map database")
		}
	})
	w.log.WithField("append", appending).Info("register-map database opened")
	return w, nil
}

// Path returns the database file
func (w *Writer) Path() string { return w.path }

// Write buffers the tables of one run and returns the run identifier
func (w *Writer) Write(input string, tables facts.Tables) string {
	w.mu.Lock()
	defer w.mu.Unlock()

	id := xid.New().String()
	w.pending = append(w.pending, run{id: id, input: input, tables: tables})
	return id
}

// Flush writes every buffered run
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flush()
}

func (w *Writer) flush() error {
	if len(w.pending) == 0 {
		return nil
	}
	if w.closed {
		return errors.New("register-map database is closed")
	}

	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	for _, r := range w.pending {
		if err := insertRun(tx, r); err != nil {
			tx.Rollback()
			return fmt.Errorf("run %s: %w", r.id, err)
		}
		w.log.WithFields(logrus.Fields{
			"run":   r.id,
			"input": r.input,
			"rows":  r.tables.Len(),
		}).Debug("run exported")
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	w.pending = nil
	return nil
}

// Close flushes and closes the database. Closing twice is a no-op.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	err := w.flush()
	w.closed = true
	return errors.Join(err, w.db.Close())
}

func insertRun(tx *sql.Tx, r run) error {
	if _, err := tx.Exec(`INSERT INTO runs (run_id, input) VALUES (?, ?)`, r.id, r.input); err != nil {
		return err
	}

	t := r.tables
	inserts := []struct {
		table string
		cols  []string
		n     int
		row   func(i int) []any
	}{
		{"modules", []string{"name", "path", "data_width", "fingerprint"}, len(t.Modules), func(i int) []any {
			m := t.Modules[i]
			return []any{m.Name, m.Path, m.DataWidth, m.Fingerprint}
		}},
		{"addresses", []string{"module", "name", "path", "kind", "address", "size"}, len(t.Addresses), func(i int) []any {
			a := t.Addresses[i]
			return []any{a.Module, a.Name, a.Path, a.Kind, int64(a.Address), int64(a.Size)}
		}},
		{"fields", []string{"module", "register", "path", "lsb", "msb", "storage", "sw", "hw", "precedence", "reset"}, len(t.Fields), func(i int) []any {
			f := t.Fields[i]
			var reset any
			if f.Reset != "" {
				reset = f.Reset
			}
			return []any{f.Module, f.Register, f.Path, f.LSB, f.MSB, f.Storage, f.SW, f.HW, f.Precedence, reset}
		}},
		{"ports", []string{"module", "name", "direction", "type"}, len(t.Ports), func(i int) []any {
			p := t.Ports[i]
			return []any{p.Module, p.Name, p.Direction, p.Type}
		}},
		{"enums", []string{"package", "type", "member", "value"}, len(t.Enums), func(i int) []any {
			e := t.Enums[i]
			return []any{e.Package, e.Type, e.Member, int64(e.Value)}
		}},
	}

	for _, ins := range inserts {
		if ins.n == 0 {
			continue
		}
		stmt, err := tx.Prepare(insertSQL(ins.table, ins.cols))
		if err != nil {
			return fmt.Errorf("preparing %s insert: %w", ins.table, err)
		}
		for i := range ins.n {
			if _, err := stmt.Exec(append([]any{r.id}, ins.row(i)...)...); err != nil {
				stmt.Close()
				return fmt.Errorf("inserting into %s: %w", ins.table, err)
			}
		}
		stmt.Close()
	}
	return nil
}

func insertSQL(table string, cols []string) string {
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)+1), ", ")
	return fmt.Sprintf("INSERT INTO %s (run_id, %s) VALUES (%s)", table, strings.Join(cols, ", "), marks)
}

// exists reports whether a database file is already present
func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
