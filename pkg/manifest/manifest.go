// Package manifest maintains a small SQLite inventory of captured trace
// files, so offline analysis can locate the traces of a run (and their
// schemas) without re-parsing a directory of file names every time.
package manifest

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/amirkhaki/branchtrace/pkg/trace"
)

// DB wraps the manifest database.
type DB struct {
	db *sql.DB
}

// Entry is one trace file known to the manifest.
type Entry struct {
	Path    string
	Prefix  string
	PID     int
	Seq     uint64
	Schema  string
	Records int64
	Bytes   int64
	ModTime time.Time
}

// Open creates or opens a manifest database at path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS traces (
		path     TEXT PRIMARY KEY,
		prefix   TEXT NOT NULL,
		pid      INTEGER NOT NULL,
		seq      INTEGER NOT NULL,
		schema   TEXT NOT NULL,
		records  INTEGER NOT NULL,
		bytes    INTEGER NOT NULL,
		mod_time DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_traces_pid ON traces(pid);`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize manifest schema: %w", err)
	}
	return nil
}

// Put inserts or refreshes one entry, keyed by path.
func (m *DB) Put(e Entry) error {
	_, err := m.db.Exec(`
		INSERT INTO traces (path, prefix, pid, seq, schema, records, bytes, mod_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			records = excluded.records,
			bytes = excluded.bytes,
			mod_time = excluded.mod_time`,
		e.Path, e.Prefix, e.PID, e.Seq, e.Schema, e.Records, e.Bytes, e.ModTime)
	if err != nil {
		return fmt.Errorf("failed to store %s: %w", e.Path, err)
	}
	return nil
}

// List returns every known entry ordered by pid then thread sequence.
func (m *DB) List() ([]Entry, error) {
	rows, err := m.db.Query(`
		SELECT path, prefix, pid, seq, schema, records, bytes, mod_time
		FROM traces ORDER BY pid, seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query manifest: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Path, &e.Prefix, &e.PID, &e.Seq,
			&e.Schema, &e.Records, &e.Bytes, &e.ModTime); err != nil {
			return nil, fmt.Errorf("failed to scan manifest row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes the database.
func (m *DB) Close() error {
	return m.db.Close()
}

// IndexDir scans dir for files following the trace naming convention and
// records each one in the manifest. Record counts come from the file size,
// which the fixed-width schemas make exact. Files that do not parse as trace
// names are skipped; a trace file whose size is not a multiple of its record
// size is reported as an error.
func (m *DB) IndexDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	n := 0
	for _, de := range entries {
		if de.IsDir() {
			continue
		}
		info, err := trace.ParseFileName(de.Name())
		if err != nil {
			continue
		}
		st, err := de.Info()
		if err != nil {
			return n, fmt.Errorf("failed to stat %s: %w", de.Name(), err)
		}
		rs := int64(info.Schema.RecordSize())
		if st.Size()%rs != 0 {
			return n, fmt.Errorf("%s: size %d is not a multiple of the %v record size",
				de.Name(), st.Size(), info.Schema)
		}
		err = m.Put(Entry{
			Path:    filepath.Join(dir, de.Name()),
			Prefix:  info.Prefix,
			PID:     info.PID,
			Seq:     info.Seq,
			Schema:  info.Schema.String(),
			Records: st.Size() / rs,
			Bytes:   st.Size(),
			ModTime: st.ModTime(),
		})
		if err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
