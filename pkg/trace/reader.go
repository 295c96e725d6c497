package trace

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Reader iterates the records of one trace file in order. Reading is an
// offline pass, so unlike the write side it buffers freely.
type Reader struct {
	f       *os.File
	br      *bufio.Reader
	schema  Schema
	buf     [MaxRecordSize]byte
	entries uint64
}

// Open opens a trace file, taking the schema from the file name.
func Open(path string) (*Reader, error) {
	info, err := ParseFileName(filepath.Base(path))
	if err != nil {
		return nil, err
	}
	return OpenSchema(path, info.Schema)
}

// OpenSchema opens a trace file under an explicitly chosen schema, for files
// that do not follow the naming convention.
func OpenSchema(path string, schema Schema) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat trace file: %w", err)
	}
	size := st.Size()
	rs := int64(schema.RecordSize())
	if size%rs != 0 {
		f.Close()
		return nil, fmt.Errorf("%s: size %d is not a multiple of the %v record size %d",
			path, size, schema, rs)
	}
	return &Reader{
		f:       f,
		br:      bufio.NewReader(f),
		schema:  schema,
		entries: uint64(size / rs),
	}, nil
}

// NumEntries returns the total number of records in the file.
func (r *Reader) NumEntries() uint64 { return r.entries }

// Schema returns the schema the file was opened under.
func (r *Reader) Schema() Schema { return r.schema }

// Next returns the next record, or io.EOF after the last one.
func (r *Reader) Next() (Record, error) {
	b := r.buf[:r.schema.RecordSize()]
	if _, err := io.ReadFull(r.br, b); err != nil {
		if err == io.EOF {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("failed to read record: %w", err)
	}
	return r.schema.decode(b)
}

// ReadAll drains the remaining records. Convenience for tests and small
// traces; real traces can run to hundreds of millions of records.
func (r *Reader) ReadAll() ([]Record, error) {
	var recs []Record
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return recs, nil
		}
		if err != nil {
			return recs, err
		}
		recs = append(recs, rec)
	}
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.f.Close()
}
