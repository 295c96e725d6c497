package trace

import (
	"fmt"
	"os"
)

// Writer appends records to one trace file. A Writer is owned by exactly one
// execution thread and is not safe for concurrent use; that exclusive
// ownership is what keeps capture race-free without locks.
type Writer struct {
	f      *os.File
	schema Schema
	buf    [MaxRecordSize]byte
	count  uint64
}

// Create opens a new trace file for appending. The name is expected to be
// unique per (process, thread); an existing file is an error rather than
// something to silently clobber, since a partial overwrite would invalidate
// downstream analysis.
func Create(path string, schema Schema) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace file: %w", err)
	}
	return &Writer{f: f, schema: schema}, nil
}

// Append encodes r and writes it to the file before returning. There is no
// userspace buffering: a record that has been appended survives an abrupt
// kill of the capturing process. This is the documented throughput trade-off
// of the baseline design.
func (w *Writer) Append(r Record) error {
	n := w.schema.encode(w.buf[:], r)
	if _, err := w.f.Write(w.buf[:n]); err != nil {
		return fmt.Errorf("failed to append to %s: %w", w.f.Name(), err)
	}
	w.count++
	return nil
}

// Count returns the number of records appended so far.
func (w *Writer) Count() uint64 { return w.count }

// Schema returns the schema this file committed to at creation.
func (w *Writer) Schema() Schema { return w.schema }

// Name returns the path of the underlying file.
func (w *Writer) Name() string { return w.f.Name() }

// Close closes the underlying file. Must be called exactly once.
func (w *Writer) Close() error {
	if err := w.f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", w.f.Name(), err)
	}
	return nil
}
