package trace

import (
	"fmt"
	"strconv"
	"strings"
)

// Trace files are named
//
//	<prefix>.<pid>.<seq>.<schema>.bin
//
// where seq is the process-wide thread sequence number. The pid/seq pair
// keeps concurrent threads and repeated runs in the same output directory
// from clobbering each other, and the schema component lets a reader pick
// the record layout without guessing.

// FileInfo is the decomposition of a trace file name.
type FileInfo struct {
	Prefix string
	PID    int
	Seq    uint64
	Schema Schema
}

// FileName builds the canonical trace file name for one (process, thread).
func FileName(prefix string, pid int, seq uint64, schema Schema) string {
	return fmt.Sprintf("%s.%05d.%04d.%s.bin", prefix, pid, seq, schema)
}

// ParseFileName decomposes a name produced by FileName. The prefix may
// itself contain dots, so the fixed components are taken from the right.
func ParseFileName(name string) (FileInfo, error) {
	parts := strings.Split(name, ".")
	if len(parts) < 5 || parts[len(parts)-1] != "bin" {
		return FileInfo{}, fmt.Errorf("%q is not a trace file name", name)
	}
	schema, err := ParseSchema(parts[len(parts)-2])
	if err != nil {
		return FileInfo{}, fmt.Errorf("%q: %w", name, err)
	}
	seq, err := strconv.ParseUint(parts[len(parts)-3], 10, 64)
	if err != nil {
		return FileInfo{}, fmt.Errorf("%q: bad thread sequence: %w", name, err)
	}
	pid, err := strconv.Atoi(parts[len(parts)-4])
	if err != nil {
		return FileInfo{}, fmt.Errorf("%q: bad pid: %w", name, err)
	}
	return FileInfo{
		Prefix: strings.Join(parts[:len(parts)-4], "."),
		PID:    pid,
		Seq:    seq,
		Schema: schema,
	}, nil
}
