package capture

import (
	"fmt"
	"path/filepath"

	"github.com/amirkhaki/branchtrace/pkg/host"
	"github.com/amirkhaki/branchtrace/pkg/trace"
)

// Thread-local sink discipline: each target thread owns exactly one trace
// file, created lazily at thread start and closed at thread end. The owning
// thread is the only writer, so appends need no lock; the sink table itself
// is a sync.Map because thread starts race with other threads' appends.

// threadStart is the host's thread-start hook. It opens this thread's trace
// file under a name unique across threads and across repeated runs
// (pid + process-wide sequence number). A file-system failure here is fatal:
// a missing trace invalidates the whole run.
func (c *Context) threadStart(t host.ThreadID) {
	seq := c.seq.Add(1) - 1
	name := trace.FileName(c.cfg.Prefix, c.pid, seq, c.schema)
	w, err := trace.Create(filepath.Join(c.cfg.OutDir, name), c.schema)
	if err != nil {
		c.Fatal(fmt.Errorf("thread %d: %w", t, err))
		return
	}
	if _, loaded := c.sinks.LoadOrStore(t, w); loaded {
		w.Close()
		c.Fatal(fmt.Errorf("thread %d: sink acquired twice", t))
	}
}

// threadEnd is the host's thread-end hook. It closes the thread's file,
// making all prior appends durable. Exactly one release per acquire; a
// release without a matching acquire is an integrity violation.
func (c *Context) threadEnd(t host.ThreadID) {
	value, ok := c.sinks.LoadAndDelete(t)
	if !ok {
		c.Fatal(fmt.Errorf("thread %d: released a sink that was never acquired", t))
		return
	}
	w := value.(*trace.Writer)
	c.recordFile(t, w)
	if err := w.Close(); err != nil {
		c.Fatal(fmt.Errorf("thread %d: %w", t, err))
	}
}

// append durably writes one record to the calling thread's file before
// returning. It runs inline in the target thread, inside the host's
// execution callback: no allocation, no locks, no logging.
func (c *Context) append(t host.ThreadID, r trace.Record) {
	value, ok := c.sinks.Load(t)
	if !ok {
		c.Fatal(fmt.Errorf("thread %d: record with no open sink", t))
		return
	}
	if err := value.(*trace.Writer).Append(r); err != nil {
		c.Fatal(err)
	}
}
