// Package capture wires the branch classifier, the hook dispatch and the
// per-thread trace sinks to an instrumentation host. One Context is created
// at process start, attached to the host, and closed at process exit;
// between those two points every executed control-flow instruction of the
// target program becomes one record in the owning thread's trace file.
package capture

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/amirkhaki/branchtrace/pkg/host"
	"github.com/amirkhaki/branchtrace/pkg/trace"
)

// Context is the process-wide capture state. It holds the single host
// registration and the table of per-thread sinks. Create one with New,
// attach it with Start, tear it down with Close.
type Context struct {
	cfg    Config
	schema trace.Schema
	h      host.Host
	log    *slog.Logger
	pid    int

	// Fatal is invoked on file-system failures and integrity violations
	// observed inside host callbacks, where no error can propagate back
	// into the target program. It must not return. The default logs and
	// exits the process; tests replace it.
	Fatal func(error)

	// attached caches the hooks handed out per instruction address so a
	// re-instrumentation of the same code region gets the identical
	// attachment instead of a duplicate.
	mu       sync.Mutex
	attached map[uint64]host.Hooks

	// sinks maps host.ThreadID to *trace.Writer. Stores and deletes
	// happen on thread start/end only; the append path does a lock-free
	// load, and each writer is touched by its owning thread alone.
	sinks   sync.Map
	seq     atomic.Uint64
	started bool

	// closed files, recorded at thread end for reporting.
	files []FileSummary
}

// FileSummary describes one closed trace file.
type FileSummary struct {
	Path    string
	Thread  host.ThreadID
	Records uint64
}

// New builds a Context for the given host. logger may be nil, in which case
// slog.Default is used. Capture hot paths never touch the logger.
func New(cfg Config, h host.Host, logger *slog.Logger) (*Context, error) {
	schema, err := cfg.validate()
	if err != nil {
		return nil, fmt.Errorf("invalid capture config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Context{
		cfg:      cfg,
		schema:   schema,
		h:        h,
		log:      logger,
		pid:      os.Getpid(),
		attached: make(map[uint64]host.Hooks),
	}
	c.Fatal = func(err error) {
		c.log.Error("capture aborted", "err", err)
		os.Exit(1)
	}
	return c, nil
}

// Schema returns the on-disk schema every file of this run commits to.
func (c *Context) Schema() trace.Schema { return c.schema }

// Start registers the discovery callback and the thread lifecycle hooks with
// the host. A registration failure is a host-integration failure: the caller
// must not proceed under instrumentation.
func (c *Context) Start() error {
	if c.started {
		return fmt.Errorf("capture context already started")
	}
	if err := c.h.OnControlFlow(c.discover); err != nil {
		return fmt.Errorf("host rejected control-flow registration: %w", err)
	}
	if err := c.h.OnThreadLifecycle(c.threadStart, c.threadEnd); err != nil {
		return fmt.Errorf("host rejected thread-lifecycle registration: %w", err)
	}
	c.started = true
	c.log.Info("capture started",
		"pid", c.pid, "out", c.cfg.OutDir, "schema", c.schema.String())
	return nil
}

// Close detaches from the host and verifies that every acquired sink was
// released by its thread-end hook. An unreleased handle means a lifecycle
// hook did not fire; the leaked files are closed so no records are lost, but
// the violation is reported as an error, never swallowed.
func (c *Context) Close() error {
	if !c.started {
		return nil
	}
	c.started = false

	err := c.h.Detach()

	var leaked []error
	c.sinks.Range(func(key, value any) bool {
		t := key.(host.ThreadID)
		w := value.(*trace.Writer)
		leaked = append(leaked,
			fmt.Errorf("thread %d: sink %s never released", t, w.Name()))
		c.sinks.Delete(key)
		c.recordFile(t, w)
		if cerr := w.Close(); cerr != nil {
			leaked = append(leaked, cerr)
		}
		return true
	})
	if len(leaked) > 0 {
		err = errors.Join(err, errors.Join(leaked...))
	}
	if err != nil {
		return fmt.Errorf("capture shutdown: %w", err)
	}
	c.log.Info("capture stopped", "pid", c.pid, "files", len(c.files))
	return nil
}

// Files returns the summaries of all closed trace files, in close order.
// Only complete after Close.
func (c *Context) Files() []FileSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]FileSummary, len(c.files))
	copy(out, c.files)
	return out
}

func (c *Context) recordFile(t host.ThreadID, w *trace.Writer) {
	c.mu.Lock()
	c.files = append(c.files, FileSummary{
		Path:    w.Name(),
		Thread:  t,
		Records: w.Count(),
	})
	c.mu.Unlock()
}
