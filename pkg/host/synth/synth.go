// Package synth is a deterministic instrumentation host for tests and
// self-checks. It plays the host's two roles from a script: it reports a
// fixed instruction set at "code generation" and then fires the attached
// hooks for a fixed sequence of executions, with thread lifecycle events
// derived from the script. Everything runs synchronously on the calling
// goroutine, so runs are exactly reproducible.
package synth

import (
	"fmt"

	"github.com/amirkhaki/branchtrace/pkg/host"
)

// Step is one scripted execution of a control-flow instruction. Target is
// the destination the host resolved at the point of transfer; for a
// not-taken conditional branch it is the fall-through address.
type Step struct {
	Thread host.ThreadID
	PC     uint64
	Target uint64
	Taken  bool
}

// Program is a scripted target: the static instructions discovery reports,
// and the dynamic executions in temporal order.
type Program struct {
	Code  []host.Instruction
	Steps []Step
}

// Host implements host.Host over a Program.
type Host struct {
	prog Program

	discover host.DiscoverFunc
	start    host.ThreadFunc
	end      host.ThreadFunc

	insts    map[uint64]host.Instruction
	attached map[uint64]host.Hooks
}

var _ host.Host = (*Host)(nil)

// New builds a synthetic host for prog.
func New(prog Program) *Host {
	insts := make(map[uint64]host.Instruction, len(prog.Code))
	for _, inst := range prog.Code {
		insts[inst.PC] = inst
	}
	return &Host{
		prog:     prog,
		insts:    insts,
		attached: make(map[uint64]host.Hooks),
	}
}

func (h *Host) OnControlFlow(fn host.DiscoverFunc) error {
	if h.discover != nil {
		return fmt.Errorf("synth: control-flow callback already registered")
	}
	h.discover = fn
	return nil
}

func (h *Host) OnThreadLifecycle(start, end host.ThreadFunc) error {
	if h.start != nil || h.end != nil {
		return fmt.Errorf("synth: thread-lifecycle callbacks already registered")
	}
	h.start = start
	h.end = end
	return nil
}

func (h *Host) Detach() error {
	if h.discover == nil && h.start == nil {
		return fmt.Errorf("synth: nothing registered")
	}
	h.discover = nil
	h.start = nil
	h.end = nil
	return nil
}

// Instrument reports every instruction of the program to the discovery
// callback and stores the returned hooks. Calling it again models a
// host-side code-cache invalidation: the same instructions are re-reported.
func (h *Host) Instrument() error {
	if h.discover == nil {
		return fmt.Errorf("synth: no control-flow callback registered")
	}
	for _, inst := range h.prog.Code {
		h.attached[inst.PC] = h.discover(inst)
	}
	return nil
}

// Attached returns the hooks currently attached at pc, for scripts that
// want to inspect the dispatch's choices.
func (h *Host) Attached(pc uint64) host.Hooks {
	return h.attached[pc]
}

// Run instruments the program (if not already done) and executes the
// scripted steps. A thread-start event fires before a thread's first step;
// thread-end events fire after the last step, in start order. Instructions
// with no attached hook execute uncaptured.
func (h *Host) Run() error {
	if len(h.attached) == 0 && len(h.prog.Code) > 0 {
		if err := h.Instrument(); err != nil {
			return err
		}
	}

	var started []host.ThreadID
	seen := make(map[host.ThreadID]bool)

	for i, step := range h.prog.Steps {
		inst, ok := h.insts[step.PC]
		if !ok {
			return fmt.Errorf("synth: step %d executes unknown pc %#x", i, step.PC)
		}
		if !seen[step.Thread] {
			seen[step.Thread] = true
			started = append(started, step.Thread)
			if h.start != nil {
				h.start(step.Thread)
			}
		}

		hooks := h.attached[inst.PC]
		switch {
		case hooks.Cond != nil:
			hooks.Cond(step.Thread, step.PC, step.Target, step.Taken)
		case hooks.Uncond != nil:
			hooks.Uncond(step.Thread, step.PC, step.Target)
		}
	}

	if h.end != nil {
		for _, t := range started {
			h.end(t)
		}
	}
	return nil
}

// RunWithoutThreadEnd is Run, except the thread-end events are suppressed.
// It exists to exercise the lifecycle controller's leak detection.
func (h *Host) RunWithoutThreadEnd() error {
	end := h.end
	h.end = nil
	err := h.Run()
	h.end = end
	return err
}
