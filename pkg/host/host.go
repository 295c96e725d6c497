// Package host defines the capability interface the capture pipeline
// consumes from a binary-instrumentation engine. The pipeline never depends
// on a concrete engine; anything that can report control-flow instructions
// at code-generation time, invoke the attached hooks with live operands at
// execution time, and announce thread lifecycle can drive it.
package host

import "github.com/amirkhaki/branchtrace/pkg/branch"

// ThreadID identifies one execution thread of the target program, assigned
// by the host. IDs are never reused within one process.
type ThreadID uint64

// Instruction describes one control-flow instruction discovered during code
// generation: static properties only, nothing runtime-dependent.
type Instruction struct {
	// PC is the instruction's virtual address.
	PC uint64

	// Len is the instruction length in bytes.
	Len uint8

	// Shape carries the static classification inputs.
	Shape branch.Shape
}

// CondHook observes one execution of a conditional branch. target is the
// branch destination and taken whether control actually went there; when the
// branch falls through the host reports the fall-through address as target.
type CondHook func(thread ThreadID, pc, target uint64, taken bool)

// Hook observes one execution of an unconditional transfer. The outcome is
// taken by definition. For indirect forms target is resolved by the host at
// the point of transfer.
type Hook func(thread ThreadID, pc, target uint64)

// Hooks is what a DiscoverFunc attaches to an instruction. Exactly one field
// is set for an instrumented instruction; the zero value leaves the
// instruction uninstrumented and its executions silently uncaptured.
type Hooks struct {
	Cond   CondHook
	Uncond Hook
}

// None reports whether no hook is attached.
func (h Hooks) None() bool { return h.Cond == nil && h.Uncond == nil }

// DiscoverFunc is invoked by the host once per discovered control-flow
// instruction, before the instrumented code runs. It must be cheap, must not
// block, and must return the same hooks if the host re-reports an
// instruction after invalidating its code cache.
type DiscoverFunc func(inst Instruction) Hooks

// ThreadFunc is invoked by the host when a target thread starts or ends,
// on that thread.
type ThreadFunc func(thread ThreadID)

// Host is the instrumentation engine surface. Registrations happen once, at
// process start, under the host's own serialization; Detach undoes them at
// process exit. Hooks returned from the DiscoverFunc run inline in target
// threads and must return before the instrumented instruction completes.
type Host interface {
	// OnControlFlow registers the discovery callback. A second
	// registration is a host-integration failure.
	OnControlFlow(fn DiscoverFunc) error

	// OnThreadLifecycle registers the thread start/end callbacks. start
	// runs before the thread executes instrumented code; end runs after
	// its last instrumented instruction.
	OnThreadLifecycle(start, end ThreadFunc) error

	// Detach unregisters everything previously registered.
	Detach() error
}
