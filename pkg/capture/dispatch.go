package capture

import (
	"github.com/amirkhaki/branchtrace/pkg/branch"
	"github.com/amirkhaki/branchtrace/pkg/host"
	"github.com/amirkhaki/branchtrace/pkg/trace"
)

// discover is the host's code-generation callback: it classifies one
// reported control-flow instruction and returns the hooks to attach.
// The classification happens here, once per instruction; the hooks it
// produces then fire once per execution.
//
// Attachments are cached by instruction address, so when the host
// invalidates its code cache and re-reports a region, every instruction gets
// its previous attachment back instead of a second one.
func (c *Context) discover(inst host.Instruction) host.Hooks {
	c.mu.Lock()
	defer c.mu.Unlock()
	if hooks, ok := c.attached[inst.PC]; ok {
		return hooks
	}
	hooks := c.makeHooks(inst)
	c.attached[inst.PC] = hooks
	return hooks
}

// makeHooks picks the runtime callback for one instruction by its kind.
// Conditional branches get the three-operand hook carrying the runtime
// outcome; every unconditional form gets the two-operand hook with the
// outcome fixed to taken. A kind outside the taxonomy gets no hook at all:
// the instruction runs uninstrumented and its executions go uncaptured,
// which is always preferable to interfering with the target program.
func (c *Context) makeHooks(inst host.Instruction) host.Hooks {
	kind := branch.Classify(inst.Shape)
	ilen := inst.Len

	switch kind {
	case branch.ConditionalBranch:
		return host.Hooks{
			Cond: func(t host.ThreadID, pc, target uint64, taken bool) {
				c.append(t, trace.Record{
					PC:     pc,
					Target: target,
					Taken:  taken,
					Kind:   branch.ConditionalBranch,
					Len:    ilen,
				})
			},
		}
	case branch.DirectJump, branch.IndirectJump,
		branch.DirectCall, branch.IndirectCall, branch.Return:
		return host.Hooks{
			Uncond: func(t host.ThreadID, pc, target uint64) {
				c.append(t, trace.Record{
					PC:     pc,
					Target: target,
					Taken:  true,
					Kind:   kind,
					Len:    ilen,
				})
			},
		}
	default:
		return host.Hooks{}
	}
}
