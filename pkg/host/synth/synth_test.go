package synth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirkhaki/branchtrace/pkg/branch"
	"github.com/amirkhaki/branchtrace/pkg/host"
	"github.com/amirkhaki/branchtrace/pkg/host/synth"
)

func oneJump() synth.Program {
	return synth.Program{
		Code: []host.Instruction{
			{PC: 0x1000, Len: 5, Shape: branch.Shape{}},
		},
		Steps: []synth.Step{
			{Thread: 1, PC: 0x1000, Target: 0x2000, Taken: true},
		},
	}
}

func TestRunFiresHooksAndLifecycle(t *testing.T) {
	h := synth.New(oneJump())

	var events []string
	require.NoError(t, h.OnControlFlow(func(inst host.Instruction) host.Hooks {
		events = append(events, "discover")
		return host.Hooks{
			Uncond: func(thread host.ThreadID, pc, target uint64) {
				events = append(events, "exec")
				assert.Equal(t, host.ThreadID(1), thread)
				assert.Equal(t, uint64(0x1000), pc)
				assert.Equal(t, uint64(0x2000), target)
			},
		}
	}))
	require.NoError(t, h.OnThreadLifecycle(
		func(thread host.ThreadID) { events = append(events, "start") },
		func(thread host.ThreadID) { events = append(events, "end") },
	))

	require.NoError(t, h.Run())
	assert.Equal(t, []string{"discover", "start", "exec", "end"}, events)
}

func TestDoubleRegistrationFails(t *testing.T) {
	h := synth.New(oneJump())
	nop := func(inst host.Instruction) host.Hooks { return host.Hooks{} }
	require.NoError(t, h.OnControlFlow(nop))
	assert.Error(t, h.OnControlFlow(nop))

	tf := func(thread host.ThreadID) {}
	require.NoError(t, h.OnThreadLifecycle(tf, tf))
	assert.Error(t, h.OnThreadLifecycle(tf, tf))
}

func TestDetach(t *testing.T) {
	h := synth.New(oneJump())
	assert.Error(t, h.Detach(), "nothing registered yet")

	require.NoError(t, h.OnControlFlow(
		func(inst host.Instruction) host.Hooks { return host.Hooks{} }))
	assert.NoError(t, h.Detach())
}

func TestRunRejectsUnknownPC(t *testing.T) {
	prog := oneJump()
	prog.Steps = append(prog.Steps, synth.Step{Thread: 1, PC: 0xdead})
	h := synth.New(prog)
	require.NoError(t, h.OnControlFlow(
		func(inst host.Instruction) host.Hooks { return host.Hooks{} }))
	assert.Error(t, h.Run())
}

func TestUnattachedInstructionRunsUncaptured(t *testing.T) {
	h := synth.New(oneJump())
	captured := 0
	require.NoError(t, h.OnControlFlow(func(inst host.Instruction) host.Hooks {
		// Attach nothing: the step must still execute without error.
		return host.Hooks{}
	}))
	require.NoError(t, h.Run())
	assert.Zero(t, captured)
	assert.True(t, h.Attached(0x1000).None())
}
