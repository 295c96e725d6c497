// Package branch defines the taxonomy of control-flow instructions and the
// static classification rules that assign each instruction exactly one kind.
package branch

// Kind is the type of a control-flow instruction. Every control-flow
// instruction belongs to exactly one kind, decided statically at
// instrumentation time. The numeric values double as the on-disk tags of the
// tagged-kind trace schema; the low bit marks indirection.
type Kind uint32

const (
	Invalid           Kind = 0x00
	ConditionalBranch Kind = 0x10
	DirectJump        Kind = 0x20
	IndirectJump      Kind = 0x21
	DirectCall        Kind = 0x40
	IndirectCall      Kind = 0x41
	Return            Kind = 0x81
)

// Kinds lists every valid kind, in tag order.
var Kinds = []Kind{
	ConditionalBranch,
	DirectJump,
	IndirectJump,
	DirectCall,
	IndirectCall,
	Return,
}

func (k Kind) String() string {
	switch k {
	case ConditionalBranch:
		return "cond_brn"
	case DirectJump:
		return "direct_jump"
	case IndirectJump:
		return "indirect_jump"
	case DirectCall:
		return "direct_call"
	case IndirectCall:
		return "indirect_call"
	case Return:
		return "return"
	default:
		return "invalid"
	}
}

// Valid reports whether k is a member of the closed taxonomy.
func (k Kind) Valid() bool {
	switch k {
	case ConditionalBranch, DirectJump, IndirectJump,
		DirectCall, IndirectCall, Return:
		return true
	}
	return false
}

// Conditional reports whether instructions of this kind have a fall-through
// path, i.e. whether their taken/not-taken outcome is decided at runtime.
// All other kinds always transfer control.
func (k Kind) Conditional() bool {
	return k == ConditionalBranch
}

// Indirect reports whether the destination of this kind is computed at
// runtime rather than fixed in the instruction encoding. Returns always pull
// their destination off the stack, so they count as indirect.
func (k Kind) Indirect() bool {
	return k&0x01 != 0
}

// Call reports whether k is a call of either addressing form.
func (k Kind) Call() bool {
	return k == DirectCall || k == IndirectCall
}

// Shape is the static description of a control-flow instruction, as reported
// by the instrumentation host during code generation. It carries everything
// classification needs and nothing runtime-dependent.
type Shape struct {
	// HasFallThrough is true when execution can continue at the next
	// sequential instruction, i.e. the transfer is conditional.
	HasFallThrough bool

	// IsCall is true for call instructions.
	IsCall bool

	// IsReturn is true for return instructions.
	IsReturn bool

	// IsIndirect is true when the destination is computed at runtime
	// (register or memory operand) rather than encoded in the instruction.
	IsIndirect bool
}

// Classify maps a static shape to its kind. The decision is total and
// deterministic: a fall-through path makes the instruction a conditional
// branch regardless of any other hint; otherwise call beats return beats
// plain jump, with indirection selecting between the direct and indirect
// variants. Called once per discovered instruction, never per execution.
func Classify(s Shape) Kind {
	if s.HasFallThrough {
		return ConditionalBranch
	}
	switch {
	case s.IsCall:
		if s.IsIndirect {
			return IndirectCall
		}
		return DirectCall
	case s.IsReturn:
		return Return
	case s.IsIndirect:
		return IndirectJump
	default:
		return DirectJump
	}
}
