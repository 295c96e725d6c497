// Package x86 derives static control-flow shapes from x86-64 machine code
// using golang.org/x/arch/x86/x86asm. It implements the discovery side of an
// instrumentation host for real code: given raw bytes, it reports every
// control-flow instruction with the properties the classifier needs.
package x86

import (
	"golang.org/x/arch/x86/x86asm"

	"github.com/amirkhaki/branchtrace/pkg/branch"
	"github.com/amirkhaki/branchtrace/pkg/host"
)

// conditional holds every opcode with a fall-through path: the Jcc family
// plus the LOOP/JCXZ forms.
var conditional = map[x86asm.Op]bool{
	x86asm.JA: true, x86asm.JAE: true, x86asm.JB: true, x86asm.JBE: true,
	x86asm.JE: true, x86asm.JNE: true, x86asm.JG: true, x86asm.JGE: true,
	x86asm.JL: true, x86asm.JLE: true, x86asm.JO: true, x86asm.JNO: true,
	x86asm.JP: true, x86asm.JNP: true, x86asm.JS: true, x86asm.JNS: true,
	x86asm.JCXZ: true, x86asm.JECXZ: true, x86asm.JRCXZ: true,
	x86asm.LOOP: true, x86asm.LOOPE: true, x86asm.LOOPNE: true,
}

// Shape maps a decoded instruction to its static shape. The second return
// is false for instructions that are not a recognized control-flow form;
// those stay uninstrumented, which keeps an exotic opcode from ever breaking
// the target program.
func Shape(inst x86asm.Inst) (branch.Shape, bool) {
	switch {
	case conditional[inst.Op]:
		return branch.Shape{HasFallThrough: true}, true
	case inst.Op == x86asm.JMP || inst.Op == x86asm.LJMP:
		return branch.Shape{IsIndirect: !hasRelTarget(inst)}, true
	case inst.Op == x86asm.CALL || inst.Op == x86asm.LCALL:
		return branch.Shape{IsCall: true, IsIndirect: !hasRelTarget(inst)}, true
	case inst.Op == x86asm.RET || inst.Op == x86asm.LRET:
		// The return address comes off the stack at runtime.
		return branch.Shape{IsReturn: true, IsIndirect: true}, true
	}
	return branch.Shape{}, false
}

// hasRelTarget reports whether the transfer destination is a pc-relative
// displacement fixed in the encoding.
func hasRelTarget(inst x86asm.Inst) bool {
	_, ok := inst.Args[0].(x86asm.Rel)
	return ok
}

// Target computes the statically known destination of a direct transfer at
// pc. It returns false for indirect forms, whose destination only exists at
// runtime.
func Target(inst x86asm.Inst, pc uint64) (uint64, bool) {
	rel, ok := inst.Args[0].(x86asm.Rel)
	if !ok {
		return 0, false
	}
	return uint64(int64(pc) + int64(inst.Len) + int64(rel)), true
}

// Scan decodes a flat code buffer loaded at base and reports every
// recognized control-flow instruction in address order. mode is the
// processor mode in bits (16, 32 or 64). Undecodable bytes are skipped one
// at a time, the way a host resynchronizes over data embedded in text.
func Scan(code []byte, base uint64, mode int) []host.Instruction {
	var out []host.Instruction
	offset := 0
	for offset < len(code) {
		inst, err := x86asm.Decode(code[offset:], mode)
		if err != nil {
			offset++
			continue
		}
		if shape, ok := Shape(inst); ok {
			out = append(out, host.Instruction{
				PC:    base + uint64(offset),
				Len:   uint8(inst.Len),
				Shape: shape,
			})
		}
		offset += inst.Len
	}
	return out
}
