package x86_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/arch/x86/x86asm"

	"github.com/amirkhaki/branchtrace/pkg/branch"
	x86 "github.com/amirkhaki/branchtrace/pkg/host/x86"
)

func decode(t *testing.T, code []byte) x86asm.Inst {
	t.Helper()
	inst, err := x86asm.Decode(code, 64)
	require.NoError(t, err)
	return inst
}

func TestShape(t *testing.T) {
	cases := []struct {
		name string
		code []byte
		want branch.Kind
	}{
		{"jmp rel8", []byte{0xeb, 0x05}, branch.DirectJump},
		{"jmp rel32", []byte{0xe9, 0x00, 0x01, 0x00, 0x00}, branch.DirectJump},
		{"jmp rax", []byte{0xff, 0xe0}, branch.IndirectJump},
		{"jmp [rax]", []byte{0xff, 0x20}, branch.IndirectJump},
		{"call rel32", []byte{0xe8, 0x00, 0x00, 0x00, 0x00}, branch.DirectCall},
		{"call rax", []byte{0xff, 0xd0}, branch.IndirectCall},
		{"ret", []byte{0xc3}, branch.Return},
		{"je rel8", []byte{0x74, 0x03}, branch.ConditionalBranch},
		{"jne rel8", []byte{0x75, 0xfe}, branch.ConditionalBranch},
		{"loop", []byte{0xe2, 0xfc}, branch.ConditionalBranch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			shape, ok := x86.Shape(decode(t, tc.code))
			require.True(t, ok, "recognized control flow")
			assert.Equal(t, tc.want, branch.Classify(shape))
		})
	}
}

func TestShapeIgnoresStraightLineCode(t *testing.T) {
	for _, code := range [][]byte{
		{0x90},                         // nop
		{0x48, 0x89, 0xc3},             // mov rbx, rax
		{0xb8, 0x01, 0x00, 0x00, 0x00}, // mov eax, 1
	} {
		_, ok := x86.Shape(decode(t, code))
		assert.False(t, ok, "% x", code)
	}
}

func TestTarget(t *testing.T) {
	inst := decode(t, []byte{0xeb, 0x05}) // jmp +5
	target, ok := x86.Target(inst, 0x1000)
	require.True(t, ok)
	assert.Equal(t, uint64(0x1007), target)

	inst = decode(t, []byte{0x75, 0xfe}) // jne -2 (self)
	target, ok = x86.Target(inst, 0x2000)
	require.True(t, ok)
	assert.Equal(t, uint64(0x2000), target)

	inst = decode(t, []byte{0xff, 0xe0}) // jmp rax
	_, ok = x86.Target(inst, 0x1000)
	assert.False(t, ok, "indirect target is runtime-only")
}

func TestScan(t *testing.T) {
	// 0x1000: mov eax, 1
	// 0x1005: je +3
	// 0x1007: call rel32 0
	// 0x100c: nop
	// 0x100d: ret
	code := []byte{
		0xb8, 0x01, 0x00, 0x00, 0x00,
		0x74, 0x03,
		0xe8, 0x00, 0x00, 0x00, 0x00,
		0x90,
		0xc3,
	}
	insts := x86.Scan(code, 0x1000, 64)
	require.Len(t, insts, 3)

	assert.Equal(t, uint64(0x1005), insts[0].PC)
	assert.Equal(t, uint8(2), insts[0].Len)
	assert.Equal(t, branch.ConditionalBranch, branch.Classify(insts[0].Shape))

	assert.Equal(t, uint64(0x1007), insts[1].PC)
	assert.Equal(t, uint8(5), insts[1].Len)
	assert.Equal(t, branch.DirectCall, branch.Classify(insts[1].Shape))

	assert.Equal(t, uint64(0x100d), insts[2].PC)
	assert.Equal(t, uint8(1), insts[2].Len)
	assert.Equal(t, branch.Return, branch.Classify(insts[2].Shape))
}

func TestScanResyncsOverGarbage(t *testing.T) {
	// 0x06 (push es) does not decode in 64-bit mode; the scanner steps
	// over it a byte at a time and still finds the ret behind it.
	code := []byte{0x06, 0x06, 0xc3}
	insts := x86.Scan(code, 0x4000, 64)
	require.Len(t, insts, 1)
	assert.Equal(t, uint64(0x4002), insts[0].PC)
	assert.Equal(t, branch.Return, branch.Classify(insts[0].Shape))
}
