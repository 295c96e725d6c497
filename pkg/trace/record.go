// Package trace defines the on-disk trace record formats and the append-only
// file discipline used to capture them.
//
// Two mutually incompatible schemas are in legitimate use and a file commits
// to exactly one for its whole lifetime:
//
//   - packed: pc:u64 | tgt:u64 | flags:u32, where the flags word packs the
//     branch/jump/call/return/indirect bits, the taken bit, and a 4-bit
//     instruction-length field.
//   - tagged: pc:u64 | tgt:u64 | outcome:u32 | kind:u32, with kind drawn from
//     the branch.Kind tag space.
//
// Both schemas are little-endian, headerless and carry no record count;
// readers iterate until end of file. Taken is encoded as 1 in both schemas,
// uniformly for every record of a file.
package trace

import (
	"encoding/binary"
	"fmt"

	"github.com/amirkhaki/branchtrace/pkg/branch"
)

// Schema selects one of the two on-disk record layouts.
type Schema uint8

const (
	// Packed is the single-flags-word layout.
	Packed Schema = iota
	// Tagged is the separate outcome and kind-tag layout.
	Tagged
)

// Record sizes in bytes.
const (
	PackedSize = 20
	TaggedSize = 24

	// MaxRecordSize is large enough to encode either schema.
	MaxRecordSize = TaggedSize
)

func (s Schema) String() string {
	switch s {
	case Packed:
		return "packed"
	case Tagged:
		return "tagged"
	default:
		return fmt.Sprintf("schema(%d)", uint8(s))
	}
}

// ParseSchema is the inverse of String for the two valid schemas.
func ParseSchema(name string) (Schema, error) {
	switch name {
	case "packed":
		return Packed, nil
	case "tagged":
		return Tagged, nil
	}
	return 0, fmt.Errorf("unknown trace schema %q", name)
}

// RecordSize returns the fixed width of one encoded record.
func (s Schema) RecordSize() int {
	if s == Packed {
		return PackedSize
	}
	return TaggedSize
}

// Record is one executed control-flow instruction. It is a plain immutable
// value: no pointers, safe to serialize byte for byte.
type Record struct {
	// PC is the virtual address of the instruction.
	PC uint64

	// Target is the address control transferred to (or would have
	// transferred to, for a not-taken conditional branch the host reports
	// the fall-through address here).
	Target uint64

	// Taken is true when control actually moved to Target on this
	// execution. Unconditional kinds are taken by definition.
	Taken bool

	// Kind is the static classification of the instruction.
	Kind branch.Kind

	// Len is the instruction length in bytes. Only the packed schema
	// stores it; it survives a packed round trip but not a tagged one.
	Len uint8
}

// Packed-schema flag bits.
const (
	flagBranch   = 1 << 0
	flagJump     = 1 << 1
	flagCall     = 1 << 2
	flagRet      = 1 << 3
	flagIndirect = 1 << 4
	flagTaken    = 1 << 5

	ilenShift = 28
	ilenMask  = 0xf
)

// packFlags folds kind, outcome and instruction length into the packed
// schema's flags word.
func packFlags(r Record) uint32 {
	var flags uint32
	switch r.Kind {
	case branch.ConditionalBranch:
		flags |= flagBranch
	case branch.DirectJump, branch.IndirectJump:
		flags |= flagJump
	case branch.DirectCall, branch.IndirectCall:
		flags |= flagCall
	case branch.Return:
		flags |= flagRet
	}
	if r.Kind.Indirect() {
		flags |= flagIndirect
	}
	if r.Taken {
		flags |= flagTaken
	}
	flags |= (uint32(r.Len) & ilenMask) << ilenShift
	return flags
}

// unpackKind recovers the kind from a packed flags word. The bit groups are
// mutually exclusive by construction; precedence here mirrors the
// classification order so that a malformed word still decodes
// deterministically or not at all.
func unpackKind(flags uint32) (branch.Kind, bool) {
	ind := flags&flagIndirect != 0
	switch {
	case flags&flagBranch != 0:
		return branch.ConditionalBranch, true
	case flags&flagCall != 0:
		if ind {
			return branch.IndirectCall, true
		}
		return branch.DirectCall, true
	case flags&flagRet != 0:
		return branch.Return, true
	case flags&flagJump != 0:
		if ind {
			return branch.IndirectJump, true
		}
		return branch.DirectJump, true
	}
	return branch.Invalid, false
}

// EncodePacked encodes r in the packed-flags schema. Pure, no allocation,
// no I/O.
func EncodePacked(r Record) [PackedSize]byte {
	var b [PackedSize]byte
	binary.LittleEndian.PutUint64(b[0:8], r.PC)
	binary.LittleEndian.PutUint64(b[8:16], r.Target)
	binary.LittleEndian.PutUint32(b[16:20], packFlags(r))
	return b
}

// DecodePacked is the inverse of EncodePacked. It fails on a flags word with
// no kind bit set.
func DecodePacked(b [PackedSize]byte) (Record, error) {
	flags := binary.LittleEndian.Uint32(b[16:20])
	kind, ok := unpackKind(flags)
	if !ok {
		return Record{}, fmt.Errorf("packed record: no kind in flags %#08x", flags)
	}
	return Record{
		PC:     binary.LittleEndian.Uint64(b[0:8]),
		Target: binary.LittleEndian.Uint64(b[8:16]),
		Taken:  flags&flagTaken != 0,
		Kind:   kind,
		Len:    uint8((flags >> ilenShift) & ilenMask),
	}, nil
}

// EncodeTagged encodes r in the tagged-kind schema. Pure, no allocation,
// no I/O. The instruction length is not represented in this schema.
func EncodeTagged(r Record) [TaggedSize]byte {
	var b [TaggedSize]byte
	binary.LittleEndian.PutUint64(b[0:8], r.PC)
	binary.LittleEndian.PutUint64(b[8:16], r.Target)
	var outcome uint32
	if r.Taken {
		outcome = 1
	}
	binary.LittleEndian.PutUint32(b[16:20], outcome)
	binary.LittleEndian.PutUint32(b[20:24], uint32(r.Kind))
	return b
}

// DecodeTagged is the inverse of EncodeTagged. It fails on an outcome other
// than 0 or 1 and on a kind tag outside the closed taxonomy, both of which
// usually mean the file was written in the other schema.
func DecodeTagged(b [TaggedSize]byte) (Record, error) {
	outcome := binary.LittleEndian.Uint32(b[16:20])
	if outcome > 1 {
		return Record{}, fmt.Errorf("tagged record: bad outcome %#x", outcome)
	}
	kind := branch.Kind(binary.LittleEndian.Uint32(b[20:24]))
	if !kind.Valid() {
		return Record{}, fmt.Errorf("tagged record: bad kind tag %#x", uint32(kind))
	}
	return Record{
		PC:     binary.LittleEndian.Uint64(b[0:8]),
		Target: binary.LittleEndian.Uint64(b[8:16]),
		Taken:  outcome == 1,
		Kind:   kind,
	}, nil
}

// encode writes r into dst, which must hold at least s.RecordSize() bytes,
// and returns the number of bytes written.
func (s Schema) encode(dst []byte, r Record) int {
	if s == Packed {
		b := EncodePacked(r)
		return copy(dst, b[:])
	}
	b := EncodeTagged(r)
	return copy(dst, b[:])
}

// decode reads one record from src, which must hold at least
// s.RecordSize() bytes.
func (s Schema) decode(src []byte) (Record, error) {
	if s == Packed {
		var b [PackedSize]byte
		copy(b[:], src)
		return DecodePacked(b)
	}
	var b [TaggedSize]byte
	copy(b[:], src)
	return DecodeTagged(b)
}
