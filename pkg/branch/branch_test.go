package branch_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/amirkhaki/branchtrace/pkg/branch"
)

func allShapes() []branch.Shape {
	var shapes []branch.Shape
	for i := 0; i < 16; i++ {
		shapes = append(shapes, branch.Shape{
			HasFallThrough: i&1 != 0,
			IsCall:         i&2 != 0,
			IsReturn:       i&4 != 0,
			IsIndirect:     i&8 != 0,
		})
	}
	return shapes
}

// Every representable shape must map to exactly one valid kind.
func TestClassifyTotality(t *testing.T) {
	for _, s := range allShapes() {
		k := branch.Classify(s)
		assert.True(t, k.Valid(), "shape %+v classified as %v", s, k)
	}
}

func TestClassifyFallThroughWins(t *testing.T) {
	// A fall-through path means conditional branch, no matter what other
	// hints the host reports alongside it.
	for _, s := range allShapes() {
		if !s.HasFallThrough {
			continue
		}
		assert.Equal(t, branch.ConditionalBranch, branch.Classify(s),
			"shape %+v", s)
	}
}

func TestClassifyPriority(t *testing.T) {
	cases := []struct {
		name  string
		shape branch.Shape
		want  branch.Kind
	}{
		{"direct jump", branch.Shape{}, branch.DirectJump},
		{"indirect jump", branch.Shape{IsIndirect: true}, branch.IndirectJump},
		{"direct call", branch.Shape{IsCall: true}, branch.DirectCall},
		{"indirect call", branch.Shape{IsCall: true, IsIndirect: true}, branch.IndirectCall},
		{"return", branch.Shape{IsReturn: true}, branch.Return},
		{"return indirect", branch.Shape{IsReturn: true, IsIndirect: true}, branch.Return},
		// Call and return flags together should never happen, but the
		// ordering must still be deterministic: call wins.
		{"call beats return", branch.Shape{IsCall: true, IsReturn: true}, branch.DirectCall},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, branch.Classify(tc.shape))
		})
	}
}

func TestKindPredicates(t *testing.T) {
	assert.True(t, branch.ConditionalBranch.Conditional())
	assert.False(t, branch.DirectJump.Conditional())

	assert.True(t, branch.IndirectJump.Indirect())
	assert.True(t, branch.IndirectCall.Indirect())
	assert.True(t, branch.Return.Indirect())
	assert.False(t, branch.DirectJump.Indirect())
	assert.False(t, branch.DirectCall.Indirect())
	assert.False(t, branch.ConditionalBranch.Indirect())

	assert.False(t, branch.Invalid.Valid())
	for _, k := range branch.Kinds {
		assert.True(t, k.Valid())
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "cond_brn", branch.ConditionalBranch.String())
	assert.Equal(t, "return", branch.Return.String())
	assert.Equal(t, "invalid", branch.Invalid.String())
	assert.Equal(t, "invalid", branch.Kind(0xdead).String())
}
