package isa

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpcodes(t *testing.T) {
	v1 := Opcodes(Rev1)
	v2 := Opcodes(Rev2)
	require.NoError(t, CheckOpcodes(v1))
	require.NoError(t, CheckOpcodes(v2))
	assert.Len(t, v2, len(v1)+6, "rev2 adds the fused multiply-add family")

	lengths := make(map[string]uint32)
	for _, op := range v1 {
		lengths[op.Mnemonic] = op.Length
	}
	assert.Equal(t, uint32(RegBits+20), lengths["LI"])
	assert.Equal(t, uint32(UnOpReg+OpTypeBits+12), lengths["ADDI"])
	assert.Equal(t, uint32(RegBits+6+OpTypeBits+4+10), lengths["BCMPI"])
	_, ok := lengths["MULIADD"]
	assert.False(t, ok)
}

func TestCheckOpcodes(t *testing.T) {
	err := CheckOpcodes([]Opcode{{"ADD", 10}, {"ADD", 12}})
	assert.ErrorIs(t, err, ErrDuplicateMnemonic)

	err = CheckOpcodes([]Opcode{{"WIDE", InstructionBits}})
	assert.ErrorIs(t, err, ErrInvalidLength)
}

func TestAssignPrefixes(t *testing.T) {
	for _, p := range Revisions() {
		t.Run(p.Name, func(t *testing.T) {
			ops := Opcodes(p)
			encs, err := AssignPrefixes(ops)
			require.NoError(t, err)
			require.Len(t, encs, len(ops))
			for i, e := range encs {
				assert.Equal(t, ops[i].Mnemonic, e.Mnemonic, "order is preserved")
				assert.Len(t, e.Binary(), int(e.PrefixBits()))
			}
			assert.True(t, Distinct(encs))
		})
	}
}

func TestAssignPrefixesCanonical(t *testing.T) {
	ops := []Opcode{
		{"C", InstructionBits - 2},
		{"A", InstructionBits - 1},
		{"B", InstructionBits - 2},
	}
	encs, err := AssignPrefixes(ops)
	require.NoError(t, err)
	assert.Equal(t, "10", encs[0].Binary())
	assert.Equal(t, "0", encs[1].Binary())
	assert.Equal(t, "11", encs[2].Binary())

	out := FormatEncodings(encs)
	assert.True(t, strings.HasPrefix(out, "           C 10\n"))
}

func TestAssignPrefixesUnsatisfiable(t *testing.T) {
	ops := []Opcode{
		{"A", InstructionBits - 1},
		{"B", InstructionBits - 1},
		{"C", InstructionBits - 1},
	}
	_, err := AssignPrefixes(ops)
	assert.ErrorIs(t, err, ErrUnsatisfiable)
}
