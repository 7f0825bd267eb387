package immediate

import (
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dtcxzyw/r6/internal/ir"
	"github.com/dtcxzyw/r6/internal/isa"
)

func TestIsInt(t *testing.T) {
	m := ir.NewModule()
	i128 := &ir.IntType{Bits: 128}

	tests := []struct {
		name  string
		v     ir.Value
		width uint32
		want  bool
	}{
		{"zero", m.IntValue(32, 0), 1, true},
		{"i64 zero", m.IntValue(64, 0), 12, true},
		{"null", m.Null(ir.Ptr), 12, true},
		{"max positive", m.IntValue(32, 2047), 12, true},
		{"too large", m.IntValue(32, 2048), 12, false},
		{"min negative", m.IntValue(32, -2048), 12, true},
		{"too small", m.IntValue(32, -2049), 12, false},
		{"i64 is rejected", m.IntValue(64, 1), 12, false},
		{"i128 is rejected", m.Int(i128, big.NewInt(1)), 12, false},
		{"i1 true is -1", m.IntValue(1, 1), 1, true},
		{"splat", m.Aggregate(&ir.VectorType{Len: 2, Elem: ir.I32},
			[]ir.Constant{m.IntValue(32, 7), m.IntValue(32, 7)}), 12, true},
		{"non-splat", m.Aggregate(&ir.VectorType{Len: 2, Elem: ir.I32},
			[]ir.Constant{m.IntValue(32, 7), m.IntValue(32, 8)}), 12, false},
		{"argument", &ir.Argument{Name: "x", Typ: ir.I32}, 12, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsInt(tc.v, tc.width))
		})
	}
}

func TestIsUInt(t *testing.T) {
	m := ir.NewModule()
	assert.True(t, IsUInt(m.IntValue(32, 63), 6))
	assert.False(t, IsUInt(m.IntValue(32, 64), 6))
	// -1 zero-extends to 2^32-1
	assert.False(t, IsUInt(m.IntValue(32, -1), 10))
	assert.True(t, IsUInt(m.IntValue(8, -1), 8))
	assert.True(t, IsUInt(m.Zero(&ir.VectorType{Len: 4, Elem: ir.I32}), 1))
}

func TestIsBitPattern(t *testing.T) {
	m := ir.NewModule()
	tests := []struct {
		bits uint32
		v    int64
		want bool
	}{
		{32, 0xff << 12, true},          // shifted run of 8 ones
		{32, 0x1ff << 12, false},        // run of 9 ones
		{32, 0x5a5a5a5a, true},          // byte splat
		{16, 0x5a5a, true},              // byte splat
		{32, 0x5a5a5a5b, false},         // not a splat
		{32, -1 << 20, true},            // ones from the top
		{32, 0x000fffff, true},          // trailing ones
		{32, 0x00f0f000, false},         // two runs
		{8, 0x93, true},                 // every byte splats itself
		{24, 0xabcdef, false},           // no byte splat, no run
		{32, 0, true},                   // all zeros
		{32, -1, true},                  // all ones
		{64, 0xff, false},               // 64-bit values are never immediates
		{32, 0x7ffffff0, false},         // a long run not reaching the top
		{32, int64(int32(-0x10)), true}, // 0xfffffff0
	}
	for _, tc := range tests {
		v := m.IntValue(tc.bits, tc.v)
		assert.Equal(t, tc.want, IsBitPattern(v), "i%d %#x", tc.bits, tc.v)
	}
}

func TestIsPowerOf2(t *testing.T) {
	m := ir.NewModule()
	assert.True(t, IsPowerOf2(m.IntValue(32, 8)))
	assert.True(t, IsPowerOf2(m.IntValue(32, 1)))
	assert.True(t, IsPowerOf2(m.IntValue(64, math.MinInt64)))
	assert.False(t, IsPowerOf2(m.IntValue(32, 0)))
	assert.False(t, IsPowerOf2(m.IntValue(32, 6)))
	assert.False(t, IsPowerOf2(m.IntValue(32, -8)))
}

func TestFloatFormats(t *testing.T) {
	m := ir.NewModule()
	f64 := &ir.FloatType{Kind: ir.Double}
	fp80 := &ir.FloatType{Kind: ir.X86FP80}

	tests := []struct {
		name   string
		v      ir.Value
		float8 bool
		half   bool
	}{
		{"one", m.Float(f64, 1, true), true, true},
		{"negative zero", m.Float(f64, math.Copysign(0, -1), true), true, true},
		{"1.125", m.Float(f64, 1.125, true), true, true},
		{"1.0625 needs 4 fraction bits", m.Float(f64, 1.0625, true), false, true},
		{"float8 max", m.Float(f64, 448, true), true, true},
		{"beyond float8", m.Float(f64, 480, true), false, true},
		{"half max", m.Float(f64, 65504, true), false, true},
		{"beyond half", m.Float(f64, 65536, true), false, false},
		{"float8 min subnormal", m.Float(f64, 0x1p-9, true), true, true},
		{"below float8 subnormal", m.Float(f64, 0x1p-10, true), false, true},
		{"half min subnormal", m.Float(f64, 0x1p-24, true), false, true},
		{"tenth", m.Float(f64, 0.1, true), false, false},
		{"infinity", m.Float(f64, math.Inf(1), true), false, true},
		{"nan", m.Float(f64, math.Float64frombits(0x7ff8000000000000), true), true, true},
		{"inexact source", m.Float(fp80, 1, false), false, false},
		{"zero vector", m.Zero(&ir.VectorType{Len: 2, Elem: f64}), true, true},
		{"integer", m.IntValue(32, 1), false, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.float8, IsFloat8(tc.v))
			assert.Equal(t, tc.half, IsHalf(tc.v))
		})
	}
}

func TestChecker(t *testing.T) {
	m := ir.NewModule()
	c1 := NewChecker(isa.Rev1)
	c2 := NewChecker(isa.Rev2)

	v := m.IntValue(32, 4000)
	assert.False(t, c1.AddSub(v))
	assert.True(t, c2.AddSub(v))

	assert.True(t, c1.ShiftAmount(m.IntValue(32, 63)))
	assert.False(t, c1.ShiftAmount(m.IntValue(32, 64)))
	assert.True(t, c1.BranchCmp(m.IntValue(32, -32)))
	assert.False(t, c1.BranchCmp(m.IntValue(32, 32)))
	assert.True(t, c1.MulDiv(m.IntValue(32, -512)))
	assert.False(t, c1.MulDivUnsigned(m.IntValue(32, -512)))

	assert.True(t, c1.LargeImm(-1<<19))
	assert.False(t, c1.LargeImm(1<<19))
	assert.True(t, c1.LargeImmWithFixup(1<<30))
	assert.False(t, c1.LargeImmWithFixup(1<<31))
	assert.True(t, c2.LargeImmWithFixup(1<<31))
}
