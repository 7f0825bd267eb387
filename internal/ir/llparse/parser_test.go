package llparse

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtcxzyw/r6/internal/ir"
)

const loopModule = `; ModuleID = 'loop.c'
source_filename = "loop.c"
target datalayout = "e-m:e-p270:32:32-p271:32:32-p272:64:64-i64:64-i128:128-f80:128-n8:16:32:64-S128"
target triple = "x86_64-unknown-linux-gnu"

%struct.pair = type { i32, i64 }

@g = dso_local global i32 0, align 4

; Function Attrs: nounwind
define dso_local i32 @sum(i32 noundef %n) local_unnamed_addr #0 {
entry:
  %cmp = icmp sgt i32 %n, 0
  br i1 %cmp, label %loop, label %exit

loop:                                             ; preds = %entry, %loop
  %i = phi i32 [ 0, %entry ], [ %next, %loop ]
  %acc = phi i32 [ 0, %entry ], [ %add, %loop ]
  %add = add nsw i32 %acc, %i
  %next = add nuw nsw i32 %i, 1
  %done = icmp eq i32 %next, %n
  br i1 %done, label %exit, label %loop, !llvm.loop !5

exit:
  %r = phi i32 [ 0, %entry ], [ %add, %loop ]
  ret i32 %r
}

define ptr @sw(i32 %c, ptr %p, i64 %i) {
entry:
  switch i32 %c, label %def [
    i32 1, label %a
    i32 7, label %def
  ]

a:
  %q = getelementptr inbounds [4 x %struct.pair], ptr %p, i64 %i, i64 2, i32 1
  %v = load i32, ptr @g, align 4, !tbaa !7
  store i32 %v, ptr %q, align 4
  ret ptr %q

def:
  unreachable
}

declare void @llvm.dbg.value(metadata, metadata, metadata) #1

attributes #0 = { nounwind willreturn memory(none) "frame-pointer"="none" }
attributes #1 = { nocallback nofree nosync nounwind speculatable willreturn memory(none) }

!5 = distinct !{!5, !6}
!6 = !{!"llvm.loop.mustprogress"}
!7 = !{!"int"}
`

func mustParse(t *testing.T, src string) *ir.Module {
	t.Helper()
	m, err := Parse("test.ll", []byte(src))
	require.NoError(t, err)
	return m
}

func lookupFunc(t *testing.T, m *ir.Module, name string) *ir.Function {
	t.Helper()
	v, ok := m.Lookup(name)
	require.True(t, ok, "missing @%s", name)
	fn, ok := v.(*ir.Function)
	require.True(t, ok)
	return fn
}

func TestParseModule(t *testing.T) {
	m := mustParse(t, loopModule)

	require.Len(t, m.Funcs, 3)
	assert.Equal(t, uint64(8), m.Layout.ABIAlign(ir.I64))
	assert.Equal(t, uint64(16), m.Layout.AllocSize(m.Types["struct.pair"]))

	g, ok := m.Lookup("g")
	require.True(t, ok)
	assert.IsType(t, &ir.GlobalVar{}, g)

	dbg := lookupFunc(t, m, "llvm.dbg.value")
	assert.True(t, dbg.IsDeclaration())
	assert.Equal(t, ir.IntrinsicDbgValue, dbg.Intrinsic)

	sum := lookupFunc(t, m, "sum")
	assert.True(t, sum.Attrs.NoUnwind)
	assert.True(t, sum.Attrs.WillReturn)
	assert.False(t, sum.Attrs.MayWriteMemory())
	require.Len(t, sum.Blocks, 3)

	entry, loop, exit := sum.Blocks[0], sum.Blocks[1], sum.Blocks[2]
	assert.Equal(t, "entry", entry.Name)
	assert.Equal(t, []*ir.Block{loop, exit}, entry.Succs())

	phis := loop.Phis()
	require.Len(t, phis, 2)
	next := loop.Insts[3]
	assert.Equal(t, "next", next.Name)
	// forward references resolve to the defining instruction
	assert.Same(t, next, phis[0].Ops[1])
	assert.Same(t, loop, phis[0].Incoming[1])
	// equal constants are shared
	assert.Same(t, phis[0].Ops[0], phis[1].Ops[0])

	add := loop.Insts[2]
	assert.Equal(t, ir.OpAdd, add.Op)
	assert.True(t, add.Flags.Has(ir.FlagNSW))
	assert.False(t, add.Flags.Has(ir.FlagNUW))
	assert.True(t, next.Flags.Has(ir.FlagNUW|ir.FlagNSW))

	br := loop.Terminator()
	require.NotNil(t, br)
	assert.Equal(t, []*ir.Block{exit, loop}, br.Succs)
	assert.Equal(t, ir.IEQ, loop.Insts[4].Pred)
	assert.Same(t, sum.Params[0], loop.Insts[4].Ops[1])
}

func TestParseMemoryAndSwitch(t *testing.T) {
	m := mustParse(t, loopModule)
	sw := lookupFunc(t, m, "sw")
	require.Len(t, sw.Blocks, 3)

	term := sw.Blocks[0].Terminator()
	require.NotNil(t, term)
	assert.Equal(t, ir.OpSwitch, term.Op)
	assert.Len(t, term.Ops, 3)
	require.Len(t, term.Succs, 3)
	assert.Equal(t, "def", term.Succs[0].Name)
	assert.Equal(t, "a", term.Succs[1].Name)

	a := sw.Blocks[1]
	gep := a.Insts[0]
	assert.Equal(t, ir.OpGetElementPtr, gep.Op)
	assert.True(t, gep.Flags.Has(ir.FlagInBounds))
	require.Len(t, gep.Ops, 4)
	assert.IsType(t, &ir.ArrayType{}, gep.ElemType)

	offset, vars, ok := m.Layout.GEPOffsets(gep)
	require.True(t, ok)
	assert.Equal(t, int64(2*16+8), offset)
	require.Len(t, vars, 1)
	assert.Same(t, sw.Params[2], vars[0].Index)
	assert.Equal(t, int64(64), vars[0].Scale)

	load := a.Insts[1]
	assert.Equal(t, ir.OpLoad, load.Op)
	assert.Equal(t, ir.I32.String(), load.Typ.String())
	store := a.Insts[2]
	assert.Same(t, load, store.Ops[0])
	assert.Same(t, gep, store.Ops[1])
}

func TestParseExceptionHandling(t *testing.T) {
	m := mustParse(t, `
define void @f() personality ptr @__gxx_personality_v0 {
entry:
  invoke void @g() #0
          to label %cont unwind label %lpad

cont:
  ret void

lpad:
  %lp = landingpad { ptr, i32 }
          cleanup
          catch ptr null
  resume { ptr, i32 } %lp
}

declare void @g()

declare i32 @__gxx_personality_v0(...)

attributes #0 = { nounwind }
`)
	f := lookupFunc(t, m, "f")
	require.Len(t, f.Blocks, 3)

	invoke := f.Blocks[0].Terminator()
	require.NotNil(t, invoke)
	assert.Equal(t, ir.OpInvoke, invoke.Op)
	assert.Equal(t, []*ir.Block{f.Blocks[1], f.Blocks[2]}, invoke.Succs)
	assert.True(t, invoke.Attrs.NoUnwind)
	assert.Same(t, lookupFunc(t, m, "g"), invoke.CalledFunction())

	lpad := f.Blocks[2].Insts
	require.Len(t, lpad, 2)
	assert.Equal(t, ir.OpLandingPad, lpad[0].Op)
	assert.Len(t, lpad[0].Ops, 1)
	assert.Equal(t, ir.OpResume, lpad[1].Op)
	assert.True(t, lookupFunc(t, m, "__gxx_personality_v0").Sig.Variadic)
}

func TestParseSkipsDebugInfo(t *testing.T) {
	m := mustParse(t, `
define i32 @h(i32 %x) {
  %y = mul i32 %x, 3, !dbg !10
    #dbg_value(i32 %y, !11, !DIExpression(), !10)
  call void @llvm.dbg.value(metadata i32 %y, metadata !11, metadata !DIExpression()), !dbg !10
  %z = call fast float @llvm.fabs.f32(float 0x3FF0000000000000)
  ret i32 %y
}

declare void @llvm.dbg.value(metadata, metadata, metadata)
declare float @llvm.fabs.f32(float)
`)
	h := lookupFunc(t, m, "h")
	require.Len(t, h.Blocks, 1)
	assert.Equal(t, "0", h.Blocks[0].Name)
	insts := h.Blocks[0].Insts
	require.Len(t, insts, 4)
	assert.Equal(t, ir.IntrinsicDbgValue, insts[1].IntrinsicID())
	assert.Equal(t, ir.IntrinsicFAbs, insts[2].IntrinsicID())
	c, ok := insts[2].Ops[0].(*ir.ConstFloat)
	require.True(t, ok)
	assert.Equal(t, 1.0, c.V)
	assert.True(t, c.Exact)
}

func TestParseVectorConstants(t *testing.T) {
	m := mustParse(t, `
define <4 x i32> @v(<4 x i32> %a) {
entry:
  %b = add <4 x i32> %a, <i32 1, i32 1, i32 1, i32 1>
  %c = and <4 x i32> %b, splat (i32 1)
  %d = xor <4 x i32> %c, zeroinitializer
  ret <4 x i32> %d
}
`)
	insts := lookupFunc(t, m, "v").Blocks[0].Insts
	lit, ok := insts[0].Ops[1].(*ir.ConstAggregate)
	require.True(t, ok)
	splat, ok := lit.Splat()
	require.True(t, ok)
	assert.Equal(t, "1", splat.Ident())
	// the splat spelling interns to the same vector constant
	assert.Same(t, lit, insts[1].Ops[1])
	assert.IsType(t, &ir.ConstZero{}, insts[2].Ops[1])
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{{
		name: "undefined value",
		src:  "define i32 @f() {\nentry:\n  ret i32 %nope\n}\n",
	}, {
		name: "unknown instruction",
		src:  "define i32 @f() {\nentry:\n  %x = frobnicate i32 1\n  ret i32 %x\n}\n",
	}, {
		name: "unterminated body",
		src:  "define void @f() {\nentry:\n  ret void\n",
	}, {
		name: "missing terminator",
		src:  "define void @f() {\nentry:\n  %x = add i32 1, 2\n}\n",
	}, {
		name: "undefined block",
		src:  "define void @f() {\nentry:\n  br label %missing\n}\n",
	}, {
		name: "redefined value",
		src:  "define i32 @f() {\nentry:\n  %x = add i32 1, 2\n  %x = add i32 1, 3\n  ret i32 %x\n}\n",
	}, {
		name: "undefined global",
		src:  "define void @f() {\nentry:\n  call void @g()\n  ret void\n}\n",
	}}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse("bad.ll", []byte(tc.src))
			require.ErrorIs(t, err, ErrSyntax)
		})
	}
}

func TestDecodeFloat(t *testing.T) {
	tests := []struct {
		name  string
		kind  ir.FloatKind
		text  string
		want  float64
		exact bool
	}{
		{"decimal", ir.Double, "1.500000e+00", 1.5, true},
		{"double bits", ir.Double, "0x3FF0000000000000", 1, true},
		{"float as double bits", ir.Float, "0x3FB99999A0000000", float64(float32(0.1)), true},
		{"half", ir.Half, "0xH3C00", 1, true},
		{"half subnormal", ir.Half, "0xH0001", math.Ldexp(1, -24), true},
		{"bfloat", ir.BFloat, "0xR3F80", 1, true},
		{"x86_fp80 one", ir.X86FP80, "0xK3FFF8000000000000000", 1, true},
		{"x86_fp80 extra bits", ir.X86FP80, "0xK3FFF8000000000000001", 1, false},
		{"fp128 one", ir.FP128, "0xL00000000000000003FFF000000000000", 1, true},
		{"fp128 extra bits", ir.FP128, "0xL00000000000000013FFF000000000000", 1, false},
		{"ppc_fp128 one", ir.PPCFP128, "0xM3FF00000000000000000000000000000", 1, true},
		{"fp128 decimal fraction", ir.FP128, "1.250000e-01", 0.125, false},
		{"fp128 decimal integer", ir.FP128, "2.000000e+00", 2, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v, exact, err := decodeFloat(tc.kind, tc.text)
			require.NoError(t, err)
			assert.Equal(t, tc.want, v)
			assert.Equal(t, tc.exact, exact)
		})
	}
}

func TestDecodeFloatSpecials(t *testing.T) {
	v, exact, err := decodeFloat(ir.Half, "0xH7C00")
	require.NoError(t, err)
	assert.True(t, math.IsInf(v, 1))
	assert.True(t, exact)

	v, _, err = decodeFloat(ir.Double, "0x7FF8000000000000")
	require.NoError(t, err)
	assert.True(t, math.IsNaN(v))

	_, _, err = decodeFloat(ir.X86FP80, "0xK3FFF")
	require.Error(t, err)
}
