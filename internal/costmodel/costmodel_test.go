package costmodel

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtcxzyw/r6/internal/ir"
	"github.com/dtcxzyw/r6/internal/ir/llparse"
	"github.com/dtcxzyw/r6/internal/isa"
)

func parseModule(t *testing.T, src string) *ir.Module {
	t.Helper()
	m, err := llparse.Parse("test.ll", []byte(src))
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

func estimate(t *testing.T, src, name string) uint64 {
	t.Helper()
	m := parseModule(t, src)
	return New(isa.Rev1, Reference).Estimate(lookupFunc(t, m, name))
}

func TestRuleTableComplete(t *testing.T) {
	for op := ir.Opcode(0); op < ir.NumOpcodes; op++ {
		assert.NotNil(t, rules[op], "no rule for %s", op)
	}
}

func TestUnhandledInstructionPanics(t *testing.T) {
	m := parseModule(t, "define void @f() {\n  ret void\n}\n")
	e := New(isa.Rev1, Reference).newEstimator(lookupFunc(t, m, "f"), false)
	assert.Panics(t, func() { e.visit(&ir.Inst{Op: ir.NumOpcodes}) })
}

func TestInstructionCosts(t *testing.T) {
	tests := []struct {
		name string
		body string
		want uint64
	}{
		{
			name: "add immediate",
			body: "%r = add i32 %x, 100\n  ret i32 %r",
			want: 2,
		},
		{
			name: "add needs a fixup constant",
			body: "%r = add i32 %x, 1000000\n  ret i32 %r",
			want: 1 + 1 + 2,
		},
		{
			name: "oversized constant reused",
			body: "%a = add i32 %x, 1000000\n  %r = add i32 %a, 1000000\n  ret i32 %r",
			want: 1 + 1 + 1 + 2,
		},
		{
			name: "64-bit immediates are materialized",
			body: "%w = sext i32 %x to i64\n  %a = add i64 %w, 1\n  %r = trunc i64 %a to i32\n  ret i32 %r",
			want: 1 + 1 + 1 + 0 + 1,
		},
		{
			name: "sub immediate minuend",
			body: "%r = sub i32 7, %y\n  ret i32 %r",
			want: 2,
		},
		{
			name: "sub immediate subtrahend",
			body: "%r = sub i32 %x, 7\n  ret i32 %r",
			want: 1 + 1 + 1,
		},
		{
			name: "mul by power of two",
			body: "%r = mul i32 %x, 8\n  ret i32 %r",
			want: 2,
		},
		{
			name: "mul immediate",
			body: "%r = mul i32 %x, 100\n  ret i32 %r",
			want: 2,
		},
		{
			name: "mul by a large constant",
			body: "%r = mul i32 %x, 1000\n  ret i32 %r",
			want: 1 + CostMul + 1,
		},
		{
			name: "shift by immediate",
			body: "%r = shl i32 %x, 3\n  ret i32 %r",
			want: 2,
		},
		{
			name: "immediate shifted by register",
			body: "%r = shl i32 1, %y\n  ret i32 %r",
			want: 2,
		},
		{
			name: "and-not",
			body: "%n = xor i32 %y, -1\n  %r = and i32 %x, %n\n  ret i32 %r",
			want: 2,
		},
		{
			name: "or with bit pattern",
			body: "%r = or i32 %x, -256\n  ret i32 %r",
			want: 2,
		},
		{
			name: "udiv",
			body: "%r = udiv i32 %x, %y\n  ret i32 %r",
			want: 1 + CostDiv,
		},
		{
			name: "unused udiv is free",
			body: "%d = udiv i32 %x, %y\n  ret i32 %x",
			want: 1,
		},
		{
			name: "select",
			body: "%c = icmp ult i32 %x, %y\n  %r = select i1 %c, i32 %x, i32 -1\n  ret i32 %r",
			want: 1 + 1 + 1,
		},
		{
			name: "zext nneg",
			body: "%w = zext nneg i32 %x to i64\n  %r = trunc nsw i64 %w to i32\n  ret i32 %r",
			want: 1,
		},
		{
			name: "zext",
			body: "%w = zext i32 %x to i64\n  %r = trunc i64 %w to i32\n  ret i32 %r",
			want: 3,
		},
		{
			name: "freeze",
			body: "%r = freeze i32 %x\n  ret i32 %r",
			want: 1,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			src := "define i32 @f(i32 %x, i32 %y) {\nentry:\n  " + tc.body + "\n}\n"
			assert.Equal(t, tc.want, estimate(t, src, "f"))
		})
	}
}

func TestFloatCosts(t *testing.T) {
	tests := []struct {
		name string
		body string
		want uint64
	}{
		{
			name: "class test",
			body: "%c = fcmp oeq float %x, 0.0\n  ret i1 %c",
			want: 1 + CostCheapFloat,
		},
		{
			name: "small immediate",
			body: "%c = fcmp olt float %x, 1.5\n  ret i1 %c",
			want: 1 + CostCheapFloat,
		},
		{
			name: "constant pool",
			body: "%c = fcmp olt float %x, 0x3FB99999A0000000\n  ret i1 %c",
			want: 1 + CostCheapFloat + CostLoadStore,
		},
		{
			name: "half constant",
			body: "%c = fcmp olt float %x, 1.0625\n  ret i1 %c",
			want: 1 + CostCheapFloat + CostCheapFloat,
		},
		{
			name: "fdiv",
			body: "%d = fdiv float %x, %y\n  %c = fcmp olt float %d, %y\n  ret i1 %c",
			want: 1 + CostCheapFloat + CostFDiv,
		},
		{
			name: "reverse subtract immediate",
			body: "%d = fsub float 2.0, %x\n  %c = fcmp olt float %d, %y\n  ret i1 %c",
			want: 1 + CostCheapFloat + CostCheapFloat,
		},
		{
			name: "negated abs",
			body: "%a = call float @llvm.fabs.f32(float %x)\n  %n = fneg float %a\n  %c = fcmp olt float %n, %y\n  ret i1 %c",
			want: 1 + CostCheapFloat + CostCheapFloat,
		},
		{
			name: "fma",
			body: "%m = call float @llvm.fma.f32(float %x, float %y, float 1.0)\n  %c = fcmp olt float %m, %y\n  ret i1 %c",
			want: 1 + CostCheapFloat + CostFMul + CostCheapFloat,
		},
		{
			name: "fptosi",
			body: "%i = fptosi float %x to i32\n  %c = icmp eq i32 %i, 0\n  ret i1 %c",
			want: 1 + 1 + CostCheapFloat,
		},
	}
	decls := "declare float @llvm.fabs.f32(float)\ndeclare float @llvm.fma.f32(float, float, float)\n"
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			src := decls + "define i1 @f(float %x, float %y) {\nentry:\n  " + tc.body + "\n}\n"
			assert.Equal(t, tc.want, estimate(t, src, "f"))
		})
	}
}

const intrinsicModule = `
declare i32 @llvm.abs.i32(i32, i1)
declare i32 @llvm.ctpop.i32(i32)
declare i32 @llvm.smax.i32(i32, i32)
declare void @llvm.memcpy.p0.p0.i64(ptr, ptr, i64, i1)
declare void @llvm.lifetime.start.p0(i64, ptr)
declare i32 @ext(i32)

define i32 @k(i32 %a, i32 %b, ptr %p, ptr %q) {
entry:
  %d = sub i32 %a, %b
  %ad = call i32 @llvm.abs.i32(i32 %d, i1 false)
  %pc = call i32 @llvm.ctpop.i32(i32 %ad)
  %mx = call i32 @llvm.smax.i32(i32 %pc, i32 7)
  call void @llvm.memcpy.p0.p0.i64(ptr %p, ptr %q, i64 16, i1 false)
  call void @llvm.lifetime.start.p0(i64 4, ptr %p)
  %r = call i32 @ext(i32 %mx)
  ret i32 %r
}
`

func TestIntrinsics(t *testing.T) {
	m := parseModule(t, intrinsicModule)
	b := New(isa.Rev1, Reference).Explain(lookupFunc(t, m, "k"))

	charges := make(map[string]uint64)
	for _, c := range b.Insts {
		charges[c.Inst.Ident()] = c.Cost
	}
	assert.Equal(t, uint64(1), charges["%ad"], "abs of a difference")
	assert.Equal(t, CostBitCount, charges["%pc"])
	assert.Equal(t, uint64(1), charges["%mx"])
	assert.Equal(t, CostGlobal+CostJump, charges["%r"])
	assert.NotContains(t, charges, "%d", "the subtraction is fused into abs")

	var memcpy, lifetime *Charge
	for i, c := range b.Insts {
		switch c.Inst.IntrinsicID() {
		case ir.UnknownIntrinsic:
			memcpy = &b.Insts[i]
		case ir.IntrinsicLifetimeStart:
			lifetime = &b.Insts[i]
		}
	}
	require.NotNil(t, memcpy)
	require.NotNil(t, lifetime)
	assert.Equal(t, CostUnsupported+CostGlobal+CostJump, memcpy.Cost)
	// %p is also used by memcpy, so the marker stays and is an unknown intrinsic call.
	assert.Equal(t, CostUnsupported+CostGlobal+CostJump, lifetime.Cost)

	// i64 16, i1 false and i64 4
	require.Len(t, b.Materialized, 3)
	assert.Equal(t, 2*(CostUnsupported+CostGlobal+CostJump)+9+3, b.Total)
}

func TestShiftRules(t *testing.T) {
	tests := []struct {
		name string
		body string
		want uint64
	}{
		{
			name: "register shifted by immediate",
			body: "%r = shl i64 %x, 3\n  ret i64 %r",
			want: 2,
		},
		{
			name: "register shifted by register",
			body: "%a = udiv i64 %y, 7\n  %r = shl i64 %x, %a\n  ret i64 %r",
			want: 2,
		},
		{
			name: "wide immediate shifted by register",
			body: "%r = lshr i64 1024, %y\n  ret i64 %r",
			want: 1 + 1 + 1,
		},
		{
			name: "immediate shifted by immediate",
			body: "%s = shl i32 1, 3\n  %r = zext nneg i32 %s to i64\n  ret i64 %r",
			want: 2,
		},
		{
			name: "immediate shifted by register",
			body: "%s = ashr i32 -8, %n\n  %r = zext nneg i32 %s to i64\n  ret i64 %r",
			want: 2,
		},
		{
			name: "amount too wide for the field",
			body: "%s = shl i32 1, 100\n  %r = zext nneg i32 %s to i64\n  ret i64 %r",
			want: 1 + 1 + 1,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			src := "define i64 @f(i64 %x, i64 %y, i32 %n) {\nentry:\n  " + tc.body + "\n}\n"
			assert.Equal(t, tc.want, estimate(t, src, "f"))
		})
	}
}

// The callee pointer of an indirect call has to be computed, so its load is charged.
func TestIndirectCall(t *testing.T) {
	src := `define i64 @f(ptr %slot, i64 %x) {
entry:
  %fp = load ptr, ptr %slot
  %r = call i64 %fp(i64 %x)
  ret i64 %r
}
`
	assert.Equal(t, CostLoadStore+CostGlobal+CostJump+CostJump, estimate(t, src, "f"))
}

const lifetimeModule = `
declare void @llvm.lifetime.start.p0(i64, ptr)
declare void @llvm.lifetime.end.p0(i64, ptr)

define i32 @used() {
entry:
  %p = alloca i32
  call void @llvm.lifetime.start.p0(i64 4, ptr %p)
  store volatile i32 1, ptr %p
  %v = load volatile i32, ptr %p
  call void @llvm.lifetime.end.p0(i64 4, ptr %p)
  ret i32 %v
}

define void @unused() {
entry:
  %p = alloca i32
  call void @llvm.lifetime.start.p0(i64 4, ptr %p)
  call void @llvm.lifetime.end.p0(i64 4, ptr %p)
  ret void
}

define void @undefobj() {
entry:
  call void @llvm.lifetime.start.p0(i64 4, ptr undef)
  ret void
}
`

func TestLifetimeMarkers(t *testing.T) {
	marker := CostUnsupported + CostGlobal + CostJump
	tests := []struct {
		fn   string
		want uint64
	}{
		// store 4, load 4, ret 1, two markers, then i32 1 and i64 4 materialized
		{fn: "used", want: 9 + 2*marker + 2},
		{fn: "unused", want: 1},
		{fn: "undefobj", want: 1},
	}
	for _, tc := range tests {
		t.Run(tc.fn, func(t *testing.T) {
			assert.Equal(t, tc.want, estimate(t, lifetimeModule, tc.fn))
		})
	}
}

func TestBranchFusion(t *testing.T) {
	src := func(cond string) string {
		return "define void @b(i32 %x, i1 %flag) {\nentry:\n  " + cond +
			"\n  br i1 %c, label %t, label %f\nt:\n  ret void\nf:\n  ret void\n}\n"
	}
	// the compare is folded into the branch and never charged on its own
	assert.Equal(t, uint64(3), estimate(t, src("%c = icmp slt i32 %x, 10"), "b"))
	assert.Equal(t, uint64(4), estimate(t, src("%c = icmp slt i32 %x, 100"), "b"))
	// any other condition is a plain conditional branch
	assert.Equal(t, uint64(4), estimate(t, src("%c = and i1 %flag, true"), "b"))
}

func TestSwitchExpansion(t *testing.T) {
	const tmpl = `
define void @sw(i32 %%c) {
entry:
  switch i32 %%c, label %%def [
    i32 1, label %%a
    i32 2, label %%b
    i32 5000, label %%b
  ]
a:
  ret void
b:
  ret void
def:
  %s
}
`
	switchCharge := func(t *testing.T, def string) (uint64, uint64) {
		m := parseModule(t, fmt.Sprintf(tmpl, def))
		b := New(isa.Rev1, Reference).Explain(lookupFunc(t, m, "sw"))
		for _, c := range b.Insts {
			if c.Inst.Op == ir.OpSwitch {
				return c.Cost, b.Total
			}
		}
		require.FailNow(t, "switch not visited")
		return 0, 0
	}

	// three compares, three branches
	cost, total := switchCharge(t, "ret void")
	assert.Equal(t, 3+3*CostJump, cost)
	assert.Equal(t, cost+3+1, total, "three returns and the materialized 5000")

	cost, total = switchCharge(t, "unreachable")
	assert.Equal(t, 3+2*CostJump, cost)
	assert.Equal(t, cost+2+1, total)
}

func TestGEPDecomposition(t *testing.T) {
	tests := []struct {
		name string
		gep  string
		want uint64
	}{
		{
			// %i*8 is a shift-add, %j is added directly
			name: "two variable indices",
			gep:  "getelementptr inbounds [8 x i8], ptr %p, i64 %i, i64 %j",
			want: 1 + 1 + 1 + 1,
		},
		{
			name: "constant offset",
			gep:  "getelementptr inbounds [8 x i8], ptr %p, i64 %i, i64 3",
			want: 1 + 1 + 1 + 1 + 1,
		},
		{
			name: "non power of two scale",
			gep:  "getelementptr inbounds [12 x i8], ptr %p, i64 %i",
			want: 1 + CostMul + 1 + 1,
		},
		{
			name: "struct field",
			gep:  "getelementptr inbounds { i32, i32 }, ptr %p, i64 0, i32 1",
			want: 1 + 1 + 1,
		},
		{
			name: "zero offset",
			gep:  "getelementptr inbounds i8, ptr %p, i64 0",
			want: 1,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			src := "define ptr @g(ptr %p, i64 %i, i64 %j) {\nentry:\n  %q = " + tc.gep + "\n  ret ptr %q\n}\n"
			assert.Equal(t, tc.want, estimate(t, src, "g"))
		})
	}
}

// The base of a gep is always live, so an inner gep is charged even when the outer one
// only adds a register index to it.
func TestGEPChain(t *testing.T) {
	src := `define ptr @g(ptr %p, i64 %i, i64 %j) {
entry:
  %b = getelementptr i8, ptr %p, i64 %j
  %q = getelementptr i8, ptr %b, i64 %i
  ret ptr %q
}
`
	assert.Equal(t, uint64(1+1+1), estimate(t, src, "g"))
}

const loopModule = `
define i32 @sum(i32 %n) {
entry:
  %cmp = icmp sgt i32 %n, 0
  br i1 %cmp, label %loop, label %exit

loop:
  %i = phi i32 [ 0, %entry ], [ %next, %loop ]
  %acc = phi i32 [ 0, %entry ], [ %add, %loop ]
  %add = add nsw i32 %acc, %i
  %next = add nuw nsw i32 %i, 1
  %done = icmp eq i32 %next, %n
  br i1 %done, label %exit, label %loop

exit:
  %r = phi i32 [ 0, %entry ], [ %add, %loop ]
  ret i32 %r
}

define i32 @unused(i32 %x) {
entry:
  %d = sdiv i32 %x, 3
  ret i32 0

dead:
  %y = udiv i32 %x, %x
  ret i32 %y
}

declare i32 @ext(i32)
`

func TestVariants(t *testing.T) {
	m := parseModule(t, loopModule)
	sum := lookupFunc(t, m, "sum")

	// ret, two fused branches, two adds and the materialized zero
	assert.Equal(t, uint64(6), New(isa.Rev1, Reference).Estimate(sum))
	// plus two per phi, and zero is loaded from the constant pool
	assert.Equal(t, uint64(5+3*2+CostLoadStore), New(isa.Rev1, Legacy).Estimate(sum))
}

func TestModuleSummary(t *testing.T) {
	m := parseModule(t, loopModule)
	s := New(isa.Rev1, Reference).EstimateModule(m)

	assert.Equal(t, 2, s.Functions, "declarations are skipped")
	// @unused: the sdiv and the unreachable block are free
	assert.Equal(t, uint64(6+1+1), s.Cost)
	assert.Equal(t, map[int64]uint64{0: 2}, s.Constants)
}

func TestDeadFunctionIsFree(t *testing.T) {
	src := "define void @z(i32 %x) {\nentry:\n  %a = add i32 %x, 1\n  unreachable\n}\n"
	assert.Zero(t, estimate(t, src, "z"))
}

func TestDeterminism(t *testing.T) {
	model := New(isa.Rev2, Reference)
	explainAll := func() []string {
		var out []string
		for _, src := range []string{loopModule, intrinsicModule} {
			m := parseModule(t, src)
			for _, fn := range m.Funcs {
				b := model.Explain(fn)
				out = append(out, fmt.Sprintf("%s %d", b.Function, b.Total))
				for _, c := range b.Insts {
					out = append(out, fmt.Sprintf("  %d %s", c.Cost, c))
				}
				for _, c := range b.Materialized {
					out = append(out, fmt.Sprintf("  %d %s", c.Cost, c))
				}
			}
		}
		return out
	}
	assert.Equal(t, explainAll(), explainAll())
}
