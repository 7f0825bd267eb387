package analysis

import (
	"math"

	"github.com/dtcxzyw/r6/internal/ir"
)

// smallestNormal returns the least positive normal value of a floating-point kind.
func smallestNormal(kind ir.FloatKind) float64 {
	switch kind {
	case ir.Half:
		return 0x1p-14
	case ir.BFloat, ir.Float:
		return 0x1p-126
	case ir.Double, ir.PPCFP128:
		return 0x1p-1022
	}
	// x86_fp80 and fp128 share the 15-bit exponent; their least normal underflows float64.
	return 0
}

// ClassTestOperand decides whether "fcmp pred lhs, rhs" is exactly a floating-point
// class test (is.fpclass) of a single value, and returns that value. This holds for
// always-true and always-false predicates, ordered/unordered checks, comparisons against
// NaN, zero and infinity, and for fabs(x) compared with the smallest normal value.
// fabs on the left-hand side is looked through.
func ClassTestOperand(pred ir.Pred, lhs, rhs ir.Value) (ir.Value, bool) {
	c, ok := ir.SplatFloat(rhs)
	if !ok || !c.Exact && !math.IsNaN(c.V) && !math.IsInf(c.V, 0) {
		return nil, false
	}
	src, isFabs := lhs, false
	if call, ok := lhs.(*ir.Inst); ok && call.IntrinsicID() == ir.IntrinsicFAbs {
		src, isFabs = call.Operand(0), true
	}

	switch {
	case pred == ir.FTrue || pred == ir.FFalse:
		return src, true
	case pred == ir.FORD || pred == ir.FUNO:
		return src, !math.IsNaN(c.V)
	case math.IsNaN(c.V):
		return src, true
	case c.V == 0 || math.IsInf(c.V, 0):
		return src, true
	case isFabs && c.V == smallestNormal(c.Typ.Kind) && c.V != 0:
		switch pred {
		case ir.FOLT, ir.FOGE, ir.FULT, ir.FUGE:
			return src, true
		}
	}
	return nil, false
}
