// Package immediate decides whether constants can be encoded in the immediate fields of
// an instruction set revision.
package immediate

import (
	"math"
	"math/bits"

	"github.com/dtcxzyw/r6/internal/ir"
	"github.com/dtcxzyw/r6/internal/isa"
)

// Checker binds the feasibility predicates to one set of field widths.
type Checker struct {
	p isa.Params
}

func NewChecker(p isa.Params) Checker {
	return Checker{p: p}
}

func (c Checker) Params() isa.Params { return c.p }

func (c Checker) AddSub(v ir.Value) bool      { return IsInt(v, c.p.AddSubImmBits) }
func (c Checker) ShiftValue(v ir.Value) bool  { return IsInt(v, c.p.ShiftImmBits) }
func (c Checker) ShiftAmount(v ir.Value) bool { return IsUInt(v, c.p.ShAmtBits) }
func (c Checker) Cmp(v ir.Value) bool         { return IsInt(v, c.p.CmpImmBits) }
func (c Checker) BranchCmp(v ir.Value) bool   { return IsInt(v, c.p.BranchCmpImmBits) }
func (c Checker) Select(v ir.Value) bool      { return IsInt(v, c.p.SelectImmBits) }
func (c Checker) MinMax(v ir.Value) bool      { return IsInt(v, c.p.MinMaxImmBits) }
func (c Checker) MulDiv(v ir.Value) bool      { return IsInt(v, c.p.MulDivBits) }

// MulDivUnsigned is MulDiv for divisors, which are always encoded zero-extended.
func (c Checker) MulDivUnsigned(v ir.Value) bool { return IsUInt(v, c.p.MulDivBits) }

func (c Checker) BitPattern(v ir.Value) bool { return IsBitPattern(v) }
func (c Checker) FPSmall(v ir.Value) bool    { return IsFloat8(v) }
func (c Checker) FPHalf(v ir.Value) bool     { return IsHalf(v) }

// LargeImm reports whether a materialized integer fits a single load-immediate.
func (c Checker) LargeImm(v int64) bool { return fitsSigned(v, c.p.LargeImmBits) }

// LargeImmWithFixup reports whether a load-immediate followed by one add-immediate
// can build v.
func (c Checker) LargeImmWithFixup(v int64) bool {
	return fitsSigned(v, c.p.LargeImmBits+c.p.AddSubImmBits)
}

// IsZero reports whether v is a null constant of any type: integer zero, a null
// pointer or zeroinitializer.
func IsZero(v ir.Value) bool {
	switch c := v.(type) {
	case *ir.ConstNull, *ir.ConstZero:
		return true
	case *ir.ConstInt:
		return c.IsZero()
	case *ir.ConstFloat:
		return c.Exact && c.V == 0 && !math.Signbit(c.V)
	case *ir.ConstAggregate:
		for _, e := range c.Elems {
			if !IsZero(e) {
				return false
			}
		}
		return len(c.Elems) > 0
	}
	return false
}

// IsInt reports whether v is zero or an integer constant narrower than 64 bits whose
// sign-extended value fits in width bits.
func IsInt(v ir.Value, width uint32) bool {
	if IsZero(v) {
		return true
	}
	ci, ok := ir.SplatInt(v)
	if !ok || ci.Width() >= 64 {
		return false
	}
	return fitsSigned(ci.SExt(), width)
}

// IsUInt is IsInt with the zero-extended value.
func IsUInt(v ir.Value, width uint32) bool {
	if IsZero(v) {
		return true
	}
	ci, ok := ir.SplatInt(v)
	if !ok || ci.Width() >= 64 {
		return false
	}
	return fitsUnsigned(ci.ZExt(), width)
}

// IsPowerOf2 reports whether v is an integer constant with exactly one bit set.
func IsPowerOf2(v ir.Value) bool {
	ci, ok := ir.SplatInt(v)
	return ok && ci.IsPowerOf2()
}

// IsBitPattern reports whether v is one of the shapes the bit-pattern immediate encodes:
//
//	a shifted run of at most 8 ones
//	a byte splat
//	ones from the top down to a run of trailing zeros
//	zeros from the top followed by trailing ones
func IsBitPattern(v ir.Value) bool {
	ci, ok := ir.SplatInt(v)
	if !ok || ci.Width() >= 64 {
		return false
	}
	return bitPattern(ci.ZExt(), ci.Width())
}

func bitPattern(x uint64, width uint32) bool {
	if x != 0 {
		tz := bits.TrailingZeros64(x)
		run := x >> tz
		if run&(run+1) == 0 && bits.OnesCount64(run) <= 8 {
			return true
		}
	}
	if width%8 == 0 && isByteSplat(x, width) {
		return true
	}
	// Left-align the value so leading bit counts are relative to width.
	top := x << (64 - width)
	w := int(width)
	if bits.LeadingZeros64(^top)+min(bits.TrailingZeros64(x), w) >= w {
		return true
	}
	if bits.LeadingZeros64(top)+bits.TrailingZeros64(^x) >= w {
		return true
	}
	return false
}

func isByteSplat(x uint64, width uint32) bool {
	b := x & 0xff
	for i := uint32(8); i < width; i += 8 {
		if (x>>i)&0xff != b {
			return false
		}
	}
	return true
}

func fitsSigned(v int64, width uint32) bool {
	if width >= 64 {
		return true
	}
	if width == 0 {
		return false
	}
	lim := int64(1) << (width - 1)
	return v >= -lim && v < lim
}

func fitsUnsigned(v uint64, width uint32) bool {
	if width >= 64 {
		return true
	}
	return v < uint64(1)<<width
}
