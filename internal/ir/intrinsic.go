package ir

import "strings"

// IntrinsicID identifies the compiler intrinsics the cost model distinguishes.
type IntrinsicID uint8

const (
	NotIntrinsic IntrinsicID = iota
	// UnknownIntrinsic is any llvm.* function not listed below.
	UnknownIntrinsic
	IntrinsicCtlz
	IntrinsicCttz
	IntrinsicCtpop
	IntrinsicAbs
	IntrinsicBswap
	IntrinsicBitreverse
	IntrinsicSMax
	IntrinsicSMin
	IntrinsicUMax
	IntrinsicUMin
	IntrinsicCopysign
	IntrinsicFAbs
	IntrinsicIsFPClass
	IntrinsicMinNum
	IntrinsicMaxNum
	IntrinsicMinimum
	IntrinsicMaximum
	IntrinsicSqrt
	IntrinsicFMA
	IntrinsicFMulAdd
	IntrinsicFShl
	IntrinsicFShr
	IntrinsicAssume
	IntrinsicLifetimeStart
	IntrinsicLifetimeEnd
	IntrinsicDbgDeclare
	IntrinsicDbgValue
	IntrinsicDbgLabel
	IntrinsicDbgAssign
	IntrinsicNoAliasScopeDecl
)

var intrinsicNames = map[string]IntrinsicID{
	"ctlz":                            IntrinsicCtlz,
	"cttz":                            IntrinsicCttz,
	"ctpop":                           IntrinsicCtpop,
	"abs":                             IntrinsicAbs,
	"bswap":                           IntrinsicBswap,
	"bitreverse":                      IntrinsicBitreverse,
	"smax":                            IntrinsicSMax,
	"smin":                            IntrinsicSMin,
	"umax":                            IntrinsicUMax,
	"umin":                            IntrinsicUMin,
	"copysign":                        IntrinsicCopysign,
	"fabs":                            IntrinsicFAbs,
	"is.fpclass":                      IntrinsicIsFPClass,
	"minnum":                          IntrinsicMinNum,
	"maxnum":                          IntrinsicMaxNum,
	"minimum":                         IntrinsicMinimum,
	"maximum":                         IntrinsicMaximum,
	"sqrt":                            IntrinsicSqrt,
	"fma":                             IntrinsicFMA,
	"fmuladd":                         IntrinsicFMulAdd,
	"fshl":                            IntrinsicFShl,
	"fshr":                            IntrinsicFShr,
	"assume":                          IntrinsicAssume,
	"lifetime.start":                  IntrinsicLifetimeStart,
	"lifetime.end":                    IntrinsicLifetimeEnd,
	"dbg.declare":                     IntrinsicDbgDeclare,
	"dbg.value":                       IntrinsicDbgValue,
	"dbg.label":                       IntrinsicDbgLabel,
	"dbg.assign":                      IntrinsicDbgAssign,
	"experimental.noalias.scope.decl": IntrinsicNoAliasScopeDecl,
}

// LookupIntrinsic classifies a function name. Overloaded intrinsics carry type suffixes
// ("llvm.ctpop.i32"), so the longest dotted prefix that names a known intrinsic wins.
func LookupIntrinsic(name string) IntrinsicID {
	rest, ok := strings.CutPrefix(name, "llvm.")
	if !ok {
		return NotIntrinsic
	}
	for {
		if id, ok := intrinsicNames[rest]; ok {
			return id
		}
		dot := strings.LastIndexByte(rest, '.')
		if dot < 0 {
			return UnknownIntrinsic
		}
		rest = rest[:dot]
	}
}

// IsPure reports whether the intrinsic neither touches memory nor traps.
func (id IntrinsicID) IsPure() bool {
	switch id {
	case NotIntrinsic, UnknownIntrinsic, IntrinsicAssume,
		IntrinsicLifetimeStart, IntrinsicLifetimeEnd,
		IntrinsicDbgDeclare, IntrinsicDbgValue, IntrinsicDbgLabel, IntrinsicDbgAssign,
		IntrinsicNoAliasScopeDecl:
		return false
	}
	return true
}

// IsLifetimeMarker reports whether the intrinsic is llvm.lifetime.start or llvm.lifetime.end.
func (id IntrinsicID) IsLifetimeMarker() bool {
	return id == IntrinsicLifetimeStart || id == IntrinsicLifetimeEnd
}
