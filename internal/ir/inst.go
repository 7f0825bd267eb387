package ir

// Opcode is the closed set of instruction kinds.
type Opcode uint8

const (
	// terminators
	OpRet Opcode = iota
	OpBr
	OpSwitch
	OpIndirectBr
	OpInvoke
	OpResume
	OpUnreachable
	OpCleanupRet
	OpCatchRet
	OpCatchSwitch
	OpCallBr

	// unary and binary operators
	OpFNeg
	OpAdd
	OpFAdd
	OpSub
	OpFSub
	OpMul
	OpFMul
	OpUDiv
	OpSDiv
	OpFDiv
	OpURem
	OpSRem
	OpFRem
	OpShl
	OpLShr
	OpAShr
	OpAnd
	OpOr
	OpXor

	// memory
	OpAlloca
	OpLoad
	OpStore
	OpGetElementPtr
	OpFence
	OpCmpXchg
	OpAtomicRMW

	// casts
	OpTrunc
	OpZExt
	OpSExt
	OpFPToUI
	OpFPToSI
	OpUIToFP
	OpSIToFP
	OpFPTrunc
	OpFPExt
	OpPtrToInt
	OpIntToPtr
	OpBitCast
	OpAddrSpaceCast

	// everything else
	OpCleanupPad
	OpCatchPad
	OpICmp
	OpFCmp
	OpPhi
	OpCall
	OpSelect
	OpVAArg
	OpExtractElement
	OpInsertElement
	OpShuffleVector
	OpExtractValue
	OpInsertValue
	OpLandingPad
	OpFreeze

	NumOpcodes
)

var opcodeNames = [NumOpcodes]string{
	OpRet:            "ret",
	OpBr:             "br",
	OpSwitch:         "switch",
	OpIndirectBr:     "indirectbr",
	OpInvoke:         "invoke",
	OpResume:         "resume",
	OpUnreachable:    "unreachable",
	OpCleanupRet:     "cleanupret",
	OpCatchRet:       "catchret",
	OpCatchSwitch:    "catchswitch",
	OpCallBr:         "callbr",
	OpFNeg:           "fneg",
	OpAdd:            "add",
	OpFAdd:           "fadd",
	OpSub:            "sub",
	OpFSub:           "fsub",
	OpMul:            "mul",
	OpFMul:           "fmul",
	OpUDiv:           "udiv",
	OpSDiv:           "sdiv",
	OpFDiv:           "fdiv",
	OpURem:           "urem",
	OpSRem:           "srem",
	OpFRem:           "frem",
	OpShl:            "shl",
	OpLShr:           "lshr",
	OpAShr:           "ashr",
	OpAnd:            "and",
	OpOr:             "or",
	OpXor:            "xor",
	OpAlloca:         "alloca",
	OpLoad:           "load",
	OpStore:          "store",
	OpGetElementPtr:  "getelementptr",
	OpFence:          "fence",
	OpCmpXchg:        "cmpxchg",
	OpAtomicRMW:      "atomicrmw",
	OpTrunc:          "trunc",
	OpZExt:           "zext",
	OpSExt:           "sext",
	OpFPToUI:         "fptoui",
	OpFPToSI:         "fptosi",
	OpUIToFP:         "uitofp",
	OpSIToFP:         "sitofp",
	OpFPTrunc:        "fptrunc",
	OpFPExt:          "fpext",
	OpPtrToInt:       "ptrtoint",
	OpIntToPtr:       "inttoptr",
	OpBitCast:        "bitcast",
	OpAddrSpaceCast:  "addrspacecast",
	OpCleanupPad:     "cleanuppad",
	OpCatchPad:       "catchpad",
	OpICmp:           "icmp",
	OpFCmp:           "fcmp",
	OpPhi:            "phi",
	OpCall:           "call",
	OpSelect:         "select",
	OpVAArg:          "va_arg",
	OpExtractElement: "extractelement",
	OpInsertElement:  "insertelement",
	OpShuffleVector:  "shufflevector",
	OpExtractValue:   "extractvalue",
	OpInsertValue:    "insertvalue",
	OpLandingPad:     "landingpad",
	OpFreeze:         "freeze",
}

func (op Opcode) String() string {
	if op < NumOpcodes {
		return opcodeNames[op]
	}
	return "<invalid>"
}

// OpcodeByName maps an instruction keyword to its opcode.
func OpcodeByName(name string) (Opcode, bool) {
	for op, n := range opcodeNames {
		if n == name {
			return Opcode(op), true
		}
	}
	return 0, false
}

func (op Opcode) IsTerminator() bool { return op <= OpCallBr }
func (op Opcode) IsBinary() bool     { return op >= OpAdd && op <= OpXor }
func (op Opcode) IsCast() bool       { return op >= OpTrunc && op <= OpAddrSpaceCast }

// IsEHPad reports whether op starts an exception handling block.
func (op Opcode) IsEHPad() bool {
	switch op {
	case OpLandingPad, OpCatchPad, OpCleanupPad, OpCatchSwitch:
		return true
	}
	return false
}

// Pred is an icmp or fcmp predicate.
type Pred uint8

const (
	PredInvalid Pred = iota
	// integer
	IEQ
	INE
	IUGT
	IUGE
	IULT
	IULE
	ISGT
	ISGE
	ISLT
	ISLE
	// floating point
	FFalse
	FOEQ
	FOGT
	FOGE
	FOLT
	FOLE
	FONE
	FORD
	FUEQ
	FUGT
	FUGE
	FULT
	FULE
	FUNE
	FUNO
	FTrue
)

var predNames = [...]string{
	PredInvalid: "<invalid>",
	IEQ:         "eq",
	INE:         "ne",
	IUGT:        "ugt",
	IUGE:        "uge",
	IULT:        "ult",
	IULE:        "ule",
	ISGT:        "sgt",
	ISGE:        "sge",
	ISLT:        "slt",
	ISLE:        "sle",
	FFalse:      "false",
	FOEQ:        "oeq",
	FOGT:        "ogt",
	FOGE:        "oge",
	FOLT:        "olt",
	FOLE:        "ole",
	FONE:        "one",
	FORD:        "ord",
	FUEQ:        "ueq",
	FUGT:        "ugt",
	FUGE:        "uge",
	FULT:        "ult",
	FULE:        "ule",
	FUNE:        "une",
	FUNO:        "uno",
	FTrue:       "true",
}

func (p Pred) String() string { return predNames[p] }

// PredByName resolves a predicate keyword for icmp (float=false) or fcmp (float=true).
func PredByName(name string, float bool) (Pred, bool) {
	lo, hi := IEQ, ISLE
	if float {
		lo, hi = FFalse, FTrue
	}
	for p := lo; p <= hi; p++ {
		if predNames[p] == name {
			return p, true
		}
	}
	return PredInvalid, false
}

// Flags are the instruction keywords the model looks at.
type Flags uint16

const (
	FlagNUW Flags = 1 << iota
	FlagNSW
	FlagExact
	FlagNNeg
	FlagDisjoint
	FlagInBounds
	FlagVolatile
	FlagAtomic
	FlagVarArgs
)

func (f Flags) Has(flag Flags) bool { return f&flag != 0 }

// Inst is one instruction. Operand layout per opcode:
//
//	binary, cmp:         Ops = [x, y]
//	fneg, casts, freeze: Ops = [x]
//	select:              Ops = [cond, true, false]
//	phi:                 Ops[i] flows in from Incoming[i]
//	call, invoke:        Ops = args, Callee = called value
//	load:                Ops = [ptr]
//	store:               Ops = [value, ptr]
//	atomicrmw:           Ops = [ptr, value]
//	cmpxchg:             Ops = [ptr, cmp, new]
//	getelementptr:       Ops = [base, indices...], ElemType = source element type
//	alloca:              Ops = [count] or empty, ElemType = allocated type
//	ret:                 Ops = [] or [value]
//	br:                  Ops = [] or [cond], Succs = [dest] or [true, false]
//	switch:              Ops = [cond, case values...], Succs = [default, case dests...]
//	indirectbr:          Ops = [addr], Succs = possible destinations
type Inst struct {
	Op       Opcode
	Name     string
	Typ      Type
	Ops      []Value
	Parent   *Block
	Flags    Flags
	Pred     Pred
	ElemType Type
	Succs    []*Block
	Incoming []*Block
	Callee   Value
	Attrs    Attrs
	Indices  []uint64
}

func (i *Inst) Type() Type { return i.Typ }

func (i *Inst) Ident() string {
	if i.Name == "" {
		return "<void>"
	}
	return localIdent(i.Name)
}

// Operand returns the n-th operand, or nil when out of range.
func (i *Inst) Operand(n int) Value {
	if n < len(i.Ops) {
		return i.Ops[n]
	}
	return nil
}

// CalledFunction returns the direct callee of a call-like instruction.
func (i *Inst) CalledFunction() *Function {
	fn, _ := i.Callee.(*Function)
	return fn
}

// IntrinsicID returns the intrinsic called by a call instruction, or NotIntrinsic.
func (i *Inst) IntrinsicID() IntrinsicID {
	if i.Op != OpCall {
		return NotIntrinsic
	}
	if fn := i.CalledFunction(); fn != nil {
		return fn.Intrinsic
	}
	return NotIntrinsic
}

// SrcType is the operand type of a cast.
func (i *Inst) SrcType() Type {
	if len(i.Ops) == 0 {
		return Void
	}
	return i.Ops[0].Type()
}
