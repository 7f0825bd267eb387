package costmodel

import (
	"github.com/dtcxzyw/r6/internal/analysis"
	"github.com/dtcxzyw/r6/internal/immediate"
	"github.com/dtcxzyw/r6/internal/ir"
)

// rule charges one retained instruction and requests the operands it needs in registers.
type rule func(e *estimator, inst *ir.Inst)

var rules = [ir.NumOpcodes]rule{
	ir.OpRet:         jumpWithOperands,
	ir.OpBr:          (*estimator).branch,
	ir.OpSwitch:      (*estimator).switchInst,
	ir.OpIndirectBr:  jumpWithOperands,
	ir.OpInvoke:      (*estimator).callBase,
	ir.OpResume:      unsupported,
	ir.OpUnreachable: nothing,
	ir.OpCleanupRet:  unsupported,
	ir.OpCatchRet:    unsupported,
	ir.OpCatchSwitch: unsupported,
	ir.OpCallBr:      unsupported,

	ir.OpFNeg: (*estimator).fneg,
	ir.OpAdd:  (*estimator).binary,
	ir.OpFAdd: (*estimator).binary,
	ir.OpSub:  (*estimator).binary,
	ir.OpFSub: (*estimator).binary,
	ir.OpMul:  (*estimator).binary,
	ir.OpFMul: (*estimator).binary,
	ir.OpUDiv: (*estimator).binary,
	ir.OpSDiv: (*estimator).binary,
	ir.OpFDiv: (*estimator).binary,
	ir.OpURem: (*estimator).binary,
	ir.OpSRem: (*estimator).binary,
	ir.OpFRem: (*estimator).binary,
	ir.OpShl:  (*estimator).binary,
	ir.OpLShr: (*estimator).binary,
	ir.OpAShr: (*estimator).binary,
	ir.OpAnd:  (*estimator).binary,
	ir.OpOr:   (*estimator).binary,
	ir.OpXor:  (*estimator).binary,

	ir.OpAlloca:        free,
	ir.OpLoad:          memory,
	ir.OpStore:         memory,
	ir.OpGetElementPtr: (*estimator).gep,
	ir.OpFence:         nothing,
	ir.OpCmpXchg:       memory,
	ir.OpAtomicRMW:     memory,

	ir.OpTrunc:         (*estimator).cast,
	ir.OpZExt:          (*estimator).cast,
	ir.OpSExt:          (*estimator).cast,
	ir.OpFPToUI:        (*estimator).cast,
	ir.OpFPToSI:        (*estimator).cast,
	ir.OpUIToFP:        (*estimator).cast,
	ir.OpSIToFP:        (*estimator).cast,
	ir.OpFPTrunc:       (*estimator).cast,
	ir.OpFPExt:         (*estimator).cast,
	ir.OpPtrToInt:      (*estimator).cast,
	ir.OpIntToPtr:      (*estimator).cast,
	ir.OpBitCast:       (*estimator).cast,
	ir.OpAddrSpaceCast: (*estimator).cast,

	ir.OpCleanupPad:     unsupported,
	ir.OpCatchPad:       unsupported,
	ir.OpICmp:           (*estimator).cmpInst,
	ir.OpFCmp:           (*estimator).cmpInst,
	ir.OpPhi:            (*estimator).phi,
	ir.OpCall:           (*estimator).call,
	ir.OpSelect:         (*estimator).selectInst,
	ir.OpVAArg:          unsupported,
	ir.OpExtractElement: unsupported,
	ir.OpInsertElement:  unsupported,
	ir.OpShuffleVector:  unsupported,
	ir.OpExtractValue:   unsupported,
	ir.OpInsertValue:    unsupported,
	ir.OpLandingPad:     unsupported,
	ir.OpFreeze:         free,
}

// free keeps the operands alive without charging the instruction.
func free(e *estimator, inst *ir.Inst)             { e.addOperands(inst, 0) }
func nothing(*estimator, *ir.Inst)                 {}
func memory(e *estimator, inst *ir.Inst)           { e.addOperands(inst, CostLoadStore) }
func jumpWithOperands(e *estimator, inst *ir.Inst) { e.addOperands(inst, CostJump) }

// unsupported marks constructs the instruction set cannot express.
func unsupported(e *estimator, inst *ir.Inst) { e.addOperands(inst, CostUnsupported) }

// countAdd charges an add of lhs and rhs where only rhs may be an immediate.
func (e *estimator) countAdd(lhs, rhs ir.Value) {
	e.request(lhs)
	if !e.imm.AddSub(rhs) {
		e.request(rhs)
	}
	e.add(1)
}

// countMul charges lhs*rhs, as a shift when rhs is a power of two.
func (e *estimator) countMul(lhs, rhs ir.Value) {
	e.request(lhs)
	switch {
	case immediate.IsPowerOf2(rhs):
		e.add(1)
	case e.imm.MulDiv(rhs):
		e.add(1)
	default:
		e.request(rhs)
		e.add(CostMul)
	}
}

func (e *estimator) binary(inst *ir.Inst) {
	lhs, rhs := inst.Ops[0], inst.Ops[1]
	switch inst.Op {
	case ir.OpAdd:
		e.countAdd(lhs, rhs)
	case ir.OpSub:
		// only the minuend has a reverse-subtract immediate form
		if !e.imm.AddSub(lhs) {
			e.request(lhs)
		}
		e.request(rhs)
		e.add(1)
	case ir.OpShl, ir.OpLShr, ir.OpAShr:
		// The amount is only charged when the shifted value is an immediate.
		if !e.imm.ShiftValue(lhs) {
			e.request(lhs)
		} else if !e.imm.ShiftAmount(rhs) {
			e.request(rhs)
		}
		e.add(1)
	case ir.OpMul:
		e.countMul(lhs, rhs)
	case ir.OpAnd, ir.OpOr, ir.OpXor:
		if x, ok := notOperand(lhs); ok {
			lhs = x
		} else if x, ok := notOperand(rhs); ok {
			rhs = x
		}
		e.request(lhs)
		if !e.imm.BitPattern(rhs) {
			e.request(rhs)
		}
		e.add(1)
	case ir.OpUDiv, ir.OpURem, ir.OpSDiv, ir.OpSRem:
		e.request(lhs)
		if !e.imm.MulDivUnsigned(rhs) {
			e.request(rhs)
		}
		e.add(CostDiv)
	case ir.OpFRem:
		e.addOperands(inst, CostGlobal+CostJump)
	case ir.OpFDiv, ir.OpFMul:
		e.request(lhs)
		if !e.imm.FPSmall(rhs) {
			e.request(rhs)
		}
		if inst.Op == ir.OpFDiv {
			e.add(CostFDiv)
		} else {
			e.add(CostFMul)
		}
	case ir.OpFAdd, ir.OpFSub:
		if inst.Op == ir.OpFSub {
			lhs, rhs = rhs, lhs
		}
		e.request(lhs)
		if !e.imm.FPSmall(rhs) {
			e.request(rhs)
		}
		e.add(CostCheapFloat)
	default:
		e.addOperands(inst, 1)
	}
}

// fneg folds a fabs operand into a negated-abs.
func (e *estimator) fneg(inst *ir.Inst) {
	op := inst.Ops[0]
	if x, ok := fabsOperand(op); ok {
		op = x
	}
	e.request(op)
	e.add(CostCheapFloat)
}

func (e *estimator) cast(inst *ir.Inst) {
	var k uint64
	switch inst.Op {
	case ir.OpSExt:
		k = 0
	case ir.OpZExt:
		k = boolCost(!inst.Flags.Has(ir.FlagNNeg))
	case ir.OpTrunc:
		k = boolCost(!inst.Flags.Has(ir.FlagNSW))
	default:
		k = 1
		if ir.IsFloat(inst.SrcType()) || ir.IsFloat(inst.Typ) {
			k = CostCheapFloat
		}
	}
	e.addOperands(inst, k)
}

func (e *estimator) cmpInst(inst *ir.Inst) {
	e.cmp(inst.Pred, inst.Ops[0], inst.Ops[1])
}

func (e *estimator) cmp(pred ir.Pred, lhs, rhs ir.Value) {
	if ir.IsFloat(lhs.Type()) {
		if v, ok := analysis.ClassTestOperand(pred, lhs, rhs); ok {
			e.request(v)
		} else {
			e.request(lhs)
			if !e.imm.FPSmall(rhs) {
				e.request(rhs)
			}
		}
		e.add(CostCheapFloat)
		return
	}
	e.request(lhs)
	if !e.imm.Cmp(rhs) {
		e.request(rhs)
	}
	e.add(1)
}

func (e *estimator) selectInst(inst *ir.Inst) {
	e.request(inst.Ops[0])
	for _, arm := range inst.Ops[1:3] {
		if !e.imm.Select(arm) {
			e.request(arm)
		}
	}
	e.add(1)
}

// branch fuses a conditional branch with the integer compare that feeds it.
func (e *estimator) branch(inst *ir.Inst) {
	if len(inst.Ops) == 1 {
		if c, ok := inst.Ops[0].(*ir.Inst); ok && c.Op == ir.OpICmp {
			e.request(c.Ops[0])
			if !e.imm.BranchCmp(c.Ops[1]) {
				e.request(c.Ops[1])
			}
			e.add(1)
			return
		}
	}
	e.addOperands(inst, CostJump)
}

// switchInst expands a switch into one compare-and-branch per case. No branch is
// needed for the last case when the default destination is unreachable.
func (e *estimator) switchInst(inst *ir.Inst) {
	cond, cases := inst.Ops[0], inst.Ops[1:]
	jumps := uint64(len(cases))
	if jumps > 0 && defaultUnreachable(inst) {
		jumps--
	}
	e.request(cond)
	e.add(CostJump * jumps)
	for _, c := range cases {
		e.cmp(ir.IEQ, cond, c)
	}
}

func defaultUnreachable(sw *ir.Inst) bool {
	for _, inst := range sw.Succs[0].Insts {
		switch inst.IntrinsicID() {
		case ir.IntrinsicDbgDeclare, ir.IntrinsicDbgValue, ir.IntrinsicDbgLabel, ir.IntrinsicDbgAssign:
			continue
		}
		if inst.Op == ir.OpPhi {
			continue
		}
		return inst.Op == ir.OpUnreachable
	}
	return false
}

// phi costs nothing in the reference model; its incoming values are requested up front.
func (e *estimator) phi(inst *ir.Inst) {
	if e.m.variant == Legacy {
		e.add(uint64(len(inst.Incoming)))
	}
}

// gep splits an address into base + constant + sum(index*scale) and charges it as a
// chain of fused multiply-adds.
func (e *estimator) gep(inst *ir.Inst) {
	base := inst.Ops[0]
	e.request(base)
	offset, vars, _ := e.mod.Layout.GEPOffsets(inst)
	for _, v := range vars {
		if v.Scale == 1 {
			e.request(v.Index)
			e.add(1)
			continue
		}
		e.countMul(v.Index, e.mod.IntValue(64, v.Scale))
		e.countAdd(v.Index, base)
	}
	if offset != 0 {
		e.countAdd(base, e.mod.IntValue(e.mod.Layout.PointerBits, offset))
	}
}

// callBase charges a call to a function: the arguments go in registers, then a jump
// and link. An indirect callee needs its address in a register too.
func (e *estimator) callBase(inst *ir.Inst) {
	e.add(CostGlobal + CostJump)
	for _, v := range inst.Ops {
		e.request(v)
	}
	if _, direct := inst.Callee.(*ir.Function); !direct && inst.Callee != nil {
		e.request(inst.Callee)
	}
}

func boolCost(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// notOperand matches "xor x, -1" in either operand order.
func notOperand(v ir.Value) (ir.Value, bool) {
	inst, ok := v.(*ir.Inst)
	if !ok || inst.Op != ir.OpXor {
		return nil, false
	}
	if isAllOnes(inst.Ops[1]) {
		return inst.Ops[0], true
	}
	if isAllOnes(inst.Ops[0]) {
		return inst.Ops[1], true
	}
	return nil, false
}

func isAllOnes(v ir.Value) bool {
	c, ok := ir.SplatInt(v)
	return ok && c.IsAllOnes()
}

// fabsOperand matches a call to llvm.fabs.
func fabsOperand(v ir.Value) (ir.Value, bool) {
	inst, ok := v.(*ir.Inst)
	if !ok || inst.IntrinsicID() != ir.IntrinsicFAbs {
		return nil, false
	}
	return inst.Ops[0], true
}

// fnegOperand matches fneg x.
func fnegOperand(v ir.Value) (ir.Value, bool) {
	inst, ok := v.(*ir.Inst)
	if !ok || inst.Op != ir.OpFNeg {
		return nil, false
	}
	return inst.Ops[0], true
}
