package analysis

import "github.com/dtcxzyw/r6/internal/ir"

// CallAttrs merges the call-site attributes of a call-like instruction with those of a
// directly called function.
func CallAttrs(inst *ir.Inst) ir.Attrs {
	if fn := inst.CalledFunction(); fn != nil {
		return fn.Attrs.Merge(inst.Attrs)
	}
	return inst.Attrs
}

// MayHaveSideEffects reports whether inst may write memory, unwind or fail to return.
func MayHaveSideEffects(inst *ir.Inst) bool {
	switch inst.Op {
	case ir.OpStore, ir.OpFence, ir.OpAtomicRMW, ir.OpCmpXchg, ir.OpVAArg:
		return true
	case ir.OpLoad:
		return inst.Flags.Has(ir.FlagVolatile) || inst.Flags.Has(ir.FlagAtomic)
	case ir.OpCall, ir.OpInvoke, ir.OpCallBr:
		if inst.IntrinsicID().IsPure() {
			return false
		}
		a := CallAttrs(inst)
		return a.MayWriteMemory() || !a.NoUnwind || !a.WillReturn
	case ir.OpResume, ir.OpCleanupRet, ir.OpCatchRet, ir.OpCatchSwitch,
		ir.OpLandingPad, ir.OpCatchPad, ir.OpCleanupPad:
		return true
	}
	return false
}

// WouldBeTriviallyDead reports whether inst could be deleted if nothing used its result.
// Uses are not consulted.
func WouldBeTriviallyDead(inst *ir.Inst) bool {
	if inst.Op.IsTerminator() || inst.Op.IsEHPad() {
		return false
	}
	switch inst.IntrinsicID() {
	case ir.IntrinsicDbgDeclare, ir.IntrinsicDbgValue, ir.IntrinsicDbgLabel, ir.IntrinsicDbgAssign:
		return false
	case ir.IntrinsicAssume:
		// assume(true) carries no information.
		c, ok := ir.SplatInt(inst.Operand(0))
		return ok && !c.IsZero()
	case ir.IntrinsicLifetimeStart, ir.IntrinsicLifetimeEnd:
		return deadLifetimeMarker(inst)
	}
	return !MayHaveSideEffects(inst)
}

// deadLifetimeMarker reports whether a lifetime marker can go: its object is undef, or an
// alloca, argument or global whose only uses are lifetime markers.
func deadLifetimeMarker(inst *ir.Inst) bool {
	if len(inst.Ops) == 0 {
		return false
	}
	// The object is the last argument, after the optional size.
	obj := inst.Ops[len(inst.Ops)-1]
	var scope []*ir.Function
	switch v := obj.(type) {
	case *ir.ConstUndef:
		return true
	case *ir.Inst:
		if v.Op != ir.OpAlloca {
			return false
		}
		scope = []*ir.Function{parentFunc(v)}
	case *ir.Argument:
		scope = []*ir.Function{v.Parent}
	case *ir.GlobalVar, *ir.Function:
		fn := parentFunc(inst)
		if fn == nil {
			return false
		}
		scope = []*ir.Function{fn}
		if fn.Module != nil {
			scope = fn.Module.Funcs
		}
	default:
		return false
	}
	for _, fn := range scope {
		if fn != nil && !onlyLifetimeUses(fn, obj) {
			return false
		}
	}
	return true
}

func parentFunc(inst *ir.Inst) *ir.Function {
	if inst.Parent == nil {
		return nil
	}
	return inst.Parent.Parent
}

// onlyLifetimeUses reports whether every use of v inside fn is a lifetime marker.
func onlyLifetimeUses(fn *ir.Function, v ir.Value) bool {
	for _, b := range fn.Blocks {
		for _, inst := range b.Insts {
			uses := inst.Callee == v
			for _, op := range inst.Ops {
				if op == v {
					uses = true
					break
				}
			}
			if uses && !inst.IntrinsicID().IsLifetimeMarker() {
				return false
			}
		}
	}
	return true
}
