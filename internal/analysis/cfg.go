package analysis

import "github.com/dtcxzyw/r6/internal/ir"

// Reachable returns the blocks reachable from the function entry.
func Reachable(fn *ir.Function) map[*ir.Block]bool {
	seen := make(map[*ir.Block]bool, len(fn.Blocks))
	entry := fn.Entry()
	if entry == nil {
		return seen
	}
	work := []*ir.Block{entry}
	seen[entry] = true
	for len(work) > 0 {
		b := work[len(work)-1]
		work = work[:len(work)-1]
		for _, s := range b.Succs() {
			if !seen[s] {
				seen[s] = true
				work = append(work, s)
			}
		}
	}
	return seen
}

type dfsFrame struct {
	block *ir.Block
	next  int
}

// PostOrder lists the reachable blocks in depth-first post-order, visiting successors in
// terminator order. The entry block is always last.
func PostOrder(fn *ir.Function) []*ir.Block {
	entry := fn.Entry()
	if entry == nil {
		return nil
	}
	order := make([]*ir.Block, 0, len(fn.Blocks))
	seen := map[*ir.Block]bool{entry: true}
	stack := []dfsFrame{{block: entry}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		succs := top.block.Succs()
		if top.next < len(succs) {
			s := succs[top.next]
			top.next++
			if !seen[s] {
				seen[s] = true
				stack = append(stack, dfsFrame{block: s})
			}
			continue
		}
		order = append(order, top.block)
		stack = stack[:len(stack)-1]
	}
	return order
}
