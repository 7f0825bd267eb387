package ir

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// DataLayout answers size and alignment queries, parsed from the module's
// "target datalayout" string. Sizes and alignments are in bytes.
type DataLayout struct {
	PointerBits  uint32
	PointerAlign uint64
	// intAlign maps an integer bit width to its ABI alignment.
	intAlign   map[uint32]uint64
	floatAlign map[uint32]uint64
	aggrAlign  uint64
}

func DefaultLayout() *DataLayout {
	return &DataLayout{
		PointerBits:  64,
		PointerAlign: 8,
		intAlign:     map[uint32]uint64{1: 1, 8: 1, 16: 2, 32: 4, 64: 4},
		floatAlign:   map[uint32]uint64{16: 2, 32: 4, 64: 8, 128: 16},
		aggrAlign:    1,
	}
}

// ParseLayout applies a datalayout specification on top of the defaults.
func ParseLayout(spec string) (*DataLayout, error) {
	dl := DefaultLayout()
	for _, part := range strings.Split(spec, "-") {
		if part == "" {
			continue
		}
		fields := strings.Split(part, ":")
		head := fields[0]
		if head == "" {
			continue
		}
		switch {
		case head[0] == 'p' && (len(head) == 1 || isDigits(head[1:])):
			if len(head) > 1 && head != "p0" {
				continue // only the default address space is modelled
			}
			if len(fields) < 3 {
				return nil, fmt.Errorf("datalayout: malformed pointer spec %q", part)
			}
			size, err := strconv.ParseUint(fields[1], 10, 32)
			if err != nil {
				return nil, fmt.Errorf("datalayout: %q: %w", part, err)
			}
			align, err := strconv.ParseUint(fields[2], 10, 32)
			if err != nil {
				return nil, fmt.Errorf("datalayout: %q: %w", part, err)
			}
			dl.PointerBits = uint32(size)
			dl.PointerAlign = align / 8
		case (head[0] == 'i' || head[0] == 'f') && len(head) > 1 && isDigits(head[1:]):
			if len(fields) < 2 {
				return nil, fmt.Errorf("datalayout: malformed spec %q", part)
			}
			width, err := strconv.ParseUint(head[1:], 10, 32)
			if err != nil {
				return nil, fmt.Errorf("datalayout: %q: %w", part, err)
			}
			align, err := strconv.ParseUint(fields[1], 10, 32)
			if err != nil {
				return nil, fmt.Errorf("datalayout: %q: %w", part, err)
			}
			if head[0] == 'i' {
				dl.intAlign[uint32(width)] = align / 8
			} else {
				dl.floatAlign[uint32(width)] = align / 8
			}
		case head == "a" && len(fields) >= 2:
			align, err := strconv.ParseUint(fields[1], 10, 32)
			if err != nil {
				return nil, fmt.Errorf("datalayout: %q: %w", part, err)
			}
			dl.aggrAlign = max(align/8, 1)
		}
	}
	return dl, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// StoreSize is the number of bytes written by a store of t.
func (dl *DataLayout) StoreSize(t Type) uint64 {
	switch t := t.(type) {
	case *IntType:
		return (uint64(t.Bits) + 7) / 8
	case *FloatType:
		switch t.Kind {
		case Half, BFloat:
			return 2
		case Float:
			return 4
		case Double:
			return 8
		case X86FP80:
			return 10
		default:
			return 16
		}
	case *PointerType:
		return uint64(dl.PointerBits) / 8
	case *VectorType:
		return (t.Len*dl.bitSize(t.Elem) + 7) / 8
	default:
		return dl.AllocSize(t)
	}
}

func (dl *DataLayout) bitSize(t Type) uint64 {
	switch t := t.(type) {
	case *IntType:
		return uint64(t.Bits)
	case *FloatType:
		if t.Kind == X86FP80 {
			return 80
		}
	}
	return dl.StoreSize(t) * 8
}

// AllocSize is the distance between consecutive elements of type t in memory.
func (dl *DataLayout) AllocSize(t Type) uint64 {
	switch t := t.(type) {
	case *ArrayType:
		return t.Len * dl.AllocSize(t.Elem)
	case *StructType:
		size, _ := dl.structLayout(t)
		return size
	case *VoidType, *LabelType, *MetadataType, *TokenType, *FuncType:
		return 0
	default:
		return alignTo(dl.StoreSize(t), dl.ABIAlign(t))
	}
}

// ABIAlign is the required alignment of t.
func (dl *DataLayout) ABIAlign(t Type) uint64 {
	switch t := t.(type) {
	case *IntType:
		return lookupAlign(dl.intAlign, t.Bits)
	case *FloatType:
		if t.Kind == X86FP80 {
			return lookupAlign(dl.floatAlign, 80)
		}
		return lookupAlign(dl.floatAlign, uint32(dl.StoreSize(t)*8))
	case *PointerType:
		return dl.PointerAlign
	case *VectorType:
		return nextPow2(dl.StoreSize(t))
	case *ArrayType:
		return dl.ABIAlign(t.Elem)
	case *StructType:
		if t.Packed {
			return dl.aggrAlign
		}
		align := dl.aggrAlign
		for _, f := range t.Fields {
			align = max(align, dl.ABIAlign(f))
		}
		return align
	default:
		return 1
	}
}

// lookupAlign uses the entry for the smallest listed width >= bits, or the largest listed.
func lookupAlign(table map[uint32]uint64, bits uint32) uint64 {
	if a, ok := table[bits]; ok {
		return max(a, 1)
	}
	widths := make([]uint32, 0, len(table))
	for w := range table {
		widths = append(widths, w)
	}
	sort.Slice(widths, func(i, j int) bool { return widths[i] < widths[j] })
	for _, w := range widths {
		if w >= bits {
			return max(table[w], 1)
		}
	}
	if len(widths) == 0 {
		return 1
	}
	return max(table[widths[len(widths)-1]], 1)
}

// FieldOffset returns the byte offset of field i in t.
func (dl *DataLayout) FieldOffset(t *StructType, i int) uint64 {
	_, offsets := dl.structLayout(t)
	if i < len(offsets) {
		return offsets[i]
	}
	return 0
}

func (dl *DataLayout) structLayout(t *StructType) (uint64, []uint64) {
	offsets := make([]uint64, len(t.Fields))
	var size uint64
	for i, f := range t.Fields {
		if !t.Packed {
			size = alignTo(size, dl.ABIAlign(f))
		}
		offsets[i] = size
		size += dl.AllocSize(f)
	}
	if !t.Packed {
		size = alignTo(size, dl.ABIAlign(t))
	}
	return size, offsets
}

func alignTo(n, align uint64) uint64 {
	if align <= 1 {
		return n
	}
	return (n + align - 1) / align * align
}

func nextPow2(n uint64) uint64 {
	p := uint64(1)
	for p < n {
		p <<= 1
	}
	return p
}

// VariableOffset is an address term Index*Scale.
type VariableOffset struct {
	Index Value
	Scale int64
}

// GEPOffsets splits the address computed by a getelementptr into a constant byte offset
// and variable terms, one per distinct index value in first-use order. Arithmetic wraps
// at 64 bits. Decomposition stops early at indices it cannot express (a variable struct
// index or a non-zero scalable index); the terms gathered so far are still returned
// with ok=false.
func (dl *DataLayout) GEPOffsets(gep *Inst) (constant int64, vars []VariableOffset, ok bool) {
	if gep.Op != OpGetElementPtr || len(gep.Ops) < 2 {
		return 0, nil, true
	}
	pos := make(map[Value]int)
	var cur Type
	for n, idx := range gep.Ops[1:] {
		var stride uint64
		var st *StructType
		var scalable bool
		if n == 0 {
			cur = gep.ElemType
			stride = dl.AllocSize(cur)
		} else {
			switch t := cur.(type) {
			case *StructType:
				st = t
			case *ArrayType:
				cur = t.Elem
				stride = dl.AllocSize(cur)
			case *VectorType:
				cur = t.Elem
				stride = dl.AllocSize(cur)
				scalable = t.Scalable
			default:
				return constant, vars, false
			}
		}
		if n == 0 {
			if vt, isVec := gep.ElemType.(*VectorType); isVec {
				scalable = vt.Scalable
			}
		}

		if c, isConst := SplatInt(idx); isConst {
			if c.IsZero() {
				if st != nil {
					if len(st.Fields) == 0 {
						return constant, vars, false
					}
					cur = st.Fields[0]
				}
				continue
			}
			if scalable {
				return constant, vars, false
			}
			if st != nil {
				field := int(c.ZExt())
				if field >= len(st.Fields) {
					return constant, vars, false
				}
				constant += int64(dl.FieldOffset(st, field))
				cur = st.Fields[field]
				continue
			}
			constant += c.SExt() * int64(stride)
			continue
		}
		if st != nil || scalable {
			return constant, vars, false
		}
		if stride == 0 {
			continue
		}
		if i, seen := pos[idx]; seen {
			vars[i].Scale += int64(stride)
			continue
		}
		pos[idx] = len(vars)
		vars = append(vars, VariableOffset{Index: idx, Scale: int64(stride)})
	}
	return constant, vars, true
}
