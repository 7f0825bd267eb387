package ir

import (
	"fmt"
	"strings"
)

// Type is the type of a value. The set of implementations is closed.
type Type interface {
	fmt.Stringer
	isType()
}

type IntType struct{ Bits uint32 }

type FloatKind uint8

const (
	Half FloatKind = iota
	BFloat
	Float
	Double
	X86FP80
	FP128
	PPCFP128
)

var floatKindNames = [...]string{
	Half:     "half",
	BFloat:   "bfloat",
	Float:    "float",
	Double:   "double",
	X86FP80:  "x86_fp80",
	FP128:    "fp128",
	PPCFP128: "ppc_fp128",
}

type FloatType struct{ Kind FloatKind }

type PointerType struct{ AddrSpace uint32 }

type VectorType struct {
	Len      uint64
	Elem     Type
	Scalable bool
}

type ArrayType struct {
	Len  uint64
	Elem Type
}

// StructType is either a literal struct or a named one; named structs are shared by
// pointer and may be filled in after first use.
type StructType struct {
	Name   string
	Fields []Type
	Packed bool
	Opaque bool
}

type FuncType struct {
	Ret      Type
	Params   []Type
	Variadic bool
}

type VoidType struct{}
type LabelType struct{}
type MetadataType struct{}
type TokenType struct{}

var (
	Void     = &VoidType{}
	Label    = &LabelType{}
	Metadata = &MetadataType{}
	Token    = &TokenType{}
	Ptr      = &PointerType{}
	I1       = &IntType{Bits: 1}
	I8       = &IntType{Bits: 8}
	I32      = &IntType{Bits: 32}
	I64      = &IntType{Bits: 64}
)

func (*IntType) isType()      {}
func (*FloatType) isType()    {}
func (*PointerType) isType()  {}
func (*VectorType) isType()   {}
func (*ArrayType) isType()    {}
func (*StructType) isType()   {}
func (*FuncType) isType()     {}
func (*VoidType) isType()     {}
func (*LabelType) isType()    {}
func (*MetadataType) isType() {}
func (*TokenType) isType()    {}

func (t *IntType) String() string   { return fmt.Sprintf("i%d", t.Bits) }
func (t *FloatType) String() string { return floatKindNames[t.Kind] }
func (t *PointerType) String() string {
	if t.AddrSpace == 0 {
		return "ptr"
	}
	return fmt.Sprintf("ptr addrspace(%d)", t.AddrSpace)
}
func (t *VectorType) String() string {
	if t.Scalable {
		return fmt.Sprintf("<vscale x %d x %s>", t.Len, t.Elem)
	}
	return fmt.Sprintf("<%d x %s>", t.Len, t.Elem)
}
func (t *ArrayType) String() string { return fmt.Sprintf("[%d x %s]", t.Len, t.Elem) }
func (t *StructType) String() string {
	if t.Name != "" {
		return "%" + t.Name
	}
	return t.Body()
}

// Body prints the field list regardless of the struct's name.
func (t *StructType) Body() string {
	if t.Opaque {
		return "opaque"
	}
	parts := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		parts[i] = f.String()
	}
	body := "{ " + strings.Join(parts, ", ") + " }"
	if len(t.Fields) == 0 {
		body = "{}"
	}
	if t.Packed {
		return "<" + body + ">"
	}
	return body
}
func (t *FuncType) String() string {
	parts := make([]string, 0, len(t.Params)+1)
	for _, p := range t.Params {
		parts = append(parts, p.String())
	}
	if t.Variadic {
		parts = append(parts, "...")
	}
	return fmt.Sprintf("%s (%s)", t.Ret, strings.Join(parts, ", "))
}
func (*VoidType) String() string     { return "void" }
func (*LabelType) String() string    { return "label" }
func (*MetadataType) String() string { return "metadata" }
func (*TokenType) String() string    { return "token" }

// ScalarType returns the element type of a vector, or t itself.
func ScalarType(t Type) Type {
	if v, ok := t.(*VectorType); ok {
		return v.Elem
	}
	return t
}

// IsFloat reports whether t is a floating-point type or a vector of them.
func IsFloat(t Type) bool {
	_, ok := ScalarType(t).(*FloatType)
	return ok
}

// IntBits returns the scalar integer width of t, or 0 when t is not an integer type.
func IntBits(t Type) uint32 {
	if it, ok := ScalarType(t).(*IntType); ok {
		return it.Bits
	}
	return 0
}
