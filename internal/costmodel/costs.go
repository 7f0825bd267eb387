package costmodel

import (
	"errors"
	"fmt"
)

// Per-class base costs, in instruction-equivalents.
const (
	CostLoadStore   uint64 = 4
	CostJump        uint64 = 1
	CostMul         uint64 = 3
	CostDiv         uint64 = 12
	CostFDiv        uint64 = 30
	CostFMul        uint64 = 5
	CostCheapFloat  uint64 = 3
	CostGlobal      uint64 = 2
	CostBitCount    uint64 = 3
	CostUnsupported uint64 = 1000
)

// Variant selects how phi nodes and materialized constants are charged.
type Variant uint8

const (
	// Reference charges nothing for phi nodes and tiers constants by encoding size.
	Reference Variant = iota
	// Legacy is the earlier model: one unit per phi incoming edge, every constant
	// loaded from the constant pool and every global address charged separately.
	Legacy
)

var ErrUnknownVariant = errors.New("costmodel: unknown variant")

func (v Variant) String() string {
	switch v {
	case Reference:
		return "reference"
	case Legacy:
		return "legacy"
	}
	return fmt.Sprintf("variant(%d)", uint8(v))
}

func ParseVariant(s string) (Variant, error) {
	switch s {
	case "reference":
		return Reference, nil
	case "legacy":
		return Legacy, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownVariant, s)
}
