package isa

import (
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
)

var ErrUnsatisfiable = errors.New("isa: opcode prefixes cannot be made distinct")

// Encoding is the prefix assigned to one opcode.
type Encoding struct {
	Opcode
	Prefix uint32
}

// Binary renders the prefix with exactly PrefixBits digits.
func (e Encoding) Binary() string {
	return fmt.Sprintf("%0*b", int(e.PrefixBits()), e.Prefix)
}

// AssignPrefixes gives every opcode a prefix of PrefixBits() bits so that no prefix is a
// prefix of another, i.e. truncated to the shorter length any two prefixes differ.
// Codes are assigned canonically, shortest prefix first, which succeeds exactly when the
// Kraft sum of 2^-PrefixBits over all opcodes is at most one.
// The result preserves the order of ops.
func AssignPrefixes(ops []Opcode) ([]Encoding, error) {
	if err := CheckOpcodes(ops); err != nil {
		return nil, err
	}

	order := make([]int, len(ops))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return ops[order[a]].PrefixBits() < ops[order[b]].PrefixBits()
	})

	out := make([]Encoding, len(ops))
	// next is the first free code at the current length; big.Int keeps the overflow
	// check exact when the code space is exhausted at a short length.
	next := new(big.Int)
	var length uint32
	for _, idx := range order {
		op := ops[idx]
		bits := op.PrefixBits()
		next.Lsh(next, uint(bits-length))
		length = bits
		if next.BitLen() > int(bits) {
			return nil, fmt.Errorf("%w: ran out of %d-bit prefixes at %s", ErrUnsatisfiable, bits, op.Mnemonic)
		}
		out[idx] = Encoding{Opcode: op, Prefix: uint32(next.Uint64())}
		next.Add(next, big.NewInt(1))
	}
	return out, nil
}

// Distinct reports whether every pair of encodings differs on their common prefix length.
func Distinct(encs []Encoding) bool {
	for i := range encs {
		for j := i + 1; j < len(encs); j++ {
			a, b := encs[i].Binary(), encs[j].Binary()
			n := min(len(a), len(b))
			if a[:n] == b[:n] {
				return false
			}
		}
	}
	return true
}

// FormatEncodings prints one line per opcode: right-aligned mnemonic and its prefix.
func FormatEncodings(encs []Encoding) string {
	var b strings.Builder
	for _, e := range encs {
		fmt.Fprintf(&b, "%12s %s\n", e.Mnemonic, e.Binary())
	}
	return b.String()
}
