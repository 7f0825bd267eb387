package isa

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"reflect"

	"gopkg.in/yaml.v3"
)

// Params holds the immediate field widths, in bits, of one instruction set revision.
// Values are immutable once built; pass them by value.
type Params struct {
	Name string `yaml:"name"`

	ShAmtBits     uint32 `yaml:"sh_amt_bits"`
	AddSubImmBits uint32 `yaml:"add_sub_imm_bits"`
	// Bit-pattern immediates:
	// 0: Int<8> << ShAmt
	// 100: splat Int<8>
	// 110: mask 2^k - 1
	// 111: ~(mask 2^k - 1)
	BitImmBits          uint32 `yaml:"bit_imm_bits"`
	SelectImmBits       uint32 `yaml:"select_imm_bits"`
	SmallSelectImmBits  uint32 `yaml:"small_select_imm_bits"`
	LargeImmBits        uint32 `yaml:"large_imm_bits"`
	ShiftImmBits        uint32 `yaml:"shift_imm_bits"`
	MinMaxImmBits       uint32 `yaml:"min_max_imm_bits"`
	MulDivBits          uint32 `yaml:"mul_div_bits"`
	FPImmBits           uint32 `yaml:"fp_imm_bits"`       // IEEE half
	FPSmallImmBits      uint32 `yaml:"fp_small_imm_bits"` // float8 E4M3FN
	NotBit              uint32 `yaml:"not_bit"`
	NegBit              uint32 `yaml:"neg_bit"`
	LinkBit             uint32 `yaml:"link_bit"`
	CmpImmBits          uint32 `yaml:"cmp_imm_bits"`
	JumpOffsetImmBits   uint32 `yaml:"jump_offset_imm_bits"`
	BranchOffsetImmBits uint32 `yaml:"branch_offset_imm_bits"`
	BranchCmpImmBits    uint32 `yaml:"branch_cmp_imm_bits"`
	// SmallMulBits enables the fused shift/multiply-add opcodes when non-zero.
	SmallMulBits uint32 `yaml:"small_mul_bits"`
}

var (
	// Rev1 is the first published width table.
	Rev1 = Params{
		Name:                "rev1",
		ShAmtBits:           6,
		AddSubImmBits:       12,
		BitImmBits:          15,
		SelectImmBits:       12,
		SmallSelectImmBits:  8,
		LargeImmBits:        20,
		ShiftImmBits:        12,
		MinMaxImmBits:       12,
		MulDivBits:          10,
		FPImmBits:           16,
		FPSmallImmBits:      8,
		NotBit:              1,
		NegBit:              1,
		LinkBit:             1,
		CmpImmBits:          12,
		JumpOffsetImmBits:   16,
		BranchOffsetImmBits: 10,
		BranchCmpImmBits:    6,
	}

	// Rev2 adds the fused multiply-add family and widens add/sub immediates. Its widths are
	// illustrative of a successor revision, not taken from a published table.
	Rev2 = func() Params {
		p := Rev1
		p.Name = "rev2"
		p.AddSubImmBits = 14
		p.SmallMulBits = 4
		return p
	}()
)

var (
	ErrUnknownRevision = errors.New("isa: unknown revision")
	ErrInvalidParams   = errors.New("isa: invalid parameters")
)

// Revisions lists the built-in parameter sets by name.
func Revisions() []Params {
	return []Params{Rev1, Rev2}
}

// Revision returns the built-in parameter set called name.
func Revision(name string) (Params, error) {
	for _, p := range Revisions() {
		if p.Name == name {
			return p, nil
		}
	}
	return Params{}, fmt.Errorf("%w: %q", ErrUnknownRevision, name)
}

// Load reads a YAML parameter file. Missing widths default to Rev1, unknown keys are rejected.
func Load(path string) (Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Params{}, fmt.Errorf("isa: reading %s: %w", path, err)
	}
	p := Rev1
	p.Name = ""
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return Params{}, fmt.Errorf("isa: decoding %s: %w", path, err)
	}
	if p.Name == "" {
		p.Name = path
	}
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

// Validate rejects widths that no predicate can evaluate.
func (p Params) Validate() error {
	v := reflect.ValueOf(p)
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		w, ok := v.Field(i).Interface().(uint32)
		if !ok {
			continue
		}
		name := t.Field(i).Name
		if w >= 64 {
			return fmt.Errorf("%w: %s=%d exceeds 63 bits", ErrInvalidParams, name, w)
		}
		if w == 0 && name != "SmallMulBits" {
			return fmt.Errorf("%w: %s must be non-zero", ErrInvalidParams, name)
		}
	}
	return nil
}

// Fingerprint is a stable encoding of the widths, independent of Name.
func (p Params) Fingerprint() []byte {
	var buf []byte
	v := reflect.ValueOf(p)
	for i := 0; i < v.NumField(); i++ {
		if w, ok := v.Field(i).Interface().(uint32); ok {
			buf = binary.LittleEndian.AppendUint32(buf, w)
		}
	}
	return buf
}
