package isa

import (
	"errors"
	"fmt"
)

const (
	InstructionBits = 32
	RegBits         = 5
	BinOpReg        = RegBits * 3
	UnOpReg         = RegBits * 2
	OpTypeBits      = 2 // 8 16 32 64
	predBits        = 4
	fpClassBits     = 10
)

// Opcode is one mnemonic and the number of instruction bits its operand fields occupy.
// The remaining InstructionBits-Length bits form the opcode prefix.
type Opcode struct {
	Mnemonic string
	Length   uint32
}

func (o Opcode) PrefixBits() uint32 {
	return InstructionBits - o.Length
}

var (
	ErrDuplicateMnemonic = errors.New("isa: redefined operation mnemonic")
	ErrInvalidLength     = errors.New("isa: invalid instruction length")
)

// Opcodes builds the opcode table implied by p.
func Opcodes(p Params) []Opcode {
	ops := []Opcode{
		{"LI", RegBits + p.LargeImmBits},
		{"LUI", RegBits + p.LargeImmBits},
		{"LBITI", RegBits + p.BitImmBits},
		{"ADD", BinOpReg + OpTypeBits},
		{"SUB", BinOpReg + OpTypeBits},
		{"ADDI", UnOpReg + OpTypeBits + p.AddSubImmBits},
		{"RSBI", UnOpReg + OpTypeBits + p.AddSubImmBits},
		{"SLL", BinOpReg + OpTypeBits},
		{"SRL", BinOpReg + OpTypeBits},
		{"SRA", BinOpReg + OpTypeBits},
		{"SLLVI", UnOpReg + p.ShAmtBits + OpTypeBits},
		{"SRLVI", UnOpReg + p.ShAmtBits + OpTypeBits},
		{"SRAVI", UnOpReg + p.ShAmtBits + OpTypeBits},
		{"SLLIV", UnOpReg + p.ShiftImmBits + OpTypeBits},
		{"SRLIV", UnOpReg + p.ShiftImmBits + OpTypeBits},
		{"SRAIV", UnOpReg + p.ShiftImmBits + OpTypeBits},
		{"FSHL", RegBits*4 + OpTypeBits},
		{"FSHR", RegBits*4 + OpTypeBits},
		{"FSHLI", BinOpReg + p.ShAmtBits + OpTypeBits},
		{"AND", BinOpReg + p.NotBit},
		{"OR", BinOpReg + p.NotBit},
		{"XOR", BinOpReg + p.NotBit},
		{"ANDI", UnOpReg + p.NotBit + p.BitImmBits},
		{"ORI", UnOpReg + p.NotBit + p.BitImmBits},
		{"XORI", UnOpReg + p.NotBit + p.BitImmBits},
		{"ICMP", BinOpReg + OpTypeBits + predBits},
		{"ICMPI", UnOpReg + OpTypeBits + predBits + p.CmpImmBits},
		{"CTPOP", UnOpReg + OpTypeBits},
		{"CTLZ", UnOpReg + OpTypeBits},
		{"CTTZ", UnOpReg + OpTypeBits},
		{"SELVV", BinOpReg},
		{"SELVI", UnOpReg + OpTypeBits + p.SelectImmBits},
		{"SELIV", UnOpReg + OpTypeBits + p.SelectImmBits},
		{"SELII", RegBits + OpTypeBits + p.SmallSelectImmBits*2},
		{"SCMPSELI", BinOpReg + OpTypeBits},
		{"UCMPSELI", BinOpReg + OpTypeBits},
		{"MUL", BinOpReg + OpTypeBits},
		{"MULI", UnOpReg + OpTypeBits + p.MulDivBits},
		{"MULHU", BinOpReg + OpTypeBits},
		{"MULHS", BinOpReg + OpTypeBits},
		{"SDIV", BinOpReg + OpTypeBits},
		{"SDIVI", UnOpReg + OpTypeBits + p.MulDivBits},
		{"UDIV", BinOpReg + OpTypeBits},
		{"UDIVI", UnOpReg + OpTypeBits + p.MulDivBits},
		{"SREM", BinOpReg + OpTypeBits},
		{"SREMI", UnOpReg + OpTypeBits + p.MulDivBits},
		{"UREM", BinOpReg + OpTypeBits},
		{"UREMI", UnOpReg + OpTypeBits + p.MulDivBits},
		{"ABS", UnOpReg + OpTypeBits},
		{"ABSDIFF", BinOpReg + OpTypeBits},
		{"BSWAP16", UnOpReg},
		{"BSWAP32", UnOpReg},
		{"BSWAP64", UnOpReg},
		{"BREV", UnOpReg + OpTypeBits},
		{"SMAX", BinOpReg + OpTypeBits},
		{"SMIN", BinOpReg + OpTypeBits},
		{"UMAX", BinOpReg + OpTypeBits},
		{"UMIN", BinOpReg + OpTypeBits},
		{"SMAXI", UnOpReg + OpTypeBits + p.MinMaxImmBits},
		{"SMINI", UnOpReg + OpTypeBits + p.MinMaxImmBits},
		{"UMAXI", UnOpReg + OpTypeBits + p.MinMaxImmBits},
		{"UMINI", UnOpReg + OpTypeBits + p.MinMaxImmBits},
		{"SSAT", UnOpReg + OpTypeBits + p.ShAmtBits},
		{"USAT", UnOpReg + OpTypeBits + p.ShAmtBits},
		{"FADD", BinOpReg + OpTypeBits},
		{"FADDI", UnOpReg + OpTypeBits + p.FPSmallImmBits},
		{"FSUB", BinOpReg + OpTypeBits},
		{"FRSBI", UnOpReg + OpTypeBits + p.FPSmallImmBits},
		{"FMUL", BinOpReg + OpTypeBits},
		{"FMULI", UnOpReg + OpTypeBits + p.FPSmallImmBits},
		{"FDIV", BinOpReg + OpTypeBits},
		{"FDIVI", UnOpReg + OpTypeBits + p.FPSmallImmBits},
		{"FSQRT", UnOpReg + OpTypeBits},
		{"FABS", UnOpReg + OpTypeBits + p.NegBit},
		{"FCOPYSIGN", BinOpReg + OpTypeBits + p.NegBit},
		// the sign of the immediate is implied by the negate bit
		{"FCOPYSIGNI", UnOpReg + OpTypeBits + p.NegBit + p.FPSmallImmBits - 1},
		{"FMAX", BinOpReg + OpTypeBits},
		{"FMIN", BinOpReg + OpTypeBits},
		{"FMAXNM", BinOpReg + OpTypeBits},
		{"FMINNM", BinOpReg + OpTypeBits},
		{"FCLASS", UnOpReg + fpClassBits + OpTypeBits},
		{"FTOSI", UnOpReg + OpTypeBits},
		{"FTOUI", UnOpReg + OpTypeBits},
		{"FTOSISAT", UnOpReg + OpTypeBits + p.ShAmtBits},
		{"FTOUISAT", UnOpReg + OpTypeBits + p.ShAmtBits},
		{"FTOBI", UnOpReg + OpTypeBits},
		{"SITOF", UnOpReg + OpTypeBits},
		{"UITOF", UnOpReg + OpTypeBits},
		{"BITOF", UnOpReg + OpTypeBits},
		{"FMA", RegBits*4 + OpTypeBits},
		{"FLI", RegBits + OpTypeBits + p.FPImmBits},
		{"FCMP", BinOpReg + OpTypeBits + predBits},
		{"FCMPI", UnOpReg + OpTypeBits + predBits + p.FPSmallImmBits},
		{"J", p.LinkBit + p.JumpOffsetImmBits},
		{"JR", RegBits + p.LinkBit + p.JumpOffsetImmBits},
		{"BCMP", RegBits*2 + OpTypeBits + predBits + p.BranchOffsetImmBits},
		{"BCMPI", RegBits + p.BranchCmpImmBits + OpTypeBits + predBits + p.BranchOffsetImmBits},
	}
	if p.SmallMulBits != 0 {
		ops = append(ops,
			Opcode{"SHLIADD", BinOpReg + OpTypeBits + p.ShAmtBits},
			Opcode{"MULIADD", BinOpReg + OpTypeBits + p.SmallMulBits},
			Opcode{"SRLIDIFF", BinOpReg + OpTypeBits + p.ShAmtBits},
			Opcode{"SRAIDIFF", BinOpReg + OpTypeBits + p.ShAmtBits},
			Opcode{"UDIVIDIFF", BinOpReg + OpTypeBits + p.SmallMulBits},
			Opcode{"SDIVIDIFF", BinOpReg + OpTypeBits + p.SmallMulBits},
		)
	}
	return ops
}

// CheckOpcodes verifies that mnemonics are unique and every opcode leaves room for a prefix.
func CheckOpcodes(ops []Opcode) error {
	seen := make(map[string]struct{}, len(ops))
	for _, op := range ops {
		if _, ok := seen[op.Mnemonic]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateMnemonic, op.Mnemonic)
		}
		seen[op.Mnemonic] = struct{}{}
		if op.Length >= InstructionBits {
			return fmt.Errorf("%w: %s uses %d bits", ErrInvalidLength, op.Mnemonic, op.Length)
		}
	}
	return nil
}
