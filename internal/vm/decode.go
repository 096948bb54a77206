package vm

import "fmt"

// Op identifies the kind of a decoded instruction.
type Op uint8

const (
	OpInvalid Op = iota
	OpCLS        // 00E0
	OpRET        // 00EE
	OpJP         // 1nnn
	OpCALL       // 2nnn
	OpSEByte     // 3xkk
	OpSNEByte    // 4xkk
	OpSEReg      // 5xy0
	OpLDByte     // 6xkk
	OpADDByte    // 7xkk
	OpLDReg      // 8xy0
	OpOR         // 8xy1
	OpAND        // 8xy2
	OpXOR        // 8xy3
	OpADDReg     // 8xy4
	OpSUB        // 8xy5
	OpSHR        // 8xy6
	OpSUBN       // 8xy7
	OpSHL        // 8xyE
	OpSNEReg     // 9xy0
	OpLDI        // Annn
	OpJPV0       // Bnnn
	OpRND        // Cxkk
	OpDRW        // Dxyn
	OpSKP        // Ex9E
	OpSKNP       // ExA1
	OpLDVxDT     // Fx07
	OpLDVxK      // Fx0A
	OpLDDTVx     // Fx15
	OpLDSTVx     // Fx18
	OpADDI       // Fx1E
	OpLDF        // Fx29
	OpLDB        // Fx33
	OpLDIVx      // Fx55
	OpLDVxI      // Fx65
)

// Instruction is a decoded opcode together with its operand fields.
// Only the fields meaningful for Op are set.
type Instruction struct {
	Op  Op
	X   uint8  // bits 8-11
	Y   uint8  // bits 4-7
	N   uint8  // bits 0-3
	KK  uint8  // bits 0-7
	NNN uint16 // bits 0-11
	Raw uint16
}

// Decode turns a raw 16-bit opcode into an Instruction. Bit patterns outside
// the instruction set yield a *DecodeError.
func Decode(raw uint16) (Instruction, error) {
	ins := Instruction{Raw: raw}

	x := uint8((raw & 0x0F00) >> 8)
	y := uint8((raw & 0x00F0) >> 4)
	n := uint8(raw & 0x000F)
	kk := uint8(raw & 0x00FF)
	nnn := raw & 0x0FFF

	switch raw & 0xF000 {
	case 0x0000:
		switch raw {
		case 0x00E0:
			ins.Op = OpCLS
		case 0x00EE:
			ins.Op = OpRET
		}

	case 0x1000:
		ins.Op, ins.NNN = OpJP, nnn

	case 0x2000:
		ins.Op, ins.NNN = OpCALL, nnn

	case 0x3000:
		ins.Op, ins.X, ins.KK = OpSEByte, x, kk

	case 0x4000:
		ins.Op, ins.X, ins.KK = OpSNEByte, x, kk

	case 0x5000:
		if n == 0x0 {
			ins.Op, ins.X, ins.Y = OpSEReg, x, y
		}

	case 0x6000:
		ins.Op, ins.X, ins.KK = OpLDByte, x, kk

	case 0x7000:
		ins.Op, ins.X, ins.KK = OpADDByte, x, kk

	case 0x8000:
		ins.X, ins.Y = x, y
		switch n {
		case 0x0:
			ins.Op = OpLDReg
		case 0x1:
			ins.Op = OpOR
		case 0x2:
			ins.Op = OpAND
		case 0x3:
			ins.Op = OpXOR
		case 0x4:
			ins.Op = OpADDReg
		case 0x5:
			ins.Op = OpSUB
		case 0x6:
			ins.Op = OpSHR
		case 0x7:
			ins.Op = OpSUBN
		case 0xE:
			ins.Op = OpSHL
		}

	case 0x9000:
		if n == 0x0 {
			ins.Op, ins.X, ins.Y = OpSNEReg, x, y
		}

	case 0xA000:
		ins.Op, ins.NNN = OpLDI, nnn

	case 0xB000:
		ins.Op, ins.NNN = OpJPV0, nnn

	case 0xC000:
		ins.Op, ins.X, ins.KK = OpRND, x, kk

	case 0xD000:
		ins.Op, ins.X, ins.Y, ins.N = OpDRW, x, y, n

	case 0xE000:
		ins.X = x
		switch kk {
		case 0x9E:
			ins.Op = OpSKP
		case 0xA1:
			ins.Op = OpSKNP
		}

	case 0xF000:
		ins.X = x
		switch kk {
		case 0x07:
			ins.Op = OpLDVxDT
		case 0x0A:
			ins.Op = OpLDVxK
		case 0x15:
			ins.Op = OpLDDTVx
		case 0x18:
			ins.Op = OpLDSTVx
		case 0x1E:
			ins.Op = OpADDI
		case 0x29:
			ins.Op = OpLDF
		case 0x33:
			ins.Op = OpLDB
		case 0x55:
			ins.Op = OpLDIVx
		case 0x65:
			ins.Op = OpLDVxI
		}
	}

	if ins.Op == OpInvalid {
		return Instruction{Raw: raw}, &DecodeError{Opcode: raw}
	}

	return ins, nil
}

func (ins Instruction) String() string {
	switch ins.Op {
	case OpCLS:
		return "CLS"
	case OpRET:
		return "RET"
	case OpJP:
		return fmt.Sprintf("JP 0x%03X", ins.NNN)
	case OpCALL:
		return fmt.Sprintf("CALL 0x%03X", ins.NNN)
	case OpSEByte:
		return fmt.Sprintf("SE V%X, 0x%02X", ins.X, ins.KK)
	case OpSNEByte:
		return fmt.Sprintf("SNE V%X, 0x%02X", ins.X, ins.KK)
	case OpSEReg:
		return fmt.Sprintf("SE V%X, V%X", ins.X, ins.Y)
	case OpLDByte:
		return fmt.Sprintf("LD V%X, 0x%02X", ins.X, ins.KK)
	case OpADDByte:
		return fmt.Sprintf("ADD V%X, 0x%02X", ins.X, ins.KK)
	case OpLDReg:
		return fmt.Sprintf("LD V%X, V%X", ins.X, ins.Y)
	case OpOR:
		return fmt.Sprintf("OR V%X, V%X", ins.X, ins.Y)
	case OpAND:
		return fmt.Sprintf("AND V%X, V%X", ins.X, ins.Y)
	case OpXOR:
		return fmt.Sprintf("XOR V%X, V%X", ins.X, ins.Y)
	case OpADDReg:
		return fmt.Sprintf("ADD V%X, V%X", ins.X, ins.Y)
	case OpSUB:
		return fmt.Sprintf("SUB V%X, V%X", ins.X, ins.Y)
	case OpSHR:
		return fmt.Sprintf("SHR V%X", ins.X)
	case OpSUBN:
		return fmt.Sprintf("SUBN V%X, V%X", ins.X, ins.Y)
	case OpSHL:
		return fmt.Sprintf("SHL V%X", ins.X)
	case OpSNEReg:
		return fmt.Sprintf("SNE V%X, V%X", ins.X, ins.Y)
	case OpLDI:
		return fmt.Sprintf("LD I, 0x%03X", ins.NNN)
	case OpJPV0:
		return fmt.Sprintf("JP V0, 0x%03X", ins.NNN)
	case OpRND:
		return fmt.Sprintf("RND V%X, 0x%02X", ins.X, ins.KK)
	case OpDRW:
		return fmt.Sprintf("DRW V%X, V%X, %d", ins.X, ins.Y, ins.N)
	case OpSKP:
		return fmt.Sprintf("SKP V%X", ins.X)
	case OpSKNP:
		return fmt.Sprintf("SKNP V%X", ins.X)
	case OpLDVxDT:
		return fmt.Sprintf("LD V%X, DT", ins.X)
	case OpLDVxK:
		return fmt.Sprintf("LD V%X, K", ins.X)
	case OpLDDTVx:
		return fmt.Sprintf("LD DT, V%X", ins.X)
	case OpLDSTVx:
		return fmt.Sprintf("LD ST, V%X", ins.X)
	case OpADDI:
		return fmt.Sprintf("ADD I, V%X", ins.X)
	case OpLDF:
		return fmt.Sprintf("LD F, V%X", ins.X)
	case OpLDB:
		return fmt.Sprintf("LD B, V%X", ins.X)
	case OpLDIVx:
		return fmt.Sprintf("LD [I], V%X", ins.X)
	case OpLDVxI:
		return fmt.Sprintf("LD V%X, [I]", ins.X)
	default:
		return fmt.Sprintf("unknown 0x%04X", ins.Raw)
	}
}
