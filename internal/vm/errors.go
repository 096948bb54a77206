package vm

import (
	"errors"
	"fmt"
)

var (
	ErrProgramTooLarge   = errors.New("program does not fit into memory")
	ErrStackOverflow     = errors.New("stack overflow")
	ErrStackUnderflow    = errors.New("stack underflow")
	ErrAddressOutOfRange = errors.New("address out of range")
)

// DecodeError reports an opcode that is not part of the instruction set.
// PC is the address the opcode was fetched from; it is zero when the error
// comes from Decode directly rather than from a running machine.
type DecodeError struct {
	Opcode uint16
	PC     uint16
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("unknown opcode 0x%04X at 0x%03X", e.Opcode, e.PC)
}

func addressError(addr int) error {
	return fmt.Errorf("%w: 0x%04X", ErrAddressOutOfRange, addr)
}
