// Package disasm produces a static listing of a CHIP-8 program image.
//
// The image is walked linearly two bytes at a time from the load address.
// Words that do not decode are emitted as data, so sprite tables mixed into
// code do not stop the listing.
package disasm

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/kapitanov/chip8emu/internal/vm"
)

type Line struct {
	Addr   uint16
	Word   uint16
	Bytes  int // 2, or 1 for a trailing odd byte
	Instr  vm.Instruction
	Valid  bool
	Target bool // address is a jump or call target
}

func (l Line) Mnemonic() string {
	switch {
	case l.Bytes == 1:
		return fmt.Sprintf("DB 0x%02X", l.Word)
	case !l.Valid:
		return fmt.Sprintf("DW 0x%04X", l.Word)
	default:
		return l.Instr.String()
	}
}

// Disassemble decodes program as if loaded at vm.ProgramStart.
func Disassemble(program []byte) ([]Line, error) {
	if len(program) > vm.MaxProgramSize {
		return nil, fmt.Errorf("%w: %d bytes", vm.ErrProgramTooLarge, len(program))
	}

	lines := make([]Line, 0, (len(program)+1)/2)
	targets := make(map[uint16]struct{})

	for off := 0; off < len(program); off += vm.InstructionSize {
		addr := vm.ProgramStart + uint16(off)

		if off+1 == len(program) {
			lines = append(lines, Line{Addr: addr, Word: uint16(program[off]), Bytes: 1})
			break
		}

		word := uint16(program[off])<<8 | uint16(program[off+1])
		line := Line{Addr: addr, Word: word, Bytes: 2}

		instr, err := vm.Decode(word)
		if err == nil {
			line.Instr = instr
			line.Valid = true

			if instr.Op == vm.OpJP || instr.Op == vm.OpCALL {
				targets[instr.NNN] = struct{}{}
			}
		} else if !isDecodeError(err) {
			return nil, err
		}

		lines = append(lines, line)
	}

	for i := range lines {
		if _, ok := targets[lines[i].Addr]; ok {
			lines[i].Target = true
		}
	}

	return lines, nil
}

// Targets returns jump and call destinations that fall outside the image or
// between its words, sorted.
func Targets(lines []Line) []uint16 {
	known := make(map[uint16]bool, len(lines))
	for _, l := range lines {
		known[l.Addr] = true
	}

	seen := make(map[uint16]bool)
	var out []uint16
	for _, l := range lines {
		if !l.Valid || (l.Instr.Op != vm.OpJP && l.Instr.Op != vm.OpCALL) {
			continue
		}
		if t := l.Instr.NNN; !known[t] && !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Write prints a listing in the form
//
//	L_202:
//	0x202  6008  LD V0, 0x08
func Write(w io.Writer, lines []Line) error {
	for _, l := range lines {
		if l.Target {
			if _, err := fmt.Fprintf(w, "L_%03X:\n", l.Addr); err != nil {
				return err
			}
		}

		word := fmt.Sprintf("%04X", l.Word)
		if l.Bytes == 1 {
			word = fmt.Sprintf("%02X  ", l.Word)
		}

		if _, err := fmt.Fprintf(w, "0x%03X  %s  %s\n", l.Addr, word, l.Mnemonic()); err != nil {
			return err
		}
	}

	if unresolved := Targets(lines); len(unresolved) > 0 {
		if _, err := fmt.Fprintf(w, "; %d unresolved target(s):", len(unresolved)); err != nil {
			return err
		}
		for _, t := range unresolved {
			if _, err := fmt.Fprintf(w, " 0x%03X", t); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}

	return nil
}

func isDecodeError(err error) bool {
	var decodeErr *vm.DecodeError
	return errors.As(err, &decodeErr)
}
