package vm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
)

const (
	MemorySize    = 4096
	StackSize     = 16
	RegisterCount = 16
	ScreenWidth   = 64
	ScreenHeight  = 32
	KeyCount      = 16

	ProgramStart    = uint16(0x200)
	MaxProgramSize  = MemorySize - int(ProgramStart)
	InstructionSize = 2

	flagRegister = 0x0F
)

type VM struct {
	memory    [MemorySize]uint8    // Memory (4k)
	registers [RegisterCount]uint8 // V registers (V0-VF)

	stack [StackSize]uint16 // Stack
	sp    uint8             // Stack pointer

	pc    uint16 // Program counter
	index uint16 // Index register

	delayTimer uint8 // Delay timer
	soundTimer uint8 // Sound timer

	display Display
	keypad  Keyboard

	rng     *rand.Rand
	program []byte
}

type Option func(*VM)

// WithRand replaces the random source used by RND.
func WithRand(r *rand.Rand) Option {
	return func(vm *VM) {
		vm.rng = r
	}
}

// New creates a machine with the program loaded at ProgramStart.
// Programs that do not fit between ProgramStart and the end of memory are
// rejected.
func New(program []byte, opts ...Option) (*VM, error) {
	if len(program) > MaxProgramSize {
		return nil, fmt.Errorf("%w: %d bytes, at most %d allowed", ErrProgramTooLarge, len(program), MaxProgramSize)
	}

	vm := &VM{
		program: append([]byte(nil), program...),
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(vm)
	}

	vm.Reset()
	return vm, nil
}

// Reset returns the machine to its power-on state and reloads the program.
func (vm *VM) Reset() {
	vm.pc = ProgramStart
	vm.index = 0
	vm.sp = 0

	vm.display.Clear()

	vm.stack = [StackSize]uint16{}
	vm.keypad.reset()
	vm.registers = [RegisterCount]uint8{}
	vm.memory = [MemorySize]uint8{}

	// Load font set into memory
	slog.Debug("load font", "at", fmt.Sprintf("0x%04x", FontAddress), "n", len(chip8Font))
	copy(vm.memory[FontAddress:], chip8Font)
	copy(vm.memory[FontMirrorAddress:], chip8Font)

	// Load program into memory
	slog.Info("load program", "at", fmt.Sprintf("0x%04x", ProgramStart), "n", len(vm.program))
	copy(vm.memory[ProgramStart:], vm.program)

	vm.delayTimer = 0
	vm.soundTimer = 0
}

// Step fetches, decodes and executes exactly one instruction.
func (vm *VM) Step() (Instruction, error) {
	pc := vm.pc

	opcode, err := vm.fetchOpcode()
	if err != nil {
		return Instruction{}, fmt.Errorf("fetch at 0x%03X: %w", pc, err)
	}

	instr, err := Decode(opcode)
	if err != nil {
		var decodeErr *DecodeError
		if errors.As(err, &decodeErr) {
			decodeErr.PC = pc
		}
		return instr, err
	}

	if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		slog.Debug(
			"exec",
			"pc", fmt.Sprintf("0x%04x", pc),
			"opcode", fmt.Sprintf("0x%04x", opcode),
			"instr", instr.String(),
		)
	}

	if err := vm.execute(instr); err != nil {
		return instr, fmt.Errorf("%s at 0x%03X: %w", instr, pc, err)
	}

	return instr, nil
}

// TickTimers counts both timers down by one, stopping at zero.
func (vm *VM) TickTimers() {
	if vm.delayTimer > 0 {
		vm.delayTimer--
	}

	if vm.soundTimer > 0 {
		vm.soundTimer--
	}
}

// fetchOpcode reads the big-endian word at PC and advances PC past it.
func (vm *VM) fetchOpcode() (uint16, error) {
	if int(vm.pc)+1 >= MemorySize {
		return 0, addressError(int(vm.pc) + 1)
	}

	hi := vm.memory[vm.pc]
	lo := vm.memory[vm.pc+1]
	vm.pc += InstructionSize

	opcode := uint16(hi)<<8 | uint16(lo) // Op code is two bytes
	return opcode, nil
}

// OpcodeAt reads the word at addr without touching the machine state.
func (vm *VM) OpcodeAt(addr uint16) (uint16, error) {
	if int(addr)+1 >= MemorySize {
		return 0, addressError(int(addr) + 1)
	}
	return uint16(vm.memory[addr])<<8 | uint16(vm.memory[addr+1]), nil
}

// push increments SP and then stores addr, so stack[0] is never used and
// SP stays within 0..StackSize-1.
func (vm *VM) push(addr uint16) error {
	if int(vm.sp) >= StackSize-1 {
		return ErrStackOverflow
	}
	vm.sp++
	vm.stack[vm.sp] = addr
	return nil
}

// pop loads the top entry and then decrements SP.
func (vm *VM) pop() (uint16, error) {
	if vm.sp == 0 {
		return 0, ErrStackUnderflow
	}
	addr := vm.stack[vm.sp]
	vm.sp--
	return addr, nil
}

// readMemory returns n bytes starting at addr. The slice aliases memory.
func (vm *VM) readMemory(addr uint16, n int) ([]uint8, error) {
	end := int(addr) + n
	if end > MemorySize {
		return nil, addressError(end - 1)
	}
	return vm.memory[addr:end], nil
}

func (vm *VM) writeMemory(addr uint16, data ...uint8) error {
	end := int(addr) + len(data)
	if end > MemorySize {
		return addressError(end - 1)
	}
	copy(vm.memory[addr:end], data)
	return nil
}

func (vm *VM) PC() uint16 {
	return vm.pc
}

func (vm *VM) SetPC(pc uint16) {
	vm.pc = pc
}

func (vm *VM) Index() uint16 {
	return vm.index
}

func (vm *VM) SetIndex(i uint16) {
	vm.index = i
}

func (vm *VM) Register(x uint8) uint8 {
	return vm.registers[x&0x0F]
}

func (vm *VM) SetRegister(x, value uint8) {
	vm.registers[x&0x0F] = value
}

func (vm *VM) SP() uint8 {
	return vm.sp
}

// Stack returns the active part of the call stack, oldest entry first.
func (vm *VM) Stack() []uint16 {
	return append([]uint16(nil), vm.stack[1:vm.sp+1]...)
}

func (vm *VM) DelayTimer() uint8 {
	return vm.delayTimer
}

func (vm *VM) SetDelayTimer(v uint8) {
	vm.delayTimer = v
}

func (vm *VM) SoundTimer() uint8 {
	return vm.soundTimer
}

// Memory returns a copy of the whole address space.
func (vm *VM) Memory() []uint8 {
	return append([]uint8(nil), vm.memory[:]...)
}

func (vm *VM) Display() *Display {
	return &vm.display
}

func (vm *VM) Keyboard() *Keyboard {
	return &vm.keypad
}

// String dumps the machine registers in one line.
func (vm *VM) String() string {
	return fmt.Sprintf("pc=0x%03X i=0x%03X sp=%d dt=%d st=%d v=% X",
		vm.pc, vm.index, vm.sp, vm.delayTimer, vm.soundTimer, vm.registers[:])
}
