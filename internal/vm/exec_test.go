package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run decodes and executes a single opcode against m without a fetch.
func run(t *testing.T, m *VM, raw uint16) {
	t.Helper()

	ins, err := Decode(raw)
	require.NoError(t, err)
	require.NoError(t, m.execute(ins))
}

func step(t *testing.T, m *VM, n int) {
	t.Helper()

	for i := 0; i < n; i++ {
		_, err := m.Step()
		require.NoError(t, err)
	}
}

func TestArithmetic_AddWithCarry(t *testing.T) {
	m := newTestVM(t)

	for a := 0; a < 256; a++ {
		for b := 0; b < 256; b++ {
			m.SetRegister(0x1, uint8(a))
			m.SetRegister(0x2, uint8(b))
			run(t, m, 0x8124)

			require.Equal(t, uint8((a+b)%256), m.Register(0x1))
			require.Equal(t, boolToFlag(a+b > 255), m.Register(0xF), "a=%d b=%d", a, b)
		}
	}
}

func TestArithmetic_Sub(t *testing.T) {
	m := newTestVM(t)

	for a := 0; a < 256; a++ {
		for b := 0; b < 256; b++ {
			m.SetRegister(0x1, uint8(a))
			m.SetRegister(0x2, uint8(b))
			run(t, m, 0x8125)

			require.Equal(t, uint8((a-b+256)%256), m.Register(0x1))
			require.Equal(t, boolToFlag(a > b), m.Register(0xF), "a=%d b=%d", a, b)

			m.SetRegister(0x1, uint8(a))
			m.SetRegister(0x2, uint8(b))
			run(t, m, 0x8127)

			require.Equal(t, uint8((b-a+256)%256), m.Register(0x1))
			require.Equal(t, boolToFlag(b > a), m.Register(0xF), "subn a=%d b=%d", a, b)
		}
	}
}

func TestArithmetic_Shift(t *testing.T) {
	m := newTestVM(t)

	for a := 0; a < 256; a++ {
		m.SetRegister(0x3, uint8(a))
		run(t, m, 0x8306)
		require.Equal(t, uint8(a>>1), m.Register(0x3))
		require.Equal(t, uint8(a&1), m.Register(0xF))

		m.SetRegister(0x3, uint8(a))
		run(t, m, 0x830E)
		require.Equal(t, uint8((a<<1)%256), m.Register(0x3))
		require.Equal(t, uint8((a>>7)&1), m.Register(0xF))
	}
}

func TestArithmetic_FlagRegisterAsDestination(t *testing.T) {
	m := newTestVM(t)

	m.SetRegister(0xF, 200)
	m.SetRegister(0x1, 100)
	run(t, m, 0x8F14)
	assert.Equal(t, uint8(1), m.Register(0xF))

	m.SetRegister(0xF, 0x81)
	run(t, m, 0x8F06)
	assert.Equal(t, uint8(1), m.Register(0xF))
}

func TestArithmetic_Bitwise(t *testing.T) {
	m := newTestVM(t)
	m.SetRegister(0xF, 0x55)

	m.SetRegister(0x1, 0b1100)
	m.SetRegister(0x2, 0b1010)
	run(t, m, 0x8121)
	assert.Equal(t, uint8(0b1110), m.Register(0x1))

	m.SetRegister(0x1, 0b1100)
	run(t, m, 0x8122)
	assert.Equal(t, uint8(0b1000), m.Register(0x1))

	m.SetRegister(0x1, 0b1100)
	run(t, m, 0x8123)
	assert.Equal(t, uint8(0b0110), m.Register(0x1))

	run(t, m, 0x8120)
	assert.Equal(t, uint8(0b1010), m.Register(0x1))

	assert.Equal(t, uint8(0x55), m.Register(0xF), "bitwise ops leave VF alone")
}

func TestArithmetic_Immediate(t *testing.T) {
	m := newTestVM(t)
	m.SetRegister(0xF, 0x33)

	run(t, m, 0x6AF0)
	assert.Equal(t, uint8(0xF0), m.Register(0xA))

	run(t, m, 0x7A20)
	assert.Equal(t, uint8(0x10), m.Register(0xA), "wraps modulo 256")
	assert.Equal(t, uint8(0x33), m.Register(0xF), "no carry flag")
}

func TestSkip(t *testing.T) {
	tests := []struct {
		name   string
		raw    uint16
		vx, vy uint8
		skip   bool
	}{
		{"SE byte equal", 0x3A05, 5, 0, true},
		{"SE byte different", 0x3A05, 6, 0, false},
		{"SNE byte equal", 0x4A05, 5, 0, false},
		{"SNE byte different", 0x4A05, 6, 0, true},
		{"SE reg equal", 0x5AB0, 7, 7, true},
		{"SE reg different", 0x5AB0, 7, 8, false},
		{"SNE reg equal", 0x9AB0, 7, 7, false},
		{"SNE reg different", 0x9AB0, 7, 8, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestVM(t, tt.raw)
			m.SetRegister(0xA, tt.vx)
			m.SetRegister(0xB, tt.vy)

			step(t, m, 1)

			want := ProgramStart + InstructionSize
			if tt.skip {
				want += InstructionSize
			}
			assert.Equal(t, want, m.PC())
		})
	}
}

func TestFlow_CallReturn(t *testing.T) {
	rom := make([]uint16, 0x81)
	rom[0] = 0x2300    // 0x200: CALL 0x300
	rom[0x80] = 0x00EE // 0x300: RET
	m := newTestVM(t, rom...)

	step(t, m, 1)
	assert.Equal(t, uint16(0x300), m.PC())
	assert.Equal(t, uint8(1), m.SP())
	assert.Equal(t, []uint16{0x202}, m.Stack())

	step(t, m, 1)
	assert.Equal(t, uint16(0x202), m.PC())
	assert.Equal(t, uint8(0), m.SP())
}

func TestFlow_Jumps(t *testing.T) {
	m := newTestVM(t, 0x1ABC)
	step(t, m, 1)
	assert.Equal(t, uint16(0xABC), m.PC())

	m = newTestVM(t, 0xB300)
	m.SetRegister(0x0, 0x04)
	step(t, m, 1)
	assert.Equal(t, uint16(0x304), m.PC())
}

func TestIndex_LoadAndAdd(t *testing.T) {
	m := newTestVM(t)
	m.SetRegister(0xF, 0x77)

	run(t, m, 0xAFF0)
	assert.Equal(t, uint16(0xFF0), m.Index())

	m.SetRegister(0x2, 0x20)
	run(t, m, 0xF21E)
	assert.Equal(t, uint16(0x1010), m.Index())
	assert.Equal(t, uint8(0x77), m.Register(0xF), "ADD I does not touch VF")
}

func TestIndex_FontGlyph(t *testing.T) {
	m := newTestVM(t)

	for digit := uint8(0); digit < 16; digit++ {
		m.SetRegister(0x4, digit)
		run(t, m, 0xF429)

		require.Equal(t, uint16(digit)*FontGlyphSize, m.Index())
		mem := m.Memory()
		require.Equal(t, Glyph(digit), mem[m.Index():m.Index()+FontGlyphSize])
	}
}

func TestMemory_BCD(t *testing.T) {
	tests := []struct {
		value uint8
		want  []uint8
	}{
		{157, []uint8{1, 5, 7}},
		{0, []uint8{0, 0, 0}},
		{9, []uint8{0, 0, 9}},
		{40, []uint8{0, 4, 0}},
		{255, []uint8{2, 5, 5}},
	}

	for _, tt := range tests {
		m := newTestVM(t)
		m.SetIndex(0x300)
		m.SetRegister(0x5, tt.value)

		run(t, m, 0xF533)

		assert.Equal(t, tt.want, m.Memory()[0x300:0x303], "value %d", tt.value)
		assert.Equal(t, uint16(0x300), m.Index())
	}
}

func TestMemory_StoreAndLoadRegisters(t *testing.T) {
	m := newTestVM(t)
	for x := uint8(0); x < RegisterCount; x++ {
		m.SetRegister(x, 0x10+x)
	}

	m.SetIndex(0x400)
	run(t, m, 0xF355)

	assert.Equal(t, []uint8{0x10, 0x11, 0x12, 0x13, 0x00}, m.Memory()[0x400:0x405])
	assert.Equal(t, uint16(0x400), m.Index(), "I is left unchanged")

	for x := uint8(0); x < RegisterCount; x++ {
		m.SetRegister(x, 0)
	}
	run(t, m, 0xF265)

	assert.Equal(t, uint8(0x10), m.Register(0x0))
	assert.Equal(t, uint8(0x11), m.Register(0x1))
	assert.Equal(t, uint8(0x12), m.Register(0x2))
	assert.Equal(t, uint8(0x00), m.Register(0x3), "only V0..Vx are loaded")
	assert.Equal(t, uint16(0x400), m.Index())
}

func TestMemory_OutOfRange(t *testing.T) {
	tests := []struct {
		name  string
		raw   uint16
		index uint16
	}{
		{"draw past end", 0xD015, 0xFFE},
		{"bcd past end", 0xF033, 0xFFE},
		{"store past end", 0xFF55, 0xFF8},
		{"load past end", 0xFF65, 0xFF8},
		{"index beyond 12 bits", 0xF065, 0x1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestVM(t, tt.raw)
			m.SetIndex(tt.index)

			_, err := m.Step()
			require.ErrorIs(t, err, ErrAddressOutOfRange)
		})
	}
}

func TestRandom(t *testing.T) {
	m := newTestVM(t)

	for i := 0; i < 200; i++ {
		run(t, m, 0xC30F)
		require.Zero(t, m.Register(0x3)&0xF0)

		run(t, m, 0xC300)
		require.Zero(t, m.Register(0x3))
	}
}

func TestKeys_Skip(t *testing.T) {
	m := newTestVM(t, 0xE19E, 0xE1A1)
	m.SetRegister(0x1, 0xB)

	m.Keyboard().Press(KeyB)
	step(t, m, 1)
	assert.Equal(t, uint16(0x204), m.PC(), "SKP skips when pressed")

	m.SetPC(0x202)
	step(t, m, 1)
	assert.Equal(t, uint16(0x204), m.PC(), "SKNP does not skip when pressed")

	m.Keyboard().Release(KeyB)
	m.SetPC(0x200)
	step(t, m, 1)
	assert.Equal(t, uint16(0x202), m.PC(), "SKP does not skip when released")

	step(t, m, 1)
	assert.Equal(t, uint16(0x206), m.PC(), "SKNP skips when released")
}

func TestKeys_WaitForKey(t *testing.T) {
	m := newTestVM(t, 0xF70A)

	for i := 0; i < 3; i++ {
		step(t, m, 1)
		require.Equal(t, ProgramStart, m.PC(), "instruction is replayed until a key is down")
	}

	m.Keyboard().Press(Key7)
	step(t, m, 1)
	assert.Equal(t, uint8(7), m.Register(0x7))
	assert.Equal(t, ProgramStart+InstructionSize, m.PC())
}

func TestTimers(t *testing.T) {
	m := newTestVM(t, 0x6A3C, 0xFA15, 0xFA18, 0xFB07)

	step(t, m, 3)
	assert.Equal(t, uint8(60), m.DelayTimer())
	assert.Equal(t, uint8(60), m.SoundTimer())

	m.TickTimers()
	step(t, m, 1)
	assert.Equal(t, uint8(59), m.Register(0xB))
	assert.Equal(t, uint8(59), m.SoundTimer())
}

func TestDisplay_ClearAndDraw(t *testing.T) {
	m := newTestVM(t)
	m.Display().Blit(0, 0, []uint8{0xFF})

	run(t, m, 0x00E0)
	assert.Equal(t, uint8(0), m.Display().Pixel(0, 0))

	m.SetRegister(0xF, 0x09)
	run(t, m, 0xD000)
	assert.Equal(t, uint8(0), m.Register(0xF), "zero-height sprite draws nothing")
}
