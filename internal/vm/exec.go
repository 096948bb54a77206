package vm

// execute applies one decoded instruction. PC already points past the
// instruction when execute runs.
func (vm *VM) execute(ins Instruction) error {
	v := &vm.registers

	switch ins.Op {
	case OpCLS:
		vm.display.Clear()

	case OpRET:
		pc, err := vm.pop()
		if err != nil {
			return err
		}
		vm.pc = pc

	case OpJP:
		vm.pc = ins.NNN

	case OpCALL:
		if err := vm.push(vm.pc); err != nil {
			return err
		}
		vm.pc = ins.NNN

	case OpSEByte:
		vm.skipIf(v[ins.X] == ins.KK)

	case OpSNEByte:
		vm.skipIf(v[ins.X] != ins.KK)

	case OpSEReg:
		vm.skipIf(v[ins.X] == v[ins.Y])

	case OpSNEReg:
		vm.skipIf(v[ins.X] != v[ins.Y])

	case OpLDByte:
		v[ins.X] = ins.KK

	case OpADDByte:
		// No carry generated
		v[ins.X] += ins.KK

	case OpLDReg:
		v[ins.X] = v[ins.Y]

	case OpOR:
		v[ins.X] |= v[ins.Y]

	case OpAND:
		v[ins.X] &= v[ins.Y]

	case OpXOR:
		v[ins.X] ^= v[ins.Y]

	// VF is written after Vx so that it holds the flag when x is F.
	case OpADDReg:
		sum := uint16(v[ins.X]) + uint16(v[ins.Y])
		v[ins.X] = uint8(sum)
		v[flagRegister] = boolToFlag(sum > 0xFF)

	case OpSUB:
		x, y := v[ins.X], v[ins.Y]
		v[ins.X] = x - y
		v[flagRegister] = boolToFlag(x > y)

	case OpSUBN:
		x, y := v[ins.X], v[ins.Y]
		v[ins.X] = y - x
		v[flagRegister] = boolToFlag(y > x)

	case OpSHR:
		x := v[ins.X]
		v[ins.X] = x >> 1
		v[flagRegister] = x & 0x01

	case OpSHL:
		x := v[ins.X]
		v[ins.X] = x << 1
		v[flagRegister] = x >> 7

	case OpLDI:
		vm.index = ins.NNN

	case OpJPV0:
		vm.pc = ins.NNN + uint16(v[0x0])

	case OpRND:
		v[ins.X] = uint8(vm.rng.UintN(256)) & ins.KK

	case OpDRW:
		sprite, err := vm.readMemory(vm.index, int(ins.N))
		if err != nil {
			return err
		}
		collision := vm.display.Blit(v[ins.X], v[ins.Y], sprite)
		v[flagRegister] = boolToFlag(collision)

	case OpSKP:
		vm.skipIf(vm.keypad.Pressed(Key(v[ins.X])))

	case OpSKNP:
		vm.skipIf(!vm.keypad.Pressed(Key(v[ins.X])))

	case OpLDVxDT:
		v[ins.X] = vm.delayTimer

	case OpLDVxK:
		key, ok := vm.keypad.FirstPressed()
		if !ok {
			// Replay this instruction on the next tick.
			vm.pc -= InstructionSize
			return nil
		}
		v[ins.X] = uint8(key)

	case OpLDDTVx:
		vm.delayTimer = v[ins.X]

	case OpLDSTVx:
		vm.soundTimer = v[ins.X]

	case OpADDI:
		vm.index += uint16(v[ins.X])

	case OpLDF:
		vm.index = glyphAddress(v[ins.X])

	case OpLDB:
		x := v[ins.X]
		return vm.writeMemory(vm.index, x/100, (x/10)%10, x%10)

	case OpLDIVx:
		return vm.writeMemory(vm.index, v[:ins.X+1]...)

	case OpLDVxI:
		data, err := vm.readMemory(vm.index, int(ins.X)+1)
		if err != nil {
			return err
		}
		copy(v[:], data)

	default:
		return &DecodeError{Opcode: ins.Raw}
	}

	return nil
}

func (vm *VM) skipIf(cond bool) {
	if cond {
		vm.pc += InstructionSize
	}
}

func boolToFlag(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
