package vm

import "fmt"

type Key uint8

const (
	Key0 = Key(iota)
	Key1
	Key2
	Key3
	Key4
	Key5
	Key6
	Key7
	Key8
	Key9
	KeyA
	KeyB
	KeyC
	KeyD
	KeyE
	KeyF
)

func (k Key) String() string {
	return fmt.Sprintf("%X", uint8(k)&0x0F)
}

// Keyboard is the pressed/released state of the 16 virtual keys.
// Keys are always taken modulo 16, so nothing outside 0x0-0xF is addressable.
type Keyboard struct {
	keys [KeyCount]bool
}

func (kb *Keyboard) Press(k Key) {
	kb.keys[k&0x0F] = true
}

func (kb *Keyboard) Release(k Key) {
	kb.keys[k&0x0F] = false
}

func (kb *Keyboard) Pressed(k Key) bool {
	return kb.keys[k&0x0F]
}

// FirstPressed returns the lowest-numbered key that is currently down.
func (kb *Keyboard) FirstPressed() (Key, bool) {
	for i, down := range kb.keys {
		if down {
			return Key(i), true
		}
	}
	return 0, false
}

func (kb *Keyboard) reset() {
	kb.keys = [KeyCount]bool{}
}
