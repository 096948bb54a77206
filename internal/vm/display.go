package vm

import "strings"

const spriteWidth = 8

// Display is the 64x32 monochrome framebuffer. Every cell is 0 or 1 and is
// only changed through Clear and Blit.
type Display struct {
	pixels  [ScreenWidth * ScreenHeight]uint8
	version uint64
}

func (d *Display) Pixel(x, y int) uint8 {
	return d.pixels[screenAddr(x, y)]
}

// Pixels exposes the row-major framebuffer for presentation.
// Callers must not modify it.
func (d *Display) Pixels() []uint8 {
	return d.pixels[:]
}

// Version changes every time the framebuffer is mutated.
func (d *Display) Version() uint64 {
	return d.version
}

func (d *Display) Clear() {
	d.pixels = [ScreenWidth * ScreenHeight]uint8{}
	d.version++
}

// Blit XORs an 8-pixel wide sprite onto the framebuffer at (x, y), wrapping
// around both edges. It reports whether any lit pixel was switched off.
func (d *Display) Blit(x, y uint8, sprite []uint8) bool {
	collision := false

	for r, row := range sprite {
		for c := 0; c < spriteWidth; c++ {
			bit := (row >> (7 - c)) & 0x01
			addr := screenAddr(int(x)+c, int(y)+r)

			old := d.pixels[addr]
			px := old ^ bit
			if old == 1 && px == 0 {
				collision = true
			}
			d.pixels[addr] = px
		}
	}

	d.version++
	return collision
}

func (d *Display) String() string {
	var sb strings.Builder
	sb.Grow((ScreenWidth + 1) * ScreenHeight)

	for y := 0; y < ScreenHeight; y++ {
		for x := 0; x < ScreenWidth; x++ {
			if d.pixels[screenAddr(x, y)] != 0 {
				sb.WriteByte('#')
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}

	return sb.String()
}

// screenAddr wraps both coordinates onto the screen, negative ones included.
func screenAddr(x, y int) int {
	x = (x%ScreenWidth + ScreenWidth) % ScreenWidth
	y = (y%ScreenHeight + ScreenHeight) % ScreenHeight

	return ScreenWidth*y + x
}
