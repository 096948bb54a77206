package vm

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestDisplay_DoubleDrawRestores(t *testing.T) {
	var d Display
	d.Blit(10, 10, []uint8{0x3C, 0x42, 0x81})

	before := append([]uint8(nil), d.Pixels()...)
	sprite := Glyph(0xA)

	assert.False(t, d.Blit(12, 11, sprite))
	assert.True(t, d.Blit(12, 11, sprite), "second draw clears every pixel it set")

	if diff := cmp.Diff(before, d.Pixels()); diff != "" {
		t.Errorf("framebuffer after double draw: (-want, +got)\n%s", diff)
	}
}

func TestDisplay_CollisionAcrossWholeSprite(t *testing.T) {
	var d Display
	d.Blit(0, 2, []uint8{0x80})

	// Only the last row overlaps an existing pixel.
	assert.True(t, d.Blit(0, 0, []uint8{0x00, 0x00, 0x80}))
	assert.Equal(t, uint8(0), d.Pixel(0, 2))

	assert.False(t, d.Blit(0, 0, []uint8{0x40}), "setting a pixel is not a collision")
}

func TestDisplay_WrapsAround(t *testing.T) {
	var d Display
	d.Blit(63, 31, []uint8{0xFF})

	assert.Equal(t, uint8(1), d.Pixel(63, 31))
	for x := 0; x < 7; x++ {
		assert.Equal(t, uint8(1), d.Pixel(x, 31), "x=%d", x)
	}
	assert.Equal(t, uint8(0), d.Pixel(7, 31))
	assert.Equal(t, uint8(0), d.Pixel(62, 31))

	d.Clear()
	d.Blit(0, 30, []uint8{0x80, 0x80, 0x80, 0x80})
	for _, y := range []int{30, 31, 0, 1} {
		assert.Equal(t, uint8(1), d.Pixel(0, y), "y=%d", y)
	}
	assert.Equal(t, uint8(0), d.Pixel(0, 2))
}

func TestDisplay_PixelWrapsNegativeCoordinates(t *testing.T) {
	var d Display
	d.Blit(63, 31, []uint8{0x80})

	assert.Equal(t, uint8(1), d.Pixel(-1, -1))
	assert.Equal(t, uint8(1), d.Pixel(-65, 31))
	assert.Equal(t, uint8(1), d.Pixel(127, 63))
	assert.Equal(t, uint8(0), d.Pixel(-1, 0))
}

func TestDisplay_VersionAndString(t *testing.T) {
	var d Display
	v := d.Version()

	d.Blit(1, 0, []uint8{0x80})
	assert.NotEqual(t, v, d.Version())

	lines := d.String()
	assert.Equal(t, ".#", lines[:2])
	assert.Len(t, lines, (ScreenWidth+1)*ScreenHeight)

	d.Clear()
	for _, px := range d.Pixels() {
		if px != 0 {
			t.Fatal("clear left a lit pixel")
		}
	}
}
