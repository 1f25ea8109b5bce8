package kernel

// framebuffer.go implements the fb_* syscalls (spec.md §4.12): clear, draw
// a single pixel, and draw text using a built-in bitmap font. The kernel
// does not own the pixel buffer itself — that lives in rv64.Memory, reached
// through the GuestMemory contract, as does the dirty-region tracker — but it
// does own the bounds checks, made here against a width/height pair supplied
// at construction.

import "github.com/basin-os/basin/internal/rv64"

const (
	defaultFBWidth  = rv64.DefaultFBWidth
	defaultFBHeight = rv64.DefaultFBHeight
	bytesPerPixel   = rv64.BytesPerPixel
)

// Framebuffer tracks the geometry the fb_* syscalls validate against; pixel
// storage and dirty tracking live in the VM's memory subsystem.
type Framebuffer struct {
	Width  uint64
	Height uint64
}

// Clear implements fb_clear: fills the entire framebuffer with color. Every
// pixel write goes through WriteGuest, which already expands the memory
// subsystem's dirty-region tracker (mem.go's markDirty) one pixel at a
// time; writing every pixel therefore leaves the tracker covering the full
// rectangle without this package needing its own handle on it.
func (k *Kernel) Clear(mem GuestWriter, color uint32) error {
	buf := []byte{byte(color >> 24), byte(color >> 16), byte(color >> 8), byte(color)} // R is MSB, A is LSB

	for y := uint64(0); y < k.FB.Height; y++ {
		for x := uint64(0); x < k.FB.Width; x++ {
			off := (y*k.FB.Width + x) * bytesPerPixel
			if _, err := mem.WriteGuest(uint64(rv64.FramebufferBase)+off, buf); err != nil {
				return Fail("fb_clear", ErrOutOfBounds)
			}
		}
	}

	return nil
}

// DrawPixel implements fb_draw_pixel.
func (k *Kernel) DrawPixel(mem GuestWriter, x, y uint64, color uint32) error {
	if x >= k.FB.Width || y >= k.FB.Height {
		return Fail("fb_draw_pixel", ErrOutOfBounds)
	}

	buf := []byte{byte(color >> 24), byte(color >> 16), byte(color >> 8), byte(color)}
	off := (y*k.FB.Width + x) * bytesPerPixel

	if _, err := mem.WriteGuest(uint64(rv64.FramebufferBase)+off, buf); err != nil {
		return Fail("fb_draw_pixel", ErrOutOfBounds)
	}

	return nil
}

const (
	glyphWidth  = 8
	glyphHeight = 8
	glyphFirst  = 0x20
	glyphLast   = 0x7e
	textReadCap = 4096
)

// DrawText implements fb_draw_text: reads a NUL-terminated string from
// guest memory, renders it glyph by glyph from the built-in font, wrapping
// at the right edge and on newline, and returns the number of characters
// emitted.
func (k *Kernel) DrawText(mem GuestMemory, ptr, x, y uint64, fgColor uint32) (int64, error) {
	if ptr == 0 {
		return 0, Fail("fb_draw_text", ErrInvalidArgument)
	}

	if x >= k.FB.Width || y >= k.FB.Height {
		return 0, Fail("fb_draw_text", ErrOutOfBounds)
	}

	s, err := readCString(mem, ptr, textReadCap)
	if err != nil {
		return 0, Fail("fb_draw_text", ErrInvalidArgument)
	}

	if len(s) == 0 {
		return 0, Fail("fb_draw_text", ErrInvalidArgument)
	}

	penX, penY := x, y
	emitted := int64(0)

	for _, ch := range []byte(s) {
		if ch == '\n' {
			penX = x
			penY += glyphHeight

			continue
		}

		if penX+glyphWidth > k.FB.Width {
			penX = x
			penY += glyphHeight
		}

		if penY+glyphHeight > k.FB.Height {
			break
		}

		k.drawGlyph(mem, penX, penY, ch, fgColor)
		penX += glyphWidth
		emitted++
	}

	return emitted, nil
}

func (k *Kernel) drawGlyph(mem GuestWriter, x, y uint64, ch byte, color uint32) {
	rows := glyphFor(ch)

	for row := 0; row < glyphHeight; row++ {
		bits := rows[row]
		for col := 0; col < glyphWidth; col++ {
			if bits&(1<<(7-col)) == 0 {
				continue
			}

			_ = k.DrawPixel(mem, x+uint64(col), y+uint64(row), color)
		}
	}
}

// readCString reads up to cap bytes from vaddr via mem, stopping at the
// first NUL byte.
func readCString(mem GuestReader, vaddr uint64, cap int) (string, error) {
	buf := make([]byte, 0, 64)
	one := make([]byte, 1)

	for i := 0; i < cap; i++ {
		n, err := mem.ReadGuest(vaddr+uint64(i), one)
		if err != nil || n == 0 {
			return "", err
		}

		if one[0] == 0 {
			return string(buf), nil
		}

		buf = append(buf, one[0])
	}

	return string(buf), nil
}

// glyphFor returns the 8 row masks for an ASCII character in [0x20, 0x7e];
// anything outside that range draws as the space glyph (all-zero rows).
// The bitmap itself is data, not semantics: per spec.md §9(c) its exact
// bits are implementation-defined, so this is a compact block font rather
// than a faithful reproduction of any particular terminal's charset.
func glyphFor(ch byte) [8]byte {
	if ch < glyphFirst || ch > glyphLast {
		return [8]byte{}
	}

	if g, ok := font[ch]; ok {
		return g
	}

	return [8]byte{}
}
