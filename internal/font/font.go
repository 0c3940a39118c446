// Package font parses the bit-packed proportional font container and
// rasterizes glyphs into an internal/fb buffer. Field widths, box metrics
// and jump offsets are all read from a 23-byte header; see
// assets/fonts/gen_font.py for the authoritative container layout this
// reads.
package font

import (
	"embed"
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	"github.com/fdb/fri3d-wasm-badge/internal/fb"
)

//go:embed primary.bin secondary.bin keyboard.bin bignumbers.bin
var embedded embed.FS

const headerSize = 23

// Font is a parsed, ready-to-rasterize glyph container.
type Font struct {
	data []byte

	widthBits, heightBits int
	xoffBits, yoffBits    int
	dxBits                int
	runBits               int
	boxWidth, boxHeight   int

	startUpperA   int
	startLowerA   int
	startUnicode  int
}

// Glyph is one decoded glyph: its metrics and a row-major bitmap of
// width*height pixels, stored one byte (0 or 1) per pixel.
type Glyph struct {
	Width, Height int
	XOff, YOff    int
	DX            int
	Pixels        []byte // one byte per pixel, 0 or 1, row-major
}

// Parse reads a font container from raw bytes.
func Parse(raw []byte) (*Font, error) {
	if len(raw) < headerSize {
		return nil, fmt.Errorf("font: header truncated, got %d bytes", len(raw))
	}
	f := &Font{data: raw}
	f.widthBits = int(raw[3])
	f.heightBits = int(raw[4])
	f.xoffBits = int(raw[5])
	f.yoffBits = int(raw[6])
	f.dxBits = int(raw[7])
	f.runBits = int(raw[8])
	f.boxWidth = int(raw[9])
	f.boxHeight = int(raw[10])
	f.startUpperA = int(binary.LittleEndian.Uint32(raw[11:15]))
	f.startLowerA = int(binary.LittleEndian.Uint32(raw[15:19]))
	f.startUnicode = int(binary.LittleEndian.Uint32(raw[19:23]))
	return f, nil
}

// MustLoadEmbedded loads one of the four compiled-in font assets by name
// ("primary", "secondary", "keyboard", "bignumbers"); it panics on failure
// since these are build-time assets, not user input.
func MustLoadEmbedded(name string) *Font {
	raw, err := embedded.ReadFile(name + ".bin")
	if err != nil {
		panic(fmt.Sprintf("font: missing embedded asset %q: %v", name, err))
	}
	f, err := Parse(raw)
	if err != nil {
		panic(fmt.Sprintf("font: malformed embedded asset %q: %v", name, err))
	}
	return f
}

func (f *Font) tableBase() int { return headerSize }

// Glyph looks up the glyph for a codepoint, scanning the ASCII or unicode
// table sections per the header's jump offsets. It returns ok=false when
// the codepoint has no glyph.
func (f *Font) Glyph(cp rune) (Glyph, bool) {
	if cp <= 0xFF {
		return f.glyphASCII(byte(cp))
	}
	return f.glyphUnicode(cp)
}

func (f *Font) glyphASCII(target byte) (Glyph, bool) {
	pos := f.tableBase()
	switch {
	case target >= 'a':
		pos += f.startLowerA
	case target >= 'A':
		pos += f.startUpperA
	}
	for {
		if pos+2 > len(f.data) {
			return Glyph{}, false
		}
		encoding := f.data[pos]
		size := int(f.data[pos+1])
		if size == 0 {
			return Glyph{}, false
		}
		payloadStart := pos + 2
		if payloadStart+size > len(f.data) {
			return Glyph{}, false
		}
		if encoding == target {
			g, err := f.decodePayload(f.data[payloadStart : payloadStart+size])
			if err != nil {
				return Glyph{}, false
			}
			return g, true
		}
		pos = payloadStart + size
	}
}

func (f *Font) glyphUnicode(target rune) (Glyph, bool) {
	pos := f.tableBase() + f.startUnicode
	for {
		if pos+4 > len(f.data) {
			return Glyph{}, false
		}
		jump := int(binary.BigEndian.Uint16(f.data[pos : pos+2]))
		nextEncoding := rune(binary.BigEndian.Uint16(f.data[pos+2 : pos+4]))
		recordPos := pos + 4 + jump
		if nextEncoding >= target {
			if recordPos+3 > len(f.data) {
				return Glyph{}, false
			}
			encoding := rune(binary.BigEndian.Uint16(f.data[recordPos : recordPos+2]))
			size := int(f.data[recordPos+2])
			if size == 0 || encoding != target {
				return Glyph{}, false
			}
			payloadStart := recordPos + 3
			if payloadStart+size > len(f.data) {
				return Glyph{}, false
			}
			g, err := f.decodePayload(f.data[payloadStart : payloadStart+size])
			if err != nil {
				return Glyph{}, false
			}
			return g, true
		}
		pos += 4
	}
}

type bitReader struct {
	data []byte
	pos  int // bit position
}

func (r *bitReader) readBit() int {
	if r.pos/8 >= len(r.data) {
		return 0
	}
	b := r.data[r.pos/8]
	shift := 7 - uint(r.pos%8)
	r.pos++
	return int((b >> shift) & 1)
}

func (r *bitReader) readUint(width int) int {
	v := 0
	for i := 0; i < width; i++ {
		v = (v << 1) | r.readBit()
	}
	return v
}

func (r *bitReader) readSigned(width int) int {
	v := r.readUint(width)
	if width == 0 {
		return 0
	}
	signBit := 1 << (width - 1)
	if v&signBit != 0 {
		v -= 1 << width
	}
	return v
}

func (f *Font) decodePayload(payload []byte) (Glyph, error) {
	r := &bitReader{data: payload}
	width := r.readUint(f.widthBits)
	height := r.readUint(f.heightBits)
	xoff := r.readSigned(f.xoffBits)
	yoff := r.readSigned(f.yoffBits)
	dx := r.readSigned(f.dxBits)

	if width <= 0 || height <= 0 {
		return Glyph{Width: width, Height: height, XOff: xoff, YOff: yoff, DX: dx}, nil
	}

	pixels := make([]byte, 0, width*height)
	for len(pixels) < width*height {
		run0 := r.readUint(f.runBits)
		run1 := r.readUint(f.runBits)
		cont := r.readBit()
		for i := 0; i < run0 && len(pixels) < width*height; i++ {
			pixels = append(pixels, 0)
		}
		for i := 0; i < run1 && len(pixels) < width*height; i++ {
			pixels = append(pixels, 1)
		}
		if cont == 0 {
			break
		}
	}
	for len(pixels) < width*height {
		pixels = append(pixels, 0)
	}

	return Glyph{
		Width:  width,
		Height: height,
		XOff:   xoff,
		YOff:   yoff,
		DX:     dx,
		Pixels: pixels,
	}, nil
}

// DrawString rasterizes a NUL/LF-terminated UTF-8 string onto buf with its
// baseline at (x, y), advancing the pen by each glyph's delta-x.
func (f *Font) DrawString(buf *fb.Buffer, x, y int, text string) {
	pen := x
	for _, r := range decodeRunes(text) {
		g, ok := f.Glyph(r)
		if !ok {
			continue
		}
		drawGlyph(buf, g, pen, y)
		pen += g.DX
	}
}

func drawGlyph(buf *fb.Buffer, g Glyph, x, y int) {
	if g.Width <= 0 || g.Height <= 0 {
		return
	}
	originX := x + g.XOff
	originY := y - g.Height - g.YOff
	for row := 0; row < g.Height; row++ {
		for col := 0; col < g.Width; col++ {
			idx := row*g.Width + col
			if idx >= len(g.Pixels) || g.Pixels[idx] == 0 {
				continue
			}
			buf.DrawDot(originX+col, originY+row)
		}
	}
}

// StringWidth sums delta-x across the string's glyphs, with the spec's
// last-glyph correction: when the final glyph has non-zero width, its
// contribution becomes glyph_width+XOff instead of DX.
func (f *Font) StringWidth(text string) int {
	runes := decodeRunes(text)
	total := 0
	for i, r := range runes {
		g, ok := f.Glyph(r)
		if !ok {
			continue
		}
		adv := g.DX
		if i == len(runes)-1 && g.Width != 0 {
			adv = g.Width + g.XOff
		}
		total += adv
	}
	return total
}

// decodeRunes implements the UTF-8 scan terminated at NUL or LF, tolerant
// of invalid or truncated sequences (decode stops there, never faults).
func decodeRunes(text string) []rune {
	out := make([]rune, 0, len(text))
	for len(text) > 0 {
		r, size := utf8.DecodeRuneInString(text)
		if r == 0 || r == '\n' || (r == utf8.RuneError && size <= 1) {
			break
		}
		out = append(out, r)
		text = text[size:]
	}
	return out
}
