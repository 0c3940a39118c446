// Package fb implements the badge's monochrome framebuffer and its
// primitive rasterizers: dots, lines, frames, boxes, rounded variants,
// circles and discs, all reducing to a single pixel-write entry point.
package fb

// Color is the current drawing color. White clears a pixel, Black sets it,
// Xor toggles it.
type Color int

const (
	White Color = iota
	Black
	Xor
)

// Font identifies the active font for draw-str, owned by the caller
// (internal/font resolves it to a concrete glyph table).
type Font int

const (
	Primary Font = iota
	Secondary
	Keyboard
	BigNumbers
)

const (
	Width  = 128
	Height = 64
)

// Buffer is the 128x64 one-bit-per-pixel display, stored one byte per pixel
// (0 = white, 1 = black) — this is the host's chosen canonical layout, the
// same row-major convention as the original Canvas.buffer.
type Buffer struct {
	pixels [Width * Height]byte
	color  Color
	font   Font
}

// New returns a cleared buffer with color White and font Primary.
func New() *Buffer {
	return &Buffer{}
}

// Clear resets every pixel to white without touching color or font.
func (b *Buffer) Clear() {
	for i := range b.pixels {
		b.pixels[i] = 0
	}
}

func (b *Buffer) SetColor(c Color) {
	if c < White || c > Xor {
		c = Xor
	}
	b.color = c
}

func (b *Buffer) Color() Color { return b.color }

func (b *Buffer) SetFont(f Font) {
	if f < Primary || f > BigNumbers {
		f = BigNumbers
	}
	b.font = f
}

func (b *Buffer) Font() Font { return b.font }

func (b *Buffer) Width() int  { return Width }
func (b *Buffer) Height() int { return Height }

// BufferView returns the canonical one-byte-per-pixel layout, row-major,
// 0=white 1=black. The returned slice aliases internal storage; callers
// must not retain it across a Clear.
func (b *Buffer) BufferView() []byte {
	return b.pixels[:]
}

// setPixel is the single entry point every primitive reduces to. Writes
// outside the window are silently dropped.
func (b *Buffer) setPixel(x, y int) {
	if x < 0 || y < 0 || x >= Width || y >= Height {
		return
	}
	idx := y*Width + x
	switch b.color {
	case White:
		b.pixels[idx] = 0
	case Black:
		b.pixels[idx] = 1
	case Xor:
		b.pixels[idx] ^= 1
	}
}

// At returns the raw pixel value (0 or 1) at (x, y), or 0 if out of bounds.
func (b *Buffer) At(x, y int) byte {
	if x < 0 || y < 0 || x >= Width || y >= Height {
		return 0
	}
	return b.pixels[y*Width+x]
}

func (b *Buffer) DrawDot(x, y int) {
	b.setPixel(x, y)
}

// DrawLine plots an inclusive Bresenham line. Horizontal and vertical
// lines are always walked in increasing coordinate order; diagonal ties
// step x before y.
func (b *Buffer) DrawLine(x1, y1, x2, y2 int) {
	if (y1 == y2 && x1 > x2) || (x1 == x2 && y1 > y2) {
		x1, x2 = x2, x1
		y1, y2 = y2, y1
	}
	dx := abs(x2 - x1)
	dy := -abs(y2 - y1)
	sx := 1
	if x1 > x2 {
		sx = -1
	}
	sy := 1
	if y1 > y2 {
		sy = -1
	}
	err := dx + dy
	x, y := x1, y1
	for {
		b.setPixel(x, y)
		if x == x2 && y == y2 {
			break
		}
		e2 := 2 * err
		movedX := false
		if e2 >= dy {
			err += dy
			x += sx
			movedX = true
		}
		if e2 <= dx {
			err += dx
			y += sy
			_ = movedX
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// DrawFrame draws the rectangle's perimeter, each corner exactly once.
func (b *Buffer) DrawFrame(x, y, w, h int) {
	if w == 0 || h == 0 {
		return
	}
	b.DrawLine(x, y, x+w-1, y)
	if h > 1 {
		b.DrawLine(x, y+h-1, x+w-1, y+h-1)
	}
	if h > 2 {
		b.DrawLine(x, y+1, x, y+h-2)
		b.DrawLine(x+w-1, y+1, x+w-1, y+h-2)
	}
}

// DrawBox draws h consecutive horizontal lines of length w.
func (b *Buffer) DrawBox(x, y, w, h int) {
	if w == 0 || h == 0 {
		return
	}
	for row := 0; row < h; row++ {
		b.DrawLine(x, y+row, x+w-1, y+row)
	}
}

// circlePoints emits the 8-way symmetric points of a midpoint circle at
// offset (x, y) from center (cx, cy), skipping the duplicate points that
// occur when x == 0 or x == y, and restricted to an optional quadrant mask
// (nil means all four quadrants).
func circlePoints(cx, cy, x, y int, mask func(qx, qy int) bool, emit func(px, py int)) {
	pts := [8][2]int{
		{cx + x, cy + y}, {cx - x, cy + y}, {cx + x, cy - y}, {cx - x, cy - y},
		{cx + y, cy + x}, {cx - y, cy + x}, {cx + y, cy - x}, {cx - y, cy - x},
	}
	seen := map[[2]int]bool{}
	for _, p := range pts {
		if seen[p] {
			continue
		}
		seen[p] = true
		if mask != nil && !mask(p[0]-cx, p[1]-cy) {
			continue
		}
		emit(p[0], p[1])
	}
}

// DrawCircle draws a midpoint-algorithm circle outline.
func (b *Buffer) DrawCircle(cx, cy, r int) {
	b.drawCircleMasked(cx, cy, r, nil)
}

func (b *Buffer) drawCircleMasked(cx, cy, r int, mask func(qx, qy int) bool) {
	if r < 0 {
		return
	}
	if r == 0 {
		if mask == nil || mask(0, 0) {
			b.setPixel(cx, cy)
		}
		return
	}
	x, y := 0, r
	d := 1 - r
	for x <= y {
		circlePoints(cx, cy, x, y, mask, b.setPixel)
		if d < 0 {
			d += 2*x + 3
		} else {
			d += 2*(x-y) + 5
			y--
		}
		x++
	}
}

// DrawDisc fills a circle via horizontal row scans, guaranteeing each
// pixel is written at most once (safe under Xor).
func (b *Buffer) DrawDisc(cx, cy, r int) {
	if r < 0 {
		return
	}
	r2 := r * r
	for dy := -r; dy <= r; dy++ {
		remaining := r2 - dy*dy
		if remaining < 0 {
			continue
		}
		xExt := 0
		for (xExt+1)*(xExt+1) <= remaining {
			xExt++
		}
		b.DrawLine(cx-xExt, cy+dy, cx+xExt, cy+dy)
	}
}

func clampRadius(r, w, h int) int {
	if r > w/2 {
		r = w / 2
	}
	if r > h/2 {
		r = h / 2
	}
	return r
}

// DrawRFrame draws a rounded rectangle outline.
func (b *Buffer) DrawRFrame(x, y, w, h, r int) {
	r = clampRadius(r, w, h)
	if r <= 0 {
		b.DrawFrame(x, y, w, h)
		return
	}
	b.DrawLine(x+r, y, x+w-1-r, y)
	b.DrawLine(x+r, y+h-1, x+w-1-r, y+h-1)
	b.DrawLine(x, y+r, x, y+h-1-r)
	b.DrawLine(x+w-1, y+r, x+w-1, y+h-1-r)

	b.drawRoundCorners(x, y, w, h, r, false)
}

// DrawRBox draws a filled rounded rectangle: edges, three interior
// rectangles and four quarter-discs.
func (b *Buffer) DrawRBox(x, y, w, h, r int) {
	r = clampRadius(r, w, h)
	if r <= 0 {
		b.DrawBox(x, y, w, h)
		return
	}
	// Top cap, center band, bottom cap.
	b.DrawBox(x+r, y, w-2*r, r)
	b.DrawBox(x, y+r, w, h-2*r)
	b.DrawBox(x+r, y+h-r, w-2*r, r)

	b.drawRoundCorners(x, y, w, h, r, true)
}

func (b *Buffer) drawRoundCorners(x, y, w, h, r int, filled bool) {
	corners := []struct {
		cx, cy int
		mask   func(qx, qy int) bool
	}{
		{x + r, y + r, func(qx, qy int) bool { return qx <= 0 && qy <= 0 }},
		{x + w - 1 - r, y + r, func(qx, qy int) bool { return qx >= 0 && qy <= 0 }},
		{x + r, y + h - 1 - r, func(qx, qy int) bool { return qx <= 0 && qy >= 0 }},
		{x + w - 1 - r, y + h - 1 - r, func(qx, qy int) bool { return qx >= 0 && qy >= 0 }},
	}
	for _, c := range corners {
		if filled {
			b.drawQuarterDisc(c.cx, c.cy, r, c.mask)
		} else {
			b.drawCircleMasked(c.cx, c.cy, r, c.mask)
		}
	}
}

func (b *Buffer) drawQuarterDisc(cx, cy, r int, mask func(qx, qy int) bool) {
	r2 := r * r
	for dy := -r; dy <= r; dy++ {
		remaining := r2 - dy*dy
		if remaining < 0 {
			continue
		}
		xExt := 0
		for (xExt+1)*(xExt+1) <= remaining {
			xExt++
		}
		for dx := -xExt; dx <= xExt; dx++ {
			if mask(dx, dy) {
				b.setPixel(cx+dx, cy+dy)
			}
		}
	}
}
