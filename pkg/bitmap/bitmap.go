// Package bitmap implements the 1-bit pixel buffers composited onto the
// device's monochrome OLED.
package bitmap

// Bitmap is a 1-bit-per-pixel buffer. Pixels are stored one byte each,
// zero for off and non-zero for on.
type Bitmap struct {
	w, h int
	pix  []byte
}

func New(w, h int) *Bitmap {
	return &Bitmap{
		w:   w,
		h:   h,
		pix: make([]byte, w*h),
	}
}

// FromRows builds a bitmap from row-major pixel rows. Short rows are
// padded with off pixels to the longest row.
func FromRows(rows [][]byte) *Bitmap {
	h := len(rows)
	w := 0
	for _, row := range rows {
		if len(row) > w {
			w = len(row)
		}
	}
	b := New(w, h)
	for y, row := range rows {
		copy(b.pix[y*w:], row)
	}
	return b
}

func (b *Bitmap) Width() int  { return b.w }
func (b *Bitmap) Height() int { return b.h }

func (b *Bitmap) Get(x, y int) byte {
	if x < 0 || y < 0 || x >= b.w || y >= b.h {
		return 0
	}
	return b.pix[y*b.w+x]
}

func (b *Bitmap) Set(x, y int, v byte) {
	if x < 0 || y < 0 || x >= b.w || y >= b.h {
		return
	}
	b.pix[y*b.w+x] = v
}

// grow expands the bitmap so that (w, h) fits, keeping existing pixels.
func (b *Bitmap) grow(w, h int) {
	if w <= b.w && h <= b.h {
		return
	}
	if w < b.w {
		w = b.w
	}
	if h < b.h {
		h = b.h
	}
	pix := make([]byte, w*h)
	for y := 0; y < b.h; y++ {
		copy(pix[y*w:], b.pix[y*b.w:(y+1)*b.w])
	}
	b.w, b.h, b.pix = w, h, pix
}

// Blit copies src onto b at offset (x, y), expanding b as needed.
func (b *Bitmap) Blit(src *Bitmap, x, y int) {
	if src == nil {
		return
	}
	b.grow(x+src.w, y+src.h)
	for sy := 0; sy < src.h; sy++ {
		for sx := 0; sx < src.w; sx++ {
			b.pix[(y+sy)*b.w+(x+sx)] = src.pix[sy*src.w+sx]
		}
	}
}

// OnCount returns the number of lit pixels. Handy for tests.
func (b *Bitmap) OnCount() int {
	n := 0
	for _, p := range b.pix {
		if p != 0 {
			n++
		}
	}
	return n
}
