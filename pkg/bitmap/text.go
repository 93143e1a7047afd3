package bitmap

import (
	"image"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// TextHeight is the fixed pixel height of a rendered text line.
var TextHeight = basicfont.Face7x13.Height

// RenderText rasterizes s with the embedded 7x13 face into a bitmap of
// height TextHeight.
func RenderText(s string) *Bitmap {
	face := basicfont.Face7x13

	width := font.MeasureString(face, s).Ceil()
	if width == 0 {
		return New(0, TextHeight)
	}

	img := image.NewGray(image.Rect(0, 0, width, TextHeight))
	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.White,
		Face: face,
		Dot:  fixed.P(0, face.Ascent),
	}
	drawer.DrawString(s)

	out := New(width, TextHeight)
	for y := 0; y < TextHeight; y++ {
		for x := 0; x < width; x++ {
			if img.GrayAt(x, y).Y >= 0x80 {
				out.Set(x, y, 1)
			}
		}
	}
	return out
}
