package vdrive

import (
	"fmt"

	"pidrive/pkg/bitmap"
	"pidrive/pkg/display"
)

// Label returns the one-line summary: translated name plus size in GiB to
// one decimal.
func (d *VirtualDrive) Label() string {
	shortSize := float64(d.Size()) / float64(1<<30)
	return fmt.Sprintf("%s (%.1fGB)", d.config.TranslateName(d.Name()), shortSize)
}

// Render draws the drive's label line: a square marker when exported
// external, an arrow when the window holds focus.
func (d *VirtualDrive) Render(w *display.Window) (*bitmap.Bitmap, error) {
	base := bitmap.New(10, 1)
	base.Blit(bitmap.RenderText(d.Label()), 12, 0)
	if _, ok := d.state.(External); ok {
		base.Blit(bitmap.Square, 6, 0)
	}
	if w.Focus {
		base.Blit(bitmap.Arrow, 0, 0)
	}
	return base, nil
}

// WindowID implements display.Widget.
func (d *VirtualDrive) WindowID() display.WindowID {
	return d.window
}

// Children exposes the nested image widgets while mounted internal.
func (d *VirtualDrive) Children() []display.Widget {
	s, ok := d.state.(Internal)
	if !ok {
		return nil
	}
	children := make([]display.Widget, 0, len(s.Info.Images))
	for _, img := range s.Info.Images {
		children = append(children, img)
	}
	return children
}
