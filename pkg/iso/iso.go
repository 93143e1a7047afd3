// Package iso implements the handle for a disk-image file discovered
// inside a mounted drive partition. An image owns its own export lifecycle
// over the shared USB gadget and appears as a child widget of its drive.
package iso

import (
	"path/filepath"

	"github.com/pkg/errors"

	"pidrive/pkg/action"
	"pidrive/pkg/bitmap"
	"pidrive/pkg/display"
	"pidrive/pkg/input"
	"pidrive/pkg/usb"
)

// Image is one discovered disk-image file. Created during a drive's
// internal-mount partition scan and released on the matching unmount.
type Image struct {
	path     string
	window   display.WindowID
	disp     *display.Manager
	usb      usb.Exporter
	exported *usb.StorageID
}

func NewImage(disp *display.Manager, exporter usb.Exporter, path string) (*Image, error) {
	window, err := disp.AddChild(display.PositionNormal)
	if err != nil {
		return nil, errors.Wrap(err, "failed to allocate image window")
	}
	return &Image{
		path:   path,
		window: window,
		disp:   disp,
		usb:    exporter,
	}, nil
}

func (i *Image) Name() string {
	return filepath.Base(i.path)
}

func (i *Image) Path() string {
	return i.path
}

func (i *Image) Mounted() bool {
	return i.exported != nil
}

// Mount exports the image to the USB host as a CD-ROM device. No-op when
// already exported.
func (i *Image) Mount() error {
	if i.exported != nil {
		return nil
	}
	id, err := i.usb.ExportFile(i.path, true, true, true)
	if err != nil {
		return errors.Wrapf(err, "failed to export image %s", i.Name())
	}
	i.exported = &id
	return nil
}

// Unmount releases the export. No-op when not exported.
func (i *Image) Unmount() error {
	if i.exported == nil {
		return nil
	}
	if err := i.usb.UnexportFile(*i.exported); err != nil {
		return errors.Wrapf(err, "failed to unexport image %s", i.Name())
	}
	i.exported = nil
	return nil
}

// Release drops the image's window slot. The image must be unmounted first.
func (i *Image) Release() {
	i.disp.Remove(i.window)
}

func (i *Image) WindowID() display.WindowID {
	return i.window
}

func (i *Image) Children() []display.Widget {
	return nil
}

func (i *Image) Render(w *display.Window) (*bitmap.Bitmap, error) {
	base := bitmap.New(10, 1)
	base.Blit(bitmap.RenderText(i.Name()), 12, 0)
	if i.exported != nil {
		base.Blit(bitmap.Square, 6, 0)
	}
	if w.Focus {
		base.Blit(bitmap.Arrow, 0, 0)
	}
	return base, nil
}

func (i *Image) OnEvent(ev input.Event) (bool, []action.Action, error) {
	switch ev {
	case input.EventSelect:
		return true, []action.Action{action.ToggleImageMount{Window: i.window}}, nil
	default:
		return false, nil, nil
	}
}

func (i *Image) DoAction(act action.Action) (bool, []action.Action, error) {
	switch a := act.(type) {
	case action.ToggleImageMount:
		if a.Window != i.window {
			return false, nil, nil
		}
		if i.exported != nil {
			return true, nil, i.Unmount()
		}
		return true, nil, i.Mount()
	default:
		return false, nil, nil
	}
}
