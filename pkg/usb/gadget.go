// Package usb drives the USB mass-storage gadget through configfs. One
// Gadget exists per process and is shared by every drive and image widget;
// all export state is serialized behind its lock.
package usb

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	defs "pidrive/definitions"
	er "pidrive/errors"
	log "pidrive/logger"
	"pidrive/pkg/utils"
)

// StorageID identifies one exported backing file. Opaque to callers; only
// valid until the matching UnexportFile.
type StorageID struct {
	Index int
}

// Gadget is the shared handle to the device's mass-storage gadget.
type Gadget struct {
	mu      sync.Mutex
	root    string
	udcDir  string
	udc     string
	next    int
	exports map[int]string // index -> backing file path
}

// NewGadget prepares the configfs gadget skeleton under root and binds the
// first available UDC. The paths are parameters so tests can point the
// gadget at a scratch tree.
func NewGadget(root, udcDir string) (*Gadget, error) {
	g := &Gadget{
		root:    root,
		udcDir:  udcDir,
		exports: map[int]string{},
	}

	configDir := filepath.Join(root, "configs", defs.GadgetConfigName)
	for _, dir := range []string{
		filepath.Join(root, "strings", "0x409"),
		filepath.Join(configDir, "strings", "0x409"),
		filepath.Join(root, "functions"),
	} {
		if err := utils.EnsureDir(dir, defs.DirMode); err != nil {
			return nil, errors.Wrap(err, "failed to create gadget skeleton")
		}
	}

	// Linux Foundation vendor id, multifunction composite product.
	attrs := map[string]string{
		"idVendor":  "0x1d6b",
		"idProduct": "0x0104",
		filepath.Join("strings", "0x409", "manufacturer"): "pidrive",
		filepath.Join("strings", "0x409", "product"):      "pidrive USB drive",
		filepath.Join("configs", defs.GadgetConfigName, "strings", "0x409", "configuration"): "Mass storage",
	}
	for rel, value := range attrs {
		if err := writeAttr(filepath.Join(root, rel), value); err != nil {
			return nil, err
		}
	}

	udc, err := firstUDC(udcDir)
	if err != nil {
		return nil, err
	}
	g.udc = udc
	return g, nil
}

// DefaultGadget builds the gadget at the well-known configfs location.
func DefaultGadget() (*Gadget, error) {
	return NewGadget(defs.GadgetRoot, defs.UDCClassDir)
}

// ExportFile presents path to the USB host as a mass-storage LUN and
// returns the id needed to reverse the export. cdrom selects CD-ROM
// emulation for disk images; readOnly and removable map to the matching
// LUN attributes.
func (g *Gadget) ExportFile(path string, cdrom, readOnly, removable bool) (StorageID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.udc == "" {
		return StorageID{}, er.GadgetNotBound
	}

	idx := g.next
	fn := functionName(idx)
	fnDir := filepath.Join(g.root, "functions", fn)
	lunDir := filepath.Join(fnDir, "lun.0")
	if err := utils.EnsureDir(lunDir, defs.DirMode); err != nil {
		return StorageID{}, errors.Wrapf(err, "failed to create function %s", fn)
	}

	attrs := map[string]string{
		"cdrom":     flag(cdrom),
		"ro":        flag(readOnly),
		"removable": flag(removable),
		"file":      path,
	}
	for _, key := range []string{"cdrom", "ro", "removable", "file"} {
		if err := writeAttr(filepath.Join(lunDir, key), attrs[key]); err != nil {
			_ = os.RemoveAll(fnDir)
			return StorageID{}, err
		}
	}

	link := filepath.Join(g.root, "configs", defs.GadgetConfigName, fn)
	if err := os.Symlink(fnDir, link); err != nil {
		_ = os.RemoveAll(fnDir)
		return StorageID{}, errors.Wrap(er.ExportFailed, err.Error())
	}

	if err := g.rebind(); err != nil {
		_ = os.Remove(link)
		_ = os.RemoveAll(fnDir)
		return StorageID{}, err
	}

	g.exports[idx] = path
	g.next++
	log.WithField("file", path).Infof("exported as %s", fn)
	return StorageID{Index: idx}, nil
}

// UnexportFile releases a previous export. The backing file's pages are
// flushed first so the host-visible image is consistent.
func (g *Gadget) UnexportFile(id StorageID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	path, ok := g.exports[id.Index]
	if !ok {
		return er.LunNotFound
	}

	unix.Sync()

	fn := functionName(id.Index)
	link := filepath.Join(g.root, "configs", defs.GadgetConfigName, fn)
	if err := os.Remove(link); err != nil {
		return errors.Wrapf(er.UnexportFailed, "failed to unlink %s: %v", fn, err)
	}
	if err := os.RemoveAll(filepath.Join(g.root, "functions", fn)); err != nil {
		return errors.Wrapf(er.UnexportFailed, "failed to remove function %s: %v", fn, err)
	}
	if err := g.rebind(); err != nil {
		return err
	}

	delete(g.exports, id.Index)
	log.WithField("file", path).Infof("unexported %s", fn)
	return nil
}

// Exported reports how many files are currently exported.
func (g *Gadget) Exported() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.exports)
}

// Shutdown unbinds the gadget from its UDC. Exports left behind stay in
// configfs for inspection.
func (g *Gadget) Shutdown() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return writeAttr(filepath.Join(g.root, "UDC"), "")
}

// rebind forces the host to re-enumerate the gadget so LUN changes become
// visible. The unbind write fails when the gadget was never bound, which
// is fine on first export.
func (g *Gadget) rebind() error {
	udcFile := filepath.Join(g.root, "UDC")
	_ = os.WriteFile(udcFile, []byte("\n"), defs.FileMode)
	if err := writeAttr(udcFile, g.udc); err != nil {
		return errors.Wrap(er.ExportFailed, err.Error())
	}
	return nil
}

func functionName(idx int) string {
	return fmt.Sprintf("mass_storage.%d", idx)
}

func firstUDC(udcDir string) (string, error) {
	entries, err := os.ReadDir(udcDir)
	if err != nil {
		return "", errors.Wrap(err, "failed to list udc class dir")
	}
	if len(entries) == 0 {
		return "", er.GadgetNotBound
	}
	return entries[0].Name(), nil
}

func writeAttr(path, value string) error {
	if err := os.WriteFile(path, []byte(value), defs.FileMode); err != nil {
		return errors.Wrapf(err, "failed to write gadget attr %s", path)
	}
	return nil
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
