// Package vdrive implements the mount-state machine for one logical
// volume: unmounted, mounted internally through a loopback device, or
// exported whole to the USB host. All transitions for a drive run on a
// single goroutine; only the shared gadget serializes internally.
package vdrive

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/containerd/containerd/mount"
	"github.com/pkg/errors"

	defs "pidrive/definitions"
	er "pidrive/errors"
	log "pidrive/logger"
	"pidrive/pkg/config"
	"pidrive/pkg/display"
	"pidrive/pkg/iso"
	"pidrive/pkg/lvm"
	"pidrive/pkg/usb"
	"pidrive/pkg/utils"
)

// partition mount backends, tried in order until one succeeds
var mounters = []string{"mount", "mount.exfat", "mount.ntfs-3g"}

type runFunc func(name string, args ...string) (string, error)

type unmountFunc func(target string, flags int) error

// VirtualDrive binds a logical volume to its exposure mode, its window in
// the compositor tree, and its persisted disposition.
type VirtualDrive struct {
	state   MountState
	usb     usb.Exporter
	volume  lvm.LogicalVolume
	window  display.WindowID
	disp    *display.Manager
	persist PersistState
	config  *config.Config

	// swapped out by tests
	run       runFunc
	unmountFn unmountFunc
	devDir    string
	mountRoot string
}

func NewDrive(disp *display.Manager, exporter usb.Exporter, volume lvm.LogicalVolume, cfg *config.Config) (*VirtualDrive, error) {
	window, err := disp.AddChild(display.PositionNormal)
	if err != nil {
		return nil, errors.Wrap(err, "failed to allocate drive window")
	}
	return &VirtualDrive{
		state:     Unmounted{},
		usb:       exporter,
		volume:    volume,
		window:    window,
		disp:      disp,
		persist:   DefaultPersistState(),
		config:    cfg,
		run:       utils.RunCheckOutput,
		unmountFn: mount.Unmount,
		devDir:    "/dev",
		mountRoot: defs.DriveMountRoot,
	}, nil
}

func (d *VirtualDrive) Name() string {
	return d.volume.Name
}

func (d *VirtualDrive) Size() uint64 {
	return d.volume.Size
}

// Mode exposes the current exposure mode for rendering and tests. Callers
// must not retain the contained MountInfo across transitions.
func (d *VirtualDrive) Mode() MountState {
	return d.state
}

// MountExternal exports the whole backing device to the USB host using the
// persisted read-only and removable flags. No-op when already external;
// invalid while mounted internal.
func (d *VirtualDrive) MountExternal() error {
	switch d.state.(type) {
	case External:
		return nil
	case Internal:
		return errors.Wrap(er.MountedInternal, "attempt to mount external")
	case Unmounted:
		id, err := d.usb.ExportFile(d.volume.Path, false, d.persist.ReadOnly, d.persist.Removable)
		if err != nil {
			return errors.Wrap(err, "failed to mount drive external")
		}
		d.state = External{ID: id}
		d.persist.ExternalMount = true
		return nil
	default:
		return errors.Errorf("unknown mount state %T", d.state)
	}
}

// UnmountExternal releases the export. No-op when already unmounted;
// invalid while mounted internal.
func (d *VirtualDrive) UnmountExternal() error {
	switch s := d.state.(type) {
	case Unmounted:
	case Internal:
		return errors.Wrap(er.MountedInternal, "attempt to unmount external")
	case External:
		if err := d.usb.UnexportFile(s.ID); err != nil {
			return errors.Wrap(err, "failed to unmount external")
		}
	default:
		return errors.Errorf("unknown mount state %T", d.state)
	}
	d.state = Unmounted{}
	d.persist.ExternalMount = false
	return nil
}

// MountInternal attaches the backing device to a free loopback device with
// partition scanning, mounts each discovered partition, and collects the
// disk images found under each partition's image subfolder. A partition
// whose mount fails is logged and skipped; every other failure aborts the
// transition. Idempotent: when already internal the existing MountInfo is
// returned untouched.
func (d *VirtualDrive) MountInternal() (*MountInfo, error) {
	switch s := d.state.(type) {
	case Internal:
		return s.Info, nil
	case External:
		return nil, errors.Wrap(er.MountedExternal, "attempt to mount internal")
	case Unmounted:
		info, err := d.mountInternal()
		if err != nil {
			return nil, err
		}
		d.state = Internal{Info: info}
		return info, nil
	default:
		return nil, errors.Errorf("unknown mount state %T", d.state)
	}
}

// mountInternal performs the actual resource acquisition. On error the
// drive stays Unmounted; an already-attached loopback device is not rolled
// back (known operational caveat, matching the prior system behavior).
func (d *VirtualDrive) mountInternal() (*MountInfo, error) {
	out, err := d.run("losetup", "-f")
	if err != nil {
		return nil, errors.Wrap(er.NoFreeLoopback, err.Error())
	}
	loopbackPath := strings.TrimSpace(out)
	loopbackName := filepath.Base(loopbackPath)
	if loopbackName == "" || loopbackName == "." || loopbackName == "/" {
		return nil, er.NoLoopbackName
	}

	if _, err := d.run("losetup", "-fP", d.volume.Path); err != nil {
		return nil, errors.Wrapf(err, "failed to attach %s", d.volume.Path)
	}

	entries, err := os.ReadDir(d.devDir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list %s", d.devDir)
	}

	var mounted []string
	var images []*iso.Image
	for _, entry := range entries {
		devName := entry.Name()
		if !strings.HasPrefix(devName, loopbackName) || devName == loopbackName {
			continue
		}

		partNum, err := partitionNumber(devName)
		if err != nil {
			return nil, err
		}

		displayName := d.config.TranslateName(d.Name())
		mountPoint := filepath.Join(d.mountRoot, fmt.Sprintf("%s (partition %d)", displayName, partNum))
		if err := utils.EnsureDir(mountPoint, defs.DirMode); err != nil {
			return nil, errors.Wrapf(err, "failed to create mount point %s", mountPoint)
		}

		devPath := filepath.Join(d.devDir, devName)
		if err := d.mountPartition(devPath, mountPoint); err != nil {
			// A partition that will not mount is skipped, not fatal:
			// the drive stays usable through its other partitions.
			log.WithDrive(d.Name()).Errorf("an error occurred while mounting: %v", err)
			continue
		}
		mounted = append(mounted, mountPoint)

		found, err := d.scanImages(mountPoint)
		if err != nil {
			return nil, err
		}
		images = append(images, found...)
	}

	return &MountInfo{
		LoopbackPath:   loopbackPath,
		PartMountPaths: mounted,
		Images:         images,
	}, nil
}

// mountPartition tries each mount backend in order, first success wins.
func (d *VirtualDrive) mountPartition(device, target string) error {
	for _, mounter := range mounters {
		if _, err := d.run(mounter, device, target); err == nil {
			return nil
		}
	}
	return errors.Wrapf(er.MountAllFailed, "failed to mount %s to %s", device, target)
}

// scanImages collects the disk images under the partition's image
// subfolder. Hidden entries are excluded. Unlike partition mounts, a
// discovery failure here aborts the whole internal mount.
func (d *VirtualDrive) scanImages(mountPoint string) ([]*iso.Image, error) {
	imageDir := filepath.Join(mountPoint, defs.ImageFolder)
	if !utils.FileExist(imageDir) {
		return nil, nil
	}

	entries, err := os.ReadDir(imageDir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list %s", imageDir)
	}

	var images []*iso.Image
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), defs.HiddenPrefix) {
			continue
		}
		img, err := iso.NewImage(d.disp, d.usb, filepath.Join(imageDir, entry.Name()))
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, nil
}

// UnmountInternal tears down in strict reverse order: images, then
// partition mounts, then the loopback device. The first failure halts
// teardown with the remaining resources still held.
func (d *VirtualDrive) UnmountInternal() error {
	switch s := d.state.(type) {
	case Unmounted:
	case External:
		return errors.Wrap(er.MountedExternal, "attempt to unmount internal")
	case Internal:
		for _, img := range s.Info.Images {
			if err := img.Unmount(); err != nil {
				return err
			}
			img.Release()
		}
		for _, part := range s.Info.PartMountPaths {
			if err := d.unmountFn(part, 0); err != nil {
				return errors.Wrapf(err, "failed to unmount %s", part)
			}
			if err := os.RemoveAll(part); err != nil {
				return errors.Wrapf(err, "failed to remove mount point %s", part)
			}
		}
		if _, err := d.run("losetup", "-d", s.Info.LoopbackPath); err != nil {
			return errors.Wrapf(err, "failed to detach %s", s.Info.LoopbackPath)
		}
	default:
		return errors.Errorf("unknown mount state %T", d.state)
	}
	d.state = Unmounted{}
	return nil
}

// Unmount dispatches to the teardown matching the current mode.
func (d *VirtualDrive) Unmount() error {
	switch d.state.(type) {
	case Unmounted:
		return nil
	case Internal:
		return d.UnmountInternal()
	case External:
		return d.UnmountExternal()
	default:
		return errors.Errorf("unknown mount state %T", d.state)
	}
}

// ToggleMount cycles the exposure mode. From unmounted the drive goes
// external. A failure partway leaves the drive wherever the failing step
// left it; no attempt is made to restore the prior mode.
func (d *VirtualDrive) ToggleMount() error {
	switch d.state.(type) {
	case Unmounted:
		// For now, just switch to external if unmounted
		return d.MountExternal()
	case Internal:
		if err := d.UnmountInternal(); err != nil {
			return err
		}
		return d.MountExternal()
	case External:
		if err := d.UnmountExternal(); err != nil {
			return err
		}
		_, err := d.MountInternal()
		return err
	default:
		return errors.Errorf("unknown mount state %T", d.state)
	}
}

// partitionNumber derives the partition index from the trailing numeric
// suffix of a device name like loop3p2. The partition table is assumed
// well-formed, so an unparseable suffix is a hard error.
func partitionNumber(devName string) (int, error) {
	parts := strings.Split(devName, "p")
	suffix := parts[len(parts)-1]
	num, err := strconv.Atoi(suffix)
	if err != nil {
		return 0, errors.Wrapf(er.PartNumParse, "device %s", devName)
	}
	return num, nil
}
