package vdrive

import (
	"pidrive/pkg/iso"
	"pidrive/pkg/usb"
)

// MountState is the exposure mode of one drive. Exactly three variants
// exist; every transition site switches over all of them so a new mode
// cannot be added without revisiting each one.
type MountState interface {
	mountState()
}

// Unmounted holds no kernel resources.
type Unmounted struct{}

// Internal means the drive is attached to a loopback device with zero or
// more partitions mounted locally.
type Internal struct {
	Info *MountInfo
}

// External means the drive's backing device is exported whole to the USB
// host.
type External struct {
	ID usb.StorageID
}

func (Unmounted) mountState() {}
func (Internal) mountState()  {}
func (External) mountState()  {}

// MountInfo is the resource record of an internal mount. Created only by a
// successful MountInternal and discarded only by the matching
// UnmountInternal.
type MountInfo struct {
	// LoopbackPath is the attached loopback device, e.g. /dev/loop3.
	LoopbackPath string
	// PartMountPaths are the partition mount points that actually
	// mounted. Partitions whose mount failed are absent.
	PartMountPaths []string
	// Images are the disk images discovered under the image subfolder of
	// each mounted partition.
	Images []*iso.Image
}
