// Package action defines the dispatched UI actions. Handlers receive every
// action and report whether they consumed it, so new variants only need a
// producer and one consumer.
package action

import "pidrive/pkg/display"

type Action interface {
	action()
}

// ToggleDriveMount flips one drive between its exposure modes. Tagged with
// the drive's window so a broadcast reaches exactly one handler.
type ToggleDriveMount struct {
	Window display.WindowID
}

// ToggleDriveReadOnly flips the persisted read-only flag of the named drive.
type ToggleDriveReadOnly struct {
	Drive string
}

// ToggleDriveNonRemovable flips the persisted removable flag of the named drive.
type ToggleDriveNonRemovable struct {
	Drive string
}

// ToggleImageMount exports or unexports one nested disk image.
type ToggleImageMount struct {
	Window display.WindowID
}

func (ToggleDriveMount) action()        {}
func (ToggleDriveReadOnly) action()     {}
func (ToggleDriveNonRemovable) action() {}
func (ToggleImageMount) action()        {}
