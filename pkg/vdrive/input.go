package vdrive

import (
	"pidrive/pkg/action"
	"pidrive/pkg/input"
)

// OnEvent turns a select on this drive's window into a toggle-mount
// action. State changes are deferred to action dispatch so the action
// system can batch or replay them.
func (d *VirtualDrive) OnEvent(ev input.Event) (bool, []action.Action, error) {
	switch ev {
	case input.EventSelect:
		return true, []action.Action{action.ToggleDriveMount{Window: d.window}}, nil
	default:
		return false, nil, nil
	}
}

// DoAction handles the drive actions addressed to this drive, by window id
// for mount toggles and by volume name for the persisted flag toggles.
// Anything else is reported unhandled so a broadcast can move on.
func (d *VirtualDrive) DoAction(act action.Action) (bool, []action.Action, error) {
	switch a := act.(type) {
	case action.ToggleDriveMount:
		if a.Window != d.window {
			return false, nil, nil
		}
		return true, nil, d.ToggleMount()
	case action.ToggleDriveReadOnly:
		if a.Drive != d.Name() {
			return false, nil, nil
		}
		d.persist.ReadOnly = !d.persist.ReadOnly
		return true, nil, nil
	case action.ToggleDriveNonRemovable:
		if a.Drive != d.Name() {
			return false, nil, nil
		}
		d.persist.Removable = !d.persist.Removable
		return true, nil, nil
	default:
		return false, nil, nil
	}
}
