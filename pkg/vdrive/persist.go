package vdrive

import (
	log "pidrive/logger"
)

// PersistState is the only part of a drive that survives a restart. The
// external flag tracks the last successful mode so a reload restores the
// same disposition.
type PersistState struct {
	ExternalMount bool `json:"external_mount"`
	ReadOnly      bool `json:"readonly"`
	Removable     bool `json:"removable"`
}

func DefaultPersistState() PersistState {
	return PersistState{
		ExternalMount: false,
		ReadOnly:      false,
		Removable:     true,
	}
}

// Persist exposes the current disposition.
func (d *VirtualDrive) Persist() PersistState {
	return d.persist
}

// StateKey implements state.Stateful. Volume names are unique per device.
func (d *VirtualDrive) StateKey() string {
	return d.Name()
}

// State implements state.Stateful.
func (d *VirtualDrive) State() any {
	return &d.persist
}

// OnLoad restores the drive's disposition: external when the persisted
// flag says so, internal otherwise. With auto_fstrim on, every mounted
// partition gets a fire-and-forget trim pass; trim outcomes are discarded.
func (d *VirtualDrive) OnLoad() error {
	if d.persist.ExternalMount {
		return d.MountExternal()
	}

	info, err := d.MountInternal()
	if err != nil {
		return err
	}

	if d.config.System.AutoFstrim {
		for _, path := range info.PartMountPaths {
			go func(p string) {
				if _, err := d.run("fstrim", p); err != nil {
					log.Debugf("fstrim %s failed: %v", p, err)
				}
			}(path)
		}
	}
	return nil
}
