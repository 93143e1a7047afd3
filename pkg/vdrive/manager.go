package vdrive

import (
	"github.com/hashicorp/go-multierror"

	log "pidrive/logger"
	"pidrive/pkg/action"
	"pidrive/pkg/display"
	"pidrive/pkg/input"
)

// handler is a dispatch target: an input handler with a window identity.
type handler interface {
	input.Handler
	WindowID() display.WindowID
}

// Manager owns every drive on the device and fans events and actions out
// to them. Transitions stay single-threaded: the manager is driven from
// one event loop.
type Manager struct {
	drives []*VirtualDrive
}

func NewManager() *Manager {
	return &Manager{}
}

func (m *Manager) Add(d *VirtualDrive) {
	m.drives = append(m.drives, d)
}

func (m *Manager) Drives() []*VirtualDrive {
	return m.drives
}

// handlers returns every dispatch target: each drive followed by its
// current image children.
func (m *Manager) handlers() []handler {
	var hs []handler
	for _, d := range m.drives {
		hs = append(hs, d)
		if s, ok := d.state.(Internal); ok {
			for _, img := range s.Info.Images {
				hs = append(hs, img)
			}
		}
	}
	return hs
}

// Dispatch broadcasts an action until a handler consumes it, then
// dispatches any follow-on actions the handler emitted.
func (m *Manager) Dispatch(act action.Action) (bool, error) {
	for _, h := range m.handlers() {
		handled, followups, err := h.DoAction(act)
		if err != nil {
			return handled, err
		}
		if !handled {
			continue
		}
		for _, followup := range followups {
			if _, err := m.Dispatch(followup); err != nil {
				return true, err
			}
		}
		return true, nil
	}
	return false, nil
}

// OnEvent routes a controller event to the widget owning the target
// window and dispatches whatever actions come back.
func (m *Manager) OnEvent(target display.WindowID, ev input.Event) (bool, error) {
	for _, h := range m.handlers() {
		if h.WindowID() != target {
			continue
		}
		handled, followups, err := h.OnEvent(ev)
		if err != nil {
			return handled, err
		}
		for _, followup := range followups {
			if _, err := m.Dispatch(followup); err != nil {
				return true, err
			}
		}
		return handled, nil
	}
	return false, nil
}

// UnmountAll tears down every drive, continuing past failures and
// reporting them together.
func (m *Manager) UnmountAll() error {
	var result *multierror.Error
	for _, d := range m.drives {
		if err := d.Unmount(); err != nil {
			log.WithDrive(d.Name()).Errorf("unmount failed: %v", err)
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
