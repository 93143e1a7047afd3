// Package display defines the compositor contract consumed by drive and
// image widgets: window allocation, focus, and the render interface. The
// real compositor drives these through the daemon's event loop.
package display

import (
	"sync"

	"github.com/google/uuid"

	er "pidrive/errors"
	"pidrive/pkg/bitmap"
)

type WindowID string

func NewWindowID() WindowID {
	return WindowID(uuid.NewString())
}

type Position int

const (
	PositionNormal Position = iota
	PositionFixed
)

// Window is one allocated slot in the widget tree.
type Window struct {
	ID       WindowID
	Position Position
	Focus    bool
}

// Render is implemented by widgets that draw themselves.
type Render interface {
	Render(w *Window) (*bitmap.Bitmap, error)
}

// Widget is a node in the compositor tree.
type Widget interface {
	WindowID() WindowID
	Children() []Widget
}

// Manager allocates window slots. One per process, shared by all widgets.
type Manager struct {
	mu      sync.Mutex
	windows map[WindowID]*Window
	order   []WindowID
}

func NewManager() *Manager {
	return &Manager{windows: map[WindowID]*Window{}}
}

func (m *Manager) AddChild(pos Position) (WindowID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := NewWindowID()
	m.windows[id] = &Window{ID: id, Position: pos}
	m.order = append(m.order, id)
	return id, nil
}

func (m *Manager) Remove(id WindowID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.windows, id)
	for i, wid := range m.order {
		if wid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

func (m *Manager) Window(id WindowID) (*Window, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[id]
	if !ok {
		return nil, er.WindowNotFound
	}
	return w, nil
}

// SetFocus moves input focus to id, clearing it everywhere else.
func (m *Manager) SetFocus(id WindowID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.windows[id]; !ok {
		return er.WindowNotFound
	}
	for _, w := range m.windows {
		w.Focus = w.ID == id
	}
	return nil
}
