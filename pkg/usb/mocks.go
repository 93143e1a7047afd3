package usb

import (
	"sync"

	er "pidrive/errors"
)

// MockExport records the arguments of one ExportFile call.
type MockExport struct {
	Path      string
	CDROM     bool
	ReadOnly  bool
	Removable bool
}

// MockExporter is an in-memory Exporter for quick development/test.
type MockExporter struct {
	mu   sync.Mutex
	next int

	// Active maps live export indices to their recorded arguments.
	Active map[int]MockExport
	// Calls lists every operation in order: "export:<path>" and
	// "unexport:<path>".
	Calls []string

	// ExportErr/UnexportErr, when set, fail the corresponding call.
	ExportErr   error
	UnexportErr error
}

func NewMockExporter() *MockExporter {
	return &MockExporter{Active: map[int]MockExport{}}
}

func (m *MockExporter) ExportFile(path string, cdrom, readOnly, removable bool) (StorageID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ExportErr != nil {
		return StorageID{}, m.ExportErr
	}
	idx := m.next
	m.next++
	m.Active[idx] = MockExport{Path: path, CDROM: cdrom, ReadOnly: readOnly, Removable: removable}
	m.Calls = append(m.Calls, "export:"+path)
	return StorageID{Index: idx}, nil
}

func (m *MockExporter) UnexportFile(id StorageID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.UnexportErr != nil {
		return m.UnexportErr
	}
	exp, ok := m.Active[id.Index]
	if !ok {
		return er.LunNotFound
	}
	delete(m.Active, id.Index)
	m.Calls = append(m.Calls, "unexport:"+exp.Path)
	return nil
}
