package usb

// Exporter is the export/unexport contract of the gadget, satisfied by
// *Gadget and by test mocks.
type Exporter interface {
	ExportFile(path string, cdrom, readOnly, removable bool) (StorageID, error)
	UnexportFile(id StorageID) error
}
