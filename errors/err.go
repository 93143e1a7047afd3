package errors

import (
	"fmt"
)

type ErrCode int

type DriveErr struct {
	Code ErrCode
	Msg  string
}

func (e *DriveErr) Error() string {
	return fmt.Sprintf("[%d] %s", e.Code, e.Msg)
}

func new(code ErrCode, msg string) *DriveErr {
	return &DriveErr{
		Code: code,
		Msg:  msg,
	}
}

const (
	invalidTransition ErrCode = iota
	notFound
	resourceExhausted
	exportFailed
	parseFailed
	invalid
	ioFailed
)

// Pre-defined errors.
var (
	MountedInternal = new(invalidTransition, "drive is mounted internal")
	MountedExternal = new(invalidTransition, "drive is mounted external")
	NotInternal     = new(invalidTransition, "drive is not mounted internal")
	NoFreeLoopback  = new(resourceExhausted, "no free loopback device")
	NoLoopbackName  = new(invalid, "loopback path has no file name")
	ExportFailed    = new(exportFailed, "usb export failed")
	UnexportFailed  = new(exportFailed, "usb unexport failed")
	GadgetNotBound  = new(notFound, "usb gadget is not bound to a udc")
	LunNotFound     = new(notFound, "no exported lun with that id")
	PartNumParse   = new(parseFailed, "failed to determine partition number")
	MountAllFailed = new(ioFailed, "all mount backends failed")
	WindowNotFound = new(notFound, "window not found")
	EmptyStateKey  = new(invalid, "empty persisted-state key")
	ErrOutputParse = new(parseFailed, "failed to parse command output")
)
