package defs

import "os"

const (
	// Mount root for internally-mounted drive partitions.
	DriveMountRoot = "/mnt"
	// Subfolder of a mounted partition scanned for nested disk images.
	ImageFolder = "ISOS"
	// Directory entries with this prefix are never turned into image handles.
	HiddenPrefix = "."

	DirMode  = os.FileMode(0755) | os.ModeDir
	FileMode = os.FileMode(0644)
)

const (
	// Persisted per-drive state, survives restarts.
	StateDir  = "/var/lib/pidrive"
	StateFile = "state.json"

	// Pidrive configuration (INI).
	ConfDir     = "/etc/pidrive"
	DefaultConf = "pidrive.conf"
	ConfEnv     = "PIDRIVE_CONF_FILE"
)

const (
	// USB gadget configfs layout.
	GadgetRoot       = "/sys/kernel/config/usb_gadget/pidrive"
	GadgetConfigName = "c.1"
	UDCClassDir      = "/sys/class/udc"
)
