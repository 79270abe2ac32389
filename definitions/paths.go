package defs

import "os"

const (
	// ProcMounts is the host's live mount table.
	ProcMounts = "/proc/mounts"
	// MaxMountLineLen bounds a single mount table line.
	MaxMountLineLen = 4096

	BindPointMode = os.FileMode(0755)
	FileMode      = os.FileMode(0644)
)

const (
	// Hostfs configuration (INI).
	HostfsConfDir    = "/etc/hostfs"
	HostfsConfDropin = HostfsConfDir + "/conf.d"
	// specify a single file or a drop-in directory through the environment
	HostfsConfEnv     = "HOSTFS_CONF_FILE"
	HostfsConfDirEnv  = "HOSTFS_CONF_DIR"
	DefaultHostfsConf = "hostfs.conf"
)
