package hostfs

import (
	"os"

	"github.com/containerd/containerd/mount"
	"github.com/moby/sys/mountinfo"

	log "hostfs/logger"
	"hostfs/pkg/utils"
)

// BindOptions are applied to every host file system bind:
// MS_BIND|MS_REC|MS_NOSUID.
var BindOptions = []string{"rbind", "nosuid"}

// Mounter performs a recursive bind mount of source onto target.
type Mounter interface {
	BindMount(source, target string) error
}

// FS is the view of the host file system tree the pipeline needs.
type FS interface {
	IsDir(path string) bool
	MkdirAll(path string, mode os.FileMode) error
	IsMountPoint(path string) (bool, error)
}

type bindMounter struct{}

// NewBindMounter returns the Mounter backed by mount(2).
func NewBindMounter() Mounter {
	return bindMounter{}
}

func (bindMounter) BindMount(source, target string) error {
	m := mount.Mount{
		Type:    "bind",
		Source:  source,
		Options: BindOptions,
	}
	return m.Mount(target)
}

type logMounter struct{}

// NewLogMounter returns a Mounter that only logs what it would bind.
func NewLogMounter() Mounter {
	return logMounter{}
}

func (logMounter) BindMount(source, target string) error {
	log.WithField("options", BindOptions).Infof("dry-run: would bind %s to %s", source, target)
	return nil
}

type hostFS struct{}

// HostFS returns the FS of the running system.
func HostFS() FS {
	return hostFS{}
}

func (hostFS) IsDir(path string) bool {
	return utils.IsDir(path)
}

func (hostFS) MkdirAll(path string, mode os.FileMode) error {
	return utils.MkdirAll(path, mode)
}

func (hostFS) IsMountPoint(path string) (bool, error) {
	return mountinfo.Mounted(path)
}
