package hostfs

import (
	"path/filepath"

	er "hostfs/errors"
)

// ContainerContext is the per-run, read-only view of the container being
// set up.
type ContainerContext struct {
	rootPath       string
	overlayEnabled bool
	hostfsEnabled  bool
}

// NewContainerContext validates and normalizes root. The root is only
// checked when hostfs mounting is enabled.
func NewContainerContext(root string, overlay, enabled bool) (ContainerContext, error) {
	c := ContainerContext{overlayEnabled: overlay, hostfsEnabled: enabled}
	if !enabled {
		return c, nil
	}

	if root == "" {
		return c, er.Wrap(er.InvalidRoot, "container root is empty")
	}
	if !filepath.IsAbs(root) {
		return c, er.Wrapf(er.InvalidRoot, "container root %q is not absolute", root)
	}
	root = filepath.Clean(root)
	if root == "/" {
		return c, er.Wrap(er.InvalidRoot, "container root can not be the host root")
	}
	c.rootPath = root
	return c, nil
}

func (c ContainerContext) RootPath() string { return c.rootPath }
func (c ContainerContext) OverlayEnabled() bool { return c.overlayEnabled }
func (c ContainerContext) HostfsEnabled() bool { return c.hostfsEnabled }

// Target is where mountpoint appears inside the container root.
func (c ContainerContext) Target(mountpoint string) string {
	return c.rootPath + mountpoint
}
