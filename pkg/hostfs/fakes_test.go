package hostfs

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"hostfs/pkg/priv"
)

type bindCall struct {
	source, target string
}

type fakeMounter struct {
	calls  []bindCall
	failOn string
	priv   *fakePriv
}

func (m *fakeMounter) BindMount(source, target string) error {
	if m.priv != nil && !m.priv.escalated {
		return fmt.Errorf("bind without privilege")
	}
	m.calls = append(m.calls, bindCall{source, target})
	if source == m.failOn {
		return fmt.Errorf("mount %s: operation not permitted", source)
	}
	return nil
}

type mkdirCall struct {
	path string
	mode os.FileMode
}

type fakeFS struct {
	dirs      map[string]bool
	mounted   map[string]bool
	mkdirs    []mkdirCall
	mkdirFail bool
	priv      *fakePriv
}

func newFakeFS(dirs ...string) *fakeFS {
	fs := &fakeFS{dirs: map[string]bool{}, mounted: map[string]bool{}}
	for _, d := range dirs {
		fs.dirs[d] = true
	}
	return fs
}

func (f *fakeFS) IsDir(path string) bool {
	return f.dirs[path]
}

func (f *fakeFS) MkdirAll(path string, mode os.FileMode) error {
	if f.priv != nil && !f.priv.escalated {
		return fmt.Errorf("mkdir without privilege")
	}
	f.mkdirs = append(f.mkdirs, mkdirCall{path, mode})
	if f.mkdirFail {
		return fmt.Errorf("mkdir %s: read-only file system", path)
	}
	f.dirs[path] = true
	return nil
}

func (f *fakeFS) IsMountPoint(path string) (bool, error) {
	return f.mounted[path], nil
}

type fakePriv struct {
	priv.Noop
	escalated          bool
	escalations, drops int
}

func (p *fakePriv) Escalate() error {
	if err := p.Noop.Escalate(); err != nil {
		return err
	}
	p.escalated = true
	p.escalations++
	return nil
}

func (p *fakePriv) Drop() error {
	if err := p.Noop.Drop(); err != nil {
		return err
	}
	p.escalated = false
	p.drops++
	return nil
}

type fixture struct {
	runner  *Runner
	mounter *fakeMounter
	fs      *fakeFS
	priv    *fakePriv
}

func newFixture(t *testing.T, table string, root string, overlay, enabled bool, dirs ...string) *fixture {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mounts")
	require.NoError(t, os.WriteFile(path, []byte(table), 0o644))

	c, err := NewContainerContext(root, overlay, enabled)
	require.NoError(t, err)

	p := &fakePriv{}
	fs := newFakeFS(dirs...)
	fs.priv = p
	m := &fakeMounter{priv: p}
	return &fixture{
		runner: &Runner{
			Context:   c,
			TablePath: path,
			Priv:      p,
			Mounter:   m,
			FS:        fs,
		},
		mounter: m,
		fs:      fs,
		priv:    p,
	}
}
