package hostfs

import (
	"context"
	"path/filepath"
	"testing"

	specs "github.com/opencontainers/runtime-spec/specs-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	defs "hostfs/definitions"
	er "hostfs/errors"
	"hostfs/pkg/policy"
)

const hostTable = `sysfs /sys sysfs rw,nosuid,nodev,noexec,relatime 0 0
proc /proc proc rw,nosuid,nodev,noexec,relatime 0 0
udev /dev devtmpfs rw,nosuid,relatime 0 0
tmpfs /run tmpfs rw,nosuid,nodev 0 0
/dev/sda1 / ext4 rw,relatime 0 0
# local additions
/dev/sda2 /home ext4 rw,relatime 0 0
cgroup /sys/fs/cgroup/cpu cgroup rw 0 0
tmpfs /tmp tmpfs rw 0 0
/dev/sda3 /var/lib xfs rw 0 0
/dev/sda4 /ctr ext4 rw 0 0
broken-line
/dev/sda5 /proc/foo ext4 rw 0 0
server:/export /data nfs4 rw 0 0

/dev/sda6 /cgroupfs cgroup rw 0 0
`

func TestRunBindsKeptEntriesInOrder(t *testing.T) {
	f := newFixture(t, hostTable, "/ctr", false, true,
		"/home", "/ctr/home", "/data", "/ctr/data")

	res, err := f.runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []bindCall{
		{"/home", "/ctr/home"},
		{"/data", "/ctr/data"},
	}, f.mounter.calls)
	assert.Equal(t, []specs.Mount{
		{Destination: "/ctr/home", Type: "bind", Source: "/home", Options: []string{"rbind", "nosuid"}},
		{Destination: "/ctr/data", Type: "bind", Source: "/data", Options: []string{"rbind", "nosuid"}},
	}, res.Mounts)

	assert.Equal(t, 16, res.Lines)
	assert.Equal(t, map[string]int{
		"blank_or_comment":         2,
		"parse_incomplete":         1,
		policy.ReasonSys:           2,
		policy.ReasonProc:          2,
		policy.ReasonDev:           1,
		policy.ReasonRun:           1,
		policy.ReasonRoot:          1,
		policy.ReasonTmpfs:         1,
		policy.ReasonVar:           1,
		policy.ReasonContainerRoot: 1,
		policy.ReasonCgroup:        1,
	}, res.Skipped)

	assert.Equal(t, 2, f.priv.escalations)
	assert.Equal(t, f.priv.escalations, f.priv.drops)
	assert.False(t, f.priv.escalated)
}

func TestRunSingleHomeEntry(t *testing.T) {
	f := newFixture(t, "/dev/sda1 /home ext4 rw 0 0\n", "/ctr", false, true, "/home", "/ctr/home")

	res, err := f.runner.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Mounts, 1)
	assert.Equal(t, []bindCall{{"/home", "/ctr/home"}}, f.mounter.calls)
	assert.Equal(t, []string{"rbind", "nosuid"}, res.Mounts[0].Options)
}

func TestRunSkippedEntriesNeverMount(t *testing.T) {
	for _, line := range []string{
		"/dev/sda2 /proc/foo ext4 rw 0 0",
		"tmpfs /tmp tmpfs rw 0 0",
		"cgroup /sys/fs/cgroup/cpu cgroup rw 0 0",
		"",
		"# comment",
		"/dev/sda1 /home",
	} {
		t.Run(line, func(t *testing.T) {
			f := newFixture(t, line+"\n", "/ctr", true, true, "/home", "/proc/foo", "/tmp")
			res, err := f.runner.Run(context.Background())
			require.NoError(t, err)
			assert.Empty(t, f.mounter.calls)
			assert.Empty(t, f.fs.mkdirs)
			assert.Empty(t, res.Mounts)
			assert.Zero(t, f.priv.escalations)
		})
	}
}

func TestRunDisabled(t *testing.T) {
	c, err := NewContainerContext("", false, false)
	require.NoError(t, err)

	m := &fakeMounter{}
	fs := newFakeFS()
	p := &fakePriv{}
	r := &Runner{
		Context:   c,
		TablePath: filepath.Join(t.TempDir(), "missing"),
		Priv:      p,
		Mounter:   m,
		FS:        fs,
	}

	res, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Mounts)
	assert.Zero(t, res.Lines)
	assert.Empty(t, m.calls)
	assert.Zero(t, p.escalations)
}

func TestRunMissingTable(t *testing.T) {
	f := newFixture(t, "", "/ctr", true, true)
	f.runner.TablePath = filepath.Join(t.TempDir(), "missing")

	res, err := f.runner.Run(context.Background())
	require.Error(t, err)
	assert.True(t, er.Is(err, er.SourceUnavailable))
	assert.False(t, er.IsFatal(err))
	assert.Empty(t, res.Mounts)
	assert.Empty(t, f.mounter.calls)
}

func TestRunMissingBindPointWithoutOverlay(t *testing.T) {
	f := newFixture(t, "/dev/sda1 /home ext4 rw 0 0\n", "/ctr", false, true, "/home")

	res, err := f.runner.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, f.fs.mkdirs)
	assert.Empty(t, f.mounter.calls)
	assert.Equal(t, 1, res.Skipped[SkipMissingBindPoint])
	assert.Zero(t, f.priv.escalations)
}

func TestRunCreatesBindPointWithOverlay(t *testing.T) {
	f := newFixture(t, "/dev/sda1 /home ext4 rw 0 0\n", "/ctr", true, true, "/home")

	res, err := f.runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []mkdirCall{{"/ctr/home", defs.BindPointMode}}, f.fs.mkdirs)
	assert.Equal(t, []bindCall{{"/home", "/ctr/home"}}, f.mounter.calls)
	require.Len(t, res.Mounts, 1)
	assert.Equal(t, 2, f.priv.escalations)
	assert.Equal(t, 2, f.priv.drops)
}

func TestRunMkdirFailureDropsPrivilegeAndContinues(t *testing.T) {
	f := newFixture(t, "/dev/sda1 /home ext4 rw 0 0\n/dev/sda2 /data ext4 rw 0 0\n", "/ctr", true, true,
		"/home", "/data", "/ctr/data")
	f.fs.mkdirFail = true

	res, err := f.runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped[SkipMkdirFailed])
	assert.Equal(t, []bindCall{{"/data", "/ctr/data"}}, f.mounter.calls)
	assert.Equal(t, f.priv.escalations, f.priv.drops)
	assert.False(t, f.priv.escalated)
}

func TestRunHostMountpointNotDirectoryStillBinds(t *testing.T) {
	// only a directory on the host asks for a bind point
	f := newFixture(t, "/dev/sda1 /etc/hostname ext4 rw 0 0\n", "/ctr", false, true)

	_, err := f.runner.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, f.fs.mkdirs)
	assert.Equal(t, []bindCall{{"/etc/hostname", "/ctr/etc/hostname"}}, f.mounter.calls)
}

func TestRunMountFailureIsFatal(t *testing.T) {
	f := newFixture(t, "/dev/sda1 /home ext4 rw 0 0\n/dev/sda2 /data ext4 rw 0 0\n", "/ctr", false, true,
		"/home", "/ctr/home", "/data", "/ctr/data")
	f.mounter.failOn = "/home"

	res, err := f.runner.Run(context.Background())
	require.Error(t, err)
	assert.True(t, er.IsFatal(err))
	assert.True(t, er.Is(err, er.MountFatal))

	var fe *er.FatalError
	require.True(t, er.As(err, &fe))
	assert.Equal(t, "/home", fe.Source)
	assert.Equal(t, "/ctr/home", fe.Target)

	// the run stops at the failing entry
	assert.Equal(t, []bindCall{{"/home", "/ctr/home"}}, f.mounter.calls)
	assert.Empty(t, res.Mounts)
	assert.False(t, f.priv.escalated)
}

func TestRunAlreadyMountedTargetIsBoundAgain(t *testing.T) {
	f := newFixture(t, "/dev/sda1 /home ext4 rw 0 0\n", "/ctr", false, true, "/home", "/ctr/home")
	f.fs.mounted["/ctr/home"] = true

	res, err := f.runner.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Mounts, 1)
}

func TestRunTwiceBindsAgain(t *testing.T) {
	f := newFixture(t, "/dev/sda1 /home ext4 rw 0 0\n", "/ctr", false, true, "/home", "/ctr/home")

	_, err := f.runner.Run(context.Background())
	require.NoError(t, err)
	_, err = f.runner.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, f.mounter.calls, 2)
}
