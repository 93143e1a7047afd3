package vdrive

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/kr/pretty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	er "pidrive/errors"
	"pidrive/pkg/config"
	"pidrive/pkg/display"
	"pidrive/pkg/lvm"
	"pidrive/pkg/usb"
)

// fakeRunner simulates the external commands the state machine shells out
// to, recording every invocation in order. The mutex matters only for the
// fire-and-forget fstrim goroutines.
type fakeRunner struct {
	mu    sync.Mutex
	calls []string

	loopbackPath string
	failAttach   bool
	failDetach   bool
	// device base names whose mount attempts fail for every backend
	failMount map[string]bool
}

func (f *fakeRunner) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeRunner) run(name string, args ...string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, strings.Join(append([]string{name}, args...), " "))
	f.mu.Unlock()

	switch name {
	case "losetup":
		switch args[0] {
		case "-f":
			return f.loopbackPath + "\n", nil
		case "-fP":
			if f.failAttach {
				return "", fmt.Errorf("losetup: %s: failed to set up loop device", args[1])
			}
			return "", nil
		case "-d":
			if f.failDetach {
				return "", fmt.Errorf("losetup: %s: detach failed", args[1])
			}
			return "", nil
		}
	case "mount", "mount.exfat", "mount.ntfs-3g":
		dev := filepath.Base(args[0])
		if f.failMount[dev] {
			return "", fmt.Errorf("mount: unknown filesystem type on %s", dev)
		}
		return "", nil
	case "fstrim":
		return "", nil
	}
	return "", fmt.Errorf("unexpected command %s", name)
}

// orderedExporter appends to a shared log so teardown ordering across the
// exporter, unmounts, and detach can be asserted.
type orderedExporter struct {
	*usb.MockExporter
	log *[]string
}

func (o *orderedExporter) UnexportFile(id usb.StorageID) error {
	if err := o.MockExporter.UnexportFile(id); err != nil {
		return err
	}
	*o.log = append(*o.log, "unexport")
	return nil
}

type testDrive struct {
	drive    *VirtualDrive
	runner   *fakeRunner
	exporter *usb.MockExporter
	devDir   string
	root     string
	unmounts []string
}

func newTestDrive(t *testing.T) *testDrive {
	t.Helper()

	disp := display.NewManager()
	exporter := usb.NewMockExporter()
	volume := lvm.LogicalVolume{
		Name: "DATA",
		Size: 8_000_000_000,
		Path: "/dev/pidrive/DATA",
	}
	drive, err := NewDrive(disp, exporter, volume, config.Default())
	require.NoError(t, err)

	td := &testDrive{
		drive:    drive,
		runner:   &fakeRunner{loopbackPath: "/dev/loop3", failMount: map[string]bool{}},
		exporter: exporter,
		devDir:   t.TempDir(),
		root:     t.TempDir(),
	}
	drive.run = td.runner.run
	drive.devDir = td.devDir
	drive.mountRoot = td.root
	drive.unmountFn = func(target string, _ int) error {
		td.unmounts = append(td.unmounts, target)
		return nil
	}
	return td
}

// addPartition drops a fake partition node into the scratch /dev.
func (td *testDrive) addPartition(t *testing.T, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(td.devDir, name), nil, 0o644))
}

func TestMountExternalFromUnmounted(t *testing.T) {
	td := newTestDrive(t)

	require.NoError(t, td.drive.MountExternal())

	mode, ok := td.drive.Mode().(External)
	require.True(t, ok, "expected External, got %T", td.drive.Mode())
	assert.True(t, td.drive.Persist().ExternalMount)

	exp := td.exporter.Active[mode.ID.Index]
	assert.Equal(t, "/dev/pidrive/DATA", exp.Path)
	assert.False(t, exp.CDROM)
	assert.False(t, exp.ReadOnly)
	assert.True(t, exp.Removable)
}

func TestMountExternalUsesPersistedFlags(t *testing.T) {
	td := newTestDrive(t)
	td.drive.persist.ReadOnly = true
	td.drive.persist.Removable = false

	require.NoError(t, td.drive.MountExternal())

	mode := td.drive.Mode().(External)
	exp := td.exporter.Active[mode.ID.Index]
	assert.True(t, exp.ReadOnly)
	assert.False(t, exp.Removable)
}

func TestMountExternalIdempotent(t *testing.T) {
	td := newTestDrive(t)
	require.NoError(t, td.drive.MountExternal())
	require.NoError(t, td.drive.MountExternal())
	assert.Len(t, td.exporter.Calls, 1)
}

func TestMountExternalWhileInternalFails(t *testing.T) {
	td := newTestDrive(t)
	td.drive.state = Internal{Info: &MountInfo{LoopbackPath: "/dev/loop3"}}

	err := td.drive.MountExternal()
	require.Error(t, err)
	assert.ErrorIs(t, err, er.MountedInternal)
	assert.IsType(t, Internal{}, td.drive.Mode())
	assert.False(t, td.drive.Persist().ExternalMount)
}

func TestMountExternalFailureLeavesUnmounted(t *testing.T) {
	td := newTestDrive(t)
	td.exporter.ExportErr = fmt.Errorf("no free luns")

	err := td.drive.MountExternal()
	require.Error(t, err)
	assert.IsType(t, Unmounted{}, td.drive.Mode())
	assert.False(t, td.drive.Persist().ExternalMount)
}

func TestUnmountExternalNoop(t *testing.T) {
	td := newTestDrive(t)
	require.NoError(t, td.drive.UnmountExternal())
	assert.IsType(t, Unmounted{}, td.drive.Mode())
}

func TestUnmountExternal(t *testing.T) {
	td := newTestDrive(t)
	require.NoError(t, td.drive.MountExternal())
	require.NoError(t, td.drive.UnmountExternal())

	assert.IsType(t, Unmounted{}, td.drive.Mode())
	assert.False(t, td.drive.Persist().ExternalMount)
	assert.Empty(t, td.exporter.Active)
}

func TestUnmountExternalFailureKeepsState(t *testing.T) {
	td := newTestDrive(t)
	require.NoError(t, td.drive.MountExternal())
	td.exporter.UnexportErr = fmt.Errorf("device busy")

	err := td.drive.UnmountExternal()
	require.Error(t, err)
	assert.IsType(t, External{}, td.drive.Mode())
	assert.True(t, td.drive.Persist().ExternalMount)
}

func TestMountInternal(t *testing.T) {
	td := newTestDrive(t)
	td.addPartition(t, "loop3p1")
	td.addPartition(t, "loop3p2")

	info, err := td.drive.MountInternal()
	require.NoError(t, err)

	want := []string{
		filepath.Join(td.root, "DATA (partition 1)"),
		filepath.Join(td.root, "DATA (partition 2)"),
	}
	assert.ElementsMatch(t, want, info.PartMountPaths, pretty.Sprint(info))
	assert.Equal(t, "/dev/loop3", info.LoopbackPath)
	assert.IsType(t, Internal{}, td.drive.Mode())

	for _, mp := range want {
		assert.DirExists(t, mp)
	}
}

func TestMountInternalSkipsFailedPartition(t *testing.T) {
	td := newTestDrive(t)
	td.addPartition(t, "loop3p1")
	td.addPartition(t, "loop3p2")
	td.runner.failMount["loop3p2"] = true

	info, err := td.drive.MountInternal()
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join(td.root, "DATA (partition 1)")}, info.PartMountPaths)
}

func TestMountInternalIdempotent(t *testing.T) {
	td := newTestDrive(t)
	td.addPartition(t, "loop3p1")

	first, err := td.drive.MountInternal()
	require.NoError(t, err)
	callsAfterFirst := len(td.runner.recorded())

	second, err := td.drive.MountInternal()
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Len(t, td.runner.recorded(), callsAfterFirst, "second call must not touch the kernel")
}

func TestMountInternalWhileExternalFails(t *testing.T) {
	td := newTestDrive(t)
	require.NoError(t, td.drive.MountExternal())

	_, err := td.drive.MountInternal()
	require.Error(t, err)
	assert.ErrorIs(t, err, er.MountedExternal)
	assert.IsType(t, External{}, td.drive.Mode())
}

func TestMountInternalBadPartitionSuffix(t *testing.T) {
	td := newTestDrive(t)
	td.addPartition(t, "loop3pX")

	_, err := td.drive.MountInternal()
	require.Error(t, err)
	assert.ErrorIs(t, err, er.PartNumParse)
	assert.IsType(t, Unmounted{}, td.drive.Mode())
}

func TestMountInternalAttachFailure(t *testing.T) {
	td := newTestDrive(t)
	td.runner.failAttach = true

	_, err := td.drive.MountInternal()
	require.Error(t, err)
	assert.IsType(t, Unmounted{}, td.drive.Mode())
}

func TestMountInternalDiscoversImages(t *testing.T) {
	td := newTestDrive(t)
	td.addPartition(t, "loop3p1")

	isoDir := filepath.Join(td.root, "DATA (partition 1)", "ISOS")
	require.NoError(t, os.MkdirAll(isoDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(isoDir, "alpine.iso"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(isoDir, ".hidden.iso"), nil, 0o644))

	info, err := td.drive.MountInternal()
	require.NoError(t, err)

	require.Len(t, info.Images, 1)
	assert.Equal(t, "alpine.iso", info.Images[0].Name())
}

func TestMountInternalTranslatesName(t *testing.T) {
	td := newTestDrive(t)
	td.drive.config.SetRename("DATA", "Music")
	td.addPartition(t, "loop3p1")

	info, err := td.drive.MountInternal()
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(td.root, "Music (partition 1)")}, info.PartMountPaths)
}

func TestUnmountInternalOrdering(t *testing.T) {
	td := newTestDrive(t)
	td.addPartition(t, "loop3p1")

	isoDir := filepath.Join(td.root, "DATA (partition 1)", "ISOS")
	require.NoError(t, os.MkdirAll(isoDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(isoDir, "alpine.iso"), nil, 0o644))

	var order []string
	td.drive.usb = &orderedExporter{MockExporter: td.exporter, log: &order}
	td.drive.unmountFn = func(target string, _ int) error {
		order = append(order, "umount")
		return nil
	}

	info, err := td.drive.MountInternal()
	require.NoError(t, err)
	require.NoError(t, info.Images[0].Mount())

	require.NoError(t, td.drive.UnmountInternal())

	assert.Equal(t, []string{"unexport", "umount"}, order,
		"images must be torn down before their partition")
	calls := td.runner.recorded()
	last := calls[len(calls)-1]
	assert.Equal(t, "losetup -d /dev/loop3", last, "loopback detach must come last")
	assert.IsType(t, Unmounted{}, td.drive.Mode())
	assert.NoDirExists(t, filepath.Join(td.root, "DATA (partition 1)"))
}

func TestUnmountInternalNoop(t *testing.T) {
	td := newTestDrive(t)
	require.NoError(t, td.drive.UnmountInternal())
	assert.IsType(t, Unmounted{}, td.drive.Mode())
}

func TestUnmountInternalWhileExternalFails(t *testing.T) {
	td := newTestDrive(t)
	require.NoError(t, td.drive.MountExternal())

	err := td.drive.UnmountInternal()
	require.Error(t, err)
	assert.ErrorIs(t, err, er.MountedExternal)
}

func TestUnmountInternalDetachFailureKeepsState(t *testing.T) {
	td := newTestDrive(t)
	td.addPartition(t, "loop3p1")
	td.runner.failDetach = true

	_, err := td.drive.MountInternal()
	require.NoError(t, err)

	err = td.drive.UnmountInternal()
	require.Error(t, err)
	assert.IsType(t, Internal{}, td.drive.Mode())
}

func TestUnmountDispatch(t *testing.T) {
	td := newTestDrive(t)
	require.NoError(t, td.drive.Unmount())

	require.NoError(t, td.drive.MountExternal())
	require.NoError(t, td.drive.Unmount())
	assert.IsType(t, Unmounted{}, td.drive.Mode())
}

func TestToggleMountFromUnmounted(t *testing.T) {
	td := newTestDrive(t)
	require.NoError(t, td.drive.ToggleMount())
	assert.IsType(t, External{}, td.drive.Mode())
}

func TestToggleMountFromExternal(t *testing.T) {
	td := newTestDrive(t)
	td.addPartition(t, "loop3p1")
	require.NoError(t, td.drive.MountExternal())

	require.NoError(t, td.drive.ToggleMount())
	assert.IsType(t, Internal{}, td.drive.Mode())
	assert.Empty(t, td.exporter.Active)
}

func TestToggleMountFromInternal(t *testing.T) {
	td := newTestDrive(t)
	td.addPartition(t, "loop3p1")
	_, err := td.drive.MountInternal()
	require.NoError(t, err)

	require.NoError(t, td.drive.ToggleMount())
	assert.IsType(t, External{}, td.drive.Mode())
}

func TestExposureModeExclusive(t *testing.T) {
	td := newTestDrive(t)
	td.addPartition(t, "loop3p1")

	require.NoError(t, td.drive.MountExternal())
	assert.Len(t, td.exporter.Active, 1)

	require.NoError(t, td.drive.UnmountExternal())
	_, err := td.drive.MountInternal()
	require.NoError(t, err)

	// internal mount must not leave an export behind
	assert.Empty(t, td.exporter.Active)
}
