package tracer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEventTracerAttachScenario is scenario S5: registering program
// "bash", firing EXECV then an executable MMAP associates pid 42 with
// it; a WAKE_NEW_TASK for child pid 77 attaches it under 42; EXIT on
// 42 detaches (not deletes) 77, reparenting it under the synthetic
// root rather than removing it.
func TestEventTracerAttachScenario(t *testing.T) {
	tr := New(nil, nil)
	tr.AddProgram("bash")

	// EXECV: the guest started a process the tracer can't yet name
	// from the raw execve filename alone.
	tr.AddNewProcess("unresolved", 42)
	_, ok := tr.FindProcess(42)
	require.True(t, ok)

	// MMAP: an executable mapping whose path basename matches the
	// registered program confirms the association.
	err := tr.AttachMappedRegion(42, MMapInfo{StartAddr: 0x400000, EndAddr: 0x401000, Executable: true, Path: "/bin/bash"})
	require.NoError(t, err)
	p42, _ := tr.FindProcess(42)
	assert.Equal(t, "bash", p42.ProgramName)

	// WAKE_NEW_TASK: child pid 77 forked from 42.
	child := tr.AttachToParent(42, 77, "bash")
	assert.Equal(t, uint64(42), child.ParentPID)
	assert.Equal(t, "bash", child.ProgramName)
	assert.Contains(t, p42.Children, uint64(77))

	// EXIT: 42 is removed; 77 is detached and reparented under the
	// synthetic root rather than deleted.
	tr.Exit(42)
	_, ok = tr.FindProcess(42)
	assert.False(t, ok)

	p77, ok := tr.FindProcess(77)
	require.True(t, ok, "child must survive its parent's exit, per the detach policy")
	assert.Equal(t, uint64(rootPID), p77.ParentPID)

	root, ok := tr.FindProcess(rootPID)
	require.True(t, ok)
	assert.Contains(t, root.Children, uint64(77))
}

func TestFindProcessRejectsPIDZero(t *testing.T) {
	tr := New(nil, nil)
	tr.AddNewProcess("x", 1)
	_, ok := tr.FindProcess(0)
	assert.False(t, ok)
}

func TestAddProgramDeduplicatesByBasename(t *testing.T) {
	tr := New(nil, nil)
	a := tr.AddProgram("/usr/bin/bash")
	b := tr.AddProgram("bash")
	assert.Same(t, a, b)
}

func TestKernelSetSymbolAddressRecognizesFixedSet(t *testing.T) {
	k := NewKernel()
	assert.True(t, k.SetSymbolAddress("do_execve_common", 0x1000))
	assert.True(t, k.SetSymbolAddress("__switch_to", 0x2000))
	assert.True(t, k.SetSymbolAddress("DO_EXIT", 0x3000))
	assert.False(t, k.SetSymbolAddress("not_a_kernel_symbol", 0x4000))

	assert.Equal(t, EventExecv, k.FindEvent(0x1000))
	assert.Equal(t, EventContextSwitch, k.FindEvent(0x2000))
	assert.Equal(t, EventExit, k.FindEvent(0x3000))
	assert.Equal(t, EventNone, k.FindEvent(0x9999))
}

func TestKernelCallInThenCallReturn(t *testing.T) {
	k := NewKernel()
	k.SetSymbolAddress("do_exit", 0x3000)

	kind, matched := k.CallIn(0x3000, 0x3010)
	require.True(t, matched)
	assert.Equal(t, EventExit, kind)

	kind, matched = k.CallReturn(0x3010)
	require.True(t, matched)
	assert.Equal(t, EventExit, kind)

	// The return edge only fires once per call-in.
	_, matched = k.CallReturn(0x3010)
	assert.False(t, matched)
}

func TestParseKernelVersionStopsAtControlCharOnly(t *testing.T) {
	data := []byte("garbage\x00Linux version 3.2.0 (build@host) ...\x00more")
	version, ok := ParseKernelVersion(data)
	require.True(t, ok)
	assert.Equal(t, KernelVersion("3.2.0 (build@host) ..."), version)
}

func TestParseKernelVersionBareVersionMatchesKnownOffsets(t *testing.T) {
	data := []byte("Linux version 3.2.0\n")
	version, ok := ParseKernelVersion(data)
	require.True(t, ok)
	assert.Equal(t, KernelVersion("3.2.0"), version)
	_, ok = OffsetsFor(version)
	assert.True(t, ok, "a bare version banner with no trailing build info keys straight into knownOffsets")
}

func TestParseKernelVersionMissingBanner(t *testing.T) {
	_, ok := ParseKernelVersion([]byte("not a kernel image"))
	assert.False(t, ok)
}

func TestOffsetsForUnknownVersionFailsLoudly(t *testing.T) {
	_, err := RequireOffsetsFor("99.99.99")
	assert.Error(t, err)
}

func TestOffsetsForKnownVersion(t *testing.T) {
	o, err := RequireOffsetsFor("3.2.0")
	require.NoError(t, err)
	assert.Equal(t, uint64(44), o.TaskStructPID)
}
