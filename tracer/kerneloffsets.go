package tracer

import "fmt"

// KernelVersion identifies a detected guest kernel build, used to key
// the struct-offset table below.
type KernelVersion string

// Offsets are the guest struct-layout offsets the tracer walks to
// reach task_struct/dentry fields it cannot get a symbol for
// directly. spec.md §9's REDESIGN FLAG replaces the original's
// hardcoded offsets (44, 16, 204, 512, 12) with this version-keyed
// table, failing loudly on an unrecognized version instead of
// silently misreading guest memory.
type Offsets struct {
	TaskStructPID  uint64
	TaskStructComm uint64
	TaskStructMM   uint64
	MMStructPGD    uint64
	DentryDName    uint64
}

// knownOffsets is the table of struct layouts this tracer can walk.
// The single entry below reproduces the original's five fixed
// offsets (44, 16, 204, 512, 12) under the Linux version they were
// measured against; real deployments extend this table per detected
// kernel build.
var knownOffsets = map[KernelVersion]Offsets{
	"3.2.0": {
		TaskStructPID:  44,
		TaskStructComm: 16,
		TaskStructMM:   204,
		MMStructPGD:    512,
		DentryDName:    12,
	},
}

// OffsetsFor returns the struct-offset table for a detected kernel
// version. ok is false for any version not in knownOffsets, and the
// caller must treat that as fatal (ProtocolError) rather than fall
// back to a guess.
func OffsetsFor(version KernelVersion) (Offsets, bool) {
	o, ok := knownOffsets[version]
	return o, ok
}

// RequireOffsetsFor is OffsetsFor with an error return for callers
// that want to propagate the failure rather than branch on ok.
func RequireOffsetsFor(version KernelVersion) (Offsets, error) {
	o, ok := OffsetsFor(version)
	if !ok {
		return Offsets{}, fmt.Errorf("tracer: no struct-offset table for kernel version %q", version)
	}
	return o, nil
}
