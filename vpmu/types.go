// Package vpmu holds the wire-level data model shared by every VPMU
// component: trace packets, TB metadata, per-core counters, and the
// static simulator model. Nothing in this package allocates on the
// hot path — every type here is a fixed-size record.
package vpmu

// PacketType tags a Reference record. HOT is an OR-able modifier, not
// an independent value, so it is tested with a bitmask rather than
// compared for equality.
type PacketType uint8

const (
	PacketData PacketType = iota
	PacketBarrier
	PacketSyncData
	PacketReset
	PacketDumpInfo

	// PacketHot is OR-ed onto PacketData to route a reference through
	// the fast, partially-decoded dispatch path.
	PacketHot PacketType = 1 << 7
)

// IsHot reports whether the HOT bit is set on t.
func (t PacketType) IsHot() bool { return t&PacketHot != 0 }

// Base strips the HOT modifier, returning the underlying packet kind.
func (t PacketType) Base() PacketType { return t &^ PacketHot }

func (t PacketType) String() string {
	hot := ""
	if t.IsHot() {
		hot = "|HOT"
	}
	switch t.Base() {
	case PacketData:
		return "DATA" + hot
	case PacketBarrier:
		return "BARRIER" + hot
	case PacketSyncData:
		return "SYNC_DATA" + hot
	case PacketReset:
		return "RESET" + hot
	case PacketDumpInfo:
		return "DUMP_INFO" + hot
	default:
		return "UNKNOWN" + hot
	}
}

// TBInfo is an opaque description of one translated guest basic block.
// The core never owns or mutates it; references carry a pointer, and
// the emulator must keep the block live until every simulator that
// can observe the reference has drained past it.
type TBInfo struct {
	StartPC   uint64
	Size      uint32
	NumALU    uint32
	NumBit    uint32
	NumLoad   uint32
	NumStore  uint32
	NumInsn   uint32
	HasBranch bool
}

// Payload is the type set a Reference's payload may carry. Stream and
// Simulator are both generic over it (spec's "polymorphic simulators
// & streams" redesign: a capability interface parameterized by
// payload instead of virtual dispatch).
type Payload interface {
	CPURef | BranchRef | CacheRef
}

// CPURef is the payload of a CPU-stream reference.
type CPURef struct {
	Core   int
	Mode   CPUMode
	TBInfo *TBInfo
}

// CPUMode distinguishes user- from system-mode execution.
type CPUMode uint8

const (
	ModeUser CPUMode = iota
	ModeSystem
)

// BranchRef is the payload of a branch-stream reference.
type BranchRef struct {
	Core  int
	PC    uint64
	Taken bool
}

// RWType distinguishes a cache access's direction.
type RWType uint8

const (
	Read RWType = iota
	Write
)

// CacheRef is the payload of a cache-stream reference.
type CacheRef struct {
	Processor int
	Core      int
	Addr      uint64
	RW        RWType
	Size      uint32
}

// Reference is a fixed-size trace packet. Exactly one of the payload
// fields is meaningful, selected by the stream kind the Reference
// traveled on; callers that know T use Payload to extract it.
type Reference[T Payload] struct {
	Type    PacketType
	ID      uint64 // sequence id carried by BARRIER/SYNC_DATA/DUMP_INFO
	Payload T
}

// Model is the static, per-simulator configuration bound at build
// time: a name matched by the per-stream factory, plus whichever of
// the latency/frequency fields the concrete simulator interprets.
type Model struct {
	Name string

	// Branch / pipeline models.
	MissLatencyCycles uint64
	DualIssue         bool

	// Cache models: per-level configuration, innermost level (L1) first.
	CacheLevels []CacheLevelConfig

	FrequencyMHz float64
}

// CacheLevelConfig is one level's static configuration inside a cache
// hierarchy Model.
type CacheLevelConfig struct {
	Name         string
	SizeBytes    uint64
	Ways         int
	LineSize     uint32
	LatencyCycle uint64
	Inclusive    bool
}
