package tracer

import (
	"path/filepath"
	"strings"

	"github.com/snippits/govpmu/phase"
)

// Program is a registered binary or library: a name plus its
// symbol/DWARF maps. Programs are identified by basename and
// deduplicated on registration.
type Program struct {
	Name      string
	IsLibrary bool
	Symbols   map[string]uint64
}

// MMapInfo describes one mapped region attached to a Process.
type MMapInfo struct {
	StartAddr  uint64
	EndAddr    uint64
	Executable bool
	Path       string
}

// Process owns one guest PID's tracer-visible state: its program
// association, parent/child links (by PID, not pointer — spec.md §9's
// "arena + stable indices" redesign so the graph has no cycles to
// manage), mapped regions, the in-flight phase window, and that
// process's phase list/history.
type Process struct {
	PID         uint64
	Name        string
	ProgramName string // basename of the associated Program, "" if unassociated

	ParentPID uint64
	Children  []uint64

	MappedRegions []MMapInfo

	Window       *phase.Window
	PhaseList    []*phase.Phase
	PhaseHistory []phase.HistoryEntry

	StackPointer uint64
}

// fuzzyMatchesPath reports whether path's basename matches the
// process's own name as a substring either direction, per spec.md
// §4.6's "fuzzy basename match" process lookup.
func (p *Process) fuzzyMatchesPath(path string) bool {
	base := filepath.Base(path)
	if p.Name == "" || base == "" {
		return false
	}
	return strings.Contains(base, p.Name) || strings.Contains(p.Name, base)
}

func basename(name string) string {
	return filepath.Base(name)
}
