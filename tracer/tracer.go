// Package tracer implements the EventTracer: the guest process/program
// registry keyed by PID, the fixed kernel symbol table, parent/child
// attachment, and mapped-region bookkeeping, per spec.md §4.6.
package tracer

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/snippits/govpmu/phase"
)

// rootPID is the synthetic init-like root every orphaned child is
// reparented under on its parent's exit (spec.md §9's resolved EXIT
// policy: detach, don't recursively remove).
const rootPID = 1

// Tracer is the EventTracer: a PID-keyed process map, a
// basename-keyed program registry, and the Kernel singleton. Three
// mutexes guard, respectively, the process map, process child-list
// mutation, and the program registry, matching spec.md §4.6's
// concurrency section; lookups take no lock and tolerate a missing
// entry.
type Tracer struct {
	processMapMu sync.Mutex
	processes    map[uint64]*Process

	childListMu sync.Mutex

	programListMu sync.Mutex
	programs      map[string]*Program

	Kernel *Kernel

	detector *phase.Detector
	log      logrus.FieldLogger
}

// New builds an empty Tracer. detector configures the phase window
// every new Process starts with; log defaults to logrus's standard
// logger when nil.
func New(detector *phase.Detector, log logrus.FieldLogger) *Tracer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Tracer{
		processes: make(map[uint64]*Process),
		programs:  make(map[string]*Program),
		Kernel:    NewKernel(),
		detector:  detector,
		log:       log,
	}
}

// AddProgram registers a binary program by basename, de-duplicating
// on name.
func (t *Tracer) AddProgram(name string) *Program {
	return t.addProgram(name, false)
}

// AddLibrary registers a shared library by basename.
func (t *Tracer) AddLibrary(name string) *Program {
	return t.addProgram(name, true)
}

func (t *Tracer) addProgram(name string, isLibrary bool) *Program {
	key := basename(name)
	t.programListMu.Lock()
	defer t.programListMu.Unlock()
	if p, ok := t.programs[key]; ok {
		return p
	}
	p := &Program{Name: key, IsLibrary: isLibrary, Symbols: make(map[string]uint64)}
	t.programs[key] = p
	return p
}

// FindProgram looks up a registered program by basename. No lock is
// taken; a concurrent registration may or may not be visible, which
// is acceptable per spec.md §4.6 ("lookups take no mutex").
func (t *Tracer) FindProgram(path string) (*Program, bool) {
	p, ok := t.programs[basename(path)]
	return p, ok
}

// FindProcess looks up a process by PID. pid == 0 always misses
// (spec.md §3 invariant 2, §8 boundary behavior).
func (t *Tracer) FindProcess(pid uint64) (*Process, bool) {
	if pid == 0 {
		return nil, false
	}
	p, ok := t.processes[pid]
	return p, ok
}

// FindProcessByPath does a fuzzy basename match against every tracked
// process's name, per spec.md §4.6.
func (t *Tracer) FindProcessByPath(path string) (*Process, bool) {
	for _, p := range t.processes {
		if p.fuzzyMatchesPath(path) {
			return p, true
		}
	}
	return nil, false
}

// AddNewProcess inserts a new Process for pid. If name matches a
// registered program's basename, the process is associated with it.
func (t *Tracer) AddNewProcess(name string, pid uint64) *Process {
	t.processMapMu.Lock()
	defer t.processMapMu.Unlock()

	p := &Process{PID: pid, Name: name}
	if prog, ok := t.programs[basename(name)]; ok {
		p.ProgramName = prog.Name
	}
	if t.detector != nil {
		p.Window = t.detector.NewWindow()
	}
	t.processes[pid] = p
	t.log.WithFields(logrus.Fields{"pid": pid, "name": name}).Debug("tracer: new process")
	return p
}

// AttachToParent creates childPID as a shallow copy of parent's
// program association, pushes it onto parent's child list, and
// inserts it into the PID map.
func (t *Tracer) AttachToParent(parentPID, childPID uint64, name string) *Process {
	t.processMapMu.Lock()
	parent, ok := t.processes[parentPID]

	child := &Process{PID: childPID, Name: name, ParentPID: parentPID}
	if ok {
		child.ProgramName = parent.ProgramName
	}
	t.processes[childPID] = child
	t.processMapMu.Unlock()

	if t.detector != nil {
		child.Window = t.detector.NewWindow()
	}

	if ok {
		t.childListMu.Lock()
		parent.Children = append(parent.Children, childPID)
		t.childListMu.Unlock()
	}

	return child
}

// AttachMappedRegion appends region to pid's mapped-region list. If
// the region is executable and its path matches a registered
// program's basename, the process's program association is
// (re)confirmed.
func (t *Tracer) AttachMappedRegion(pid uint64, region MMapInfo) error {
	t.processMapMu.Lock()
	defer t.processMapMu.Unlock()
	p, ok := t.processes[pid]
	if !ok {
		return fmt.Errorf("tracer: attach_mapped_region: unknown pid %d", pid)
	}
	p.MappedRegions = append(p.MappedRegions, region)
	if region.Executable {
		if prog, ok := t.programs[basename(region.Path)]; ok {
			p.ProgramName = prog.Name
		}
	}
	return nil
}

// Exit implements the resolved EXIT policy (spec.md §9): pid is
// removed from the process map and its parent's child list, but its
// children are detached and reparented under the synthetic root
// process (PID 1, created lazily) rather than removed, so their
// in-flight phase history remains queryable.
func (t *Tracer) Exit(pid uint64) {
	t.processMapMu.Lock()
	p, ok := t.processes[pid]
	if !ok {
		t.processMapMu.Unlock()
		return
	}
	delete(t.processes, pid)
	parent := t.processes[p.ParentPID]
	children := make([]*Process, 0, len(p.Children))
	for _, childPID := range p.Children {
		if child, ok := t.processes[childPID]; ok {
			children = append(children, child)
		}
	}
	var root *Process
	if len(children) > 0 {
		root, ok = t.processes[rootPID]
		if !ok {
			root = &Process{PID: rootPID, Name: "[root]"}
			t.processes[rootPID] = root
		}
	}
	t.processMapMu.Unlock()

	if parent != nil {
		t.childListMu.Lock()
		parent.Children = removePID(parent.Children, pid)
		t.childListMu.Unlock()
	}

	if len(children) == 0 {
		return
	}
	t.childListMu.Lock()
	for _, child := range children {
		child.ParentPID = rootPID
		root.Children = append(root.Children, child.PID)
	}
	t.childListMu.Unlock()
}

func removePID(pids []uint64, target uint64) []uint64 {
	out := pids[:0]
	for _, pid := range pids {
		if pid != target {
			out = append(out, pid)
		}
	}
	return out
}

// ParseAndSetKernelSymbol scans vmlinux for the version banner and
// returns the detected version, or ok=false if none was found.
func (t *Tracer) ParseAndSetKernelSymbol(vmlinux []byte) (KernelVersion, bool) {
	return ParseKernelVersion(vmlinux)
}

// RegisterKernelSymbol normalizes and records one (name, address)
// pair against the kernel's fixed event table.
func (t *Tracer) RegisterKernelSymbol(name string, address uint64) bool {
	return t.Kernel.SetSymbolAddress(name, address)
}
