// Package branch implements the branch-predictor simulator family:
// one-bit, two-bit saturating-counter, GHT (global history table),
// and a tournament Alpha21264-style hybrid predictor. Each is a
// simulator.Simulator[vpmu.BranchRef].
package branch

import (
	"github.com/snippits/govpmu/simulator"
	"github.com/snippits/govpmu/vpmu"
)

// Register installs every predictor in this package into reg under
// its canonical name, matching the teacher's init()-based
// registration idiom (sim/kv/register.go, sim/latency/register.go)
// generalized to a per-call registry instead of a package-level
// global, per the "globals -> context object" redesign note.
func Register(reg *simulator.Registry[vpmu.BranchRef]) {
	reg.Register("branch-one-bit", func() simulator.Simulator[vpmu.BranchRef] { return &OneBit{} })
	reg.Register("branch-two-bit", func() simulator.Simulator[vpmu.BranchRef] { return &TwoBit{} })
	reg.Register("branch-ght", func() simulator.Simulator[vpmu.BranchRef] { return &GHT{} })
	reg.Register("branch-alpha21264", func() simulator.Simulator[vpmu.BranchRef] { return &Alpha21264{} })
}

// Data is the per-core accuracy result a branch simulator produces on
// each packet.
type Data struct {
	Correct uint64
	Wrong   uint64
}

// OneBit is the simplest predictor: one bit of state per core,
// predicting whatever the branch did last time.
type OneBit struct {
	model vpmu.Model
	state []bool // last-taken bit, indexed by core
	acc   []Data
}

func (p *OneBit) Build(model vpmu.Model) error {
	p.model = model
	return nil
}

func (p *OneBit) grow(core int) {
	for len(p.state) <= core {
		p.state = append(p.state, false)
		p.acc = append(p.acc, Data{})
	}
}

func (p *OneBit) PacketProcessor(id int, ref vpmu.Reference[vpmu.BranchRef]) simulator.Data {
	core := ref.Payload.Core
	p.grow(core)
	predicted := p.state[core]
	if predicted == ref.Payload.Taken {
		p.acc[core].Correct++
	} else {
		p.acc[core].Wrong++
	}
	p.state[core] = ref.Payload.Taken
	return p.acc[core]
}

// ResetCounters zeroes every core's accuracy accumulator in place,
// leaving the learned predictor state (p.state) untouched: a RESET
// clears the counters a dump reads back, not the predictor itself.
func (p *OneBit) ResetCounters() {
	for i := range p.acc {
		p.acc[i] = Data{}
	}
}

func (p *OneBit) Destroy() {}

// twoBitState is a 2-bit saturating counter: 0=strongly-not-taken,
// 1=weakly-not-taken, 2=weakly-taken, 3=strongly-taken.
type twoBitState uint8

const (
	stateStronglyNotTaken twoBitState = iota
	stateWeaklyNotTaken
	stateWeaklyTaken
	stateStronglyTaken
)

// next applies the spec's saturating transition table: {0<->1,
// 2<->3, and 1->0/3, 2->3/0}.
func (s twoBitState) next(taken bool) twoBitState {
	switch s {
	case stateStronglyNotTaken:
		if taken {
			return stateWeaklyNotTaken
		}
		return stateStronglyNotTaken
	case stateWeaklyNotTaken:
		if taken {
			return stateStronglyTaken
		}
		return stateStronglyNotTaken
	case stateWeaklyTaken:
		if taken {
			return stateStronglyTaken
		}
		return stateStronglyNotTaken
	case stateStronglyTaken:
		if taken {
			return stateStronglyTaken
		}
		return stateWeaklyTaken
	default:
		return s
	}
}

// predictTaken reports the counter's current prediction. Under this
// FSM's transition table a single not-taken outcome from
// strongly-taken only backs off to weakly-taken, which still
// predicts taken — only the strongly-not-taken state predicts
// not-taken.
func (s twoBitState) predictTaken() bool {
	return s != stateStronglyNotTaken
}

// TwoBit is the classic 2-bit saturating-counter predictor, one
// counter per core.
type TwoBit struct {
	model vpmu.Model
	state []twoBitState
	acc   []Data
}

func (p *TwoBit) Build(model vpmu.Model) error {
	p.model = model
	return nil
}

func (p *TwoBit) grow(core int) {
	for len(p.state) <= core {
		p.state = append(p.state, stateStronglyNotTaken)
		p.acc = append(p.acc, Data{})
	}
}

func (p *TwoBit) PacketProcessor(id int, ref vpmu.Reference[vpmu.BranchRef]) simulator.Data {
	core := ref.Payload.Core
	p.grow(core)
	predicted := p.state[core].predictTaken()
	if predicted == ref.Payload.Taken {
		p.acc[core].Correct++
	} else {
		p.acc[core].Wrong++
	}
	p.state[core] = p.state[core].next(ref.Payload.Taken)
	return p.acc[core]
}

// ResetCounters zeroes every core's accuracy accumulator, leaving the
// saturating-counter state untouched.
func (p *TwoBit) ResetCounters() {
	for i := range p.acc {
		p.acc[i] = Data{}
	}
}

func (p *TwoBit) Destroy() {}

// ghtSize is the number of entries in the global history table,
// indexed by the low bits of PC XORed with the global history.
const ghtSize = 1024

// GHT predicts from a single table of 2-bit counters shared across
// cores, indexed by (history, PC) rather than PC alone.
type GHT struct {
	model   vpmu.Model
	table   [ghtSize]twoBitState
	history []uint16 // per-core global history register
	acc     []Data
}

func (p *GHT) Build(model vpmu.Model) error {
	p.model = model
	return nil
}

func (p *GHT) grow(core int) {
	for len(p.history) <= core {
		p.history = append(p.history, 0)
		p.acc = append(p.acc, Data{})
	}
}

func (p *GHT) index(core int, pc uint64) uint32 {
	return uint32((pc>>2)^uint64(p.history[core])) % ghtSize
}

func (p *GHT) PacketProcessor(id int, ref vpmu.Reference[vpmu.BranchRef]) simulator.Data {
	core := ref.Payload.Core
	p.grow(core)
	idx := p.index(core, ref.Payload.PC)
	predicted := p.table[idx].predictTaken()
	if predicted == ref.Payload.Taken {
		p.acc[core].Correct++
	} else {
		p.acc[core].Wrong++
	}
	p.table[idx] = p.table[idx].next(ref.Payload.Taken)
	p.history[core] = (p.history[core] << 1)
	if ref.Payload.Taken {
		p.history[core] |= 1
	}
	return p.acc[core]
}

// ResetCounters zeroes every core's accuracy accumulator, leaving the
// shared history table and per-core history registers untouched.
func (p *GHT) ResetCounters() {
	for i := range p.acc {
		p.acc[i] = Data{}
	}
}

func (p *GHT) Destroy() {}

// Alpha21264 is a tournament predictor combining a per-PC local
// (two-bit) predictor with the shared GHT global predictor, choosing
// between them with a meta-predictor counter per index, following the
// DEC Alpha 21264's hybrid scheme.
type Alpha21264 struct {
	model vpmu.Model
	local TwoBit
	global GHT
	meta  [ghtSize]twoBitState // >= weakly-taken favors global
	acc   []Data
}

func (p *Alpha21264) Build(model vpmu.Model) error {
	p.model = model
	if err := p.local.Build(model); err != nil {
		return err
	}
	return p.global.Build(model)
}

func (p *Alpha21264) grow(core int) {
	for len(p.acc) <= core {
		p.acc = append(p.acc, Data{})
	}
}

func (p *Alpha21264) PacketProcessor(id int, ref vpmu.Reference[vpmu.BranchRef]) simulator.Data {
	core := ref.Payload.Core
	p.grow(core)
	p.local.grow(core)
	p.global.grow(core)

	localPredicted := p.local.state[core].predictTaken()
	idx := p.global.index(core, ref.Payload.PC)
	globalPredicted := p.global.table[idx].predictTaken()
	useGlobal := p.meta[idx].predictTaken()

	predicted := localPredicted
	if useGlobal {
		predicted = globalPredicted
	}
	if predicted == ref.Payload.Taken {
		p.acc[core].Correct++
	} else {
		p.acc[core].Wrong++
	}

	// Update the meta-predictor only when the two component
	// predictors disagreed; agreement carries no discriminating signal.
	if localPredicted != globalPredicted {
		if globalPredicted == ref.Payload.Taken {
			p.meta[idx] = p.meta[idx].next(true)
		} else {
			p.meta[idx] = p.meta[idx].next(false)
		}
	}

	p.local.state[core] = p.local.state[core].next(ref.Payload.Taken)
	p.global.table[idx] = p.global.table[idx].next(ref.Payload.Taken)
	p.global.history[core] = (p.global.history[core] << 1)
	if ref.Payload.Taken {
		p.global.history[core] |= 1
	}
	return p.acc[core]
}

// ResetCounters zeroes every core's accuracy accumulator, leaving the
// local/global/meta predictor state untouched.
func (p *Alpha21264) ResetCounters() {
	for i := range p.acc {
		p.acc[i] = Data{}
	}
}

func (p *Alpha21264) Destroy() {}
