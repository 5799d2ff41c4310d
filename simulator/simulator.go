// Package simulator defines the polymorphic timing-model contract
// every concrete simulator (branch predictor, pipeline timer, cache
// hierarchy) implements. Stream dispatches references to whichever
// Simulator instances it was bound to; the contract is generic over
// the payload type so dispatch needs no virtual call.
package simulator

import "github.com/snippits/govpmu/vpmu"

// Data is the counters a Simulator[T] produces. Each concrete payload
// has its own result shape; simulators return it from
// PacketProcessor and HotPacketProcessor so the caller can snapshot
// it into the shared region without the simulator knowing about
// streams, rings, or control planes at all.
type Data any

// Simulator is the capability contract a timing model implements for
// one reference payload type T. Build is called once per worker with
// the Model bound from configuration; PacketProcessor is called for
// every non-hot reference (and HotPacketProcessor, if non-nil on the
// concrete type, for HOT-flagged ones); Destroy releases any
// simulator-private state before the worker exits.
type Simulator[T vpmu.Payload] interface {
	Build(model vpmu.Model) error
	PacketProcessor(id int, ref vpmu.Reference[T]) Data
	Destroy()
}

// HotProcessor is an optional capability: simulators that can serve
// the HOT fast path implement it in addition to Simulator[T].
type HotProcessor[T vpmu.Payload] interface {
	HotPacketProcessor(id int, ref vpmu.Reference[T]) Data
}

// Factory constructs a fresh Simulator[T] instance by name, mirroring
// the per-stream create_sim(name) factory from the spec. Concrete
// packages register their constructors into a caller-supplied
// Registry through their own Register(reg) function (which keeps the
// interface owner from importing its implementations: see
// simulator/branch, simulator/cache, simulator/pipeline).
type Factory[T vpmu.Payload] func() Simulator[T]

// Registry is a name -> Factory lookup table used by Stream.Build to
// instantiate configured simulators.
type Registry[T vpmu.Payload] struct {
	factories map[string]Factory[T]
}

// NewRegistry returns an empty Registry.
func NewRegistry[T vpmu.Payload]() *Registry[T] {
	return &Registry[T]{factories: make(map[string]Factory[T])}
}

// Register associates name with factory. Re-registering the same
// name overwrites the previous factory, so the last Register call for
// a name wins.
func (r *Registry[T]) Register(name string, factory Factory[T]) {
	r.factories[name] = factory
}

// Create constructs a new Simulator[T] for name, or reports ok=false
// if name is unregistered (RecoverableWarning: unknown simulator
// name, per spec's error-handling design — callers log and skip).
func (r *Registry[T]) Create(name string) (Simulator[T], bool) {
	f, ok := r.factories[name]
	if !ok {
		return nil, false
	}
	return f(), true
}
