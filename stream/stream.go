// Package stream implements the Stream<T> façade: the one type the
// emulator actually talks to. A Stream binds a StreamImpl back-end
// (single-thread, multi-thread, or multi-process), instantiates the
// configured simulators through a Registry, and fans per-core
// references into the transport through a small per-core local
// buffer so the hot path allocates nothing and takes no lock until a
// buffer actually needs to flush.
package stream

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/snippits/govpmu/config"
	"github.com/snippits/govpmu/internal/transport"
	"github.com/snippits/govpmu/simulator"
	"github.com/snippits/govpmu/vpmu"
	"github.com/snippits/govpmu/vpmuerr"
)

// localBufferCap is each per-core buffer's capacity; spec's
// "no dynamic allocation on the hot path" applies here as much as it
// does to transport's own drain-loop buffer.
const localBufferCap = 256

// localBuffer accumulates one core's outgoing references before a
// batched flush into the transport. A core only ever touches its own
// buffer, so append needs no lock; only the flush (which crosses into
// shared transport state) does.
type localBuffer[T vpmu.Payload] struct {
	refs [localBufferCap]vpmu.Reference[T]
	n    int
}

func (b *localBuffer[T]) push(ref vpmu.Reference[T]) bool {
	b.refs[b.n] = ref
	b.n++
	return b.n == localBufferCap
}

func (b *localBuffer[T]) drain() []vpmu.Reference[T] {
	out := append([]vpmu.Reference[T](nil), b.refs[:b.n]...)
	b.n = 0
	return out
}

// Stream is the generic façade bound to exactly one payload type T,
// one transport.Impl[T] back-end, and one per-core set of local
// buffers.
type Stream[T vpmu.Payload] struct {
	impl transport.Impl[T]

	flushMu sync.Mutex
	locals  []*localBuffer[T]

	bootSyncTimeout time.Duration
	render          func(id int, data simulator.Data) string
	log             logrus.FieldLogger
}

// New constructs a Stream bound to the given back-end, with numCores
// per-core local buffers preallocated. log defaults to the standard
// logger when nil.
func New[T vpmu.Payload](backend transport.Backend, numCores int, run config.RunConfig, producerAlive transport.LivenessFunc, log logrus.FieldLogger) *Stream[T] {
	if log == nil {
		log = logrus.StandardLogger()
	}
	locals := make([]*localBuffer[T], numCores)
	for i := range locals {
		locals[i] = &localBuffer[T]{}
	}
	return &Stream[T]{
		impl:            newImpl[T](backend, run, producerAlive),
		locals:          locals,
		bootSyncTimeout: run.BootSyncTimeout(),
		log:             log,
	}
}

func newImpl[T vpmu.Payload](backend transport.Backend, run config.RunConfig, producerAlive transport.LivenessFunc) transport.Impl[T] {
	switch backend {
	case transport.SingleThread:
		return &transport.Single[T]{}
	case transport.MultiThread:
		return &transport.Multi[T]{}
	default:
		return transport.NewMultiProcess[T](run.HeartbeatInterval(), run.ReapTimeout(), producerAlive)
	}
}

// BackendFromName maps a StreamConfig.Backend string onto a
// transport.Backend, defaulting to MultiProcess for an empty or
// unrecognized value (spec's default back-end).
func BackendFromName(name string) transport.Backend {
	switch name {
	case "single", "singlethread", "single-thread":
		return transport.SingleThread
	case "multithread", "multi-thread":
		return transport.MultiThread
	case "multiprocess", "multi-process", "":
		return transport.MultiProcess
	default:
		return transport.MultiProcess
	}
}

// Build instantiates one Simulator[T] per cfg.Simulators (or, if
// cfg.DescriptorFile is set, per parsed SimDescriptor) through
// registry, and hands the resulting (Simulator, Model) pairs to the
// bound transport.Impl. It returns a ConfigError if a named simulator
// is not registered.
func (s *Stream[T]) Build(cfg config.StreamConfig, registry *simulator.Registry[T], frequencyMHz float64) error {
	models, err := s.resolveModels(cfg, frequencyMHz)
	if err != nil {
		return err
	}
	sims := make([]simulator.Simulator[T], len(models))
	for i, m := range models {
		sim, ok := registry.Create(m.Name)
		if !ok {
			return vpmuerr.Config(fmt.Sprintf("stream.simulators[%d]", i), fmt.Errorf("unregistered simulator %q", m.Name))
		}
		sims[i] = sim
	}
	if err := s.impl.Build(sims, models); err != nil {
		return vpmuerr.Resource("build stream transport", err)
	}
	if err := s.impl.Run(s.bootSyncTimeout); err != nil {
		return vpmuerr.Liveness("stream workers did not reach boot sync: " + err.Error())
	}
	return nil
}

func (s *Stream[T]) resolveModels(cfg config.StreamConfig, frequencyMHz float64) ([]vpmu.Model, error) {
	if cfg.DescriptorFile != "" {
		descs, err := config.LoadSimDescriptorsFile(cfg.DescriptorFile)
		if err != nil {
			return nil, err
		}
		models := make([]vpmu.Model, len(descs))
		for i, d := range descs {
			models[i] = d.ToModel(frequencyMHz)
		}
		return models, nil
	}
	if len(cfg.Simulators) == 0 {
		return nil, vpmuerr.Config("stream.simulators", fmt.Errorf("no simulators configured"))
	}
	models := make([]vpmu.Model, len(cfg.Simulators))
	for i, name := range cfg.Simulators {
		models[i] = vpmu.Model{Name: name, FrequencyMHz: frequencyMHz}
	}
	return models, nil
}

// SendRef appends ref to core's local buffer, flushing it into the
// transport once it fills. The append itself takes no lock; flush
// does, since every core's buffer ultimately feeds the same
// single-producer transport.
func (s *Stream[T]) SendRef(core int, ref vpmu.Reference[T]) {
	buf := s.locals[core]
	if buf.push(ref) {
		s.flush(buf)
	}
}

func (s *Stream[T]) flush(buf *localBuffer[T]) {
	batch := buf.drain()
	if len(batch) == 0 {
		return
	}
	s.flushMu.Lock()
	defer s.flushMu.Unlock()
	s.impl.SendBulk(batch)
}

// FlushAll drains and sends every core's pending local buffer,
// without waiting for any of them to fill naturally; callers use this
// before Sync/Dump/Reset so no buffered reference is left stranded.
func (s *Stream[T]) FlushAll() {
	for _, buf := range s.locals {
		if buf.n > 0 {
			s.flush(buf)
		}
	}
}

// Sync flushes every pending local buffer, then runs the transport's
// barrier/sync-data protocol, returning each worker's snapshot at id.
func (s *Stream[T]) Sync(id uint64) []simulator.Data {
	s.FlushAll()
	return s.impl.Sync(id)
}

// Dump flushes every pending local buffer, then runs the
// strictly-ordered per-worker dump protocol, rendering each worker's
// data with render.
func (s *Stream[T]) Dump(render func(id int, data simulator.Data) string) []string {
	s.FlushAll()
	return s.impl.Dump(render)
}

// Reset flushes every pending local buffer, then resets every
// worker's counters.
func (s *Stream[T]) Reset() {
	s.FlushAll()
	s.impl.Reset()
}

// NumWorkers reports the configured worker count.
func (s *Stream[T]) NumWorkers() int { return s.impl.NumWorkers() }

// Destroy flushes any remaining buffered references and tears down
// the transport.
func (s *Stream[T]) Destroy() {
	s.FlushAll()
	s.impl.Destroy()
	s.log.Debug("stream destroyed")
}
