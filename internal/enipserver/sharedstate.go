package enipserver

import (
	"sync"
	"time"

	"github.com/doover-run/enip-plc-bridge/internal/registry"
	"github.com/doover-run/enip-plc-bridge/internal/tagvalue"
)

// ReadOp records a single attribute read captured at the worker's hook.
type ReadOp struct {
	TagName   string
	Timestamp time.Time
}

// WriteOp records a single attribute write captured at the worker's hook.
type WriteOp struct {
	TagName   string
	Value     tagvalue.Value
	Timestamp time.Time
}

// sharedState is the worker <-> supervisor shared memory analogue: a tag
// table the worker reads from and writes into, plus append-only read/write
// queues and a level-triggered write-received signal. It is single-
// producer (worker) / single-consumer (supervisor) for the queues.
type sharedState struct {
	mu   sync.Mutex
	tags map[string]registry.Descriptor

	readOps  []ReadOp
	writeOps []WriteOp

	writeReceived chan struct{} // closed once a write lands; replaced on drain
	alive         bool
}

func newSharedState(descs map[string]registry.Descriptor) *sharedState {
	tags := make(map[string]registry.Descriptor, len(descs))
	for k, v := range descs {
		tags[k] = v
	}
	return &sharedState{
		tags:          tags,
		writeReceived: make(chan struct{}),
		alive:         true,
	}
}

// valid mirrors the source's _is_shared_memory_valid length-query check:
// before each sync, confirm the bundle is still alive.
func (s *sharedState) valid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alive
}

func (s *sharedState) invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alive = false
}

// get implements the worker-side read hook: records a ReadOp, returns the
// tag's current value.
func (s *sharedState) get(name string) (tagvalue.Value, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.tags[name]
	if !ok {
		return tagvalue.Value{}, false
	}
	s.readOps = append(s.readOps, ReadOp{TagName: name, Timestamp: time.Now()})
	return d.CurrentValue, true
}

// set implements the worker-side write hook: if the new scalar differs
// from the current value (exact equality, no epsilon), updates the tag,
// records a WriteOp, and raises the write-received signal.
func (s *sharedState) set(name string, value tagvalue.Value) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.tags[name]
	if !ok {
		return false
	}
	if tagvalue.Equal(d.CurrentValue, value) {
		return true
	}

	d.CurrentValue = value
	s.tags[name] = d
	s.writeOps = append(s.writeOps, WriteOp{TagName: name, Value: value, Timestamp: time.Now()})
	s.raiseWriteReceived()
	return true
}

func (s *sharedState) raiseWriteReceived() {
	select {
	case <-s.writeReceived:
		// already raised
	default:
		close(s.writeReceived)
	}
}

// writeTags is the supervisor-side direct update path used when the cloud
// side pushes values into the registry; it does not go through the
// worker's attribute hooks and so never enqueues a WriteOp.
func (s *sharedState) writeTags(values map[string]tagvalue.Value) (unknown []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for name, v := range values {
		d, ok := s.tags[name]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		d.CurrentValue = v
		s.tags[name] = d
	}
	return unknown
}

func (s *sharedState) popReads() []ReadOp {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.readOps
	s.readOps = nil
	return out
}

func (s *sharedState) popWrites() []WriteOp {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.writeOps
	s.writeOps = nil
	s.writeReceived = make(chan struct{})
	return out
}

func (s *sharedState) awaitChan() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeReceived
}
