// Package enipserver implements the ENIP server supervisor: an isolation
// domain (goroutine + channel, not a literal subprocess) that exposes the
// registry's tags over ENIP/CIP and restarts itself whenever the registry's
// shape changes.
package enipserver

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/doover-run/enip-plc-bridge/internal/bridgeerrors"
	"github.com/doover-run/enip-plc-bridge/internal/logging"
	"github.com/doover-run/enip-plc-bridge/internal/registry"
	"github.com/doover-run/enip-plc-bridge/internal/tagvalue"
)

// Supervisor owns the worker's lifecycle: starting it, restarting it on a
// shape change, and forwarding reads/writes between it and the registry.
type Supervisor struct {
	mu     sync.Mutex
	port   int
	logger *logging.Logger

	state    *sharedState
	worker   *worker
	prevDesc map[string]registry.Descriptor
	running  bool
}

// NewSupervisor creates a supervisor bound to the given TCP port. It does
// not start a worker until Start is called.
func NewSupervisor(port int, logger *logging.Logger) *Supervisor {
	return &Supervisor{port: port, logger: logger}
}

// Start launches the first worker generation against descs.
func (s *Supervisor) Start(descs map[string]registry.Descriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("enipserver: already started")
	}
	if err := s.launch(descs); err != nil {
		return err
	}
	s.running = true
	return nil
}

// launch must be called with s.mu held.
func (s *Supervisor) launch(descs map[string]registry.Descriptor) error {
	state := newSharedState(descs)
	w := newWorker(s.port, state, s.logger)
	if err := w.start(); err != nil {
		return fmt.Errorf("enipserver: start worker: %w", err)
	}
	<-w.ready

	s.state = state
	s.worker = w
	s.prevDesc = copyDescs(descs)
	return nil
}

// SetTags updates the worker's tag table from a fresh registry snapshot. If
// the snapshot's shape (keyset or any ENIP type) differs from the shape the
// running worker was started with, or the running worker's shared state has
// failed its validity check, the worker is restarted against the snapshot;
// otherwise values are merged into the running worker in place.
func (s *Supervisor) SetTags(descs map[string]registry.Descriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return fmt.Errorf("enipserver: not started")
	}

	if registry.DiffShape(s.prevDesc, descs) || !s.state.valid() {
		if s.logger != nil {
			s.logger.Info("enipserver: tag shape changed or worker state invalid, restarting worker")
		}
		old := s.worker
		old.stop()
		if err := s.launch(descs); err != nil {
			return err
		}
		return nil
	}

	values := make(map[string]tagvalue.Value, len(descs))
	for name, d := range descs {
		values[name] = d.CurrentValue
	}
	s.state.writeTags(values)
	s.prevDesc = copyDescs(descs)
	return nil
}

// WriteTags pushes cloud-originated values into the running worker's shared
// tag table directly, bypassing the CIP read/write hooks. Unknown tag names
// are reported but do not abort the rest of the batch.
func (s *Supervisor) WriteTags(values map[string]tagvalue.Value) []error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return []error{fmt.Errorf("enipserver: not started")}
	}

	unknown := s.state.writeTags(values)
	if len(unknown) == 0 {
		return nil
	}
	errs := make([]error, 0, len(unknown))
	for _, name := range unknown {
		errs = append(errs, bridgeerrors.NewUnknownTagError(name))
	}
	return errs
}

// PopReads drains and returns the reads the worker has serviced since the
// last call.
func (s *Supervisor) PopReads() []ReadOp {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	if state == nil {
		return nil
	}
	return state.popReads()
}

// PopWrites drains and returns the writes the worker has serviced since the
// last call.
func (s *Supervisor) PopWrites() []WriteOp {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	if state == nil {
		return nil
	}
	return state.popWrites()
}

// AwaitWrite blocks until a write lands on the worker (returning true) or
// until timeout elapses (returning false).
func (s *Supervisor) AwaitWrite(timeout time.Duration) bool {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	if state == nil {
		return false
	}
	select {
	case <-state.awaitChan():
		return true
	case <-time.After(timeout):
		return false
	}
}

// CheckHealth reports whether the running worker's shared state is still
// valid. A non-nil result means the worker has crashed and a restart is
// warranted; the caller (typically the top-level bridge loop) should call
// SetTags with a fresh snapshot to relaunch it.
func (s *Supervisor) CheckHealth() error {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	if state == nil {
		return nil
	}
	if !state.valid() {
		return bridgeerrors.NewServerWorkerCrashError(nil)
	}
	return nil
}

// Addr returns the running worker's bound listener address, or nil if the
// supervisor has not been started. Mainly useful in tests that start on
// port 0 and need the OS-assigned port.
func (s *Supervisor) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.worker == nil || s.worker.listener == nil {
		return nil
	}
	return s.worker.listener.Addr()
}

// Stop shuts the running worker down.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.worker.stop()
	s.running = false
}

func copyDescs(in map[string]registry.Descriptor) map[string]registry.Descriptor {
	out := make(map[string]registry.Descriptor, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
