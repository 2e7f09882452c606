// Package registry implements the TagRegistry: the authoritative in-process
// map of flat tag name to TagDescriptor, with shape-change detection that
// drives the ENIP server supervisor's restart decision.
package registry

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/doover-run/enip-plc-bridge/internal/tagvalue"
)

// Descriptor is a stable, named tag with its inferred ENIP type and its
// current and default values. Two descriptors are shape-equal iff Name and
// EnipType match; value drift alone is never shape-significant.
type Descriptor struct {
	Name         string
	EnipType     string
	CurrentValue tagvalue.Value
	DefaultValue tagvalue.Value
}

// ShapeEqual reports whether a and b have the same name and ENIP type.
func ShapeEqual(a, b Descriptor) bool {
	return a.Name == b.Name && a.EnipType == b.EnipType
}

// CpppoArg renders the descriptor in the source's argv-style tag
// declaration form, "name=TYPE". The ENIP worker in this repository is
// seeded from the descriptor map directly and does not use it.
func (d Descriptor) CpppoArg() string {
	return fmt.Sprintf("%s=%s", d.Name, d.EnipType)
}

// Registry is the single source of truth for what the ENIP server exposes.
// The server's own tag table is an eventually-consistent mirror of it.
type Registry struct {
	mu   sync.RWMutex
	tags map[string]Descriptor
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{tags: make(map[string]Descriptor)}
}

// SetAll replaces the entire keyset with descs built from values, inferring
// each one's ENIP type, but preserves a tag's existing default value when
// name and type both match the tag already present.
//
// Invariant R3: after SetAll, the registry's keyset equals {name(v) : v in
// values}.
func (r *Registry) SetAll(values map[string]tagvalue.Value) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make(map[string]Descriptor, len(values))
	for name, v := range values {
		enipType := tagvalue.Infer(v)
		desc := Descriptor{
			Name:         name,
			EnipType:     enipType,
			CurrentValue: v,
			DefaultValue: tagvalue.Real(0),
		}
		if prev, ok := r.tags[name]; ok && prev.EnipType == enipType {
			desc.DefaultValue = prev.DefaultValue
		}
		next[name] = desc
	}
	r.tags = next
}

// Upsert sets a single tag's value, inferring/updating its ENIP type. It
// may change the tag's shape (a type change), which the caller should
// detect via DiffShape against a snapshot taken before the call.
func (r *Registry) Upsert(name string, v tagvalue.Value) {
	r.mu.Lock()
	defer r.mu.Unlock()

	enipType := tagvalue.Infer(v)
	desc := Descriptor{
		Name:         name,
		EnipType:     enipType,
		CurrentValue: v,
		DefaultValue: tagvalue.Real(0),
	}
	if prev, ok := r.tags[name]; ok && prev.EnipType == enipType {
		desc.DefaultValue = prev.DefaultValue
	}
	if r.tags == nil {
		r.tags = make(map[string]Descriptor)
	}
	r.tags[name] = desc
}

// Get returns the descriptor for name, if present.
func (r *Registry) Get(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.tags[name]
	return d, ok
}

// Snapshot returns a stable, independent copy of the registry's current
// descriptors, safe for the supervisor to hand to a worker.
func (r *Registry) Snapshot() map[string]Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]Descriptor, len(r.tags))
	for k, v := range r.tags {
		out[k] = v
	}
	return out
}

// DiffShape reports whether the registry's current keyset or any tag's
// ENIP type differs from prev. It never examines values — value-only
// updates must never be reported as a shape change.
func DiffShape(prev, cur map[string]Descriptor) bool {
	if len(prev) != len(cur) {
		return true
	}
	for name, p := range prev {
		c, ok := cur[name]
		if !ok {
			return true
		}
		if p.EnipType != c.EnipType {
			return true
		}
	}
	return false
}

// DebugDump writes a human-readable table of the registry's current
// contents to w, sorted by name, mirroring the source's pretty-print
// helper used for operator diagnostics.
func (r *Registry) DebugDump(w io.Writer) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tags))
	for name := range r.tags {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		d := r.tags[name]
		fmt.Fprintf(w, "%-40s %-12s %v\n", d.Name, d.EnipType, tagvalue.Interface(d.CurrentValue))
	}
}
