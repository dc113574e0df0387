// Package index holds the merged catalog and its lookup tables.
package index

import (
	"sort"
	"strings"
	"sync"

	"github.com/kennyg/folio/internal/artifact"
)

// Snapshot is an immutable view of the catalog
type Snapshot struct {
	descriptors  []artifact.Descriptor
	byRepository map[string][]artifact.Descriptor
	byKind       map[artifact.Kind][]artifact.Descriptor
	byIdentity   map[artifact.Identity]artifact.Descriptor
}

func buildSnapshot(ds []artifact.Descriptor) *Snapshot {
	s := &Snapshot{
		descriptors:  make([]artifact.Descriptor, len(ds)),
		byRepository: make(map[string][]artifact.Descriptor),
		byKind:       make(map[artifact.Kind][]artifact.Descriptor),
		byIdentity:   make(map[artifact.Identity]artifact.Descriptor, len(ds)),
	}
	copy(s.descriptors, ds)
	for _, d := range s.descriptors {
		s.byRepository[d.SourceName] = append(s.byRepository[d.SourceName], d)
		s.byKind[d.Kind] = append(s.byKind[d.Kind], d)
		s.byIdentity[d.Identity()] = d
	}
	return s
}

// Len returns the number of descriptors
func (s *Snapshot) Len() int {
	return len(s.descriptors)
}

// All returns a copy of every descriptor
func (s *Snapshot) All() []artifact.Descriptor {
	return clone(s.descriptors)
}

// Repositories returns the source names present, sorted
func (s *Snapshot) Repositories() []string {
	names := make([]string, 0, len(s.byRepository))
	for name := range s.byRepository {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CountByKind returns descriptor counts per kind
func (s *Snapshot) CountByKind() map[artifact.Kind]int {
	counts := make(map[artifact.Kind]int, len(s.byKind))
	for k, ds := range s.byKind {
		counts[k] = len(ds)
	}
	return counts
}

func clone(ds []artifact.Descriptor) []artifact.Descriptor {
	if len(ds) == 0 {
		return []artifact.Descriptor{}
	}
	out := make([]artifact.Descriptor, len(ds))
	copy(out, ds)
	return out
}

// Listener receives the new snapshot after every update
type Listener func(*Snapshot)

// Index swaps whole snapshots under a lock and notifies listeners
type Index struct {
	mu   sync.RWMutex
	snap *Snapshot

	subMu     sync.Mutex
	nextID    int
	listeners map[int]Listener
}

// New creates an empty index
func New() *Index {
	return &Index{
		snap:      buildSnapshot(nil),
		listeners: make(map[int]Listener),
	}
}

// Update replaces the whole catalog
func (x *Index) Update(ds []artifact.Descriptor) {
	next := buildSnapshot(ds)
	x.mu.Lock()
	x.snap = next
	x.mu.Unlock()
	x.notify(next)
}

// ReplaceSource replaces only the named source's descriptors
func (x *Index) ReplaceSource(name string, ds []artifact.Descriptor) {
	x.mu.Lock()
	merged := make([]artifact.Descriptor, 0, len(x.snap.descriptors)+len(ds))
	for _, d := range x.snap.descriptors {
		if d.SourceName != name {
			merged = append(merged, d)
		}
	}
	for _, d := range ds {
		d.SourceName = name
		merged = append(merged, d)
	}
	next := buildSnapshot(merged)
	x.snap = next
	x.mu.Unlock()
	x.notify(next)
}

// Snapshot returns the current snapshot
func (x *Index) Snapshot() *Snapshot {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.snap
}

// All returns every descriptor
func (x *Index) All() []artifact.Descriptor {
	return x.Snapshot().All()
}

// ByRepository returns one source's descriptors
func (x *Index) ByRepository(name string) []artifact.Descriptor {
	return clone(x.Snapshot().byRepository[name])
}

// ByKind returns one kind's descriptors across all sources
func (x *Index) ByKind(kind artifact.Kind) []artifact.Descriptor {
	return clone(x.Snapshot().byKind[kind])
}

// ByRepositoryAndKind returns one source's descriptors of one kind
func (x *Index) ByRepositoryAndKind(name string, kind artifact.Kind) []artifact.Descriptor {
	var out []artifact.Descriptor
	for _, d := range x.Snapshot().byRepository[name] {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return clone(out)
}

// Lookup finds a descriptor by identity
func (x *Index) Lookup(id artifact.Identity) (artifact.Descriptor, bool) {
	d, ok := x.Snapshot().byIdentity[id]
	return d, ok
}

// Search returns descriptors whose name contains query, case-insensitively
func (x *Index) Search(query string) []artifact.Descriptor {
	q := strings.ToLower(strings.TrimSpace(query))
	snap := x.Snapshot()
	if q == "" {
		return snap.All()
	}
	var out []artifact.Descriptor
	for _, d := range snap.descriptors {
		if strings.Contains(strings.ToLower(d.Name), q) {
			out = append(out, d)
		}
	}
	return clone(out)
}

// Subscribe registers a listener and returns its unsubscribe function
func (x *Index) Subscribe(fn Listener) func() {
	x.subMu.Lock()
	id := x.nextID
	x.nextID++
	x.listeners[id] = fn
	x.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			x.subMu.Lock()
			delete(x.listeners, id)
			x.subMu.Unlock()
		})
	}
}

// notify calls listeners outside the snapshot lock
func (x *Index) notify(s *Snapshot) {
	x.subMu.Lock()
	ids := make([]int, 0, len(x.listeners))
	for id := range x.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]Listener, 0, len(ids))
	for _, id := range ids {
		fns = append(fns, x.listeners[id])
	}
	x.subMu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}
