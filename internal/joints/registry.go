// Package joints holds the ordered joint collection shared between the
// resync path, the per-frame updater and the host.
//
// The collection is published as immutable snapshots: a replacement builds a
// new slice of joints and swaps it in atomically, so a reader that loaded a
// snapshot keeps a stable length and per-index identity for as long as it
// holds it. Pose data inside each joint is updated in place.
package joints

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Snapshot is one published generation of the joint list. The slice is
// never modified after publication.
type Snapshot struct {
	ID         string
	Generation uint64
	joints     []*Joint
}

// Len returns the number of joints.
func (s *Snapshot) Len() int { return len(s.joints) }

// At returns the joint at index i.
func (s *Snapshot) At(i int) *Joint { return s.joints[i] }

// Names returns the joint names in order.
func (s *Snapshot) Names() []string {
	names := make([]string, len(s.joints))
	for i, j := range s.joints {
		names[i] = j.Name
	}
	return names
}

// ForEachIndexed calls fn for each joint in insertion order until fn
// returns false.
func (s *Snapshot) ForEachIndexed(fn func(i int, j *Joint) bool) {
	for i, j := range s.joints {
		if !fn(i, j) {
			return
		}
	}
}

// Views returns the serialisable form of every joint.
func (s *Snapshot) Views() []View {
	views := make([]View, len(s.joints))
	for i, j := range s.joints {
		views[i] = j.View()
	}
	return views
}

// Sentinel reports whether the snapshot only holds the INVALID placeholder.
func (s *Snapshot) Sentinel() bool {
	return len(s.joints) == 1 && s.joints[0].Name == InvalidName
}

// Registry is the host-visible joint collection. It is never empty.
type Registry struct {
	writeMu    sync.Mutex
	generation uint64
	current    atomic.Pointer[Snapshot]
}

// New returns a registry holding only the sentinel joint.
func New() *Registry {
	r := &Registry{}
	r.ReplaceAll(nil)
	return r
}

// ReplaceAll publishes a new joint list with one fresh joint per name, in
// order. An empty or nil list installs the INVALID sentinel instead.
// Concurrent callers are serialised; readers are never blocked.
func (r *Registry) ReplaceAll(names []string) *Snapshot {
	var list []*Joint
	if len(names) == 0 {
		list = []*Joint{newJoint(InvalidName)}
	} else {
		list = make([]*Joint, len(names))
		for i, name := range names {
			list[i] = newJoint(name)
		}
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	r.generation++
	snap := &Snapshot{
		ID:         uuid.NewString(),
		Generation: r.generation,
		joints:     list,
	}
	r.current.Store(snap)
	return snap
}

// Snapshot returns the currently published joint list.
func (r *Registry) Snapshot() *Snapshot {
	return r.current.Load()
}

// Len returns the length of the current snapshot.
func (r *Registry) Len() int {
	return r.current.Load().Len()
}

// Names returns the joint names of the current snapshot.
func (r *Registry) Names() []string {
	return r.current.Load().Names()
}

// ForEachIndexed traverses the current snapshot. Replacements published
// during the traversal are not observed.
func (r *Registry) ForEachIndexed(fn func(i int, j *Joint) bool) {
	r.current.Load().ForEachIndexed(fn)
}
