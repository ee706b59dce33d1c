package layout

import (
	"slices"

	"github.com/matzehuels/astrolabe/pkg/core/geom"
)

// Handle addresses a slot in a [Store]. A handle stays valid until its node
// is removed; a later node reusing the slot gets a new generation, so stale
// handles are detected instead of silently reading another node.
type Handle struct {
	Index int
	Gen   uint32
}

type slot struct {
	id   string
	gen  uint32
	live bool
	pos  geom.Vec3
	vel  geom.Vec3
}

// Store is a dense arena of node positions and velocities.
//
// Removed slots go onto a free list and are reused by the next insert.
// Len never exceeds the number of inserted-and-not-removed IDs.
type Store struct {
	slots []slot
	free  []int
	byID  map[string]Handle
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{byID: make(map[string]Handle)}
}

// Insert adds id at pos. If id is already present its position is updated
// and the existing handle returned.
func (s *Store) Insert(id string, pos geom.Vec3) Handle {
	if h, ok := s.byID[id]; ok {
		s.slots[h.Index].pos = pos
		return h
	}
	var idx int
	if n := len(s.free); n > 0 {
		idx = s.free[n-1]
		s.free = s.free[:n-1]
	} else {
		idx = len(s.slots)
		s.slots = append(s.slots, slot{})
	}
	sl := &s.slots[idx]
	sl.gen++
	sl.id, sl.live, sl.pos, sl.vel = id, true, pos, geom.Vec3{}
	h := Handle{Index: idx, Gen: sl.gen}
	s.byID[id] = h
	return h
}

// Remove deletes id and frees its slot. Returns false if id was absent.
func (s *Store) Remove(id string) bool {
	h, ok := s.byID[id]
	if !ok {
		return false
	}
	delete(s.byID, id)
	s.slots[h.Index] = slot{gen: s.slots[h.Index].gen}
	s.free = append(s.free, h.Index)
	return true
}

// Handle returns the handle for id.
func (s *Store) Handle(id string) (Handle, bool) {
	h, ok := s.byID[id]
	return h, ok
}

// Valid reports whether h still refers to a live slot.
func (s *Store) Valid(h Handle) bool {
	return h.Index >= 0 && h.Index < len(s.slots) && s.slots[h.Index].live && s.slots[h.Index].gen == h.Gen
}

// Position returns the position behind h.
func (s *Store) Position(h Handle) (geom.Vec3, bool) {
	if !s.Valid(h) {
		return geom.Vec3{}, false
	}
	return s.slots[h.Index].pos, true
}

// SetPosition moves the node behind h and clears its velocity.
func (s *Store) SetPosition(h Handle, p geom.Vec3) bool {
	if !s.Valid(h) {
		return false
	}
	s.slots[h.Index].pos = p
	s.slots[h.Index].vel = geom.Vec3{}
	return true
}

// Lookup returns the position of id.
func (s *Store) Lookup(id string) (geom.Vec3, bool) {
	h, ok := s.byID[id]
	if !ok {
		return geom.Vec3{}, false
	}
	return s.slots[h.Index].pos, true
}

// Len returns the number of live nodes.
func (s *Store) Len() int { return len(s.byID) }

// IDs returns live node IDs in slot order.
func (s *Store) IDs() []string {
	ids := make([]string, 0, len(s.byID))
	for i := range s.slots {
		if s.slots[i].live {
			ids = append(ids, s.slots[i].id)
		}
	}
	return ids
}

// Positions returns a snapshot of all live positions.
func (s *Store) Positions() map[string]geom.Vec3 {
	out := make(map[string]geom.Vec3, len(s.byID))
	for i := range s.slots {
		if s.slots[i].live {
			out[s.slots[i].id] = s.slots[i].pos
		}
	}
	return out
}

// Clone returns an independent copy. Handles valid in s are valid in the
// clone.
func (s *Store) Clone() *Store {
	c := &Store{
		slots: slices.Clone(s.slots),
		free:  slices.Clone(s.free),
		byID:  make(map[string]Handle, len(s.byID)),
	}
	for id, h := range s.byID {
		c.byID[id] = h
	}
	return c
}
