package slot

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

// SlotID identifies one slot, the equivalent of a device minor number.
type SlotID uint32

// Slot is one independent device instance and owns exactly one Store.
type Slot struct {
	ID    SlotID
	store *Store
}

// Store exposes the slot's channel store.
func (s *Slot) Store() *Store {
	return s.store
}

// Open returns a new handle on the slot with no channel selected.
func (s *Slot) Open(mode Mode) *Handle {
	return &Handle{slot: s, mode: mode}
}

// SlotStats is the externally visible occupancy of one slot.
type SlotStats struct {
	ID       SlotID `json:"id"`
	Channels int    `json:"channels"`
	Bytes    int    `json:"bytes"`
}

func (s *Slot) Stats() SlotStats {
	st := s.store.Stats()
	return SlotStats{ID: s.ID, Channels: st.Channels, Bytes: st.Bytes}
}

// Registry stores live slots by id.
type Registry struct {
	mu    sync.RWMutex
	items map[SlotID]*Slot
	opts  Options
}

// NewRegistry creates an empty slot registry whose slots share opts.
func NewRegistry(opts Options) *Registry {
	return &Registry{
		items: make(map[SlotID]*Slot),
		opts:  opts.withDefaults(),
	}
}

// Options reports the normalized storage bounds.
func (r *Registry) Options() Options {
	return r.opts
}

// Register creates an empty slot for id. Registering a live id fails
// rather than replacing its store.
func (r *Registry) Register(id SlotID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; ok {
		return fmt.Errorf("%w: %d", ErrSlotExists, id)
	}
	r.items[id] = &Slot{ID: id, store: NewStore(r.opts)}
	log.Debug().Uint32("slot", uint32(id)).Msg("slot.Registry registered")
	return nil
}

// Lookup returns the slot registered under id.
func (r *Registry) Lookup(id SlotID) (*Slot, error) {
	r.mu.RLock()
	s, ok := r.items[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNoSuchSlot, id)
	}
	return s, nil
}

// Open looks up id and returns a fresh handle on it.
func (r *Registry) Open(id SlotID, mode Mode) (*Handle, error) {
	s, err := r.Lookup(id)
	if err != nil {
		return nil, err
	}
	return s.Open(mode), nil
}

// IDs returns registered slot ids in ascending order.
func (r *Registry) IDs() []SlotID {
	r.mu.RLock()
	ids := make([]SlotID, 0, len(r.items))
	for id := range r.items {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Stats returns occupancy for every slot ordered by id.
func (r *Registry) Stats() []SlotStats {
	ids := r.IDs()
	out := make([]SlotStats, 0, len(ids))
	for _, id := range ids {
		s, err := r.Lookup(id)
		if err != nil {
			continue
		}
		out = append(out, s.Stats())
	}
	return out
}

// TeardownAll frees every slot and its channels. The caller guarantees no
// handle is still open.
func (r *Registry) TeardownAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.items {
		s.store.clear()
		delete(r.items, id)
	}
	log.Debug().Msg("slot.Registry teardown complete")
}
