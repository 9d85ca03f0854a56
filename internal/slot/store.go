package slot

import (
	"sort"
	"sync"
)

// DefaultMaxMessageLen is the largest message a channel accepts unless overridden.
const DefaultMaxMessageLen = 128

// ChannelID is a non-negative channel key scoped to one slot.
type ChannelID uint64

// Options bounds message and channel storage for every slot in a registry.
type Options struct {
	MaxMessageLen int
	// MaxChannels caps channel entries per slot; 0 means unlimited.
	MaxChannels int
}

// DefaultOptions returns the stock 128-byte message bound with no channel cap.
func DefaultOptions() Options {
	return Options{MaxMessageLen: DefaultMaxMessageLen}
}

func (o Options) withDefaults() Options {
	if o.MaxMessageLen <= 0 {
		o.MaxMessageLen = DefaultMaxMessageLen
	}
	if o.MaxChannels < 0 {
		o.MaxChannels = 0
	}
	return o
}

// Store holds the channel->message mapping for one slot.
type Store struct {
	mu       sync.RWMutex
	channels map[ChannelID][]byte
	opts     Options
}

// NewStore constructs an empty store.
func NewStore(opts Options) *Store {
	return &Store{
		channels: make(map[ChannelID][]byte),
		opts:     opts.withDefaults(),
	}
}

// MaxMessageLen reports the write bound enforced by Put.
func (s *Store) MaxMessageLen() int {
	return s.opts.MaxMessageLen
}

// Get returns a copy of the current message on ch.
func (s *Store) Get(ch ChannelID) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := s.channels[ch]
	if !ok {
		return nil, false
	}
	out := make([]byte, len(msg))
	copy(out, msg)
	return out, true
}

// Len returns the length of the message on ch, or false when ch was never written.
func (s *Store) Len(ch ChannelID) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := s.channels[ch]
	return len(msg), ok
}

// Put replaces the message on ch, creating the channel on first write.
// A rejected put leaves the channel untouched.
func (s *Store) Put(ch ChannelID, msg []byte) error {
	if len(msg) == 0 || len(msg) > s.opts.MaxMessageLen {
		return ErrMessageTooLong
	}
	buf := make([]byte, len(msg))
	copy(buf, msg)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.channels[ch]; !ok && s.opts.MaxChannels > 0 && len(s.channels) >= s.opts.MaxChannels {
		return ErrNoMemory
	}
	s.channels[ch] = buf
	return nil
}

// readInto copies the message on ch into p under one read lock so the length
// check and the copy observe the same message.
func (s *Store) readInto(ch ChannelID, p []byte) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := s.channels[ch]
	if !ok {
		return 0, ErrNoMessage
	}
	if len(p) < len(msg) {
		return 0, ErrBufferTooSmall
	}
	return copy(p, msg), nil
}

// Channels returns the written channel ids in ascending order.
func (s *Store) Channels() []ChannelID {
	s.mu.RLock()
	ids := make([]ChannelID, 0, len(s.channels))
	for id := range s.channels {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// StoreStats summarizes store occupancy.
type StoreStats struct {
	Channels int
	Bytes    int
}

func (s *Store) Stats() StoreStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := StoreStats{Channels: len(s.channels)}
	for _, msg := range s.channels {
		st.Bytes += len(msg)
	}
	return st
}

func (s *Store) clear() {
	s.mu.Lock()
	s.channels = make(map[ChannelID][]byte)
	s.mu.Unlock()
}
