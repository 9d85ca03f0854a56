package slot

import "fmt"

// Mode is the access mode a handle was opened with.
type Mode uint8

const (
	ModeRead Mode = iota
	ModeWrite
	ModeReadWrite
)

func (m Mode) String() string {
	switch m {
	case ModeRead:
		return "rdonly"
	case ModeWrite:
		return "wronly"
	case ModeReadWrite:
		return "rdwr"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// Valid reports whether m is a known access mode.
func (m Mode) Valid() bool {
	return m <= ModeReadWrite
}

func (m Mode) canRead() bool  { return m == ModeRead || m == ModeReadWrite }
func (m Mode) canWrite() bool { return m == ModeWrite || m == ModeReadWrite }

// Handle is the per-open state: the owning slot and the selected channel.
// A Handle is owned by one caller and is not safe for concurrent use.
type Handle struct {
	slot     *Slot
	mode     Mode
	channel  ChannelID
	selected bool
	closed   bool
}

// Slot returns the slot the handle was opened on.
func (h *Handle) Slot() *Slot {
	return h.slot
}

func (h *Handle) Mode() Mode {
	return h.mode
}

// Channel returns the selected channel, if any.
func (h *Handle) Channel() (ChannelID, bool) {
	return h.channel, h.selected
}

// SelectChannel binds the handle to ch. Re-selecting replaces the binding
// and never affects other handles.
func (h *Handle) SelectChannel(ch ChannelID) error {
	if h.closed {
		return ErrHandleClosed
	}
	h.channel = ch
	h.selected = true
	return nil
}

// Write stores all of p as the selected channel's message and returns len(p).
func (h *Handle) Write(p []byte) (int, error) {
	if err := h.ready(h.mode.canWrite()); err != nil {
		return 0, err
	}
	if err := h.slot.store.Put(h.channel, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Read copies the selected channel's message into p. Nothing is copied when
// p is shorter than the message. The message stays stored after a read.
func (h *Handle) Read(p []byte) (int, error) {
	if err := h.ready(h.mode.canRead()); err != nil {
		return 0, err
	}
	return h.slot.store.readInto(h.channel, p)
}

// Close discards the handle state. Stored messages are untouched.
func (h *Handle) Close() error {
	if h.closed {
		return ErrHandleClosed
	}
	h.closed = true
	h.selected = false
	return nil
}

// ready checks handle state in the order the host reports it: a closed or
// wrong-mode handle fails before channel selection is considered.
func (h *Handle) ready(permitted bool) error {
	if h.closed {
		return ErrHandleClosed
	}
	if !permitted {
		return ErrBadDescriptor
	}
	if !h.selected {
		return ErrChannelNotSelected
	}
	return nil
}
