package slot

import (
	"errors"

	"golang.org/x/sys/unix"
)

var (
	ErrChannelNotSelected = errors.New("slot: channel not selected")
	ErrMessageTooLong     = errors.New("slot: message length out of range")
	ErrNoMessage          = errors.New("slot: no message on channel")
	ErrBufferTooSmall     = errors.New("slot: buffer too small for message")
	ErrNoSuchSlot         = errors.New("slot: no such slot")
	ErrSlotExists         = errors.New("slot: slot already registered")
	ErrBadDescriptor      = errors.New("slot: handle not opened for this operation")
	ErrHandleClosed       = errors.New("slot: handle closed")
	ErrNoMemory           = errors.New("slot: channel limit reached")
)

// errnoTable is ordered; the first sentinel matched by errors.Is wins.
var errnoTable = []struct {
	err   error
	errno unix.Errno
}{
	{ErrChannelNotSelected, unix.EINVAL},
	{ErrMessageTooLong, unix.EMSGSIZE},
	{ErrNoMessage, unix.EAGAIN},
	{ErrBufferTooSmall, unix.ENOSPC},
	{ErrNoSuchSlot, unix.ENODEV},
	{ErrSlotExists, unix.EEXIST},
	{ErrBadDescriptor, unix.EBADF},
	{ErrHandleClosed, unix.EBADF},
	{ErrNoMemory, unix.ENOMEM},
}

// Errno maps a slot error to the signal reported to callers.
// Unknown errors map to EIO; nil maps to 0.
func Errno(err error) unix.Errno {
	if err == nil {
		return 0
	}
	var errno unix.Errno
	if errors.As(err, &errno) {
		return errno
	}
	for _, e := range errnoTable {
		if errors.Is(err, e.err) {
			return e.errno
		}
	}
	return unix.EIO
}

// FromErrno returns the sentinel for errno, or nil when none is defined.
// EBADF resolves to ErrBadDescriptor.
func FromErrno(errno unix.Errno) error {
	for _, e := range errnoTable {
		if e.errno == errno {
			return e.err
		}
	}
	return nil
}
