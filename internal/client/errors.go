package client

import (
	"errors"
	"fmt"

	"github.com/danmuck/msgslot/internal/slot"
	"golang.org/x/sys/unix"
)

var (
	ErrAddressRequired = errors.New("client: slotd address required")
	ErrFileClosed      = errors.New("client: file already closed")
	ErrMessageIDSkew   = errors.New("client: result message id mismatch")
)

// ResultError is a failed Result from slotd. It matches both the slot
// sentinel and the raw errno under errors.Is.
type ResultError struct {
	Op     string
	Errno  unix.Errno
	Detail string
}

func (e *ResultError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Errno.Error())
	}
	return fmt.Sprintf("%s: %s (%s)", e.Op, e.Errno.Error(), e.Detail)
}

func (e *ResultError) Unwrap() []error {
	out := []error{e.Errno}
	if sentinel := slot.FromErrno(e.Errno); sentinel != nil {
		out = append(out, sentinel)
	}
	return out
}

// Errno extracts the errno carried by err, or 0 when err did not come from slotd.
func Errno(err error) unix.Errno {
	var re *ResultError
	if errors.As(err, &re) {
		return re.Errno
	}
	return 0
}
