// Package client opens slot handles on a running slotd. A File mirrors the
// open/ioctl/write/read/close lifecycle of a message slot device node, and
// failures carry the same errno a device would report.
package client
