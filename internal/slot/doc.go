// Package slot owns the message slot store and per-handle access state.
//
// Ownership boundary:
// - slot registry lifecycle (register, lookup, teardown)
// - per-slot channel->message store
// - handle channel selection and read/write dispatch
// - errno taxonomy for caller-facing failures
package slot
