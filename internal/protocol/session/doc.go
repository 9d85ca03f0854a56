// Package session owns client<->slotd session transport helpers.
//
// Ownership boundary:
// - request/result wire helpers over frame+tlv
// - connection timeouts and retry backoff
// - transport security policy and tls.Config builders
package session
