// Package server hosts slotd: a framed TCP/TLS endpoint where each accepted
// connection is one slot handle, plus an optional gin admin API exposing
// health, readiness, prometheus metrics, and slot occupancy.
package server
