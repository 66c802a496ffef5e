// Package chans implements typed, in-process CSP-style communication
// channels: unbuffered rendezvous, single-slot and fixed-capacity N-slot
// buffering, sticky/idempotent close, and a multi-way Select that commits
// to exactly one ready operation.
//
// The synchronization protocols are built from two small supporting
// primitives: SyncCell, a single-use two-phase semaphore whose Ready ->
// Pointer state transition is the atomic commit point used by Select, and
// a pair of free-lists (for SyncCells, and for the waiter-queue nodes
// every channel kind parks through) that keep the hot send/recv paths
// allocation-light.
package chans
