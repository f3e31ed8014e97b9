// Package ledger provides an append-only audit archive over a paged,
// growable byte store.
//
// The archive accepts opaque, pre-encoded entries from a single
// authorized writer, persists them durably, and exposes two read paths:
// a global tail scan and a per-user filtered scan with resumable
// cursors. Entries are never mutated, relocated, or deleted.
//
// Storage is organised as a flat region of fixed-size pages carved into
// logical sub-regions: one for configuration, two backing the entry
// log, and one backing the per-user ordered index.
package ledger

import "errors"

// Sentinel errors returned by archive operations.
var (
	// ErrUnauthorized is returned when a caller other than the
	// configured writer attempts to append an entry.
	ErrUnauthorized = errors.New("caller is not the authorized writer")

	// ErrStorageExhausted is returned when growth would exceed the
	// page ceiling of the underlying store.
	ErrStorageExhausted = errors.New("storage exhausted")

	// ErrMalformedCursor is returned when a continuation token does
	// not parse as a valid index key.
	ErrMalformedCursor = errors.New("malformed cursor")

	// ErrInvariantViolation is returned when the user index references
	// a log entry that does not exist. This indicates corruption and
	// aborts the call.
	ErrInvariantViolation = errors.New("index references missing log entry")

	// ErrOutOfBounds is returned when a read or write falls outside
	// the current size of a store or region.
	ErrOutOfBounds = errors.New("access beyond region bounds")

	// ErrCorruptHeader is returned when a persisted header (allocator,
	// log, or index) cannot be parsed.
	ErrCorruptHeader = errors.New("corrupt header")

	// ErrIndexWidth is returned when the persisted index was written
	// with different key or value widths. Changing either requires a
	// migration; the archive refuses to open the region as-is.
	ErrIndexWidth = errors.New("index key/value width mismatch")

	// ErrValueTooLarge is returned when a config record does not fit
	// the single page reserved for the cell.
	ErrValueTooLarge = errors.New("value exceeds cell capacity")

	// ErrNoWriter is returned when opening a fresh archive without an
	// authorized writer to store.
	ErrNoWriter = errors.New("no authorized writer configured")

	// ErrClosed is returned when operating on a closed archive.
	ErrClosed = errors.New("archive is closed")

	// ErrDecompress is returned when a snapshot cannot be decoded.
	ErrDecompress = errors.New("decompression failed")
)
