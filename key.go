// Index key codec and the read-cursor protocol.
//
// Every entry is indexed under a fixed-width 24-byte key:
//
//	user u64 LE ∥ timestamp u64 LE ∥ sequence u64 LE
//
// The byte order on disk is little-endian throughout; the semantic
// (user, timestamp, sequence) ordering is carried by Key.Less, which
// decodes fields and compares numerically. Cursors returned to readers
// are the raw 24 bytes of the first unread key, treated as opaque
// tokens across the boundary.
package ledger

import "encoding/binary"

// KeyWidth and ValueWidth are the index layout constants. Both are
// fixed for the lifetime of stored data; changing either requires a
// migration of region 3.
const (
	KeyWidth   = 24
	ValueWidth = 0
)

// Key orders entries by user, then timestamp, then log sequence. The
// sequence makes keys unique even when one user logs twice within the
// same timestamp.
type Key struct {
	User      uint64
	Timestamp uint64
	Sequence  uint64
}

// Less reports whether k sorts before o.
func (k Key) Less(o Key) bool {
	if k.User != o.User {
		return k.User < o.User
	}
	if k.Timestamp != o.Timestamp {
		return k.Timestamp < o.Timestamp
	}
	return k.Sequence < o.Sequence
}

// Bytes encodes the key to its fixed 24-byte wire form.
func (k Key) Bytes() []byte {
	buf := make([]byte, KeyWidth)
	binary.LittleEndian.PutUint64(buf[0:8], k.User)
	binary.LittleEndian.PutUint64(buf[8:16], k.Timestamp)
	binary.LittleEndian.PutUint64(buf[16:24], k.Sequence)
	return buf
}

// parseKey decodes a 24-byte key. Any other length is malformed.
func parseKey(buf []byte) (Key, error) {
	if len(buf) != KeyWidth {
		return Key{}, ErrMalformedCursor
	}
	return Key{
		User:      binary.LittleEndian.Uint64(buf[0:8]),
		Timestamp: binary.LittleEndian.Uint64(buf[8:16]),
		Sequence:  binary.LittleEndian.Uint64(buf[16:24]),
	}, nil
}

// Cursor is a resumable read position for per-user scans. Two variants
// exist: a Timestamp start-hint, which positions the scan at the first
// entry at or after a time, and a Token, the opaque continuation
// handed back by a previous call. A nil Cursor starts from the user's
// first entry.
type Cursor interface {
	// lowerBound resolves the cursor to the first key the scan may
	// yield for user.
	lowerBound(user uint64) (Key, error)
}

// TimestampCursor starts a scan at the given timestamp. It carries no
// sequence disambiguation — it is a start-hint, not a continuation.
type TimestampCursor uint64

func (c TimestampCursor) lowerBound(user uint64) (Key, error) {
	return Key{User: user, Timestamp: uint64(c)}, nil
}

// TokenCursor is the opaque continuation returned by a previous scan:
// the serialised key of the first unread entry.
type TokenCursor []byte

func (c TokenCursor) lowerBound(uint64) (Key, error) {
	return parseKey(c)
}
