// In-memory bloom filter over user numbers.
//
// Sized for ~10k users at 1% false positive rate. Built on open from
// the user index keys, maintained on every write, discarded on close.
// A negative answer lets per-user reads return empty without touching
// the index.
package ledger

import (
	"encoding/binary"
	"hash/fnv"
)

// Bloom filter sizing constants.
const (
	bloomSize = 11982 // bytes, ~96k bits for 10k users at 1% FP
	bloomK    = 7     // number of hash functions
)

type bloom struct {
	bits []byte
}

// newBloom returns a zeroed bloom filter.
func newBloom() *bloom {
	return &bloom{bits: make([]byte, bloomSize)}
}

// Add inserts a user number into the filter.
func (b *bloom) Add(user uint64) {
	for _, pos := range bloomPositions(user) {
		b.bits[pos/8] |= 1 << (pos % 8)
	}
}

// Contains returns true if the user might be present, false if
// definitely absent.
func (b *bloom) Contains(user uint64) bool {
	for _, pos := range bloomPositions(user) {
		if b.bits[pos/8]&(1<<(pos%8)) == 0 {
			return false
		}
	}
	return true
}

// bloomPositions returns bloomK bit positions using double hashing
// (FNV-64a + FNV-32a over the LE encoding of the user number).
func bloomPositions(user uint64) [bloomK]uint {
	var le [8]byte
	binary.LittleEndian.PutUint64(le[:], user)

	h64 := fnv.New64a()
	h64.Write(le[:])
	a := h64.Sum64()

	h32 := fnv.New32a()
	h32.Write(le[:])
	b := uint(h32.Sum32())

	nbits := uint(bloomSize * 8)
	var pos [bloomK]uint
	for i := range bloomK {
		pos[i] = (uint(a) + uint(i)*b) % nbits
	}
	return pos
}
