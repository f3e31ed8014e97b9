// Persistent ordered map of index keys.
//
// Region 3 stores a header followed by packed key records in insertion
// order; ordering is an in-memory concern. On open, every persisted
// key is replayed into a btree, which then serves range scans. Insert
// appends the key record, bumps the persisted count, and updates the
// tree — replay and live state always agree because the tree replaces
// duplicates idempotently.
//
// Region layout:
//
//	[0:3]   magic "IDX"
//	[3]     version (1)
//	[4:8]   key width, u32 LE
//	[8:12]  value width, u32 LE
//	[12:20] record count, u64 LE
//	[20:24] reserved
//	[24:]   packed key∥value records
//
// Key and value widths are fixed at creation (24 and 0 here). A region
// written with different widths fails to open with ErrIndexWidth:
// reinterpreting records under new widths would shear every key, so a
// migration must rewrite the region instead.
package ledger

import (
	"encoding/binary"
	"fmt"
	"iter"

	"github.com/google/btree"
)

const (
	idxMagic      = "IDX"
	idxVersion    = 1
	idxHeaderSize = 24
	idxDegree     = 32 // btree branching factor
)

// userIndex is the ordered map handle. The region is the durable copy;
// the tree is rebuilt from it on every open.
type userIndex struct {
	region Memory
	tree   *btree.BTreeG[Key]
	count  uint64
}

// openIndex attaches to the region, initialising the header when the
// region is empty and replaying records otherwise.
func openIndex(region Memory) (*userIndex, error) {
	idx := &userIndex{
		region: region,
		tree:   btree.NewG(idxDegree, Key.Less),
	}

	if region.SizePages() == 0 {
		if _, err := region.Grow(1); err != nil {
			return nil, fmt.Errorf("index header: %w", err)
		}
		if err := idx.writeHeader(); err != nil {
			return nil, err
		}
		return idx, nil
	}

	var hdr [idxHeaderSize]byte
	if err := region.ReadAt(0, hdr[:]); err != nil {
		return nil, fmt.Errorf("index header: %w", err)
	}
	if string(hdr[:3]) != idxMagic || hdr[3] != idxVersion {
		return nil, fmt.Errorf("index: %w", ErrCorruptHeader)
	}
	if binary.LittleEndian.Uint32(hdr[4:8]) != KeyWidth ||
		binary.LittleEndian.Uint32(hdr[8:12]) != ValueWidth {
		return nil, ErrIndexWidth
	}
	idx.count = binary.LittleEndian.Uint64(hdr[12:20])

	if idxHeaderSize+idx.count*(KeyWidth+ValueWidth) > region.SizePages()*PageSize {
		return nil, fmt.Errorf("index: count exceeds region: %w", ErrCorruptHeader)
	}

	buf := make([]byte, KeyWidth)
	for i := uint64(0); i < idx.count; i++ {
		if err := region.ReadAt(idxHeaderSize+i*(KeyWidth+ValueWidth), buf); err != nil {
			return nil, fmt.Errorf("index record %d: %w", i, err)
		}
		k, err := parseKey(buf)
		if err != nil {
			return nil, fmt.Errorf("index record %d: %w", i, ErrCorruptHeader)
		}
		idx.tree.ReplaceOrInsert(k)
	}
	return idx, nil
}

// Len returns the number of distinct keys.
func (idx *userIndex) Len() uint64 {
	return uint64(idx.tree.Len())
}

// Insert adds k to the map. Re-inserting an existing key is a no-op,
// so the operation is idempotent by key.
func (idx *userIndex) Insert(k Key) error {
	if idx.tree.Has(k) {
		return nil
	}

	recOff := idxHeaderSize + idx.count*(KeyWidth+ValueWidth)
	if err := ensure(idx.region, recOff+KeyWidth+ValueWidth); err != nil {
		return err
	}
	if err := idx.region.WriteAt(recOff, k.Bytes()); err != nil {
		return fmt.Errorf("index write: %w", err)
	}

	var count [8]byte
	binary.LittleEndian.PutUint64(count[:], idx.count+1)
	if err := idx.region.WriteAt(12, count[:]); err != nil {
		return fmt.Errorf("index count: %w", err)
	}

	idx.count++
	idx.tree.ReplaceOrInsert(k)
	return nil
}

// Scan yields keys >= lower in ascending order. The iterator is lazy;
// callers consume a bounded prefix and break.
func (idx *userIndex) Scan(lower Key) iter.Seq[Key] {
	return func(yield func(Key) bool) {
		idx.tree.AscendGreaterOrEqual(lower, func(k Key) bool {
			return yield(k)
		})
	}
}

// writeHeader persists the fixed header with the current count.
func (idx *userIndex) writeHeader() error {
	var hdr [idxHeaderSize]byte
	copy(hdr[:], idxMagic)
	hdr[3] = idxVersion
	binary.LittleEndian.PutUint32(hdr[4:8], KeyWidth)
	binary.LittleEndian.PutUint32(hdr[8:12], ValueWidth)
	binary.LittleEndian.PutUint64(hdr[12:20], idx.count)
	if err := idx.region.WriteAt(0, hdr[:]); err != nil {
		return fmt.Errorf("index header: %w", err)
	}
	return nil
}
