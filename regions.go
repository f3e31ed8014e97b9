// Region allocator: multiplexes logical regions onto one paged store.
//
// The first page of the underlying store is a persistent header that
// bootstraps the allocator on reopen. Pages after it are handed out in
// fixed-size buckets of 16 pages; the header records, for each bucket,
// which region owns it, and for each region, its current page count.
// A region therefore sees a contiguous byte space that is physically
// scattered across its buckets in ownership order.
//
// Header layout (within page 0):
//
//	[0:3]   magic "MGR"
//	[3]     version (1)
//	[4:8]   reserved
//	[8:136] per-region page counts, 16 × u64 LE
//	[136:]  bucket table, one byte per bucket: 0 = free, else region+1
//
// Bucket b covers underlying pages 1+16b … 1+16b+15. Table slots are
// persisted before the region's page count, so a crash mid-grow leaves
// an allocated-but-uncounted bucket: a benign leak, never a dangling
// reference.
package ledger

import (
	"encoding/binary"
	"fmt"
)

const (
	maxRegions  = 16
	bucketPages = 16
	maxBuckets  = (MaxPages - 1) / bucketPages

	hdrMagic      = "MGR"
	hdrVersion    = 1
	hdrRegionsOff = 8
	hdrBucketsOff = hdrRegionsOff + maxRegions*8
)

// Reserved region IDs. Additional IDs up to maxRegions-1 read as empty.
const (
	regionConfig   = 0
	regionLogIndex = 1
	regionLogData  = 2
	regionUserIdx  = 3
)

// allocator carves the underlying store into up to 16 regions. All
// state is mirrored in memory; the header page is the durable copy.
type allocator struct {
	mem     Memory
	pages   [maxRegions]uint64   // current page count per region
	buckets [maxRegions][]uint32 // bucket ids per region, ownership order
	table   []byte               // bucket ownership, 0 = free
}

// openAllocator attaches to the store, initialising a fresh header when
// the store is empty and rebuilding in-memory state otherwise.
func openAllocator(mem Memory) (*allocator, error) {
	a := &allocator{mem: mem, table: make([]byte, maxBuckets)}

	if mem.SizePages() == 0 {
		if _, err := mem.Grow(1); err != nil {
			return nil, fmt.Errorf("allocator header: %w", err)
		}
		hdr := make([]byte, hdrBucketsOff)
		copy(hdr, hdrMagic)
		hdr[3] = hdrVersion
		if err := mem.WriteAt(0, hdr); err != nil {
			return nil, fmt.Errorf("allocator header: %w", err)
		}
		return a, nil
	}

	hdr := make([]byte, hdrBucketsOff+maxBuckets)
	if err := mem.ReadAt(0, hdr); err != nil {
		return nil, fmt.Errorf("allocator header: %w", err)
	}
	if string(hdr[:3]) != hdrMagic || hdr[3] != hdrVersion {
		return nil, fmt.Errorf("allocator: %w", ErrCorruptHeader)
	}

	for r := range maxRegions {
		a.pages[r] = binary.LittleEndian.Uint64(hdr[hdrRegionsOff+r*8:])
	}
	copy(a.table, hdr[hdrBucketsOff:])

	// Buckets were assigned in ascending order, so walking the table
	// forward reconstructs each region's address space.
	for b := range maxBuckets {
		owner := a.table[b]
		if owner == 0 {
			continue
		}
		if int(owner) > maxRegions {
			return nil, fmt.Errorf("allocator bucket %d: %w", b, ErrCorruptHeader)
		}
		r := int(owner) - 1
		a.buckets[r] = append(a.buckets[r], uint32(b))
	}

	for r := range maxRegions {
		if a.pages[r] > uint64(len(a.buckets[r]))*bucketPages {
			return nil, fmt.Errorf("allocator region %d: %w", r, ErrCorruptHeader)
		}
	}
	return a, nil
}

// Get returns the handle for a region ID. Unknown IDs are valid and
// read as empty regions.
func (a *allocator) Get(id int) *Region {
	return &Region{a: a, id: id}
}

// grow extends region id by delta pages, allocating buckets as needed.
func (a *allocator) grow(id int, delta uint64) (uint64, error) {
	old := a.pages[id]
	need := old + delta
	have := uint64(len(a.buckets[id])) * bucketPages

	var slot [1]byte
	for have < need {
		b := a.freeBucket()
		if b < 0 {
			return 0, ErrStorageExhausted
		}
		// The store must cover the bucket's last page before the
		// bucket is handed out.
		lastPage := 1 + uint64(b+1)*bucketPages
		if sz := a.mem.SizePages(); sz < lastPage {
			if _, err := a.mem.Grow(lastPage - sz); err != nil {
				return 0, err
			}
		}
		a.table[b] = byte(id) + 1
		a.buckets[id] = append(a.buckets[id], uint32(b))
		slot[0] = a.table[b]
		if err := a.mem.WriteAt(uint64(hdrBucketsOff+b), slot[:]); err != nil {
			return 0, err
		}
		have += bucketPages
	}

	a.pages[id] = need
	var count [8]byte
	binary.LittleEndian.PutUint64(count[:], need)
	if err := a.mem.WriteAt(uint64(hdrRegionsOff+id*8), count[:]); err != nil {
		return 0, err
	}
	return old, nil
}

// freeBucket returns the lowest unowned bucket, or -1 when exhausted.
func (a *allocator) freeBucket() int {
	for b, owner := range a.table {
		if owner == 0 {
			return b
		}
	}
	return -1
}

// Region is one logical sub-range of the store, independently growable
// and addressed from byte zero. It implements Memory.
type Region struct {
	a  *allocator
	id int
}

func (r *Region) SizePages() uint64 {
	return r.a.pages[r.id]
}

func (r *Region) Grow(delta uint64) (uint64, error) {
	return r.a.grow(r.id, delta)
}

func (r *Region) ReadAt(off uint64, buf []byte) error {
	return r.access(off, buf, r.a.mem.ReadAt)
}

func (r *Region) WriteAt(off uint64, buf []byte) error {
	return r.access(off, buf, r.a.mem.WriteAt)
}

// access splits a logical byte range into per-bucket runs and applies
// op to each underlying range.
func (r *Region) access(off uint64, buf []byte, op func(uint64, []byte) error) error {
	if off+uint64(len(buf)) > r.a.pages[r.id]*PageSize {
		return ErrOutOfBounds
	}
	const bucketBytes = bucketPages * PageSize
	for len(buf) > 0 {
		b := off / bucketBytes
		within := off % bucketBytes
		run := bucketBytes - within
		if run > uint64(len(buf)) {
			run = uint64(len(buf))
		}
		bucket := r.a.buckets[r.id][b]
		phys := (1+uint64(bucket)*bucketPages)*PageSize + within
		if err := op(phys, buf[:run]); err != nil {
			return err
		}
		off += run
		buf = buf[run:]
	}
	return nil
}
