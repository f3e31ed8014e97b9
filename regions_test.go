// Region allocator tests.
//
// The allocator is the one component every other layer sits on: if
// region translation or header persistence is wrong, all four regions
// read each other's bytes. These tests cover fresh initialisation,
// growth and bucket assignment, isolation between regions, access that
// spans bucket boundaries, reopen from the persisted header, and
// rejection of a corrupt header.
package ledger

import (
	"bytes"
	"errors"
	"testing"
)

// TestAllocatorFresh verifies that attaching to an empty store writes
// the header page and leaves all regions empty.
func TestAllocatorFresh(t *testing.T) {
	m := NewMemStore()
	a, err := openAllocator(m)
	if err != nil {
		t.Fatalf("openAllocator: %v", err)
	}

	if m.SizePages() != 1 {
		t.Errorf("store has %d pages after init, want 1 (header)", m.SizePages())
	}
	for id := range maxRegions {
		if got := a.Get(id).SizePages(); got != 0 {
			t.Errorf("region %d has %d pages, want 0", id, got)
		}
	}
}

// TestRegionGrowAndAccess verifies that a grown region accepts reads
// and writes across its full size and that Grow returns the previous
// page count.
func TestRegionGrowAndAccess(t *testing.T) {
	m := NewMemStore()
	a, _ := openAllocator(m)
	r := a.Get(regionLogData)

	old, err := r.Grow(3)
	if err != nil {
		t.Fatalf("Grow: %v", err)
	}
	if old != 0 {
		t.Errorf("Grow returned %d, want 0", old)
	}
	if r.SizePages() != 3 {
		t.Errorf("SizePages = %d, want 3", r.SizePages())
	}

	payload := []byte("region payload")
	if err := r.WriteAt(2*PageSize, payload); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	got := make([]byte, len(payload))
	if err := r.ReadAt(2*PageSize, got); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("read %q, want %q", got, payload)
	}

	if err := r.ReadAt(3*PageSize-2, make([]byte, 4)); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("read past region end: got %v, want ErrOutOfBounds", err)
	}
}

// TestRegionIsolation verifies that two regions never see each other's
// bytes even though they interleave buckets on the same store.
func TestRegionIsolation(t *testing.T) {
	m := NewMemStore()
	a, _ := openAllocator(m)

	r1 := a.Get(regionLogIndex)
	r2 := a.Get(regionLogData)

	// Interleave growth so the regions alternate bucket ownership.
	r1.Grow(bucketPages)
	r2.Grow(bucketPages)
	r1.Grow(bucketPages)
	r2.Grow(bucketPages)

	fill := func(r *Region, b byte) {
		buf := bytes.Repeat([]byte{b}, int(r.SizePages())*PageSize)
		if err := r.WriteAt(0, buf); err != nil {
			t.Fatalf("fill region: %v", err)
		}
	}
	fill(r1, 0xAA)
	fill(r2, 0xBB)

	check := func(r *Region, b byte) {
		buf := make([]byte, int(r.SizePages())*PageSize)
		if err := r.ReadAt(0, buf); err != nil {
			t.Fatalf("read region: %v", err)
		}
		for i, got := range buf {
			if got != b {
				t.Fatalf("byte %d = %#x, want %#x", i, got, b)
			}
		}
	}
	check(r1, 0xAA)
	check(r2, 0xBB)
}

// TestRegionBucketSpanningAccess verifies one read/write crossing a
// bucket boundary, where the logical range maps to two physically
// discontiguous runs.
func TestRegionBucketSpanningAccess(t *testing.T) {
	m := NewMemStore()
	a, _ := openAllocator(m)

	// Force region buckets to be non-adjacent on the store.
	r := a.Get(regionUserIdx)
	other := a.Get(regionLogData)
	r.Grow(bucketPages)
	other.Grow(bucketPages)
	r.Grow(bucketPages)

	payload := bytes.Repeat([]byte("x0"), PageSize) // 2 pages
	off := uint64(bucketPages*PageSize - PageSize/2)
	if err := r.WriteAt(off, payload); err != nil {
		t.Fatalf("WriteAt across buckets: %v", err)
	}
	got := make([]byte, len(payload))
	if err := r.ReadAt(off, got); err != nil {
		t.Fatalf("ReadAt across buckets: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Error("bucket-spanning roundtrip mismatch")
	}
}

// TestAllocatorReopen verifies that a second allocator over the same
// store reconstructs region sizes and contents from the header page.
// This is the restart path: the header is the only bootstrap state.
func TestAllocatorReopen(t *testing.T) {
	m := NewMemStore()
	a1, _ := openAllocator(m)

	r := a1.Get(regionConfig)
	r.Grow(1)
	payload := []byte("survives reopen")
	r.WriteAt(100, payload)
	a1.Get(regionLogData).Grow(2)

	a2, err := openAllocator(m)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got := a2.Get(regionConfig).SizePages(); got != 1 {
		t.Errorf("config region has %d pages after reopen, want 1", got)
	}
	if got := a2.Get(regionLogData).SizePages(); got != 2 {
		t.Errorf("data region has %d pages after reopen, want 2", got)
	}

	got := make([]byte, len(payload))
	if err := a2.Get(regionConfig).ReadAt(100, got); err != nil {
		t.Fatalf("ReadAt after reopen: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("read %q after reopen, want %q", got, payload)
	}
}

// TestAllocatorCorruptHeader verifies that a store whose first page is
// not an allocator header is rejected rather than silently
// reinitialised — reinitialising would orphan every region.
func TestAllocatorCorruptHeader(t *testing.T) {
	m := NewMemStore()
	m.Grow(1)
	m.WriteAt(0, []byte("not an allocator header"))

	if _, err := openAllocator(m); !errors.Is(err, ErrCorruptHeader) {
		t.Fatalf("got %v, want ErrCorruptHeader", err)
	}
}

// TestAllocatorExhaustion verifies that growth past the store cap
// surfaces ErrStorageExhausted through the region handle.
func TestAllocatorExhaustion(t *testing.T) {
	m := &boundedStore{cap: 1 + bucketPages} // header + one bucket
	a, err := openAllocator(m)
	if err != nil {
		t.Fatalf("openAllocator: %v", err)
	}

	r := a.Get(regionLogData)
	if _, err := r.Grow(bucketPages); err != nil {
		t.Fatalf("Grow within cap: %v", err)
	}
	if _, err := r.Grow(1); !errors.Is(err, ErrStorageExhausted) {
		t.Fatalf("Grow past cap: got %v, want ErrStorageExhausted", err)
	}
}
