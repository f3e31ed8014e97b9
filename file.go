// File-backed paged store.
//
// A FileStore maps the Memory contract onto a single regular file. The
// file length is always a whole number of pages; Grow extends it with
// zeros via truncate. An exclusive OS-level lock is held for the life
// of the handle — the archive admits one writer, so there is never a
// reason for two processes to share the file.
package ledger

import (
	"fmt"
	"os"
)

// FileStore is a Memory backed by a regular file.
type FileStore struct {
	f     *os.File
	lock  *fileLock
	pages uint64
	sync  bool
}

// OpenFileStore opens or creates the store file at path. The file is
// locked exclusively until Close; a second open of the same path blocks.
// When syncWrites is true every write is followed by fsync.
func OpenFileStore(path string, syncWrites bool) (*FileStore, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}

	lock := &fileLock{f: f}
	if err := lock.Lock(); err != nil {
		f.Close()
		return nil, fmt.Errorf("lock store: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		lock.Unlock()
		f.Close()
		return nil, err
	}
	size := info.Size()
	if size%PageSize != 0 {
		// A torn grow left a partial page. Trim back to the last
		// complete page; the allocator header never references it.
		size -= size % PageSize
		if err := f.Truncate(size); err != nil {
			lock.Unlock()
			f.Close()
			return nil, err
		}
	}

	return &FileStore{f: f, lock: lock, pages: uint64(size) / PageSize, sync: syncWrites}, nil
}

// Close releases the lock and the file handle.
func (s *FileStore) Close() error {
	if s.f == nil {
		return nil
	}
	if s.sync {
		s.f.Sync()
	}
	s.lock.Unlock()
	s.lock.setFile(nil)
	err := s.f.Close()
	s.f = nil
	return err
}

func (s *FileStore) SizePages() uint64 {
	return s.pages
}

func (s *FileStore) Grow(delta uint64) (uint64, error) {
	old := s.pages
	if old+delta > MaxPages {
		return 0, ErrStorageExhausted
	}
	if err := s.f.Truncate(int64((old + delta) * PageSize)); err != nil {
		return 0, fmt.Errorf("grow store: %w", err)
	}
	s.pages = old + delta
	return old, nil
}

func (s *FileStore) ReadAt(off uint64, buf []byte) error {
	if off+uint64(len(buf)) > s.pages*PageSize {
		return ErrOutOfBounds
	}
	_, err := s.f.ReadAt(buf, int64(off))
	return err
}

func (s *FileStore) WriteAt(off uint64, buf []byte) error {
	if off+uint64(len(buf)) > s.pages*PageSize {
		return ErrOutOfBounds
	}
	if _, err := s.f.WriteAt(buf, int64(off)); err != nil {
		return err
	}
	if s.sync {
		return s.f.Sync()
	}
	return nil
}
