// Core archive type, lifecycle, and the write path.
//
// Archive wires the region allocator, config cell, entry log, and user
// index over one paged store and enforces the service contract:
// exactly one principal may append, appends index-then-commit in a
// fixed order, and reads are public. Calls are serialised by a single
// mutex — the storage layers assume no overlap within a call.
package ledger

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// MaxEntriesPerCall bounds the number of entries any single read
// returns. Callers page through larger result sets with cursors.
const MaxEntriesPerCall = 1000

// Config holds archive options.
type Config struct {
	// AuthorizedWriter is stored in the config cell when the store is
	// fresh. On reopen the stored writer wins; the cell is immutable
	// for the life of the data.
	AuthorizedWriter Principal

	// DigestAlgorithm selects the Digest fingerprint (default xxHash3).
	DigestAlgorithm int

	// SyncWrites makes the file-backed store fsync after every write.
	// Ignored by OpenStore.
	SyncWrites bool

	// Logger receives operational events. Defaults to a no-op logger.
	Logger *zap.Logger
}

// Archive is an open audit archive.
type Archive struct {
	mu     sync.Mutex
	closed bool

	store  *FileStore // non-nil when the archive owns a file store
	config archiveConfig
	logger *zap.Logger
	alg    int

	log   *entryLog
	index *userIndex
	users *bloom
}

// Open opens an archive over path, creating the store file if needed.
func Open(path string, config Config) (*Archive, error) {
	store, err := OpenFileStore(path, config.SyncWrites)
	if err != nil {
		return nil, err
	}
	a, err := OpenStore(store, config)
	if err != nil {
		store.Close()
		return nil, err
	}
	a.store = store
	return a, nil
}

// OpenStore opens an archive over an existing Memory. The caller keeps
// ownership of the store; Close does not release it.
func OpenStore(store Memory, config Config) (*Archive, error) {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.DigestAlgorithm == 0 {
		config.DigestAlgorithm = AlgXXHash3
	}

	alloc, err := openAllocator(store)
	if err != nil {
		return nil, err
	}

	cell, err := openCell(alloc.Get(regionConfig), archiveConfig{
		AuthorizedWriter: config.AuthorizedWriter,
	})
	if err != nil {
		return nil, err
	}
	cfg := cell.get()
	if len(cfg.AuthorizedWriter) == 0 {
		return nil, ErrNoWriter
	}

	log, err := openLog(alloc.Get(regionLogIndex), alloc.Get(regionLogData))
	if err != nil {
		return nil, err
	}

	index, err := openIndex(alloc.Get(regionUserIdx))
	if err != nil {
		return nil, err
	}

	// Seed the user filter from the full key set.
	users := newBloom()
	for k := range index.Scan(Key{}) {
		users.Add(k.User)
	}

	config.Logger.Info("archive opened",
		zap.Uint64("entries", log.Len()),
		zap.Uint64("indexed", index.Len()),
		zap.String("writer", cfg.AuthorizedWriter.String()),
	)

	return &Archive{
		config: cfg,
		logger: config.Logger,
		alg:    config.DigestAlgorithm,
		log:    log,
		index:  index,
		users:  users,
	}, nil
}

// Close releases the archive. The backing file store, if owned, is
// closed; a caller-supplied Memory is left untouched.
func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}
	a.closed = true
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

// AuthorizedWriter returns the principal whose appends are accepted.
func (a *Archive) AuthorizedWriter() Principal {
	return a.config.AuthorizedWriter
}

// Len returns the number of entries in the log.
func (a *Archive) Len() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.log.Len()
}

// WriteEntry appends an opaque entry for (user, timestamp) and indexes
// it. Only the authorized writer may call it; any other caller is
// rejected with no state change.
//
// Ordering on success: payload, log record, count bump, index key. If
// the index insert fails after the append committed, the call returns
// the error but the entry stays visible to tail reads — the gap is
// permanent and shows up in Verify.
func (a *Archive) WriteEntry(caller Principal, user, timestamp uint64, entry []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}

	if !caller.Equal(a.config.AuthorizedWriter) {
		a.logger.Warn("write rejected",
			zap.String("caller", caller.String()),
		)
		return ErrUnauthorized
	}

	seq, err := a.log.Append(entry)
	if err != nil {
		return fmt.Errorf("append entry: %w", err)
	}

	if err := a.index.Insert(Key{User: user, Timestamp: timestamp, Sequence: seq}); err != nil {
		a.logger.Warn("index insert failed; entry visible to tail reads only",
			zap.Uint64("sequence", seq),
			zap.Uint64("user", user),
			zap.Error(err),
		)
		return fmt.Errorf("index entry %d: %w", seq, err)
	}
	a.users.Add(user)

	a.logger.Debug("entry written",
		zap.Uint64("sequence", seq),
		zap.Uint64("user", user),
		zap.Uint64("timestamp", timestamp),
		zap.Int("size", len(entry)),
	)
	return nil
}

// Digest fingerprints the payload at seq with the configured
// algorithm.
func (a *Archive) Digest(seq uint64) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return "", ErrClosed
	}
	payload, err := a.log.Get(seq)
	if err != nil {
		return "", err
	}
	if payload == nil {
		return "", ErrOutOfBounds
	}
	return digest(payload, a.alg), nil
}
