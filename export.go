// Snapshot export for offsite copies and archive comparison.
//
// A snapshot is a single zstd frame containing a length-prefixed JSON
// manifest followed by length-prefixed entry payloads in sequence
// order. The file lands via atomic replace, so a crashed export never
// leaves a truncated snapshot behind. Snapshots are read-side tooling
// only — the archive itself never restores from one, because entries
// are immutable where they already live.
package ledger

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"
	"github.com/natefinch/atomic"
	"go.uber.org/zap"
)

// Shared encoder/decoder — both are documented as safe for concurrent
// use, and construction is expensive enough to amortise across calls.
// SpeedFastest keeps large exports cheap; snapshots are operational
// artifacts, not long-term cold storage, so ratio matters less than
// not stalling the archive while the mutex is held.
var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	zstdDecoder, _ = zstd.NewReader(nil)
)

// Manifest describes a snapshot.
type Manifest struct {
	Version   int    `json:"version"`
	Entries   uint64 `json:"entries"`
	Algorithm int    `json:"digest_algorithm"`
	Digest    string `json:"digest"` // digest of the length-prefixed payload stream
	Created   int64  `json:"created"` // unix milliseconds
	Writer    string `json:"writer"`  // text form of the authorized writer
}

// Snapshot is a decoded snapshot: the manifest plus every payload.
type Snapshot struct {
	Manifest Manifest
	Entries  [][]byte
}

// Export writes a snapshot of the whole log to path.
func (a *Archive) Export(path string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}

	length := a.log.Len()

	var payloads bytes.Buffer
	var prefix [8]byte
	for seq := uint64(0); seq < length; seq++ {
		entry, err := a.log.Get(seq)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint64(prefix[:], uint64(len(entry)))
		payloads.Write(prefix[:])
		payloads.Write(entry)
	}

	manifest, err := json.Marshal(Manifest{
		Version:   1,
		Entries:   length,
		Algorithm: a.alg,
		Digest:    digest(payloads.Bytes(), a.alg),
		Created:   time.Now().UnixMilli(),
		Writer:    a.config.AuthorizedWriter.String(),
	})
	if err != nil {
		return fmt.Errorf("snapshot manifest: %w", err)
	}

	var raw bytes.Buffer
	binary.LittleEndian.PutUint64(prefix[:], uint64(len(manifest)))
	raw.Write(prefix[:])
	raw.Write(manifest)
	raw.Write(payloads.Bytes())

	compressed := zstdEncoder.EncodeAll(raw.Bytes(), nil)
	if err := atomic.WriteFile(path, bytes.NewReader(compressed)); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	a.logger.Info("snapshot exported",
		zap.String("path", path),
		zap.Uint64("entries", length),
	)
	return nil
}

// ReadSnapshot decodes a snapshot produced by Export.
func ReadSnapshot(data []byte) (*Snapshot, error) {
	raw, err := zstdDecoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: zstd: %w", ErrDecompress, err)
	}

	if len(raw) < 8 {
		return nil, fmt.Errorf("%w: short manifest prefix", ErrDecompress)
	}
	mlen := binary.LittleEndian.Uint64(raw)
	raw = raw[8:]
	if mlen > uint64(len(raw)) {
		return nil, fmt.Errorf("%w: manifest length out of range", ErrDecompress)
	}

	var snap Snapshot
	if err := json.Unmarshal(raw[:mlen], &snap.Manifest); err != nil {
		return nil, fmt.Errorf("%w: manifest: %w", ErrDecompress, err)
	}
	raw = raw[mlen:]

	for i := uint64(0); i < snap.Manifest.Entries; i++ {
		if len(raw) < 8 {
			return nil, fmt.Errorf("%w: short entry prefix", ErrDecompress)
		}
		elen := binary.LittleEndian.Uint64(raw)
		raw = raw[8:]
		if elen > uint64(len(raw)) {
			return nil, fmt.Errorf("%w: entry %d length out of range", ErrDecompress, i)
		}
		entry := make([]byte, elen)
		copy(entry, raw[:elen])
		snap.Entries = append(snap.Entries, entry)
		raw = raw[elen:]
	}
	return &snap, nil
}
