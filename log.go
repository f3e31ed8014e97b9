// Append-only entry log over two regions.
//
// The index region holds a u64 entry count followed by packed
// (offset, length) u64 pairs; the data region holds the concatenated
// payloads. Writes are strictly ordered: payload bytes first, then the
// index record, then the count bump that makes the entry visible. A
// failure before the bump leaves orphan bytes that no reader can
// reach — that residue is the accepted crash semantics, so no journal
// is needed.
package ledger

import (
	"encoding/binary"
	"fmt"
)

const (
	logHeaderSize = 8  // u64 entry count
	logRecordSize = 16 // u64 offset + u64 length
)

// entryLog is the persistent sequence of opaque payloads. Sequences
// are dense: Append returns Len() as it was immediately before the
// call.
type entryLog struct {
	index Memory
	data  Memory

	count   uint64 // cached entry count
	dataEnd uint64 // cached end of payload bytes in the data region
}

// openLog attaches to the two regions, reading the count header and
// deriving the data tail from the last index record.
func openLog(index, data Memory) (*entryLog, error) {
	l := &entryLog{index: index, data: data}

	if index.SizePages() == 0 {
		return l, nil
	}

	var hdr [8]byte
	if err := index.ReadAt(0, hdr[:]); err != nil {
		return nil, fmt.Errorf("log header: %w", err)
	}
	l.count = binary.LittleEndian.Uint64(hdr[:])

	if l.count > MaxPages*PageSize/logRecordSize ||
		l.count*logRecordSize+logHeaderSize > index.SizePages()*PageSize {
		return nil, fmt.Errorf("log: count exceeds index region: %w", ErrCorruptHeader)
	}
	if l.count > 0 {
		off, length, err := l.record(l.count - 1)
		if err != nil {
			return nil, err
		}
		l.dataEnd = off + length
	}
	return l, nil
}

// Len returns the number of visible entries.
func (l *entryLog) Len() uint64 {
	return l.count
}

// Append stores payload and returns its sequence number. On any
// failure the count is not advanced and the entry stays invisible.
func (l *entryLog) Append(payload []byte) (uint64, error) {
	seq := l.count

	if err := ensure(l.data, l.dataEnd+uint64(len(payload))); err != nil {
		return 0, err
	}
	if len(payload) > 0 {
		if err := l.data.WriteAt(l.dataEnd, payload); err != nil {
			return 0, err
		}
	}

	recOff := logHeaderSize + seq*logRecordSize
	if err := ensure(l.index, recOff+logRecordSize); err != nil {
		return 0, err
	}
	var rec [logRecordSize]byte
	binary.LittleEndian.PutUint64(rec[:8], l.dataEnd)
	binary.LittleEndian.PutUint64(rec[8:], uint64(len(payload)))
	if err := l.index.WriteAt(recOff, rec[:]); err != nil {
		return 0, err
	}

	// Commit point: the count bump makes the entry reachable.
	var hdr [8]byte
	binary.LittleEndian.PutUint64(hdr[:], seq+1)
	if err := l.index.WriteAt(0, hdr[:]); err != nil {
		return 0, err
	}

	l.dataEnd += uint64(len(payload))
	l.count = seq + 1
	return seq, nil
}

// Get returns the payload at seq, or nil when seq is past the end.
func (l *entryLog) Get(seq uint64) ([]byte, error) {
	if seq >= l.count {
		return nil, nil
	}
	off, length, err := l.record(seq)
	if err != nil {
		return nil, err
	}
	payload := make([]byte, length)
	if err := l.data.ReadAt(off, payload); err != nil {
		return nil, fmt.Errorf("log entry %d: %w", seq, err)
	}
	return payload, nil
}

// record reads the (offset, length) pair for seq.
func (l *entryLog) record(seq uint64) (uint64, uint64, error) {
	var rec [logRecordSize]byte
	if err := l.index.ReadAt(logHeaderSize+seq*logRecordSize, rec[:]); err != nil {
		return 0, 0, fmt.Errorf("log record %d: %w", seq, err)
	}
	return binary.LittleEndian.Uint64(rec[:8]), binary.LittleEndian.Uint64(rec[8:]), nil
}
