// Integrity verification.
//
// Verify walks both persistent structures and cross-checks them. The
// log side checks that payload ranges are contiguous and in bounds;
// the index side checks that every key points at a live entry and
// takes a census of sequences with no key at all. Such gaps are the
// durable residue of a write whose index insert failed after the
// append committed — they are permanent, and this report is how
// operators acknowledge them.
package ledger

import "go.uber.org/zap"

// Report summarises a verification pass.
type Report struct {
	Entries uint64 // entries in the log
	Indexed uint64 // distinct keys in the user index

	// Gaps lists sequences that exist in the log but have no index
	// key: visible to tail reads, invisible to per-user reads.
	Gaps []uint64

	// BadRecords lists sequences whose payload range is out of bounds
	// or breaks contiguity with its predecessor.
	BadRecords []uint64

	// Dangling lists keys that reference sequences past the end of
	// the log. A non-empty list means the index is corrupt.
	Dangling []Key
}

// Clean reports whether the pass found no defects. Gaps are defects:
// benign for tail readers, but a per-user audit over a gapped archive
// is incomplete.
func (r *Report) Clean() bool {
	return len(r.Gaps) == 0 && len(r.BadRecords) == 0 && len(r.Dangling) == 0
}

// Verify cross-checks the log and the user index.
func (a *Archive) Verify() (*Report, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, ErrClosed
	}

	length := a.log.Len()
	report := &Report{Entries: length, Indexed: a.index.Len()}

	// Log side: every record's payload range follows its predecessor
	// exactly and stays within the written tail.
	var expect uint64
	for seq := uint64(0); seq < length; seq++ {
		off, size, err := a.log.record(seq)
		if err != nil {
			return nil, err
		}
		if off != expect || off+size > a.log.dataEnd || off+size < off {
			report.BadRecords = append(report.BadRecords, seq)
			continue
		}
		expect = off + size
	}

	// Index side: mark which sequences have a key.
	seen := make([]byte, (length+7)/8)
	for k := range a.index.Scan(Key{}) {
		if k.Sequence >= length {
			report.Dangling = append(report.Dangling, k)
			continue
		}
		seen[k.Sequence/8] |= 1 << (k.Sequence % 8)
	}

	for seq := uint64(0); seq < length; seq++ {
		if seen[seq/8]&(1<<(seq%8)) == 0 {
			report.Gaps = append(report.Gaps, seq)
		}
	}

	if !report.Clean() {
		a.logger.Warn("verification found defects",
			zap.Uint64s("gaps", report.Gaps),
			zap.Uint64s("badRecords", report.BadRecords),
			zap.Int("dangling", len(report.Dangling)),
		)
	}
	return report, nil
}
