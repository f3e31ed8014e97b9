// Read paths: global tail scan and per-user filtered scan.
//
// Both reads bound their work at MaxEntriesPerCall and hand back a
// resumption point — a plain next index for the global scan, an opaque
// key token for the per-user scan. The per-user scan collects its keys
// before touching the log so the index iterator never interleaves with
// payload reads.
package ledger

// Logs is the response envelope of the global tail scan.
type Logs struct {
	// Entries holds the payloads in sequence order.
	Entries [][]byte

	// NextIndex is the first sequence not included, nil when the scan
	// reached the end of the log.
	NextIndex *uint64
}

// UserLogs is the response envelope of the per-user scan.
type UserLogs struct {
	// Entries holds the payloads in (timestamp, sequence) order.
	Entries [][]byte

	// Cursor resumes the scan after the last returned entry, nil when
	// the user has no further entries.
	Cursor Cursor
}

// Logs returns up to min(limit, MaxEntriesPerCall) entries starting at
// start. A nil start selects the tail window — the newest entries —
// matching the operational default of "show me what just happened".
// A nil limit means MaxEntriesPerCall.
func (a *Archive) Logs(start *uint64, limit *uint16) (*Logs, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, ErrClosed
	}

	num := clampLimit(limit)
	length := a.log.Len()

	var from uint64
	if start != nil {
		from = *start
	} else if length > num {
		from = length - num
	}

	end := from + num
	if end < from { // start near the top of the range
		end = ^uint64(0)
	}

	out := &Logs{}
	for seq := from; seq < end; seq++ {
		entry, err := a.log.Get(seq)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			break
		}
		out.Entries = append(out.Entries, entry)
	}

	if end < length {
		next := end
		out.NextIndex = &next
	}
	return out, nil
}

// UserLogs returns up to min(limit, MaxEntriesPerCall) entries for
// user, in ascending (timestamp, sequence) order. A nil cursor starts
// at the user's first entry; a TimestampCursor starts at a time; a
// TokenCursor resumes a previous scan. When more entries remain, the
// returned cursor is the key of the first unread entry.
func (a *Archive) UserLogs(user uint64, cursor Cursor, limit *uint16) (*UserLogs, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, ErrClosed
	}

	num := clampLimit(limit)

	lower := Key{User: user}
	if cursor != nil {
		var err error
		if lower, err = cursor.lowerBound(user); err != nil {
			return nil, err
		}
	}

	out := &UserLogs{}
	if !a.users.Contains(user) {
		return out, nil
	}

	// Collect up to num+1 keys: the extra one, if present, becomes the
	// continuation token. Keys for other users never escape — the scan
	// skips below the requested user and stops above it.
	keys := make([]Key, 0, num+1)
	for k := range a.index.Scan(lower) {
		if k.User < user {
			continue
		}
		if k.User > user {
			break
		}
		keys = append(keys, k)
		if uint64(len(keys)) == num+1 {
			break
		}
	}

	if uint64(len(keys)) == num+1 {
		out.Cursor = TokenCursor(keys[num].Bytes())
		keys = keys[:num]
	}

	for _, k := range keys {
		entry, err := a.log.Get(k.Sequence)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			return nil, ErrInvariantViolation
		}
		out.Entries = append(out.Entries, entry)
	}
	return out, nil
}

// clampLimit resolves an optional limit against the per-call ceiling.
func clampLimit(limit *uint16) uint64 {
	if limit == nil || *limit > MaxEntriesPerCall {
		return MaxEntriesPerCall
	}
	return uint64(*limit)
}
