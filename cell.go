// Single-slot persistent config cell.
//
// Region 0 holds exactly one record: a u64 length prefix followed by
// the JSON body of the archive config. The cell reads the slot on
// open; an empty or unparsable slot is overwritten with the supplied
// default, so the archive always reaches a configured state. Capacity
// is one region page.
package ledger

import (
	"encoding/binary"
	"fmt"

	json "github.com/goccy/go-json"
)

// archiveConfig is the record stored in the cell. Written once at
// initialisation and never rewritten for the life of the instance.
type archiveConfig struct {
	// AuthorizedWriter is the only principal whose append calls are
	// accepted.
	AuthorizedWriter Principal `json:"authorized_writer"`
}

// cell is the in-memory handle over region 0.
type cell struct {
	region Memory
	value  archiveConfig
}

// openCell reads the slot, writing def when the slot is empty or
// malformed.
func openCell(region Memory, def archiveConfig) (*cell, error) {
	c := &cell{region: region}

	if region.SizePages() == 0 {
		if err := c.set(def); err != nil {
			return nil, err
		}
		return c, nil
	}

	var prefix [8]byte
	if err := region.ReadAt(0, prefix[:]); err != nil {
		return nil, fmt.Errorf("cell: %w", err)
	}
	length := binary.LittleEndian.Uint64(prefix[:])
	if length == 0 || length > PageSize-8 {
		if err := c.set(def); err != nil {
			return nil, err
		}
		return c, nil
	}

	body := make([]byte, length)
	if err := region.ReadAt(8, body); err != nil {
		return nil, fmt.Errorf("cell: %w", err)
	}
	if err := json.Unmarshal(body, &c.value); err != nil {
		if err := c.set(def); err != nil {
			return nil, err
		}
		return c, nil
	}
	return c, nil
}

// get returns the cached config. The cell is the durable copy; the
// cache is valid because set is the only writer.
func (c *cell) get() archiveConfig {
	return c.value
}

// set serialises and persists a new config record.
func (c *cell) set(v archiveConfig) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cell encode: %w", err)
	}
	if 8+len(body) > PageSize {
		return ErrValueTooLarge
	}

	if c.region.SizePages() == 0 {
		if _, err := c.region.Grow(1); err != nil {
			return fmt.Errorf("cell grow: %w", err)
		}
	}

	buf := make([]byte, 8+len(body))
	binary.LittleEndian.PutUint64(buf, uint64(len(body)))
	copy(buf[8:], body)
	if err := c.region.WriteAt(0, buf); err != nil {
		return fmt.Errorf("cell write: %w", err)
	}
	c.value = v
	return nil
}
