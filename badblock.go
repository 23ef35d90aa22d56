package nand

import (
	"encoding/binary"
	"fmt"
)

// badBlockMap caches marker scan results as two bitmaps. Blocks at or above
// capacity are scanned on every query. A negative capacity grows on demand.
type badBlockMap struct {
	capacity int
	known    []uint64
	bad      []uint64
}

func newBadBlockMap(capacity int) *badBlockMap {
	m := &badBlockMap{capacity: capacity}
	if capacity > 0 {
		m.known = make([]uint64, (capacity+63)/64)
		m.bad = make([]uint64, len(m.known))
	}
	return m
}

func (m *badBlockMap) caches(block int) bool {
	return block >= 0 && (m.capacity < 0 || block < m.capacity)
}

func (m *badBlockMap) lookup(block int) (bad, ok bool) {
	w, bit := block/64, uint(block%64)
	if !m.caches(block) || w >= len(m.known) || m.known[w]&(1<<bit) == 0 {
		return false, false
	}
	return m.bad[w]&(1<<bit) != 0, true
}

func (m *badBlockMap) record(block int, bad bool) {
	if !m.caches(block) {
		return
	}
	w, bit := block/64, uint(block%64)
	for w >= len(m.known) {
		m.known = append(m.known, 0)
		m.bad = append(m.bad, 0)
	}
	m.known[w] |= 1 << bit
	if bad {
		m.bad[w] |= 1 << bit
	} else {
		m.bad[w] &^= 1 << bit
	}
}

// erasedMarker is the marker word of a good block.
const erasedMarker = 0xFFFF

// IsBad reports whether the physical block containing byte address blockAddr
// carries a bad-block marker. The first answer for a block is cached for the
// rest of the session.
func (c *Controller) IsBad(blockAddr int64) (bool, error) {
	if !c.configured {
		return false, ErrNotConfigured
	}
	if blockAddr < 0 {
		return false, fmt.Errorf("%w: block address %d", ErrOutOfRange, blockAddr)
	}
	block := int(blockAddr / int64(c.extra.BlockSize))
	if c.cfg.BlockCount > 0 && block >= c.cfg.BlockCount {
		return false, fmt.Errorf("%w: block %d of %d", ErrOutOfRange, block, c.cfg.BlockCount)
	}
	if bad, ok := c.bbm.lookup(block); ok {
		return bad, nil
	}
	bad, err := c.scanBlock(block)
	if err != nil {
		return false, err
	}
	if bad {
		c.log.Info("NAND bad block", "block", block)
	}
	c.bbm.record(block, bad)
	return bad, nil
}

// scanBlock reads the marker words of block raw, bypassing ECC.
func (c *Controller) scanBlock(block int) (bool, error) {
	m := c.extra.Marker
	if m.Policy == MarkerDisabled {
		return false, nil
	}
	ppb := c.extra.PagesPerBlock()
	var word [2]byte
	for _, pg := range m.Policy.pages(ppb) {
		row := uint32(block*ppb + pg)
		for _, off := range m.Offsets[:m.Count] {
			if err := c.readPage(row, int(off), word[:], false); err != nil {
				return false, fmt.Errorf("scan block %d: %w", block, err)
			}
			if binary.LittleEndian.Uint16(word[:]) != erasedMarker {
				return true, nil
			}
		}
	}
	return false, nil
}

// LogicalToPhysical maps a logical byte address to a physical one by
// skipping every bad block up to and including the block the address lands
// in. The count is rebuilt from block 0 on every call.
func (c *Controller) LogicalToPhysical(addr int64) (int64, error) {
	if !c.configured {
		return 0, ErrNotConfigured
	}
	if addr < 0 {
		return 0, fmt.Errorf("%w: address %d", ErrOutOfRange, addr)
	}
	bs := int64(c.extra.BlockSize)
	target := addr / bs
	var bad int64
	for phys, logical := int64(0), int64(0); ; phys++ {
		isBad, err := c.IsBad(phys * bs)
		if err != nil {
			return 0, err
		}
		if isBad {
			bad++
			continue
		}
		if logical == target {
			break
		}
		logical++
	}
	return addr + bad*bs, nil
}

// BadBlocks scans the first n physical blocks and returns the bad ones.
func (c *Controller) BadBlocks(n int) ([]int, error) {
	var out []int
	for b := 0; b < n; b++ {
		bad, err := c.IsBad(int64(b) * int64(c.extra.BlockSize))
		if err != nil {
			return out, err
		}
		if bad {
			out = append(out, b)
		}
	}
	return out, nil
}
