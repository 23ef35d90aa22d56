package nand

import (
	"fmt"
	"sync/atomic"

	"periph.io/x/host/v3/pmem"
)

// MMIO is a physical register window mapped through /dev/mem.
type MMIO struct {
	view  *pmem.View
	words []uint32
}

// Map maps size bytes of physical memory at base.
func Map(base uint64, size int) (*MMIO, error) {
	v, err := pmem.Map(base, size)
	if err != nil {
		return nil, fmt.Errorf("map 0x%X+0x%X: %w", base, size, err)
	}
	return &MMIO{view: v, words: v.Uint32()}, nil
}

// Load32 reads the register at byte offset off.
func (m *MMIO) Load32(off uint32) uint32 { return atomic.LoadUint32(&m.words[off/4]) }

// Store32 writes the register at byte offset off.
func (m *MMIO) Store32(off uint32, v uint32) { atomic.StoreUint32(&m.words[off/4], v) }

// Close unmaps the window.
func (m *MMIO) Close() error {
	m.words = nil
	return m.view.Close()
}
