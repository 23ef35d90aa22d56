package nand

import (
	"testing"

	"github.com/gentam/nand/internal/nandsim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBlockSize = 2048 * 64

func countReads(ops []nandsim.Op) int {
	n := 0
	for _, op := range ops {
		if op.Cmd == 0x30 {
			n++
		}
	}
	return n
}

func TestLogicalToPhysicalSkipsBadBlocks(t *testing.T) {
	sim := newSim(t, RevisionV2)
	sim.MarkBad(2, 5)
	c := newConfigured(t, sim, testProps(false))

	tests := []struct {
		logical, phys int64
	}{
		{0, 0},
		{17, 17},
		{1*testBlockSize + 5, 1*testBlockSize + 5},
		{2 * testBlockSize, 3 * testBlockSize}, // skip semantics, see DESIGN.md
		{3*testBlockSize + 100, 4*testBlockSize + 100},
		{4 * testBlockSize, 6 * testBlockSize},
	}
	for _, tt := range tests {
		got, err := c.LogicalToPhysical(tt.logical)
		require.NoError(t, err)
		assert.Equal(t, tt.phys, got, "logical 0x%X", tt.logical)
	}

	bad, err := c.BadBlocks(8)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 5}, bad)
}

func TestLogicalToPhysicalMonotonic(t *testing.T) {
	sim := newSim(t, RevisionV1)
	sim.MarkBad(0, 3, 4, 9)
	c := newConfigured(t, sim, testProps(false))

	prev := int64(-1)
	for blk := int64(0); blk < 20; blk++ {
		phys, err := c.LogicalToPhysical(blk * testBlockSize)
		require.NoError(t, err)
		assert.Greater(t, phys, prev)
		isBad, err := c.IsBad(phys)
		require.NoError(t, err)
		assert.False(t, isBad, "logical block %d maps to bad block", blk)
		prev = phys
	}
}

func TestBadBlockRemapEndToEnd(t *testing.T) {
	sim := newSim(t, RevisionV3)
	sim.MarkBad(1, 3)
	c := newConfigured(t, sim, testProps(false))

	data := pattern(16)
	require.NoError(t, c.Write(2*testBlockSize, data))
	ops := sim.Ops()
	assert.Equal(t, nandsim.Op{Cmd: 0x10, Row: 256, Column: 0}, ops[len(ops)-1])

	sim.ResetOps()
	got := make([]byte, len(data))
	require.NoError(t, c.Read(2*testBlockSize, got))
	assert.Equal(t, data, got)
	assert.Equal(t, []nandsim.Op{{Cmd: 0x30, Row: 256, Column: 0}}, sim.Ops())
	assert.Equal(t, data, sim.Page(256)[:16])
}

func TestIsBadCaches(t *testing.T) {
	sim := newSim(t, RevisionV2)
	sim.MarkBad(7)
	c := newConfigured(t, sim, testProps(false))

	bad, err := c.IsBad(7 * testBlockSize)
	require.NoError(t, err)
	assert.True(t, bad)
	// the bad marker sits on page 0, so one read decided it
	assert.Equal(t, 1, countReads(sim.Ops()))

	bad, err = c.IsBad(8*testBlockSize + 4096)
	require.NoError(t, err)
	assert.False(t, bad)
	assert.Equal(t, 3, countReads(sim.Ops()))

	sim.ResetOps()
	for i := 0; i < 3; i++ {
		_, err = c.IsBad(7 * testBlockSize)
		require.NoError(t, err)
		_, err = c.IsBad(8 * testBlockSize)
		require.NoError(t, err)
	}
	assert.Empty(t, sim.Ops())
}

func TestLegacyBadBlockCap(t *testing.T) {
	sim := newSim(t, RevisionV2)
	sim.MarkBad(40)
	c := newConfigured(t, sim, testProps(false), WithLegacyBadBlockCap())

	_, err := c.IsBad(31 * testBlockSize)
	require.NoError(t, err)
	sim.ResetOps()
	_, err = c.IsBad(31 * testBlockSize)
	require.NoError(t, err)
	assert.Zero(t, countReads(sim.Ops()))

	for i := 1; i <= 3; i++ {
		bad, err := c.IsBad(40 * testBlockSize)
		require.NoError(t, err)
		assert.True(t, bad)
		assert.Equal(t, i, countReads(sim.Ops()))
	}
}

func TestIsBadRange(t *testing.T) {
	c := newConfigured(t, newSim(t, RevisionV2), testProps(false))
	_, err := c.IsBad(-1)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = c.IsBad(64 * testBlockSize)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = c.LogicalToPhysical(-5)
	assert.ErrorIs(t, err, ErrOutOfRange)

	// with every block good, the last logical block is the last physical block
	phys, err := c.LogicalToPhysical(63 * testBlockSize)
	require.NoError(t, err)
	assert.Equal(t, int64(63*testBlockSize), phys)
	_, err = c.LogicalToPhysical(64 * testBlockSize)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestMarkerDisabled(t *testing.T) {
	sim := newSim(t, RevisionV2)
	sim.MarkBad(0)
	p := testProps(false)
	p.Marker = BadBlockMarker{}
	c := newConfigured(t, sim, p)
	sim.ResetOps()

	bad, err := c.IsBad(0)
	require.NoError(t, err)
	assert.False(t, bad)
	assert.Empty(t, sim.Ops())
}

func TestBadBlockMapGrows(t *testing.T) {
	m := newBadBlockMap(-1)
	_, ok := m.lookup(300)
	assert.False(t, ok)
	m.record(300, true)
	m.record(2, false)
	bad, ok := m.lookup(300)
	assert.True(t, ok)
	assert.True(t, bad)
	bad, ok = m.lookup(2)
	assert.True(t, ok)
	assert.False(t, bad)

	m = newBadBlockMap(LegacyBadBlockCapacity)
	m.record(32, true)
	_, ok = m.lookup(32)
	assert.False(t, ok)
}
