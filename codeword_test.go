package nand

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fifoRegs is a register window with a data FIFO and a fixed INT_STATUS.
// It counts every access.
type fifoRegs struct {
	l      regLayout
	status IntStatus
	rx     []uint32
	tx     []uint32
	loads  int
	stores int
}

func (f *fifoRegs) Load32(off uint32) uint32 {
	f.loads++
	switch off {
	case f.l.intStatus:
		return uint32(f.status)
	case f.l.dataBuf:
		if len(f.rx) == 0 {
			return 0
		}
		v := f.rx[0]
		f.rx = f.rx[1:]
		return v
	}
	return 0
}

func (f *fifoRegs) Store32(off uint32, v uint32) {
	f.stores++
	if off == f.l.dataBuf {
		f.tx = append(f.tx, v)
	}
}

func newStream(status IntStatus, rx ...uint32) (*codewordStream, *fifoRegs) {
	l, _ := RevisionV1.layout()
	f := &fifoRegs{l: l, status: status, rx: rx}
	b := &bus{regs: f, l: l, fifoTimeout: time.Millisecond}
	return &codewordStream{bus: b}, f
}

func TestStreamReadLittleEndian(t *testing.T) {
	s, _ := newStream(IntCWReadReady, 0x04030201, 0x08070605, 0x0C0B0A09, 0x100F0E0D)
	s.configure(8, 2)

	got, err := s.read(10, 1, 5)
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 3, 4, 5, 6, 7, 8, 9, 10, 11}, got)
	assert.Zero(t, s.available())
}

func TestStreamReadSplits(t *testing.T) {
	for _, split := range [][]int{{16}, {3, 13}, {1, 1, 1, 13}, {5, 5, 6}, {0, 16}} {
		s, _ := newStream(IntCWReadReady, 1, 2, 3, 4)
		s.configure(8, 2)
		for _, n := range split {
			_, err := s.read(n, 0, 0)
			require.NoError(t, err, "split %v", split)
		}
	}
}

func TestStreamInsufficientBeforeAccess(t *testing.T) {
	s, f := newStream(IntCWReadReady, 1, 2, 3, 4)
	s.configure(8, 2)
	loads, stores := f.loads, f.stores

	_, err := s.read(16, 1, 0)
	require.ErrorIs(t, err, ErrInsufficientCodewordData)
	assert.Equal(t, loads, f.loads)
	assert.Equal(t, stores, f.stores)

	_, err = s.read(3, 0, 0)
	require.NoError(t, err)
	loads = f.loads
	_, err = s.read(14, 0, 0)
	require.ErrorIs(t, err, ErrInsufficientCodewordData)
	assert.Equal(t, loads, f.loads)

	_, err = s.read(13, 0, 0)
	require.NoError(t, err)
}

func TestStreamWrite(t *testing.T) {
	s, f := newStream(IntCWWriteReady)
	s.configure(8, 2)
	stores := f.stores

	err := s.write(make([]byte, 17))
	require.ErrorIs(t, err, ErrInsufficientCodewordData)
	assert.Equal(t, stores, f.stores)

	require.NoError(t, s.write([]byte{1, 2, 3, 4, 5, 6}))
	require.NoError(t, s.write([]byte{7, 8, 9, 10, 11, 12, 13, 14, 15, 16}))
	assert.Equal(t, []uint32{0x04030201, 0x08070605, 0x0C0B0A09, 0x100F0E0D}, f.tx)
	assert.ErrorIs(t, s.write([]byte{0}), ErrInsufficientCodewordData)
}

func TestStreamTimeout(t *testing.T) {
	s, _ := newStream(0)
	s.configure(8, 1)
	_, err := s.read(4, 0, 0)
	require.ErrorIs(t, err, ErrTimeout)

	var te *TimeoutError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "codeword read ready", te.Op)
}

func TestStreamConfigureWritesCWCfg(t *testing.T) {
	l, _ := RevisionV1.layout()
	regs := map[uint32]uint32{}
	s := &codewordStream{bus: &bus{regs: mapRegs(regs), l: l}}
	s.configure(512, 4)
	assert.Equal(t, uint32(4<<16|512), regs[l.cwCfg])
	assert.Equal(t, 2048, s.available())
}

type mapRegs map[uint32]uint32

func (m mapRegs) Load32(off uint32) uint32     { return m[off] }
func (m mapRegs) Store32(off uint32, v uint32) { m[off] = v }
