package nandsim

import "slices"

// MarkBad writes a factory bad-block marker (0x0000 at the first spare
// bytes of the first page) into block. Erase keeps it.
func (s *Sim) MarkBad(blocks ...int) {
	for _, b := range blocks {
		s.bad[b] = true
		row := uint32(b * s.geo.PagesPerBlock)
		p := s.load(row)
		p[s.geo.PageSize], p[s.geo.PageSize+1] = 0, 0
		s.pages[row] = p
	}
}

// FlipBits toggles bits of row in the array. Bit i is bit i%8 of page byte
// i/8. An ECC read corrects the flips of a codeword when the configured
// strength covers them.
func (s *Sim) FlipBits(row uint32, bitIdx ...int) {
	p := s.load(row)
	for _, i := range bitIdx {
		p[i/8] ^= 1 << (i % 8)
	}
	s.pages[row] = p
	s.flips[row] = append(s.flips[row], bitIdx...)
}

// FailProgram makes programs of row report FAIL.
func (s *Sim) FailProgram(row uint32) { s.failProgram[row] = true }

// FailErase makes erases of block report FAIL.
func (s *Sim) FailErase(block int) { s.failErase[block] = true }

// SetBusy holds R/B# low: WAIT_FOR_READY never completes.
func (s *Sim) SetBusy(busy bool) {
	s.busy = busy
	if !busy {
		s.run()
	}
}

// CorruptParameterCopy damages parameter page copy i so its CRC fails.
func (s *Sim) CorruptParameterCopy(i int) {
	if off := i*paramPageSize + 100; off < len(s.onfi) {
		s.onfi[off] ^= 0xFF
	}
}

// CorruptExtendedCopy damages extended parameter page copy i of the given
// copy count.
func (s *Sim) CorruptExtendedCopy(copies, i int) {
	if off := copies*paramPageSize + i*extPageSize + 40; off < len(s.onfi) {
		s.onfi[off] ^= 0xFF
	}
}

// Page returns page+spare bytes of row as stored in the array.
func (s *Sim) Page(row uint32) []byte { return s.load(row) }

// Ops returns the page operations confirmed so far.
func (s *Sim) Ops() []Op { return slices.Clone(s.ops) }

// ResetOps forgets recorded operations.
func (s *Sim) ResetOps() { s.ops = s.ops[:0] }

// Underflows counts DATA_BUF reads with no data in the FIFO.
func (s *Sim) Underflows() int { return s.underflow }

// Pending returns the number of queued command entries not yet executed.
func (s *Sim) Pending() int { return len(s.queue) - s.pc }

// Reg returns the last value the host stored to a configuration register.
func (s *Sim) Reg(off uint32) uint32 { return s.regs[off] }

// Mem is a plain word-addressed register window, such as the NVRAM block.
type Mem []uint32

// NewMem returns a zeroed window of n 32-bit words.
func NewMem(n int) Mem { return make(Mem, n) }

func (m Mem) Load32(off uint32) uint32 { return m[off/4] }

func (m Mem) Store32(off uint32, v uint32) { m[off/4] = v }
