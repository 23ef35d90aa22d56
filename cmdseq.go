package nand

import "fmt"

// EntryType is the type field of a command sequence entry.
type EntryType uint8

const (
	EntryNOP EntryType = iota
	EntryCmd
	EntryAddress
	EntryWaitReady
	EntryWaitCycles
	EntryDataRead
	EntryDataWrite
	EntrySpareRead
	EntrySpareWrite
)

var entryNames = [...]string{"NOP", "CMD", "ADDR", "WAIT_RDY", "WAIT_CYC", "DATA_RD", "DATA_WR", "SPARE_RD", "SPARE_WR"}

func (t EntryType) String() string {
	if int(t) < len(entryNames) {
		return entryNames[t]
	}
	return fmt.Sprintf("EntryType(%d)", uint8(t))
}

// Entry is one command FIFO word. DATA_* arguments count codewords, SPARE_*
// arguments count bytes.
type Entry struct {
	Type EntryType
	Arg  uint8
}

// Word is the value pushed to CMD_BUF.
func (e Entry) Word() uint32 { return uint32(e.Type)<<8 | uint32(e.Arg) }

func (e Entry) String() string { return fmt.Sprintf("%v(0x%02x)", e.Type, e.Arg) }

// NAND commands.
//
// [ONFI-4.0|Table 5.1: Command set]
const (
	nandCmdRead1          = 0x00
	nandCmdRead2          = 0x30
	nandCmdChangeReadCol1 = 0x05
	nandCmdChangeReadCol2 = 0xE0
	nandCmdProgram1       = 0x80
	nandCmdProgram2       = 0x10
	nandCmdChangeWriteCol = 0x85
	nandCmdErase1         = 0x60
	nandCmdErase2         = 0xD0
	nandCmdReset          = 0xFF
	nandCmdReadParamPage  = 0xEC
)

// maxCountArg is the largest count one DATA_* or SPARE_* entry carries.
const maxCountArg = 255

// Compiler turns page operations into command sequences. The zero value is
// not usable; fill every field from the applied configuration.
type Compiler struct {
	ColumnCycles int
	RowCycles    int
	// NaturalCodeword is the ECC codeword size, or the raw transfer unit
	// when ECC is disabled.
	NaturalCodeword int
	// SpareBytesPerCodeword is the parity each codeword stores.
	SpareBytesPerCodeword int
	// SpareOffset is the in-page byte offset of the parity of codeword 0.
	SpareOffset int
	// WaitCycles is the WAIT_CYCLE_COUNT argument after a column change.
	WaitCycles uint8
	// ColumnShift converts byte columns to bus columns (1 on a x16 bus).
	ColumnShift uint
}

// Plan describes what a generated sequence transfers.
type Plan struct {
	N             int // entries written
	CodewordSize  int
	CodewordCount int
	// Bytes is the number of bytes moved through the data FIFO, rounded up
	// to whole words.
	Bytes int
}

func roundUp4(n int) int { return (n + 3) &^ 3 }

func ceilDiv(a, b int) int { return (a + b - 1) / b }

// PageOp selects the page read or page program sequence.
type PageOp uint8

const (
	OpRead PageOp = iota
	OpProgram
)

// codewords splits numBytes into codewords. The length is first rounded up
// to whole words. With ECC enabled the natural codeword is used and the
// length rounds up to whole codewords. Without ECC the codeword shrinks to
// the largest word multiple not above the natural size that divides the
// transfer, so total%size is always zero.
func (c *Compiler) codewords(numBytes int, ecc bool) (size, count, total int) {
	total = roundUp4(numBytes)
	if total == 0 {
		return 0, 0, 0
	}
	size = c.NaturalCodeword
	if ecc {
		total = ceilDiv(total, size) * size
	} else if total%size != 0 {
		size = min(size, total) &^ 3
		for total%size != 0 {
			size -= 4
		}
	}
	return size, total / size, total
}

// RequiredLength returns the exact number of entries the page sequence for
// op emits.
func (c *Compiler) RequiredLength(op PageOp, numBytes int, ecc bool) int {
	_, count, _ := c.codewords(numBytes, ecc)
	// opcode, column, row, confirm, WAIT_RDY, data counts
	n := 3 + c.ColumnCycles + c.RowCycles + ceilDiv(count, maxCountArg)
	if ecc {
		// opcode, spare column, spare counts
		n += 1 + c.ColumnCycles + ceilDiv(count*c.SpareBytesPerCodeword, maxCountArg)
		if op == OpRead {
			n += 2 // E0h, WAIT_CYC
		}
	}
	return n
}

// seq appends entries to a caller-provided buffer. The buffer is checked for
// length before generation starts.
type seq struct {
	buf []Entry
	n   int
}

func (s *seq) add(t EntryType, arg uint8) {
	s.buf[s.n] = Entry{Type: t, Arg: arg}
	s.n++
}

func (s *seq) cmd(op uint8) { s.add(EntryCmd, op) }

// addr emits n address cycles, least significant byte first.
func (s *seq) addr(v uint32, n int) {
	for i := 0; i < n; i++ {
		s.add(EntryAddress, uint8(v>>(8*i)))
	}
}

// counts splits total into entries of at most maxCountArg.
func (s *seq) counts(t EntryType, total int) {
	for total > 0 {
		c := min(total, maxCountArg)
		s.add(t, uint8(c))
		total -= c
	}
}

func checkBuffer(dst []Entry, need int) error {
	if len(dst) < need {
		return fmt.Errorf("%w: need %d entries, have %d", ErrInsufficientBuffer, need, len(dst))
	}
	return nil
}

// spareColumn returns the bus column of the parity of the codeword that
// starts at byte column.
func (c *Compiler) spareColumn(column uint32, cwSize int) uint32 {
	first := 0
	if cwSize > 0 {
		first = int(column) / cwSize
	}
	return uint32(c.SpareOffset+first*c.SpareBytesPerCodeword) >> c.ColumnShift
}

// GeneratePageRead emits a page read of numBytes at byte column of page row.
func (c *Compiler) GeneratePageRead(dst []Entry, column, row uint32, numBytes int, ecc bool) (Plan, error) {
	if err := checkBuffer(dst, c.RequiredLength(OpRead, numBytes, ecc)); err != nil {
		return Plan{}, err
	}
	size, count, total := c.codewords(numBytes, ecc)
	s := seq{buf: dst}
	s.cmd(nandCmdRead1)
	s.addr(column>>c.ColumnShift, c.ColumnCycles)
	s.addr(row, c.RowCycles)
	s.cmd(nandCmdRead2)
	s.add(EntryWaitReady, 0)
	s.counts(EntryDataRead, count)
	if ecc {
		s.cmd(nandCmdChangeReadCol1)
		s.addr(c.spareColumn(column, size), c.ColumnCycles)
		s.cmd(nandCmdChangeReadCol2)
		s.add(EntryWaitCycles, c.WaitCycles)
		s.counts(EntrySpareRead, count*c.SpareBytesPerCodeword)
	}
	return Plan{N: s.n, CodewordSize: size, CodewordCount: count, Bytes: total}, nil
}

// GeneratePageProgram emits a page program of numBytes at byte column of
// page row.
func (c *Compiler) GeneratePageProgram(dst []Entry, column, row uint32, numBytes int, ecc bool) (Plan, error) {
	if err := checkBuffer(dst, c.RequiredLength(OpProgram, numBytes, ecc)); err != nil {
		return Plan{}, err
	}
	size, count, total := c.codewords(numBytes, ecc)
	s := seq{buf: dst}
	s.cmd(nandCmdProgram1)
	s.addr(column>>c.ColumnShift, c.ColumnCycles)
	s.addr(row, c.RowCycles)
	s.counts(EntryDataWrite, count)
	if ecc {
		s.cmd(nandCmdChangeWriteCol)
		s.addr(c.spareColumn(column, size), c.ColumnCycles)
		s.counts(EntrySpareWrite, count*c.SpareBytesPerCodeword)
	}
	s.cmd(nandCmdProgram2)
	s.add(EntryWaitReady, 0)
	return Plan{N: s.n, CodewordSize: size, CodewordCount: count, Bytes: total}, nil
}

// GenerateErase emits a block erase of the block containing page row.
func (c *Compiler) GenerateErase(dst []Entry, row uint32) (int, error) {
	need := 2 + c.RowCycles + 1
	if err := checkBuffer(dst, need); err != nil {
		return 0, err
	}
	s := seq{buf: dst}
	s.cmd(nandCmdErase1)
	s.addr(row, c.RowCycles)
	s.cmd(nandCmdErase2)
	s.add(EntryWaitReady, 0)
	return s.n, nil
}

// GenerateReset emits a device reset.
func GenerateReset(dst []Entry) (int, error) {
	if err := checkBuffer(dst, 2); err != nil {
		return 0, err
	}
	s := seq{buf: dst}
	s.cmd(nandCmdReset)
	s.add(EntryWaitReady, 0)
	return s.n, nil
}

// GenerateReadParameterPage emits READ PARAMETER PAGE followed, when column
// is not zero, by a change read column to column, then reads count
// codewords. Parameter page columns always take two cycles.
func GenerateReadParameterPage(dst []Entry, column uint32, count int, waitCycles uint8) (int, error) {
	need := 3 + ceilDiv(count, maxCountArg)
	if column != 0 {
		need += 5
	}
	if err := checkBuffer(dst, need); err != nil {
		return 0, err
	}
	s := seq{buf: dst}
	s.cmd(nandCmdReadParamPage)
	s.addr(0, 1)
	s.add(EntryWaitReady, 0)
	if column != 0 {
		s.cmd(nandCmdChangeReadCol1)
		s.addr(column, 2)
		s.cmd(nandCmdChangeReadCol2)
		s.add(EntryWaitCycles, waitCycles)
	}
	s.counts(EntryDataRead, count)
	return s.n, nil
}
