// Package nandsim models a NAND flash controller register block together
// with the NAND array behind it. Commands pushed to CMD_BUF execute
// synchronously until they need data the host has not written yet.
package nandsim

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"slices"
)

// Geometry is the simulated array.
type Geometry struct {
	PageSize      int
	SpareSize     int
	PagesPerBlock int
	Blocks        int
	Bus16         bool
	ColumnCycles  int
	RowCycles     int
}

// SmallSLC is a 2 KiB page, 64 page block, 64 block device.
var SmallSLC = Geometry{
	PageSize:      2048,
	SpareSize:     64,
	PagesPerBlock: 64,
	Blocks:        64,
	ColumnCycles:  2,
	RowCycles:     3,
}

// Op is a page operation confirmed by the device.
type Op struct {
	Cmd    byte // 0x30 read, 0x10 program, 0xD0 erase
	Row    uint32
	Column int // byte column
}

// Sim is a simulated controller. It implements the driver's register
// window. It is not safe for concurrent use.
type Sim struct {
	rev  int
	l    layout
	geo  Geometry
	onfi []byte

	regs map[uint32]uint32

	pages map[uint32][]byte // programmed pages, page+spare bytes
	flips map[uint32][]int  // injected bit flips per row, bit index in page

	queue   []uint32
	pc      int
	cwLeft  int // codewords left in the DATA_WRITE entry being served
	readQ   []byte
	writeQ  []byte
	status  uint32 // sticky INT_STATUS bits
	eccBits uint32
	devStat uint32

	// device state
	cmd     byte
	addr    []byte
	column  int
	row     uint32
	pageReg []byte
	inParam bool
	opCol   int   // column latched with the 80h address
	cwStart []int // columns of codewords programmed since 80h

	bad         map[int]bool
	failProgram map[uint32]bool
	failErase   map[int]bool
	busy        bool

	ops       []Op
	underflow int
}

// Option configures a Sim.
type Option func(*Sim)

// WithONFI replaces DefaultONFI.
func WithONFI(o ONFI) Option {
	return func(s *Sim) { s.onfi = parameterArea(o, s.geo) }
}

// New returns a controller of revision rev (1, 2 or 3) driving an erased
// array of geometry g.
func New(rev int, g Geometry, opts ...Option) (*Sim, error) {
	l, ok := layouts[rev]
	if !ok {
		return nil, fmt.Errorf("nandsim: unknown revision %d", rev)
	}
	s := &Sim{
		rev:         rev,
		l:           l,
		geo:         g,
		regs:        map[uint32]uint32{},
		pages:       map[uint32][]byte{},
		flips:       map[uint32][]int{},
		bad:         map[int]bool{},
		failProgram: map[uint32]bool{},
		failErase:   map[int]bool{},
	}
	s.onfi = parameterArea(DefaultONFI, g)
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Geometry returns the simulated array geometry.
func (s *Sim) Geometry() Geometry { return s.geo }

func (s *Sim) Load32(off uint32) uint32 {
	switch off {
	case regVersion:
		return uint32(s.rev)<<8 | 0x01
	case s.l.intStatus:
		return s.intStatus()
	case s.l.reset:
		return 0
	case s.l.eccStatus:
		return s.eccBits
	case s.l.devStatus:
		return s.devStat
	case s.l.dataBuf:
		return s.popWord()
	case s.l.cmdBuf:
		return 0
	}
	return s.regs[off]
}

func (s *Sim) Store32(off uint32, v uint32) {
	switch off {
	case s.l.intStatus:
		s.status &^= v & (intECCCorrected | intECCUncorr)
	case s.l.reset:
		s.reset(v)
	case s.l.cmdBuf:
		s.queue = append(s.queue, v)
		s.run()
	case s.l.dataBuf:
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], v)
		s.writeQ = append(s.writeQ, b[:]...)
		s.run()
	default:
		s.regs[off] = v
	}
}

func (s *Sim) intStatus() uint32 {
	st := s.status
	if s.pc == len(s.queue) {
		st |= intCmdEmpty
	}
	if len(s.readQ) > 0 {
		st |= intCWReadReady
	}
	if s.cwLeft > 0 && len(s.writeQ) < s.cwSize() {
		st |= intCWWriteReady
	}
	if !s.busy {
		st |= intDevReady
	}
	return st
}

func (s *Sim) popWord() uint32 {
	if len(s.readQ) < 4 {
		s.underflow++
		s.readQ = s.readQ[:0]
		return 0xFFFFFFFF
	}
	v := binary.LittleEndian.Uint32(s.readQ)
	s.readQ = s.readQ[4:]
	return v
}

func (s *Sim) reset(mask uint32) {
	if mask&(resetCmdFIFO|resetAll) != 0 {
		s.queue, s.pc, s.cwLeft = nil, 0, 0
	}
	if mask&(resetDataFIFO|resetAll) != 0 {
		s.readQ, s.writeQ = nil, nil
	}
	if mask&(resetECC|resetAll) != 0 {
		s.status &^= intECCCorrected | intECCUncorr
		s.eccBits = 0
	}
	if mask&resetAll != 0 {
		clear(s.regs)
		s.devStat = 0
		s.cmd, s.addr, s.inParam = 0, nil, false
	}
}

func (s *Sim) reg(name uint32) uint32 { return s.regs[name] }

func (s *Sim) cwSize() int { return int(s.reg(s.l.cwCfg) & 0xFFFF) }

func (s *Sim) eccOn() bool {
	return s.reg(s.l.mode)&modeECC != 0 && bits(s.reg(s.l.bchCtrl), 0, 2) != 0
}

// correction returns the bits per codeword the configured engine corrects.
func (s *Sim) correction() int {
	bch := s.reg(s.l.bchCtrl)
	switch bits(bch, 0, 2) {
	case 1:
		return 1
	case 2:
		return 4 * (int(bits(bch, 3, s.l.strengthBits)) + 1)
	}
	return 0
}

// run executes queued entries until the queue is empty or an entry waits
// for the host.
func (s *Sim) run() {
	for s.pc < len(s.queue) {
		w := s.queue[s.pc]
		typ, arg := int(w>>8&0xFF), int(w&0xFF)
		if !s.exec(typ, arg) {
			return
		}
		s.pc++
	}
	s.queue, s.pc = s.queue[:0], 0
}

// exec runs one entry and reports whether it completed.
func (s *Sim) exec(typ, arg int) bool {
	switch typ {
	case entryNOP, entryWaitCycles:
	case entryCmd:
		s.command(byte(arg))
	case entryAddress:
		s.addr = append(s.addr, byte(arg))
	case entryWaitReady:
		if s.busy {
			return false
		}
	case entryDataRead:
		s.latchAddress()
		for i := 0; i < arg; i++ {
			s.readCodeword()
		}
	case entrySpareRead:
		s.latchAddress()
		s.column += arg
	case entryDataWrite:
		s.latchAddress()
		if s.cwLeft == 0 {
			s.cwLeft = arg
		}
		for s.cwLeft > 0 {
			n := s.cwSize()
			if n == 0 || len(s.writeQ) < n {
				return false
			}
			s.cwStart = append(s.cwStart, s.column)
			s.put(s.writeQ[:n])
			s.writeQ = s.writeQ[n:]
			s.cwLeft--
		}
	case entrySpareWrite:
		s.latchAddress()
		s.writeParity(arg)
	}
	return true
}

// latchAddress applies address cycles collected after a column change.
func (s *Sim) latchAddress() {
	if len(s.addr) == 0 {
		return
	}
	switch s.cmd {
	case cmdProgram1:
		s.decodeColumnRow()
		s.opCol = s.column
	case cmdChangeWriteCol:
		s.column = s.busColumn(s.addr)
	}
	s.addr = s.addr[:0]
}

func (s *Sim) colCycles() int { return int(bits(s.reg(s.l.control), 0, 2)) + 1 }

func (s *Sim) busColumn(a []byte) int {
	var col int
	for i, b := range a {
		col |= int(b) << (8 * i)
	}
	if s.reg(s.l.mode)&modeBus16 != 0 && !s.inParam {
		col *= 2
	}
	return col
}

func (s *Sim) decodeColumnRow() {
	n := min(s.colCycles(), len(s.addr))
	s.column = s.busColumn(s.addr[:n])
	s.row = 0
	for i, b := range s.addr[n:] {
		s.row |= uint32(b) << (8 * i)
	}
}

func (s *Sim) command(op byte) {
	switch op {
	case cmdRead1, cmdChangeReadCol1, cmdErase1:
		s.addr = s.addr[:0]
	case cmdRead2:
		s.decodeColumnRow()
		s.inParam = false
		s.pageReg = s.load(s.row)
		s.ops = append(s.ops, Op{Cmd: op, Row: s.row, Column: s.column})
		s.eccBits = 0
		s.latchStatus(false)
	case cmdChangeReadCol2:
		s.column = s.busColumn(s.addr)
		s.addr = s.addr[:0]
	case cmdProgram1:
		s.addr = s.addr[:0]
		s.pageReg = bytes.Repeat([]byte{0xFF}, s.pageBytes())
		s.cwStart = s.cwStart[:0]
		s.inParam = false
	case cmdChangeWriteCol:
		s.latchAddress()
		s.addr = s.addr[:0]
	case cmdProgram2:
		s.latchAddress()
		s.ops = append(s.ops, Op{Cmd: op, Row: s.row, Column: s.opCol})
		s.latchStatus(s.program())
	case cmdErase2:
		s.row = 0
		for i, b := range s.addr {
			s.row |= uint32(b) << (8 * i)
		}
		s.addr = s.addr[:0]
		s.ops = append(s.ops, Op{Cmd: op, Row: s.row})
		s.latchStatus(s.erase(int(s.row) / s.geo.PagesPerBlock))
	case cmdReset:
		s.addr = s.addr[:0]
		s.inParam = false
		s.latchStatus(false)
	case cmdReadParamPage:
		s.addr = s.addr[:0]
		s.inParam = true
		s.pageReg = slices.Clone(s.onfi)
		s.column = 0
		s.latchStatus(false)
	}
	s.cmd = op
}

func (s *Sim) latchStatus(fail bool) {
	s.devStat = statusReady | statusWP
	if fail {
		s.devStat |= statusFail
	}
}

func (s *Sim) pageBytes() int { return s.geo.PageSize + s.geo.SpareSize }

func (s *Sim) rows() uint32 { return uint32(s.geo.Blocks * s.geo.PagesPerBlock) }

// load returns a copy of row, erased when never programmed.
func (s *Sim) load(row uint32) []byte {
	if p, ok := s.pages[row]; ok {
		return slices.Clone(p)
	}
	p := bytes.Repeat([]byte{0xFF}, s.pageBytes())
	if s.bad[int(row)/s.geo.PagesPerBlock] && int(row)%s.geo.PagesPerBlock == 0 {
		p[s.geo.PageSize], p[s.geo.PageSize+1] = 0, 0
	}
	return p
}

func (s *Sim) readCodeword() {
	n := s.cwSize()
	cw := make([]byte, n)
	for i := range cw {
		cw[i] = 0xFF
		if c := s.column + i; c < len(s.pageReg) {
			cw[i] = s.pageReg[c]
		}
	}
	if s.eccOn() && !s.inParam {
		s.correct(cw)
	}
	s.readQ = append(s.readQ, cw...)
	s.column += n
}

// correct undoes injected flips inside the codeword when the engine can.
func (s *Sim) correct(cw []byte) {
	var hits []int
	for _, bit := range s.flips[s.row] {
		if b := bit / 8; b >= s.column && b < s.column+len(cw) {
			hits = append(hits, bit)
		}
	}
	if len(hits) == 0 {
		return
	}
	if len(hits) > s.correction() {
		s.status |= intECCUncorr
		return
	}
	for _, bit := range hits {
		cw[bit/8-s.column] ^= 1 << (bit % 8)
	}
	s.eccBits += uint32(len(hits))
	s.status |= intECCCorrected
}

func (s *Sim) put(data []byte) {
	for i, b := range data {
		if c := s.column + i; c < len(s.pageReg) {
			s.pageReg[c] = b
		}
	}
	s.column += len(data)
}

// writeParity stores n parity bytes for the codewords programmed since 80h.
func (s *Sim) writeParity(n int) {
	if len(s.cwStart) == 0 {
		s.column += n
		return
	}
	per := n / len(s.cwStart)
	size := s.cwSize()
	for _, start := range s.cwStart {
		var sum byte
		for c := start; c < start+size && c < len(s.pageReg); c++ {
			sum += s.pageReg[c]
		}
		for i := 0; i < per; i++ {
			s.put([]byte{sum ^ byte(i)})
		}
	}
	s.cwStart = s.cwStart[:0]
}

// program ANDs the page register into the array and reports failure.
func (s *Sim) program() bool {
	if s.row >= s.rows() || s.failProgram[s.row] {
		return true
	}
	p := s.load(s.row)
	for i := range p {
		p[i] &= s.pageReg[i]
	}
	s.pages[s.row] = p
	return false
}

func (s *Sim) erase(block int) bool {
	if block >= s.geo.Blocks || s.failErase[block] {
		return true
	}
	for pg := 0; pg < s.geo.PagesPerBlock; pg++ {
		row := uint32(block*s.geo.PagesPerBlock + pg)
		delete(s.pages, row)
		delete(s.flips, row)
	}
	return false
}
