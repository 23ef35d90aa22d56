package nand

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"
	"strings"
	"time"
)

const (
	paramPageSize   = 256
	maxParamCopies  = 16
	minParamCopies  = 3
	eccSeeExtended  = 0xFF
	extSectionECC   = 2
	extSectionTable = 16 // section type/length pairs at bytes 16..31
)

// rawParameterPage is the on-wire ONFI parameter page.
//
// [ONFI-4.0|5.7.1: Parameter Page Data Structure Definition]
type rawParameterPage struct {
	Signature         [4]byte // "ONFI"
	Revision          uint16
	Features          uint16
	OptionalCommands  uint16
	_                 [2]byte
	ExtPageLength     uint16 // in 16-byte units
	ParameterPages    uint8
	_                 [17]byte
	Manufacturer      [12]byte
	Model             [20]byte
	JEDECID           uint8
	DateCode          uint16
	_                 [13]byte
	DataBytesPerPage  uint32
	SpareBytesPerPage uint16
	_                 [6]byte
	PagesPerBlock     uint32
	BlocksPerLUN      uint32
	LUNs              uint8
	AddressCycles     uint8 // [7:4] column, [3:0] row
	BitsPerCell       uint8
	_                 [9]byte
	ECCBits           uint8
	_                 [15]byte
	IOCapacitance     uint8
	SDRTimingModes    uint16
	_                 [2]byte
	TProg             uint16 // µs
	TBers             uint16 // µs
	TR                uint16 // µs
	TCCS              uint16 // ns
	_                 [113]byte
	CRC               uint16
}

// ParameterPage is a validated ONFI parameter page.
type ParameterPage struct {
	Revision     uint16
	Manufacturer string
	Model        string
	JEDECID      uint8

	Bus16         bool
	PageSize      int
	SpareSize     int
	PagesPerBlock int
	BlocksPerLUN  int
	LUNs          int
	ColumnCycles  int
	RowCycles     int

	// ECCBits is the required correction per codeword. CodewordSize is set
	// only when it came from the extended parameter page.
	ECCBits      int
	CodewordSize int

	SDRTimingModes uint16
	TProg          time.Duration
	TBers          time.Duration
	TR             time.Duration

	// Copies is the number of redundant parameter pages, ExtPageLength the
	// extended page size in bytes.
	Copies        int
	ExtPageLength int
}

var errBadCopy = errors.New("bad parameter page copy")

// parseParameterPage validates and decodes one 256-byte copy.
func parseParameterPage(b []byte) (*ParameterPage, error) {
	if len(b) != paramPageSize {
		return nil, fmt.Errorf("%w: %d bytes", errBadCopy, len(b))
	}
	if string(b[:4]) != "ONFI" {
		return nil, fmt.Errorf("%w: signature %q", errBadCopy, b[:4])
	}
	if got, want := onfiCRC16(b[:paramPageSize-2]), binary.LittleEndian.Uint16(b[paramPageSize-2:]); got != want {
		return nil, fmt.Errorf("%w: crc 0x%04X, stored 0x%04X", errBadCopy, got, want)
	}
	var raw rawParameterPage
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, &raw); err != nil {
		return nil, err
	}
	copies := int(raw.ParameterPages)
	if copies == 0 {
		copies = minParamCopies
	}
	return &ParameterPage{
		Revision:       raw.Revision,
		Manufacturer:   strings.TrimSpace(string(raw.Manufacturer[:])),
		Model:          strings.TrimSpace(string(raw.Model[:])),
		JEDECID:        raw.JEDECID,
		Bus16:          raw.Features&1 != 0,
		PageSize:       int(raw.DataBytesPerPage),
		SpareSize:      int(raw.SpareBytesPerPage),
		PagesPerBlock:  int(raw.PagesPerBlock),
		BlocksPerLUN:   int(raw.BlocksPerLUN),
		LUNs:           int(raw.LUNs),
		ColumnCycles:   int(raw.AddressCycles >> 4),
		RowCycles:      int(raw.AddressCycles & 0xF),
		ECCBits:        int(raw.ECCBits),
		SDRTimingModes: raw.SDRTimingModes,
		TProg:          time.Duration(raw.TProg) * time.Microsecond,
		TBers:          time.Duration(raw.TBers) * time.Microsecond,
		TR:             time.Duration(raw.TR) * time.Microsecond,
		Copies:         copies,
		ExtPageLength:  int(raw.ExtPageLength) * 16,
	}, nil
}

// parseExtendedPage returns the ECC requirement of an extended parameter
// page.
//
// [ONFI-4.0|5.7.2: Extended Parameter Page Data Structure Definition]
func parseExtendedPage(b []byte) (eccBits, codeword int, err error) {
	if len(b) < 32 {
		return 0, 0, fmt.Errorf("%w: extended page of %d bytes", errBadCopy, len(b))
	}
	if string(b[2:6]) != "EPPS" {
		return 0, 0, fmt.Errorf("%w: extended signature %q", errBadCopy, b[2:6])
	}
	if got, want := onfiCRC16(b[2:]), binary.LittleEndian.Uint16(b[:2]); got != want {
		return 0, 0, fmt.Errorf("%w: extended crc 0x%04X, stored 0x%04X", errBadCopy, got, want)
	}
	off := 32
	for i := extSectionTable; i < 32; i += 2 {
		typ, n := b[i], int(b[i+1])*16
		if typ == 0 {
			break
		}
		if off+n > len(b) {
			return 0, 0, fmt.Errorf("%w: section %d overruns page", errBadCopy, typ)
		}
		if typ == extSectionECC && n >= 2 {
			return int(b[off]), 1 << b[off+1], nil
		}
		off += n
	}
	return 0, 0, fmt.Errorf("%w: no ECC section", errBadCopy)
}

// readParamBytes reads n bytes of the parameter page area starting at
// column.
func (c *Controller) readParamBytes(column, n int) ([]byte, error) {
	seq := c.entries(16)
	k, err := GenerateReadParameterPage(seq, uint32(column), 1, waitCycles(c.cfg.Clock))
	if err != nil {
		return nil, err
	}
	c.setECC(false)
	c.stream.configure(n, 1)
	c.push(seq[:k])
	b, err := c.stream.read(n, 0, 0)
	if err != nil {
		return nil, err
	}
	if err := c.drain(seq[:k]); err != nil {
		return nil, err
	}
	return b, nil
}

// ReadParameterPage reads the redundant ONFI parameter page copies and
// returns the first valid one. When the page defers ECC to the extended
// parameter page, that page is read too.
func (c *Controller) ReadParameterPage() (*ParameterPage, error) {
	var pp *ParameterPage
	var last error
	for i := 0; i < maxParamCopies && pp == nil; i++ {
		b, err := c.readParamBytes(i*paramPageSize, paramPageSize)
		if err != nil {
			return nil, fmt.Errorf("read parameter page copy %d: %w", i, err)
		}
		if pp, err = parseParameterPage(b); err != nil {
			c.log.Debug("ONFI parameter page copy rejected", "copy", i, "err", err)
			last = err
		}
	}
	if pp == nil {
		return nil, fmt.Errorf("%w: %d copies tried, last: %w", ErrNoValidParameterPage, maxParamCopies, last)
	}
	if pp.ECCBits != eccSeeExtended {
		return pp, nil
	}

	if pp.ExtPageLength == 0 {
		return nil, fmt.Errorf("%w: ECC deferred to an extended page of length 0", ErrNoValidParameterPage)
	}
	base := pp.Copies * paramPageSize
	for i := 0; i < pp.Copies; i++ {
		b, err := c.readParamBytes(base+i*pp.ExtPageLength, pp.ExtPageLength)
		if err != nil {
			return nil, fmt.Errorf("read extended parameter page copy %d: %w", i, err)
		}
		bits, cw, err := parseExtendedPage(b)
		if err != nil {
			c.log.Debug("ONFI extended parameter page copy rejected", "copy", i, "err", err)
			last = err
			continue
		}
		pp.ECCBits, pp.CodewordSize = bits, cw
		return pp, nil
	}
	return nil, fmt.Errorf("%w: no valid extended page: %w", ErrNoValidParameterPage, last)
}

// markerWordSize is the factory bad-block marker at the start of the spare
// area. ECC bytes follow it.
const markerWordSize = 2

// Derive turns a parameter page into properties the controller can apply,
// and returns the device block count.
func Derive(pp *ParameterPage) (Properties, int, error) {
	var p Properties
	page, ok := pageSizeClass(pp.PageSize)
	if !ok {
		return p, 0, configErrorf("onfi page size", "%d unsupported", pp.PageSize)
	}
	block, ok := blockSizeClass(pp.PagesPerBlock)
	if !ok {
		return p, 0, configErrorf("onfi pages per block", "%d unsupported", pp.PagesPerBlock)
	}
	modes := pp.SDRTimingModes & (1<<(maxTimingMode+1) - 1)
	if modes == 0 {
		modes = 1 // mode 0 is mandatory
	}
	ready := max(pp.TProg, pp.TBers, pp.TR)
	ready = min(max((ready+time.Millisecond-1)/time.Millisecond*time.Millisecond, time.Millisecond), maxReadyTimeout)

	p.Device = DeviceProperties{
		PageSize:     page,
		BlockSize:    block,
		Bus16:        pp.Bus16,
		ColumnCycles: pp.ColumnCycles,
		RowCycles:    pp.RowCycles,
		TimingMode:   bits.Len16(modes) - 1,
		ReadyTimeout: ready,
	}

	switch bitsNeeded := pp.ECCBits; {
	case bitsNeeded == 0:
	case bitsNeeded == 1:
		p.ECC = EccConfig{Algorithm: ECCHamming, CodewordSize: 512}
	default:
		class, ok := strengthClass(bitsNeeded)
		if !ok {
			return p, 0, configErrorf("onfi ecc", "%d bits beyond BCH strength", bitsNeeded)
		}
		cw := pp.CodewordSize
		if cw == 0 {
			cw = 512
		}
		p.ECC = EccConfig{Algorithm: ECCBCH, Strength: class, CodewordSize: cw}
	}
	if p.ECC.Algorithm != ECCNone {
		p.ECC.SpareOffset = pp.PageSize + markerWordSize
	}
	p.Marker = BadBlockMarker{
		Policy:  MarkerFirstTwoPages,
		Offsets: [2]uint16{uint16(pp.PageSize)},
		Count:   1,
	}
	if err := p.validate(); err != nil {
		return p, 0, err
	}
	return p, pp.BlocksPerLUN * pp.LUNs, nil
}
