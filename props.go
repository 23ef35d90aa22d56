package nand

import (
	"fmt"
	"time"
)

// PageSizeClass encodes the main-area page size.
type PageSizeClass uint8

const (
	Page512 PageSizeClass = iota
	Page2K
	Page4K
	Page8K
	Page16K
)

var pageSizes = [...]int{512, 2048, 4096, 8192, 16384}

// Bytes returns the page size in bytes, or 0 for an unknown class.
func (c PageSizeClass) Bytes() int {
	if int(c) >= len(pageSizes) {
		return 0
	}
	return pageSizes[c]
}

func pageSizeClass(n int) (PageSizeClass, bool) {
	for i, s := range pageSizes {
		if s == n {
			return PageSizeClass(i), true
		}
	}
	return 0, false
}

// BlockSizeClass encodes the number of pages per erase block.
type BlockSizeClass uint8

const (
	Block32Pages BlockSizeClass = iota
	Block64Pages
	Block128Pages
	Block256Pages
	Block512Pages
)

var blockPages = [...]int{32, 64, 128, 256, 512}

// Pages returns the pages per block, or 0 for an unknown class.
func (c BlockSizeClass) Pages() int {
	if int(c) >= len(blockPages) {
		return 0
	}
	return blockPages[c]
}

func blockSizeClass(n int) (BlockSizeClass, bool) {
	for i, s := range blockPages {
		if s == n {
			return BlockSizeClass(i), true
		}
	}
	return 0, false
}

// DeviceProperties describes the NAND device geometry and bus timing. It is
// immutable once applied to the controller.
type DeviceProperties struct {
	PageSize     PageSizeClass
	BlockSize    BlockSizeClass
	Bus16        bool
	ColumnCycles int
	RowCycles    int

	// TimingMode is an ONFI SDR timing mode (0-5) or TimingManual, in which
	// case Timing holds the explicit values.
	TimingMode   int
	Timing       Timing
	ReadyTimeout time.Duration
}

// Algorithm is the ECC algorithm.
type Algorithm uint8

const (
	ECCNone Algorithm = iota
	ECCHamming
	ECCBCH
)

func (a Algorithm) String() string {
	switch a {
	case ECCNone:
		return "none"
	case ECCHamming:
		return "hamming"
	case ECCBCH:
		return "bch"
	}
	return fmt.Sprintf("Algorithm(%d)", uint8(a))
}

// EccConfig is the ECC engine configuration. When Algorithm is ECCNone every
// other field is zero.
type EccConfig struct {
	Algorithm Algorithm
	// Strength is the BCH correction class: bits = 4 * (Strength + 1).
	Strength     uint8
	CodewordSize int
	// SpareOffset is the in-page byte offset of the first ECC byte. It is at
	// least the page size.
	SpareOffset int
}

// BCH correction classes run from 4 to 40 bits in steps of 4.
const (
	maxStrengthClass = 9
	bitsPerClass     = 4
)

// CorrectionBits returns the number of correctable bits per codeword.
func (e EccConfig) CorrectionBits() int {
	switch e.Algorithm {
	case ECCHamming:
		return 1
	case ECCBCH:
		return bitsPerClass * (int(e.Strength) + 1)
	}
	return 0
}

// strengthClass returns the smallest class correcting at least bits.
func strengthClass(bits int) (uint8, bool) {
	if bits <= 0 {
		return 0, false
	}
	c := (bits + bitsPerClass - 1) / bitsPerClass
	if c-1 > maxStrengthClass {
		return 0, false
	}
	return uint8(c - 1), true
}

// SpareBytesPerCodeword returns the parity bytes the engine stores for each
// codeword [BCH].
func (e EccConfig) SpareBytesPerCodeword() int {
	switch e.Algorithm {
	case ECCHamming:
		return 3
	case ECCBCH:
		m := 13
		if e.CodewordSize == 1024 {
			m = 14
		}
		return (e.CorrectionBits()*m + 7) / 8
	}
	return 0
}

// MarkerPolicy selects which pages of a block carry the bad-block marker.
type MarkerPolicy uint8

const (
	MarkerDisabled MarkerPolicy = iota
	MarkerFirstPage
	MarkerFirstTwoPages
	MarkerLastPage
	MarkerLastTwoPages
)

func (p MarkerPolicy) String() string {
	switch p {
	case MarkerDisabled:
		return "disabled"
	case MarkerFirstPage:
		return "first"
	case MarkerFirstTwoPages:
		return "first-two"
	case MarkerLastPage:
		return "last"
	case MarkerLastTwoPages:
		return "last-two"
	}
	return fmt.Sprintf("MarkerPolicy(%d)", uint8(p))
}

// pages returns the in-block page indexes the policy scans.
func (p MarkerPolicy) pages(pagesPerBlock int) []int {
	switch p {
	case MarkerFirstPage:
		return []int{0}
	case MarkerFirstTwoPages:
		return []int{0, 1}
	case MarkerLastPage:
		return []int{pagesPerBlock - 1}
	case MarkerLastTwoPages:
		return []int{pagesPerBlock - 2, pagesPerBlock - 1}
	}
	return nil
}

// BadBlockMarker locates the factory bad-block marker word.
type BadBlockMarker struct {
	Policy  MarkerPolicy
	Offsets [2]uint16 // in-page byte offsets
	Count   int       // offsets in use
}

// Properties is the unit persisted to NVRAM.
type Properties struct {
	Device DeviceProperties
	ECC    EccConfig
	Marker BadBlockMarker
}

// ExtraDeviceProperties is the materialized view used on every I/O.
type ExtraDeviceProperties struct {
	PageSize   int
	BlockSize  int
	WordSize   int
	Marker     BadBlockMarker
	EccEnabled bool
}

// PagesPerBlock returns BlockSize / PageSize.
func (x ExtraDeviceProperties) PagesPerBlock() int {
	if x.PageSize == 0 {
		return 0
	}
	return x.BlockSize / x.PageSize
}

// Extra derives the materialized view of p.
func (p Properties) Extra() ExtraDeviceProperties {
	x := ExtraDeviceProperties{
		PageSize:   p.Device.PageSize.Bytes(),
		WordSize:   1,
		Marker:     p.Marker,
		EccEnabled: p.ECC.Algorithm != ECCNone,
	}
	x.BlockSize = x.PageSize * p.Device.BlockSize.Pages()
	if p.Device.Bus16 {
		x.WordSize = 2
	}
	return x
}

// spareSize is the largest spare area this driver addresses. Column offsets
// beyond page+spare are rejected.
func spareSize(pageSize int) int { return pageSize / 16 }

const maxReadyTimeout = 255 * time.Millisecond

// Validate rejects every property combination apply could not program on
// the given controller revision.
func (p Properties) Validate(rev ChipRevision) error {
	l, ok := rev.layout()
	if !ok {
		return configErrorf("revision", "unknown %v", rev)
	}
	if err := p.validate(); err != nil {
		return err
	}
	if p.ECC.Algorithm == ECCBCH && uint32(p.ECC.Strength) >= 1<<l.strengthBits {
		return configErrorf("ecc strength", "class %d unsupported on %v", p.ECC.Strength, rev)
	}
	return nil
}

// validate checks everything that does not depend on the controller revision.
func (p Properties) validate() error {
	d := p.Device
	if d.PageSize.Bytes() == 0 {
		return configErrorf("page size", "unknown class %d", d.PageSize)
	}
	if d.BlockSize.Pages() == 0 {
		return configErrorf("block size", "unknown class %d", d.BlockSize)
	}
	if d.ColumnCycles < 1 || d.ColumnCycles > 4 {
		return configErrorf("column cycles", "%d not in [1,4]", d.ColumnCycles)
	}
	if d.RowCycles < 1 || d.RowCycles > 4 {
		return configErrorf("row cycles", "%d not in [1,4]", d.RowCycles)
	}
	if d.ReadyTimeout < time.Millisecond || d.ReadyTimeout > maxReadyTimeout {
		return configErrorf("ready timeout", "%v not in [1ms,255ms]", d.ReadyTimeout)
	}
	if d.ReadyTimeout%time.Millisecond != 0 {
		return configErrorf("ready timeout", "%v is not a whole number of ms", d.ReadyTimeout)
	}
	if err := d.validateTiming(); err != nil {
		return err
	}
	if err := p.ECC.validate(d.PageSize.Bytes()); err != nil {
		return err
	}
	if d.Bus16 && p.ECC.SpareOffset%2 != 0 {
		return configErrorf("ecc spare offset", "%d not word aligned on a x16 bus", p.ECC.SpareOffset)
	}
	if n := p.ECC.SpareBytesPerCodeword(); d.Bus16 && n%2 != 0 {
		return configErrorf("ecc parity", "%d bytes per codeword not word aligned on a x16 bus", n)
	}
	return p.Marker.validate(d.PageSize.Bytes())
}

func (e EccConfig) validate(pageSize int) error {
	switch e.Algorithm {
	case ECCNone:
		if e != (EccConfig{}) {
			return configErrorf("ecc", "fields set with algorithm none")
		}
		return nil
	case ECCHamming:
		if e.CodewordSize != 512 || e.Strength != 0 {
			return configErrorf("ecc", "hamming requires 512-byte codewords and no strength")
		}
	case ECCBCH:
		if e.CodewordSize != 512 && e.CodewordSize != 1024 {
			return configErrorf("ecc codeword", "%d not 512 or 1024", e.CodewordSize)
		}
		if e.Strength > maxStrengthClass {
			return configErrorf("ecc strength", "class %d above %d", e.Strength, maxStrengthClass)
		}
	default:
		return configErrorf("ecc algorithm", "unknown %d", e.Algorithm)
	}
	if pageSize%e.CodewordSize != 0 {
		return configErrorf("ecc codeword", "%d does not divide page %d", e.CodewordSize, pageSize)
	}
	if e.SpareOffset < pageSize {
		return configErrorf("ecc spare offset", "%d below page size %d", e.SpareOffset, pageSize)
	}
	parity := pageSize / e.CodewordSize * e.SpareBytesPerCodeword()
	if e.SpareOffset+parity > pageSize+spareSize(pageSize) {
		return configErrorf("ecc spare offset", "%d+%d parity bytes exceed spare area", e.SpareOffset, parity)
	}
	return nil
}

func (m BadBlockMarker) validate(pageSize int) error {
	if m.Policy > MarkerLastTwoPages {
		return configErrorf("marker policy", "unknown %d", m.Policy)
	}
	if m.Policy == MarkerDisabled {
		if m != (BadBlockMarker{}) {
			return configErrorf("marker", "locations set with policy disabled")
		}
		return nil
	}
	if m.Count < 1 || m.Count > 2 {
		return configErrorf("marker count", "%d not in [1,2]", m.Count)
	}
	for i := 0; i < 2; i++ {
		off := int(m.Offsets[i])
		if i >= m.Count {
			if off != 0 {
				return configErrorf("marker offset", "unused slot %d set", i)
			}
			continue
		}
		if off+2 > pageSize+spareSize(pageSize) {
			return configErrorf("marker offset", "%d outside page", off)
		}
	}
	return nil
}
