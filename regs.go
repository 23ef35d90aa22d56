package nand

import (
	"fmt"
	"strings"
)

// Registers is a 32-bit register window. Offsets are in bytes from the start
// of the window.
type Registers interface {
	Load32(off uint32) uint32
	Store32(off uint32, v uint32)
}

// ChipRevision selects the controller register layout. It is chosen once at
// bring-up and passed to New with WithRevision.
type ChipRevision int

const (
	RevisionV1 ChipRevision = iota + 1
	RevisionV2
	RevisionV3
)

func (r ChipRevision) String() string {
	switch r {
	case RevisionV1, RevisionV2, RevisionV3:
		return fmt.Sprintf("v%d", int(r))
	}
	return fmt.Sprintf("ChipRevision(%d)", int(r))
}

// regVersion is at the same offset on every revision.
const regVersion = 0xFFC

// WindowSize is the size of the controller register window.
const WindowSize = 0x1000

// DetectRevision reads the VERSION register. Call it once; the result is
// passed explicitly from then on.
func DetectRevision(regs Registers) (ChipRevision, error) {
	v := regs.Load32(regVersion)
	rev := ChipRevision((v >> 8) & 0xFF)
	if _, ok := layouts[rev]; !ok {
		return 0, fmt.Errorf("unknown controller version 0x%08X", v)
	}
	return rev, nil
}

// regLayout is the per-revision register offset table.
type regLayout struct {
	mode      uint32
	control   uint32
	sdrTiming uint32
	bchCtrl   uint32
	intStatus uint32
	reset     uint32
	eccStatus uint32
	devStatus uint32
	cwCfg     uint32
	cmdBuf    uint32
	dataBuf   uint32

	timingBits   uint // width of each SDR_TIMING field
	strengthBits uint // width of BCH_CTRL strength field
}

var layouts = map[ChipRevision]regLayout{
	RevisionV1: {
		mode: 0x00, control: 0x04, sdrTiming: 0x08, bchCtrl: 0x0C,
		cmdBuf: 0x10, dataBuf: 0x14, cwCfg: 0x18, intStatus: 0x1C,
		reset: 0x20, eccStatus: 0x24, devStatus: 0x28,
		timingBits: 4, strengthBits: 3,
	},
	RevisionV2: {
		mode: 0x00, control: 0x04, sdrTiming: 0x08, bchCtrl: 0x0C,
		intStatus: 0x10, reset: 0x14, eccStatus: 0x18, devStatus: 0x1C,
		cwCfg: 0x20, cmdBuf: 0x40, dataBuf: 0x80,
		timingBits: 6, strengthBits: 4,
	},
	RevisionV3: {
		mode: 0x000, control: 0x004, sdrTiming: 0x010, bchCtrl: 0x014,
		intStatus: 0x020, reset: 0x024, eccStatus: 0x028, devStatus: 0x02C,
		cwCfg: 0x030, cmdBuf: 0x100, dataBuf: 0x200,
		timingBits: 8, strengthBits: 4,
	},
}

func (r ChipRevision) layout() (regLayout, bool) {
	l, ok := layouts[r]
	return l, ok
}

// MODE register fields.
const (
	ModeEnable    = 1 << 0
	ModeBus16     = 1 << 1
	ModeCSShift   = 2
	ModeCSMask    = 0x3 << ModeCSShift
	ModeECCEnable = 1 << 4
)

// CONTROL register fields.
const (
	ControlColShift   = 0
	ControlRowShift   = 2
	ControlPageShift  = 4
	ControlBlockShift = 7
)

// BCH_CTRL register fields.
const (
	BCHAlgorithmMask    = 0x3
	BCHCodeword1024     = 1 << 2
	BCHStrengthShift    = 3
	BCHSpareOffsetShift = 16
)

// CW_CFG register fields.
const (
	CWSizeMask   = 0xFFFF
	CWCountShift = 16
)

// ResetMask selects the controller blocks cleared by Reset.
type ResetMask uint32

const (
	ResetCmdFIFO  ResetMask = 1 << 0
	ResetDataFIFO ResetMask = 1 << 1
	ResetECC      ResetMask = 1 << 2
	ResetAll      ResetMask = 1 << 3
)

// DeviceStatusFail is bit 0 of the status byte latched in DEV_STATUS.
const DeviceStatusFail = 1 << 0

// IntStatus is the controller interrupt status register.
//
//	Bits| Name
//	----+-------------------------------------------
//	5   | ECC_UNC: uncorrectable error in last read (W1C)
//	4   | ECC_COR: corrected error in last read (W1C)
//	3   | DEV_READY: R/B# high
//	2   | CW_WRITE_READY: FIFO accepts one codeword
//	1   | CW_READ_READY: one codeword available
//	0   | CMD_EMPTY: command FIFO drained
type IntStatus uint32

const (
	IntCmdEmpty         IntStatus = 1 << 0
	IntCWReadReady      IntStatus = 1 << 1
	IntCWWriteReady     IntStatus = 1 << 2
	IntDevReady         IntStatus = 1 << 3
	IntECCCorrected     IntStatus = 1 << 4
	IntECCUncorrectable IntStatus = 1 << 5
)

func (s IntStatus) CmdEmpty() bool         { return s&IntCmdEmpty != 0 }
func (s IntStatus) CWReadReady() bool      { return s&IntCWReadReady != 0 }
func (s IntStatus) CWWriteReady() bool     { return s&IntCWWriteReady != 0 }
func (s IntStatus) DevReady() bool         { return s&IntDevReady != 0 }
func (s IntStatus) ECCCorrected() bool     { return s&IntECCCorrected != 0 }
func (s IntStatus) ECCUncorrectable() bool { return s&IntECCUncorrectable != 0 }

func (s IntStatus) String() string {
	b := fmt.Sprintf("%06b", uint32(s)&0x3F)
	names := []string{}
	if s.ECCUncorrectable() {
		names = append(names, "ECC_UNC")
	}
	if s.ECCCorrected() {
		names = append(names, "ECC_COR")
	}
	if s.DevReady() {
		names = append(names, "DEV_READY")
	}
	if s.CWWriteReady() {
		names = append(names, "CW_WR")
	}
	if s.CWReadReady() {
		names = append(names, "CW_RD")
	}
	if s.CmdEmpty() {
		names = append(names, "CMD_EMPTY")
	}
	if len(names) == 0 {
		return b
	}
	return b + " " + strings.Join(names, ",")
}

// field extracts width bits at shift.
func field(v uint32, shift, width uint) uint32 {
	return (v >> shift) & (1<<width - 1)
}

// setField returns v with width bits at shift replaced by f.
func setField(v uint32, shift, width uint, f uint32) uint32 {
	mask := uint32(1<<width-1) << shift
	return v&^mask | (f<<shift)&mask
}
