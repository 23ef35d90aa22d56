package nandsim

// layout mirrors the controller register map of each revision.
type layout struct {
	mode, control, sdrTiming, bchCtrl      uint32
	intStatus, reset, eccStatus, devStatus uint32
	cwCfg, cmdBuf, dataBuf                 uint32
	strengthBits                           uint
}

var layouts = map[int]layout{
	1: {
		mode: 0x00, control: 0x04, sdrTiming: 0x08, bchCtrl: 0x0C,
		cmdBuf: 0x10, dataBuf: 0x14, cwCfg: 0x18, intStatus: 0x1C,
		reset: 0x20, eccStatus: 0x24, devStatus: 0x28,
		strengthBits: 3,
	},
	2: {
		mode: 0x00, control: 0x04, sdrTiming: 0x08, bchCtrl: 0x0C,
		intStatus: 0x10, reset: 0x14, eccStatus: 0x18, devStatus: 0x1C,
		cwCfg: 0x20, cmdBuf: 0x40, dataBuf: 0x80,
		strengthBits: 4,
	},
	3: {
		mode: 0x000, control: 0x004, sdrTiming: 0x010, bchCtrl: 0x014,
		intStatus: 0x020, reset: 0x024, eccStatus: 0x028, devStatus: 0x02C,
		cwCfg: 0x030, cmdBuf: 0x100, dataBuf: 0x200,
		strengthBits: 4,
	},
}

const regVersion = 0xFFC

// Register bits.
const (
	modeBus16 = 1 << 1
	modeECC   = 1 << 4

	intCmdEmpty     = 1 << 0
	intCWReadReady  = 1 << 1
	intCWWriteReady = 1 << 2
	intDevReady     = 1 << 3
	intECCCorrected = 1 << 4
	intECCUncorr    = 1 << 5

	resetCmdFIFO  = 1 << 0
	resetDataFIFO = 1 << 1
	resetECC      = 1 << 2
	resetAll      = 1 << 3
)

// Command FIFO entry types.
const (
	entryNOP = iota
	entryCmd
	entryAddress
	entryWaitReady
	entryWaitCycles
	entryDataRead
	entryDataWrite
	entrySpareRead
	entrySpareWrite
)

// NAND opcodes.
const (
	cmdRead1          = 0x00
	cmdRead2          = 0x30
	cmdChangeReadCol1 = 0x05
	cmdChangeReadCol2 = 0xE0
	cmdProgram1       = 0x80
	cmdProgram2       = 0x10
	cmdChangeWriteCol = 0x85
	cmdErase1         = 0x60
	cmdErase2         = 0xD0
	cmdReset          = 0xFF
	cmdReadParamPage  = 0xEC
)

// Status byte reported by the device after WAIT_FOR_READY.
const (
	statusFail  = 1 << 0
	statusReady = 1<<5 | 1<<6
	statusWP    = 1 << 7
)

func bits(v uint32, shift, width uint) uint32 { return (v >> shift) & (1<<width - 1) }
