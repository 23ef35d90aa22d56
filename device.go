package nand

import (
	"fmt"
	"log/slog"
	"time"

	"periph.io/x/conn/v3/physic"
)

// bus is the register window of one controller together with its wait
// budgets.
type bus struct {
	regs Registers
	l    regLayout

	interval     time.Duration
	fifoTimeout  time.Duration
	readyTimeout time.Duration
}

func (b *bus) load(off uint32) uint32     { return b.regs.Load32(off) }
func (b *bus) store(off uint32, v uint32) { b.regs.Store32(off, v) }

func (b *bus) status() IntStatus { return IntStatus(b.load(b.l.intStatus)) }

// wait polls INT_STATUS until every bit of want is set, or the timeout
// expires.
func (b *bus) wait(op string, want IntStatus, timeout time.Duration) error {
	// Fast path
	s := b.status()
	if s&want == want {
		return nil
	}
	deadline := time.Now().Add(timeout)
	for {
		if b.interval > 0 {
			time.Sleep(b.interval)
		}
		s = b.status()
		if s&want == want {
			return nil
		}
		if time.Now().After(deadline) {
			return &TimeoutError{Op: op, Status: s}
		}
	}
}

// noCopy makes go vet report copies of a Controller.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Controller is one NAND flash controller instance. It is not safe for
// concurrent use and must not be copied.
type Controller struct {
	noCopy noCopy

	bus    bus
	stream codewordStream
	cfg    Config
	log    *slog.Logger

	mode uint32 // shadow of MODE

	configured  bool
	props       Properties
	extra       ExtraDeviceProperties
	comp        Compiler
	regsApplied [3]uint32 // CONTROL, SDR_TIMING, BCH_CTRL as last applied
	bbm         *badBlockMap

	seq     []Entry
	lastECC ECCResult
}

// New returns a controller driving regs. Without WithRevision the VERSION
// register is read once here.
func New(regs Registers, opts ...Option) (*Controller, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Revision == 0 {
		rev, err := DetectRevision(regs)
		if err != nil {
			return nil, err
		}
		cfg.Revision = rev
	}
	l, ok := cfg.Revision.layout()
	if !ok {
		return nil, configErrorf("revision", "unknown %v", cfg.Revision)
	}

	c := &Controller{
		cfg: cfg,
		log: cfg.Logger,
		bus: bus{
			regs:         regs,
			l:            l,
			interval:     cfg.PollInterval,
			fifoTimeout:  cfg.FIFOTimeout,
			readyTimeout: maxReadyTimeout,
		},
	}
	c.stream.bus = &c.bus
	return c, nil
}

// Revision returns the register layout in use.
func (c *Controller) Revision() ChipRevision { return c.cfg.Revision }

// Clock returns the controller core clock.
func (c *Controller) Clock() physic.Frequency { return c.cfg.Clock }

// Init claims the NAND pins, resets the controller, enables it, selects
// device 0 and resets the device. A pin allocation failure is fatal.
func (c *Controller) Init() error {
	if c.cfg.Pins != nil {
		if err := c.cfg.Pins.AllocatePins(); err != nil {
			return fmt.Errorf("NAND pin allocation failed: %w", err)
		}
	}
	c.configured = false
	if err := c.Reset(ResetAll); err != nil {
		return err
	}
	c.mode = ModeEnable
	c.bus.store(c.bus.l.mode, c.mode)
	if err := c.SelectDevice(0); err != nil {
		return err
	}
	n, err := GenerateReset(c.entries(2))
	if err != nil {
		return err
	}
	if err := c.run(c.seq[:n]); err != nil {
		return fmt.Errorf("device reset: %w", err)
	}
	c.log.Debug("NAND controller initialized", "revision", c.cfg.Revision)
	return nil
}

// Reset clears the controller blocks selected by mask and waits for the
// reset to self-clear. After ResetAll the applied configuration is written
// back.
func (c *Controller) Reset(mask ResetMask) error {
	c.bus.store(c.bus.l.reset, uint32(mask))
	deadline := time.Now().Add(c.bus.fifoTimeout)
	for c.bus.load(c.bus.l.reset) != 0 {
		if time.Now().After(deadline) {
			return &TimeoutError{Op: "reset", Status: c.bus.status()}
		}
		if c.bus.interval > 0 {
			time.Sleep(c.bus.interval)
		}
	}
	if mask&(ResetDataFIFO|ResetAll) != 0 {
		c.stream.size, c.stream.remaining, c.stream.inFlight, c.stream.latchN = 0, 0, 0, 0
	}
	if mask&ResetAll != 0 && c.mode != 0 {
		c.bus.store(c.bus.l.mode, c.mode)
		if c.configured {
			c.writeConfig()
		}
	}
	return nil
}

// maxDevices is the number of chip selects in MODE.
const maxDevices = 4

// SelectDevice asserts chip select index.
func (c *Controller) SelectDevice(index int) error {
	if index < 0 || index >= maxDevices {
		return configErrorf("chip select", "%d not in [0,%d)", index, maxDevices)
	}
	c.mode = c.mode&^ModeCSMask | uint32(index)<<ModeCSShift
	c.bus.store(c.bus.l.mode, c.mode)
	return nil
}

// rawCodeword is the transfer unit used with ECC disabled.
const rawCodeword = 512

// check reports whether p can be applied to this controller revision at the
// configured clock and returns the SDR_TIMING value it programs.
func (c *Controller) check(p Properties) (uint32, error) {
	if err := p.Validate(c.cfg.Revision); err != nil {
		return 0, err
	}
	return sdrTimingRegister(c.cfg.Revision, c.cfg.Clock, p.Device.timing())
}

// Configure validates p for this controller and programs MODE, CONTROL,
// SDR_TIMING and BCH_CTRL. It resets the bad-block map.
func (c *Controller) Configure(p Properties) error {
	timing, err := c.check(p)
	if err != nil {
		return err
	}
	l := c.bus.l
	d := p.Device

	control := setField(0, ControlColShift, 2, uint32(d.ColumnCycles-1))
	control = setField(control, ControlRowShift, 2, uint32(d.RowCycles-1))
	control = setField(control, ControlPageShift, 3, uint32(d.PageSize))
	control = setField(control, ControlBlockShift, 3, uint32(d.BlockSize))

	bch := uint32(p.ECC.Algorithm) & BCHAlgorithmMask
	if p.ECC.CodewordSize == 1024 {
		bch |= BCHCodeword1024
	}
	bch = setField(bch, BCHStrengthShift, l.strengthBits, uint32(p.ECC.Strength))
	bch = setField(bch, BCHSpareOffsetShift, 16, uint32(p.ECC.SpareOffset))

	c.props = p
	c.extra = p.Extra()
	c.regsApplied = [3]uint32{control, timing, bch}
	c.comp = Compiler{
		ColumnCycles:          d.ColumnCycles,
		RowCycles:             d.RowCycles,
		NaturalCodeword:       rawCodeword,
		SpareBytesPerCodeword: p.ECC.SpareBytesPerCodeword(),
		SpareOffset:           p.ECC.SpareOffset,
		WaitCycles:            waitCycles(c.cfg.Clock),
	}
	if c.extra.EccEnabled {
		c.comp.NaturalCodeword = p.ECC.CodewordSize
	}
	if d.Bus16 {
		c.comp.ColumnShift = 1
	}
	c.bus.readyTimeout = d.ReadyTimeout

	c.mode &^= ModeBus16 | ModeECCEnable
	if d.Bus16 {
		c.mode |= ModeBus16
	}
	c.bus.store(l.mode, c.mode)
	c.writeConfig()

	capacity := c.cfg.BadBlockCapacity
	if capacity < 0 && c.cfg.BlockCount > 0 {
		capacity = c.cfg.BlockCount
	}
	c.bbm = newBadBlockMap(capacity)
	c.configured = true

	c.log.Info("NAND configured",
		"page", c.extra.PageSize, "block", c.extra.BlockSize, "bus16", d.Bus16,
		"ecc", p.ECC.Algorithm, "eccBits", p.ECC.CorrectionBits(),
		"timingMode", d.TimingMode)
	return nil
}

func (c *Controller) writeConfig() {
	l := c.bus.l
	c.bus.store(l.control, c.regsApplied[0])
	c.bus.store(l.sdrTiming, c.regsApplied[1])
	c.bus.store(l.bchCtrl, c.regsApplied[2])
}

// Properties returns the applied configuration.
func (c *Controller) Properties() (Properties, ExtraDeviceProperties, bool) {
	return c.props, c.extra, c.configured
}

// entries returns the sequence buffer grown to at least n entries.
func (c *Controller) entries(n int) []Entry {
	if cap(c.seq) < n {
		c.seq = make([]Entry, n)
	}
	c.seq = c.seq[:cap(c.seq)]
	return c.seq
}

// push hands a sequence to the command FIFO.
func (c *Controller) push(seq []Entry) {
	for _, e := range seq {
		c.bus.store(c.bus.l.cmdBuf, e.Word())
	}
}

// drain waits for the command FIFO to run empty. Sequences that wait for
// the device get the ready/busy budget on top of the FIFO budget.
func (c *Controller) drain(seq []Entry) error {
	timeout := c.bus.fifoTimeout
	for _, e := range seq {
		if e.Type == EntryWaitReady {
			timeout += c.bus.readyTimeout
		}
	}
	return c.bus.wait("command FIFO empty", IntCmdEmpty, timeout)
}

// run pushes a sequence without data phases and waits for it to finish.
func (c *Controller) run(seq []Entry) error {
	c.push(seq)
	if err := c.drain(seq); err != nil {
		return err
	}
	return c.bus.wait("device ready", IntDevReady, c.bus.readyTimeout)
}

// setECC enables or disables the ECC engine for the next sequence and
// clears stale ECC status.
func (c *Controller) setECC(on bool) {
	mode := c.mode &^ ModeECCEnable
	if on {
		mode |= ModeECCEnable
	}
	if mode != c.mode {
		c.mode = mode
		c.bus.store(c.bus.l.mode, c.mode)
	}
	c.bus.store(c.bus.l.intStatus, uint32(IntECCCorrected|IntECCUncorrectable))
}
