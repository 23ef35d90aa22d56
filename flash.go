package nand

import (
	"bytes"
	"fmt"
)

// ECCResult is the ECC outcome of the last read.
type ECCResult struct {
	Corrected     int // bits corrected, as reported by ECC_STATUS
	Uncorrectable bool
}

// LastECC returns the ECC outcome of the most recent page read.
func (c *Controller) LastECC() ECCResult { return c.lastECC }

// DeviceStatus is the NAND status byte latched by the controller after the
// last WAIT_FOR_READY.
type DeviceStatus uint8

func (s DeviceStatus) Fail() bool { return s&DeviceStatusFail != 0 }

func (c *Controller) deviceStatus() DeviceStatus {
	return DeviceStatus(c.bus.load(c.bus.l.devStatus))
}

// page splits a physical byte address into page row and column.
func (c *Controller) page(phys int64) (row uint32, col int) {
	ps := int64(c.extra.PageSize)
	return uint32(phys / ps), int(phys % ps)
}

// Read fills buf with the data at logical byte address addr. Bad blocks are
// skipped. An uncorrectable ECC error fails the read and leaves buf
// undefined.
func (c *Controller) Read(addr int64, buf []byte) error {
	if !c.configured {
		return ErrNotConfigured
	}
	for len(buf) > 0 {
		phys, err := c.LogicalToPhysical(addr)
		if err != nil {
			return err
		}
		row, col := c.page(phys)
		n := min(len(buf), c.extra.PageSize-col)
		if err := c.readPage(row, col, buf[:n], c.extra.EccEnabled); err != nil {
			return err
		}
		buf = buf[n:]
		addr += int64(n)
	}
	return nil
}

// ReadAt implements io.ReaderAt over the logical address space.
func (c *Controller) ReadAt(p []byte, off int64) (int, error) {
	if err := c.Read(off, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Write programs buf at logical byte address addr. The target pages must be
// erased. With ECC enabled partial codewords are padded with 0xFF.
func (c *Controller) Write(addr int64, buf []byte) error {
	if !c.configured {
		return ErrNotConfigured
	}
	for len(buf) > 0 {
		phys, err := c.LogicalToPhysical(addr)
		if err != nil {
			return err
		}
		row, col := c.page(phys)
		n := min(len(buf), c.extra.PageSize-col)
		if err := c.programPage(row, col, buf[:n]); err != nil {
			return err
		}
		buf = buf[n:]
		addr += int64(n)
	}
	return nil
}

// WriteAt implements io.WriterAt over the logical address space.
func (c *Controller) WriteAt(p []byte, off int64) (int, error) {
	if err := c.Write(off, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// EraseBlock erases the logical block at byte offset blockOffset, which must
// be block aligned.
func (c *Controller) EraseBlock(blockOffset int64) error {
	if !c.configured {
		return ErrNotConfigured
	}
	if blockOffset < 0 || blockOffset%int64(c.extra.BlockSize) != 0 {
		return fmt.Errorf("%w: erase offset 0x%X is not block aligned", ErrOutOfRange, blockOffset)
	}
	phys, err := c.LogicalToPhysical(blockOffset)
	if err != nil {
		return err
	}
	row, _ := c.page(phys)
	n, err := c.comp.GenerateErase(c.entries(c.comp.RowCycles+3), row)
	if err != nil {
		return err
	}
	if err := c.run(c.seq[:n]); err != nil {
		return fmt.Errorf("erase block at row 0x%X: %w", row, err)
	}
	if st := c.deviceStatus(); st.Fail() {
		return fmt.Errorf("%w: row 0x%X (status 0x%02x)", ErrEraseFailed, row, uint8(st))
	}
	return nil
}

// span widens [col, col+n) to the transfer unit of the operation.
func (c *Controller) span(col, n int, ecc bool) (start, end int) {
	if ecc {
		cw := c.comp.NaturalCodeword
		start = col - col%cw
		end = ceilDiv(col+n, cw) * cw
		return start, end
	}
	return col &^ 3, roundUp4(col + n)
}

// readPage reads len(dst) bytes at col of page row. Bytes outside the
// requested range are read and discarded.
func (c *Controller) readPage(row uint32, col int, dst []byte, ecc bool) error {
	start, end := c.span(col, len(dst), ecc)
	if end > c.extra.PageSize+spareSize(c.extra.PageSize) || (ecc && end > c.extra.PageSize) {
		return fmt.Errorf("%w: column %d+%d", ErrOutOfRange, col, len(dst))
	}
	seq := c.entries(c.comp.RequiredLength(OpRead, end-start, ecc))
	plan, err := c.comp.GeneratePageRead(seq, uint32(start), row, end-start, ecc)
	if err != nil {
		return err
	}

	c.setECC(ecc)
	c.stream.configure(plan.CodewordSize, plan.CodewordCount)
	c.push(seq[:plan.N])
	data, err := c.stream.read(len(dst), col-start, plan.Bytes-(col-start)-len(dst))
	if err != nil {
		return fmt.Errorf("read row 0x%X: %w", row, err)
	}
	if err := c.drain(seq[:plan.N]); err != nil {
		return fmt.Errorf("read row 0x%X: %w", row, err)
	}
	copy(dst, data)

	if ecc {
		return c.checkECC(row)
	}
	return nil
}

func (c *Controller) checkECC(row uint32) error {
	st := c.bus.status()
	c.lastECC = ECCResult{
		Corrected:     int(c.bus.load(c.bus.l.eccStatus) & 0xFF),
		Uncorrectable: st.ECCUncorrectable(),
	}
	if c.lastECC.Uncorrectable {
		return fmt.Errorf("%w: row 0x%X", ErrUncorrectable, row)
	}
	if st.ECCCorrected() {
		c.log.Warn("NAND corrected ECC error", "row", row, "bits", c.lastECC.Corrected)
	}
	return nil
}

// programPage programs src at col of page row, padding to the transfer
// unit with 0xFF.
func (c *Controller) programPage(row uint32, col int, src []byte) error {
	ecc := c.extra.EccEnabled
	start, end := c.span(col, len(src), ecc)
	if end > c.extra.PageSize {
		return fmt.Errorf("%w: column %d+%d", ErrOutOfRange, col, len(src))
	}
	seq := c.entries(c.comp.RequiredLength(OpProgram, end-start, ecc))
	plan, err := c.comp.GeneratePageProgram(seq, uint32(start), row, end-start, ecc)
	if err != nil {
		return err
	}

	data := src
	if start != col || end != col+len(src) {
		data = bytes.Repeat([]byte{0xFF}, end-start)
		copy(data[col-start:], src)
	}

	c.setECC(ecc)
	c.stream.configure(plan.CodewordSize, plan.CodewordCount)
	c.push(seq[:plan.N])
	if err := c.stream.write(data); err != nil {
		return fmt.Errorf("program row 0x%X: %w", row, err)
	}
	if err := c.drain(seq[:plan.N]); err != nil {
		return fmt.Errorf("program row 0x%X: %w", row, err)
	}
	if st := c.deviceStatus(); st.Fail() {
		return fmt.Errorf("%w: row 0x%X (status 0x%02x)", ErrProgramFailed, row, uint8(st))
	}
	return nil
}
