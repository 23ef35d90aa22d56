package nand

import (
	"errors"
	"fmt"
)

// Bringup initializes the controller behind regs and applies the device
// configuration persisted in nv. When nv holds no configuration this
// controller can apply, the device is identified through its ONFI parameter
// page and the derived configuration is persisted for the next boot.
//
// The NVRAM words do not hold the block count. Without WithBlockCount the
// count is taken from the parameter page on every boot; when no parameter
// page can be read the controller runs without a block count, so addresses
// past the end of the device are not rejected.
func Bringup(regs, nv Registers, opts ...Option) (*Controller, error) {
	c, err := New(regs, opts...)
	if err != nil {
		return nil, err
	}
	if err := c.Init(); err != nil {
		return nil, err
	}

	p, err := Decode(LoadNVRAM(nv))
	if err == nil {
		_, err = c.check(p)
	}
	switch {
	case err == nil:
		c.log.Debug("NAND configuration loaded from NVRAM")
		if c.cfg.BlockCount == 0 {
			c.learnBlockCount()
		}
	case errors.Is(err, ErrInvalidConfig):
		c.log.Info("NVRAM configuration invalid, reading ONFI parameter page", "reason", err)
		pp, err := c.ReadParameterPage()
		if err != nil {
			return nil, err
		}
		var blocks int
		if p, blocks, err = Derive(pp); err == nil {
			_, err = c.check(p)
		}
		if err != nil {
			return nil, fmt.Errorf("derive configuration for %s %s: %w", pp.Manufacturer, pp.Model, err)
		}
		if c.cfg.BlockCount == 0 {
			c.cfg.BlockCount = blocks
		}
		if err := Persist(nv, p); err != nil {
			return nil, err
		}
		c.log.Info("NAND configuration persisted", "manufacturer", pp.Manufacturer, "model", pp.Model, "blocks", blocks)
	default:
		return nil, err
	}

	if err := c.Configure(p); err != nil {
		return nil, err
	}
	return c, nil
}

// learnBlockCount sets the block count from the parameter page.
func (c *Controller) learnBlockCount() {
	pp, err := c.ReadParameterPage()
	if err != nil {
		c.log.Warn("NAND block count unknown", "err", err)
		return
	}
	c.cfg.BlockCount = pp.BlocksPerLUN * pp.LUNs
}
