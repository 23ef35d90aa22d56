package nand

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/pin"
)

// PinAllocator claims the NAND interface pins. Init calls it once.
type PinAllocator interface {
	AllocatePins() error
}

// PinAllocatorFunc adapts a function to PinAllocator.
type PinAllocatorFunc func() error

func (f PinAllocatorFunc) AllocatePins() error { return f() }

// FuncNAND is the alternate function name SoC pin drivers use for the NAND
// controller.
const FuncNAND pin.Func = "NAND"

// GPIOPins muxes the NAND bus pins through the periph.io pin registry.
//
// Example for an Allwinner H6:
//
//	pins := &nand.GPIOPins{
//		Names: []string{"PC0", "PC1", "PC2", "PC3", "PC4", "PC5", "PC6", "PC7",
//			"PC8", "PC9", "PC10", "PC11", "PC12", "PC13", "PC14", "PC15", "PC16"},
//	}
type GPIOPins struct {
	Names []string
	// Func is the alternate function selected on every pin. Zero means
	// FuncNAND.
	Func pin.Func
	// WriteProtect names an optional WP# GPIO. It is driven high so the
	// device accepts program and erase.
	WriteProtect string
}

func (g *GPIOPins) AllocatePins() error {
	fn := g.Func
	if fn == "" {
		fn = FuncNAND
	}
	for _, name := range g.Names {
		p := gpioreg.ByName(name)
		if p == nil {
			return fmt.Errorf("pin %s not found", name)
		}
		pf, ok := p.(pin.PinFunc)
		if !ok {
			return fmt.Errorf("pin %s does not support alternate functions", name)
		}
		if err := pf.SetFunc(fn); err != nil {
			return fmt.Errorf("pin %s: set %s: %w", name, fn, err)
		}
	}
	if g.WriteProtect != "" {
		wp := gpioreg.ByName(g.WriteProtect)
		if wp == nil {
			return fmt.Errorf("write protect pin %s not found", g.WriteProtect)
		}
		if err := wp.Out(gpio.High); err != nil {
			return fmt.Errorf("write protect pin %s: %w", g.WriteProtect, err)
		}
	}
	return nil
}
