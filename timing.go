package nand

import (
	"time"

	"periph.io/x/conn/v3/physic"
)

// TimingManual selects explicit Timing values instead of an ONFI mode.
const TimingManual = -1

// Timing holds the SDR bus timings programmed into SDR_TIMING.
type Timing struct {
	Setup      time.Duration // tCLS/tALS: command/address setup
	Hold       time.Duration // tCLH/tALH: command/address hold
	PulseWidth time.Duration // tWP/tRP: WE#/RE# pulse width
}

// onfiTimingModes lists the minimum SDR timings of each ONFI timing mode.
//
// [ONFI-4.0|Table 4.16: Timing Modes] tCLS, tCLH, tWP
var onfiTimingModes = [...]Timing{
	{Setup: 50 * time.Nanosecond, Hold: 20 * time.Nanosecond, PulseWidth: 50 * time.Nanosecond},
	{Setup: 25 * time.Nanosecond, Hold: 10 * time.Nanosecond, PulseWidth: 25 * time.Nanosecond},
	{Setup: 15 * time.Nanosecond, Hold: 10 * time.Nanosecond, PulseWidth: 17 * time.Nanosecond},
	{Setup: 10 * time.Nanosecond, Hold: 5 * time.Nanosecond, PulseWidth: 15 * time.Nanosecond},
	{Setup: 10 * time.Nanosecond, Hold: 5 * time.Nanosecond, PulseWidth: 12 * time.Nanosecond},
	{Setup: 10 * time.Nanosecond, Hold: 5 * time.Nanosecond, PulseWidth: 10 * time.Nanosecond},
}

const maxTimingMode = len(onfiTimingModes) - 1

// maxManualTiming is the largest value the NVRAM timing fields hold.
const maxManualTiming = 255 * time.Nanosecond

// DefaultClock is the controller core clock assumed when WithClock is not
// given.
const DefaultClock = 100 * physic.MegaHertz

// tCCS is the change-column setup time waited after 05h-E0h/85h.
//
// [ONFI-4.0|4.16] tCCS minimum when the parameter page does not say otherwise
const tCCS = 500 * time.Nanosecond

// timing returns the effective timings of d.
func (d DeviceProperties) timing() Timing {
	if d.TimingMode == TimingManual {
		return d.Timing
	}
	return onfiTimingModes[d.TimingMode]
}

func (d DeviceProperties) validateTiming() error {
	if d.TimingMode == TimingManual {
		for _, t := range []time.Duration{d.Timing.Setup, d.Timing.Hold, d.Timing.PulseWidth} {
			if t <= 0 || t > maxManualTiming || t%time.Nanosecond != 0 {
				return configErrorf("timing", "manual value %v not in [1ns,255ns]", t)
			}
		}
		return nil
	}
	if d.TimingMode < 0 || d.TimingMode > maxTimingMode {
		return configErrorf("timing mode", "%d not in [0,%d]", d.TimingMode, maxTimingMode)
	}
	if d.Timing != (Timing{}) {
		return configErrorf("timing", "manual values set with ONFI mode %d", d.TimingMode)
	}
	return nil
}

// cycles converts t to controller clock cycles, rounding up. It works from
// the frequency in Hz since Frequency.Period truncates to whole nanoseconds.
func cycles(t time.Duration, clk physic.Frequency) uint32 {
	if t <= 0 {
		return 0
	}
	hz := uint64(clk / physic.Hertz)
	if hz == 0 {
		hz = uint64(time.Second)
	}
	return uint32((uint64(t)*hz + uint64(time.Second) - 1) / uint64(time.Second))
}

// sdrTimingRegister packs setup, hold and pulse width cycles into three
// consecutive fields of the revision's width.
func sdrTimingRegister(rev ChipRevision, clk physic.Frequency, t Timing) (uint32, error) {
	l, ok := rev.layout()
	if !ok {
		return 0, configErrorf("revision", "unknown %v", rev)
	}
	limit := uint32(1)<<l.timingBits - 1
	var v uint32
	for i, d := range []time.Duration{t.Setup, t.Hold, t.PulseWidth} {
		c := cycles(d, clk)
		if c > limit {
			return 0, configErrorf("timing", "%v is %d cycles at %v, %v holds %d", d, c, clk, rev, limit)
		}
		v = setField(v, uint(i)*l.timingBits, l.timingBits, c)
	}
	return v, nil
}

// waitCycles returns the WAIT_CYCLE_COUNT argument covering tCCS.
func waitCycles(clk physic.Frequency) uint8 {
	return uint8(min(cycles(tCCS, clk), 255))
}
