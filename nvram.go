package nand

import (
	"fmt"
	"time"
)

// NVRAM is the persisted boot configuration: four 32-bit words in the
// platform's non-volatile register block.
//
//	word0 [0] valid  [3:1] page class  [6:4] block class  [7] bus16
//	      [9:8] col cycles-1  [11:10] row cycles-1  [14:12] timing mode
//	      [15] manual timing  [18:16] marker policy  [20:19] marker count
//	      [28:21] ready timeout (ms)
//	word1 [15:0] marker offset 0  [31:16] marker offset 1
//	word2 [1:0] ecc algorithm  [5:2] strength class  [6] 1024-byte codeword
//	      [31:16] spare offset
//	word3 [7:0] setup ns  [15:8] hold ns  [23:16] pulse width ns (manual only)
type NVRAM [4]uint32

const nvValid = 1 << 0

// LoadNVRAM reads the four configuration words from nv.
func LoadNVRAM(nv Registers) NVRAM {
	var w NVRAM
	for i := range w {
		w[i] = nv.Load32(uint32(i) * 4)
	}
	return w
}

// Store writes the configuration words to nv.
func (w NVRAM) Store(nv Registers) {
	for i, v := range w {
		nv.Store32(uint32(i)*4, v)
	}
}

// Encode packs p. p must be valid; Encode does not check it.
func Encode(p Properties) NVRAM {
	var w NVRAM
	d := p.Device

	w0 := uint32(nvValid)
	w0 = setField(w0, 1, 3, uint32(d.PageSize))
	w0 = setField(w0, 4, 3, uint32(d.BlockSize))
	if d.Bus16 {
		w0 |= 1 << 7
	}
	w0 = setField(w0, 8, 2, uint32(d.ColumnCycles-1))
	w0 = setField(w0, 10, 2, uint32(d.RowCycles-1))
	if d.TimingMode == TimingManual {
		w0 |= 1 << 15
		w[3] = setField(w[3], 0, 8, uint32(d.Timing.Setup/time.Nanosecond))
		w[3] = setField(w[3], 8, 8, uint32(d.Timing.Hold/time.Nanosecond))
		w[3] = setField(w[3], 16, 8, uint32(d.Timing.PulseWidth/time.Nanosecond))
	} else {
		w0 = setField(w0, 12, 3, uint32(d.TimingMode))
	}
	w0 = setField(w0, 16, 3, uint32(p.Marker.Policy))
	w0 = setField(w0, 19, 2, uint32(p.Marker.Count))
	w0 = setField(w0, 21, 8, uint32(d.ReadyTimeout/time.Millisecond))
	w[0] = w0

	w[1] = uint32(p.Marker.Offsets[0]) | uint32(p.Marker.Offsets[1])<<16

	e := p.ECC
	w2 := setField(0, 0, 2, uint32(e.Algorithm))
	w2 = setField(w2, 2, 4, uint32(e.Strength))
	if e.CodewordSize == 1024 {
		w2 |= 1 << 6
	}
	w2 = setField(w2, 16, 16, uint32(e.SpareOffset))
	w[2] = w2
	return w
}

// Decode unpacks w. It returns an error wrapping ErrInvalidConfig when the
// valid bit is clear or any field is out of range.
func Decode(w NVRAM) (Properties, error) {
	var p Properties
	if w[0]&nvValid == 0 {
		return p, configErrorf("nvram", "valid bit clear")
	}
	w0 := w[0]
	p.Device = DeviceProperties{
		PageSize:     PageSizeClass(field(w0, 1, 3)),
		BlockSize:    BlockSizeClass(field(w0, 4, 3)),
		Bus16:        w0&(1<<7) != 0,
		ColumnCycles: int(field(w0, 8, 2)) + 1,
		RowCycles:    int(field(w0, 10, 2)) + 1,
		TimingMode:   int(field(w0, 12, 3)),
		ReadyTimeout: time.Duration(field(w0, 21, 8)) * time.Millisecond,
	}
	if w0&(1<<15) != 0 {
		if p.Device.TimingMode != 0 {
			return p, configErrorf("nvram", "timing mode %d set with manual timing", p.Device.TimingMode)
		}
		p.Device.TimingMode = TimingManual
		p.Device.Timing = Timing{
			Setup:      time.Duration(field(w[3], 0, 8)) * time.Nanosecond,
			Hold:       time.Duration(field(w[3], 8, 8)) * time.Nanosecond,
			PulseWidth: time.Duration(field(w[3], 16, 8)) * time.Nanosecond,
		}
	} else if w[3] != 0 {
		return p, configErrorf("nvram", "manual timing word 0x%08X set with ONFI mode", w[3])
	}
	if w0>>29 != 0 {
		return p, configErrorf("nvram", "reserved bits set in word0 0x%08X", w0)
	}

	p.Marker = BadBlockMarker{
		Policy:  MarkerPolicy(field(w0, 16, 3)),
		Count:   int(field(w0, 19, 2)),
		Offsets: [2]uint16{uint16(w[1]), uint16(w[1] >> 16)},
	}

	w2 := w[2]
	p.ECC = EccConfig{
		Algorithm:   Algorithm(field(w2, 0, 2)),
		Strength:    uint8(field(w2, 2, 4)),
		SpareOffset: int(field(w2, 16, 16)),
	}
	if field(w2, 7, 9) != 0 {
		return p, configErrorf("nvram", "reserved bits set in word2 0x%08X", w2)
	}
	switch {
	case p.ECC.Algorithm == ECCNone:
		if w2&(1<<6) != 0 {
			return p, configErrorf("nvram", "codeword size set with ecc disabled")
		}
	case w2&(1<<6) != 0:
		p.ECC.CodewordSize = 1024
	default:
		p.ECC.CodewordSize = 512
	}

	if err := p.validate(); err != nil {
		return p, err
	}
	return p, nil
}

// Persist encodes p, stores it in nv and reads it back. A read-back that does
// not decode to p is an invariant violation reported as ErrRoundTrip.
func Persist(nv Registers, p Properties) error {
	if err := p.validate(); err != nil {
		return err
	}
	w := Encode(p)
	w.Store(nv)
	got, err := Decode(LoadNVRAM(nv))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRoundTrip, err)
	}
	if got != p {
		return fmt.Errorf("%w: stored %+v, read back %+v", ErrRoundTrip, p, got)
	}
	return nil
}
