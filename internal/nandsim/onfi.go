package nandsim

import "encoding/binary"

// ONFI describes the parameter page the simulated device reports.
type ONFI struct {
	Manufacturer string
	Model        string
	// ECCBits is the required correction. Set Extended to report 0xFF in
	// the parameter page and place ECCBits and CodewordSize in an extended
	// page instead.
	ECCBits      int
	Extended     bool
	CodewordSize int
	// Copies is the number of redundant parameter pages (0 reports 0 and
	// the reader assumes 3).
	Copies      int
	TimingModes uint16
	LUNs        int
	// TProg, TBers and TR are in µs.
	TProg, TBers, TR uint16
}

// DefaultONFI is reported unless New is given another description.
var DefaultONFI = ONFI{
	Manufacturer: "SIMULATED",
	Model:        "NANDSIM",
	ECCBits:      8,
	Copies:       3,
	TimingModes:  0x1F,
	LUNs:         1,
	TProg:        600,
	TBers:        3000,
	TR:           25,
}

const paramPageSize = 256

// CRC16 is the ONFI parameter page CRC.
func CRC16(data []byte) uint16 {
	crc := uint16(0x4F4E)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x8005
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

func pad(s string, n int) []byte {
	b := []byte(s)
	for len(b) < n {
		b = append(b, ' ')
	}
	return b[:n]
}

// ParameterPage returns one 256-byte parameter page copy.
func ParameterPage(o ONFI, g Geometry) []byte {
	p := make([]byte, paramPageSize)
	le := binary.LittleEndian
	copy(p[0:], "ONFI")
	le.PutUint16(p[4:], 1<<5) // ONFI 2.3
	if g.Bus16 {
		le.PutUint16(p[6:], 1)
	}
	if o.Extended {
		le.PutUint16(p[12:], uint16(extPageSize/16))
	}
	p[14] = byte(o.Copies)
	copy(p[32:], pad(o.Manufacturer, 12))
	copy(p[44:], pad(o.Model, 20))
	p[64] = 0x2C
	le.PutUint32(p[80:], uint32(g.PageSize))
	le.PutUint16(p[84:], uint16(g.SpareSize))
	le.PutUint32(p[92:], uint32(g.PagesPerBlock))
	luns := max(o.LUNs, 1)
	le.PutUint32(p[96:], uint32(g.Blocks/luns))
	p[100] = byte(luns)
	p[101] = byte(g.ColumnCycles<<4 | g.RowCycles)
	p[102] = 1
	if o.Extended {
		p[112] = 0xFF
	} else {
		p[112] = byte(o.ECCBits)
	}
	le.PutUint16(p[129:], o.TimingModes)
	le.PutUint16(p[133:], o.TProg)
	le.PutUint16(p[135:], o.TBers)
	le.PutUint16(p[137:], o.TR)
	le.PutUint16(p[139:], 500)
	le.PutUint16(p[254:], CRC16(p[:254]))
	return p
}

// extPageSize is the extended parameter page length: header, section table
// and one ECC section.
const extPageSize = 48

// ExtendedPage returns one extended parameter page copy.
func ExtendedPage(o ONFI) []byte {
	p := make([]byte, extPageSize)
	copy(p[2:], "EPPS")
	p[16], p[17] = 2, 1 // ECC section, 16 bytes
	p[32] = byte(o.ECCBits)
	cw := o.CodewordSize
	if cw == 0 {
		cw = 512
	}
	for cw > 1 {
		p[33]++
		cw >>= 1
	}
	binary.LittleEndian.PutUint16(p[0:], CRC16(p[2:]))
	return p
}

// parameterArea is everything READ PARAMETER PAGE streams: the copies, then
// the extended page copies.
func parameterArea(o ONFI, g Geometry) []byte {
	copies := o.Copies
	if copies == 0 {
		copies = 3
	}
	var area []byte
	pp := ParameterPage(o, g)
	for i := 0; i < copies; i++ {
		area = append(area, pp...)
	}
	if o.Extended {
		ext := ExtendedPage(o)
		for i := 0; i < copies; i++ {
			area = append(area, ext...)
		}
	}
	return area
}
