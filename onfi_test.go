package nand

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/gentam/nand/internal/nandsim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestONFICRC16(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want uint16
	}{
		{"empty is seed", nil, 0x4F4E},
		{"signature and zeros", append([]byte("ONFI"), make([]byte, 250)...), 0x6917},
		{"check string", []byte("123456789"), 0x2771},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := onfiCRC16(tt.data)
			if got != tt.want {
				t.Errorf("onfiCRC16() = 0x%04X, want 0x%04X", got, tt.want)
			}
		})
	}
}

func TestParseParameterPage(t *testing.T) {
	g := nandsim.SmallSLC
	b := nandsim.ParameterPage(nandsim.DefaultONFI, g)

	pp, err := parseParameterPage(b)
	require.NoError(t, err)
	assert.Equal(t, "SIMULATED", pp.Manufacturer)
	assert.Equal(t, "NANDSIM", pp.Model)
	assert.Equal(t, 2048, pp.PageSize)
	assert.Equal(t, 64, pp.SpareSize)
	assert.Equal(t, 64, pp.PagesPerBlock)
	assert.Equal(t, 64, pp.BlocksPerLUN)
	assert.Equal(t, 1, pp.LUNs)
	assert.Equal(t, 2, pp.ColumnCycles)
	assert.Equal(t, 3, pp.RowCycles)
	assert.Equal(t, 8, pp.ECCBits)
	assert.Equal(t, 3, pp.Copies)
	assert.Equal(t, 3*time.Millisecond, pp.TBers)
	assert.False(t, pp.Bus16)

	bad := append([]byte(nil), b...)
	bad[0] = 'X'
	_, err = parseParameterPage(bad)
	assert.ErrorIs(t, err, errBadCopy)

	bad = append([]byte(nil), b...)
	bad[80] ^= 1
	_, err = parseParameterPage(bad)
	assert.ErrorIs(t, err, errBadCopy)

	_, err = parseParameterPage(b[:128])
	assert.ErrorIs(t, err, errBadCopy)
}

func TestParseExtendedPage(t *testing.T) {
	ext := nandsim.ExtendedPage(nandsim.ONFI{ECCBits: 24, CodewordSize: 1024})
	bits, cw, err := parseExtendedPage(ext)
	require.NoError(t, err)
	assert.Equal(t, 24, bits)
	assert.Equal(t, 1024, cw)

	ext[40] ^= 0xFF
	_, _, err = parseExtendedPage(ext)
	assert.ErrorIs(t, err, errBadCopy)

	// a valid page without an ECC section
	noECC := make([]byte, 48)
	copy(noECC[2:], "EPPS")
	noECC[16], noECC[17] = 3, 1
	binary.LittleEndian.PutUint16(noECC, onfiCRC16(noECC[2:]))
	_, _, err = parseExtendedPage(noECC)
	assert.ErrorIs(t, err, errBadCopy)
}

func initController(t *testing.T, sim *nandsim.Sim) *Controller {
	t.Helper()
	c, err := New(sim)
	require.NoError(t, err)
	require.NoError(t, c.Init())
	return c
}

func TestReadParameterPage(t *testing.T) {
	sim := newSim(t, RevisionV2)
	pp, err := initController(t, sim).ReadParameterPage()
	require.NoError(t, err)
	assert.Equal(t, "NANDSIM", pp.Model)
	assert.Equal(t, 8, pp.ECCBits)
	assert.Zero(t, pp.CodewordSize)
}

func TestReadParameterPageSkipsBadCopies(t *testing.T) {
	sim := newSim(t, RevisionV3)
	sim.CorruptParameterCopy(0)
	sim.CorruptParameterCopy(1)
	pp, err := initController(t, sim).ReadParameterPage()
	require.NoError(t, err)
	assert.Equal(t, 2048, pp.PageSize)
}

func TestReadParameterPageAllCopiesBad(t *testing.T) {
	sim := newSim(t, RevisionV1)
	for i := 0; i < 3; i++ {
		sim.CorruptParameterCopy(i)
	}
	_, err := initController(t, sim).ReadParameterPage()
	assert.ErrorIs(t, err, ErrNoValidParameterPage)
}

func TestReadExtendedParameterPage(t *testing.T) {
	o := nandsim.DefaultONFI
	o.ECCBits, o.Extended, o.CodewordSize = 24, true, 1024
	sim := newSim(t, RevisionV2, nandsim.WithONFI(o))
	sim.CorruptExtendedCopy(o.Copies, 0)

	pp, err := initController(t, sim).ReadParameterPage()
	require.NoError(t, err)
	assert.Equal(t, 24, pp.ECCBits)
	assert.Equal(t, 1024, pp.CodewordSize)

	p, blocks, err := Derive(pp)
	require.NoError(t, err)
	assert.Equal(t, 64, blocks)
	assert.Equal(t, EccConfig{Algorithm: ECCBCH, Strength: 5, CodewordSize: 1024, SpareOffset: 2050}, p.ECC)
}

func TestReadExtendedParameterPageAllBad(t *testing.T) {
	o := nandsim.DefaultONFI
	o.Extended = true
	sim := newSim(t, RevisionV2, nandsim.WithONFI(o))
	for i := 0; i < o.Copies; i++ {
		sim.CorruptExtendedCopy(o.Copies, i)
	}
	_, err := initController(t, sim).ReadParameterPage()
	assert.ErrorIs(t, err, ErrNoValidParameterPage)
}

func TestDerive(t *testing.T) {
	pp := &ParameterPage{
		PageSize: 2048, SpareSize: 64, PagesPerBlock: 64, BlocksPerLUN: 1024, LUNs: 2,
		ColumnCycles: 2, RowCycles: 3, ECCBits: 4, SDRTimingModes: 0x0F,
		TProg: 700 * time.Microsecond, TBers: 3500 * time.Microsecond, TR: 25 * time.Microsecond,
	}
	p, blocks, err := Derive(pp)
	require.NoError(t, err)
	assert.Equal(t, 2048, blocks)
	assert.Equal(t, DeviceProperties{
		PageSize: Page2K, BlockSize: Block64Pages, ColumnCycles: 2, RowCycles: 3,
		TimingMode: 3, ReadyTimeout: 4 * time.Millisecond,
	}, p.Device)
	assert.Equal(t, EccConfig{Algorithm: ECCBCH, Strength: 0, CodewordSize: 512, SpareOffset: 2050}, p.ECC)
	assert.Equal(t, BadBlockMarker{Policy: MarkerFirstTwoPages, Offsets: [2]uint16{2048}, Count: 1}, p.Marker)

	pp.ECCBits = 1
	p, _, err = Derive(pp)
	require.NoError(t, err)
	assert.Equal(t, ECCHamming, p.ECC.Algorithm)

	pp.ECCBits = 0
	p, _, err = Derive(pp)
	require.NoError(t, err)
	assert.Equal(t, EccConfig{}, p.ECC)

	pp.ECCBits = 60
	_, _, err = Derive(pp)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	pp.ECCBits = 0
	pp.PageSize = 3000
	_, _, err = Derive(pp)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
