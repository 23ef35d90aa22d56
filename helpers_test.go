package nand

import (
	"testing"
	"time"

	"github.com/gentam/nand/internal/nandsim"
	"github.com/stretchr/testify/require"
)

// testProps matches nandsim.SmallSLC.
func testProps(ecc bool) Properties {
	p := Properties{
		Device: DeviceProperties{
			PageSize:     Page2K,
			BlockSize:    Block64Pages,
			ColumnCycles: 2,
			RowCycles:    3,
			TimingMode:   0,
			ReadyTimeout: 10 * time.Millisecond,
		},
		Marker: BadBlockMarker{Policy: MarkerFirstTwoPages, Offsets: [2]uint16{2048}, Count: 1},
	}
	if ecc {
		p.ECC = EccConfig{Algorithm: ECCBCH, Strength: 1, CodewordSize: 512, SpareOffset: 2050}
	}
	return p
}

func newSim(t *testing.T, rev ChipRevision, opts ...nandsim.Option) *nandsim.Sim {
	t.Helper()
	sim, err := nandsim.New(int(rev), nandsim.SmallSLC, opts...)
	require.NoError(t, err)
	return sim
}

// newConfigured returns an initialized controller configured with p.
func newConfigured(t *testing.T, sim *nandsim.Sim, p Properties, opts ...Option) *Controller {
	t.Helper()
	opts = append([]Option{WithBlockCount(sim.Geometry().Blocks)}, opts...)
	c, err := New(sim, opts...)
	require.NoError(t, err)
	require.NoError(t, c.Init())
	require.NoError(t, c.Configure(p))
	return c
}

func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7 + i>>8)
	}
	return b
}
