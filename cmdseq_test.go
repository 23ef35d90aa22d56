package nand

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCompiler() *Compiler {
	return &Compiler{
		ColumnCycles:          2,
		RowCycles:             3,
		NaturalCodeword:       512,
		SpareBytesPerCodeword: 13,
		SpareOffset:           2050,
		WaitCycles:            50,
	}
}

func TestRequiredLengthMatchesGenerated(t *testing.T) {
	sizes := []int{0, 1, 3, 4, 100, 511, 512, 513, 1000, 2048, 2052, 4096, 300 * 512, 1 << 17}
	for _, cycles := range [][2]int{{1, 1}, {2, 3}, {4, 4}} {
		for _, ecc := range []bool{false, true} {
			for _, n := range sizes {
				c := testCompiler()
				c.ColumnCycles, c.RowCycles = cycles[0], cycles[1]

				want := c.RequiredLength(OpRead, n, ecc)
				dst := make([]Entry, want+8)
				plan, err := c.GeneratePageRead(dst, 0x10, 0x1234, n, ecc)
				require.NoError(t, err)
				assert.Equal(t, want, plan.N, "read cycles=%v ecc=%v n=%d", cycles, ecc, n)
				for _, e := range dst[plan.N:] {
					assert.Equal(t, Entry{}, e)
				}

				want = c.RequiredLength(OpProgram, n, ecc)
				dst = make([]Entry, want)
				plan, err = c.GeneratePageProgram(dst, 0x10, 0x1234, n, ecc)
				require.NoError(t, err)
				assert.Equal(t, want, plan.N, "program cycles=%v ecc=%v n=%d", cycles, ecc, n)
			}
		}
	}
}

func TestCodewordDividesTransfer(t *testing.T) {
	c := testCompiler()
	for n := 1; n <= 5000; n++ {
		size, count, total := c.codewords(n, false)
		require.Equal(t, roundUp4(n), total, "n=%d", n)
		require.Zero(t, size%4, "n=%d", n)
		require.LessOrEqual(t, size, c.NaturalCodeword, "n=%d", n)
		require.Zero(t, total%size, "n=%d size=%d", n, size)
		require.Equal(t, total, size*count, "n=%d", n)
	}
}

func TestCodewords(t *testing.T) {
	tests := []struct {
		name             string
		n                int
		ecc              bool
		size, count, tot int
	}{
		{"exact", 2048, false, 512, 4, 2048},
		{"short", 100, false, 100, 1, 100},
		{"shrink", 1000, false, 500, 2, 1000},
		{"word round up", 1001, false, 4, 251, 1004},
		{"marker word", 2, false, 4, 1, 4},
		{"ecc pads to codeword", 1000, true, 512, 2, 1024},
		{"ecc exact", 2048, true, 512, 4, 2048},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			size, count, total := testCompiler().codewords(tt.n, tt.ecc)
			assert.Equal(t, tt.size, size)
			assert.Equal(t, tt.count, count)
			assert.Equal(t, tt.tot, total)
		})
	}
}

func TestGeneratePageReadECC(t *testing.T) {
	c := testCompiler()
	dst := make([]Entry, c.RequiredLength(OpRead, 1024, true))
	plan, err := c.GeneratePageRead(dst, 0, 0x012345, 1024, true)
	require.NoError(t, err)
	assert.Equal(t, Plan{N: 15, CodewordSize: 512, CodewordCount: 2, Bytes: 1024}, plan)
	assert.Equal(t, []Entry{
		{EntryCmd, 0x00},
		{EntryAddress, 0x00}, {EntryAddress, 0x00},
		{EntryAddress, 0x45}, {EntryAddress, 0x23}, {EntryAddress, 0x01},
		{EntryCmd, 0x30},
		{EntryWaitReady, 0},
		{EntryDataRead, 2},
		{EntryCmd, 0x05},
		{EntryAddress, 0x02}, {EntryAddress, 0x08},
		{EntryCmd, 0xE0},
		{EntryWaitCycles, 50},
		{EntrySpareRead, 26},
	}, dst)
}

func TestGeneratePageProgramECC(t *testing.T) {
	c := testCompiler()
	dst := make([]Entry, c.RequiredLength(OpProgram, 512, true))
	plan, err := c.GeneratePageProgram(dst, 512, 7, 512, true)
	require.NoError(t, err)
	assert.Equal(t, 1, plan.CodewordCount)
	assert.Equal(t, []Entry{
		{EntryCmd, 0x80},
		{EntryAddress, 0x00}, {EntryAddress, 0x02},
		{EntryAddress, 0x07}, {EntryAddress, 0x00}, {EntryAddress, 0x00},
		{EntryDataWrite, 1},
		{EntryCmd, 0x85},
		{EntryAddress, 0x0F}, {EntryAddress, 0x08}, // 2050 + 13
		{EntrySpareWrite, 13},
		{EntryCmd, 0x10},
		{EntryWaitReady, 0},
	}, dst)
}

func TestGenerateSplitsLargeCounts(t *testing.T) {
	c := testCompiler()
	dst := make([]Entry, c.RequiredLength(OpRead, 300*512, true))
	plan, err := c.GeneratePageRead(dst, 0, 0, 300*512, true)
	require.NoError(t, err)

	var data, spare int
	for _, e := range dst[:plan.N] {
		switch e.Type {
		case EntryDataRead:
			data += int(e.Arg)
		case EntrySpareRead:
			spare += int(e.Arg)
		}
	}
	assert.Equal(t, 300, data)
	assert.Equal(t, 300*13, spare)
}

func TestInsufficientBuffer(t *testing.T) {
	c := testCompiler()
	sentinel := Entry{Type: 0xEE, Arg: 0xEE}
	for _, op := range []PageOp{OpRead, OpProgram} {
		need := c.RequiredLength(op, 2048, true)
		dst := make([]Entry, need-1)
		for i := range dst {
			dst[i] = sentinel
		}
		var err error
		if op == OpRead {
			_, err = c.GeneratePageRead(dst, 0, 0, 2048, true)
		} else {
			_, err = c.GeneratePageProgram(dst, 0, 0, 2048, true)
		}
		require.ErrorIs(t, err, ErrInsufficientBuffer)
		for _, e := range dst {
			require.Equal(t, sentinel, e)
		}
	}

	_, err := c.GenerateErase(make([]Entry, 5), 0)
	assert.ErrorIs(t, err, ErrInsufficientBuffer)
	_, err = GenerateReset(make([]Entry, 1))
	assert.ErrorIs(t, err, ErrInsufficientBuffer)
	_, err = GenerateReadParameterPage(make([]Entry, 8), 768, 1, 50)
	assert.ErrorIs(t, err, ErrInsufficientBuffer)
}

func TestGenerateErase(t *testing.T) {
	dst := make([]Entry, 6)
	n, err := testCompiler().GenerateErase(dst, 0x012345)
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{EntryCmd, 0x60},
		{EntryAddress, 0x45}, {EntryAddress, 0x23}, {EntryAddress, 0x01},
		{EntryCmd, 0xD0},
		{EntryWaitReady, 0},
	}, dst[:n])
}

func TestGenerateReadParameterPage(t *testing.T) {
	dst := make([]Entry, 9)
	n, err := GenerateReadParameterPage(dst, 0, 1, 50)
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{EntryCmd, 0xEC}, {EntryAddress, 0}, {EntryWaitReady, 0}, {EntryDataRead, 1},
	}, dst[:n])

	n, err = GenerateReadParameterPage(dst, 768, 1, 50)
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{EntryCmd, 0xEC}, {EntryAddress, 0}, {EntryWaitReady, 0},
		{EntryCmd, 0x05}, {EntryAddress, 0x00}, {EntryAddress, 0x03}, {EntryCmd, 0xE0},
		{EntryWaitCycles, 50},
		{EntryDataRead, 1},
	}, dst[:n])
}

func TestEntryWord(t *testing.T) {
	assert.Equal(t, uint32(0x130), Entry{EntryCmd, 0x30}.Word())
	assert.Equal(t, uint32(0x5FF), Entry{EntryDataRead, 0xFF}.Word())
	assert.Equal(t, "SPARE_WR(0x0d)", Entry{EntrySpareWrite, 13}.String())
	assert.Equal(t, "CMD(0xd0)", Entry{EntryCmd, 0xD0}.String())
	assert.Equal(t, "NOP(0x00)", Entry{}.String())
}
