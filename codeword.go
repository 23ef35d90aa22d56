package nand

import (
	"encoding/binary"
	"fmt"
)

// codewordStream moves data through DATA_BUF one codeword at a time. The
// controller raises CW_READ_READY or CW_WRITE_READY once per codeword; the
// stream waits for it at every codeword boundary and moves whole 32-bit
// little-endian words in between.
type codewordStream struct {
	bus *bus

	size      int // codeword size in bytes
	remaining int // codewords not yet started
	inFlight  int // bytes left in the current codeword

	// latch holds the unconsumed bytes of the last word read, or the bytes
	// of a word being assembled for writing.
	latch  [4]byte
	latchN int
}

// configure programs CW_CFG and resets the stream state.
func (s *codewordStream) configure(size, count int) {
	s.size = size
	s.remaining = count
	s.inFlight = 0
	s.latchN = 0
	s.bus.store(s.bus.l.cwCfg, uint32(size)&CWSizeMask|uint32(count)<<CWCountShift)
}

// available returns the bytes the configured transfer still holds.
func (s *codewordStream) available() int {
	return s.remaining*s.size + s.inFlight
}

// check fails when n more bytes would cross the end of the transfer.
func (s *codewordStream) check(n int) error {
	if avail := s.available(); n > avail {
		return fmt.Errorf("%w: want %d bytes, %d left (%d codewords of %d + %d)",
			ErrInsufficientCodewordData, n, avail, s.remaining, s.size, s.inFlight)
	}
	return nil
}

// nextCodeword waits for the controller to accept or deliver one codeword.
func (s *codewordStream) nextCodeword(want IntStatus, op string) error {
	if err := s.bus.wait(op, want, s.bus.fifoTimeout); err != nil {
		return err
	}
	s.remaining--
	s.inFlight = s.size
	return nil
}

// read returns numBytes of data after discarding skipHead bytes, then
// discards skipTail more. The whole request is checked against the
// configured transfer before any register is touched.
func (s *codewordStream) read(numBytes, skipHead, skipTail int) ([]byte, error) {
	if numBytes < 0 || skipHead < 0 || skipTail < 0 {
		return nil, fmt.Errorf("%w: negative length", ErrInsufficientCodewordData)
	}
	total := skipHead + numBytes + skipTail
	// bytes already latched from the last word do not come from the FIFO
	if err := s.check(max(total-s.latchN, 0)); err != nil {
		return nil, err
	}
	out := make([]byte, 0, numBytes)
	for i := 0; i < total; i++ {
		b, err := s.readByte()
		if err != nil {
			return nil, err
		}
		if i >= skipHead && i < skipHead+numBytes {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *codewordStream) readByte() (byte, error) {
	if s.latchN == 0 {
		if s.inFlight == 0 {
			if err := s.nextCodeword(IntCWReadReady, "codeword read ready"); err != nil {
				return 0, err
			}
		}
		binary.LittleEndian.PutUint32(s.latch[:], s.bus.load(s.bus.l.dataBuf))
		s.latchN = 4
		s.inFlight -= 4
	}
	b := s.latch[4-s.latchN]
	s.latchN--
	return b, nil
}

// write pushes data, packing bytes into little-endian words. A trailing
// partial word stays latched until later bytes complete it.
func (s *codewordStream) write(data []byte) error {
	if err := s.check(len(data) + s.latchN); err != nil {
		return err
	}
	for _, b := range data {
		s.latch[s.latchN] = b
		s.latchN++
		if s.latchN < 4 {
			continue
		}
		if s.inFlight == 0 {
			if err := s.nextCodeword(IntCWWriteReady, "codeword write ready"); err != nil {
				return err
			}
		}
		s.bus.store(s.bus.l.dataBuf, binary.LittleEndian.Uint32(s.latch[:]))
		s.latchN = 0
		s.inFlight -= 4
	}
	return nil
}
