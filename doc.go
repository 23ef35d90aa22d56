// Package nand drives an on-SoC NAND flash controller: it compiles page read,
// program and erase requests into controller command sequences, streams data
// through the controller FIFO one codeword at a time, configures the BCH or
// Hamming ECC engine and skips factory-marked bad blocks.
//
// A Controller is owned by a single goroutine. Nothing in this package locks;
// callers that share a controller must serialize access themselves.
//
// # References:
//
// ONFI (https://www.onfi.org/specifications)
//   - [ONFI-4.0]: Open NAND Flash Interface Specification, Revision 4.0
//   - [ONFI-4.0|5.7]: Read Parameter Page Definition
//   - [ONFI-4.0|5.7.1.1]: Extended Parameter Page
//   - [ONFI-4.0|4.16]: Timing Modes
//
// NAND devices
//   - [MT29F4G08]: Micron MT29F4G08ABADA 4Gb SLC NAND datasheet
//   - [S34ML02G1]: Cypress S34ML02G1 2Gb SLC NAND datasheet
//
// ECC
//   - [BCH]: Lin & Costello, Error Control Coding, ch. 6 (parity bytes = ceil(m*t/8))
package nand
