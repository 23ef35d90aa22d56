package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/marcinbor85/gohex"
	"github.com/spf13/cobra"
)

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Read flash memory",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		addr, _ := cmd.Flags().GetInt64("addr")
		nread, _ := cmd.Flags().GetInt("n")
		outFile, _ := cmd.Flags().GetString("o")
		if nread <= 0 {
			fatalf("-n must be positive")
		}

		c := open()
		data := make([]byte, nread)
		if err := c.Read(addr, data); err != nil {
			fatalf("read flash failed: %v", err)
		}
		if r := c.LastECC(); r.Corrected > 0 {
			fmt.Fprintf(os.Stderr, "ECC corrected %d bits in the last page\n", r.Corrected)
		}

		switch {
		case outFile == "":
			fmt.Println(hex.Dump(data))
		case filepath.Ext(outFile) == ".hex":
			if err := writeIntelHex(outFile, uint32(addr), data); err != nil {
				fatalf("write file failed: %v", err)
			}
		default:
			if err := os.WriteFile(outFile, data, 0644); err != nil {
				fatalf("write file failed: %v", err)
			}
		}
	},
}

func init() {
	readCmd.Flags().Int64P("addr", "a", 0, "logical byte address")
	readCmd.Flags().Int("n", 256, "number of bytes to read")
	readCmd.Flags().String("o", "", "output file, Intel HEX when it ends in .hex (default: hexdump)")
	rootCmd.AddCommand(readCmd)
}

func writeIntelHex(name string, addr uint32, data []byte) error {
	mem := gohex.NewMemory()
	if err := mem.AddBinary(addr, data); err != nil {
		return err
	}
	w, err := os.Create(name)
	if err != nil {
		return err
	}
	if err := mem.DumpIntelHex(w, 16); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
