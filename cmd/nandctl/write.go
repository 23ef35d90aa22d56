package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/marcinbor85/gohex"
	"github.com/spf13/cobra"
)

// segment is a contiguous run of data at a logical address.
type segment struct {
	addr int64
	data []byte
}

var writeCmd = &cobra.Command{
	Use:   "write",
	Short: "Write flash memory",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		addr, _ := cmd.Flags().GetInt64("addr")
		filename, _ := cmd.Flags().GetString("f")
		erase, _ := cmd.Flags().GetBool("e")
		if filename == "" {
			fatalf("input file is required")
		}

		segs, err := loadSegments(filename, addr)
		if err != nil {
			fatalf("failed to load %s: %v", filename, err)
		}

		c := open()
		if erase {
			_, x, _ := c.Properties()
			bs := int64(x.BlockSize)
			for _, s := range segs {
				first := s.addr / bs
				last := (s.addr + int64(len(s.data)) - 1) / bs
				if err := eraseBlocks(c, first*bs, int(last-first+1)); err != nil {
					fatalf("erase failed: %v", err)
				}
			}
		}
		for _, s := range segs {
			if err := c.Write(s.addr, s.data); err != nil {
				fatalf("write flash at 0x%X failed: %v", s.addr, err)
			}
			fmt.Fprintf(os.Stderr, "wrote %d bytes at 0x%X\n", len(s.data), s.addr)
		}
	},
}

func init() {
	writeCmd.Flags().Int64P("addr", "a", 0, "logical byte address (ignored for Intel HEX input)")
	writeCmd.Flags().String("f", "", "input file, Intel HEX when it ends in .hex")
	writeCmd.Flags().Bool("e", false, "erase the covered blocks first")
	rootCmd.AddCommand(writeCmd)
}

func loadSegments(name string, addr int64) ([]segment, error) {
	if filepath.Ext(name) != ".hex" {
		data, err := os.ReadFile(name)
		if err != nil {
			return nil, err
		}
		return []segment{{addr: addr, data: data}}, nil
	}

	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(f); err != nil {
		return nil, err
	}
	var segs []segment
	for _, s := range mem.GetDataSegments() {
		segs = append(segs, segment{addr: int64(s.Address), data: s.Data})
	}
	return segs, nil
}
