package main

import (
	"fmt"

	"github.com/gentam/nand"
	"github.com/spf13/cobra"
)

var onfiCmd = &cobra.Command{
	Use:   "onfi",
	Short: "Read and print the ONFI parameter page",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		c := open()
		pp, err := c.ReadParameterPage()
		if err != nil {
			fatalf("read ONFI parameter page failed: %v", err)
		}
		fmt.Printf("Manufacturer:    %s (0x%02x)\n", pp.Manufacturer, pp.JEDECID)
		fmt.Printf("Model:           %s\n", pp.Model)
		fmt.Printf("Revision:        0x%04x\n", pp.Revision)
		fmt.Printf("Page:            %d + %d bytes\n", pp.PageSize, pp.SpareSize)
		fmt.Printf("Pages per block: %d\n", pp.PagesPerBlock)
		fmt.Printf("Blocks:          %d x %d LUN\n", pp.BlocksPerLUN, pp.LUNs)
		fmt.Printf("Address cycles:  %d column, %d row\n", pp.ColumnCycles, pp.RowCycles)
		fmt.Printf("ECC:             %d bits", pp.ECCBits)
		if pp.CodewordSize != 0 {
			fmt.Printf(" per %d bytes", pp.CodewordSize)
		}
		fmt.Println()
		fmt.Printf("SDR modes:       %06b\n", pp.SDRTimingModes)
		fmt.Printf("tPROG/tBERS/tR:  %v / %v / %v\n", pp.TProg, pp.TBers, pp.TR)

		if _, _, err := nand.Derive(pp); err != nil {
			fmt.Printf("Derive:          %v\n", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(onfiCmd)
}
