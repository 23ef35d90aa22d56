package main

import (
	"fmt"

	"github.com/gentam/nand"
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print the applied controller configuration",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		c := open()
		p, x, _ := c.Properties()
		d := p.Device

		fmt.Printf("Revision:        %v\n", c.Revision())
		fmt.Printf("Clock:           %v\n", c.Clock())
		fmt.Printf("Page:            %d bytes\n", x.PageSize)
		fmt.Printf("Block:           %d bytes (%d pages)\n", x.BlockSize, x.PagesPerBlock())
		fmt.Printf("Bus width:       x%d\n", 8*x.WordSize)
		fmt.Printf("Address cycles:  %d column, %d row\n", d.ColumnCycles, d.RowCycles)
		if d.TimingMode < 0 {
			fmt.Printf("Timing:          manual %+v\n", d.Timing)
		} else {
			fmt.Printf("Timing:          ONFI mode %d\n", d.TimingMode)
		}
		fmt.Printf("Ready timeout:   %v\n", d.ReadyTimeout)
		fmt.Printf("ECC:             %v, %d bits per %d bytes, spare offset %d\n",
			p.ECC.Algorithm, p.ECC.CorrectionBits(), p.ECC.CodewordSize, p.ECC.SpareOffset)
		fmt.Printf("Marker:          %v at %v\n", p.Marker.Policy, p.Marker.Offsets[:p.Marker.Count])
		fmt.Printf("NVRAM:           %08X\n", nand.Encode(p))
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
