package main

import (
	"github.com/gentam/nand"
	"github.com/spf13/cobra"
)

var eraseCmd = &cobra.Command{
	Use:   "erase",
	Short: "Erase logical blocks",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		addr, _ := cmd.Flags().GetInt64("addr")
		count, _ := cmd.Flags().GetInt("count")
		c := open()
		if err := eraseBlocks(c, addr, count); err != nil {
			fatalf("erase failed: %v", err)
		}
	},
}

func init() {
	eraseCmd.Flags().Int64P("addr", "a", 0, "logical byte address of the first block")
	eraseCmd.Flags().IntP("count", "n", 1, "number of blocks")
	rootCmd.AddCommand(eraseCmd)
}

func eraseBlocks(c *nand.Controller, addr int64, count int) error {
	_, x, _ := c.Properties()
	bs := int64(x.BlockSize)
	for i := 0; i < count; i++ {
		if err := c.EraseBlock(addr + int64(i)*bs); err != nil {
			return err
		}
	}
	return nil
}
