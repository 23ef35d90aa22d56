package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List bad blocks",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		n, _ := cmd.Flags().GetInt("blocks")
		c := open()
		bad, err := c.BadBlocks(n)
		if err != nil {
			fatalf("scan failed after %d bad blocks: %v", len(bad), err)
		}
		for _, b := range bad {
			fmt.Println(b)
		}
		fmt.Printf("%d of %d blocks bad\n", len(bad), n)
	},
}

func init() {
	scanCmd.Flags().IntP("blocks", "n", 64, "number of blocks to scan")
	rootCmd.AddCommand(scanCmd)
}
