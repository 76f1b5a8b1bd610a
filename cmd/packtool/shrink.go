package main

import (
	"github.com/spf13/cobra"
)

var shrinkRatio float64

var shrinkCmd = &cobra.Command{
	Use:   "shrink <archive> <out(.zip|dir)>",
	Short: "Scale a pack down by a ratio in (0,1)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadPack(args[0])
		if err != nil {
			return err
		}
		shrunk, err := p.Shrink(shrinkRatio)
		if err != nil {
			return err
		}
		return savePack(shrunk, args[1])
	},
}

func init() {
	shrinkCmd.Flags().Float64VarP(&shrinkRatio, "ratio", "r", 0.5, "scale factor, exclusive (0,1)")
}
