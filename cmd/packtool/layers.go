package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"assetpack/internal/imageio"
)

var exportLayersCmd = &cobra.Command{
	Use:   "export-layers <archive> <outdir>",
	Short: "Write every layer patch of a pack as an image file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadPack(args[0])
		if err != nil {
			return err
		}
		for i, l := range p.Layers {
			name := l.Name
			if name == "" {
				name = fmt.Sprintf("l%d", i)
			}
			if err := imageio.Save(filepath.Join(args[1], name+".png"), l.Patch); err != nil {
				return err
			}
		}
		return nil
	},
}
