package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info <archive>",
	Short: "Show the structure of a pack archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadPack(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("canvas: %dx%d\n", p.Width, p.Height)
		fmt.Printf("layers: %d\n", len(p.Layers))
		for i, l := range p.Layers {
			var flags []string
			if l.IsBase {
				flags = append(flags, "base")
			}
			if l.IsToggle {
				flags = append(flags, "toggle")
			}
			suffix := ""
			if len(flags) > 0 {
				suffix = " [" + strings.Join(flags, ",") + "]"
			}
			fmt.Printf("  %3d %q %dx%d at (%d,%d)%s\n",
				i, l.Name, l.Width(), l.Height(), l.OffsetX, l.OffsetY, suffix)
		}
		fmt.Printf("masks: %d\n", len(p.Masks))
		for i, m := range p.Masks {
			w, h := m.Size(p.Width, p.Height)
			kind := "bitmap"
			if m.Bitmap == nil {
				kind = "full"
			}
			fmt.Printf("  %3d %q %s %dx%d color=%s applyon=%v projective=%v\n",
				i, m.Name, kind, w, h, m.MaskColor.Hex(), m.ApplyOn, m.Projective != nil)
		}
		fmt.Printf("composites: %d\n", len(p.Composites))
		for i, c := range p.Composites {
			fmt.Printf("  %3d %q layers=%v\n", i, c.Name, c.Layers)
		}
		if len(p.Metadata) > 0 {
			fmt.Printf("metadata: %v\n", p.Metadata)
		}
		return nil
	},
}
