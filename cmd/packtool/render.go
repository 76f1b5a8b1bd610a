package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"assetpack/internal/imageio"
)

var renderComposite string

var renderCmd = &cobra.Command{
	Use:   "render <archive> <out(.png|.webp)>",
	Short: "Render one composite to an image file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadPack(args[0])
		if err != nil {
			return err
		}

		idx, ok := p.CompositeIndexByName(renderComposite)
		if !ok {
			// Fall back to a numeric index.
			n, err := strconv.Atoi(renderComposite)
			if err != nil || n < 0 || n >= len(p.Composites) {
				return fmt.Errorf("no composite %q in %s", renderComposite, args[0])
			}
			idx = n
		}

		img, err := p.Compose(idx)
		if err != nil {
			return err
		}
		return imageio.Save(args[1], img)
	},
}

func init() {
	renderCmd.Flags().StringVarP(&renderComposite, "composite", "c", "0", "composite name or index")
}
