package main

import (
	"image"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"assetpack/internal/decompose"
	"assetpack/internal/imageio"
)

var (
	decomposeBase string
	decomposeOut  string
)

var decomposeCmd = &cobra.Command{
	Use:   "decompose -b <base.png> -o <out(.zip|dir)> <target>...",
	Short: "Derive a deduplicated pack from finished images",
	Long: `decompose takes a base image plus finished variant images of the same
size and produces a pack whose layers are the minimal per-region
differences against the base. Identical difference regions are stored
once and shared between variants. Composite names come from the target
file names.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := buildLogger()
		defer logger.Sync()

		base, err := imageio.Load(decomposeBase)
		if err != nil {
			return err
		}
		targets := make([]*image.NRGBA, 0, len(args))
		names := make([]string, 0, len(args))
		for _, path := range args {
			img, err := imageio.Load(path)
			if err != nil {
				return err
			}
			targets = append(targets, img)
			base := filepath.Base(path)
			names = append(names, strings.TrimSuffix(base, filepath.Ext(base)))
		}

		name := filepath.Base(decomposeBase)
		name = strings.TrimSuffix(name, filepath.Ext(name))
		p, err := decompose.FromImages(base, targets, decompose.Options{
			BaseName:      name,
			BaseComposite: name,
			TargetNames:   names,
		})
		if err != nil {
			return err
		}

		logger.Info("decomposed",
			zap.Int("targets", len(targets)),
			zap.Int("layers", len(p.Layers)),
			zap.Int("composites", len(p.Composites)))
		return savePack(p, decomposeOut)
	},
}

func init() {
	decomposeCmd.Flags().StringVarP(&decomposeBase, "base", "b", "", "base image every target is diffed against")
	decomposeCmd.Flags().StringVarP(&decomposeOut, "out", "o", "", "output archive path")
	decomposeCmd.MarkFlagRequired("base")
	decomposeCmd.MarkFlagRequired("out")
}
