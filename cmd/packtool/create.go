package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"assetpack/internal/packdesc"
)

var createCmd = &cobra.Command{
	Use:   "create <description.json> <out(.zip|dir)>",
	Short: "Build a pack archive from a JSON description",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := buildLogger()
		defer logger.Sync()

		p, err := packdesc.Build(args[0])
		if err != nil {
			return err
		}
		logger.Info("pack built",
			zap.Int("width", p.Width),
			zap.Int("height", p.Height),
			zap.Int("layers", len(p.Layers)),
			zap.Int("masks", len(p.Masks)),
			zap.Int("composites", len(p.Composites)))
		return savePack(p, args[1])
	},
}
