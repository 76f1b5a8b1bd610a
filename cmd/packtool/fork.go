package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"assetpack/internal/imageio"
	"assetpack/internal/pack"
)

var forkArgs []string

var forkCmd = &cobra.Command{
	Use:   "fork <archive> <out(.zip|dir)>",
	Short: "Recolor mask regions into a new pack",
	Long: `fork applies one argument per mask, in mask order:

  skip              leave the mask unchanged
  color:#rrggbb     recolor toward a flat color
  image:<path>      warp an image onto the mask's projective surface
  text:<string>     render text onto the projective surface
  text:#rrggbb:<s>  colored text

Fewer arguments than masks leaves the remaining masks unchanged.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadPack(args[0])
		if err != nil {
			return err
		}

		maskArgs := make([]pack.MaskArg, 0, len(forkArgs))
		for i, spec := range forkArgs {
			arg, err := parseForkArg(spec)
			if err != nil {
				return fmt.Errorf("argument %d: %w", i, err)
			}
			maskArgs = append(maskArgs, arg)
		}

		forked, err := p.Fork(maskArgs)
		if err != nil {
			return err
		}
		return savePack(forked, args[1])
	},
}

func parseForkArg(spec string) (pack.MaskArg, error) {
	if spec == "skip" || spec == "" {
		return nil, nil
	}
	kind, rest, ok := strings.Cut(spec, ":")
	if !ok {
		return nil, fmt.Errorf("malformed fork argument %q", spec)
	}
	switch kind {
	case "color":
		c, err := pack.ParseColor(rest)
		if err != nil {
			return nil, err
		}
		return pack.ColorArg{Color: c}, nil
	case "image":
		img, err := imageio.Load(rest)
		if err != nil {
			return nil, err
		}
		return pack.ImageArg{Image: img}, nil
	case "text":
		if strings.HasPrefix(rest, "#") {
			hex, text, ok := strings.Cut(rest, ":")
			if !ok {
				return nil, fmt.Errorf("malformed text argument %q", spec)
			}
			c, err := pack.ParseColor(hex)
			if err != nil {
				return nil, err
			}
			return pack.TextArg{Text: text, Color: &c}, nil
		}
		return pack.TextArg{Text: rest}, nil
	default:
		return nil, fmt.Errorf("unknown fork argument kind %q", kind)
	}
}

func init() {
	forkCmd.Flags().StringArrayVarP(&forkArgs, "arg", "a", nil, "per-mask argument (repeatable)")
}
