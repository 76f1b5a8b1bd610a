package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/image/font/gofont/goregular"

	"assetpack/internal/catalog"
	"assetpack/internal/config"
	"assetpack/internal/export"
	"assetpack/internal/pack"
)

var (
	exportRoot    string
	exportThreads int
	exportConfig  string
)

var exportCmd = &cobra.Command{
	Use:   "export -r <root> <batch.json>",
	Short: "Run a batch of cached pack export operations",
	Long: `export executes the operations described in a batch file against an
output root. Completed operations are recorded in a cache file inside
the root; on later runs an operation is skipped while its record entry
and all of its output files still exist.

Batch file format:

  {
    "assets": ["asset-dir", ...],
    "operations": [{
      "pack": "<asset id>",
      "fork": [null, {"color": "#rrggbb"},
                     {"text": "...", "textcolor": "#rrggbb"},
                     {"image": "<asset id>"}],
      "target_size": [w, h],
      "layers":     [{"index": 0, "path": "out/l0.png"}],
      "composites": [{"index": 1, "path": "out/night.webp"}]
    }]
  }`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := buildLogger()
		defer logger.Sync()

		batch, err := readBatch(args[0])
		if err != nil {
			return err
		}

		var cfg config.Config
		if exportConfig != "" {
			if cfg, err = config.Load(exportConfig); err != nil {
				return err
			}
		}
		cfg.Resolve(config.Flags{OutputRoot: exportRoot, IOThreads: exportThreads})

		// Batch-local asset directories take priority over configured ones.
		cat, err := catalog.New(append(cfg.AssetDirs, batch.Assets...)...)
		if err != nil {
			return err
		}
		cat.RegisterBuiltin(export.TextFontAsset, goregular.TTF)

		ops := make([]export.Operation, 0, len(batch.Operations))
		for i, spec := range batch.Operations {
			op, err := spec.toOperation()
			if err != nil {
				return fmt.Errorf("operation %d: %w", i, err)
			}
			ops = append(ops, op)
		}

		sched := &export.Scheduler{
			Root:      cfg.OutputRoot,
			Version:   Version,
			Assets:    cat,
			Logger:    logger,
			IOThreads: cfg.IOThreads,
		}
		return sched.Run(ops)
	},
}

type batchFile struct {
	Assets     []string     `json:"assets"`
	Operations []packOpJSON `json:"operations"`
}

type packOpJSON struct {
	Pack       string            `json:"pack"`
	Fork       []*forkParamJSON  `json:"fork,omitempty"`
	TargetSize *[2]int           `json:"target_size,omitempty"`
	Layers     []indexedPathJSON `json:"layers,omitempty"`
	Composites []indexedPathJSON `json:"composites,omitempty"`
}

type forkParamJSON struct {
	Color     string `json:"color,omitempty"`
	Text      string `json:"text,omitempty"`
	TextColor string `json:"textcolor,omitempty"`
	Image     string `json:"image,omitempty"`
}

type indexedPathJSON struct {
	Index int    `json:"index"`
	Path  string `json:"path"`
}

func readBatch(path string) (*batchFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var batch batchFile
	if err := json.Unmarshal(raw, &batch); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &batch, nil
}

func (spec packOpJSON) toOperation() (*export.PackOp, error) {
	op := &export.PackOp{
		PackID:     spec.Pack,
		TargetSize: spec.TargetSize,
	}
	for _, p := range spec.Fork {
		param, err := p.toForkParam()
		if err != nil {
			return nil, err
		}
		op.ForkParams = append(op.ForkParams, param)
	}
	for _, e := range spec.Layers {
		op.Layers = append(op.Layers, export.IndexedPath{Index: e.Index, Path: e.Path})
	}
	for _, e := range spec.Composites {
		op.Composites = append(op.Composites, export.IndexedPath{Index: e.Index, Path: e.Path})
	}
	return op, nil
}

func (p *forkParamJSON) toForkParam() (export.ForkParam, error) {
	switch {
	case p == nil:
		return nil, nil
	case p.Image != "":
		return export.ForkImage{AssetID: p.Image}, nil
	case p.Text != "":
		param := export.ForkText{Text: p.Text}
		if p.TextColor != "" {
			c, err := pack.ParseColor(p.TextColor)
			if err != nil {
				return nil, err
			}
			param.Color = &c
		}
		return param, nil
	case p.Color != "":
		c, err := pack.ParseColor(p.Color)
		if err != nil {
			return nil, err
		}
		return export.ForkColor{Color: c}, nil
	default:
		return nil, fmt.Errorf("empty fork parameter")
	}
}

func init() {
	exportCmd.Flags().StringVarP(&exportRoot, "root", "r", "", "export output root (default from config, else .)")
	exportCmd.Flags().IntVarP(&exportThreads, "io-threads", "j", 0, "baseline IO concurrency (0 = NumCPU+4)")
	exportCmd.Flags().StringVarP(&exportConfig, "config", "c", "", "JSON config file with asset dirs and export settings")
}
