package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"assetpack/internal/archive"
	"assetpack/internal/pack"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Version is set via -ldflags; it doubles as the export cache record
// version so a new build invalidates prior run records.
var Version = "dev"

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "packtool",
	Short: "Build, inspect, recolor and export layered image packs",
	Long: `packtool works with layered image packs: archives holding a set of
deduplicated image layers, recolorable mask regions, and named layer
stacks (composites) that reconstruct finished images exactly.

Typical flow:
  packtool create desc.json out.zip      build a pack from a description
  packtool decompose -b base.png ...     derive a pack from finished images
  packtool info out.zip                  show pack structure
  packtool render -c day out.zip out.png render one composite
  packtool fork out.zip new.zip ...      recolor mask regions
  packtool export -r outdir ops.json     run a cached export batch`,

	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(forkCmd)
	rootCmd.AddCommand(shrinkCmd)
	rootCmd.AddCommand(decomposeCmd)
	rootCmd.AddCommand(exportLayersCmd)
	rootCmd.AddCommand(exportCmd)
}

// buildLogger constructs the process logger. Errors here are fatal:
// without a logger there is nothing to degrade to.
func buildLogger() *zap.Logger {
	var logger *zap.Logger
	var err error
	if verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init:", err)
		os.Exit(1)
	}
	return logger
}

// loadPack opens either archive container by path shape: a directory or
// a .zip file.
func loadPack(path string) (*pack.Pack, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return archive.LoadDir(path)
	}
	return archive.LoadZip(path)
}

// savePack writes to a .zip file or a directory depending on the
// extension of path.
func savePack(p *pack.Pack, path string) error {
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		return archive.SaveZip(p, path)
	}
	return archive.SaveDir(p, path)
}
