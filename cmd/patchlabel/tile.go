package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"patchlabel/pkg/dataset"
	"patchlabel/pkg/imageio"
	"patchlabel/pkg/labels"
)

var (
	tilePatchSize int
	tileStride    int
	tileMaskDir   string
	tileOutDir    string
)

var tileCmd = &cobra.Command{
	Use:   "tile [image dirs...]",
	Short: "Cut images into overlapping patches and write a position manifest",
	RunE:  runTile,
}

func init() {
	tileCmd.Flags().IntVar(&tilePatchSize, "patch-size", 0, "patch side in pixels (default from config)")
	tileCmd.Flags().IntVar(&tileStride, "stride", 0, "distance between patch corners (default from config)")
	tileCmd.Flags().StringVar(&tileMaskDir, "masks", "", "mask directory; derives a label per patch")
	tileCmd.Flags().StringVar(&tileOutDir, "out", "", "output directory (default from config)")
}

func runTile(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if tilePatchSize > 0 {
		cfg.Tiling.PatchSize = tilePatchSize
	}
	if tileStride > 0 {
		cfg.Tiling.Stride = tileStride
	}
	if tileOutDir != "" {
		cfg.Output.Dir = tileOutDir
	}

	sources, err := sourcesFrom(cfg, args, tileMaskDir)
	if err != nil {
		return err
	}
	// Patches are labeled only for sources with masks and a mask-reading strategy
	var defaultLabeler labels.Labeler
	var labeled []string
	for i := range sources {
		l := sources[i].Labeler
		if l == nil && sources[i].MaskDir != "" {
			if defaultLabeler == nil {
				if defaultLabeler, err = labelerFrom(cfg); err != nil {
					return err
				}
			}
			l = defaultLabeler
		}
		if l == nil || !l.Strategy().NeedsMask() || sources[i].MaskDir == "" {
			sources[i].Labeler = nil
			continue
		}
		sources[i].Labeler = l
		labeled = append(labeled, fmt.Sprintf("%s (%v)", sources[i].Dir, l.Strategy()))
	}
	opts := dataset.Options{
		Sources:   sources,
		Grayscale: cfg.Dataset.Grayscale,
		Transform: transformFrom(cfg),
	}

	td, err := dataset.NewTiled(opts, cfg.Tiling.PatchSize, cfg.Tiling.Stride)
	if err != nil {
		return err
	}

	manifest := &Manifest{
		RunID:     uuid.NewString(),
		Created:   time.Now().UTC(),
		PatchSize: cfg.Tiling.PatchSize,
		Stride:    cfg.Tiling.Stride,
	}
	fmt.Printf("Tiling %d images: patch %d, stride %d\n", td.Len(), cfg.Tiling.PatchSize, cfg.Tiling.Stride)

	bar := newProgressBar(cfg.Output.Verbose, td.Len(), "Tiling", "images")
	var numPatches int
	var numBytes uint64
	skipped, err := td.Each(func(i int, s dataset.TiledSample) error {
		defer addProgress(bar)
		stem := strings.TrimSuffix(s.ID, filepath.Ext(s.ID))
		img := ManifestImage{ID: s.ID, Path: s.Path, Height: s.Height, Width: s.Width}
		for j, p := range s.Patches {
			rel := filepath.Join(stem, fmt.Sprintf("r%05d_c%05d.png", p.Position.Row, p.Position.Col))
			full := filepath.Join(cfg.Output.Dir, rel)
			if err := imageio.Save(p.Image, full); err != nil {
				return err
			}
			if info, err := os.Stat(full); err == nil {
				numBytes += uint64(info.Size())
			}
			mp := ManifestPatch{File: filepath.ToSlash(rel), Position: p.Position}
			if s.Labels != nil {
				mp.Label = labelToInts(s.Labels[j])
			}
			img.Patches = append(img.Patches, mp)
		}
		numPatches += len(s.Patches)
		manifest.Images = append(manifest.Images, img)
		return nil
	})
	finishProgress(bar)
	if err != nil {
		return err
	}

	manifestPath := filepath.Join(cfg.Output.Dir, manifestName)
	if err := saveManifest(manifest, manifestPath); err != nil {
		return err
	}
	fmt.Printf("\nWrote %d patches (%s) from %d images to %s\n",
		numPatches, humanize.Bytes(numBytes), len(manifest.Images), cfg.Output.Dir)
	if skipped > 0 {
		fmt.Printf("Skipped %d images, see log for details\n", skipped)
	}
	if len(labeled) > 0 {
		fmt.Printf("Patch labels derived for %s\n", strings.Join(labeled, ", "))
	}
	fmt.Printf("Manifest (run %s): %s\n", manifest.RunID, manifestPath)
	return nil
}
