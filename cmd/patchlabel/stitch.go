package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"patchlabel/internal/models"
	"patchlabel/pkg/labels"
	"patchlabel/pkg/stitch"
	"patchlabel/pkg/visualization"
)

var (
	stitchPredictions string
	stitchMinFraction float64
	stitchOut         string
	stitchMapsDir     string
)

var stitchCmd = &cobra.Command{
	Use:   "stitch <tile output dir>",
	Short: "Combine per-patch labels into per-image labels using the tiling manifest",
	Long: `stitch places every patch's label vector back at its recorded position and
averages overlaps into one presence map per class. A class is reported for the
image when its map exceeds --min-fraction somewhere.

Averaging makes --min-fraction a vote among the overlapping patches. With a stride
of half the patch size every interior pixel lies under four patches, so a class
seen by a single interior patch reaches only 0.25 and the default of 0.5 needs
the class in at least three of the four. Lower --min-fraction (for example 0.2)
to report any class seen by one patch.

Patch labels come from --predictions (an index keyed by patch file, as written in
the manifest) or, without it, from the mask-derived labels stored in the manifest.`,
	Args: cobra.ExactArgs(1),
	RunE: runStitch,
}

func init() {
	stitchCmd.Flags().StringVar(&stitchPredictions, "predictions", "", "label index keyed by patch file")
	stitchCmd.Flags().Float64Var(&stitchMinFraction, "min-fraction", 0.5, "fraction of overlapping patches that must mark a class")
	stitchCmd.Flags().StringVar(&stitchOut, "out", "", "index file for the per-image labels")
	stitchCmd.Flags().StringVar(&stitchMapsDir, "maps", "", "directory to save class and coverage maps as PNG")
}

func runStitch(cmd *cobra.Command, args []string) error {
	manifest, err := loadManifest(filepath.Join(args[0], manifestName))
	if err != nil {
		return err
	}
	var predictions *labels.Index
	if stitchPredictions != "" {
		if predictions, err = labels.LoadIndex(stitchPredictions); err != nil {
			return err
		}
	}

	out := labels.NewIndex()
	for _, img := range manifest.Images {
		maps, err := stitchImage(manifest.PatchSize, img, predictions)
		if err != nil {
			return errors.WithMessagef(err, "stitching %s", img.ID)
		}
		lv, err := maps.Labels(stitchMinFraction)
		if err != nil {
			return errors.WithMessagef(err, "stitching %s", img.ID)
		}
		if stitchMapsDir != "" {
			stem := strings.TrimSuffix(img.ID, filepath.Ext(img.ID))
			if err := visualization.SaveClassMaps(maps, stitchMapsDir, stem); err != nil {
				return err
			}
		}
		if err := out.Set(img.ID, lv); err != nil {
			return err
		}
		fmt.Printf("%s %v\n", img.ID, lv)
	}

	if stitchOut != "" {
		if err := labels.SaveIndex(out, stitchOut); err != nil {
			return err
		}
		fmt.Printf("Wrote %d image labels to %s\n", out.Len(), stitchOut)
	}
	return nil
}

// stitchImage places the label of every patch of img into per-class maps.
func stitchImage(patchSize int, img ManifestImage, predictions *labels.Index) (*stitch.ClassMaps, error) {
	maps, err := stitch.NewClassMaps(img.Height, img.Width)
	if err != nil {
		return nil, err
	}
	for _, p := range img.Patches {
		var lv models.LabelVector
		if predictions != nil {
			var ok bool
			if lv, ok = predictions.Lookup(p.File); !ok {
				return nil, errors.Errorf("no prediction for patch %s", p.File)
			}
		} else if lv, err = labelFromInts(p.Label); err != nil {
			return nil, errors.WithMessagef(err, "patch %s", p.File)
		}
		if err := maps.AddLabels(p.Position, patchSize, lv); err != nil {
			return nil, err
		}
	}
	return maps, nil
}
