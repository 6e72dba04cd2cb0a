package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"patchlabel/pkg/dataset"
	"patchlabel/pkg/labels"
)

var (
	labelMaskDir   string
	labelStrategy  string
	labelThreshold int
	labelOut       string
)

var labelCmd = &cobra.Command{
	Use:   "label [image dirs...]",
	Short: "Derive a label vector per image from its mask and write a sidecar index",
	RunE:  runLabel,
}

func init() {
	labelCmd.Flags().StringVar(&labelMaskDir, "masks", "", "mask directory for the image dirs given as arguments")
	labelCmd.Flags().StringVar(&labelStrategy, "strategy", "", "presence or threshold for sources without their own labels block (default from config)")
	labelCmd.Flags().IntVar(&labelThreshold, "threshold", -1, "pixel threshold for the threshold strategy (default from config)")
	labelCmd.Flags().StringVar(&labelOut, "out", "", "index file to write (default labels.index from config)")
}

func runLabel(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if labelStrategy != "" {
		cfg.Labels.Strategy = labelStrategy
	}
	if labelThreshold >= 0 {
		cfg.Labels.ThresholdPixels = labelThreshold
	}
	if labelOut != "" {
		cfg.Labels.Index = labelOut
	}

	strategy, err := labels.ParseStrategy(cfg.Labels.Strategy)
	if err != nil {
		return err
	}
	if !strategy.NeedsMask() {
		return errors.Errorf("label needs a mask strategy (presence or threshold), got %v", strategy)
	}
	labeler, err := labels.NewLabeler(strategy, cfg.Labels.ThresholdPixels, nil)
	if err != nil {
		return err
	}
	sources, err := sourcesFrom(cfg, args, labelMaskDir)
	if err != nil {
		return err
	}
	for _, src := range sources {
		if src.Labeler != nil && !src.Labeler.Strategy().NeedsMask() {
			return errors.Errorf("source %q: label needs a mask strategy, got %v", src.Dir, src.Labeler.Strategy())
		}
	}

	ds, err := dataset.New(dataset.Options{Sources: sources, Labeler: labeler, Grayscale: true})
	if err != nil {
		return err
	}
	fmt.Printf("Labeling %s\n", ds.Name())

	index := labels.NewIndex()
	var counts [3]int
	bar := newProgressBar(cfg.Output.Verbose, ds.Len(), "Labeling", "images")
	skipped, err := ds.Each(func(i int, s dataset.Sample) error {
		defer addProgress(bar)
		for c := range counts {
			if s.Label.Has(c) {
				counts[c]++
			}
		}
		return index.Set(s.ID, s.Label)
	})
	finishProgress(bar)
	if err != nil {
		return err
	}
	if err := labels.SaveIndex(index, cfg.Labels.Index); err != nil {
		return err
	}

	fmt.Printf("\nWrote %d labels to %s\n", index.Len(), cfg.Labels.Index)
	for c, n := range counts {
		fmt.Printf("- class %d present in %d images\n", c, n)
	}
	if skipped > 0 {
		fmt.Printf("Skipped %d images, see log for details\n", skipped)
	}
	return nil
}
