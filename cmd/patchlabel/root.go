package main

import (
	"flag"

	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"patchlabel/pkg/config"
	"patchlabel/pkg/dataset"
	"patchlabel/pkg/imageio"
	"patchlabel/pkg/labels"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "patchlabel",
	Short: "Cut images into overlapping patches and derive multi-label targets from masks",
	Long: `patchlabel prepares classifier inputs from large annotated images.

  - tile:   cut every image into fixed-size patches with a configurable stride,
            recording each patch's position in a manifest
  - label:  derive a 3-class label vector per image from its segmentation mask
            (presence or pixel-count threshold) and store it in a sidecar index
  - stitch: combine per-patch labels back into image coordinates
  - config: write a default configuration file`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "patchlabel.yaml", "config file (missing file means defaults)",
	)

	fs := flag.NewFlagSet("klog", flag.ExitOnError)
	klog.InitFlags(fs)
	rootCmd.PersistentFlags().AddGoFlagSet(fs)

	rootCmd.AddCommand(tileCmd, labelCmd, stitchCmd, configCmd)
}

// loadConfig reads the config file named by --config
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}
	klog.V(1).Infof("using config %q", cfgFile)
	return cfg, nil
}

// sourcesFrom returns the sources named on the command line, or those of the config file.
// Config sources with a labels block get their own labeler.
func sourcesFrom(cfg *config.Config, dirs []string, maskDir string) ([]dataset.Source, error) {
	var sources []dataset.Source
	if len(dirs) > 0 {
		for _, d := range dirs {
			sources = append(sources, dataset.Source{Dir: d, MaskDir: maskDir})
		}
		return sources, nil
	}
	for i, s := range cfg.Dataset.Sources {
		src := dataset.Source{Dir: s.Dir, MaskDir: s.MaskDir}
		if s.Labels != nil {
			labeler, err := labelerFor(s.Labels.Strategy, cfg.SourceThreshold(i), cfg.Labels.Index)
			if err != nil {
				return nil, errors.WithMessagef(err, "source %q", s.Dir)
			}
			src.Labeler = labeler
		}
		sources = append(sources, src)
	}
	if len(sources) == 0 {
		return nil, errors.New("no input directories: pass them as arguments or set dataset.sources")
	}
	return sources, nil
}

// labelerFrom builds the labeler selected in the labels section of the config
func labelerFrom(cfg *config.Config) (labels.Labeler, error) {
	return labelerFor(cfg.Labels.Strategy, cfg.Labels.ThresholdPixels, cfg.Labels.Index)
}

func labelerFor(name string, thresholdPixels int, indexPath string) (labels.Labeler, error) {
	strategy, err := labels.ParseStrategy(name)
	if err != nil {
		return nil, err
	}
	var index *labels.Index
	if strategy == labels.IndexLookup {
		if index, err = labels.LoadIndex(indexPath); err != nil {
			return nil, err
		}
	}
	return labels.NewLabeler(strategy, thresholdPixels, index)
}

// transformFrom returns the patch transform selected in the config, or nil
func transformFrom(cfg *config.Config) imageio.Transform {
	if cfg.Dataset.Resize > 0 {
		return imageio.Resize(cfg.Dataset.Resize)
	}
	return nil
}

func newProgressBar(verbose bool, total int, description, unit string) *progressbar.ProgressBar {
	if !verbose {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString(unit),
		progressbar.OptionSetTheme(progressbar.ThemeUnicode),
	)
}

func addProgress(bar *progressbar.ProgressBar) {
	if bar != nil {
		_ = bar.Add(1)
	}
}

func finishProgress(bar *progressbar.ProgressBar) {
	if bar != nil {
		_ = bar.Finish()
	}
}
