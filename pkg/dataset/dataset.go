// Package dataset enumerates image directories and yields decoded samples with their
// label vectors, or with the patches cut out of them for online tiling.
//
// One Dataset covers every combination of sources and labeling strategy: samples from
// several directories are concatenated in order, and labels come from a Labeler
// (mask presence, mask threshold or a sidecar index). A source may carry its own
// Labeler, so small fully annotated images labeled by presence can be mixed with
// large images labeled by threshold.
package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"patchlabel/internal/models"
	"patchlabel/pkg/imageio"
	"patchlabel/pkg/labels"
)

// Source is one directory of images. MaskDir, if set, holds a mask with the
// same file name for every image.
type Source struct {
	Dir     string
	MaskDir string

	// Labeler, if set, overrides Options.Labeler for the images of this source.
	Labeler labels.Labeler
}

// labeler returns the labeler in effect for src
func (src Source) labeler(opts Options) labels.Labeler {
	if src.Labeler != nil {
		return src.Labeler
	}
	return opts.Labeler
}

// Options configures a Dataset.
type Options struct {
	Sources []Source

	// Labeler produces the label of each sample of sources without their own.
	// Nil leaves those samples unlabeled.
	Labeler labels.Labeler

	// Grayscale decodes images with one channel instead of three.
	Grayscale bool

	// Transform, if set, is applied to every image (or every patch when tiling).
	Transform imageio.Transform
}

// Sample is one decoded image with its label.
type Sample struct {
	ID      string
	Path    string
	Image   models.Image
	Label   models.LabelVector
	Labeled bool
}

type entry struct {
	id       string
	path     string
	maskPath string
	labeler  labels.Labeler
}

// Dataset is a fixed, ordered list of image files. Get is safe for concurrent use.
type Dataset struct {
	opts    Options
	entries []entry
}

// New enumerates all sources. File ids (base names) must be unique across sources.
func New(opts Options) (*Dataset, error) {
	if len(opts.Sources) == 0 {
		return nil, errors.New("dataset needs at least one source directory")
	}
	ds := &Dataset{opts: opts}
	seen := make(map[string]string)
	for _, src := range opts.Sources {
		labeler := src.labeler(opts)
		if labeler != nil && labeler.Strategy().NeedsMask() && src.MaskDir == "" {
			return nil, errors.Errorf("source %q has no mask directory, needed by %v labeling",
				src.Dir, labeler.Strategy())
		}
		files, err := os.ReadDir(src.Dir)
		if err != nil {
			return nil, errors.Wrapf(err, "listing %q", src.Dir)
		}

		var names []string
		for _, f := range files {
			if !f.IsDir() && imageio.IsImageFile(f.Name()) {
				names = append(names, f.Name())
			}
		}
		sort.Strings(names)

		for _, name := range names {
			if prev, ok := seen[name]; ok {
				return nil, errors.Errorf("file id %q appears in both %q and %q", name, prev, src.Dir)
			}
			seen[name] = src.Dir
			e := entry{id: name, path: filepath.Join(src.Dir, name), labeler: labeler}
			if src.MaskDir != "" {
				e.maskPath = filepath.Join(src.MaskDir, name)
			}
			ds.entries = append(ds.entries, e)
		}
	}
	klog.V(1).Infof("dataset: %d images from %d sources", len(ds.entries), len(opts.Sources))
	return ds, nil
}

// Len returns the number of samples
func (ds *Dataset) Len() int {
	return len(ds.entries)
}

// Name describes the dataset and the labeling strategies its sources use
func (ds *Dataset) Name() string {
	var strategies []string
	for _, src := range ds.opts.Sources {
		name := "unlabeled"
		if l := src.labeler(ds.opts); l != nil {
			name = l.Strategy().String()
		}
		if len(strategies) == 0 || strategies[len(strategies)-1] != name {
			strategies = append(strategies, name)
		}
	}
	return fmt.Sprintf("%d images, %s labels", len(ds.entries), strings.Join(strategies, "+"))
}

// ID returns the file id of sample i
func (ds *Dataset) ID(i int) string {
	return ds.entries[i].id
}

func (ds *Dataset) entry(i int) (entry, error) {
	if i < 0 || i >= len(ds.entries) {
		return entry{}, errors.Errorf("sample index %d out of range [0, %d)", i, len(ds.entries))
	}
	return ds.entries[i], nil
}

// loadMask reads the mask of e, if there is one, and checks it matches the image size.
func loadMask(e entry, height, width int) (*models.Mask, error) {
	if e.maskPath == "" {
		return nil, nil
	}
	mask, err := imageio.LoadMask(e.maskPath)
	if err != nil {
		return nil, err
	}
	if mask.Height != height || mask.Width != width {
		return nil, errors.Wrapf(labels.ErrMalformedMask, "mask %q is %dx%d, image is %dx%d",
			e.maskPath, mask.Height, mask.Width, height, width)
	}
	return &mask, nil
}

// Get decodes sample i. Nothing is cached.
func (ds *Dataset) Get(i int) (Sample, error) {
	e, err := ds.entry(i)
	if err != nil {
		return Sample{}, err
	}
	im, err := imageio.LoadImage(e.path, ds.opts.Grayscale)
	if err != nil {
		return Sample{}, errors.WithMessagef(err, "sample #%d", i)
	}

	s := Sample{ID: e.id, Path: e.path}
	if e.labeler != nil {
		var mask *models.Mask
		if e.labeler.Strategy().NeedsMask() {
			if mask, err = loadMask(e, im.Height, im.Width); err != nil {
				return Sample{}, errors.WithMessagef(err, "sample #%d", i)
			}
		}
		if s.Label, err = e.labeler.Label(e.id, mask); err != nil {
			return Sample{}, errors.WithMessagef(err, "labeling sample #%d (%s)", i, e.path)
		}
		s.Labeled = true
	}

	if ds.opts.Transform != nil {
		if im, err = ds.opts.Transform(im); err != nil {
			return Sample{}, errors.WithMessagef(err, "transforming sample #%d (%s)", i, e.path)
		}
	}
	s.Image = im
	return s, nil
}

// Each calls fn on every sample in order. Samples that fail to load or label are
// logged and skipped; the number skipped is returned. An error from fn stops the
// iteration and is returned as is.
func (ds *Dataset) Each(fn func(i int, s Sample) error) (skipped int, err error) {
	for i := range ds.entries {
		s, err := ds.Get(i)
		if err != nil {
			klog.Warningf("skipping %s: %v", ds.entries[i].path, err)
			skipped++
			continue
		}
		if err := fn(i, s); err != nil {
			return skipped, err
		}
	}
	return skipped, nil
}
