package dataset

import (
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"patchlabel/internal/models"
	"patchlabel/pkg/imageio"
	"patchlabel/pkg/labels"
	"patchlabel/pkg/tiling"
)

// TiledSample is one image cut into patches.
type TiledSample struct {
	ID     string
	Path   string
	Height int
	Width  int

	// Patches are in row-major order of their positions.
	Patches []models.Patch

	// Labels holds one label vector per patch, derived from the mask region under
	// the patch. It is nil when the labeling strategy does not read masks.
	Labels []models.LabelVector
}

// Tiled yields every image of a Dataset as a sequence of patches.
type Tiled struct {
	ds        *Dataset
	patchSize int
	stride    int
}

// NewTiled enumerates the sources like New and tiles each image on Get.
// Labels are derived per patch, so a threshold labeler must use a pixel count
// that a single patch can exceed.
func NewTiled(opts Options, patchSize, stride int) (*Tiled, error) {
	if patchSize <= 0 || stride <= 0 {
		return nil, errors.Wrapf(tiling.ErrInvalidParameter, "patch size %d, stride %d", patchSize, stride)
	}
	for _, src := range opts.Sources {
		if tl, ok := src.labeler(opts).(labels.ThresholdLabeler); ok && tl.Pixels >= patchSize*patchSize {
			return nil, errors.Wrapf(tiling.ErrInvalidParameter,
				"threshold of %d pixels for %q can never be exceeded by a %dx%d patch",
				tl.Pixels, src.Dir, patchSize, patchSize)
		}
	}
	ds, err := New(opts)
	if err != nil {
		return nil, err
	}
	return &Tiled{ds: ds, patchSize: patchSize, stride: stride}, nil
}

// Len returns the number of images
func (t *Tiled) Len() int {
	return t.ds.Len()
}

// Get decodes and tiles image i. The transform is applied to each patch.
func (t *Tiled) Get(i int) (TiledSample, error) {
	e, err := t.ds.entry(i)
	if err != nil {
		return TiledSample{}, err
	}
	im, err := imageio.LoadImage(e.path, t.ds.opts.Grayscale)
	if err != nil {
		return TiledSample{}, errors.WithMessagef(err, "sample #%d", i)
	}
	patches, err := tiling.Tile(im, t.patchSize, t.stride)
	if err != nil {
		return TiledSample{}, errors.WithMessagef(err, "tiling %s", e.path)
	}

	s := TiledSample{ID: e.id, Path: e.path, Height: im.Height, Width: im.Width, Patches: patches}

	labeler := e.labeler
	if labeler != nil && labeler.Strategy().NeedsMask() {
		mask, err := loadMask(e, im.Height, im.Width)
		if err != nil {
			return TiledSample{}, errors.WithMessagef(err, "sample #%d", i)
		}
		s.Labels = make([]models.LabelVector, len(patches))
		for j, p := range patches {
			region := cropMask(*mask, p.Position, t.patchSize)
			if s.Labels[j], err = labeler.Label(e.id, &region); err != nil {
				return TiledSample{}, errors.WithMessagef(err, "labeling patch %v of %s", p.Position, e.path)
			}
		}
	}

	if tf := t.ds.opts.Transform; tf != nil {
		for j := range s.Patches {
			if s.Patches[j].Image, err = tf(s.Patches[j].Image); err != nil {
				return TiledSample{}, errors.WithMessagef(err, "transforming patch %v of %s",
					s.Patches[j].Position, e.path)
			}
		}
	}
	klog.V(2).Infof("tiled %s (%dx%d) into %d patches", e.id, im.Height, im.Width, len(patches))
	return s, nil
}

// Each calls fn on every tiled image, logging and skipping images that fail.
func (t *Tiled) Each(fn func(i int, s TiledSample) error) (skipped int, err error) {
	for i := 0; i < t.Len(); i++ {
		s, err := t.Get(i)
		if err != nil {
			klog.Warningf("skipping %s: %v", t.ds.entries[i].path, err)
			skipped++
			continue
		}
		if err := fn(i, s); err != nil {
			return skipped, err
		}
	}
	return skipped, nil
}

// cropMask copies the size x size mask region starting at pos.
func cropMask(m models.Mask, pos models.Position, size int) models.Mask {
	out := models.NewMask(size, size)
	for y := 0; y < size; y++ {
		src := (pos.Row+y)*m.Width + pos.Col
		copy(out.Pix[y*size:(y+1)*size], m.Pix[src:src+size])
	}
	return out
}
