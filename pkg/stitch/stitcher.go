// Package stitch reassembles per-patch results into the coordinate space of the source image.
// Overlapping contributions are averaged.
package stitch

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"patchlabel/internal/models"
)

// ErrOutOfBounds is returned when a patch does not fit inside the target image.
var ErrOutOfBounds = errors.New("patch out of bounds")

// ErrUncovered is returned by Result when some pixel received no contribution.
var ErrUncovered = errors.New("pixel not covered by any patch")

// Stitcher accumulates patch score maps into a full-size image.
// It is not safe for concurrent use.
type Stitcher struct {
	sum   *mat.Dense
	count *mat.Dense
}

// New creates a Stitcher for a height x width image
func New(height, width int) (*Stitcher, error) {
	if height <= 0 || width <= 0 {
		return nil, errors.Errorf("stitch target has zero area (%dx%d)", height, width)
	}
	return &Stitcher{
		sum:   mat.NewDense(height, width, nil),
		count: mat.NewDense(height, width, nil),
	}, nil
}

// Dims returns the size of the target image
func (s *Stitcher) Dims() (height, width int) {
	return s.sum.Dims()
}

// Add places scores with its top-left corner at pos.
func (s *Stitcher) Add(pos models.Position, scores mat.Matrix) error {
	r, c := scores.Dims()
	h, w := s.sum.Dims()
	if pos.Row < 0 || pos.Col < 0 || pos.Row+r > h || pos.Col+c > w {
		return errors.Wrapf(ErrOutOfBounds, "%dx%d patch at %v in %dx%d image", r, c, pos, h, w)
	}

	view := s.sum.Slice(pos.Row, pos.Row+r, pos.Col, pos.Col+c).(*mat.Dense)
	view.Add(view, scores)
	cover := s.count.Slice(pos.Row, pos.Row+r, pos.Col, pos.Col+c).(*mat.Dense)
	cover.Apply(func(_, _ int, v float64) float64 { return v + 1 }, cover)
	return nil
}

// AddConstant places a size x size patch whose every cell has value v.
func (s *Stitcher) AddConstant(pos models.Position, size int, v float64) error {
	if size <= 0 {
		return errors.Errorf("patch size must be positive, got %d", size)
	}
	data := make([]float64, size*size)
	for i := range data {
		data[i] = v
	}
	return s.Add(pos, mat.NewDense(size, size, data))
}

// Coverage returns how many patches touched each pixel.
func (s *Stitcher) Coverage() *mat.Dense {
	return mat.DenseCopyOf(s.count)
}

// Result returns the per-pixel mean of all contributions.
func (s *Stitcher) Result() (*mat.Dense, error) {
	h, w := s.sum.Dims()
	for i := 0; i < h; i++ {
		for j := 0; j < w; j++ {
			if s.count.At(i, j) == 0 {
				return nil, errors.Wrapf(ErrUncovered, "pixel (%d,%d)", i, j)
			}
		}
	}
	out := mat.NewDense(h, w, nil)
	out.DivElem(s.sum, s.count)
	return out, nil
}

// ClassMaps stitches patch-level label vectors into one presence map per class.
// Each cell of a class map is the fraction of covering patches that marked the class present.
type ClassMaps struct {
	maps [models.NumClasses]*Stitcher
}

// NewClassMaps creates class maps for a height x width image
func NewClassMaps(height, width int) (*ClassMaps, error) {
	cm := &ClassMaps{}
	for c := range cm.maps {
		s, err := New(height, width)
		if err != nil {
			return nil, err
		}
		cm.maps[c] = s
	}
	return cm, nil
}

// AddLabels records the label vector predicted for the patch at pos.
func (cm *ClassMaps) AddLabels(pos models.Position, patchSize int, lv models.LabelVector) error {
	for c, s := range cm.maps {
		if err := s.AddConstant(pos, patchSize, float64(lv[c])); err != nil {
			return errors.WithMessagef(err, "class %d", c)
		}
	}
	return nil
}

// Class returns the stitched map of class c.
func (cm *ClassMaps) Class(c int) (*mat.Dense, error) {
	if c < 0 || c >= models.NumClasses {
		return nil, errors.Errorf("class %d outside 0..%d", c, models.NumClasses-1)
	}
	return cm.maps[c].Result()
}

// Coverage returns how many patches touched each pixel.
func (cm *ClassMaps) Coverage() *mat.Dense {
	return cm.maps[0].Coverage()
}

// Labels reduces the class maps to an image-level label vector: a class is present
// if its stitched fraction exceeds minFraction anywhere. The fraction at a pixel is
// the share of the patches covering it that mark the class.
func (cm *ClassMaps) Labels(minFraction float64) (models.LabelVector, error) {
	var lv models.LabelVector
	for c := range cm.maps {
		m, err := cm.maps[c].Result()
		if err != nil {
			return models.LabelVector{}, err
		}
		if mat.Max(m) > minFraction {
			lv[c] = 1
		}
	}
	return lv, nil
}
