// Package visualization renders stitched per-class maps and patch coverage as images
// for inspecting tiling and labeling results.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"patchlabel/internal/models"
	"patchlabel/pkg/stitch"
)

// MapToImage renders a matrix of values in [0, 1] as a 16-bit gray image.
// Values outside the range are clamped.
func MapToImage(m mat.Matrix) *image.Gray16 {
	rows, cols := m.Dims()
	img := image.NewGray16(image.Rect(0, 0, cols, rows))
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			value := uint16(math.Max(0, math.Min(65535, m.At(y, x)*65535)))
			img.SetGray16(x, y, color.Gray16{Y: value})
		}
	}
	return img
}

// CoverageToImage renders how many patches touched each pixel, scaled so the
// most covered pixel is white.
func CoverageToImage(coverage mat.Matrix) *image.Gray16 {
	peak := mat.Max(coverage)
	if peak <= 0 {
		rows, cols := coverage.Dims()
		return image.NewGray16(image.Rect(0, 0, cols, rows))
	}
	scaled := mat.DenseCopyOf(coverage)
	scaled.Scale(1/peak, scaled)
	return MapToImage(scaled)
}

// SaveMap saves an image; the format follows the file extension.
func SaveMap(img image.Image, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return err
	}
	return imaging.Save(img, filename)
}

// SaveClassMaps writes one PNG per class, named <stem>_class<c>.png, and the patch
// coverage as <stem>_coverage.png into outputDir.
func SaveClassMaps(cm *stitch.ClassMaps, outputDir, stem string) error {
	for c := 0; c < models.NumClasses; c++ {
		m, err := cm.Class(c)
		if err != nil {
			return err
		}
		filename := filepath.Join(outputDir, fmt.Sprintf("%s_class%d.png", stem, c))
		if err := SaveMap(MapToImage(m), filename); err != nil {
			return errors.Wrapf(err, "saving class %d map of %s", c, stem)
		}
	}
	filename := filepath.Join(outputDir, stem+"_coverage.png")
	return errors.Wrapf(SaveMap(CoverageToImage(cm.Coverage()), filename), "saving coverage of %s", stem)
}
