// Package tiling cuts large images into fixed-size, possibly overlapping square patches.
//
// Patch corners lie on a regular grid every stride pixels starting at (0, 0). When the grid
// would leave a strip narrower than the patch size at the right or bottom edge, one extra
// corner is pulled back to dimension-patchSize so the last patch ends exactly on the edge.
// Every pixel is covered and no patch is padded.
package tiling

import (
	"github.com/pkg/errors"

	"patchlabel/internal/models"
)

// ErrInvalidParameter is returned when the tiling parameters do not fit the image geometry.
var ErrInvalidParameter = errors.New("invalid tiling parameter")

// imageError matches ErrInvalidParameter and unwraps to the image shape check that failed.
type imageError struct {
	cause error
}

func (e imageError) Error() string { return ErrInvalidParameter.Error() + ": " + e.cause.Error() }

func (e imageError) Unwrap() error { return e.cause }

func (e imageError) Is(target error) bool { return target == ErrInvalidParameter }

// axisCorners returns the patch start offsets along one axis of length dim.
func axisCorners(dim, patchSize, stride int) []int {
	corners := make([]int, 0, (dim-patchSize)/stride+2)
	last := 0
	for c := 0; c+patchSize <= dim; c += stride {
		corners = append(corners, c)
		last = c
	}
	// Pull back a final corner so the far edge is covered
	if last+patchSize < dim {
		corners = append(corners, dim-patchSize)
	}
	return corners
}

func checkParams(height, width, patchSize, stride int) error {
	if height <= 0 || width <= 0 {
		return errors.Wrapf(ErrInvalidParameter, "image has zero area (%dx%d)", height, width)
	}
	if patchSize <= 0 {
		return errors.Wrapf(ErrInvalidParameter, "patch size must be positive, got %d", patchSize)
	}
	if stride <= 0 {
		return errors.Wrapf(ErrInvalidParameter, "stride must be positive, got %d", stride)
	}
	if patchSize > height || patchSize > width {
		return errors.Wrapf(ErrInvalidParameter, "patch size %d exceeds image %dx%d", patchSize, height, width)
	}
	return nil
}

// Positions returns the top-left corners of all patches for an image of the given size,
// in row-major order.
func Positions(height, width, patchSize, stride int) ([]models.Position, error) {
	if err := checkParams(height, width, patchSize, stride); err != nil {
		return nil, err
	}
	rows := axisCorners(height, patchSize, stride)
	cols := axisCorners(width, patchSize, stride)
	positions := make([]models.Position, 0, len(rows)*len(cols))
	for _, r := range rows {
		for _, c := range cols {
			positions = append(positions, models.Position{Row: r, Col: c})
		}
	}
	return positions, nil
}

// Count returns how many patches Tile would emit, without copying any pixels.
func Count(height, width, patchSize, stride int) (int, error) {
	if err := checkParams(height, width, patchSize, stride); err != nil {
		return 0, err
	}
	return len(axisCorners(height, patchSize, stride)) * len(axisCorners(width, patchSize, stride)), nil
}

// Tile cuts img into patchSize x patchSize patches.
// Patches are emitted row by row, left to right, each paired with its corner in img.
// The returned patches own their pixels; img may be discarded afterwards.
func Tile(img models.Image, patchSize, stride int) ([]models.Patch, error) {
	if err := img.Validate(); err != nil {
		return nil, errors.WithStack(imageError{cause: err})
	}
	positions, err := Positions(img.Height, img.Width, patchSize, stride)
	if err != nil {
		return nil, err
	}

	patches := make([]models.Patch, len(positions))
	for i, pos := range positions {
		patches[i] = models.Patch{
			Image:    crop(img, pos, patchSize),
			Position: pos,
		}
	}
	return patches, nil
}

// crop copies a size x size window starting at pos.
func crop(img models.Image, pos models.Position, size int) models.Image {
	out := models.NewImage(size, size, img.Channels)
	rowLen := size * img.Channels
	for y := 0; y < size; y++ {
		src := ((pos.Row+y)*img.Width + pos.Col) * img.Channels
		copy(out.Pix[y*rowLen:(y+1)*rowLen], img.Pix[src:src+rowLen])
	}
	return out
}
