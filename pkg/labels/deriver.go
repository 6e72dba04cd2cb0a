// Package labels derives multi-label class vectors from per-pixel segmentation masks.
//
// Two policies are provided and selected explicitly by the caller:
//
//   - presence: a class is present if any mask cell holds it. Meant for small, fully
//     annotated images where a single pixel of a class is meaningful.
//   - threshold: a class is present only if more than a given number of cells hold it.
//     Meant for large images where isolated or boundary pixels are label noise.
//
// Mask value 3 is background. It is counted but never reported.
package labels

import (
	"github.com/pkg/errors"

	"patchlabel/internal/models"
)

var (
	// ErrMalformedMask is returned when a mask is inconsistent with the labeling policy.
	ErrMalformedMask = errors.New("malformed mask")

	// ErrInvalidThreshold is returned for a negative pixel threshold.
	ErrInvalidThreshold = errors.New("invalid label threshold")
)

// shapeError reports a mask whose shape is unusable. It matches ErrMalformedMask
// and unwraps to the shape check that failed.
type shapeError struct {
	cause error
}

func malformed(cause error) error {
	return errors.WithStack(shapeError{cause: cause})
}

func (e shapeError) Error() string { return ErrMalformedMask.Error() + ": " + e.cause.Error() }

func (e shapeError) Unwrap() error { return e.cause }

func (e shapeError) Is(target error) bool { return target == ErrMalformedMask }

// DefaultThresholdPixels is the pixel count a class must exceed on large images.
const DefaultThresholdPixels = 6000

// DerivePresence marks class c present iff at least one mask cell equals c.
// Values other than 0, 1 and 2 are ignored.
func DerivePresence(mask models.Mask) (models.LabelVector, error) {
	var lv models.LabelVector
	if err := mask.Validate(); err != nil {
		return lv, malformed(err)
	}

	var seen [256]bool
	for _, v := range mask.Pix {
		seen[v] = true
	}
	for c := 0; c < models.NumClasses; c++ {
		if seen[c] {
			lv[c] = 1
		}
	}
	return lv, nil
}

// Histogram counts mask cells per value over the four buckets 0..3.
// A value that never occurs still has its bucket, with a count of zero.
// Any value above 3 makes the mask malformed.
func Histogram(mask models.Mask) ([models.NumBuckets]int, error) {
	var counts [models.NumBuckets]int
	if err := mask.Validate(); err != nil {
		return counts, malformed(err)
	}
	for i, v := range mask.Pix {
		if int(v) >= models.NumBuckets {
			return [models.NumBuckets]int{}, errors.Wrapf(ErrMalformedMask,
				"value %d at (%d,%d) outside 0..%d", v, i/mask.Width, i%mask.Width, models.NumBuckets-1)
		}
		counts[v]++
	}
	return counts, nil
}

// DeriveThreshold marks class c present iff strictly more than thresholdPixels cells equal c.
func DeriveThreshold(mask models.Mask, thresholdPixels int) (models.LabelVector, error) {
	var lv models.LabelVector
	if thresholdPixels < 0 {
		return lv, errors.Wrapf(ErrInvalidThreshold, "threshold must be non-negative, got %d", thresholdPixels)
	}
	counts, err := Histogram(mask)
	if err != nil {
		return lv, err
	}
	return FromCounts(counts, thresholdPixels), nil
}

// FromCounts applies the threshold policy to an existing histogram.
func FromCounts(counts [models.NumBuckets]int, thresholdPixels int) models.LabelVector {
	var lv models.LabelVector
	for c := 0; c < models.NumClasses; c++ {
		if counts[c] > thresholdPixels {
			lv[c] = 1
		}
	}
	return lv
}
