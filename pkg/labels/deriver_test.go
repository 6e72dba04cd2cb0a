package labels

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patchlabel/internal/models"
)

// maskOf builds a single-row mask from values
func maskOf(values ...uint8) models.Mask {
	return models.Mask{Pix: values, Height: 1, Width: len(values)}
}

// maskWithCounts builds a mask holding counts[v] cells of value v
func maskWithCounts(counts ...int) models.Mask {
	var pix []uint8
	for v, n := range counts {
		for i := 0; i < n; i++ {
			pix = append(pix, uint8(v))
		}
	}
	return models.Mask{Pix: pix, Height: 1, Width: len(pix)}
}

func TestDerivePresence(t *testing.T) {
	tests := []struct {
		name string
		mask models.Mask
		want models.LabelVector
	}{
		{"only class 1", maskOf(1, 1, 1, 1), models.LabelVector{0, 1, 0}},
		{"all classes", maskOf(0, 1, 2, 2), models.LabelVector{1, 1, 1}},
		{"background excluded", maskOf(0, 3, 3, 0), models.LabelVector{1, 0, 0}},
		{"only background", maskOf(3, 3), models.LabelVector{0, 0, 0}},
		{"single pixel counts", maskOf(3, 3, 3, 2), models.LabelVector{0, 0, 1}},
		{"out of range ignored", maskOf(7, 0), models.LabelVector{1, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DerivePresence(tt.mask)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.Valid())
		})
	}
}

func TestDerivePresence2D(t *testing.T) {
	mask := models.NewMask(4, 5)
	for i := range mask.Pix {
		mask.Pix[i] = 3
	}
	mask.Pix[3*5+4] = 1
	got, err := DerivePresence(mask)
	require.NoError(t, err)
	assert.Equal(t, models.LabelVector{0, 1, 0}, got)
}

func TestHistogramZeroFill(t *testing.T) {
	// no class 3 anywhere: the bucket must still exist with a zero count
	counts, err := Histogram(maskOf(0, 0, 1, 2))
	require.NoError(t, err)
	assert.Equal(t, [models.NumBuckets]int{2, 1, 1, 0}, counts)

	counts, err = Histogram(maskOf(2))
	require.NoError(t, err)
	assert.Equal(t, [models.NumBuckets]int{0, 0, 1, 0}, counts)
}

func TestHistogramRejectsUnexpectedValues(t *testing.T) {
	_, err := Histogram(maskOf(0, 1, 4))
	assert.True(t, errors.Is(err, ErrMalformedMask), "got %v", err)

	_, err = DeriveThreshold(maskOf(255), 0)
	assert.True(t, errors.Is(err, ErrMalformedMask), "got %v", err)
}

func TestDeriveThresholdBoundary(t *testing.T) {
	const threshold = 5

	got, err := DeriveThreshold(maskWithCounts(threshold, 0, 0, 1), threshold)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), got[0], "count equal to threshold must be absent")

	got, err = DeriveThreshold(maskWithCounts(threshold+1, 0, 0, 1), threshold)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), got[0], "count above threshold must be present")
}

func TestDeriveThreshold(t *testing.T) {
	tests := []struct {
		name      string
		counts    []int
		threshold int
		want      models.LabelVector
	}{
		{"noise filtered", []int{100, 3, 50, 200}, 10, models.LabelVector{1, 0, 1}},
		{"background never reported", []int{0, 0, 0, 500}, 10, models.LabelVector{0, 0, 0}},
		{"zero threshold is presence", []int{1, 0, 1, 0}, 0, models.LabelVector{1, 0, 1}},
		{"missing background bucket", []int{20, 20, 20}, 10, models.LabelVector{1, 1, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DeriveThreshold(maskWithCounts(tt.counts...), tt.threshold)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDeriveThresholdNegative(t *testing.T) {
	_, err := DeriveThreshold(maskOf(0), -1)
	assert.True(t, errors.Is(err, ErrInvalidThreshold), "got %v", err)
	assert.False(t, errors.Is(err, ErrMalformedMask))
}

func TestMalformedShape(t *testing.T) {
	empty := models.Mask{}
	_, err := DerivePresence(empty)
	assert.True(t, errors.Is(err, ErrMalformedMask))
	_, err = DeriveThreshold(empty, 1)
	assert.True(t, errors.Is(err, ErrMalformedMask))

	short := models.Mask{Pix: []uint8{0, 1}, Height: 2, Width: 2}
	_, err = DerivePresence(short)
	assert.True(t, errors.Is(err, ErrMalformedMask))
	assert.Contains(t, err.Error(), "buffer holds 2 cells")
	assert.Equal(t, short.Validate().Error(), errors.Unwrap(errors.Cause(err)).Error())
}

func TestFromCounts(t *testing.T) {
	lv := FromCounts([models.NumBuckets]int{6001, 6000, 0, 9000}, DefaultThresholdPixels)
	assert.Equal(t, models.LabelVector{1, 0, 0}, lv)
}
